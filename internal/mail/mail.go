// Package mail delivers password-reset messages over SMTP, or to the log in
// development.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config describes the SMTP relay and the reset link.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string

	// Timeout bounds one delivery from dial to QUIT. Zero means 30s.
	Timeout time.Duration
	// ResetURL is the front-end page that accepts ?token=.
	ResetURL string
	// ExpiresIn is printed in the message body.
	ExpiresIn time.Duration
}

var (
	// ErrMissingHost is returned by NewSMTPSender when Config.Host is empty.
	ErrMissingHost = errors.New("mail: smtp host is required")
	// ErrInvalidFrom is returned when Config.From is not an RFC 5322 address.
	ErrInvalidFrom = errors.New("mail: from address is invalid")
	// ErrInvalidResetURL is returned when the reset URL is not absolute.
	ErrInvalidResetURL = errors.New("mail: reset url must be absolute")
	// ErrAuthUnsupported is returned when credentials are configured but the
	// relay does not advertise AUTH.
	ErrAuthUnsupported = errors.New("mail: smtp server does not support AUTH")
)

const defaultTimeout = 30 * time.Second

const resetSubject = "Reset Your TaskFlow Password"

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Reset Your Password</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
<h2 style="color: #2c3e50;">Reset Your TaskFlow Password</h2>
<p>Hello,</p>
<p>We received a request to reset the password for your TaskFlow account. If you did not ask for this, you can ignore this email.</p>
<div style="text-align: center; margin: 30px 0;">
<a href="{{.URL}}" style="background-color: #3498db; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Reset Password</a>
</div>
<p>Or copy this link into your browser:</p>
<p style="word-break: break-all; color: #3498db;">{{.URL}}</p>
<p><strong>This link expires in {{.ExpiresIn}}.</strong></p>
<p style="font-size: 12px; color: #666;">The TaskFlow Team</p>
</div>
</body>
</html>
`))

type resetData struct {
	URL       string
	ExpiresIn string
}

// RenderReset returns the HTML body of a reset message for token.
func RenderReset(resetURL, token string, expiresIn time.Duration) (string, error) {
	link, err := resetLink(resetURL, token)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := resetTemplate.Execute(&buf, resetData{URL: link, ExpiresIn: humanDuration(expiresIn)}); err != nil {
		return "", fmt.Errorf("mail: render reset template: %w", err)
	}
	return buf.String(), nil
}

func resetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || !u.IsAbs() {
		return "", ErrInvalidResetURL
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "1 hour"
	case d%time.Hour == 0:
		if h := int(d / time.Hour); h != 1 {
			return strconv.Itoa(h) + " hours"
		}
		return "1 hour"
	default:
		return strconv.Itoa(int(d/time.Minute)) + " minutes"
	}
}

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends reset messages through an SMTP relay with PLAIN auth.
type SMTPSender struct {
	cfg    Config
	from   *mail.Address
	auth   smtp.Auth
	send   sendFunc
	logger *zap.Logger
}

// NewSMTPSender validates cfg and returns a sender.
func NewSMTPSender(cfg Config, logger *zap.Logger) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, ErrMissingHost
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, ErrInvalidFrom
	}
	if cfg.FromName != "" {
		from.Name = cfg.FromName
	}
	if _, err := resetLink(cfg.ResetURL, "check"); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	s := &SMTPSender{cfg: cfg, from: from, auth: auth, logger: logger}
	s.send = s.sendMail
	return s, nil
}

// SendPasswordReset renders and sends the reset message. Delivery is bounded
// by ctx and Config.Timeout, whichever ends first.
func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("mail: invalid recipient: %w", err)
	}
	body, err := RenderReset(s.cfg.ResetURL, token, s.cfg.ExpiresIn)
	if err != nil {
		return err
	}

	msg := buildMessage(s.from, rcpt, resetSubject, body)
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(ctx, addr, s.auth, s.from.Address, []string{rcpt.Address}, msg); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	s.logger.Info("password reset email sent", zap.String("to", rcpt.Address))
	return nil
}

// sendMail is smtp.SendMail with a context-aware dial and a connection
// deadline, so a relay that accepts TCP and then stalls cannot hold the
// caller.
func (s *SMTPSender) sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return err
	}
	// Cancellation before the deadline unblocks any pending read or write.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return ErrAuthUnsupported
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from, to *mail.Address, subject, html string) []byte {
	var b bytes.Buffer
	b.WriteString("From: " + from.String() + "\r\n")
	b.WriteString("To: " + to.String() + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(html, "\n", "\r\n"))
	return b.Bytes()
}

// LogSender writes the reset link to the log instead of sending it.
type LogSender struct {
	resetURL string
	logger   *zap.Logger
}

// NewLogSender returns a LogSender. Use it only where logs are private.
func NewLogSender(resetURL string, logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{resetURL: resetURL, logger: logger}
}

// SendPasswordReset logs the link at warn level.
func (l *LogSender) SendPasswordReset(_ context.Context, to, token string) error {
	link, err := resetLink(l.resetURL, token)
	if err != nil {
		return err
	}
	l.logger.Warn("password reset email not sent, smtp disabled",
		zap.String("to", to),
		zap.String("reset_url", link))
	return nil
}
