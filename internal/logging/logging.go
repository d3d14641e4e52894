// Package logging builds the zap logger used by the server.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level, encoding and optional file output.
type Config struct {
	Level string
	Dev   bool
	// File enables rotated file output next to stdout. Rotated files are
	// named File plus a .YYYYMMDDHH suffix and File is kept as a symlink to
	// the current one.
	File         string
	MaxAge       time.Duration
	RotationTime time.Duration
}

// ParseLevel maps a level name to a zap level. Unknown names are info.
func ParseLevel(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New returns a logger for cfg and a close function that flushes it and
// releases the log file.
func New(cfg Config) (*zap.Logger, func() error, error) {
	return newWithStdout(cfg, os.Stdout)
}

func newWithStdout(cfg Config, stdout io.Writer) (*zap.Logger, func() error, error) {
	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	var enc zapcore.Encoder
	if cfg.Dev {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(stdout)}
	closeFile := func() error { return nil }
	if cfg.File != "" {
		rl, err := NewRotatingFile(cfg.File, cfg.MaxAge, cfg.RotationTime)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, zapcore.AddSync(rl))
		closeFile = rl.Close
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), level)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Dev {
		opts = append(opts, zap.Development())
	}
	logger := zap.New(core, opts...)

	closer := func() error {
		_ = logger.Sync()
		return closeFile()
	}
	return logger, closer, nil
}

// NewRotatingFile opens path for appending through rotatelogs. Zero maxAge
// and rotation default to seven days and one day.
func NewRotatingFile(path string, maxAge, rotation time.Duration) (*rotatelogs.RotateLogs, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	if rotation <= 0 {
		rotation = 24 * time.Hour
	}
	return rotatelogs.New(
		path+".%Y%m%d%H",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(rotation),
	)
}
