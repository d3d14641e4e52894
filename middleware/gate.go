package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/taskauth"
	"github.com/MrEthical07/taskauth/internal/httpx"
	"go.uber.org/zap"
)

// Authenticator is the part of *taskauth.Engine the gate needs.
type Authenticator interface {
	AllowRequest(ctx context.Context, key string) error
	ValidateAccess(token string) (string, error)
}

// GateConfig configures Gate.
type GateConfig struct {
	// Public lists paths that need no bearer token. An entry ending in "/*"
	// matches every path under that prefix.
	Public []string
	// ExemptPublic lets public paths bypass the request budget as well.
	ExemptPublic bool
	// TrustForwardedFor takes the client IP from the first X-Forwarded-For
	// hop. Enable only behind a proxy that overwrites the header.
	TrustForwardedFor bool
	Logger            *zap.Logger
}

// DefaultPublicPaths are reachable without a token.
var DefaultPublicPaths = []string{
	"/api/auth/register",
	"/api/auth/login",
	"/health",
}

type principalContextKey struct{}

// PrincipalFromContext returns the verified subject e-mail attached by Gate.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(principalContextKey{}).(string)
	return email, ok && email != ""
}

// WithPrincipal attaches email as the authenticated principal.
func WithPrincipal(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, principalContextKey{}, email)
}

// Gate returns middleware that rate limits, then authenticates, every request.
func Gate(auth Authenticator, cfg GateConfig) func(http.Handler) http.Handler {
	if cfg.Public == nil {
		cfg.Public = DefaultPublicPaths
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	public := newPathSet(cfg.Public)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				httpx.WriteError(w, r, logger, taskauth.ErrEngineNotReady)
				return
			}

			ip := ClientIP(r, cfg.TrustForwardedFor)
			ctx := taskauth.WithClientIP(r.Context(), ip)
			isPublic := public.match(r.URL.Path)

			if !isPublic || !cfg.ExemptPublic {
				if err := auth.AllowRequest(ctx, ip); err != nil {
					logger.Debug("request refused by rate limiter", zap.String("ip", ip), zap.String("path", r.URL.Path))
					httpx.WriteError(w, r, logger, err)
					return
				}
			}
			if isPublic {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(w, r, logger, taskauth.ErrUnauthenticated)
				return
			}
			email, err := auth.ValidateAccess(token)
			if err != nil {
				logger.Debug("bearer token rejected", zap.String("path", r.URL.Path), zap.Error(err))
				httpx.WriteError(w, r, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, email)))
		})
	}
}

// ClientIP returns the request's client address without the port.
func ClientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

type pathSet struct {
	exact    map[string]struct{}
	prefixes []string
}

func newPathSet(paths []string) pathSet {
	s := pathSet{exact: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			s.prefixes = append(s.prefixes, prefix+"/")
			continue
		}
		s.exact[p] = struct{}{}
	}
	return s
}

func (s pathSet) match(path string) bool {
	if _, ok := s.exact[path]; ok {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
