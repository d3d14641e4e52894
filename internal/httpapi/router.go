// Package httpapi exposes the Engine over JSON HTTP.
package httpapi

import (
	"net/http"

	"github.com/MrEthical07/taskauth"
	"github.com/MrEthical07/taskauth/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PublicPaths need no bearer token.
var PublicPaths = []string{
	"/api/auth/register",
	"/api/auth/login",
	"/api/auth/refresh",
	"/api/auth/password-reset/*",
	"/health",
	"/metrics",
}

// Options configures NewRouter.
type Options struct {
	Logger *zap.Logger
	// Metrics is mounted at GET /metrics when set.
	Metrics           http.Handler
	TrustForwardedFor bool
	ExemptPublic      bool
}

// NewRouter wires every route behind the request gate. Middleware runs in
// this order: request id, access log, security headers, gate, route.
func NewRouter(engine *taskauth.Engine, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handlers{engine: engine, logger: logger}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(h.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)

	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/register", h.register).Methods(http.MethodPost)
	auth.HandleFunc("/login", h.login).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", h.refresh).Methods(http.MethodPost)
	auth.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	auth.HandleFunc("/profile", h.profile).Methods(http.MethodGet)
	auth.HandleFunc("/password-reset/request", h.passwordResetRequest).Methods(http.MethodPost)
	auth.HandleFunc("/password-reset/verify", h.passwordResetVerify).Methods(http.MethodPost)
	auth.HandleFunc("/password-reset/confirm", h.passwordResetConfirm).Methods(http.MethodPost)

	r.HandleFunc("/api/users/me", h.profile).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	gate := middleware.Gate(engine, middleware.GateConfig{
		Public:            PublicPaths,
		ExemptPublic:      opts.ExemptPublic,
		TrustForwardedFor: opts.TrustForwardedFor,
		Logger:            logger,
	})
	return RequestID(AccessLog(logger)(SecurityHeaders(gate(r))))
}
