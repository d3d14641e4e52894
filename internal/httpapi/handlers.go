package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/taskauth"
	"github.com/MrEthical07/taskauth/internal/httpx"
	"github.com/MrEthical07/taskauth/middleware"
	"go.uber.org/zap"
)

type handlers struct {
	engine *taskauth.Engine
	logger *zap.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetTokenRequest struct {
	Token string `json:"token"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// MessageResponse is the body of operations that return no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// VerifyResponse is the body of POST /api/auth/password-reset/verify.
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.WriteError(w, r, h.logger.With(zap.String("request_id", RequestIDFromContext(r.Context()))), err)
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req taskauth.RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	bundle, err := h.engine.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("principal registered", zap.String("principal_id", bundle.User.ID))
	httpx.WriteJSON(w, http.StatusCreated, bundle)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	bundle, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bundle)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	bundle, err := h.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bundle)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := h.engine.Logout(r.Context(), p.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// principal resolves the bearer subject attached by the gate.
func (h *handlers) principal(w http.ResponseWriter, r *http.Request) (*taskauth.PrincipalSummary, bool) {
	email, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.fail(w, r, taskauth.ErrUnauthenticated)
		return nil, false
	}
	p, err := h.engine.Profile(r.Context(), email)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return p, true
}

func (h *handlers) passwordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.engine.InitiatePasswordReset(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password reset email sent"})
}

func (h *handlers) passwordResetVerify(w http.ResponseWriter, r *http.Request) {
	var req resetTokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	valid, err := h.engine.VerifyResetToken(r.Context(), req.Token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, VerifyResponse{Valid: valid})
}

func (h *handlers) passwordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.engine.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset"})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "DOWN"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

func (h *handlers) notFound(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusNotFound, httpx.ErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    http.StatusNotFound,
		Error:     "Not Found",
		Message:   "No handler for " + r.Method + " " + r.URL.Path,
		Path:      r.URL.Path,
	})
}

func (h *handlers) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusMethodNotAllowed, httpx.ErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    http.StatusMethodNotAllowed,
		Error:     "Method Not Allowed",
		Message:   "Request method " + r.Method + " is not supported",
		Path:      r.URL.Path,
	})
}
