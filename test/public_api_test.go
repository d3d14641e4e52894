package test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/MrEthical07/taskauth"
	"github.com/MrEthical07/taskauth/middleware"
)

// Guards the exported surface hosts compile against.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = taskauth.New
	_ = taskauth.DefaultConfig
	_ = taskauth.WithClientIP

	var _ *taskauth.Engine
	var _ taskauth.Config
	var _ taskauth.AuthBundle
	var _ taskauth.PrincipalSummary
	var _ taskauth.RegisterRequest
	var _ taskauth.EmailSender
	var _ taskauth.AuditSink
	var _ taskauth.PurgeResult
	var _ *taskauth.ValidationError

	var _ error = taskauth.ErrInvalidCredentials
	var _ error = taskauth.ErrAccountLocked
	var _ error = taskauth.ErrAccountDisabled
	var _ error = taskauth.ErrInvalidRefreshToken
	var _ error = taskauth.ErrRefreshTokenExpired
	var _ error = taskauth.ErrInvalidOrExpiredResetToken
	var _ error = taskauth.ErrRateLimitExceeded
	var _ error = taskauth.ErrUnauthenticated

	var _ middleware.Authenticator = (*taskauth.Engine)(nil)
	var _ func(middleware.Authenticator, middleware.GateConfig) func(http.Handler) http.Handler = middleware.Gate

	var _ func(*taskauth.Engine, context.Context, taskauth.RegisterRequest) (*taskauth.AuthBundle, error) = (*taskauth.Engine).Register
	var _ func(*taskauth.Engine, context.Context, string, string) (*taskauth.AuthBundle, error) = (*taskauth.Engine).Login
	var _ func(*taskauth.Engine, context.Context, string) (*taskauth.AuthBundle, error) = (*taskauth.Engine).Refresh
	var _ func(*taskauth.Engine, context.Context, string) error = (*taskauth.Engine).Logout
	var _ func(*taskauth.Engine, context.Context, string) (bool, error) = (*taskauth.Engine).VerifyResetToken
	var _ func(*taskauth.Engine, context.Context, time.Time) (taskauth.PurgeResult, error) = (*taskauth.Engine).PurgeExpired
}
