package taskauth

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/taskauth/internal/audit"
	"github.com/MrEthical07/taskauth/internal/models"
)

// SetAccountLocked locks or unlocks a principal. Locking also revokes its
// refresh tokens so the lock takes effect at the next refresh.
func (e *Engine) SetAccountLocked(ctx context.Context, principalID string, locked bool) error {
	if e.unavailable() || e.principals == nil {
		return ErrEngineNotReady
	}
	if err := e.principals.SetLocked(ctx, principalID, locked, e.now().UTC()); err != nil {
		return e.accountUpdateError(err)
	}
	if locked {
		if err := e.revokeForStatus(ctx, principalID); err != nil {
			return err
		}
		e.metricInc(MetricAccountLocked)
	}
	e.emitAudit(ctx, audit.EventAccountLocked, true, principalID, "", nil, func() map[string]string {
		return map[string]string{"locked": strconv.FormatBool(locked)}
	})
	return nil
}

// SetAccountEnabled enables or disables a principal. Disabling also revokes
// its refresh tokens.
func (e *Engine) SetAccountEnabled(ctx context.Context, principalID string, enabled bool) error {
	if e.unavailable() || e.principals == nil {
		return ErrEngineNotReady
	}
	if err := e.principals.SetEnabled(ctx, principalID, enabled, e.now().UTC()); err != nil {
		return e.accountUpdateError(err)
	}
	if !enabled {
		if err := e.revokeForStatus(ctx, principalID); err != nil {
			return err
		}
		e.metricInc(MetricAccountDisabled)
	}
	e.emitAudit(ctx, audit.EventAccountDisabled, true, principalID, "", nil, func() map[string]string {
		return map[string]string{"enabled": strconv.FormatBool(enabled)}
	})
	return nil
}

func (e *Engine) revokeForStatus(ctx context.Context, principalID string) error {
	if _, err := e.refresh.RevokeAllFor(ctx, principalID); err != nil {
		return e.internalError("refresh token revocation failed", err)
	}
	return nil
}

func (e *Engine) accountUpdateError(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return ErrPrincipalNotFound
	}
	return e.internalError("account status update failed", err)
}
