package vantor

import (
	"context"
	"time"
)

const (
	auditLoginSuccess              = "login.success"
	auditLoginFailure              = "login.failure"
	auditLoginLocked               = "login.locked"
	auditLoginSecondFactorRequired = "login.second_factor_required"
	auditSecondFactorSuccess       = "second_factor.success"
	auditSecondFactorFailure       = "second_factor.failure"
	auditSecondFactorLocked        = "second_factor.locked"
	auditEnrollmentStarted         = "second_factor.enroll_started"
	auditEnrollmentConfirmed       = "second_factor.enroll_confirmed"
	auditSecondFactorDisabled      = "second_factor.disabled"
	auditRecoveryCodeUsed          = "recovery.used"
	auditRecoveryRegenerated       = "recovery.regenerated"
	auditDeviceTrusted             = "device.trusted"
	auditDeviceRemoved             = "device.removed"
	auditTokenRefreshed            = "token.refreshed"
	auditLogout                    = "token.logout"
	auditAccountRegistered         = "account.registered"
	auditAccountVerified           = "account.verified"
	auditPasswordChanged           = "password.changed"
	auditPasswordResetRequested    = "password.reset_requested"
	auditPasswordResetConfirmed    = "password.reset_confirmed"
)

func (e *Engine) emitAudit(ctx context.Context, eventType, accountID, email string, success bool, errMsg string) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		AccountID: accountID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     errMsg,
	})
}
