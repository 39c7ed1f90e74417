package vantor

import "context"

// TrustedDevices returns the account's trusted device list. The slice is a
// copy; mutating it has no effect on stored state.
func (e *Engine) TrustedDevices(ctx context.Context, accountID string) ([]TrustedDevice, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	acct, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	devices := make([]TrustedDevice, len(acct.TrustedDevices))
	copy(devices, acct.TrustedDevices)
	return devices, nil
}

// RemoveTrustedDevice revokes a single trusted device after a fresh password
// check. Subsequent logins from that device go through the second factor
// again.
func (e *Engine) RemoveTrustedDevice(ctx context.Context, accountID, password, deviceID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	acct, err := e.reauthenticate(ctx, accountID, password)
	if err != nil {
		return err
	}

	if _, err := e.mutateAccount(ctx, accountID, func(a *Account) error {
		if !a.RemoveTrustedDeviceByID(deviceID) {
			return ErrDeviceNotFound
		}
		return nil
	}); err != nil {
		return err
	}

	e.metrics.Inc(MetricDeviceRemoved)
	e.emitAudit(ctx, auditDeviceRemoved, acct.ID, acct.Email, true, "")
	return nil
}
