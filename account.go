package vantor

import (
	"time"

	"github.com/google/uuid"

	"github.com/vantorlabs/vantor/device"
	"github.com/vantorlabs/vantor/secret"
)

// Account mutation helpers. Each method replaces the slice it touches with a
// fresh value so a loaded account never aliases stored state.

// RecordLoginEvent describes the recordloginevent operation and its observable behavior.
//
// RecordLoginEvent may return an error when input validation, dependency calls, or security checks fail.
// RecordLoginEvent does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Account) RecordLoginEvent(event LoginEvent, limit int) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	events := make([]LoginEvent, 0, len(a.LoginEvents)+1)
	events = append(events, a.LoginEvents...)
	events = append(events, event)

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	a.LoginEvents = events
}

// AddRefreshHash describes the addrefreshhash operation and its observable behavior.
//
// AddRefreshHash may return an error when input validation, dependency calls, or security checks fail.
// AddRefreshHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Account) AddRefreshHash(hash [32]byte, issuedAt time.Time, ttl time.Duration, limit int) {
	records := make([]RefreshTokenRecord, 0, len(a.RefreshTokens)+1)
	records = append(records, a.RefreshTokens...)
	records = append(records, RefreshTokenRecord{
		Hash:      hash,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	})

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	a.RefreshTokens = records
}

// HasRefreshHash describes the hasrefreshhash operation and its observable behavior.
//
// HasRefreshHash may return an error when input validation, dependency calls, or security checks fail.
// HasRefreshHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Account) HasRefreshHash(hash [32]byte, now time.Time) bool {
	for _, rec := range a.RefreshTokens {
		if secret.Equal(rec.Hash, hash) && now.Before(rec.ExpiresAt) {
			return true
		}
	}
	return false
}

// RemoveRefreshHash describes the removerefreshhash operation and its observable behavior.
//
// RemoveRefreshHash may return an error when input validation, dependency calls, or security checks fail.
// RemoveRefreshHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Account) RemoveRefreshHash(hash [32]byte) bool {
	records := make([]RefreshTokenRecord, 0, len(a.RefreshTokens))
	removed := false
	for _, rec := range a.RefreshTokens {
		if !removed && secret.Equal(rec.Hash, hash) {
			removed = true
			continue
		}
		records = append(records, rec)
	}
	a.RefreshTokens = records
	return removed
}

// RevokeRefreshTokens describes the revokerefreshtokens operation and its observable behavior.
//
// RevokeRefreshTokens may return an error when input validation, dependency calls, or security checks fail.
// RevokeRefreshTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Account) RevokeRefreshTokens() {
	a.RefreshTokens = nil
}

// TrustedDeviceByFingerprint describes the trusteddevicebyfingerprint operation and its observable behavior.
//
// TrustedDeviceByFingerprint may return an error when input validation, dependency calls, or security checks fail.
// TrustedDeviceByFingerprint does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Account) TrustedDeviceByFingerprint(fingerprint string) *TrustedDevice {
	for i := range a.TrustedDevices {
		if a.TrustedDevices[i].Fingerprint == fingerprint {
			return &a.TrustedDevices[i]
		}
	}
	return nil
}

// UpsertTrustedDevice describes the upserttrusteddevice operation and its observable behavior.
//
// UpsertTrustedDevice may return an error when input validation, dependency calls, or security checks fail.
// UpsertTrustedDevice does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Account) UpsertTrustedDevice(meta ClientMeta, now time.Time) {
	fingerprint := device.Fingerprint(device.Metadata{IP: meta.IP, UserAgent: meta.UserAgent})

	devices := make([]TrustedDevice, len(a.TrustedDevices))
	copy(devices, a.TrustedDevices)

	for i := range devices {
		if devices[i].Fingerprint == fingerprint {
			devices[i].LastUsedAt = now
			a.TrustedDevices = devices
			return
		}
	}

	devices = append(devices, TrustedDevice{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Name:        device.DisplayName(meta.UserAgent),
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		CreatedAt:   now,
		LastUsedAt:  now,
	})
	a.TrustedDevices = devices
}

// TouchTrustedDevice describes the touchtrusteddevice operation and its observable behavior.
//
// TouchTrustedDevice may return an error when input validation, dependency calls, or security checks fail.
// TouchTrustedDevice does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Account) TouchTrustedDevice(fingerprint string, now time.Time) bool {
	devices := make([]TrustedDevice, len(a.TrustedDevices))
	copy(devices, a.TrustedDevices)

	for i := range devices {
		if devices[i].Fingerprint == fingerprint {
			devices[i].LastUsedAt = now
			a.TrustedDevices = devices
			return true
		}
	}
	return false
}

// RemoveTrustedDeviceByID describes the removetrusteddevicebyid operation and its observable behavior.
//
// RemoveTrustedDeviceByID may return an error when input validation, dependency calls, or security checks fail.
// RemoveTrustedDeviceByID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Account) RemoveTrustedDeviceByID(deviceID string) bool {
	devices := make([]TrustedDevice, 0, len(a.TrustedDevices))
	removed := false
	for _, d := range a.TrustedDevices {
		if d.ID == deviceID {
			removed = true
			continue
		}
		devices = append(devices, d)
	}
	a.TrustedDevices = devices
	return removed
}

// ConsumeRecoveryCode marks the recovery code matching hash as used.
// Returns false when no unused code matches; sibling codes are untouched.
func (a *Account) ConsumeRecoveryCode(hash [32]byte, now time.Time) bool {
	codes := make([]RecoveryCode, len(a.SecondFactor.RecoveryCodes))
	copy(codes, a.SecondFactor.RecoveryCodes)

	for i := range codes {
		if codes[i].Used {
			continue
		}
		if secret.Equal(codes[i].Hash, hash) {
			codes[i].Used = true
			codes[i].UsedAt = now
			a.SecondFactor.RecoveryCodes = codes
			return true
		}
	}
	return false
}

// UnusedRecoveryCodes describes the unusedrecoverycodes operation and its observable behavior.
//
// UnusedRecoveryCodes may return an error when input validation, dependency calls, or security checks fail.
// UnusedRecoveryCodes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Account) UnusedRecoveryCodes() int {
	n := 0
	for _, c := range a.SecondFactor.RecoveryCodes {
		if !c.Used {
			n++
		}
	}
	return n
}

// ClearSecondFactor wipes the entire second-factor surface: secrets, pending
// enrollment, recovery codes, counters, and every trusted device. Disabling
// is destructive so a later re-enrollment starts from nothing.
func (a *Account) ClearSecondFactor() {
	a.SecondFactor = SecondFactorState{}
	a.TrustedDevices = nil
}
