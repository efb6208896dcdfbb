package types

import "time"

// RegistrationToken admits hypervisor nodes into the control plane
type RegistrationToken struct {
	ObjectMeta
	Token       string
	Description string
	ClusterID   string
	CreatedBy   string
	ExpiresAt   time.Time
	MaxUses     int // 0 means unlimited
	UseCount    int
	UsedByNodes []string
	RevokedAt   *time.Time
}

// IsExpired reports whether the token expired at the given instant
func (t *RegistrationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsRevoked returns true if the token has been revoked
func (t *RegistrationToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExhausted returns true if the token reached its usage limit
func (t *RegistrationToken) IsExhausted() bool {
	return t.MaxUses > 0 && t.UseCount >= t.MaxUses
}

// IsValid reports whether the token can still register a node
func (t *RegistrationToken) IsValid(now time.Time) bool {
	return !t.IsExpired(now) && !t.IsRevoked() && !t.IsExhausted()
}

// RemainingUses returns the number of uses left, or -1 for unlimited
func (t *RegistrationToken) RemainingUses() int {
	if t.MaxUses == 0 {
		return -1
	}
	remaining := t.MaxUses - t.UseCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
