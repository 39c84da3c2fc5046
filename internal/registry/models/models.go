// Package models defines the name registry's data model: name records,
// registry parameters, and the expiry predicates every operation shares.
package models

import (
	"time"

	"namereg/pkg/domain"
	dErrors "namereg/pkg/domain-errors"
)

// NameRecord is the stored state for one name string.
//
// A record is never deleted. Once expired it is logically available again and
// the next successful registration overwrites it wholesale: the old record
// text is cleared, not merged, and the stale owner is simply replaced.
type NameRecord struct {
	Name      string          `json:"name"`
	Owner     domain.Identity `json:"owner"`
	ExpiresAt time.Time       `json:"expires_at"`
	Record    string          `json:"record"`
}

// Expired reports whether the record has lapsed at the given instant.
// The boundary is inclusive: at exactly ExpiresAt the name is expired,
// available for re-registration, and the stale owner holds no rights.
func (r *NameRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Live reports whether the record has an owner and has not expired.
func (r *NameRecord) Live(now time.Time) bool {
	return !r.Owner.IsZero() && !r.Expired(now)
}

// OwnedBy is the shared authorization predicate: true iff identity is the
// current unexpired owner. Expiry is checked first, so a stale owner has no
// rights over their lapsed name, and "never registered" and "expired" are
// indistinguishable to callers of mutating operations.
func (r *NameRecord) OwnedBy(identity domain.Identity, now time.Time) bool {
	if r.Expired(now) {
		return false
	}
	return r.Owner == identity
}

// Params is the registry-wide parameter set. TokenAddress is fixed at
// construction; the administrator mutates the rest through explicit updates.
type Params struct {
	// TokenAddress identifies the reference token whose balance gates
	// registration. The registry only ever reads balances for it; it never
	// moves or burns the token.
	TokenAddress string `json:"token_address"`

	// MinBalance is the admission threshold: a registrant whose oracle
	// balance is strictly below it is rejected.
	MinBalance uint64 `json:"min_balance"`

	// Duration is how long a registration (or one renewal) lasts.
	Duration time.Duration `json:"duration"`

	// Label is the top-level label, display-only. Lookups never consult it.
	Label string `json:"label"`

	// Admin is the single identity permitted to change parameters.
	Admin domain.Identity `json:"admin"`
}

// Validate checks construction-time invariants.
func (p *Params) Validate() error {
	if p.Duration <= 0 {
		return dErrors.New(dErrors.CodeInvalidDuration, "registration duration must be greater than zero")
	}
	if p.Admin.IsZero() {
		return dErrors.New(dErrors.CodeZeroTarget, "administrator identity must not be the null identity")
	}
	return nil
}
