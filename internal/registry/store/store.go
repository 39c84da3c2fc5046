// Package store persists name records, ownership counters, and registry
// parameters. Implementations return sentinel errors; the service layer
// translates them into domain errors.
package store

import (
	"context"

	"namereg/internal/registry/models"
	"namereg/pkg/domain"
)

// RecordStore holds name records and per-identity ownership counters.
type RecordStore interface {
	// Find returns the stored record for a name, expired or not.
	// Returns sentinel.ErrNotFound if the name was never registered.
	Find(ctx context.Context, name string) (*models.NameRecord, error)

	// Upsert overwrites the record wholesale, creating it if absent.
	Upsert(ctx context.Context, rec *models.NameRecord) error

	// IncrementOwned bumps the identity's ownership counter.
	IncrementOwned(ctx context.Context, owner domain.Identity) error

	// DecrementOwned lowers the identity's ownership counter, saturating at
	// zero. It reports whether saturation occurred so callers can surface
	// counter drift.
	DecrementOwned(ctx context.Context, owner domain.Identity) (saturated bool, err error)

	// OwnedCount returns the identity's current counter value. The counter
	// is best-effort: it tracks raw ownership slots, not live names.
	OwnedCount(ctx context.Context, owner domain.Identity) (uint64, error)
}

// ParamsStore holds the singleton registry parameter set.
type ParamsStore interface {
	Load(ctx context.Context) (*models.Params, error)
	Save(ctx context.Context, p *models.Params) error
}

// Tx serializes a registry operation. Every mutating service operation runs
// inside exactly one RunInTx call, so check-then-act sequences (availability
// then overwrite) observe no interleaving and either commit whole or leave
// no trace.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
