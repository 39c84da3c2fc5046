// Package events defines the notifications the registry emits for external
// observers and indexers, and the publishers that carry them.
package events

import (
	"context"
	"time"

	"namereg/pkg/domain"
)

// Type names a registry state change.
type Type string

const (
	TypeRegistered           Type = "registered"
	TypeRenewed              Type = "renewed"
	TypeRecordUpdated        Type = "record_updated"
	TypeNameTransferred      Type = "name_transferred"
	TypeParamsUpdated        Type = "params_updated"
	TypeOwnershipTransferred Type = "ownership_transferred"
)

// Notification is emitted after a successful mutation. Failed operations
// emit nothing. Fields beyond Type, Actor, and Timestamp are populated per
// event type.
type Notification struct {
	Type      Type            `json:"type"`
	Actor     domain.Identity `json:"actor"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`

	// Name lifecycle events.
	Name      string          `json:"name,omitempty"`
	ExpiresAt time.Time       `json:"expires_at,omitzero"`
	Record    string          `json:"record,omitempty"`
	From      domain.Identity `json:"from,omitempty"`
	To        domain.Identity `json:"to,omitempty"`

	// Parameter events.
	MinBalance uint64        `json:"min_balance,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`

	// Administrator handover.
	PreviousAdmin domain.Identity `json:"previous_admin,omitempty"`
	NewAdmin      domain.Identity `json:"new_admin,omitempty"`
}

// Publisher fans a notification out to observers. Implementations must be
// safe for concurrent use. Emission failures are the sink's problem, not the
// operation's: the service logs and continues.
type Publisher interface {
	Emit(ctx context.Context, n Notification) error
}
