// Package oracle provides the balance oracle: a read-only view of an
// identity's reference-token balance, consulted only as the registration
// admission check.
//
// The oracle is a separate trust domain. It may lag the registry's own
// clock and the registry assumes nothing about how balances are produced
// or whether the token's transfer path is restricted.
package oracle

import (
	"context"

	"namereg/pkg/domain"
)

//go:generate mockgen -source=oracle.go -destination=mocks/mocks.go -package=mocks BalanceOracle

// BalanceOracle exposes the single read the registry needs.
type BalanceOracle interface {
	// BalanceOf returns the identity's current reference-token balance.
	// No side effects are assumed.
	BalanceOf(ctx context.Context, identity domain.Identity) (uint64, error)
}
