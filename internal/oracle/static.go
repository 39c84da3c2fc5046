package oracle

import (
	"context"
	"sync"

	"namereg/pkg/domain"
)

// Static serves balances from a fixed in-memory table. Used in development
// and tests; unknown identities report a zero balance.
type Static struct {
	mu       sync.RWMutex
	balances map[domain.Identity]uint64
}

func NewStatic(balances map[domain.Identity]uint64) *Static {
	cp := make(map[domain.Identity]uint64, len(balances))
	for k, v := range balances {
		cp[k] = v
	}
	return &Static{balances: cp}
}

func (s *Static) BalanceOf(_ context.Context, identity domain.Identity) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[identity], nil
}

// SetBalance replaces one identity's balance.
func (s *Static) SetBalance(identity domain.Identity, balance uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[identity] = balance
}
