package store

import (
	"context"
	"sync"

	"namereg/internal/registry/models"
	"namereg/pkg/domain"
	"namereg/pkg/platform/sentinel"
)

// Memory is an in-memory store for development and tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]models.NameRecord
	owned   map[domain.Identity]uint64
	params  *models.Params
}

// NewMemory builds an empty in-memory store seeded with the given params.
func NewMemory(params *models.Params) *Memory {
	p := *params
	return &Memory{
		records: make(map[string]models.NameRecord),
		owned:   make(map[domain.Identity]uint64),
		params:  &p,
	}
}

func (m *Memory) Find(_ context.Context, name string) (*models.NameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) Upsert(_ context.Context, rec *models.NameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Name] = *rec
	return nil
}

func (m *Memory) IncrementOwned(_ context.Context, owner domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owned[owner]++
	return nil
}

func (m *Memory) DecrementOwned(_ context.Context, owner domain.Identity) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owned[owner] == 0 {
		return true, nil
	}
	m.owned[owner]--
	return false, nil
}

func (m *Memory) OwnedCount(_ context.Context, owner domain.Identity) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.owned[owner], nil
}

func (m *Memory) Load(_ context.Context) (*models.Params, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := *m.params
	return &p, nil
}

func (m *Memory) Save(_ context.Context, p *models.Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.params = &cp
	return nil
}

// MemoryTx serializes operations with a single mutex. The service performs
// all precondition checks before its first write, so a failed operation has
// made no writes and needs no rollback.
type MemoryTx struct {
	mu sync.Mutex
}

func NewMemoryTx() *MemoryTx {
	return &MemoryTx{}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
