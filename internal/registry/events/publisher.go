package events

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryPublisher records notifications in memory. Used in tests and as the
// default when no broker is configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Notification
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Emit(_ context.Context, n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, n)
	return nil
}

// Events returns a snapshot of everything emitted so far.
func (p *MemoryPublisher) Events() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Notification, len(p.events))
	copy(out, p.events)
	return out
}

// Reset clears recorded notifications. Use between tests.
func (p *MemoryPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// LogPublisher writes notifications to the structured log. Cheap observer
// for deployments without a broker.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Emit(ctx context.Context, n Notification) error {
	p.logger.InfoContext(ctx, "registry event",
		"event", string(n.Type),
		"actor", n.Actor.String(),
		"name", n.Name,
		"request_id", n.RequestID,
	)
	return nil
}

// MultiPublisher emits to several publishers in order, returning the first
// error after attempting all of them.
type MultiPublisher []Publisher

func (m MultiPublisher) Emit(ctx context.Context, n Notification) error {
	var firstErr error
	for _, p := range m {
		if err := p.Emit(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
