package oracle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"namereg/pkg/domain"
)

// Cached decorates an oracle with a Redis read-through cache. Balances are a
// point-in-time admission signal, not registry state, so a short TTL is
// acceptable staleness.
type Cached struct {
	next   BalanceOracle
	client *redis.Client
	ttl    time.Duration
}

func NewCached(next BalanceOracle, client *redis.Client, ttl time.Duration) *Cached {
	return &Cached{next: next, client: client, ttl: ttl}
}

func (c *Cached) key(identity domain.Identity) string {
	return "oracle:balance:" + identity.String()
}

func (c *Cached) BalanceOf(ctx context.Context, identity domain.Identity) (uint64, error) {
	cached, err := c.client.Get(ctx, c.key(identity)).Result()
	if err == nil {
		if balance, perr := strconv.ParseUint(cached, 10, 64); perr == nil {
			return balance, nil
		}
		// Unparseable entry: fall through and refresh.
	} else if !errors.Is(err, redis.Nil) {
		// Cache trouble never blocks the admission check; go straight to
		// the oracle.
		balance, oerr := c.next.BalanceOf(ctx, identity)
		if oerr != nil {
			return 0, fmt.Errorf("oracle after cache miss: %w", oerr)
		}
		return balance, nil
	}

	balance, err := c.next.BalanceOf(ctx, identity)
	if err != nil {
		return 0, err
	}
	_ = c.client.Set(ctx, c.key(identity), strconv.FormatUint(balance, 10), c.ttl).Err()
	return balance, nil
}
