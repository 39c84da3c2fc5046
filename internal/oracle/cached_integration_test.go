//go:build integration

package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"namereg/pkg/domain"
	"namereg/pkg/testutil/containers"
)

func TestCached_Redis(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)

	alice := domain.Identity("alice")

	t.Run("caches the first lookup", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		static := NewStatic(map[domain.Identity]uint64{alice: 250})
		cached := NewCached(static, rc.Client, time.Minute)

		balance, err := cached.BalanceOf(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, uint64(250), balance)

		// A change at the source is masked while the cache entry lives.
		static.SetBalance(alice, 999)
		balance, err = cached.BalanceOf(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, uint64(250), balance)
	})

	t.Run("expired entries refresh from the oracle", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		static := NewStatic(map[domain.Identity]uint64{alice: 100})
		cached := NewCached(static, rc.Client, 50*time.Millisecond)

		balance, err := cached.BalanceOf(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, uint64(100), balance)

		static.SetBalance(alice, 300)
		time.Sleep(100 * time.Millisecond)

		balance, err = cached.BalanceOf(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, uint64(300), balance)
	})

	t.Run("unparseable entries fall through and refresh", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		static := NewStatic(map[domain.Identity]uint64{alice: 42})
		cached := NewCached(static, rc.Client, time.Minute)

		require.NoError(t, rc.Client.Set(ctx, cached.key(alice), "garbage", time.Minute).Err())

		balance, err := cached.BalanceOf(ctx, alice)
		require.NoError(t, err)
		require.Equal(t, uint64(42), balance)

		stored, err := rc.Client.Get(ctx, cached.key(alice)).Result()
		require.NoError(t, err)
		require.Equal(t, "42", stored)
	})
}
