//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"namereg/internal/registry/models"
	"namereg/internal/registry/store"
	"namereg/pkg/domain"
	"namereg/pkg/platform/sentinel"
	"namereg/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx   context.Context
	pg    *containers.PostgresContainer
	store *store.Postgres
	tx    *store.SQLTx
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.pg.DB)
	s.tx = store.NewSQLTx(s.pg.DB)
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(s.ctx))
	s.Require().NoError(s.store.SeedParams(s.ctx, &models.Params{
		TokenAddress: "tok-1",
		MinBalance:   100,
		Duration:     24 * time.Hour,
		Label:        "reg",
		Admin:        domain.Identity("admin"),
	}))
}

func (s *PostgresStoreSuite) TestRecords() {
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Run("find missing returns sentinel", func() {
		_, err := s.store.Find(s.ctx, "ghost")
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	s.Run("upsert then find", func() {
		s.Require().NoError(s.store.Upsert(s.ctx, &models.NameRecord{
			Name:      "alpha",
			Owner:     domain.Identity("alice"),
			ExpiresAt: expiry,
			Record:    "hello",
		}))

		found, err := s.store.Find(s.ctx, "alpha")
		s.Require().NoError(err)
		s.Equal("alpha", found.Name)
		s.Equal(domain.Identity("alice"), found.Owner)
		s.True(found.ExpiresAt.Equal(expiry))
		s.Equal("hello", found.Record)
	})

	s.Run("upsert replaces the whole row", func() {
		later := expiry.Add(48 * time.Hour)
		s.Require().NoError(s.store.Upsert(s.ctx, &models.NameRecord{
			Name:      "alpha",
			Owner:     domain.Identity("bob"),
			ExpiresAt: later,
		}))

		found, err := s.store.Find(s.ctx, "alpha")
		s.Require().NoError(err)
		s.Equal(domain.Identity("bob"), found.Owner)
		s.True(found.ExpiresAt.Equal(later))
		s.Empty(found.Record, "record must not survive a replacement write")
	})
}

func (s *PostgresStoreSuite) TestOwnedCounts() {
	alice := domain.Identity("alice")

	s.Run("starts at zero", func() {
		cnt, err := s.store.OwnedCount(s.ctx, alice)
		s.Require().NoError(err)
		s.Zero(cnt)
	})

	s.Run("increment and decrement", func() {
		s.Require().NoError(s.store.IncrementOwned(s.ctx, alice))
		s.Require().NoError(s.store.IncrementOwned(s.ctx, alice))

		cnt, err := s.store.OwnedCount(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal(uint64(2), cnt)

		saturated, err := s.store.DecrementOwned(s.ctx, alice)
		s.Require().NoError(err)
		s.False(saturated)

		cnt, err = s.store.OwnedCount(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal(uint64(1), cnt)
	})

	s.Run("saturates at zero", func() {
		bob := domain.Identity("bob")

		saturated, err := s.store.DecrementOwned(s.ctx, bob)
		s.Require().NoError(err)
		s.True(saturated, "decrementing an absent counter must saturate")

		s.Require().NoError(s.store.IncrementOwned(s.ctx, bob))
		saturated, err = s.store.DecrementOwned(s.ctx, bob)
		s.Require().NoError(err)
		s.False(saturated)

		saturated, err = s.store.DecrementOwned(s.ctx, bob)
		s.Require().NoError(err)
		s.True(saturated, "counter at zero must not go negative")

		cnt, err := s.store.OwnedCount(s.ctx, bob)
		s.Require().NoError(err)
		s.Zero(cnt)
	})
}

func (s *PostgresStoreSuite) TestParams() {
	s.Run("seed is loadable", func() {
		p, err := s.store.Load(s.ctx)
		s.Require().NoError(err)
		s.Equal("tok-1", p.TokenAddress)
		s.Equal(uint64(100), p.MinBalance)
		s.Equal(24*time.Hour, p.Duration)
		s.Equal(domain.Identity("admin"), p.Admin)
	})

	s.Run("seed does not overwrite an existing row", func() {
		s.Require().NoError(s.store.SeedParams(s.ctx, &models.Params{
			TokenAddress: "tok-2",
			MinBalance:   999,
			Duration:     time.Hour,
			Label:        "other",
			Admin:        domain.Identity("intruder"),
		}))

		p, err := s.store.Load(s.ctx)
		s.Require().NoError(err)
		s.Equal("tok-1", p.TokenAddress)
		s.Equal(uint64(100), p.MinBalance)
	})

	s.Run("save replaces the singleton row", func() {
		p, err := s.store.Load(s.ctx)
		s.Require().NoError(err)

		p.MinBalance = 500
		p.Duration = 48 * time.Hour
		p.Admin = domain.Identity("admin2")
		s.Require().NoError(s.store.Save(s.ctx, p))

		again, err := s.store.Load(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(500), again.MinBalance)
		s.Equal(48*time.Hour, again.Duration)
		s.Equal(domain.Identity("admin2"), again.Admin)
	})
}

func (s *PostgresStoreSuite) TestTransactions() {
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Run("commit makes writes visible", func() {
		err := s.tx.RunInTx(s.ctx, func(ctx context.Context) error {
			if err := s.store.Upsert(ctx, &models.NameRecord{
				Name: "alpha", Owner: domain.Identity("alice"), ExpiresAt: expiry,
			}); err != nil {
				return err
			}
			return s.store.IncrementOwned(ctx, domain.Identity("alice"))
		})
		s.Require().NoError(err)

		_, err = s.store.Find(s.ctx, "alpha")
		s.NoError(err)
		cnt, err := s.store.OwnedCount(s.ctx, domain.Identity("alice"))
		s.Require().NoError(err)
		s.Equal(uint64(1), cnt)
	})

	s.Run("error rolls back every write", func() {
		boom := errors.New("boom")
		err := s.tx.RunInTx(s.ctx, func(ctx context.Context) error {
			if err := s.store.Upsert(ctx, &models.NameRecord{
				Name: "beta", Owner: domain.Identity("bob"), ExpiresAt: expiry,
			}); err != nil {
				return err
			}
			return boom
		})
		s.Require().ErrorIs(err, boom)

		_, err = s.store.Find(s.ctx, "beta")
		s.True(errors.Is(err, sentinel.ErrNotFound), "rolled-back write must not be visible")
	})
}
