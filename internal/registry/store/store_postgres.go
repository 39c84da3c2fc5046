package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"namereg/internal/registry/models"
	"namereg/pkg/domain"
	"namereg/pkg/platform/sentinel"
	txcontext "namereg/pkg/platform/tx"
)

// Postgres persists the registry in PostgreSQL. All statements route through
// the context transaction when one is present so a whole operation commits
// or rolls back together.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Migrate creates the registry tables if they do not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS name_records (
    name       TEXT PRIMARY KEY,
    owner      TEXT NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    record     TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS owned_counts (
    owner TEXT PRIMARY KEY,
    cnt   BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS registry_params (
    singleton     BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
    token_address TEXT NOT NULL,
    min_balance   BIGINT NOT NULL,
    duration_s    BIGINT NOT NULL,
    label         TEXT NOT NULL,
    admin_id      TEXT NOT NULL
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate registry schema: %w", err)
	}
	return nil
}

// SeedParams writes the construction-time parameter row unless one exists.
func (s *Postgres) SeedParams(ctx context.Context, p *models.Params) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registry_params (singleton, token_address, min_balance, duration_s, label, admin_id)
		VALUES (TRUE, $1, $2, $3, $4, $5)
		ON CONFLICT (singleton) DO NOTHING`,
		p.TokenAddress, int64(p.MinBalance), int64(p.Duration/time.Second), p.Label, p.Admin.String(),
	)
	if err != nil {
		return fmt.Errorf("seed registry params: %w", err)
	}
	return nil
}

func (s *Postgres) Find(ctx context.Context, name string) (*models.NameRecord, error) {
	var (
		rec   models.NameRecord
		owner string
	)
	err := s.querier(ctx).QueryRowContext(ctx, `
		SELECT name, owner, expires_at, record FROM name_records WHERE name = $1`,
		name,
	).Scan(&rec.Name, &owner, &rec.ExpiresAt, &rec.Record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find name record: %w", err)
	}
	rec.Owner = domain.Identity(owner)
	return &rec, nil
}

func (s *Postgres) Upsert(ctx context.Context, rec *models.NameRecord) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO name_records (name, owner, expires_at, record)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at, record = EXCLUDED.record`,
		rec.Name, rec.Owner.String(), rec.ExpiresAt, rec.Record,
	)
	if err != nil {
		return fmt.Errorf("upsert name record: %w", err)
	}
	return nil
}

func (s *Postgres) IncrementOwned(ctx context.Context, owner domain.Identity) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO owned_counts (owner, cnt) VALUES ($1, 1)
		ON CONFLICT (owner) DO UPDATE SET cnt = owned_counts.cnt + 1`,
		owner.String(),
	)
	if err != nil {
		return fmt.Errorf("increment owned count: %w", err)
	}
	return nil
}

func (s *Postgres) DecrementOwned(ctx context.Context, owner domain.Identity) (bool, error) {
	// Callers run inside a serializable transaction, so read-then-write is
	// safe here. The counter saturates at zero rather than going negative.
	q := s.querier(ctx)
	var cnt int64
	err := q.QueryRowContext(ctx, `
		SELECT cnt FROM owned_counts WHERE owner = $1 FOR UPDATE`,
		owner.String(),
	).Scan(&cnt)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("decrement owned count: %w", err)
	}
	if cnt <= 0 {
		return true, nil
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE owned_counts SET cnt = cnt - 1 WHERE owner = $1`,
		owner.String(),
	); err != nil {
		return false, fmt.Errorf("decrement owned count: %w", err)
	}
	return false, nil
}

func (s *Postgres) OwnedCount(ctx context.Context, owner domain.Identity) (uint64, error) {
	var cnt int64
	err := s.querier(ctx).QueryRowContext(ctx, `
		SELECT cnt FROM owned_counts WHERE owner = $1`,
		owner.String(),
	).Scan(&cnt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("owned count: %w", err)
	}
	if cnt < 0 {
		cnt = 0
	}
	return uint64(cnt), nil
}

func (s *Postgres) Load(ctx context.Context) (*models.Params, error) {
	var (
		p         models.Params
		minBal    int64
		durationS int64
		admin     string
	)
	err := s.querier(ctx).QueryRowContext(ctx, `
		SELECT token_address, min_balance, duration_s, label, admin_id
		FROM registry_params WHERE singleton`,
	).Scan(&p.TokenAddress, &minBal, &durationS, &p.Label, &admin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load registry params: %w", err)
	}
	p.MinBalance = uint64(minBal)
	p.Duration = time.Duration(durationS) * time.Second
	p.Admin = domain.Identity(admin)
	return &p, nil
}

func (s *Postgres) Save(ctx context.Context, p *models.Params) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE registry_params
		SET token_address = $1, min_balance = $2, duration_s = $3, label = $4, admin_id = $5
		WHERE singleton`,
		p.TokenAddress, int64(p.MinBalance), int64(p.Duration/time.Second), p.Label, p.Admin.String(),
	)
	if err != nil {
		return fmt.Errorf("save registry params: %w", err)
	}
	return nil
}

// SQLTx runs registry operations inside serializable SQL transactions,
// giving the check-then-act sequences their required isolation.
type SQLTx struct {
	db *sql.DB
}

func NewSQLTx(db *sql.DB) *SQLTx {
	return &SQLTx{db: db}
}

func (t *SQLTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
