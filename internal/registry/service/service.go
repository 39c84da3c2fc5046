// Package service implements the name-record lifecycle: availability,
// registration gated by the balance admission check, renewal, record
// updates, transfers, and administrator parameter management.
//
// Every mutating operation runs as one serialized transaction: all
// precondition checks happen before the first write, failures abort with a
// coded error and no state change, and a notification is emitted only after
// the operation has committed.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"namereg/internal/oracle"
	"namereg/internal/platform/metrics"
	"namereg/internal/registry/events"
	"namereg/internal/registry/models"
	"namereg/internal/registry/store"
	"namereg/pkg/domain"
	dErrors "namereg/pkg/domain-errors"
	"namereg/pkg/platform/sentinel"
	"namereg/pkg/requestcontext"
)

// Service orchestrates the registry. Construct with New.
type Service struct {
	records   store.RecordStore
	params    store.ParamsStore
	tx        store.Tx
	oracle    oracle.BalanceOracle
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(records store.RecordStore, params store.ParamsStore, tx store.Tx, balances oracle.BalanceOracle, opts ...Option) *Service {
	s := &Service{
		records: records,
		params:  params,
		tx:      tx,
		oracle:  balances,
		tracer:  otel.Tracer("namereg/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -----------------------------------------------------------------------------
// Views (pure reads, no side effects)
// -----------------------------------------------------------------------------

// IsAvailable reports whether a name can be registered: never set, or its
// current record has expired.
func (s *Service) IsAvailable(ctx context.Context, name string) (bool, error) {
	rec, err := s.find(ctx, name)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return true, nil
	}
	return !rec.Live(requestcontext.Now(ctx)), nil
}

// OwnerOf returns the current owner, or the null identity once the record
// has expired, even though storage still holds the stale owner value.
func (s *Service) OwnerOf(ctx context.Context, name string) (domain.Identity, error) {
	rec, err := s.find(ctx, name)
	if err != nil {
		return domain.Zero, err
	}
	if rec == nil || rec.Expired(requestcontext.Now(ctx)) {
		return domain.Zero, nil
	}
	return rec.Owner, nil
}

// ExpiresAt returns the raw stored expiry. Never-registered names report the
// zero time; callers must not treat that alone as proof of expiry without
// also checking ownership.
func (s *Service) ExpiresAt(ctx context.Context, name string) (time.Time, error) {
	rec, err := s.find(ctx, name)
	if err != nil {
		return time.Time{}, err
	}
	if rec == nil {
		return time.Time{}, nil
	}
	return rec.ExpiresAt, nil
}

// GetRecord returns the raw stored record text regardless of expiry: reading
// the record of an expired name returns whatever was last set.
func (s *Service) GetRecord(ctx context.Context, name string) (string, error) {
	rec, err := s.find(ctx, name)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", nil
	}
	return rec.Record, nil
}

// OwnedCount returns the best-effort per-identity ownership counter. It
// tracks raw ownership slots, not live names.
func (s *Service) OwnedCount(ctx context.Context, owner domain.Identity) (uint64, error) {
	cnt, err := s.records.OwnedCount(ctx, owner)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read owned count")
	}
	return cnt, nil
}

// Params returns the current registry parameter set.
func (s *Service) Params(ctx context.Context) (*models.Params, error) {
	p, err := s.params.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry params")
	}
	return p, nil
}

// -----------------------------------------------------------------------------
// Name lifecycle operations
// -----------------------------------------------------------------------------

// Register claims a name for the caller. The name must be non-empty and
// available, and the caller's oracle-reported balance must meet the current
// threshold. On success the record is overwritten wholesale: any prior
// record text is discarded even when re-registering after expiry.
//
// The name string is keyed verbatim: no case or charset normalization
// happens here. The HTTP boundary lowercases names; other callers own their
// input.
func (s *Service) Register(ctx context.Context, name string) (*models.NameRecord, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Register")
	defer span.End()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, s.reject(dErrors.New(dErrors.CodeEmptyName, "name must not be empty"))
	}

	var (
		out   *models.NameRecord
		event events.Notification
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		rec, err := s.find(txCtx, name)
		if err != nil {
			return err
		}
		if rec != nil && rec.Live(now) {
			return dErrors.Newf(dErrors.CodeNameUnavailable, "name %q is taken", name)
		}

		p, err := s.params.Load(txCtx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry params")
		}

		// Admission check: the only oracle consultation in the registry.
		balance, err := s.oracle.BalanceOf(txCtx, caller)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "balance oracle query failed")
		}
		if balance < p.MinBalance {
			return dErrors.Newf(dErrors.CodeInsufficientBalance,
				"balance %d below threshold %d", balance, p.MinBalance)
		}

		fresh := &models.NameRecord{
			Name:      name,
			Owner:     caller,
			ExpiresAt: now.Add(p.Duration),
			Record:    "",
		}
		if err := s.records.Upsert(txCtx, fresh); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write name record")
		}
		// Unconditional: the previous owner's counter is not decremented on
		// an overwrite-after-expiry. Known drift of the best-effort counter.
		if err := s.records.IncrementOwned(txCtx, caller); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bump owned count")
		}

		out = fresh
		event = events.Notification{
			Type:      events.TypeRegistered,
			Actor:     caller,
			Timestamp: now,
			RequestID: requestcontext.RequestID(txCtx),
			Name:      name,
			ExpiresAt: fresh.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.emit(ctx, event)
	s.count(func(m *metrics.Metrics) { m.Registrations.Inc() })
	return out, nil
}

// Renew extends the caller's unexpired registration. Renewals stack: the
// extension is applied to the stored expiry, not to the current time, with
// no cap on accumulation. A stale owner of a lapsed name cannot renew; they
// must register again.
func (s *Service) Renew(ctx context.Context, name string) (*models.NameRecord, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Renew")
	defer span.End()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out   *models.NameRecord
		event events.Notification
	)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		rec, err := s.requireUnexpiredOwner(txCtx, name, caller, now)
		if err != nil {
			return err
		}
		p, err := s.params.Load(txCtx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry params")
		}

		// Unreachable after the ownership check, but kept so the extension
		// base can never sit in the past.
		base := rec.ExpiresAt
		if rec.Expired(now) {
			base = now
		}
		rec.ExpiresAt = base.Add(p.Duration)

		if err := s.records.Upsert(txCtx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write name record")
		}

		out = rec
		event = events.Notification{
			Type:      events.TypeRenewed,
			Actor:     caller,
			Timestamp: now,
			RequestID: requestcontext.RequestID(txCtx),
			Name:      name,
			ExpiresAt: rec.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.emit(ctx, event)
	s.count(func(m *metrics.Metrics) { m.Renewals.Inc() })
	return out, nil
}

// SetRecord replaces the record text verbatim. The core enforces no size
// limit; storage cost practicalities are the hosting environment's concern.
func (s *Service) SetRecord(ctx context.Context, name, record string) error {
	ctx, span := s.tracer.Start(ctx, "registry.SetRecord")
	defer span.End()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return err
	}

	var event events.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		rec, err := s.requireUnexpiredOwner(txCtx, name, caller, now)
		if err != nil {
			return err
		}
		rec.Record = record
		if err := s.records.Upsert(txCtx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write name record")
		}

		event = events.Notification{
			Type:      events.TypeRecordUpdated,
			Actor:     caller,
			Timestamp: now,
			RequestID: requestcontext.RequestID(txCtx),
			Name:      name,
			Record:    record,
		}
		return nil
	})
	if err != nil {
		return s.reject(err)
	}

	s.emit(ctx, event)
	s.count(func(m *metrics.Metrics) { m.RecordUpdates.Inc() })
	return nil
}

// Transfer hands the name to another identity. The expiry and record text
// are untouched; ownership counters move one slot from the previous owner
// (saturating at zero) to the new one.
func (s *Service) Transfer(ctx context.Context, name string, to domain.Identity) error {
	ctx, span := s.tracer.Start(ctx, "registry.Transfer")
	defer span.End()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return err
	}
	if to.IsZero() {
		return s.reject(dErrors.New(dErrors.CodeZeroTarget, "transfer target must not be the null identity"))
	}

	var event events.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		rec, err := s.requireUnexpiredOwner(txCtx, name, caller, now)
		if err != nil {
			return err
		}

		from := rec.Owner
		rec.Owner = to
		if err := s.records.Upsert(txCtx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write name record")
		}

		saturated, err := s.records.DecrementOwned(txCtx, from)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lower owned count")
		}
		if saturated {
			s.count(func(m *metrics.Metrics) { m.CounterSaturations.Inc() })
			s.log(txCtx, slog.LevelWarn, "owned counter saturated at zero on transfer",
				"owner", from.String(), "name", name)
		}
		if err := s.records.IncrementOwned(txCtx, to); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bump owned count")
		}

		event = events.Notification{
			Type:      events.TypeNameTransferred,
			Actor:     caller,
			Timestamp: now,
			RequestID: requestcontext.RequestID(txCtx),
			Name:      name,
			From:      from,
			To:        to,
		}
		return nil
	})
	if err != nil {
		return s.reject(err)
	}

	s.emit(ctx, event)
	s.count(func(m *metrics.Metrics) { m.Transfers.Inc() })
	return nil
}

// -----------------------------------------------------------------------------
// Administration
// -----------------------------------------------------------------------------

// UpdateParams overwrites the minimum balance and registration duration
// atomically. Administrator only; a zero duration is rejected.
func (s *Service) UpdateParams(ctx context.Context, minBalance uint64, duration time.Duration) error {
	ctx, span := s.tracer.Start(ctx, "registry.UpdateParams")
	defer span.End()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return err
	}
	if duration <= 0 {
		return s.reject(dErrors.New(dErrors.CodeInvalidDuration, "registration duration must be greater than zero"))
	}

	var event events.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.requireAdmin(txCtx, caller)
		if err != nil {
			return err
		}
		p.MinBalance = minBalance
		p.Duration = duration
		if err := s.params.Save(txCtx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registry params")
		}

		event = events.Notification{
			Type:       events.TypeParamsUpdated,
			Actor:      caller,
			Timestamp:  requestcontext.Now(txCtx),
			RequestID:  requestcontext.RequestID(txCtx),
			MinBalance: minBalance,
			Duration:   duration,
		}
		return nil
	})
	if err != nil {
		return s.reject(err)
	}

	s.emit(ctx, event)
	s.count(func(m *metrics.Metrics) { m.ParamsUpdates.Inc() })
	return nil
}

// TransferAdministrator hands registry administration to a new identity.
func (s *Service) TransferAdministrator(ctx context.Context, newAdmin domain.Identity) error {
	ctx, span := s.tracer.Start(ctx, "registry.TransferAdministrator")
	defer span.End()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return err
	}
	if newAdmin.IsZero() {
		return s.reject(dErrors.New(dErrors.CodeZeroTarget, "new administrator must not be the null identity"))
	}

	var event events.Notification
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.requireAdmin(txCtx, caller)
		if err != nil {
			return err
		}
		previous := p.Admin
		p.Admin = newAdmin
		if err := s.params.Save(txCtx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registry params")
		}

		event = events.Notification{
			Type:          events.TypeOwnershipTransferred,
			Actor:         caller,
			Timestamp:     requestcontext.Now(txCtx),
			RequestID:     requestcontext.RequestID(txCtx),
			PreviousAdmin: previous,
			NewAdmin:      newAdmin,
		}
		return nil
	})
	if err != nil {
		return s.reject(err)
	}

	s.emit(ctx, event)
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// find translates the store's not-found sentinel into a nil record so the
// lifecycle logic can treat "never registered" uniformly.
func (s *Service) find(ctx context.Context, name string) (*models.NameRecord, error) {
	rec, err := s.records.Find(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read name record")
	}
	return rec, nil
}

// requireUnexpiredOwner is the shared authorization predicate for renew,
// setRecord, and transfer. Expired and never-registered names both yield the
// same rejection: rights are coupled strictly to non-expiry, with no grace
// period.
func (s *Service) requireUnexpiredOwner(ctx context.Context, name string, caller domain.Identity, now time.Time) (*models.NameRecord, error) {
	rec, err := s.find(ctx, name)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.OwnedBy(caller, now) {
		return nil, dErrors.Newf(dErrors.CodeNotAuthorized, "caller is not the unexpired owner of %q", name)
	}
	return rec, nil
}

func (s *Service) requireAdmin(ctx context.Context, caller domain.Identity) (*models.Params, error) {
	p, err := s.params.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry params")
	}
	if caller != p.Admin {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "caller is not the administrator")
	}
	return p, nil
}

func (s *Service) requireCaller(ctx context.Context) (domain.Identity, error) {
	caller := requestcontext.CallerID(ctx)
	if caller.IsZero() {
		return domain.Zero, dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	return caller, nil
}

// emit publishes a notification after a committed mutation. Sink failures
// are logged and swallowed: observers are best-effort, state is not.
func (s *Service) emit(ctx context.Context, n events.Notification) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Emit(ctx, n); err != nil {
		s.log(ctx, slog.LevelError, "failed to emit notification",
			"event", string(n.Type), "name", n.Name, "error", err.Error())
	}
}

// reject counts a failed operation by reason code and passes the error
// through unchanged.
func (s *Service) reject(err error) error {
	s.count(func(m *metrics.Metrics) {
		m.Rejections.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
	})
	return err
}

func (s *Service) count(fn func(m *metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}

func (s *Service) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, args...)
	}
}
