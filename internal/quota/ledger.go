package quota

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/flashnotes/flashnotes/internal/metrics"
	inats "github.com/flashnotes/flashnotes/internal/nats"
)

// EventPublisher receives ledger events. It is optional.
type EventPublisher interface {
	PublishQuotaEvent(ctx context.Context, event inats.QuotaEvent) error
}

// Ledger tracks per-user AI usage over a rolling window. It keeps no mutable
// state of its own: every read-check-write is a single conditional update in
// the Store, so concurrent callers never need an application lock.
type Ledger struct {
	store  Store
	cfg    Config
	clock  Clock
	events EventPublisher
}

type Option func(*Ledger)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithEvents publishes window resets and denials.
func WithEvents(p EventPublisher) Option {
	return func(l *Ledger) { l.events = p }
}

// NewLedger creates a Ledger. cfg must pass Config.Validate.
func NewLedger(store Store, cfg Config, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		cfg:   cfg,
		clock: SystemClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the limits the ledger enforces.
func (l *Ledger) Config() Config {
	return l.cfg
}

// Status returns the user's usage in the current window without mutating it.
func (l *Ledger) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	rec, err := l.store.Fetch(ctx, userID)
	if err != nil {
		return nil, storageError("fetching quota", err)
	}

	if rec == nil {
		return &Status{
			UsageCount:      0,
			MaxUsageAllowed: l.cfg.MaxUsageAllowed,
			ResetDate:       l.clock.Now().Add(l.cfg.Window),
		}, nil
	}

	return &Status{
		UsageCount:      rec.UsageCount,
		MaxUsageAllowed: l.cfg.MaxUsageAllowed,
		ResetDate:       rec.LastResetTime.Add(l.cfg.Window),
	}, nil
}

// CheckAndIncrement admits one AI-consuming action for the user. It returns
// false, with no mutation, when the quota for the current window is used up.
// Storage failures are returned as errors wrapping ErrStorageUnavailable.
func (l *Ledger) CheckAndIncrement(ctx context.Context, userID uuid.UUID) (bool, error) {
	outcome, err := l.checkAndIncrement(ctx, userID)
	metrics.AIQuotaChecksTotal.WithLabelValues(string(outcome)).Inc()
	if err != nil {
		return false, err
	}

	switch outcome {
	case OutcomeReset:
		l.publish(ctx, userID, inats.QuotaEventWindowReset)
	case OutcomeDenied:
		slog.Info("quota: AI usage denied", "user_id", userID, "limit", l.cfg.MaxUsageAllowed)
		l.publish(ctx, userID, inats.QuotaEventExhausted)
	}

	return outcome.Admitted(), nil
}

func (l *Ledger) checkAndIncrement(ctx context.Context, userID uuid.UUID) (Outcome, error) {
	now := l.clock.Now()
	threshold := now.Add(-l.cfg.Window)

	rec, err := l.store.Fetch(ctx, userID)
	if err != nil {
		return OutcomeError, storageError("fetching quota", err)
	}

	if rec == nil {
		res, err := l.store.CreateIfAbsent(ctx, Record{UserID: userID, UsageCount: 1, LastResetTime: now})
		if err != nil {
			return OutcomeError, storageError("creating quota", err)
		}
		if res == Created {
			return OutcomeCreated, nil
		}

		// Lost the creation race: reload and continue with reset/increment.
		metrics.AIQuotaCreateConflictsTotal.Inc()
		rec, err = l.store.Fetch(ctx, userID)
		if err != nil {
			return OutcomeError, storageError("reloading quota", err)
		}
		slog.Debug("quota: record created concurrently, falling back to update",
			"user_id", userID, "found", rec != nil)
	}

	one := 1
	n, err := l.store.ConditionalUpdate(ctx, userID,
		Predicate{ResetAtOrBefore: &threshold},
		Mutation{SetUsage: &one, SetResetTime: &now})
	if err != nil {
		return OutcomeError, storageError("resetting quota window", err)
	}
	if n > 0 {
		return OutcomeReset, nil
	}

	limit := l.cfg.MaxUsageAllowed
	n, err = l.store.ConditionalUpdate(ctx, userID,
		Predicate{ResetAfter: &threshold, UsageBelow: &limit},
		Mutation{IncrementUsage: true})
	if err != nil {
		return OutcomeError, storageError("incrementing quota", err)
	}
	if n > 0 {
		return OutcomeIncremented, nil
	}
	return OutcomeDenied, nil
}

func (l *Ledger) publish(ctx context.Context, userID uuid.UUID, eventType string) {
	if l.events == nil {
		return
	}
	event := inats.QuotaEvent{
		UserID:     userID,
		EventType:  eventType,
		UsageLimit: l.cfg.MaxUsageAllowed,
		Timestamp:  l.clock.Now(),
	}
	if err := l.events.PublishQuotaEvent(ctx, event); err != nil {
		slog.Warn("quota: publishing event failed", "error", err, "event_type", eventType, "user_id", userID)
	}
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
