package quota

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrStorageUnavailable wraps every failure of the underlying Store.
var ErrStorageUnavailable = errors.New("quota storage unavailable")

// Record matches the ai_usage_quotas table: one row per user, mutated in place.
type Record struct {
	UserID        uuid.UUID `json:"user_id"`
	UsageCount    int       `json:"usage_count"`
	LastResetTime time.Time `json:"last_reset_time"`
}

// Status is the read-only view returned to API callers.
type Status struct {
	UsageCount      int       `json:"usage_count"`
	MaxUsageAllowed int       `json:"max_usage_allowed"`
	ResetDate       time.Time `json:"reset_date"`
}

// Config holds the ledger limits.
type Config struct {
	MaxUsageAllowed int
	Window          time.Duration
}

func (c Config) Validate() error {
	if c.MaxUsageAllowed < 1 {
		return fmt.Errorf("max usage allowed must be at least 1, got %d", c.MaxUsageAllowed)
	}
	if c.Window <= 0 {
		return fmt.Errorf("quota window must be positive, got %s", c.Window)
	}
	return nil
}

// CreateResult is the outcome of Store.CreateIfAbsent.
type CreateResult int

const (
	Created CreateResult = iota
	Conflict
)

func (r CreateResult) String() string {
	switch r {
	case Created:
		return "created"
	case Conflict:
		return "conflict"
	default:
		return fmt.Sprintf("CreateResult(%d)", int(r))
	}
}

// Predicate restricts a conditional update. Nil fields are not checked; the
// user id is always part of the predicate.
type Predicate struct {
	ResetAtOrBefore *time.Time
	ResetAfter      *time.Time
	UsageBelow      *int
}

// Mutation describes the values written when the predicate holds.
type Mutation struct {
	SetUsage       *int
	IncrementUsage bool
	SetResetTime   *time.Time
}

// Outcome of a single CheckAndIncrement call, used for metrics and events.
type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeReset       Outcome = "reset"
	OutcomeIncremented Outcome = "incremented"
	OutcomeDenied      Outcome = "denied"
	OutcomeError       Outcome = "error"
)

// Admitted reports whether the outcome lets the triggering action proceed.
func (o Outcome) Admitted() bool {
	return o == OutcomeCreated || o == OutcomeReset || o == OutcomeIncremented
}
