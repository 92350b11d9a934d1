package quota

import (
	"context"

	"github.com/google/uuid"
)

// Store is the storage capability the ledger relies on. Implementations must
// evaluate CreateIfAbsent and ConditionalUpdate atomically per user row.
type Store interface {
	// Fetch returns the user's record, or nil when none exists.
	Fetch(ctx context.Context, userID uuid.UUID) (*Record, error)

	// CreateIfAbsent inserts rec unless a record for rec.UserID already exists.
	CreateIfAbsent(ctx context.Context, rec Record) (CreateResult, error)

	// ConditionalUpdate applies mut to the user's record only if pred holds and
	// returns the number of affected rows (0 or 1).
	ConditionalUpdate(ctx context.Context, userID uuid.UUID, pred Predicate, mut Mutation) (int64, error)
}
