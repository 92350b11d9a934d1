package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flashnotes/flashnotes/internal/database"
)

// PostgresStore keeps quota records in the ai_usage_quotas table.
type PostgresStore struct {
	db database.DBTX
}

// NewPostgresStore creates a Store backed by PostgreSQL.
func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Fetch(ctx context.Context, userID uuid.UUID) (*Record, error) {
	var rec Record
	err := s.db.QueryRow(ctx,
		`SELECT user_id, usage_count, last_reset_time FROM ai_usage_quotas WHERE user_id = $1`, userID,
	).Scan(&rec.UserID, &rec.UsageCount, &rec.LastResetTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying ai usage quota: %w", err)
	}
	return &rec, nil
}

// CreateIfAbsent relies on the unique user_id constraint; a row that already
// exists leaves the insert with zero affected rows.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, rec Record) (CreateResult, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO ai_usage_quotas (user_id, usage_count, last_reset_time)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		rec.UserID, rec.UsageCount, rec.LastResetTime)
	if err != nil {
		return Conflict, fmt.Errorf("inserting ai usage quota: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Conflict, nil
	}
	return Created, nil
}

func (s *PostgresStore) ConditionalUpdate(ctx context.Context, userID uuid.UUID, pred Predicate, mut Mutation) (int64, error) {
	query, args, err := buildConditionalUpdate(userID, pred, mut)
	if err != nil {
		return 0, err
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("updating ai usage quota: %w", err)
	}
	return tag.RowsAffected(), nil
}

// buildConditionalUpdate renders a single UPDATE ... WHERE statement so the
// predicate is evaluated by the database under the row lock.
func buildConditionalUpdate(userID uuid.UUID, pred Predicate, mut Mutation) (string, []any, error) {
	var sets []string
	var conditions []string
	args := []any{userID}
	argIdx := 2

	switch {
	case mut.SetUsage != nil && mut.IncrementUsage:
		return "", nil, errors.New("mutation cannot both set and increment usage")
	case mut.SetUsage != nil:
		sets = append(sets, fmt.Sprintf("usage_count = $%d", argIdx))
		args = append(args, *mut.SetUsage)
		argIdx++
	case mut.IncrementUsage:
		sets = append(sets, "usage_count = usage_count + 1")
	}

	if mut.SetResetTime != nil {
		sets = append(sets, fmt.Sprintf("last_reset_time = $%d", argIdx))
		args = append(args, *mut.SetResetTime)
		argIdx++
	}

	if len(sets) == 0 {
		return "", nil, errors.New("mutation has no changes")
	}

	conditions = append(conditions, "user_id = $1")

	if pred.ResetAtOrBefore != nil {
		conditions = append(conditions, fmt.Sprintf("last_reset_time <= $%d", argIdx))
		args = append(args, *pred.ResetAtOrBefore)
		argIdx++
	}

	if pred.ResetAfter != nil {
		conditions = append(conditions, fmt.Sprintf("last_reset_time > $%d", argIdx))
		args = append(args, *pred.ResetAfter)
		argIdx++
	}

	if pred.UsageBelow != nil {
		conditions = append(conditions, fmt.Sprintf("usage_count < $%d", argIdx))
		args = append(args, *pred.UsageBelow)
	}

	query := fmt.Sprintf("UPDATE ai_usage_quotas SET %s WHERE %s",
		strings.Join(sets, ", "), strings.Join(conditions, " AND "))
	return query, args, nil
}
