package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "ai_quota:"
	fieldUsageCount  = "usage_count"
	fieldLastResetUs = "last_reset_us"
)

// Both scripts run atomically inside Redis, which serializes them per key.
// A hash missing either field counts as absent: Fetch reports no record, the
// update matches nothing and create overwrites it.
var (
	createScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], 'usage_count') == 1 and redis.call('HEXISTS', KEYS[1], 'last_reset_us') == 1 then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'usage_count', ARGV[1], 'last_reset_us', ARGV[2])
return 1
`)

	// ARGV: reset_at_or_before, reset_after, usage_below, set_usage, increment, set_reset.
	// Empty strings mean "not set".
	conditionalUpdateScript = redis.NewScript(`
local usage = redis.call('HGET', KEYS[1], 'usage_count')
local reset = redis.call('HGET', KEYS[1], 'last_reset_us')
if not usage or not reset then
	return 0
end
usage = tonumber(usage)
reset = tonumber(reset)
if ARGV[1] ~= '' and reset > tonumber(ARGV[1]) then
	return 0
end
if ARGV[2] ~= '' and reset <= tonumber(ARGV[2]) then
	return 0
end
if ARGV[3] ~= '' and usage >= tonumber(ARGV[3]) then
	return 0
end
if ARGV[4] ~= '' then
	usage = tonumber(ARGV[4])
end
if ARGV[5] == '1' then
	usage = usage + 1
end
redis.call('HSET', KEYS[1], 'usage_count', usage)
if ARGV[6] ~= '' then
	redis.call('HSET', KEYS[1], 'last_reset_us', ARGV[6])
end
return 1
`)
)

// RedisStore keeps quota records in Redis hashes. Timestamps are stored with
// microsecond precision, the same as PostgreSQL timestamptz.
type RedisStore struct {
	rdb redis.Cmdable
}

// NewRedisStore creates a Store backed by Redis.
func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(userID uuid.UUID) string {
	return redisKeyPrefix + userID.String()
}

func (s *RedisStore) Fetch(ctx context.Context, userID uuid.UUID) (*Record, error) {
	vals, err := s.rdb.HMGet(ctx, redisKey(userID), fieldUsageCount, fieldLastResetUs).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget %s: %w", redisKey(userID), err)
	}
	if vals[0] == nil || vals[1] == nil {
		return nil, nil
	}

	usage, err := strconv.Atoi(fmt.Sprint(vals[0]))
	if err != nil {
		return nil, fmt.Errorf("parsing usage count: %w", err)
	}
	resetUs, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing last reset time: %w", err)
	}

	return &Record{
		UserID:        userID,
		UsageCount:    usage,
		LastResetTime: time.UnixMicro(resetUs).UTC(),
	}, nil
}

func (s *RedisStore) CreateIfAbsent(ctx context.Context, rec Record) (CreateResult, error) {
	created, err := createScript.Run(ctx, s.rdb, []string{redisKey(rec.UserID)},
		rec.UsageCount, rec.LastResetTime.UnixMicro()).Int64()
	if err != nil {
		return Conflict, fmt.Errorf("creating quota record: %w", err)
	}
	if created == 0 {
		return Conflict, nil
	}
	return Created, nil
}

func (s *RedisStore) ConditionalUpdate(ctx context.Context, userID uuid.UUID, pred Predicate, mut Mutation) (int64, error) {
	if mut.SetUsage != nil && mut.IncrementUsage {
		return 0, errors.New("mutation cannot both set and increment usage")
	}

	args := []any{
		optionalMicros(pred.ResetAtOrBefore),
		optionalMicros(pred.ResetAfter),
		optionalInt(pred.UsageBelow),
		optionalInt(mut.SetUsage),
		"0",
		optionalMicros(mut.SetResetTime),
	}
	if mut.IncrementUsage {
		args[4] = "1"
	}

	n, err := conditionalUpdateScript.Run(ctx, s.rdb, []string{redisKey(userID)}, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("updating quota record: %w", err)
	}
	return n, nil
}

func optionalMicros(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.UnixMicro(), 10)
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
