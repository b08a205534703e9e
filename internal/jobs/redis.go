package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"promptmaster/internal/domain"
)

const (
	jobKeyPrefix = "promptmaster:job:"
	genKeyPrefix = "promptmaster:gen:"
)

// RedisStore shares job records and generation counters between API
// replicas. Records expire after ttl.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.rdb.Set(ctx, jobKeyPrefix+job.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Job, error) {
	payload, err := s.rdb.Get(ctx, jobKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return Job{}, fmt.Errorf("load job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Job{}, fmt.Errorf("decode job %s: %w", id, err)
	}
	return job, nil
}

func (s *RedisStore) NextGeneration(ctx context.Context, sessionID string) (uint64, error) {
	key := genKeyPrefix + sessionID
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("next generation for %s: %w", sessionID, err)
	}
	return uint64(incr.Val()), nil
}

func (s *RedisStore) CurrentGeneration(ctx context.Context, sessionID string) (uint64, error) {
	n, err := s.rdb.Get(ctx, genKeyPrefix+sessionID).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current generation for %s: %w", sessionID, err)
	}
	return n, nil
}

var _ Store = (*RedisStore)(nil)
