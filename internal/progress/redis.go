package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/songmigrate/internal/models"
	"github.com/desertthunder/songmigrate/internal/shared"
	"github.com/go-redis/redis/v8"
)

// DefaultTTL bounds how long session keys survive after the last write.
const DefaultTTL = time.Hour

// NewRedisClient parses a redis:// URL into a pooled client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %v", shared.ErrInvalidConfig, err)
	}
	opts.PoolSize = 10
	return redis.NewClient(opts), nil
}

// RedisStore implements [Store] on Redis. Every key expires after ttl. Progress
// and status writes also extend the session's job claim, so a long transfer
// keeps holding its session.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store; a zero ttl uses [DefaultTTL].
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) progressKey(id string) string { return s.prefix + "progress:" + id }
func (s *RedisStore) statusKey(id string) string   { return s.prefix + "task_status_" + id }
func (s *RedisStore) cancelKey(id string) string   { return s.prefix + "cancel:" + id }
func (s *RedisStore) jobKey(handle string) string  { return s.prefix + "job:" + handle }
func (s *RedisStore) activeKey(id string) string   { return s.prefix + "active:" + id }
func (s *RedisStore) resultKey(handle string) string {
	return s.prefix + "job_result:" + handle
}

// finishScript records a job result and releases the session claim only
// when the finishing handle still holds it.
//
// KEYS: active, progress, result. ARGV: handle, status, ttl seconds.
var finishScript = redis.NewScript(`
local pct = '0'
if redis.call('GET', KEYS[1]) == ARGV[1] then
	pct = redis.call('GET', KEYS[2]) or '0'
	redis.call('DEL', KEYS[1])
end
if ARGV[2] == 'completed' then
	pct = '100'
end
redis.call('HSET', KEYS[3], 'status', ARGV[2], 'progress', pct)
redis.call('EXPIRE', KEYS[3], ARGV[3])
return 1
`)

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis: %v", shared.ErrServiceUnavailable, err)
	}
	return nil
}

func (s *RedisStore) SetProgress(ctx context.Context, sessionID string, percent float64) error {
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.progressKey(sessionID), percent, s.ttl)
		p.Expire(ctx, s.activeKey(sessionID), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func (s *RedisStore) Progress(ctx context.Context, sessionID string) (float64, error) {
	v, err := s.client.Get(ctx, s.progressKey(sessionID)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: progress for session %s", shared.ErrNotFound, sessionID)
	} else if err != nil {
		return 0, fmt.Errorf("failed to get progress: %w", err)
	}
	return v, nil
}

func (s *RedisStore) SetStatus(ctx context.Context, sessionID string, status models.Status) error {
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.statusKey(sessionID), string(status), s.ttl)
		p.Expire(ctx, s.activeKey(sessionID), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func (s *RedisStore) Status(ctx context.Context, sessionID string) (models.Status, error) {
	v, err := s.client.Get(ctx, s.statusKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: status for session %s", shared.ErrNotFound, sessionID)
	} else if err != nil {
		return "", fmt.Errorf("failed to get status: %w", err)
	}
	return models.ParseStatus(v)
}

func (s *RedisStore) RequestCancel(ctx context.Context, sessionID string) error {
	if err := s.client.Set(ctx, s.cancelKey(sessionID), 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cancel flag: %w", err)
	}
	return nil
}

func (s *RedisStore) CancelRequested(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.cancelKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read cancel flag: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) ClearCancel(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.cancelKey(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to clear cancel flag: %w", err)
	}
	return nil
}

func (s *RedisStore) BindJob(ctx context.Context, handle, sessionID string) error {
	if err := s.client.Set(ctx, s.jobKey(handle), sessionID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to bind job: %w", err)
	}
	return nil
}

func (s *RedisStore) SessionForJob(ctx context.Context, handle string) (string, error) {
	v, err := s.client.Get(ctx, s.jobKey(handle)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: job %s", shared.ErrNotFound, handle)
	} else if err != nil {
		return "", fmt.Errorf("failed to get job: %w", err)
	}
	return v, nil
}

func (s *RedisStore) ClaimSession(ctx context.Context, sessionID, handle string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.activeKey(sessionID), handle, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim session: %w", err)
	}
	if ok {
		return true, nil
	}
	cur, err := s.ActiveJob(ctx, sessionID)
	if err != nil {
		return false, nil
	}
	return cur == handle, nil
}

func (s *RedisStore) ActiveJob(ctx context.Context, sessionID string) (string, error) {
	v, err := s.client.Get(ctx, s.activeKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: active job for session %s", shared.ErrNotFound, sessionID)
	} else if err != nil {
		return "", fmt.Errorf("failed to get active job: %w", err)
	}
	return v, nil
}

func (s *RedisStore) FinishJob(ctx context.Context, sessionID, handle string, status models.Status) error {
	keys := []string{s.activeKey(sessionID), s.progressKey(sessionID), s.resultKey(handle)}
	ttl := max(int64(s.ttl/time.Second), 1)
	if err := finishScript.Run(ctx, s.client, keys, handle, string(status), ttl).Err(); err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	return nil
}

func (s *RedisStore) JobResult(ctx context.Context, handle string) (JobResult, error) {
	fields, err := s.client.HGetAll(ctx, s.resultKey(handle)).Result()
	if err != nil {
		return JobResult{}, fmt.Errorf("failed to get job result: %w", err)
	}
	if len(fields) == 0 {
		return JobResult{}, fmt.Errorf("%w: result for job %s", shared.ErrNotFound, handle)
	}

	status, err := models.ParseStatus(fields["status"])
	if err != nil {
		return JobResult{}, err
	}
	pct, err := strconv.ParseFloat(fields["progress"], 64)
	if err != nil {
		return JobResult{}, fmt.Errorf("failed to parse job progress: %w", err)
	}
	return JobResult{Status: status, Progress: pct}, nil
}
