package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/uroborus2s/campus-sync/internal/config"
	"github.com/uroborus2s/campus-sync/internal/models"
)

const (
	redisKeyHigh = "campus-sync:jobs:high"
	redisKeyLow  = "campus-sync:jobs:low"

	dequeueBlock = 2 * time.Second
)

var (
	_ models.JobQueue = (*RedisQueue)(nil)
	_ Consumer        = (*RedisQueue)(nil)
)

// RedisQueue persists jobs in two Redis lists, one per priority. BRPOP's
// multi-key form gives high priority strict precedence. Jobs survive process
// restarts; idempotent executors make at-least-once delivery safe.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a RedisQueue from the Redis configuration.
func NewRedisQueue(cfg config.Redis) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisQueue{client: client}
}

// Ping verifies connectivity.
func (q *RedisQueue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Enqueue implements models.JobQueue.
func (q *RedisQueue) Enqueue(ctx context.Context, job models.Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}
	key := redisKeyLow
	if job.Priority == models.PriorityHigh {
		key = redisKeyHigh
	}
	if err := q.client.LPush(ctx, key, payload).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return job.ID, nil
}

// Dequeue implements Consumer. It blocks in short intervals so context
// cancellation is observed promptly.
func (q *RedisQueue) Dequeue(ctx context.Context) (*models.Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := q.client.BRPop(ctx, dequeueBlock, redisKeyHigh, redisKeyLow).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to dequeue: %w", err)
		}
		// res is [key, payload]
		var job models.Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job: %w", err)
		}
		return &job, nil
	}
}

// Close releases the underlying client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
