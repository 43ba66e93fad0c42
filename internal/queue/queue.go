package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// JobName identifies what a worker should do with a job
type JobName string

const (
	JobReservationConfirmed JobName = "reservation_confirmed"
	JobReservationReleased  JobName = "reservation_released"
	JobDailyReminders       JobName = "daily_reminders"
	JobMonthlyReports       JobName = "monthly_reports"
)

// DefaultKey is the Redis list holding pending jobs
const DefaultKey = "parkpal:jobs"

// Job is a unit of asynchronous notification work
type Job struct {
	ID            string    `json:"id"`
	Name          JobName   `json:"name"`
	ReservationID uint      `json:"reservation_id,omitempty"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// RedisQueue is a FIFO job queue backed by a Redis list.
// Producers LPUSH, consumers BRPOP.
type RedisQueue struct {
	redis *redis.Client
	key   string
}

// NewRedisQueue creates a new RedisQueue
func NewRedisQueue(redisClient *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{
		redis: redisClient,
		key:   key,
	}
}

// Enqueue pushes a job. reservationID is 0 for scheduled jobs.
func (q *RedisQueue) Enqueue(ctx context.Context, name JobName, reservationID uint) (*Job, error) {
	job := &Job{
		ID:            uuid.New().String(),
		Name:          name,
		ReservationID: reservationID,
		EnqueuedAt:    time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}

	if err := q.redis.LPush(ctx, q.key, data).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", name, err)
	}

	return job, nil
}

// Dequeue blocks up to timeout for the next job.
// It returns nil, nil when the timeout expires with an empty queue.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.redis.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	// result[0] is the key, result[1] the payload
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(result))
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

// Len returns the number of pending jobs
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.key).Result()
}
