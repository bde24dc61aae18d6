package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saeid-a/coachmatch/internal/models"
)

const (
	RetryQueueKey  = "coachmatch:notifications:retry"
	FailedQueueKey = "coachmatch:notifications:failed"
)

// RetryJob is a notification whose write failed, with the number of write
// attempts made so far.
type RetryJob struct {
	Notification models.Notification `json:"notification"`
	Tries        int                 `json:"tries"`
	Created      time.Time           `json:"created"`
}

// RetryQueue is a Redis list of notifications that still need to be
// written. Jobs are pushed on the left and popped from the right.
type RetryQueue struct {
	redis *redis.Client
	now   func() time.Time
}

func NewRetryQueue(client *redis.Client) *RetryQueue {
	return &RetryQueue{redis: client, now: time.Now}
}

func (q *RetryQueue) Enqueue(ctx context.Context, notification models.Notification) error {
	return q.push(ctx, RetryQueueKey, RetryJob{
		Notification: notification,
		Created:      q.now(),
	})
}

// Next blocks for up to wait for a job. It returns nil, nil when the queue
// stayed empty.
func (q *RetryQueue) Next(ctx context.Context, wait time.Duration) (*RetryJob, error) {
	result, err := q.redis.BRPop(ctx, wait, RetryQueueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job RetryJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("decode retry job: %w", err)
	}
	return &job, nil
}

func (q *RetryQueue) Requeue(ctx context.Context, job RetryJob) error {
	return q.push(ctx, RetryQueueKey, job)
}

// Fail parks a job that ran out of attempts together with the last error.
func (q *RetryQueue) Fail(ctx context.Context, job RetryJob, cause error) error {
	data, err := json.Marshal(map[string]any{
		"job":   job,
		"error": cause.Error(),
		"time":  q.now(),
	})
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, FailedQueueKey, string(data)).Err()
}

func (q *RetryQueue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, RetryQueueKey).Result()
}

func (q *RetryQueue) push(ctx context.Context, key string, job RetryJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, key, data).Err()
}
