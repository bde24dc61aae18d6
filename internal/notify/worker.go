package notify

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/saeid-a/coachmatch/internal/metrics"
	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/services"
)

type notificationWriter interface {
	Create(ctx context.Context, notification models.Notification) (*models.Notification, error)
}

type retrySource interface {
	Next(ctx context.Context, wait time.Duration) (*RetryJob, error)
	Requeue(ctx context.Context, job RetryJob) error
	Fail(ctx context.Context, job RetryJob, cause error) error
	Len(ctx context.Context) (int64, error)
}

// RetryWorker drains the retry queue and writes the notifications that the
// dispatcher could not store. Writes are idempotent on the notification id.
type RetryWorker struct {
	queue    retrySource
	store    notificationWriter
	sinks    []services.NotificationSink
	maxTries int
	timeout  time.Duration
	wait     time.Duration
	backoff  func() backoff.BackOff
}

func NewRetryWorker(
	queue retrySource,
	store notificationWriter,
	maxTries int,
	timeout time.Duration,
	sinks ...services.NotificationSink,
) *RetryWorker {
	if maxTries <= 0 {
		maxTries = 5
	}
	if timeout <= 0 {
		timeout = services.DefaultRepositoryTimeout
	}
	return &RetryWorker{
		queue:    queue,
		store:    store,
		sinks:    sinks,
		maxTries: maxTries,
		timeout:  timeout,
		wait:     2 * time.Second,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

func (w *RetryWorker) Start(ctx context.Context) {
	log.Println("notification retry worker started")

	for {
		select {
		case <-ctx.Done():
			log.Println("notification retry worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

// processNext handles at most one job and reports whether it found one.
func (w *RetryWorker) processNext(ctx context.Context) bool {
	job, err := w.queue.Next(ctx, w.wait)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("notification retry queue read failed: %v", err)
			time.Sleep(w.wait)
		}
		return false
	}
	if job == nil {
		return false
	}
	defer w.refreshQueueLength(ctx)

	job.Tries++
	stored, err := backoff.Retry(ctx, func() (*models.Notification, error) {
		callCtx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()
		return w.store.Create(callCtx, job.Notification)
	}, backoff.WithBackOff(w.backoff()), backoff.WithMaxTries(3))
	if err != nil {
		w.handleFailure(ctx, *job, err)
		return true
	}

	metrics.RecordNotification(string(stored.Type), "retried")
	for _, sink := range w.sinks {
		callCtx, cancel := context.WithTimeout(ctx, w.timeout)
		if err := sink.Publish(callCtx, *stored); err != nil {
			log.Printf("notification %s publish failed: %v", stored.ID, err)
		}
		cancel()
	}
	return true
}

func (w *RetryWorker) handleFailure(ctx context.Context, job RetryJob, cause error) {
	if errors.Is(cause, context.Canceled) {
		// Shutting down; put the job back untouched.
		job.Tries--
		if err := w.queue.Requeue(context.WithoutCancel(ctx), job); err != nil {
			log.Printf("notification %s lost on shutdown: %v", job.Notification.ID, err)
		}
		return
	}

	if job.Tries < w.maxTries {
		log.Printf("notification %s write failed (attempt %d): %v", job.Notification.ID, job.Tries, cause)
		if err := w.queue.Requeue(ctx, job); err != nil {
			log.Printf("notification %s could not be requeued: %v", job.Notification.ID, err)
		}
		return
	}

	log.Printf("notification %s failed after %d attempts: %v", job.Notification.ID, job.Tries, cause)
	metrics.RecordNotification(string(job.Notification.Type), "abandoned")
	if err := w.queue.Fail(ctx, job, cause); err != nil {
		log.Printf("notification %s could not be moved to failed queue: %v", job.Notification.ID, err)
	}
}

func (w *RetryWorker) refreshQueueLength(ctx context.Context) {
	length, err := w.queue.Len(ctx)
	if err != nil {
		return
	}
	metrics.NotificationRetryQueueLength.Set(float64(length))
}
