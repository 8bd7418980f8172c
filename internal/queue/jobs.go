// Package queue adapts the durable Redis-backed work queue. Jobs carry only
// the video id: the worker reloads the record from the database so it always
// operates on current persisted state, never a stale snapshot.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/StreamVault/internal/config"
	"github.com/dharsanguruparan/StreamVault/internal/metrics"
)

const (
	// TypeProcessVideo is scheduled each time a video passes upload
	// validation.
	TypeProcessVideo = "video:process"

	queueName = "default"
)

var (
	// ErrQueueFull signals the backpressure threshold was hit; the asset
	// stays pending and the enqueue must be retried later.
	ErrQueueFull = errors.New("queue at capacity")
	// ErrQueueUnavailable signals the broker cannot be reached; the caller
	// treats this as a processing failure for the asset.
	ErrQueueUnavailable = errors.New("queue unavailable")
)

// ProcessPayload is serialized into the task so the worker knows which video
// to load.
type ProcessPayload struct {
	VideoID string `json:"video_id"`
}

// Enqueuer submits processing jobs with backpressure awareness.
type Enqueuer struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	maxDepth  int
	timeout   time.Duration
	retention time.Duration
}

// NewEnqueuer constructs an Enqueuer against the configured Redis broker.
func NewEnqueuer(cfg *config.Config) *Enqueuer {
	opt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	return &Enqueuer{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		maxDepth:  cfg.MaxQueueDepth,
		timeout:   cfg.JobTimeout,
		retention: cfg.FailureRetention,
	}
}

// EnqueueProcess submits the async phase for a video and returns the job id.
// The depth check runs first: past the threshold the job is rejected with
// ErrQueueFull instead of piling on. Retries on ErrQueueFull are the caller's
// responsibility (a later save or an operator requeue).
func (e *Enqueuer) EnqueueProcess(ctx context.Context, videoID string) (string, error) {
	depth, err := e.pendingDepth(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	metrics.QueueDepth.Set(float64(depth))
	if depth > e.maxDepth {
		return "", fmt.Errorf("%w: %d pending jobs", ErrQueueFull, depth)
	}

	data, err := json.Marshal(ProcessPayload{VideoID: videoID})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	// MaxRetry(0): the orchestrator owns its own retry semantics and turns
	// failures into a persisted status, so queue-level redelivery would only
	// reprocess completed state transitions.
	info, err := e.client.EnqueueContext(ctx, asynq.NewTask(TypeProcessVideo, data),
		asynq.Queue(queueName),
		asynq.MaxRetry(0),
		asynq.Timeout(e.timeout),
		asynq.Retention(e.retention),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return info.ID, nil
}

func (e *Enqueuer) pendingDepth(_ context.Context) (int, error) {
	info, err := e.inspector.GetQueueInfo(queueName)
	if err != nil {
		// A broker that has never seen the queue reports it missing; that
		// simply means depth zero.
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return info.Pending, nil
}

// Close releases the underlying broker connections.
func (e *Enqueuer) Close() error {
	if err := e.client.Close(); err != nil {
		return err
	}
	return e.inspector.Close()
}
