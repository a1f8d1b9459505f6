package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"asset-workers/internal/common/config"
	"asset-workers/internal/common/errors"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/common/metrics"
)

// Per-queue key layout:
//
//	{prefix}:{queue}:waiting    LIST  jobs ready for pickup
//	{prefix}:{queue}:active     LIST  jobs held by a worker
//	{prefix}:{queue}:delayed    ZSET  scored by ready-at unix millis
//	{prefix}:{queue}:completed  ZSET  bounded history, scored by finish time
//	{prefix}:{queue}:failed     ZSET  bounded history, scored by failure time
type Queue struct {
	client     redis.Cmdable
	registry   *Registry
	keyPrefix  string
	cfg        config.QueueConfig
	log        logger.Logger
	errHandler *errors.ErrorHandler
	now        func() time.Time
}

func New(client redis.Cmdable, registry *Registry, cfg config.QueueConfig, log logger.Logger) *Queue {
	return &Queue{
		client:     client,
		registry:   registry,
		keyPrefix:  cfg.KeyPrefix,
		cfg:        cfg,
		log:        log,
		errHandler: errors.NewErrorHandler(log),
		now:        time.Now,
	}
}

func (q *Queue) key(queue, state string) string {
	return fmt.Sprintf("%s:%s:%s", q.keyPrefix, queue, state)
}

// EnqueueOptions control placement of a new job.
type EnqueueOptions struct {
	Delay       time.Duration
	MaxAttempts int // 0 uses the queue default
}

// Enqueue validates the payload against the job type's schema and
// pushes the job onto its queue. A delay places it in the delayed set
// instead; PromoteDelayed moves it to waiting once due.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload json.RawMessage, opts EnqueueOptions) (*Job, error) {
	reg, ok := q.registry.Lookup(jobType)
	if !ok {
		return nil, errors.NewJobPayloadInvalidError(jobType, "unknown job type")
	}
	if err := q.registry.ValidatePayload(jobType, payload); err != nil {
		return nil, err
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.cfg.MaxRetries
	}

	job := &Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		Queue:       reg.Queue,
		Payload:     payload,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  q.now().UTC(),
	}

	raw, err := job.Marshal()
	if err != nil {
		return nil, errors.NewQueueOperationFailedError("enqueue", err)
	}

	if opts.Delay > 0 {
		readyAt := q.now().Add(opts.Delay)
		if err := q.client.ZAdd(ctx, q.key(job.Queue, "delayed"), redis.Z{
			Score:  float64(readyAt.UnixMilli()),
			Member: raw,
		}).Err(); err != nil {
			return nil, errors.NewQueueOperationFailedError("enqueue delayed", err)
		}
	} else {
		if err := q.client.LPush(ctx, q.key(job.Queue, "waiting"), raw).Err(); err != nil {
			return nil, errors.NewQueueOperationFailedError("enqueue", err)
		}
	}

	q.log.Debug("Job enqueued", map[string]interface{}{
		"jobId":   job.ID,
		"jobType": job.Type,
		"queue":   job.Queue,
		"delayMs": opts.Delay.Milliseconds(),
	})
	return job, nil
}

// Dequeue blocks up to timeout waiting for a job, atomically moving it
// from waiting to active. A nil job with nil error means the timeout
// elapsed with nothing to do.
func (q *Queue) Dequeue(ctx context.Context, queue string, timeout time.Duration) (*Job, error) {
	raw, err := q.client.BRPopLPush(ctx, q.key(queue, "waiting"), q.key(queue, "active"), timeout).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueueOperationFailedError("dequeue", err)
	}

	job, err := UnmarshalJob(raw)
	if err != nil {
		// Poison entry; drop it from active so it cannot wedge the queue.
		q.client.LRem(ctx, q.key(queue, "active"), 1, raw)
		return nil, errors.NewQueueOperationFailedError("decode job", err)
	}
	job.Attempts++
	return job, nil
}

// Complete removes a finished job from the active list and records it
// in the bounded completed history.
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	// The active list holds the pre-pickup serialization, so marshal
	// with the attempt count rewound to match.
	pickedUp := *job
	pickedUp.Attempts--
	raw, err := pickedUp.Marshal()
	if err != nil {
		return errors.NewQueueOperationFailedError("complete", err)
	}

	activeKey := q.key(job.Queue, "active")
	if err := q.client.LRem(ctx, activeKey, 1, raw).Err(); err != nil {
		return errors.NewQueueOperationFailedError("complete", err)
	}

	doneRaw, err := job.Marshal()
	if err != nil {
		return errors.NewQueueOperationFailedError("complete", err)
	}
	completedKey := q.key(job.Queue, "completed")
	now := q.now()
	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, completedKey, redis.Z{Score: float64(now.UnixMilli()), Member: doneRaw})
	pipe.ZRemRangeByRank(ctx, completedKey, 0, int64(-q.cfg.CompletedHistory-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewQueueOperationFailedError("complete", err)
	}
	return nil
}

// Fail handles a job error. Retryable failures below the attempt limit
// go to the delayed set with exponential backoff; everything else lands
// in the bounded failed history with the error recorded.
func (q *Queue) Fail(ctx context.Context, job *Job, jobErr error) error {
	pickedUp := *job
	pickedUp.Attempts--
	raw, err := pickedUp.Marshal()
	if err != nil {
		return errors.NewQueueOperationFailedError("fail", err)
	}
	if err := q.client.LRem(ctx, q.key(job.Queue, "active"), 1, raw).Err(); err != nil {
		return errors.NewQueueOperationFailedError("fail", err)
	}

	job.LastError = jobErr.Error()

	if errors.IsRetryable(jobErr) && job.Attempts < job.MaxAttempts {
		backoff := q.retryBackoff(job.Attempts)
		retryRaw, err := job.Marshal()
		if err != nil {
			return errors.NewQueueOperationFailedError("fail", err)
		}
		readyAt := q.now().Add(backoff)
		if err := q.client.ZAdd(ctx, q.key(job.Queue, "delayed"), redis.Z{
			Score:  float64(readyAt.UnixMilli()),
			Member: retryRaw,
		}).Err(); err != nil {
			return errors.NewQueueOperationFailedError("fail", err)
		}
		metrics.WorkerJobsRetried.WithLabelValues(job.Type).Inc()
		q.log.Warn("Job scheduled for retry", map[string]interface{}{
			"jobId":     job.ID,
			"jobType":   job.Type,
			"attempt":   job.Attempts,
			"backoffMs": backoff.Milliseconds(),
			"error":     jobErr.Error(),
		})
		return nil
	}

	record := q.errHandler.HandleJobError(job.ID, job.Type, job.Attempts, jobErr)
	failedRaw, err := json.Marshal(map[string]interface{}{
		"job":   job,
		"error": record,
	})
	if err != nil {
		return errors.NewQueueOperationFailedError("fail", err)
	}
	failedKey := q.key(job.Queue, "failed")
	now := q.now()
	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, failedKey, redis.Z{Score: float64(now.UnixMilli()), Member: string(failedRaw)})
	pipe.ZRemRangeByRank(ctx, failedKey, 0, int64(-q.cfg.FailedHistory-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewQueueOperationFailedError("fail", err)
	}

	metrics.WorkerJobsFailed.WithLabelValues(job.Type, record.Code).Inc()
	return nil
}

// retryBackoff doubles the base delay for each attempt already made:
// 5s, 10s, 20s with the defaults.
func (q *Queue) retryBackoff(attempts int) time.Duration {
	backoff := time.Duration(q.cfg.RetryBackoff) * time.Millisecond
	for i := 1; i < attempts; i++ {
		backoff *= 2
	}
	return backoff
}

// PromoteDelayed moves every due job from the delayed set to waiting.
// Returns the number promoted.
func (q *Queue) PromoteDelayed(ctx context.Context, queue string) (int, error) {
	delayedKey := q.key(queue, "delayed")
	nowMillis := float64(q.now().UnixMilli())

	members, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", nowMillis),
	}).Result()
	if err != nil {
		return 0, errors.NewQueueOperationFailedError("promote delayed", err)
	}

	promoted := 0
	for _, raw := range members {
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, delayedKey, raw)
		pipe.LPush(ctx, q.key(queue, "waiting"), raw)
		if _, err := pipe.Exec(ctx); err != nil {
			return promoted, errors.NewQueueOperationFailedError("promote delayed", err)
		}
		promoted++
	}
	return promoted, nil
}

// RequeueOrphans moves jobs stranded in the active list back to
// waiting. Called on startup to recover work held by a previous
// process that died mid-job; delivery is at-least-once so a job that
// actually finished may run twice.
func (q *Queue) RequeueOrphans(ctx context.Context, queue string) (int, error) {
	activeKey := q.key(queue, "active")
	requeued := 0
	for {
		raw, err := q.client.RPopLPush(ctx, activeKey, q.key(queue, "waiting")).Result()
		if err == redis.Nil {
			return requeued, nil
		}
		if err != nil {
			return requeued, errors.NewQueueOperationFailedError("requeue orphans", err)
		}
		requeued++
		if job, err := UnmarshalJob(raw); err == nil {
			q.log.Warn("Requeued orphaned job", map[string]interface{}{
				"jobId":   job.ID,
				"jobType": job.Type,
				"queue":   queue,
			})
		}
	}
}

// Depths reports the size of each state for a queue.
type Depths struct {
	Waiting   int64
	Active    int64
	Delayed   int64
	Completed int64
	Failed    int64
}

func (q *Queue) Depths(ctx context.Context, queue string) (Depths, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, q.key(queue, "waiting"))
	active := pipe.LLen(ctx, q.key(queue, "active"))
	delayed := pipe.ZCard(ctx, q.key(queue, "delayed"))
	completed := pipe.ZCard(ctx, q.key(queue, "completed"))
	failed := pipe.ZCard(ctx, q.key(queue, "failed"))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Depths{}, errors.NewQueueOperationFailedError("depths", err)
	}
	return Depths{
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Delayed:   delayed.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

// RecordDepthMetrics publishes gauge values for every registered queue.
func (q *Queue) RecordDepthMetrics(ctx context.Context) {
	for _, queue := range q.registry.QueueNames() {
		depths, err := q.Depths(ctx, queue)
		if err != nil {
			q.log.WithError(err).Warn("Failed to read queue depths", map[string]interface{}{"queue": queue})
			continue
		}
		metrics.QueueDepth.WithLabelValues(queue, "waiting").Set(float64(depths.Waiting))
		metrics.QueueDepth.WithLabelValues(queue, "active").Set(float64(depths.Active))
		metrics.QueueDepth.WithLabelValues(queue, "delayed").Set(float64(depths.Delayed))
		metrics.QueueDepth.WithLabelValues(queue, "failed").Set(float64(depths.Failed))
	}
}
