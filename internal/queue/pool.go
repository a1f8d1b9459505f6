package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"asset-workers/internal/common/errors"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/common/metrics"
	"asset-workers/internal/common/observability"
)

const dequeueTimeout = 2 * time.Second

// Pool runs a fixed number of workers against one queue. All pools
// share a rate limiter so the pipeline as a whole respects the
// configured jobs-per-second ceiling.
type Pool struct {
	queue       *Queue
	registry    *Registry
	queueName   string
	concurrency int
	jobTimeout  time.Duration
	limiter     *rate.Limiter
	log         logger.Logger

	wg sync.WaitGroup
}

func NewPool(q *Queue, registry *Registry, queueName string, concurrency int, jobTimeout time.Duration, limiter *rate.Limiter, log logger.Logger) *Pool {
	return &Pool{
		queue:       q,
		registry:    registry,
		queueName:   queueName,
		concurrency: concurrency,
		jobTimeout:  jobTimeout,
		limiter:     limiter,
		log:         log.With(map[string]interface{}{"queue": queueName}),
	}
}

// Start launches the workers. They run until ctx is cancelled; an
// in-flight job always finishes before its worker exits.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.Info("Worker pool started", map[string]interface{}{
		"concurrency": p.concurrency,
	})
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.With(map[string]interface{}{"worker": id})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		job, err := p.queue.Dequeue(ctx, p.queueName, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("Dequeue failed", nil)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		p.process(job, log)
	}
}

// process runs a single job to completion. It deliberately uses a
// fresh context so cancelling the pool never abandons a job that was
// already picked up.
func (p *Pool) process(job *Job, log logger.Logger) {
	reg, ok := p.registry.Lookup(job.Type)
	if !ok {
		// Nothing can ever handle this job; fail it permanently.
		p.failJob(job, errors.NewJobPayloadInvalidError(job.Type, "no handler registered"), log)
		return
	}

	jobCtx := context.Background()
	var cancel context.CancelFunc
	if p.jobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(jobCtx, p.jobTimeout)
		defer cancel()
	}

	metrics.WorkerJobsActive.WithLabelValues(job.Type).Inc()
	start := time.Now()
	_, err := reg.Handler(jobCtx, job)
	elapsed := time.Since(start)
	metrics.WorkerJobsActive.WithLabelValues(job.Type).Dec()
	metrics.WorkerJobDuration.WithLabelValues(job.Type).Observe(elapsed.Seconds())

	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	observability.RecordJobProcessed(jobCtx, job.Type, outcome)
	observability.RecordJobDuration(jobCtx, job.Type, elapsed, outcome)

	if err != nil {
		p.failJob(job, err, log)
		return
	}

	if completeErr := p.queue.Complete(jobCtx, job); completeErr != nil {
		log.WithError(completeErr).Error("Failed to mark job complete", map[string]interface{}{
			"jobId": job.ID,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(job.Type).Inc()
	log.Info("Job completed", map[string]interface{}{
		"jobId":      job.ID,
		"jobType":    job.Type,
		"attempt":    job.Attempts,
		"durationMs": elapsed.Milliseconds(),
	})
}

func (p *Pool) failJob(job *Job, jobErr error, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.queue.Fail(ctx, job, jobErr); err != nil {
		log.WithError(err).Error("Failed to record job failure", map[string]interface{}{
			"jobId": job.ID,
		})
	}
}
