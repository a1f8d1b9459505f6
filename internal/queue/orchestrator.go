package queue

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"asset-workers/internal/common/config"
	"asset-workers/internal/common/logger"
)

const (
	metricsInterval    = 30 * time.Second
	defaultConcurrency = 10
)

// Orchestrator owns the worker pools for every registered queue plus
// the background loops that promote delayed jobs and publish depth
// metrics.
type Orchestrator struct {
	queue    *Queue
	registry *Registry
	cfg      config.QueueConfig
	workers  map[string]config.WorkerConfig
	log      logger.Logger

	pools   []*Pool
	limiter *rate.Limiter
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewOrchestrator(q *Queue, registry *Registry, cfg config.QueueConfig, workers map[string]config.WorkerConfig, log logger.Logger) *Orchestrator {
	ratePerSecond := cfg.RatePerSecond
	if ratePerSecond <= 0 {
		ratePerSecond = 10
	}
	return &Orchestrator{
		queue:    q,
		registry: registry,
		cfg:      cfg,
		workers:  workers,
		log:      log,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
		done:     make(chan struct{}),
	}
}

// Start recovers orphaned jobs, launches a pool per registered queue,
// and begins the promotion and metrics loops.
func (o *Orchestrator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for _, queueName := range o.registry.QueueNames() {
		requeued, err := o.queue.RequeueOrphans(runCtx, queueName)
		if err != nil {
			cancel()
			return err
		}
		if requeued > 0 {
			o.log.Warn("Recovered orphaned jobs", map[string]interface{}{
				"queue": queueName,
				"count": requeued,
			})
		}

		wc := o.workerConfig(queueName)
		pool := NewPool(o.queue, o.registry, queueName, wc.Concurrency, o.jobTimeout(wc), o.limiter, o.log)
		pool.Start(runCtx)
		o.pools = append(o.pools, pool)
	}

	go o.runLoops(runCtx)

	o.log.Info("Orchestrator started", map[string]interface{}{
		"queues":        o.registry.QueueNames(),
		"ratePerSecond": o.cfg.RatePerSecond,
	})
	return nil
}

// workerConfig resolves a queue's pool settings: an explicit config
// entry wins, then whatever concurrency the queue's handlers asked for
// at registration, then the default.
func (o *Orchestrator) workerConfig(queueName string) config.WorkerConfig {
	if wc, ok := o.workers[queueName]; ok && wc.Concurrency > 0 {
		return wc
	}
	concurrency := o.registry.QueueConcurrency(queueName)
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return config.WorkerConfig{Enabled: true, Concurrency: concurrency}
}

func (o *Orchestrator) jobTimeout(wc config.WorkerConfig) time.Duration {
	if wc.Timeout > 0 {
		return time.Duration(wc.Timeout) * time.Millisecond
	}
	return 5 * time.Minute
}

func (o *Orchestrator) runLoops(ctx context.Context) {
	defer close(o.done)

	promoteEvery := time.Duration(o.cfg.PromoteInterval) * time.Millisecond
	if promoteEvery <= 0 {
		promoteEvery = time.Second
	}
	promoteTicker := time.NewTicker(promoteEvery)
	defer promoteTicker.Stop()
	metricsTicker := time.NewTicker(metricsInterval)
	defer metricsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-promoteTicker.C:
			for _, queueName := range o.registry.QueueNames() {
				if _, err := o.queue.PromoteDelayed(ctx, queueName); err != nil && ctx.Err() == nil {
					o.log.WithError(err).Warn("Delayed promotion failed", map[string]interface{}{
						"queue": queueName,
					})
				}
			}
		case <-metricsTicker.C:
			o.queue.RecordDepthMetrics(ctx)
		}
	}
}

// Shutdown stops accepting new work and waits for in-flight jobs, up
// to ctx's deadline.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if o.cancel == nil {
		return nil
	}
	o.log.Info("Orchestrator shutting down", nil)
	o.cancel()

	finished := make(chan struct{})
	go func() {
		for _, pool := range o.pools {
			pool.Wait()
		}
		<-o.done
		close(finished)
	}()

	select {
	case <-finished:
		o.log.Info("Orchestrator stopped", nil)
		return nil
	case <-ctx.Done():
		o.log.Warn("Shutdown deadline reached with workers still running", nil)
		return ctx.Err()
	}
}
