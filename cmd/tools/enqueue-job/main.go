// cmd/tools/enqueue-job/main.go
//
// Small operational CLI that pushes a job onto the pipeline queues:
//
//	enqueue-job -type expand-pinecone-batch -payload '{"category":"Characters","limit":50}'
//	enqueue-job -type verify-entity-batch -payload '{"entityTable":"narrative_entities"}' -delay 5s
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"asset-workers/internal/common/config"
	"asset-workers/internal/common/database"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/queue"

	eb "asset-workers/internal/workers/expansion/expand-batch"
	ve "asset-workers/internal/workers/verification/verify-entity"
	veb "asset-workers/internal/workers/verification/verify-entity-batch"
)

func main() {
	jobType := flag.String("type", "", "job type (expand-pinecone-batch, verify-entity, verify-entity-batch)")
	payload := flag.String("payload", "{}", "JSON payload")
	delay := flag.Duration("delay", 0, "optional enqueue delay")
	maxAttempts := flag.Int("max-attempts", 0, "override max attempts (0 = queue default)")
	flag.Parse()

	if *jobType == "" {
		fmt.Fprintln(os.Stderr, "error: -type is required")
		flag.Usage()
		os.Exit(2)
	}
	if !json.Valid([]byte(*payload)) {
		fmt.Fprintln(os.Stderr, "error: -payload is not valid JSON")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: config load failed: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	redis, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redis.Close()

	registry := queue.NewRegistry()
	for _, registration := range registrations() {
		if err := registry.Register(registration); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobs := queue.New(redis.GetClient(), registry, cfg.Queue, log)
	job, err := jobs.Enqueue(ctx, *jobType, json.RawMessage(*payload), queue.EnqueueOptions{
		Delay:       *delay,
		MaxAttempts: *maxAttempts,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: enqueue failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("enqueued %s job %s on queue %s\n", job.Type, job.ID, job.Queue)
}

// registrations mirrors the worker manager's job types so payloads are
// schema-validated at enqueue time; this tool never executes handlers.
func registrations() []queue.Registration {
	noop := func(ctx context.Context, job *queue.Job) (interface{}, error) { return nil, nil }
	return []queue.Registration{
		{JobType: queue.JobTypeExpandPineconeBatch, Queue: queue.QueuePineconeExpansion, Schema: eb.InputSchema, Handler: noop},
		{JobType: queue.JobTypeVerifyEntity, Queue: queue.QueueEntityVerification, Schema: ve.InputSchema, Handler: noop},
		{JobType: queue.JobTypeVerifyEntityBatch, Queue: queue.QueueEntityVerification, Schema: veb.InputSchema, Handler: noop},
	}
}
