package verifyentitybatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"asset-workers/internal/common/config"
	"asset-workers/internal/common/database"
	"asset-workers/internal/common/errors"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/models"
	"asset-workers/internal/queue"
)

const TaskType = queue.JobTypeVerifyEntityBatch

// Enqueuer is the slice of the queue the fan-out needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload json.RawMessage, opts queue.EnqueueOptions) (*queue.Job, error)
}

type Handler struct {
	config *Config
	logger logger.Logger
	db     *database.PostgresClient
	jobs   Enqueuer
}

type HandlerOptions struct {
	AppConfig    *config.Config
	DB           *database.PostgresClient
	Jobs         Enqueuer
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for verify-entity-batch: %w", err)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}

	return &Handler{
		config: workerConfig,
		logger: loggerInstance.With(map[string]interface{}{"taskType": TaskType}),
		db:     opts.DB,
		jobs:   opts.Jobs,
	}, nil
}

func (h *Handler) Registration() queue.Registration {
	return queue.Registration{
		JobType:     TaskType,
		Queue:       queue.QueueEntityVerification,
		Schema:      InputSchema,
		Handler:     h.Handle,
		Concurrency: h.config.Concurrency,
	}
}

func (h *Handler) Handle(ctx context.Context, job *queue.Job) (interface{}, error) {
	input, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}

	h.logger.Info("Processing verification fan-out", map[string]interface{}{
		"jobId":       job.ID,
		"entityTable": input.EntityTable,
		"explicitIds": len(input.EntityIDs),
	})

	return h.execute(ctx, input)
}

func (h *Handler) parseInput(job *queue.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal(job.Payload, &input); err != nil {
		return nil, errors.NewJobPayloadInvalidError(TaskType, err.Error())
	}
	if !models.EntityTable(input.EntityTable).Valid() {
		return nil, errors.NewUnknownEntityTableError(input.EntityTable)
	}
	if input.Limit <= 0 {
		input.Limit = h.config.DefaultLimit
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	ids := input.EntityIDs
	if len(ids) == 0 {
		selected, err := h.selectStale(ctx, models.EntityTable(input.EntityTable), input.Limit)
		if err != nil {
			return nil, err
		}
		ids = selected
	}

	output := &Output{Selected: len(ids)}
	for _, id := range ids {
		payload, err := json.Marshal(map[string]interface{}{
			"entityTable":  input.EntityTable,
			"entityId":     id,
			"forceRefresh": input.ForceRefresh,
		})
		if err != nil {
			return output, errors.NewQueueOperationFailedError("marshal fan-out payload", err)
		}
		if _, err := h.jobs.Enqueue(ctx, queue.JobTypeVerifyEntity, payload, queue.EnqueueOptions{}); err != nil {
			return output, err
		}
		output.Enqueued++
	}

	h.logger.Info("Verification fan-out complete", map[string]interface{}{
		"entityTable": input.EntityTable,
		"selected":    output.Selected,
		"enqueued":    output.Enqueued,
	})
	return output, nil
}

// selectStale returns entities that were never verified or whose last
// verification fell outside the freshness window.
func (h *Handler) selectStale(ctx context.Context, table models.EntityTable, limit int) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT id FROM %s WHERE verification_status IS DISTINCT FROM 'verified' OR last_verified_at IS NULL OR last_verified_at < NOW() - make_interval(hours => $1) ORDER BY last_verified_at ASC NULLS FIRST LIMIT $2`,
		string(table),
	)

	rows, err := h.db.Query(ctx, query, h.config.FreshnessHours, limit)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError(string(table), err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewQueryExecutionFailedError(string(table), err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError(string(table), err)
	}
	return ids, nil
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers[queue.QueueEntityVerification]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.Timeout > 0 {
				cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
			}
		}
		if appConfig.Verification.FreshnessHours > 0 {
			cfg.FreshnessHours = appConfig.Verification.FreshnessHours
		}
	}

	return cfg
}
