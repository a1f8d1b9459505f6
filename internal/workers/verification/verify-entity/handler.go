package verifyentity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"asset-workers/internal/common/config"
	"asset-workers/internal/common/errors"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/models"
	"asset-workers/internal/queue"
	"asset-workers/internal/verify"
)

const TaskType = queue.JobTypeVerifyEntity

type Handler struct {
	config  *Config
	logger  logger.Logger
	service *verify.Service
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Service      *verify.Service
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for verify-entity: %w", err)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}

	return &Handler{
		config:  workerConfig,
		logger:  loggerInstance.With(map[string]interface{}{"taskType": TaskType}),
		service: opts.Service,
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

	log := h.logger.With(map[string]interface{}{
		"jobId":       job.ID,
		"entityTable": input.EntityTable,
		"entityId":    input.EntityID,
	})
	log.Info("Processing entity verification", nil)

	outcome, err := h.execute(ctx, input, log)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (h *Handler) parseInput(job *queue.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal(job.Payload, &input); err != nil {
		return nil, errors.NewJobPayloadInvalidError(TaskType, err.Error())
	}
	if !models.EntityTable(input.EntityTable).Valid() {
		return nil, errors.NewUnknownEntityTableError(input.EntityTable)
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*verify.Outcome, error) {
	return h.execute(ctx, input, h.logger)
}

func (h *Handler) execute(ctx context.Context, input *Input, log logger.Logger) (*verify.Outcome, error) {
	outcome, err := h.service.Verify(ctx, verify.Request{
		EntityTable:  models.EntityTable(input.EntityTable),
		EntityID:     input.EntityID,
		Name:         input.EntityName,
		ForceRefresh: input.ForceRefresh,
		Progress: func(pct int) {
			log.Debug("Verification progress", map[string]interface{}{"pct": pct})
		},
	})
	if err != nil {
		return outcome, err
	}

	if outcome.Skipped {
		log.Info("Verification skipped", map[string]interface{}{
			"reason":     outcome.Reason,
			"hoursSince": outcome.HoursSince,
		})
	} else {
		log.Info("Verification complete", map[string]interface{}{
			"sourcesUsed":   outcome.SourcesUsed,
			"primarySource": outcome.PrimarySource,
			"conflicts":     outcome.Conflicts,
		})
	}
	return outcome, nil
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers[queue.QueueEntityVerification]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.Concurrency > 0 {
				cfg.Concurrency = workerCfg.Concurrency
			}
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
