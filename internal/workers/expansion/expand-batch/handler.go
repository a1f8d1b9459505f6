package expandbatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"asset-workers/internal/assets"
	"asset-workers/internal/common/config"
	"asset-workers/internal/common/errors"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/models"
	"asset-workers/internal/queue"
	"asset-workers/internal/vector"
)

const TaskType = queue.JobTypeExpandPineconeBatch

type Handler struct {
	config          *Config
	logger          logger.Logger
	corpus          *vector.Client
	transformer     *assets.Transformer
	store           *assets.Store
	onBatchComplete func(batchIndex, cumulativeCount int)
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Corpus       *vector.Client
	Transformer  *assets.Transformer
	Store        *assets.Store
	CustomConfig *Config
	Logger       logger.Logger

	// OnBatchComplete receives a milestone after every sampling batch.
	// Defaults to a log line.
	OnBatchComplete func(batchIndex, cumulativeCount int)
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for expand-batch: %w", err)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}

	h := &Handler{
		config:      workerConfig,
		logger:      loggerInstance.With(map[string]interface{}{"taskType": TaskType}),
		corpus:      opts.Corpus,
		transformer: opts.Transformer,
		store:       opts.Store,
	}

	h.onBatchComplete = opts.OnBatchComplete
	if h.onBatchComplete == nil {
		h.onBatchComplete = func(batchIndex, cumulativeCount int) {
			h.logger.Info("Expansion batch milestone", map[string]interface{}{
				"batchIndex":      batchIndex,
				"cumulativeCount": cumulativeCount,
			})
		}
	}

	return h, nil
}

// Registration binds this handler into the job registry.
func (h *Handler) Registration() queue.Registration {
	return queue.Registration{
		JobType:     TaskType,
		Queue:       queue.QueuePineconeExpansion,
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

	h.logger.Info("Processing corpus expansion batch", map[string]interface{}{
		"jobId":     job.ID,
		"category":  input.Category,
		"full":      input.Full,
		"recordIds": len(input.RecordIDs),
	})

	return h.execute(ctx, input)
}

func (h *Handler) parseInput(job *queue.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal(job.Payload, &input); err != nil {
		return nil, errors.NewJobPayloadInvalidError(TaskType, err.Error())
	}
	if input.Limit <= 0 {
		input.Limit = h.config.DefaultSample
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	corpus := h.corpus.InNamespace(input.Namespace)
	output := &Output{}

	// Explicit IDs and exhaustive listing are one-shot modes; only
	// sampling runs the batched loop.
	if input.Full || len(input.RecordIDs) > 0 {
		records, err := h.selectRecords(ctx, corpus, input)
		if err != nil {
			return nil, err
		}
		if err := h.processBatch(ctx, records, output); err != nil {
			return nil, err
		}
		output.Batches = 1
		h.logSummary(output)
		return output, nil
	}

	if input.Limit <= 0 {
		input.Limit = h.config.DefaultSample
	}
	batchSize := input.BatchSize
	if batchSize <= 0 || batchSize > input.Limit {
		batchSize = input.Limit
	}
	batches := (input.Limit + batchSize - 1) / batchSize

	seen := make(map[string]struct{})
	cumulative := 0
	for i := 0; i < batches; i++ {
		want := batchSize
		if remaining := input.Limit - i*batchSize; remaining < want {
			want = remaining
		}

		records, err := h.sampleBatch(ctx, corpus, input.Category, want, seen)
		if err != nil {
			return nil, err
		}
		if err := h.processBatch(ctx, records, output); err != nil {
			return nil, err
		}

		output.Batches++
		cumulative += len(records)
		h.onBatchComplete(input.BatchStart+i, cumulative)

		if len(records) == 0 {
			// The diversity queries stopped yielding new records.
			break
		}
	}

	h.logSummary(output)
	return output, nil
}

// sampleBatch draws one batch of unseen records, per category when none
// is pinned.
func (h *Handler) sampleBatch(ctx context.Context, corpus *vector.Client, category string, limit int, seen map[string]struct{}) ([]models.VectorRecord, error) {
	categories := []string{category}
	if category == "" {
		categories = []string{vector.CategoryCharacters, vector.CategoryCreators, vector.CategoryComics}
	}

	var records []models.VectorRecord
	for _, cat := range categories {
		sample, err := corpus.SampleDiverse(ctx, cat, limit)
		if err != nil {
			return nil, err
		}
		for _, record := range sample {
			if _, dup := seen[record.ID]; dup {
				continue
			}
			seen[record.ID] = struct{}{}
			records = append(records, record)
		}
	}
	return records, nil
}

func (h *Handler) processBatch(ctx context.Context, records []models.VectorRecord, output *Output) error {
	output.RecordsProcessed += len(records)

	var proposals []models.AssetProposal
	for _, record := range records {
		proposals = append(proposals, h.transformer.Transform(record)...)
	}
	output.ProposalsBuilt += len(proposals)
	if len(proposals) == 0 {
		return nil
	}

	inserted, err := h.store.InsertBatch(ctx, proposals)
	if err != nil {
		return err
	}
	output.AssetsInserted += len(inserted)
	output.AssetsSkipped += len(proposals) - len(inserted)

	snapshots, err := h.store.InsertPriceSnapshots(ctx, inserted, proposals)
	if err != nil {
		return err
	}
	output.Snapshots += snapshots
	return nil
}

func (h *Handler) logSummary(output *Output) {
	if output.ProposalsBuilt == 0 {
		h.logger.Warn("Expansion job produced no proposals", map[string]interface{}{
			"records": output.RecordsProcessed,
			"batches": output.Batches,
		})
		return
	}
	h.logger.Info("Expansion job complete", map[string]interface{}{
		"records":   output.RecordsProcessed,
		"proposals": output.ProposalsBuilt,
		"inserted":  output.AssetsInserted,
		"skipped":   output.AssetsSkipped,
		"snapshots": output.Snapshots,
		"batches":   output.Batches,
	})
}

func (h *Handler) selectRecords(ctx context.Context, corpus *vector.Client, input *Input) ([]models.VectorRecord, error) {
	if len(input.RecordIDs) > 0 {
		byID, err := corpus.FetchAll(ctx, input.RecordIDs)
		if err != nil {
			return nil, err
		}
		records := make([]models.VectorRecord, 0, len(byID))
		for _, id := range input.RecordIDs {
			if record, ok := byID[id]; ok {
				records = append(records, record)
			}
		}
		return records, nil
	}
	return corpus.ListAllRecords(ctx)
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers[queue.QueuePineconeExpansion]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.Concurrency > 0 {
				cfg.Concurrency = workerCfg.Concurrency
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
			}
		}
	}

	return cfg
}
