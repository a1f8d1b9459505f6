package verify

import (
	"context"
	"time"

	"asset-workers/internal/common/database"
	"asset-workers/internal/common/errors"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/common/metrics"
	"asset-workers/internal/models"
	"asset-workers/internal/names"
	"asset-workers/internal/sources"
)

const (
	superheroMaxAttempts = 3
	marvelMaxAttempts    = 2
)

// Request identifies one entity to verify.
type Request struct {
	EntityTable  models.EntityTable
	EntityID     string
	Name         string
	ForceRefresh bool
	// Progress, when set, receives coarse completion percentages.
	Progress func(pct int)
}

// Outcome summarizes a finished (or skipped) verification.
type Outcome struct {
	EntityID       string         `json:"entityId"`
	Skipped        bool           `json:"skipped,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	HoursSince     int            `json:"hoursSinceVerification,omitempty"`
	SourcesUsed    int            `json:"sourcesUsed"`
	PrimarySource  string         `json:"primarySource,omitempty"`
	Conflicts      int            `json:"conflicts"`
	SourceAttempts map[string]int `json:"sourceAttempts,omitempty"`
}

// Service runs the verification state machine: freshness guard, name
// expansion, resilient source fan-out, merge, and persistence.
type Service struct {
	db        *database.PostgresClient
	canon     *names.Canonicalizer
	superhero sources.Source
	marvel    sources.Source
	freshness time.Duration
	logger    logger.Logger
	now       func() time.Time
}

func NewService(db *database.PostgresClient, canon *names.Canonicalizer, superhero, marvel sources.Source, freshnessHours int, log logger.Logger) *Service {
	return &Service{
		db:        db,
		canon:     canon,
		superhero: superhero,
		marvel:    marvel,
		freshness: time.Duration(freshnessHours) * time.Hour,
		logger:    log,
		now:       time.Now,
	}
}

// Verify runs the full pipeline for one entity. A recently verified
// entity is skipped unless the request forces a refresh. Zero
// responding sources marks the entity failed and returns an error so
// the queue records the failure.
func (s *Service) Verify(ctx context.Context, req Request) (*Outcome, error) {
	if !req.EntityTable.Valid() {
		return nil, errors.NewUnknownEntityTableError(string(req.EntityTable))
	}

	store, err := NewVerifiableStore(req.EntityTable, s.db)
	if err != nil {
		return nil, err
	}

	entity, err := store.Load(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}

	canonicalName := req.Name
	if canonicalName == "" {
		canonicalName = entity.Name
	}

	log := s.logger.With(map[string]interface{}{
		"entityTable": string(req.EntityTable),
		"entityId":    req.EntityID,
		"name":        canonicalName,
	})

	if !req.ForceRefresh && entity.Status == models.VerificationStatusVerified && entity.LastVerifiedAt != nil {
		hoursSince := s.now().Sub(*entity.LastVerifiedAt).Hours()
		if hoursSince < s.freshness.Hours() {
			log.Info("Entity recently verified, skipping", map[string]interface{}{
				"hoursSince": int(hoursSince + 0.5),
			})
			metrics.VerificationsCompleted.WithLabelValues("skipped").Inc()
			return &Outcome{
				EntityID:   req.EntityID,
				Skipped:    true,
				Reason:     "recently_verified",
				HoursSince: int(hoursSince + 0.5),
			}, nil
		}
	}

	report := func(pct int) {
		if req.Progress != nil {
			req.Progress(pct)
		}
	}

	report(10)
	variants := s.canon.GenerateVariants(canonicalName)
	log.Debug("Generated name variants", map[string]interface{}{
		"variants": len(variants.Variants),
	})
	report(20)

	var results []models.DataSourceResult
	attempts := make(map[string]int)

	superheroResult := sources.WithRetry(ctx, s.superhero, variants.SearchTerms, superheroMaxAttempts, log)
	attempts[s.superhero.Name()] = superheroResult.Attempts
	if superheroResult.Data != nil {
		results = append(results, *superheroResult.Data)
	}
	report(50)

	marvelResult := sources.WithRetry(ctx, s.marvel, []string{canonicalName}, marvelMaxAttempts, log)
	attempts[s.marvel.Name()] = marvelResult.Attempts
	if marvelResult.Data != nil {
		results = append(results, *marvelResult.Data)
	}
	report(80)

	if len(results) == 0 {
		log.Warn("No data sources returned results", map[string]interface{}{
			"superheroError": errString(superheroResult.Err),
			"marvelError":    errString(marvelResult.Err),
		})
		if err := store.MarkFailed(ctx, req.EntityID, s.now()); err != nil {
			return nil, err
		}
		metrics.VerificationsCompleted.WithLabelValues("failed").Inc()
		return &Outcome{EntityID: req.EntityID, SourceAttempts: attempts},
			errors.NewNoDataSourcesError(canonicalName)
	}

	merged := MergeSources(results)
	breakdown := BuildBreakdown(results, merged)
	conflicts := DetectConflicts(results, merged)
	primary := SelectPrimary(results)

	update := models.VerificationUpdate{
		Status:            models.VerificationStatusVerified,
		MergedFields:      merged,
		PrimaryDataSource: primary,
		SourceBreakdown:   breakdown,
		SourceConflicts:   conflicts,
		VerifiedAt:        s.now(),
	}
	if err := store.ApplyUpdate(ctx, req.EntityID, update); err != nil {
		return nil, err
	}

	report(100)
	log.Info("Entity verified", map[string]interface{}{
		"sourcesUsed":   len(results),
		"primarySource": primary,
		"conflicts":     len(conflicts),
	})
	metrics.VerificationsCompleted.WithLabelValues("verified").Inc()

	return &Outcome{
		EntityID:       req.EntityID,
		SourcesUsed:    len(results),
		PrimarySource:  primary,
		Conflicts:      len(conflicts),
		SourceAttempts: attempts,
	}, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
