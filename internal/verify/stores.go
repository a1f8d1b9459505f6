package verify

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"asset-workers/internal/common/database"
	"asset-workers/internal/common/errors"
	"asset-workers/internal/models"
)

// VerifiableStore is the persistence surface one entity table exposes
// to the verification worker.
type VerifiableStore interface {
	Load(ctx context.Context, id string) (*models.VerifiableEntity, error)
	ApplyUpdate(ctx context.Context, id string, update models.VerificationUpdate) error
	MarkFailed(ctx context.Context, id string, at time.Time) error
}

// NewVerifiableStore resolves the store for an entity table. The table
// set is closed; anything else is rejected up front.
func NewVerifiableStore(table models.EntityTable, db *database.PostgresClient) (VerifiableStore, error) {
	switch table {
	case models.EntityTableNarrative:
		return &narrativeEntityStore{db: db}, nil
	case models.EntityTableCreators:
		return &minimalStore{db: db, table: "creators"}, nil
	case models.EntityTableAssets:
		return &minimalStore{db: db, table: "assets"}, nil
	}
	return nil, errors.NewUnknownEntityTableError(string(table))
}

// narrativeEntityStore owns the one table that takes the full merged
// field update.
type narrativeEntityStore struct {
	db *database.PostgresClient
}

func (s *narrativeEntityStore) Load(ctx context.Context, id string) (*models.VerifiableEntity, error) {
	return loadEntity(ctx, s.db, "narrative_entities", id)
}

func (s *narrativeEntityStore) ApplyUpdate(ctx context.Context, id string, update models.VerificationUpdate) error {
	breakdownJSON, err := json.Marshal(update.SourceBreakdown)
	if err != nil {
		return err
	}

	// Conflicts persist as NULL when the sources agreed.
	var conflictsJSON interface{}
	if len(update.SourceConflicts) > 0 {
		raw, err := json.Marshal(update.SourceConflicts)
		if err != nil {
			return err
		}
		conflictsJSON = raw
	}

	query := `UPDATE narrative_entities SET
		biography = COALESCE($2, biography),
		first_appearance = COALESCE($3, first_appearance),
		creators = COALESCE($4, creators),
		teams = COALESCE($5, teams),
		allies = COALESCE($6, allies),
		enemies = COALESCE($7, enemies),
		primary_image_url = COALESCE($8, primary_image_url),
		verification_status = $9,
		primary_data_source = $10,
		data_source_breakdown = $11,
		source_conflicts = $12,
		last_verified_at = $13
	WHERE id = $1`

	_, err = s.db.Exec(ctx, query, id,
		mergedText(update.MergedFields, "biography"),
		mergedText(update.MergedFields, "firstAppearance"),
		mergedJSON(update.MergedFields, "creators"),
		mergedJSON(update.MergedFields, "teams"),
		mergedJSON(update.MergedFields, "allies"),
		mergedJSON(update.MergedFields, "enemies"),
		mergedText(update.MergedFields, "imageUrl"),
		string(update.Status),
		update.PrimaryDataSource,
		breakdownJSON,
		conflictsJSON,
		update.VerifiedAt,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("verification_update", err)
	}
	return nil
}

func (s *narrativeEntityStore) MarkFailed(ctx context.Context, id string, at time.Time) error {
	return markFailed(ctx, s.db, "narrative_entities", id, at)
}

// minimalStore covers tables that only record the verification outcome,
// not the merged fields.
type minimalStore struct {
	db    *database.PostgresClient
	table string
}

func (s *minimalStore) Load(ctx context.Context, id string) (*models.VerifiableEntity, error) {
	return loadEntity(ctx, s.db, s.table, id)
}

func (s *minimalStore) ApplyUpdate(ctx context.Context, id string, update models.VerificationUpdate) error {
	query := `UPDATE ` + s.table + ` SET
		verification_status = $2,
		primary_data_source = $3,
		last_verified_at = $4
	WHERE id = $1`

	_, err := s.db.Exec(ctx, query, id, string(update.Status), update.PrimaryDataSource, update.VerifiedAt)
	if err != nil {
		return errors.NewQueryExecutionFailedError("verification_update", err)
	}
	return nil
}

func (s *minimalStore) MarkFailed(ctx context.Context, id string, at time.Time) error {
	return markFailed(ctx, s.db, s.table, id, at)
}

func loadEntity(ctx context.Context, db *database.PostgresClient, table, id string) (*models.VerifiableEntity, error) {
	query := `SELECT id, name, verification_status, last_verified_at FROM ` + table + ` WHERE id = $1`

	var entity models.VerifiableEntity
	var status sql.NullString
	var lastVerified sql.NullTime

	err := db.QueryRow(ctx, query, id).Scan(&entity.ID, &entity.Name, &status, &lastVerified)
	if err == sql.ErrNoRows {
		return nil, errors.NewEntityNotFoundError(table, id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("load_entity", err)
	}

	entity.Status = models.VerificationStatusUnverified
	if status.Valid {
		entity.Status = models.VerificationStatus(status.String)
	}
	if lastVerified.Valid {
		t := lastVerified.Time
		entity.LastVerifiedAt = &t
	}
	return &entity, nil
}

func markFailed(ctx context.Context, db *database.PostgresClient, table, id string, at time.Time) error {
	query := `UPDATE ` + table + ` SET verification_status = $2, last_verified_at = $3 WHERE id = $1`
	if _, err := db.Exec(ctx, query, id, string(models.VerificationStatusFailed), at); err != nil {
		return errors.NewQueryExecutionFailedError("mark_failed", err)
	}
	return nil
}

func mergedText(fields map[string]interface{}, key string) interface{} {
	if v, ok := fields[key].(string); ok && v != "" {
		return v
	}
	return nil
}

func mergedJSON(fields map[string]interface{}, key string) interface{} {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
