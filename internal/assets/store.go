package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"asset-workers/internal/common/database"
	"asset-workers/internal/common/errors"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/common/metrics"
	"asset-workers/internal/models"
)

// insertBatchSize keeps each multi-row insert under the driver's
// parameter limit (5 params per row).
const insertBatchSize = 1000

// Store persists asset proposals and their price snapshots.
type Store struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewStore(db *database.PostgresClient, log logger.Logger) *Store {
	return &Store{db: db, logger: log}
}

// InsertBatch inserts proposals in chunks, skipping rows whose symbol
// already exists. Re-running the same batch is a no-op, which is what
// makes at-least-once job delivery safe. Only newly inserted rows are
// returned.
func (s *Store) InsertBatch(ctx context.Context, proposals []models.AssetProposal) ([]models.InsertedAsset, error) {
	var inserted []models.InsertedAsset

	for start := 0; start < len(proposals); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(proposals) {
			end = len(proposals)
		}

		rows, err := s.insertChunk(ctx, proposals[start:end])
		if err != nil {
			return inserted, err
		}
		inserted = append(inserted, rows...)
	}

	insertedBySymbol := make(map[string]struct{}, len(inserted))
	for _, row := range inserted {
		insertedBySymbol[row.Symbol] = struct{}{}
	}
	for _, p := range proposals {
		if _, ok := insertedBySymbol[p.Symbol]; ok {
			metrics.AssetsInserted.WithLabelValues(string(p.Type)).Inc()
		} else {
			metrics.AssetsSkipped.WithLabelValues(string(p.Type)).Inc()
		}
	}

	s.logger.Info("Bulk insert finished", map[string]interface{}{
		"proposed": len(proposals),
		"inserted": len(inserted),
		"skipped":  len(proposals) - len(inserted),
	})

	return inserted, nil
}

func (s *Store) insertChunk(ctx context.Context, chunk []models.AssetProposal) ([]models.InsertedAsset, error) {
	if len(chunk) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(chunk))
	args := make([]interface{}, 0, len(chunk)*5)
	for i, p := range chunk {
		base := i * 5
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5))

		metadataJSON, err := json.Marshal(p.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata for %s: %w", p.Symbol, err)
		}
		args = append(args, p.Symbol, p.Name, string(p.Type), p.Description, metadataJSON)
	}

	query := fmt.Sprintf(
		`INSERT INTO assets (symbol, name, type, description, metadata) VALUES %s ON CONFLICT (symbol) DO NOTHING RETURNING id, symbol`,
		strings.Join(placeholders, ", "),
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewBulkInsertFailedError("assets", err)
	}
	defer rows.Close()

	var inserted []models.InsertedAsset
	for rows.Next() {
		var row models.InsertedAsset
		if err := rows.Scan(&row.ID, &row.Symbol); err != nil {
			return nil, errors.NewBulkInsertFailedError("assets", err)
		}
		inserted = append(inserted, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewBulkInsertFailedError("assets", err)
	}

	return inserted, nil
}

// InsertPriceSnapshots records the computed pricing for newly inserted
// assets. Proposals without pricing and rows skipped as duplicates get
// no snapshot.
func (s *Store) InsertPriceSnapshots(ctx context.Context, inserted []models.InsertedAsset, proposals []models.AssetProposal) (int, error) {
	bySymbol := make(map[string]models.AssetProposal, len(proposals))
	for _, p := range proposals {
		bySymbol[p.Symbol] = p
	}

	var placeholders []string
	var args []interface{}
	i := 0
	for _, row := range inserted {
		p, ok := bySymbol[row.Symbol]
		if !ok || p.Pricing == nil {
			continue
		}

		base := i * 6
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, row.ID, p.Pricing.SharePrice, p.Pricing.TotalMarketValue,
			p.Pricing.TotalFloat, string(p.Pricing.Source), p.Pricing.CalculatedAt)
		i++
	}

	if len(placeholders) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(
		`INSERT INTO price_snapshots (asset_id, share_price, total_market_value, total_float, source, calculated_at) VALUES %s`,
		strings.Join(placeholders, ", "),
	)

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return 0, errors.NewBulkInsertFailedError("price_snapshots", err)
	}

	return len(placeholders), nil
}
