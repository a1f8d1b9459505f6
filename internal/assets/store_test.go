package assets

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-workers/internal/common/database"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(&database.PostgresClient{DB: db}, logger.NewTestLogger(t)), mock
}

func sampleProposals() []models.AssetProposal {
	return []models.AssetProposal{
		{
			Type: models.AssetTypeCharacter, Symbol: "H.AAAAAAAAAAA", Name: "Hulk",
			Description: "Hulk - Marvel character",
			Pricing: &models.PricingResult{
				SharePrice: 1600, TotalMarketValue: 1.28e9, TotalFloat: 800_000,
				Source: models.PricingSourceMathematical, CalculatedAt: time.Unix(1700000000, 0).UTC(),
			},
		},
		{
			Type: models.AssetTypeCharacter, Symbol: "T.BBBBBBBBBBB", Name: "Thor",
			Description: "Thor - Marvel character",
		},
	}
}

func TestInsertBatch_ReturnsOnlyInsertedRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO assets .+ ON CONFLICT \(symbol\) DO NOTHING RETURNING id, symbol`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "symbol"}).
			AddRow(int64(1), "H.AAAAAAAAAAA").
			AddRow(int64(2), "T.BBBBBBBBBBB"))

	inserted, err := store.InsertBatch(context.Background(), sampleProposals())

	require.NoError(t, err)
	require.Len(t, inserted, 2)
	assert.Equal(t, int64(1), inserted[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_SecondRunInsertsNothing(t *testing.T) {
	store, mock := newMockStore(t)

	// Every symbol already exists, so ON CONFLICT suppresses all rows.
	mock.ExpectQuery(`INSERT INTO assets .+ ON CONFLICT \(symbol\) DO NOTHING RETURNING id, symbol`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "symbol"}))

	inserted, err := store.InsertBatch(context.Background(), sampleProposals())

	require.NoError(t, err)
	assert.Empty(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_EmptyInput(t *testing.T) {
	store, mock := newMockStore(t)

	inserted, err := store.InsertBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPriceSnapshots_OnlyPricedAndInserted(t *testing.T) {
	store, mock := newMockStore(t)
	proposals := sampleProposals()

	// Thor was inserted too, but has no pricing; only Hulk gets a snapshot.
	mock.ExpectExec(`INSERT INTO price_snapshots`).
		WithArgs(int64(1), 1600.0, 1.28e9, int64(800_000), "mathematical", time.Unix(1700000000, 0).UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	count, err := store.InsertPriceSnapshots(context.Background(), []models.InsertedAsset{
		{ID: 1, Symbol: "H.AAAAAAAAAAA"},
		{ID: 2, Symbol: "T.BBBBBBBBBBB"},
	}, proposals)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPriceSnapshots_NoneEligible(t *testing.T) {
	store, mock := newMockStore(t)

	count, err := store.InsertPriceSnapshots(context.Background(), nil, sampleProposals())

	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
