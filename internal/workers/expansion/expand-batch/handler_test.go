package expandbatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-workers/internal/assets"
	"asset-workers/internal/common/database"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/models"
	"asset-workers/internal/names"
	"asset-workers/internal/pricing"
	"asset-workers/internal/queue"
	"asset-workers/internal/vector"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{0.1, 0.2}, nil
}

// fakeIndex serves the same small corpus for every query, list, and fetch.
// Listing yields IDs only, just like the real index.
type fakeIndex struct {
	records     []models.VectorRecord
	fetchCalled bool
	namespace   string
}

func (f *fakeIndex) WithNamespace(namespace string) vector.Index {
	f.namespace = namespace
	return f
}

func (f *fakeIndex) Query(ctx context.Context, embedding []float64, topK int) ([]models.VectorMatch, error) {
	matches := make([]models.VectorMatch, 0, len(f.records))
	for _, r := range f.records {
		matches = append(matches, models.VectorMatch{ID: r.ID, Score: 0.9, Metadata: r.Metadata})
	}
	return matches, nil
}

func (f *fakeIndex) ListPaginated(ctx context.Context, limit int, token string) ([]models.VectorRecord, string, error) {
	listed := make([]models.VectorRecord, 0, len(f.records))
	for _, r := range f.records {
		listed = append(listed, models.VectorRecord{ID: r.ID})
	}
	return listed, "", nil
}

func (f *fakeIndex) Fetch(ctx context.Context, ids []string) (map[string]models.VectorRecord, error) {
	f.fetchCalled = true
	byID := make(map[string]models.VectorRecord)
	for _, r := range f.records {
		for _, id := range ids {
			if r.ID == id {
				byID[id] = r
			}
		}
	}
	return byID, nil
}

func characterRecords() []models.VectorRecord {
	return []models.VectorRecord{
		{ID: "marvel-hulk", Metadata: map[string]interface{}{
			"category": "Characters", "name": "Hulk", "publisher": "Marvel",
		}},
		{ID: "marvel-thor", Metadata: map[string]interface{}{
			"category": "Characters", "name": "Thor", "publisher": "Marvel",
		}},
	}
}

func newTestHandler(t *testing.T, records []models.VectorRecord) (*Handler, sqlmock.Sqlmock, *fakeIndex) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewTestLogger(t)
	pg := &database.PostgresClient{DB: db}
	index := &fakeIndex{records: records}
	corpus := vector.NewClient(index, fakeEmbedder{}, log)
	transformer := assets.NewTransformer(names.NewCanonicalizer(), pricing.NewEngine(log), pricing.NewHeuristics(0.20), log)

	handler, err := NewHandler(HandlerOptions{
		Corpus:      corpus,
		Transformer: transformer,
		Store:       assets.NewStore(pg, log),
		Logger:      log,
	})
	require.NoError(t, err)
	return handler, mock, index
}

// symbolsFor computes the real deterministic symbols the handler will
// try to insert for a set of records.
func symbolsFor(handler *Handler, records ...models.VectorRecord) []string {
	var symbols []string
	for _, record := range records {
		for _, p := range handler.transformer.Transform(record) {
			symbols = append(symbols, p.Symbol)
		}
	}
	return symbols
}

func expectInsert(mock sqlmock.Sqlmock, symbols ...string) {
	rows := sqlmock.NewRows([]string{"id", "symbol"})
	for i, symbol := range symbols {
		rows.AddRow(int64(i+1), symbol)
	}
	mock.ExpectQuery(`INSERT INTO assets .+ ON CONFLICT \(symbol\) DO NOTHING RETURNING id, symbol`).
		WillReturnRows(rows)
	if len(symbols) > 0 {
		mock.ExpectExec(`INSERT INTO price_snapshots`).
			WillReturnResult(sqlmock.NewResult(0, int64(len(symbols))))
	}
}

func TestExecuteSampleCategory(t *testing.T) {
	handler, mock, _ := newTestHandler(t, characterRecords())

	// Two records, one proposal each (no variants in their names).
	symbols := symbolsFor(handler, characterRecords()...)
	require.Len(t, symbols, 2)
	expectInsert(mock, symbols...)

	output, err := handler.Execute(context.Background(), &Input{Category: vector.CategoryCharacters, Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, 2, output.RecordsProcessed)
	assert.Equal(t, 2, output.ProposalsBuilt)
	assert.Equal(t, 2, output.AssetsInserted)
	assert.Equal(t, 0, output.AssetsSkipped)
	assert.Equal(t, 2, output.Snapshots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteAllDuplicatesSkipped(t *testing.T) {
	handler, mock, _ := newTestHandler(t, characterRecords())

	// ON CONFLICT suppressed every row.
	mock.ExpectQuery(`INSERT INTO assets .+ ON CONFLICT \(symbol\) DO NOTHING RETURNING id, symbol`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "symbol"}))

	output, err := handler.Execute(context.Background(), &Input{Category: vector.CategoryCharacters, Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, 2, output.AssetsSkipped)
	assert.Equal(t, 0, output.AssetsInserted)
	assert.Equal(t, 0, output.Snapshots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteExplicitRecordIDs(t *testing.T) {
	handler, mock, _ := newTestHandler(t, characterRecords())
	expectInsert(mock, symbolsFor(handler, characterRecords()[0])...)

	output, err := handler.Execute(context.Background(), &Input{RecordIDs: []string{"marvel-hulk", "missing"}})

	require.NoError(t, err)
	assert.Equal(t, 1, output.RecordsProcessed)
	assert.Equal(t, 1, output.AssetsInserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteFullListing(t *testing.T) {
	handler, mock, index := newTestHandler(t, characterRecords())
	expectInsert(mock, symbolsFor(handler, characterRecords()...)...)

	output, err := handler.Execute(context.Background(), &Input{Full: true})

	require.NoError(t, err)
	assert.Equal(t, 2, output.RecordsProcessed)
	// Listing only yields IDs; the metadata must come from a fetch pass.
	assert.True(t, index.fetchCalled)
	assert.Equal(t, 2, output.ProposalsBuilt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteBatchedSamplingReportsMilestones(t *testing.T) {
	handler, mock, _ := newTestHandler(t, characterRecords())
	expectInsert(mock, symbolsFor(handler, characterRecords()...)...)

	var milestones [][2]int
	handler.onBatchComplete = func(batchIndex, cumulativeCount int) {
		milestones = append(milestones, [2]int{batchIndex, cumulativeCount})
	}

	// Limit 4 at batch size 2 = two batches; the second yields only
	// already-seen records, so it contributes nothing and ends the loop.
	output, err := handler.Execute(context.Background(), &Input{
		Category:   vector.CategoryCharacters,
		Limit:      4,
		BatchSize:  2,
		BatchStart: 3,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, output.RecordsProcessed)
	assert.Equal(t, 2, output.Batches)
	assert.Equal(t, [][2]int{{3, 2}, {4, 2}}, milestones)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteNamespaceScopesIndex(t *testing.T) {
	handler, mock, index := newTestHandler(t, characterRecords())
	expectInsert(mock, symbolsFor(handler, characterRecords()...)...)

	_, err := handler.Execute(context.Background(), &Input{
		Category:  vector.CategoryCharacters,
		Limit:     10,
		Namespace: "staging",
	})

	require.NoError(t, err)
	assert.Equal(t, "staging", index.namespace)
}

func TestExecuteEmptyCorpus(t *testing.T) {
	handler, mock, _ := newTestHandler(t, nil)

	output, err := handler.Execute(context.Background(), &Input{Full: true})

	require.NoError(t, err)
	assert.Equal(t, 0, output.RecordsProcessed)
	assert.Equal(t, 0, output.ProposalsBuilt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleParsesPayloadAndDefaultsLimit(t *testing.T) {
	handler, mock, _ := newTestHandler(t, characterRecords())
	expectInsert(mock, symbolsFor(handler, characterRecords()...)...)

	job := &queue.Job{
		ID:      "job-1",
		Type:    TaskType,
		Payload: json.RawMessage(`{"category":"Characters"}`),
	}
	result, err := handler.Handle(context.Background(), job)

	require.NoError(t, err)
	output, ok := result.(*Output)
	require.True(t, ok)
	assert.Equal(t, 2, output.RecordsProcessed)
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	handler, _, _ := newTestHandler(t, nil)

	_, err := handler.Handle(context.Background(), &queue.Job{Payload: json.RawMessage(`{bad`)})
	require.Error(t, err)
}

func TestRegistrationBindsQueue(t *testing.T) {
	handler, _, _ := newTestHandler(t, nil)

	reg := handler.Registration()
	assert.Equal(t, TaskType, reg.JobType)
	assert.Equal(t, queue.QueuePineconeExpansion, reg.Queue)
	assert.NotEmpty(t, reg.Schema)
	assert.NotNil(t, reg.Handler)
	assert.Equal(t, DefaultConfig().Concurrency, reg.Concurrency)
}
