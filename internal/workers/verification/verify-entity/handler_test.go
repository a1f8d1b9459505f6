package verifyentity

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-workers/internal/common/database"
	"asset-workers/internal/common/errors"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/models"
	"asset-workers/internal/names"
	"asset-workers/internal/queue"
	"asset-workers/internal/verify"
)

type stubSource struct {
	name   string
	result *models.DataSourceResult
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Lookup(ctx context.Context, terms []string) (*models.DataSourceResult, error) {
	return s.result, nil
}

func newTestHandler(t *testing.T, superhero, marvel *models.DataSourceResult) (*Handler, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewTestLogger(t)
	service := verify.NewService(
		&database.PostgresClient{DB: db},
		names.NewCanonicalizer(),
		&stubSource{name: "superhero_api", result: superhero},
		&stubSource{name: "marvel", result: marvel},
		168,
		log,
	)

	handler, err := NewHandler(HandlerOptions{Service: service, Logger: log})
	require.NoError(t, err)
	return handler, mock
}

func entityRow(status string, lastVerified *time.Time) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name", "verification_status", "last_verified_at"})
	if lastVerified != nil {
		return rows.AddRow("ent-1", "Spider-Man", status, *lastVerified)
	}
	return rows.AddRow("ent-1", "Spider-Man", status, nil)
}

func verifyJob(t *testing.T, input Input) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(input)
	require.NoError(t, err)
	return &queue.Job{ID: "job-1", Type: TaskType, Payload: payload}
}

func TestHandleVerifiesEntity(t *testing.T) {
	superhero := &models.DataSourceResult{
		Name: "superhero_api", Confidence: 0.85,
		Data: map[string]interface{}{"biography": "Amazing Fantasy #15"},
	}
	handler, mock := newTestHandler(t, superhero, nil)

	mock.ExpectQuery(`SELECT id, name, verification_status, last_verified_at FROM narrative_entities`).
		WillReturnRows(entityRow("unverified", nil))
	mock.ExpectExec(`UPDATE narrative_entities SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := handler.Handle(context.Background(), verifyJob(t, Input{
		EntityTable: "narrative_entities",
		EntityID:    "ent-1",
	}))

	require.NoError(t, err)
	outcome, ok := result.(*verify.Outcome)
	require.True(t, ok)
	assert.False(t, outcome.Skipped)
	assert.Equal(t, 1, outcome.SourcesUsed)
	assert.Equal(t, "superhero_api", outcome.PrimarySource)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleSkipsFreshEntity(t *testing.T) {
	handler, mock := newTestHandler(t, nil, nil)
	recent := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery(`SELECT id, name, verification_status, last_verified_at FROM narrative_entities`).
		WillReturnRows(entityRow("verified", &recent))

	result, err := handler.Handle(context.Background(), verifyJob(t, Input{
		EntityTable: "narrative_entities",
		EntityID:    "ent-1",
	}))

	require.NoError(t, err)
	outcome := result.(*verify.Outcome)
	assert.True(t, outcome.Skipped)
	assert.Equal(t, "recently_verified", outcome.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleNoSourcesFailsPermanently(t *testing.T) {
	handler, mock := newTestHandler(t, nil, nil)

	mock.ExpectQuery(`SELECT id, name, verification_status, last_verified_at FROM narrative_entities`).
		WillReturnRows(entityRow("unverified", nil))
	mock.ExpectExec(`UPDATE narrative_entities SET verification_status`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := handler.Handle(context.Background(), verifyJob(t, Input{
		EntityTable: "narrative_entities",
		EntityID:    "ent-1",
	}))

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoDataSources, errors.CodeOf(err))
	assert.False(t, errors.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleRejectsUnknownTable(t *testing.T) {
	handler, _ := newTestHandler(t, nil, nil)

	_, err := handler.Handle(context.Background(), verifyJob(t, Input{
		EntityTable: "users",
		EntityID:    "ent-1",
	}))

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownEntityTable, errors.CodeOf(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	handler, _ := newTestHandler(t, nil, nil)

	_, err := handler.Handle(context.Background(), &queue.Job{Payload: json.RawMessage(`{bad`)})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeJobPayloadInvalid, errors.CodeOf(err))
}

func TestRegistrationBindsQueue(t *testing.T) {
	handler, _ := newTestHandler(t, nil, nil)

	reg := handler.Registration()
	assert.Equal(t, TaskType, reg.JobType)
	assert.Equal(t, queue.QueueEntityVerification, reg.Queue)
	assert.NotEmpty(t, reg.Schema)
	assert.Equal(t, DefaultConfig().Concurrency, reg.Concurrency)
}
