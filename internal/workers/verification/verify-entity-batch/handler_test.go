package verifyentitybatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-workers/internal/common/database"
	"asset-workers/internal/common/errors"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/queue"
)

type capturedJob struct {
	jobType string
	payload json.RawMessage
}

type fakeEnqueuer struct {
	jobs []capturedJob
	err  error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, jobType string, payload json.RawMessage, opts queue.EnqueueOptions) (*queue.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.jobs = append(f.jobs, capturedJob{jobType: jobType, payload: payload})
	return &queue.Job{ID: "enqueued", Type: jobType, Payload: payload}, nil
}

func newTestHandler(t *testing.T, enqueuer *fakeEnqueuer) (*Handler, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	handler, err := NewHandler(HandlerOptions{
		DB:     &database.PostgresClient{DB: db},
		Jobs:   enqueuer,
		Logger: logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return handler, mock
}

func TestExecuteFansOutExplicitIDs(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	handler, _ := newTestHandler(t, enqueuer)

	output, err := handler.Execute(context.Background(), &Input{
		EntityTable:  "narrative_entities",
		EntityIDs:    []string{"ent-1", "ent-2"},
		ForceRefresh: true,
		Limit:        100,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, output.Selected)
	assert.Equal(t, 2, output.Enqueued)
	require.Len(t, enqueuer.jobs, 2)
	assert.Equal(t, queue.JobTypeVerifyEntity, enqueuer.jobs[0].jobType)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(enqueuer.jobs[0].payload, &payload))
	assert.Equal(t, "ent-1", payload["entityId"])
	assert.Equal(t, "narrative_entities", payload["entityTable"])
	assert.Equal(t, true, payload["forceRefresh"])
}

func TestExecuteSelectsStaleEntities(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	handler, mock := newTestHandler(t, enqueuer)

	mock.ExpectQuery(`SELECT id FROM creators WHERE verification_status`).
		WithArgs(168, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c-1").AddRow("c-2").AddRow("c-3"))

	output, err := handler.Execute(context.Background(), &Input{
		EntityTable: "creators",
		Limit:       50,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, output.Selected)
	assert.Equal(t, 3, output.Enqueued)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteNoStaleEntities(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	handler, mock := newTestHandler(t, enqueuer)

	mock.ExpectQuery(`SELECT id FROM narrative_entities WHERE verification_status`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	output, err := handler.Execute(context.Background(), &Input{
		EntityTable: "narrative_entities",
		Limit:       10,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, output.Selected)
	assert.Empty(t, enqueuer.jobs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteStopsOnEnqueueFailure(t *testing.T) {
	enqueuer := &fakeEnqueuer{err: errors.NewQueueOperationFailedError("enqueue", assert.AnError)}
	handler, _ := newTestHandler(t, enqueuer)

	output, err := handler.Execute(context.Background(), &Input{
		EntityTable: "narrative_entities",
		EntityIDs:   []string{"ent-1", "ent-2"},
		Limit:       100,
	})

	require.Error(t, err)
	assert.Equal(t, 0, output.Enqueued)
}

func TestHandleRejectsUnknownTable(t *testing.T) {
	handler, _ := newTestHandler(t, &fakeEnqueuer{})

	payload, err := json.Marshal(Input{EntityTable: "users"})
	require.NoError(t, err)
	_, err = handler.Handle(context.Background(), &queue.Job{Payload: payload})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownEntityTable, errors.CodeOf(err))
}

func TestHandleDefaultsLimit(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	handler, mock := newTestHandler(t, enqueuer)

	mock.ExpectQuery(`SELECT id FROM narrative_entities WHERE verification_status`).
		WithArgs(168, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ent-1"))

	payload, err := json.Marshal(Input{EntityTable: "narrative_entities"})
	require.NoError(t, err)
	result, err := handler.Handle(context.Background(), &queue.Job{ID: "job-1", Payload: payload})

	require.NoError(t, err)
	output := result.(*Output)
	assert.Equal(t, 1, output.Enqueued)
	assert.NoError(t, mock.ExpectationsWereMet())
}
