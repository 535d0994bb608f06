package service

import (
	"context"
	"database/sql"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	"github.com/eastbay-tutoring/scheduler-api/internal/repository"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
	"github.com/eastbay-tutoring/scheduler-api/pkg/jobs"
	"github.com/eastbay-tutoring/scheduler-api/pkg/storage"
)

type memExportJobs struct {
	jobs map[string]*models.ExportJob
}

func newMemExportJobs() *memExportJobs {
	return &memExportJobs{jobs: make(map[string]*models.ExportJob)}
}

func (m *memExportJobs) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = "job" + strconv.Itoa(len(m.jobs)+1)
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memExportJobs) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (m *memExportJobs) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *memExportJobs) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range m.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (m *memExportJobs) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	var finished []models.ExportJob
	for _, job := range m.jobs {
		if job.Status == models.ExportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			finished = append(finished, *job)
		}
	}
	return finished, nil
}

type recordingQueue struct {
	enqueued []jobs.Job
	err      error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, job)
	return nil
}

type stubRenderer struct {
	payload []byte
	err     error
}

func (r *stubRenderer) Export(ctx context.Context, userID, format string) ([]byte, string, error) {
	if r.err != nil {
		return nil, "", r.err
	}
	return r.payload, "text/csv", nil
}

func newExportFixture(t *testing.T, renderer *stubRenderer) (*ExportJobService, *memExportJobs, *recordingQueue) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := newMemExportJobs()
	queue := &recordingQueue{}
	signer := storage.NewSignedURLSigner("test_secret", time.Hour)
	svc := NewExportJobService(repo, queue, renderer, store, signer, ExportJobConfig{
		APIPrefix: "/api/v1",
	}, zap.NewNop())
	return svc, repo, queue
}

func TestExportJobServiceCreateJobQueues(t *testing.T) {
	svc, repo, queue := newExportFixture(t, &stubRenderer{payload: []byte("data")})

	job, err := svc.CreateJob(context.Background(), "u1", "csv")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0].ID)

	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)
}

func TestExportJobServiceCreateJobRejectsFormat(t *testing.T) {
	svc, _, queue := newExportFixture(t, &stubRenderer{})

	_, err := svc.CreateJob(context.Background(), "u1", "xml")
	require.Error(t, err)
	assert.Empty(t, queue.enqueued)
}

func TestExportJobServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, repo, queue := newExportFixture(t, &stubRenderer{})
	queue.err = assert.AnError

	job, err := svc.CreateJob(context.Background(), "u1", "csv")
	require.Error(t, err)
	assert.Nil(t, job)

	queued, _ := repo.ListQueued(context.Background(), 10)
	assert.Empty(t, queued)
}

func TestExportJobServiceHandleFinishesJob(t *testing.T) {
	svc, repo, _ := newExportFixture(t, &stubRenderer{payload: []byte("Date,Day,Time\n")})

	job := &models.ExportJob{UserID: "u1", Format: "csv"}
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, svc.Handle(context.Background(), jobs.Job{ID: job.ID, Type: "schedule_export"}))

	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	assert.Contains(t, *stored.ResultURL, "/api/v1/export/")

	token := (*stored.ResultURL)[strings.LastIndex(*stored.ResultURL, "/")+1:]
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, "Date,Day,Time\n", string(content))
}

func TestExportJobServiceHandleRequeuesOnFailure(t *testing.T) {
	svc, repo, _ := newExportFixture(t, &stubRenderer{err: assert.AnError})

	job := &models.ExportJob{UserID: "u1", Format: "csv"}
	require.NoError(t, repo.Create(context.Background(), job))

	err := svc.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 0})
	require.Error(t, err)

	stored, _ := repo.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ExportStatusQueued, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
}

func TestExportJobServiceHandleFailsAfterRetries(t *testing.T) {
	svc, repo, _ := newExportFixture(t, &stubRenderer{err: assert.AnError})

	job := &models.ExportJob{UserID: "u1", Format: "csv"}
	require.NoError(t, repo.Create(context.Background(), job))

	err := svc.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 3})
	require.Error(t, err)

	stored, _ := repo.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
	require.NotNil(t, stored.FinishedAt)
}

func TestExportJobServiceGetStatusOwnership(t *testing.T) {
	svc, repo, _ := newExportFixture(t, &stubRenderer{})

	job := &models.ExportJob{UserID: "u1", Format: "csv"}
	require.NoError(t, repo.Create(context.Background(), job))

	_, err := svc.GetStatus(context.Background(), job.ID, "intruder")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.GetStatus(context.Background(), "missing", "u1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	got, err := svc.GetStatus(context.Background(), job.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestExportJobServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue := newExportFixture(t, &stubRenderer{})

	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{UserID: "u1", Format: "csv"}))
	require.NoError(t, repo.Create(context.Background(), &models.ExportJob{UserID: "u2", Format: "pdf"}))

	svc.RecoverPendingJobs(context.Background())
	assert.Len(t, queue.enqueued, 2)
}
