package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	"github.com/eastbay-tutoring/scheduler-api/internal/repository"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
	"github.com/eastbay-tutoring/scheduler-api/pkg/jobs"
	"github.com/eastbay-tutoring/scheduler-api/pkg/storage"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type scheduleRenderer interface {
	Export(ctx context.Context, userID, format string) ([]byte, string, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportJobConfig tunes background export behaviour.
type ExportJobConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    string
	ExpiresAt time.Time
}

// ExportJobService owns the schedule export job lifecycle: queueing,
// rendering through the booking exporter, storing the file and
// signing its download link.
type ExportJobService struct {
	repo     exportJobStore
	queue    jobDispatcher
	renderer scheduleRenderer
	storage  fileStorage
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportJobConfig
}

// NewExportJobService constructs the service.
func NewExportJobService(repo exportJobStore, queue jobDispatcher, renderer scheduleRenderer, store fileStorage, signer *storage.SignedURLSigner, cfg ExportJobConfig, logger *zap.Logger) *ExportJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportJobService{
		repo:     repo,
		queue:    queue,
		renderer: renderer,
		storage:  store,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// SetQueue attaches the dispatcher after construction. The queue's
// handler is this service's Handle method, so the two are built in
// sequence and joined here.
func (s *ExportJobService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// CreateJob persists a queued export job for the caller and hands it
// to the worker pool.
func (s *ExportJobService) CreateJob(ctx context.Context, userID, format string) (*models.ExportJob, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	job := &models.ExportJob{
		UserID: userID,
		Format: format,
		Status: models.ExportStatusQueued,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "schedule_export"}); err != nil {
		failed := models.ExportStatusFailed
		msg := "failed to enqueue job"
		progress := 100
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return job, nil
}

// GetStatus returns job metadata to its owner.
func (s *ExportJobService) GetStatus(ctx context.Context, id, userID string) (*models.ExportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.UserID != userID {
		return nil, appErrors.ErrForbidden
	}
	return job, nil
}

// ResolveDownload validates a signed token and opens the stored file.
func (s *ExportJobService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// Handle processes one queued job. Wired as the queue handler.
func (s *ExportJobService) Handle(ctx context.Context, job jobs.Job) error {
	record, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportStatusProcessing
	progress := 10
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}

	url, genErr := s.generate(ctx, record)
	if genErr != nil {
		msg := genErr.Error()
		if job.Attempt >= s.cfg.MaxRetries {
			failed := models.ExportStatusFailed
			progress = 100
			now := time.Now().UTC()
			if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &failed,
				Progress:     &progress,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				s.logger.Sugar().Warnw("failed to mark export job failed", "job_id", job.ID, "error", updateErr)
			}
		} else {
			queued := models.ExportStatusQueued
			reset := 0
			if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &queued,
				Progress:     &reset,
				ErrorMessage: &msg,
			}); updateErr != nil {
				s.logger.Sugar().Warnw("failed to mark export job queued", "job_id", job.ID, "error", updateErr)
			}
		}
		return genErr
	}

	finished := models.ExportStatusFinished
	progress = 100
	now := time.Now().UTC()
	clear := ""
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Sugar().Warnw("failed to mark export job finished", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}

func (s *ExportJobService) generate(ctx context.Context, job *models.ExportJob) (string, error) {
	payload, _, err := s.renderer.Export(ctx, job.UserID, job.Format)
	if err != nil {
		return "", err
	}

	timestamp := time.Now().UTC().Format("20060102_150405")
	filename := fmt.Sprintf("schedule_%s_%s.%s", job.ID, timestamp, job.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return "", err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/export/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token), nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *ExportJobService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued export jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "schedule_export"}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending export job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports on an
// interval.
func (s *ExportJobService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ExportJobService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	stale, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		s.logger.Sugar().Warnw("export cleanup list failed", "error", err)
		return
	}
	for _, job := range stale {
		if job.ResultURL == nil {
			continue
		}
		parts := strings.Split(*job.ResultURL, "/")
		token := parts[len(parts)-1]
		_, relPath, _, err := s.signer.Parse(token, true)
		if err != nil {
			continue
		}
		if err := s.storage.Delete(relPath); err != nil {
			s.logger.Sugar().Warnw("export cleanup delete failed", "job_id", job.ID, "error", err)
		}
	}
	if _, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("export filesystem cleanup failed", "error", err)
	}
}
