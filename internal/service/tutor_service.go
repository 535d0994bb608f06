package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
)

type tutorReader interface {
	ListActive(ctx context.Context) ([]models.TutorDetail, error)
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Tutor, error)
}

// TutorService exposes the tutor roster and resolves tutors from
// authenticated accounts for schedule ownership checks.
type TutorService struct {
	tutors tutorReader
	logger *zap.Logger
}

// NewTutorService creates a service instance.
func NewTutorService(tutors tutorReader, logger *zap.Logger) *TutorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorService{tutors: tutors, logger: logger}
}

// List returns the active roster in assignment scan order.
func (s *TutorService) List(ctx context.Context) ([]models.TutorDetail, error) {
	tutors, err := s.tutors.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tutors")
	}
	return tutors, nil
}

// Get loads one tutor by id.
func (s *TutorService) Get(ctx context.Context, id string) (*models.Tutor, error) {
	tutor, err := s.tutors.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	return tutor, nil
}

// ResolveAccount maps an authenticated user to their tutor record.
// Accounts without one get a forbidden error; it is the ownership
// gate for schedule edits.
func (s *TutorService) ResolveAccount(ctx context.Context, userID string) (*models.Tutor, error) {
	tutor, err := s.tutors.FindByUserID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "account is not linked to a tutor")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve tutor account")
	}
	return tutor, nil
}
