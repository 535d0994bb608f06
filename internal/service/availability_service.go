package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
)

type availabilityStore interface {
	ListByTutor(ctx context.Context, tutorID string) ([]models.UnavailableSlot, error)
	SlotState(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) (models.SlotState, error)
	SetWeekBlock(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) error
	SetRecurringBlock(ctx context.Context, tutorID, day, timeSlot string) error
	DeleteWeekBlock(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) error
	ClearSlot(ctx context.Context, tutorID, day, timeSlot string) error
}

type reconciler interface {
	Reconcile(ctx context.Context, tutorID string) (models.ReconcileResult, error)
}

// AvailabilityService owns the tutor schedule grid: reading the
// availability document and the three-click slot toggle. Every state
// change triggers reconciliation before the call returns, so the
// tutor sees the fallout of their edit in the same response.
type AvailabilityService struct {
	store     availabilityStore
	reconcile reconciler
	cache     *CacheService
	logger    *zap.Logger
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(store availabilityStore, reconcile reconciler, cache *CacheService, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{store: store, reconcile: reconcile, cache: cache, logger: logger}
}

const scheduleCachePrefix = "schedule:"

// GetSchedule returns the tutor's availability document.
func (s *AvailabilityService) GetSchedule(ctx context.Context, tutorID string) (*models.ScheduleDocument, error) {
	cacheKey := scheduleCachePrefix + tutorID
	var cached models.ScheduleDocument
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	slots, err := s.store.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	doc := models.BuildScheduleDocument(slots)
	_ = s.cache.Set(ctx, cacheKey, doc, 0)
	return &doc, nil
}

// ToggleSlot advances the slot through the three-click cycle:
// available -> blocked this week -> blocked every week -> available.
// Clearing a recurring block also clears every week-specific block
// ever written for that day and time.
func (s *AvailabilityService) ToggleSlot(ctx context.Context, tutorID, day, timeSlot string, weekStart time.Time) (*models.ToggleResult, error) {
	day, err := models.NormalizeDay(day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid day of week")
	}
	if _, err := models.ParseClock(timeSlot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time slot")
	}
	weekStartMs := models.WeekStartMs(weekStart)

	state, err := s.store.SlotState(ctx, tutorID, day, timeSlot, weekStartMs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read slot state")
	}

	var next models.SlotState
	switch state {
	case models.SlotAvailable:
		if err := s.store.SetWeekBlock(ctx, tutorID, day, timeSlot, weekStartMs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to block slot")
		}
		next = models.SlotWeek
	case models.SlotWeek:
		if err := s.store.DeleteWeekBlock(ctx, tutorID, day, timeSlot, weekStartMs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote slot block")
		}
		if err := s.store.SetRecurringBlock(ctx, tutorID, day, timeSlot); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote slot block")
		}
		next = models.SlotRecurring
	case models.SlotRecurring:
		if err := s.store.ClearSlot(ctx, tutorID, day, timeSlot); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear slot")
		}
		next = models.SlotAvailable
	}

	_ = s.cache.Invalidate(ctx, scheduleCachePrefix+tutorID)
	_ = s.cache.Invalidate(ctx, timesCachePrefix+day)

	// The block write above is already durable; a crash here leaves
	// availability updated without reconciliation. Re-running the
	// toggle's reconcile is safe, so the gap is recoverable.
	rec, err := s.reconcile.Reconcile(ctx, tutorID)
	if err != nil {
		return nil, err
	}

	return &models.ToggleResult{
		DayOfWeek: day,
		TimeSlot:  timeSlot,
		State:     next,
		Reconcile: rec,
	}, nil
}
