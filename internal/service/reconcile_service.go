package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
)

type reconcileBookingStore interface {
	ListFutureByTutor(ctx context.Context, tutorID string, from time.Time) ([]models.Booking, error)
	ListFutureByBusyTutor(ctx context.Context, tutorID string, from time.Time) ([]models.Booking, error)
	UpdateAssignment(ctx context.Context, bookingID, tutorID string, busyTutorID *string) error
	MarkNeedsReschedule(ctx context.Context, bookingID string) error
}

// ReconcileService re-evaluates future bookings after a tutor's
// availability changes: it moves bookings off the tutor where the slot
// is now blocked and hands back bookings the tutor was displaced from
// where the slot has opened up again. Past bookings are never touched
// and repeated runs with unchanged state make no further changes.
type ReconcileService struct {
	bookings reconcileBookingStore
	tutors   tutorRoster
	blocks   blockReader
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewReconcileService creates the reconciliation engine.
func NewReconcileService(bookings reconcileBookingStore, tutors tutorRoster, blocks blockReader, metrics *MetricsService, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{
		bookings: bookings,
		tutors:   tutors,
		blocks:   blocks,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Reconcile runs the substitution pass and the restoration pass for
// the tutor and returns aggregate counts for user-facing confirmation.
func (s *ReconcileService) Reconcile(ctx context.Context, tutorID string) (models.ReconcileResult, error) {
	var result models.ReconcileResult

	roster, err := s.tutors.ListActive(ctx)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor roster")
	}
	var subject *models.TutorDetail
	for i := range roster {
		if roster[i].ID == tutorID {
			subject = &roster[i]
			break
		}
	}
	if subject == nil {
		return result, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
	}

	now := s.now().UTC()

	if err := s.substitutionPass(ctx, subject, roster, now, &result); err != nil {
		return result, err
	}
	if err := s.restorationPass(ctx, subject, now, &result); err != nil {
		return result, err
	}

	if s.metrics != nil {
		s.metrics.RecordReconciliation(result)
	}
	s.logger.Info("availability reconciled",
		zap.String("tutor_id", tutorID),
		zap.Int("substitutions", result.Substitutions),
		zap.Int("restorations", result.Restorations),
		zap.Int("needs_reschedule", result.NeedsReschedule))
	return result, nil
}

// substitutionPass moves future bookings off the tutor wherever the
// slot is now blocked. When the booking already records a displaced
// home tutor, that record is preserved: only the serving side of the
// substitution changes, the home tutor is never re-derived.
func (s *ReconcileService) substitutionPass(ctx context.Context, subject *models.TutorDetail, roster []models.TutorDetail, now time.Time, result *models.ReconcileResult) error {
	assigned, err := s.bookings.ListFutureByTutor(ctx, subject.ID, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tutor bookings")
	}

	for i := range assigned {
		booking := &assigned[i]
		result.BookingsScanned++

		blocked, err := s.slotBlocked(ctx, subject, booking)
		if err != nil {
			return err
		}
		if !blocked {
			continue
		}

		substitute, err := s.findSubstitute(ctx, roster, subject.ID, booking)
		if err != nil {
			return err
		}
		if substitute == nil {
			if booking.NeedsReschedule {
				continue
			}
			if err := s.bookings.MarkNeedsReschedule(ctx, booking.ID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag booking for reschedule")
			}
			result.NeedsReschedule++
			s.logger.Warn("no substitute available",
				zap.String("booking_id", booking.ID),
				zap.String("tutor_id", subject.ID),
				zap.String("day", booking.DayOfWeek),
				zap.String("time", booking.TimeSlot))
			continue
		}

		busyID := subject.ID
		if booking.BusyTutorID != nil {
			busyID = *booking.BusyTutorID
		}
		var busy *string
		if substitute.ID != busyID {
			busy = &busyID
		}
		if err := s.bookings.UpdateAssignment(ctx, booking.ID, substitute.ID, busy); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign booking")
		}
		result.Substitutions++
	}
	return nil
}

// restorationPass hands bookings back to the tutor wherever they were
// displaced and the slot is no longer blocked for them.
func (s *ReconcileService) restorationPass(ctx context.Context, subject *models.TutorDetail, now time.Time, result *models.ReconcileResult) error {
	displaced, err := s.bookings.ListFutureByBusyTutor(ctx, subject.ID, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list displaced bookings")
	}

	for i := range displaced {
		booking := &displaced[i]
		if booking.TutorID == subject.ID {
			continue
		}
		result.BookingsScanned++

		blocked, err := s.slotBlocked(ctx, subject, booking)
		if err != nil {
			return err
		}
		if blocked {
			continue
		}

		if err := s.bookings.UpdateAssignment(ctx, booking.ID, subject.ID, nil); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore booking")
		}
		result.Restorations++
	}
	return nil
}

// findSubstitute scans the roster in fixed order for a tutor, other
// than the excluded one, free for the booking's slot.
func (s *ReconcileService) findSubstitute(ctx context.Context, roster []models.TutorDetail, excludeID string, booking *models.Booking) (*models.TutorDetail, error) {
	for i := range roster {
		candidate := &roster[i]
		if candidate.ID == excludeID {
			continue
		}
		blocked, err := s.slotBlocked(ctx, candidate, booking)
		if err != nil {
			return nil, err
		}
		if !blocked {
			return candidate, nil
		}
	}
	return nil, nil
}

func (s *ReconcileService) slotBlocked(ctx context.Context, tutor *models.TutorDetail, booking *models.Booking) (bool, error) {
	minutes, err := models.ParseClock(booking.TimeSlot)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "booking carries malformed time slot")
	}
	if !tutor.WithinWindow(booking.DayOfWeek, minutes) {
		return true, nil
	}
	blocked, err := s.blocks.IsBlocked(ctx, tutor.ID, booking.DayOfWeek, booking.TimeSlot, models.WeekStartMs(booking.LessonDate))
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check tutor availability")
	}
	return blocked, nil
}
