package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
)

type tutorRoster interface {
	ListActive(ctx context.Context) ([]models.TutorDetail, error)
}

type blockReader interface {
	IsBlocked(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) (bool, error)
}

type bookingCounter interface {
	CountByTutor(ctx context.Context) (map[string]int, error)
}

type homeTutorReader interface {
	HomeTutor(ctx context.Context, childID, course string) (string, error)
}

// AssignRequest describes the slot a tutor is needed for. ChildID and
// Course enable the continuity lookup; Date enables week-specific
// block checks and is omitted for pre-checks before a date is fixed.
type AssignRequest struct {
	Day     string
	Time    string
	ChildID string
	Course  string
	Date    *time.Time
}

// Decision kinds reported alongside the chosen tutor.
const (
	AssignHome       = "home"
	AssignSubstitute = "substitute"
	AssignFresh      = "fresh"
)

// AssignmentDecision is the engine's answer. A nil Tutor means no
// tutor can serve the slot. BusyTutor is set only when the home tutor
// was blocked and a substitute steps in.
type AssignmentDecision struct {
	Tutor     *models.TutorDetail
	BusyTutor *models.TutorDetail
	Kind      string
}

// Available reports whether any tutor can serve the slot.
func (d *AssignmentDecision) Available() bool {
	return d != nil && d.Tutor != nil
}

// AssignmentService decides which tutor serves a lesson slot. It
// prefers the pair's home tutor, substitutes in fixed roster order
// when the home tutor is blocked, and falls back to least-busy
// allocation for fresh pairs. The engine never writes; callers
// persist the decision.
type AssignmentService struct {
	tutors tutorRoster
	blocks blockReader
	counts bookingCounter
	pairs  homeTutorReader
	logger *zap.Logger
}

// NewAssignmentService creates the engine.
func NewAssignmentService(tutors tutorRoster, blocks blockReader, counts bookingCounter, pairs homeTutorReader, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{tutors: tutors, blocks: blocks, counts: counts, pairs: pairs, logger: logger}
}

// Assign resolves the tutor for the requested slot. Calling it twice
// against unchanged stores yields the same decision: the roster scan
// order is fixed and load ties break on that same order.
func (s *AssignmentService) Assign(ctx context.Context, req AssignRequest) (*AssignmentDecision, error) {
	day, err := models.NormalizeDay(req.Day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid day of week")
	}
	minutes, err := models.ParseClock(req.Time)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time slot")
	}

	var weekStartMs int64
	if req.Date != nil {
		weekStartMs = models.WeekStartMs(*req.Date)
	}

	roster, err := s.tutors.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor roster")
	}
	if len(roster) == 0 {
		return &AssignmentDecision{}, nil
	}

	if req.ChildID != "" && req.Course != "" {
		decision, ok, err := s.assignByContinuity(ctx, roster, day, req.Time, minutes, weekStartMs, req.ChildID, req.Course)
		if err != nil {
			return nil, err
		}
		if ok {
			return decision, nil
		}
	}

	return s.assignFresh(ctx, roster, day, req.Time, minutes, weekStartMs)
}

// assignByContinuity applies the home-tutor rule. The bool result is
// false when the pair has no usable home tutor and the caller should
// fall through to fresh allocation.
func (s *AssignmentService) assignByContinuity(ctx context.Context, roster []models.TutorDetail, day, timeSlot string, minutes int, weekStartMs int64, childID, course string) (*AssignmentDecision, bool, error) {
	homeID, err := s.pairs.HomeTutor(ctx, childID, course)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve home tutor")
	}
	if homeID == "" {
		return nil, false, nil
	}

	var home *models.TutorDetail
	for i := range roster {
		if roster[i].ID == homeID {
			home = &roster[i]
			break
		}
	}
	if home == nil {
		// Home tutor left the roster; stale reference, start fresh.
		s.logger.Debug("stale home tutor reference",
			zap.String("tutor_id", homeID), zap.String("child_id", childID), zap.String("course", course))
		return nil, false, nil
	}

	blocked, err := s.isBlocked(ctx, home, day, timeSlot, minutes, weekStartMs)
	if err != nil {
		return nil, false, err
	}
	if !blocked {
		return &AssignmentDecision{Tutor: home, Kind: AssignHome}, true, nil
	}

	for i := range roster {
		candidate := &roster[i]
		if candidate.ID == home.ID {
			continue
		}
		candidateBlocked, err := s.isBlocked(ctx, candidate, day, timeSlot, minutes, weekStartMs)
		if err != nil {
			return nil, false, err
		}
		if !candidateBlocked {
			return &AssignmentDecision{Tutor: candidate, BusyTutor: home, Kind: AssignSubstitute}, true, nil
		}
	}
	return &AssignmentDecision{}, true, nil
}

// assignFresh picks the least-busy unblocked tutor in roster order.
func (s *AssignmentService) assignFresh(ctx context.Context, roster []models.TutorDetail, day, timeSlot string, minutes int, weekStartMs int64) (*AssignmentDecision, error) {
	var open []*models.TutorDetail
	for i := range roster {
		blocked, err := s.isBlocked(ctx, &roster[i], day, timeSlot, minutes, weekStartMs)
		if err != nil {
			return nil, err
		}
		if !blocked {
			open = append(open, &roster[i])
		}
	}
	if len(open) == 0 {
		return &AssignmentDecision{}, nil
	}

	counts, err := s.counts.CountByTutor(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking counts")
	}

	best := open[0]
	for _, candidate := range open[1:] {
		if counts[candidate.ID] < counts[best.ID] {
			best = candidate
		}
	}
	return &AssignmentDecision{Tutor: best, Kind: AssignFresh}, nil
}

// isBlocked folds the tutor's intrinsic weekly window together with
// the recurring and week-specific blocks from the availability store.
func (s *AssignmentService) isBlocked(ctx context.Context, tutor *models.TutorDetail, day, timeSlot string, minutes int, weekStartMs int64) (bool, error) {
	if !tutor.WithinWindow(day, minutes) {
		return true, nil
	}
	blocked, err := s.blocks.IsBlocked(ctx, tutor.ID, day, timeSlot, weekStartMs)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check tutor availability")
	}
	return blocked, nil
}
