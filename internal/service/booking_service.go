package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/eastbay-tutoring/scheduler-api/internal/calendar"
	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
	"github.com/eastbay-tutoring/scheduler-api/pkg/export"
)

type bookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	Delete(ctx context.Context, userID, bookingID string) error
	ListByUser(ctx context.Context, userID string) ([]models.Booking, error)
	CountByChildCourse(ctx context.Context, childID, course string) (int, error)
	SetLinks(ctx context.Context, bookingID string, meetLink, eventLink *string) error
}

type homeTutorIndex interface {
	Establish(ctx context.Context, childID, course, tutorID string) error
	Release(ctx context.Context, childID, course string) error
}

type assigner interface {
	Assign(ctx context.Context, req AssignRequest) (*AssignmentDecision, error)
}

type meetLinkClient interface {
	GenerateMeetLink(ctx context.Context, lesson calendar.Lesson) (*calendar.EventLinks, error)
}

// CreateBookingRequest books one lesson, or a weekly series when
// Weeks > 1. Each series instance is an independent booking on a
// successive week, assigned separately through the engine.
type CreateBookingRequest struct {
	ChildID   string `json:"child_id" validate:"required"`
	ChildName string `json:"child" validate:"required"`
	Grade     string `json:"grade" validate:"required"`
	Course    string `json:"course" validate:"required"`
	Day       string `json:"day" validate:"required"`
	Time      string `json:"time" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Weeks     int    `json:"weeks" validate:"omitempty,min=1"`
}

// BookingSeriesResult reports what a booking request produced.
type BookingSeriesResult struct {
	Bookings []models.Booking `json:"bookings"`
	Skipped  []string         `json:"skipped_dates,omitempty"`
}

// BookingService owns the booking lifecycle: creation through the
// assignment engine, cancellation, listing, meeting links and the
// printable schedule export.
type BookingService struct {
	bookings  bookingStore
	pairs     homeTutorIndex
	engine    assigner
	links     meetLinkClient
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cache     *CacheService
	maxWeeks  int
	location  *time.Location
	now       func() time.Time
}

const timesCachePrefix = "times:"

// NewBookingService creates a service instance.
func NewBookingService(
	bookings bookingStore,
	pairs homeTutorIndex,
	engine assigner,
	links meetLinkClient,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cache *CacheService,
	maxWeeks int,
	location *time.Location,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxWeeks < 1 {
		maxWeeks = 1
	}
	if location == nil {
		location = time.UTC
	}
	return &BookingService{
		bookings:  bookings,
		pairs:     pairs,
		engine:    engine,
		links:     links,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		cache:     cache,
		maxWeeks:  maxWeeks,
		location:  location,
		now:       time.Now,
	}
}

// Create books the requested slot for the child. When every tutor is
// blocked for every requested week, nothing is persisted and the
// caller gets a NO_TUTOR_AVAILABLE rejection.
func (s *BookingService) Create(ctx context.Context, userID string, req CreateBookingRequest) (*BookingSeriesResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	day, err := models.NormalizeDay(req.Day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid day of week")
	}
	firstDate, err := time.ParseInLocation("2006-01-02", req.Date, s.location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson date")
	}
	// The day of week is part of every slot key; a date on a different
	// weekday would poison blocking checks and reconciliation for the
	// whole series.
	if firstDate.Weekday().String() != day {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson date does not fall on "+day)
	}
	nowLocal := s.now().In(s.location)
	today := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), 0, 0, 0, 0, s.location)
	if firstDate.Before(today) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson date is in the past")
	}

	weeks := req.Weeks
	if weeks < 1 {
		weeks = 1
	}
	if weeks > s.maxWeeks {
		weeks = s.maxWeeks
	}

	result := &BookingSeriesResult{}
	for i := 0; i < weeks; i++ {
		date := firstDate.AddDate(0, 0, 7*i)
		decision, err := s.engine.Assign(ctx, AssignRequest{
			Day:     day,
			Time:    req.Time,
			ChildID: req.ChildID,
			Course:  req.Course,
			Date:    &date,
		})
		if err != nil {
			return nil, err
		}
		if !decision.Available() {
			result.Skipped = append(result.Skipped, date.Format("2006-01-02"))
			continue
		}

		booking := &models.Booking{
			UserID:     userID,
			ChildID:    req.ChildID,
			ChildName:  req.ChildName,
			Grade:      req.Grade,
			Course:     req.Course,
			DayOfWeek:  day,
			TimeSlot:   req.Time,
			LessonDate: date,
			TutorID:    decision.Tutor.ID,
			TutorName:  decision.Tutor.Name,
		}
		if decision.BusyTutor != nil {
			busyID := decision.BusyTutor.ID
			busyName := decision.BusyTutor.Name
			booking.BusyTutorID = &busyID
			booking.BusyTutorName = &busyName
		}
		if err := s.bookings.Create(ctx, booking); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
		}

		// Continuity belongs to the home tutor: the displaced tutor
		// for a substituted first lesson, the assignee otherwise.
		homeID := decision.Tutor.ID
		if decision.BusyTutor != nil {
			homeID = decision.BusyTutor.ID
		}
		if err := s.pairs.Establish(ctx, req.ChildID, req.Course, homeID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record home tutor")
		}

		if s.metrics != nil {
			s.metrics.RecordBookingCreated(decision.Kind)
		}
		result.Bookings = append(result.Bookings, *booking)
	}

	if len(result.Bookings) == 0 {
		return nil, appErrors.ErrNoTutorAvailable
	}
	return result, nil
}

// AvailableTimes returns the slots on the given day that at least one
// tutor can serve. The check is recurring-only: without a concrete
// date there is no week to test week-specific blocks against.
func (s *BookingService) AvailableTimes(ctx context.Context, day string) ([]string, error) {
	normalized, err := models.NormalizeDay(day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid day of week")
	}

	cacheKey := timesCachePrefix + normalized
	var cached []string
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	times := make([]string, 0, len(models.TimeSlots))
	for _, slot := range models.TimeSlots {
		decision, err := s.engine.Assign(ctx, AssignRequest{Day: normalized, Time: slot})
		if err != nil {
			return nil, err
		}
		if decision.Available() {
			times = append(times, slot)
		}
	}
	_ = s.cache.Set(ctx, cacheKey, times, 0)
	return times, nil
}

// ListMine returns the caller's bookings ordered by lesson date.
func (s *BookingService) ListMine(ctx context.Context, userID string) ([]models.Booking, error) {
	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return bookings, nil
}

// Cancel deletes a booking owned by the caller and releases the pair's
// home tutor when no bookings remain for it.
func (s *BookingService) Cancel(ctx context.Context, userID, bookingID string) error {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if err := s.bookings.Delete(ctx, userID, bookingID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete booking")
	}

	remaining, err := s.bookings.CountByChildCourse(ctx, booking.ChildID, booking.Course)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count remaining bookings")
	}
	if remaining == 0 {
		if err := s.pairs.Release(ctx, booking.ChildID, booking.Course); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release home tutor")
		}
	}
	return nil
}

// AttachMeetLink asks the calendar service for meeting links and
// stores them on the booking. A calendar failure leaves the booking
// untouched and is retryable.
func (s *BookingService) AttachMeetLink(ctx context.Context, userID, bookingID string) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if booking.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another account")
	}

	links, err := s.links.GenerateMeetLink(ctx, calendar.Lesson{
		Child:  booking.ChildName,
		Grade:  booking.Grade,
		Course: booking.Course,
		Date:   booking.LessonDate.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	var meet, event *string
	if links.MeetLink != "" {
		meet = &links.MeetLink
	}
	if links.EventLink != "" {
		event = &links.EventLink
	}
	if err := s.bookings.SetLinks(ctx, bookingID, meet, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store meeting links")
	}
	booking.MeetLink = meet
	booking.EventLink = event
	return booking, nil
}

// Export renders the caller's lessons as a printable table. Formats
// match the async job path: csv or pdf, anything else is rejected.
func (s *BookingService) Export(ctx context.Context, userID, format string) ([]byte, string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	bookings, err := s.ListMine(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	data := export.Dataset{
		Title:   "Lesson Schedule",
		Headers: []string{"Date", "Day", "Time", "Child", "Course", "Tutor", "Status"},
	}
	for _, b := range bookings {
		status := "scheduled"
		if b.NeedsReschedule {
			status = "needs reschedule"
		} else if b.BusyTutorName != nil {
			status = "substitute for " + *b.BusyTutorName
		}
		data.Rows = append(data.Rows, map[string]string{
			"Date":   b.LessonDate.Format("2006-01-02"),
			"Day":    b.DayOfWeek,
			"Time":   b.TimeSlot,
			"Child":  b.ChildName,
			"Course": b.Course,
			"Tutor":  b.TutorName,
			"Status": status,
		})
	}

	switch format {
	case models.ExportFormatPDF:
		payload, err := export.PDF(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	case models.ExportFormatCSV:
		payload, err := export.CSV(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
