package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
)

type memBookingStore struct {
	bookings []models.Booking
}

func (m *memBookingStore) ListFutureByTutor(ctx context.Context, tutorID string, from time.Time) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range m.bookings {
		if b.TutorID == tutorID && !b.LessonDate.Before(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookingStore) ListFutureByBusyTutor(ctx context.Context, tutorID string, from time.Time) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range m.bookings {
		if b.BusyTutorID != nil && *b.BusyTutorID == tutorID && !b.LessonDate.Before(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookingStore) UpdateAssignment(ctx context.Context, bookingID, tutorID string, busyTutorID *string) error {
	for i := range m.bookings {
		if m.bookings[i].ID == bookingID {
			m.bookings[i].TutorID = tutorID
			m.bookings[i].BusyTutorID = busyTutorID
			m.bookings[i].NeedsReschedule = false
		}
	}
	return nil
}

func (m *memBookingStore) MarkNeedsReschedule(ctx context.Context, bookingID string) error {
	for i := range m.bookings {
		if m.bookings[i].ID == bookingID {
			m.bookings[i].NeedsReschedule = true
		}
	}
	return nil
}

func (m *memBookingStore) find(id string) *models.Booking {
	for i := range m.bookings {
		if m.bookings[i].ID == id {
			return &m.bookings[i]
		}
	}
	return nil
}

var reconcileNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func newReconciler(store *memBookingStore, blocks *stubBlocks) *ReconcileService {
	svc := NewReconcileService(store, testRoster(), blocks, nil, zap.NewNop())
	svc.now = func() time.Time { return reconcileNow }
	return svc
}

func futureBooking(id, tutorID string, busyTutorID *string, day, slot string) models.Booking {
	return models.Booking{
		ID:          id,
		TutorID:     tutorID,
		BusyTutorID: busyTutorID,
		DayOfWeek:   day,
		TimeSlot:    slot,
		LessonDate:  time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestReconcileSubstitutesBlockedBooking(t *testing.T) {
	store := &memBookingStore{bookings: []models.Booking{
		futureBooking("b1", "krishay", nil, "Monday", "2:30 PM"),
	}}
	svc := newReconciler(store, &stubBlocks{blocked: map[string]bool{"krishay": true}})

	result, err := svc.Reconcile(context.Background(), "krishay")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Substitutions)

	booking := store.find("b1")
	assert.Equal(t, "om", booking.TutorID)
	require.NotNil(t, booking.BusyTutorID)
	assert.Equal(t, "krishay", *booking.BusyTutorID)
}

func TestReconcilePreservesDisplacedHomeTutor(t *testing.T) {
	krishay := "krishay"
	store := &memBookingStore{bookings: []models.Booking{
		futureBooking("b1", "om", &krishay, "Monday", "2:30 PM"),
	}}
	// Om and Krishay both blocked, so the booking lands on Tejas while
	// Krishay stays recorded as the displaced home tutor.
	svc := newReconciler(store, &stubBlocks{blocked: map[string]bool{"om": true, "krishay": true}})

	result, err := svc.Reconcile(context.Background(), "om")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Substitutions)

	booking := store.find("b1")
	assert.Equal(t, "tejas", booking.TutorID)
	require.NotNil(t, booking.BusyTutorID)
	assert.Equal(t, "krishay", *booking.BusyTutorID)
}

func TestReconcileSubstituteEqualsHomeClearsBusy(t *testing.T) {
	krishay := "krishay"
	store := &memBookingStore{bookings: []models.Booking{
		futureBooking("b1", "om", &krishay, "Monday", "2:30 PM"),
	}}
	// Om is blocked and Krishay is free again: the substitution scan
	// picks Krishay, and handing the lesson back to its home tutor
	// clears the displaced marker.
	svc := newReconciler(store, &stubBlocks{blocked: map[string]bool{"om": true}})

	result, err := svc.Reconcile(context.Background(), "om")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Substitutions)

	booking := store.find("b1")
	assert.Equal(t, "krishay", booking.TutorID)
	assert.Nil(t, booking.BusyTutorID)
}

func TestReconcileMarksNeedsRescheduleOnce(t *testing.T) {
	store := &memBookingStore{bookings: []models.Booking{
		futureBooking("b1", "krishay", nil, "Friday", "3:30 PM"),
	}}
	svc := newReconciler(store, &stubBlocks{blocked: map[string]bool{"krishay": true, "om": true, "tejas": true}})

	result, err := svc.Reconcile(context.Background(), "krishay")
	require.NoError(t, err)
	assert.Equal(t, 1, result.NeedsReschedule)
	assert.True(t, store.find("b1").NeedsReschedule)

	// Second run with unchanged state flags nothing new.
	result, err = svc.Reconcile(context.Background(), "krishay")
	require.NoError(t, err)
	assert.Equal(t, 0, result.NeedsReschedule)
	assert.Equal(t, 0, result.Substitutions)
}

func TestReconcileRestoresDisplacedBooking(t *testing.T) {
	krishay := "krishay"
	store := &memBookingStore{bookings: []models.Booking{
		futureBooking("b1", "tejas", &krishay, "Monday", "2:30 PM"),
	}}
	svc := newReconciler(store, &stubBlocks{})

	result, err := svc.Reconcile(context.Background(), "krishay")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Restorations)

	booking := store.find("b1")
	assert.Equal(t, "krishay", booking.TutorID)
	assert.Nil(t, booking.BusyTutorID)

	// Idempotence: the restored booking no longer lists a busy tutor.
	result, err = svc.Reconcile(context.Background(), "krishay")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Restorations)
	assert.Equal(t, 0, result.Substitutions)
}

func TestReconcileSkipsRestorationWhileStillBlocked(t *testing.T) {
	krishay := "krishay"
	store := &memBookingStore{bookings: []models.Booking{
		futureBooking("b1", "tejas", &krishay, "Monday", "2:30 PM"),
	}}
	svc := newReconciler(store, &stubBlocks{blocked: map[string]bool{"krishay": true}})

	result, err := svc.Reconcile(context.Background(), "krishay")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Restorations)
	assert.Equal(t, "tejas", store.find("b1").TutorID)
}

func TestReconcileIgnoresPastBookings(t *testing.T) {
	past := futureBooking("b1", "krishay", nil, "Monday", "2:30 PM")
	past.LessonDate = time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	store := &memBookingStore{bookings: []models.Booking{past}}
	svc := newReconciler(store, &stubBlocks{blocked: map[string]bool{"krishay": true}})

	result, err := svc.Reconcile(context.Background(), "krishay")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Substitutions)
	assert.Equal(t, "krishay", store.find("b1").TutorID)
}

func TestReconcileUnknownTutor(t *testing.T) {
	svc := newReconciler(&memBookingStore{}, &stubBlocks{})

	_, err := svc.Reconcile(context.Background(), "nobody")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
