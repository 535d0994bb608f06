package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
)

// memAvailabilityStore keeps blocks in a map keyed the same way the
// schedule document keys slots.
type memAvailabilityStore struct {
	recurring map[string]bool
	weeks     map[string]bool
}

func newMemAvailabilityStore() *memAvailabilityStore {
	return &memAvailabilityStore{recurring: map[string]bool{}, weeks: map[string]bool{}}
}

func (m *memAvailabilityStore) ListByTutor(ctx context.Context, tutorID string) ([]models.UnavailableSlot, error) {
	return nil, nil
}

func (m *memAvailabilityStore) SlotState(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) (models.SlotState, error) {
	if m.recurring[models.RecurringKey(day, timeSlot)] {
		return models.SlotRecurring, nil
	}
	if m.weeks[models.WeekKey(day, timeSlot, weekStartMs)] {
		return models.SlotWeek, nil
	}
	return models.SlotAvailable, nil
}

func (m *memAvailabilityStore) SetWeekBlock(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) error {
	m.weeks[models.WeekKey(day, timeSlot, weekStartMs)] = true
	return nil
}

func (m *memAvailabilityStore) SetRecurringBlock(ctx context.Context, tutorID, day, timeSlot string) error {
	m.recurring[models.RecurringKey(day, timeSlot)] = true
	return nil
}

func (m *memAvailabilityStore) DeleteWeekBlock(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) error {
	delete(m.weeks, models.WeekKey(day, timeSlot, weekStartMs))
	return nil
}

func (m *memAvailabilityStore) ClearSlot(ctx context.Context, tutorID, day, timeSlot string) error {
	delete(m.recurring, models.RecurringKey(day, timeSlot))
	for key := range m.weeks {
		if len(key) > len(day+"-"+timeSlot) && key[:len(day+"-"+timeSlot)] == day+"-"+timeSlot {
			delete(m.weeks, key)
		}
	}
	return nil
}

type stubReconciler struct {
	calls  int
	result models.ReconcileResult
}

func (s *stubReconciler) Reconcile(ctx context.Context, tutorID string) (models.ReconcileResult, error) {
	s.calls++
	return s.result, nil
}

func newAvailabilityFixture() (*AvailabilityService, *memAvailabilityStore, *stubReconciler) {
	store := newMemAvailabilityStore()
	rec := &stubReconciler{}
	cache := NewCacheService(nil, nil, 0, zap.NewNop(), false)
	return NewAvailabilityService(store, rec, cache, zap.NewNop()), store, rec
}

func TestToggleSlotThreeClickCycle(t *testing.T) {
	svc, store, rec := newAvailabilityFixture()
	weekStart := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	weekMs := models.WeekStartMs(weekStart)

	// Click 1: available -> blocked this week.
	result, err := svc.ToggleSlot(context.Background(), "t1", "monday", "10:30 AM", weekStart)
	require.NoError(t, err)
	assert.Equal(t, models.SlotWeek, result.State)
	assert.Equal(t, "Monday", result.DayOfWeek)
	assert.True(t, store.weeks[models.WeekKey("Monday", "10:30 AM", weekMs)])

	// Click 2: blocked this week -> blocked every week.
	result, err = svc.ToggleSlot(context.Background(), "t1", "Monday", "10:30 AM", weekStart)
	require.NoError(t, err)
	assert.Equal(t, models.SlotRecurring, result.State)
	assert.False(t, store.weeks[models.WeekKey("Monday", "10:30 AM", weekMs)])
	assert.True(t, store.recurring[models.RecurringKey("Monday", "10:30 AM")])

	// Click 3: blocked every week -> available, no residue.
	result, err = svc.ToggleSlot(context.Background(), "t1", "Monday", "10:30 AM", weekStart)
	require.NoError(t, err)
	assert.Equal(t, models.SlotAvailable, result.State)
	assert.Empty(t, store.recurring)
	assert.Empty(t, store.weeks)

	assert.Equal(t, 3, rec.calls)
}

func TestToggleSlotInvalidatesCachedReads(t *testing.T) {
	store := newMemAvailabilityStore()
	rec := &stubReconciler{}
	repo := newMemCacheRepo()
	repo.entries["schedule:t1"] = []byte(`{}`)
	repo.entries["times:Monday"] = []byte(`["10:30 AM"]`)
	repo.entries["times:Tuesday"] = []byte(`["1:30 PM"]`)
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	svc := NewAvailabilityService(store, rec, cache, zap.NewNop())

	weekStart := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	_, err := svc.ToggleSlot(context.Background(), "t1", "monday", "10:30 AM", weekStart)
	require.NoError(t, err)

	// The tutor's schedule document and the toggled day's choosable
	// times are both stale now; other days are untouched.
	assert.NotContains(t, repo.entries, "schedule:t1")
	assert.NotContains(t, repo.entries, "times:Monday")
	assert.Contains(t, repo.entries, "times:Tuesday")
}

func TestToggleSlotClearsAllWeekResidue(t *testing.T) {
	svc, store, _ := newAvailabilityFixture()
	weekA := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	weekB := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	// Week blocks on two different weeks for the same slot, then
	// promote week B to recurring and clear it.
	_, err := svc.ToggleSlot(context.Background(), "t1", "Tuesday", "1:30 PM", weekA)
	require.NoError(t, err)
	_, err = svc.ToggleSlot(context.Background(), "t1", "Tuesday", "1:30 PM", weekB)
	require.NoError(t, err)
	_, err = svc.ToggleSlot(context.Background(), "t1", "Tuesday", "1:30 PM", weekB)
	require.NoError(t, err)

	result, err := svc.ToggleSlot(context.Background(), "t1", "Tuesday", "1:30 PM", weekB)
	require.NoError(t, err)
	assert.Equal(t, models.SlotAvailable, result.State)
	// Week A's block is gone too: clearing wipes the slot across weeks.
	assert.Empty(t, store.weeks)
	assert.Empty(t, store.recurring)
}

func TestToggleSlotRejectsBadInput(t *testing.T) {
	svc, _, rec := newAvailabilityFixture()
	weekStart := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	_, err := svc.ToggleSlot(context.Background(), "t1", "Blursday", "10:30 AM", weekStart)
	assert.Error(t, err)

	_, err = svc.ToggleSlot(context.Background(), "t1", "Monday", "25:00 XM", weekStart)
	assert.Error(t, err)

	assert.Zero(t, rec.calls)
}

func TestToggleSlotWeekStartNormalized(t *testing.T) {
	svc, store, _ := newAvailabilityFixture()
	// Toggling with a mid-week date lands on that week's Monday key.
	wednesday := time.Date(2026, 9, 9, 10, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	_, err := svc.ToggleSlot(context.Background(), "t1", "Friday", "3:30 PM", wednesday)
	require.NoError(t, err)
	assert.True(t, store.weeks[models.WeekKey("Friday", "3:30 PM", monday.UnixMilli())])
}
