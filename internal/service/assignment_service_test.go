package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
)

type stubRoster struct {
	tutors []models.TutorDetail
}

func (s *stubRoster) ListActive(ctx context.Context) ([]models.TutorDetail, error) {
	return s.tutors, nil
}

func (s *stubRoster) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	for i := range s.tutors {
		if s.tutors[i].ID == id {
			return &s.tutors[i].Tutor, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubRoster) FindByUserID(ctx context.Context, userID string) (*models.Tutor, error) {
	for i := range s.tutors {
		if s.tutors[i].UserID == userID {
			return &s.tutors[i].Tutor, nil
		}
	}
	return nil, sql.ErrNoRows
}

type stubBlocks struct {
	blocked map[string]bool
}

func (s *stubBlocks) IsBlocked(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) (bool, error) {
	return s.blocked[tutorID], nil
}

type stubCounts struct {
	counts map[string]int
}

func (s *stubCounts) CountByTutor(ctx context.Context) (map[string]int, error) {
	return s.counts, nil
}

type stubPairs struct {
	homeTutor string
}

func (s *stubPairs) HomeTutor(ctx context.Context, childID, course string) (string, error) {
	return s.homeTutor, nil
}

func testRoster() *stubRoster {
	omWindows := []models.WorkWindow{
		{TutorID: "om", DayOfWeek: "Monday", StartMin: 810, EndMin: 990},
		{TutorID: "om", DayOfWeek: "Tuesday", StartMin: 810, EndMin: 990},
		{TutorID: "om", DayOfWeek: "Wednesday", StartMin: 810, EndMin: 990},
		{TutorID: "om", DayOfWeek: "Thursday", StartMin: 810, EndMin: 990},
	}
	return &stubRoster{tutors: []models.TutorDetail{
		{Tutor: models.Tutor{ID: "krishay", UserID: "u-krishay", Name: "Krishay", SortOrder: 1, Active: true}},
		{Tutor: models.Tutor{ID: "om", UserID: "u-om", Name: "Om", SortOrder: 2, Active: true}, Windows: omWindows},
		{Tutor: models.Tutor{ID: "tejas", UserID: "u-tejas", Name: "Tejas", SortOrder: 3, Active: true}},
	}}
}

func newEngine(roster *stubRoster, blocks *stubBlocks, counts *stubCounts, pairs *stubPairs) *AssignmentService {
	if blocks == nil {
		blocks = &stubBlocks{}
	}
	if counts == nil {
		counts = &stubCounts{}
	}
	if pairs == nil {
		pairs = &stubPairs{}
	}
	return NewAssignmentService(roster, blocks, counts, pairs, zap.NewNop())
}

func TestAssignContinuityPrefersHomeTutor(t *testing.T) {
	engine := newEngine(testRoster(), nil, nil, &stubPairs{homeTutor: "tejas"})

	decision, err := engine.Assign(context.Background(), AssignRequest{
		Day: "Monday", Time: "2:30 PM", ChildID: "c1", Course: "Math",
	})
	require.NoError(t, err)
	require.True(t, decision.Available())
	assert.Equal(t, "tejas", decision.Tutor.ID)
	assert.Nil(t, decision.BusyTutor)
	assert.Equal(t, AssignHome, decision.Kind)
}

func TestAssignSubstitutesInRosterOrder(t *testing.T) {
	blocks := &stubBlocks{blocked: map[string]bool{"krishay": true}}
	engine := newEngine(testRoster(), blocks, nil, &stubPairs{homeTutor: "krishay"})

	decision, err := engine.Assign(context.Background(), AssignRequest{
		Day: "Monday", Time: "2:30 PM", ChildID: "c1", Course: "Math",
	})
	require.NoError(t, err)
	require.True(t, decision.Available())
	// Om precedes Tejas in scan order and 2:30 PM is inside his window.
	assert.Equal(t, "om", decision.Tutor.ID)
	require.NotNil(t, decision.BusyTutor)
	assert.Equal(t, "krishay", decision.BusyTutor.ID)
	assert.Equal(t, AssignSubstitute, decision.Kind)
}

func TestAssignSubstituteSkipsTutorOutsideWindow(t *testing.T) {
	blocks := &stubBlocks{blocked: map[string]bool{"krishay": true}}
	engine := newEngine(testRoster(), blocks, nil, &stubPairs{homeTutor: "krishay"})

	// 10:30 AM is before Om's window opens, so Tejas substitutes.
	decision, err := engine.Assign(context.Background(), AssignRequest{
		Day: "Monday", Time: "10:30 AM", ChildID: "c1", Course: "Math",
	})
	require.NoError(t, err)
	require.True(t, decision.Available())
	assert.Equal(t, "tejas", decision.Tutor.ID)
	require.NotNil(t, decision.BusyTutor)
	assert.Equal(t, "krishay", decision.BusyTutor.ID)
}

func TestAssignNeverPicksTutorOutsideWindow(t *testing.T) {
	counts := &stubCounts{counts: map[string]int{"krishay": 10, "om": 0, "tejas": 10}}
	engine := newEngine(testRoster(), nil, counts, nil)

	// Om has by far the lowest load but 10:30 AM is outside his window.
	decision, err := engine.Assign(context.Background(), AssignRequest{Day: "Monday", Time: "10:30 AM"})
	require.NoError(t, err)
	require.True(t, decision.Available())
	assert.NotEqual(t, "om", decision.Tutor.ID)
}

func TestAssignFreshPicksLeastBusy(t *testing.T) {
	counts := &stubCounts{counts: map[string]int{"krishay": 3, "om": 1, "tejas": 2}}
	engine := newEngine(testRoster(), nil, counts, nil)

	decision, err := engine.Assign(context.Background(), AssignRequest{Day: "Monday", Time: "2:30 PM"})
	require.NoError(t, err)
	require.True(t, decision.Available())
	assert.Equal(t, "om", decision.Tutor.ID)
	assert.Nil(t, decision.BusyTutor)
	assert.Equal(t, AssignFresh, decision.Kind)
}

func TestAssignFreshBreaksTiesByRosterOrder(t *testing.T) {
	counts := &stubCounts{counts: map[string]int{"krishay": 2, "om": 2, "tejas": 2}}
	engine := newEngine(testRoster(), nil, counts, nil)

	decision, err := engine.Assign(context.Background(), AssignRequest{Day: "Monday", Time: "2:30 PM"})
	require.NoError(t, err)
	require.True(t, decision.Available())
	assert.Equal(t, "krishay", decision.Tutor.ID)
}

func TestAssignAllBlockedReturnsUnavailable(t *testing.T) {
	blocks := &stubBlocks{blocked: map[string]bool{"krishay": true, "om": true, "tejas": true}}
	engine := newEngine(testRoster(), blocks, nil, nil)

	decision, err := engine.Assign(context.Background(), AssignRequest{Day: "Friday", Time: "3:30 PM"})
	require.NoError(t, err)
	assert.False(t, decision.Available())
}

func TestAssignStaleHomeTutorFallsBackToFresh(t *testing.T) {
	counts := &stubCounts{counts: map[string]int{"krishay": 1, "om": 5, "tejas": 5}}
	engine := newEngine(testRoster(), nil, counts, &stubPairs{homeTutor: "departed"})

	decision, err := engine.Assign(context.Background(), AssignRequest{
		Day: "Monday", Time: "2:30 PM", ChildID: "c1", Course: "Math",
	})
	require.NoError(t, err)
	require.True(t, decision.Available())
	assert.Equal(t, "krishay", decision.Tutor.ID)
	assert.Nil(t, decision.BusyTutor)
}

func TestAssignWeekSpecificDateFlowsToBlockCheck(t *testing.T) {
	roster := testRoster()
	seen := make(chan int64, 4)
	blocks := &blockRecorder{seen: seen}
	engine := newEngine(roster, nil, nil, nil)
	engine.blocks = blocks

	date := time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)
	_, err := engine.Assign(context.Background(), AssignRequest{Day: "Wednesday", Time: "2:30 PM", Date: &date})
	require.NoError(t, err)

	want := models.WeekStartMs(date)
	require.NotEmpty(t, seen)
	for len(seen) > 0 {
		assert.Equal(t, want, <-seen)
	}
}

type blockRecorder struct {
	seen chan int64
}

func (b *blockRecorder) IsBlocked(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) (bool, error) {
	select {
	case b.seen <- weekStartMs:
	default:
	}
	return false, nil
}
