package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eastbay-tutoring/scheduler-api/internal/middleware"
	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
)

type availabilityServiceMock struct {
	scheduleResp  *models.ScheduleDocument
	scheduleErr   error
	toggleResp    *models.ToggleResult
	toggleErr     error
	lastTutorID   string
	lastDay       string
	lastTime      string
	lastWeekStart time.Time
	toggleCalled  bool
}

func (m *availabilityServiceMock) GetSchedule(ctx context.Context, tutorID string) (*models.ScheduleDocument, error) {
	m.lastTutorID = tutorID
	return m.scheduleResp, m.scheduleErr
}

func (m *availabilityServiceMock) ToggleSlot(ctx context.Context, tutorID, day, timeSlot string, weekStart time.Time) (*models.ToggleResult, error) {
	m.toggleCalled = true
	m.lastTutorID = tutorID
	m.lastDay = day
	m.lastTime = timeSlot
	m.lastWeekStart = weekStart
	return m.toggleResp, m.toggleErr
}

type tutorDirectoryMock struct {
	listResp    []models.TutorDetail
	listErr     error
	getResp     *models.Tutor
	getErr      error
	resolveResp *models.Tutor
	resolveErr  error
}

func (m *tutorDirectoryMock) List(ctx context.Context) ([]models.TutorDetail, error) {
	return m.listResp, m.listErr
}

func (m *tutorDirectoryMock) Get(ctx context.Context, id string) (*models.Tutor, error) {
	return m.getResp, m.getErr
}

func (m *tutorDirectoryMock) ResolveAccount(ctx context.Context, userID string) (*models.Tutor, error) {
	return m.resolveResp, m.resolveErr
}

func TestAvailabilityHandlerGetSchedule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	availability := &availabilityServiceMock{
		scheduleResp: &models.ScheduleDocument{
			UnavailableSlots: map[string]models.BlockKind{
				"Monday-10:30 AM": models.BlockRecurring,
			},
		},
	}
	tutors := &tutorDirectoryMock{getResp: &models.Tutor{ID: "t1", Name: "Krishay"}}
	handler := NewAvailabilityHandler(availability, tutors)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/tutors/t1/schedule", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "t1"}}

	handler.GetSchedule(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", availability.lastTutorID)
	assert.Contains(t, w.Body.String(), "Monday-10:30 AM")
}

func TestAvailabilityHandlerGetScheduleUnknownTutor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tutors := &tutorDirectoryMock{getErr: appErrors.ErrNotFound}
	handler := NewAvailabilityHandler(&availabilityServiceMock{}, tutors)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/tutors/missing/schedule", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.GetSchedule(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAvailabilityHandlerToggleOwnSchedule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	availability := &availabilityServiceMock{
		toggleResp: &models.ToggleResult{DayOfWeek: "Monday", TimeSlot: "10:30 AM", State: models.SlotWeek},
	}
	tutors := &tutorDirectoryMock{resolveResp: &models.Tutor{ID: "t1", UserID: "u1"}}
	handler := NewAvailabilityHandler(availability, tutors)

	body, _ := json.Marshal(gin.H{"day": "Monday", "time": "10:30 AM", "week_start": "2026-09-07"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/tutors/t1/schedule/toggle", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleTutor})

	handler.ToggleSlot(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, availability.toggleCalled)
	assert.Equal(t, "Monday", availability.lastDay)
	assert.Equal(t, time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), availability.lastWeekStart)
}

func TestAvailabilityHandlerToggleForeignSchedule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	availability := &availabilityServiceMock{}
	tutors := &tutorDirectoryMock{resolveResp: &models.Tutor{ID: "t2", UserID: "u1"}}
	handler := NewAvailabilityHandler(availability, tutors)

	body, _ := json.Marshal(gin.H{"day": "Monday", "time": "10:30 AM", "week_start": "2026-09-07"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/tutors/t1/schedule/toggle", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleTutor})

	handler.ToggleSlot(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, availability.toggleCalled)
}

func TestAvailabilityHandlerToggleAdminAnySchedule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	availability := &availabilityServiceMock{
		toggleResp: &models.ToggleResult{State: models.SlotRecurring},
	}
	handler := NewAvailabilityHandler(availability, &tutorDirectoryMock{})

	body, _ := json.Marshal(gin.H{"day": "Monday", "time": "10:30 AM", "week_start": "2026-09-07"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/tutors/t1/schedule/toggle", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.ToggleSlot(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, availability.toggleCalled)
}

func TestAvailabilityHandlerToggleInvalidWeekStart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	availability := &availabilityServiceMock{}
	handler := NewAvailabilityHandler(availability, &tutorDirectoryMock{})

	body, _ := json.Marshal(gin.H{"day": "Monday", "time": "10:30 AM", "week_start": "next monday"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/tutors/t1/schedule/toggle", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.ToggleSlot(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, availability.toggleCalled)
}

func TestAvailabilityHandlerToggleUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAvailabilityHandler(&availabilityServiceMock{}, &tutorDirectoryMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/tutors/t1/schedule/toggle", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "t1"}}

	handler.ToggleSlot(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
