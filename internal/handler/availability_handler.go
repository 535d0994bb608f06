package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
	"github.com/eastbay-tutoring/scheduler-api/pkg/response"
)

type availabilityService interface {
	GetSchedule(ctx context.Context, tutorID string) (*models.ScheduleDocument, error)
	ToggleSlot(ctx context.Context, tutorID, day, timeSlot string, weekStart time.Time) (*models.ToggleResult, error)
}

// AvailabilityHandler exposes tutor schedule reads and the
// availability toggle.
type AvailabilityHandler struct {
	availability availabilityService
	tutors       tutorDirectory
}

// NewAvailabilityHandler creates a new handler.
func NewAvailabilityHandler(availability availabilityService, tutors tutorDirectory) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability, tutors: tutors}
}

type toggleRequest struct {
	Day       string `json:"day" binding:"required"`
	Time      string `json:"time" binding:"required"`
	WeekStart string `json:"week_start" binding:"required"`
}

// GetSchedule godoc
// @Summary Get tutor schedule
// @Description Returns the tutor's unavailability document
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tutors/{id}/schedule [get]
func (h *AvailabilityHandler) GetSchedule(c *gin.Context) {
	tutorID := c.Param("id")
	if _, err := h.tutors.Get(c.Request.Context(), tutorID); err != nil {
		response.Error(c, err)
		return
	}

	schedule, err := h.availability.GetSchedule(c.Request.Context(), tutorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, schedule, nil)
}

// ToggleSlot godoc
// @Summary Toggle slot availability
// @Description Cycle a slot through available, unavailable this week and recurring unavailable
// @Tags Tutors
// @Accept json
// @Produce json
// @Param id path string true "Tutor id"
// @Param payload body toggleRequest true "Slot to toggle"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tutors/{id}/schedule/toggle [post]
func (h *AvailabilityHandler) ToggleSlot(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	tutorID := c.Param("id")
	if err := h.authorizeEdit(c, claims, tutorID); err != nil {
		response.Error(c, err)
		return
	}

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid toggle payload"))
		return
	}

	weekStart, err := time.Parse("2006-01-02", req.WeekStart)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid week_start date"))
		return
	}

	result, err := h.availability.ToggleSlot(c.Request.Context(), tutorID, req.Day, req.Time, weekStart)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// authorizeEdit allows admins to edit any schedule and tutors to edit
// only their own.
func (h *AvailabilityHandler) authorizeEdit(c *gin.Context, claims *models.JWTClaims, tutorID string) error {
	if claims.Role == models.RoleAdmin {
		return nil
	}
	if claims.Role != models.RoleTutor {
		return appErrors.Clone(appErrors.ErrForbidden, "only tutors can edit schedules")
	}
	tutor, err := h.tutors.ResolveAccount(c.Request.Context(), claims.UserID)
	if err != nil {
		return err
	}
	if tutor.ID != tutorID {
		return appErrors.Clone(appErrors.ErrForbidden, "tutors can only edit their own schedule")
	}
	return nil
}
