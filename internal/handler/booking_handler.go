package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	"github.com/eastbay-tutoring/scheduler-api/internal/service"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
	"github.com/eastbay-tutoring/scheduler-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, userID string, req service.CreateBookingRequest) (*service.BookingSeriesResult, error)
	ListMine(ctx context.Context, userID string) ([]models.Booking, error)
	Cancel(ctx context.Context, userID, bookingID string) error
	AttachMeetLink(ctx context.Context, userID, bookingID string) (*models.Booking, error)
	AvailableTimes(ctx context.Context, day string) ([]string, error)
	Export(ctx context.Context, userID, format string) ([]byte, string, error)
}

// BookingHandler wires HTTP endpoints to the booking service.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler creates a new handler.
func NewBookingHandler(svc bookingService) *BookingHandler {
	return &BookingHandler{service: svc}
}

// AvailableTimes godoc
// @Summary List bookable times
// @Description Returns the time slots on a day that at least one tutor can serve
// @Tags Bookings
// @Produce json
// @Param day query string true "Day of week"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /slots/times [get]
func (h *BookingHandler) AvailableTimes(c *gin.Context) {
	day := c.Query("day")
	if day == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day query parameter is required"))
		return
	}

	times, err := h.service.AvailableTimes(c.Request.Context(), day)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"day": day, "times": times}, nil)
}

// Create godoc
// @Summary Book a lesson
// @Description Book a lesson slot, optionally as a weekly recurring series
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	result, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// List godoc
// @Summary List my bookings
// @Description Returns the caller's bookings ordered by lesson date
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	bookings, err := h.service.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, bookings, nil)
}

// Cancel godoc
// @Summary Cancel a booking
// @Description Delete a booking owned by the caller
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Cancel(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// AttachMeetLink godoc
// @Summary Attach meeting links
// @Description Request calendar meeting links for a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /bookings/{id}/meet-link [post]
func (h *BookingHandler) AttachMeetLink(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	booking, err := h.service.AttachMeetLink(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, booking, nil)
}

// Export godoc
// @Summary Export my schedule
// @Description Download the caller's lessons as CSV or PDF
// @Tags Bookings
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Success 200 {file} byte
// @Failure 401 {object} response.Envelope
// @Router /bookings/export [get]
func (h *BookingHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.service.Export(c.Request.Context(), claims.UserID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := "schedule." + format
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}
