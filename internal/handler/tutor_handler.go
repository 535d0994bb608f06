package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	"github.com/eastbay-tutoring/scheduler-api/pkg/response"
)

type tutorDirectory interface {
	List(ctx context.Context) ([]models.TutorDetail, error)
	Get(ctx context.Context, id string) (*models.Tutor, error)
	ResolveAccount(ctx context.Context, userID string) (*models.Tutor, error)
}

// TutorHandler exposes the tutor roster.
type TutorHandler struct {
	service tutorDirectory
}

// NewTutorHandler creates a new handler.
func NewTutorHandler(svc tutorDirectory) *TutorHandler {
	return &TutorHandler{service: svc}
}

// List godoc
// @Summary List tutors
// @Description Returns the active roster in assignment order
// @Tags Tutors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tutors [get]
func (h *TutorHandler) List(c *gin.Context) {
	tutors, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, tutors, nil)
}

// Get godoc
// @Summary Get tutor
// @Description Returns one tutor by id
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tutors/{id} [get]
func (h *TutorHandler) Get(c *gin.Context) {
	tutor, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, tutor, nil)
}
