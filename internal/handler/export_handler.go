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

type exportJobService interface {
	CreateJob(ctx context.Context, userID, format string) (*models.ExportJob, error)
	GetStatus(ctx context.Context, id, userID string) (*models.ExportJob, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler exposes background schedule export jobs and their
// signed downloads.
type ExportHandler struct {
	service exportJobService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc exportJobService) *ExportHandler {
	return &ExportHandler{service: svc}
}

type createExportRequest struct {
	Format string `json:"format" binding:"required"`
}

// CreateJob godoc
// @Summary Queue schedule export
// @Description Queue a background export of the caller's schedule
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body createExportRequest true "Export format"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /export-jobs [post]
func (h *ExportHandler) CreateJob(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}

	job, err := h.service.CreateJob(c.Request.Context(), claims.UserID, req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, job, nil)
}

// JobStatus godoc
// @Summary Export job status
// @Description Returns the caller's export job state and result link
// @Tags Exports
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /export-jobs/{id} [get]
func (h *ExportHandler) JobStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	job, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download export file
// @Description Streams a finished export referenced by a signed token
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} byte
// @Failure 403 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	download, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	contentType := "text/csv"
	if download.Format == models.ExportFormatPDF {
		contentType = "application/pdf"
	}
	headers := map[string]string{
		"Content-Disposition": `attachment; filename="` + download.Filename + `"`,
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, download.File, headers)
}
