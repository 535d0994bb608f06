package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
	"github.com/eastbay-tutoring/scheduler-api/internal/service"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
)

type exportServiceMock struct {
	createResp  *models.ExportJob
	createErr   error
	statusResp  *models.ExportJob
	statusErr   error
	download    *service.ExportDownload
	downloadErr error
	lastFormat  string
}

func (m *exportServiceMock) CreateJob(ctx context.Context, userID, format string) (*models.ExportJob, error) {
	m.lastFormat = format
	return m.createResp, m.createErr
}

func (m *exportServiceMock) GetStatus(ctx context.Context, id, userID string) (*models.ExportJob, error) {
	return m.statusResp, m.statusErr
}

func (m *exportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return m.download, m.downloadErr
}

func TestExportHandlerCreateJob(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		createResp: &models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued},
	}
	handler := NewExportHandler(mockSvc)

	body, _ := json.Marshal(gin.H{"format": "pdf"})
	w := httptest.NewRecorder()
	c, _ := parentContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/export-jobs", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.CreateJob(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "pdf", mockSvc.lastFormat)
}

func TestExportHandlerCreateJobMissingFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportServiceMock{})

	w := httptest.NewRecorder()
	c, _ := parentContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/export-jobs", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.CreateJob(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerJobStatusForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{statusErr: appErrors.ErrForbidden}
	handler := NewExportHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := parentContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/export-jobs/job-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}

	handler.JobStatus(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp(t.TempDir(), "schedule*.csv")
	require.NoError(t, err)
	_, _ = file.WriteString("Date,Day,Time\n")
	_, _ = file.Seek(0, 0)

	mockSvc := &exportServiceMock{
		download: &service.ExportDownload{
			File:      file,
			Filename:  "schedule.csv",
			Format:    models.ExportFormatCSV,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	handler := NewExportHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/export/token", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "schedule.csv")
	assert.Equal(t, "Date,Day,Time\n", w.Body.String())
}

func TestExportHandlerDownloadInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")}
	handler := NewExportHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/export/bad", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
