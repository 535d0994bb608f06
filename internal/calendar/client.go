// Package calendar talks to the external meeting-link service. The
// service owns event creation and conference setup; this client only
// sends the lesson details and takes back the links, or fails.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/eastbay-tutoring/scheduler-api/pkg/config"
	appErrors "github.com/eastbay-tutoring/scheduler-api/pkg/errors"
)

// Lesson carries the booking details the calendar service needs to
// build the event and invite the parties.
type Lesson struct {
	Child       string `json:"child"`
	Grade       string `json:"grade"`
	Course      string `json:"course"`
	Date        string `json:"date"`
	ParentEmail string `json:"parentEmail,omitempty"`
	TutorEmail  string `json:"tutorEmail,omitempty"`
}

// EventLinks is the calendar service's answer.
type EventLinks struct {
	MeetLink  string `json:"meetLink"`
	EventLink string `json:"eventLink"`
}

// Client calls the meeting-link service over HTTP.
type Client struct {
	baseURL string
	enabled bool
	client  *http.Client
	logger  *zap.Logger
}

// NewClient builds a calendar client from configuration.
func NewClient(cfg config.CalendarConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		enabled: cfg.Enabled,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// GenerateMeetLink asks the calendar service for meeting links. The
// call is a side effect only: failures never mutate booking state and
// are surfaced as retryable errors.
func (c *Client) GenerateMeetLink(ctx context.Context, lesson Lesson) (*EventLinks, error) {
	if !c.enabled {
		return nil, appErrors.Clone(appErrors.ErrCalendarFailed, "calendar integration is disabled")
	}

	payload, err := json.Marshal(map[string]interface{}{"lesson": lesson})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode lesson")
	}

	url := c.baseURL + "/api/generate-meet-link"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build calendar request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("calendar request failed", zap.String("url", url), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrCalendarFailed.Code, appErrors.ErrCalendarFailed.Status, appErrors.ErrCalendarFailed.Message)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("calendar request rejected", zap.String("url", url), zap.Int("status", resp.StatusCode))
		return nil, appErrors.Clone(appErrors.ErrCalendarFailed, fmt.Sprintf("calendar service returned %d", resp.StatusCode))
	}

	var links EventLinks
	if err := json.NewDecoder(resp.Body).Decode(&links); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCalendarFailed.Code, appErrors.ErrCalendarFailed.Status, "malformed calendar response")
	}
	return &links, nil
}
