// Package eventsource adapts the external analytics provider (GA4) to the
// domain.EventSource contract. The provider is treated as a black box: any
// transport or decode failure yields an empty event list so the analysis
// pipeline keeps running on stored events alone.
package eventsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/user/persona-engine/internal/domain"
)

const defaultBaseURL = "https://analyticsdata.googleapis.com"

// GA4Client fetches behavior events through the GA4 Data API runReport call.
type GA4Client struct {
	baseURL     string
	propertyID  string
	accessToken string
	client      *http.Client
	logger      *slog.Logger
}

// NewGA4Client creates a GA4 event source. With an empty property ID the
// client is a no-op and always returns an empty list, which lets the
// pipeline run without analytics credentials.
func NewGA4Client(baseURL, propertyID, accessToken string, client *http.Client, logger *slog.Logger) *GA4Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GA4Client{
		baseURL:     baseURL,
		propertyID:  propertyID,
		accessToken: accessToken,
		client:      client,
		logger:      logger.With("component", "ga4_client"),
	}
}

type runReportRequest struct {
	DateRanges []dateRange `json:"dateRanges"`
	Dimensions []dimension `json:"dimensions"`
	Metrics    []metric    `json:"metrics"`
	Limit      int         `json:"limit"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type dimension struct {
	Name string `json:"name"`
}

type metric struct {
	Name string `json:"name"`
}

type runReportResponse struct {
	Rows []struct {
		DimensionValues []struct {
			Value string `json:"value"`
		} `json:"dimensionValues"`
	} `json:"rows"`
}

// FetchRecentEvents returns events reported since the given instant. All
// failures are logged and degrade to an empty slice.
func (c *GA4Client) FetchRecentEvents(ctx context.Context, since time.Time) []domain.Event {
	if c.propertyID == "" {
		return nil
	}

	payload, err := json.Marshal(runReportRequest{
		DateRanges: []dateRange{{
			StartDate: since.UTC().Format("2006-01-02"),
			EndDate:   time.Now().UTC().Format("2006-01-02"),
		}},
		Dimensions: []dimension{
			{Name: "eventName"},
			{Name: "customUser:user_pseudo_id"},
			{Name: "eventTimestamp"},
		},
		Metrics: []metric{{Name: "eventCount"}},
		Limit:   10000,
	})
	if err != nil {
		c.logger.Warn("failed to build ga4 request", "error", err)
		return nil
	}

	url := fmt.Sprintf("%s/v1beta/properties/%s:runReport", c.baseURL, c.propertyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		c.logger.Warn("failed to build ga4 request", "error", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("ga4 fetch failed, continuing with stored events", "error", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("failed to read ga4 response", "error", err)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("ga4 api error, continuing with stored events", "status", resp.StatusCode)
		return nil
	}

	var report runReportResponse
	if err := json.Unmarshal(body, &report); err != nil {
		c.logger.Warn("failed to decode ga4 response", "error", err)
		return nil
	}

	now := time.Now().UTC()
	events := make([]domain.Event, 0, len(report.Rows))
	for _, row := range report.Rows {
		if len(row.DimensionValues) < 3 {
			continue
		}
		name := row.DimensionValues[0].Value
		userID := row.DimensionValues[1].Value
		micros, err := strconv.ParseInt(row.DimensionValues[2].Value, 10, 64)
		if err != nil {
			continue
		}
		timestamp := micros / 1_000_000

		events = append(events, domain.Event{
			ExternalID: fmt.Sprintf("%s_%s_%d", name, userID, timestamp),
			Name:       name,
			UserID:     userID,
			Timestamp:  timestamp,
			ReceivedAt: now,
		})
	}

	c.logger.Info("fetched events from ga4", "count", len(events))
	return events
}
