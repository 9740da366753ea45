// Package api is the client for the hemogram alerts HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hemogram-alerts-go/internal/metrics"
	"hemogram-alerts-go/internal/models"
)

// BaseURL points at the development host as seen from the Android emulator.
const BaseURL = "http://10.0.2.2:8080/hemograma-api/"

// TransportError is returned when the API could not be reached or the
// connection failed while reading the response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a network or I/O failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// AlertSource returns the current list of alerts.
type AlertSource interface {
	GetAlerts(ctx context.Context) ([]models.Alert, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for BaseURL.
func NewClient() *Client {
	return newClient(BaseURL, http.DefaultClient)
}

func newClient(baseURL string, hc *http.Client) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{baseURL: baseURL, httpClient: hc}
}

// GetAlerts issues GET {base}/alerts and decodes the JSON array in order.
func (c *Client) GetAlerts(ctx context.Context) ([]models.Alert, error) {
	start := time.Now()
	defer func() { metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"alerts", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	alerts := []models.Alert{}
	if err := json.Unmarshal(body, &alerts); err != nil {
		return nil, fmt.Errorf("decode alerts: %w", err)
	}
	return alerts, nil
}
