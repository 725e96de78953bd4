// Package portal holds HTTP clients for the corporate wellness portal services
// the intake flow depends on: authentication, company settings and bookings.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Alijeyrad/wellness_intake/config"
)

var (
	ErrSummaryNotFound    = errors.New("portal: booking summary not found")
	ErrUnexpectedResponse = errors.New("portal: unexpected response")
	ErrCompanyNotFound    = errors.New("portal: company settings not found")
)

// maxErrorBody caps how much of a failed response body is kept for messages.
const maxErrorBody = 64 << 10

type Config struct {
	AuthBaseURL     string
	SettingsBaseURL string
	BookingBaseURL  string
	Timeout         time.Duration

	// SettingsCacheTTL of zero disables settings caching.
	SettingsCacheTTL  time.Duration
	DefaultOffsetDays int
}

func DefaultConfig() Config {
	return Config{
		AuthBaseURL:       "http://localhost:8081",
		SettingsBaseURL:   "http://localhost:8081",
		BookingBaseURL:    "http://localhost:8081",
		Timeout:           30 * time.Second,
		SettingsCacheTTL:  5 * time.Minute,
		DefaultOffsetDays: 1,
	}
}

// FromCentralConfig converts the central config to package Config
func FromCentralConfig(c *config.Config) Config {
	cfg := DefaultConfig()
	if c.Portal.AuthBaseURL != "" {
		cfg.AuthBaseURL = c.Portal.AuthBaseURL
	}
	if c.Portal.SettingsBaseURL != "" {
		cfg.SettingsBaseURL = c.Portal.SettingsBaseURL
	}
	if c.Portal.BookingBaseURL != "" {
		cfg.BookingBaseURL = c.Portal.BookingBaseURL
	}
	if c.Portal.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(c.Portal.TimeoutSeconds) * time.Second
	}
	if c.Portal.SettingsCacheMinutes >= 0 {
		cfg.SettingsCacheTTL = time.Duration(c.Portal.SettingsCacheMinutes) * time.Minute
	}
	if c.Intake.DefaultBookingOpenOffsetDays > 0 {
		cfg.DefaultOffsetDays = c.Intake.DefaultBookingOpenOffsetDays
	}
	return cfg
}

// StatusError is a non-2xx response whose body did not decode into anything
// more specific.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portal: status %d: %s", e.StatusCode, e.Body)
}

// client is the shared JSON-over-HTTP plumbing of the portal clients.
type client struct {
	baseURL    string
	httpClient *http.Client
}

func newClient(baseURL string, httpClient *http.Client) client {
	return client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// post sends a JSON POST request to baseURL+path and decodes a 2xx JSON
// response into out. Other statuses come back as *StatusError.
func (c client) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	res, err := c.send(ctx, http.MethodPost, path, bytes.NewReader(b), "application/json", nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return decode(res, out)
}

// get sends a GET request to baseURL+path and decodes the JSON response.
func (c client) get(ctx context.Context, path string, out any) error {
	res, err := c.send(ctx, http.MethodGet, path, nil, "", nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return decode(res, out)
}

// send issues the request and returns the raw response. The caller closes the body.
func (c client) send(ctx context.Context, method, path string, body io.Reader, contentType string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return res, nil
}

func decode(res *http.Response, out any) error {
	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// messageOf pulls a human readable message out of a JSON error body.
func messageOf(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	return strings.TrimSpace(string(body))
}
