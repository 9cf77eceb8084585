// Package delivery posts finished intake records to the external collector.
package delivery

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

	"github.com/google/uuid"

	"github.com/bekksaar/intakebot/internal/intake"
)

// DefaultTimeout bounds a single submission.
const DefaultTimeout = 10 * time.Second

// ErrUnexpectedStatus is returned when the collector answers with a non-2xx code.
var ErrUnexpectedStatus = errors.New("delivery: unexpected status")

// Payload is the JSON body accepted by the collector. Field order and names
// are part of the wire contract.
type Payload struct {
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	ProjectType string   `json:"project_type"`
	Services    []string `json:"services"`
	Extra       string   `json:"extra"`
}

// NewPayload maps a record onto the wire payload. Services is never null.
func NewPayload(rec intake.Record) Payload {
	services := make([]string, len(rec.Services))
	copy(services, rec.Services)
	return Payload{
		FirstName:   rec.FirstName,
		LastName:    rec.LastName,
		Email:       rec.Email,
		Phone:       rec.Phone,
		ProjectType: rec.ProjectType,
		Services:    services,
		Extra:       rec.ExtraNotes,
	}
}

// encode renders p as JSON without HTML escaping, so labels such as
// "Material & Finishes Selection" reach the collector verbatim.
func (p Payload) encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Client posts payloads to the collector URL. It never retries.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// NewClient returns a client for the collector at url. A non-positive timeout
// falls back to DefaultTimeout.
func NewClient(url string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		URL:        strings.TrimSpace(url),
		HTTPClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends rec under a fresh submission ID.
func (c *Client) Submit(ctx context.Context, rec intake.Record) error {
	return c.Send(ctx, uuid.New(), NewPayload(rec))
}

// Send posts p, tagging the request with id in the X-Request-ID header.
func (c *Client) Send(ctx context.Context, id uuid.UUID, p Payload) error {
	if c == nil || c.URL == "" {
		return errors.New("delivery: collector url is not set")
	}
	body, err := p.encode()
	if err != nil {
		return fmt.Errorf("delivery: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("delivery: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", id.String())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivery: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
