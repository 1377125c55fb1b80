// Package caseapi is the HTTP client for the rules-evaluation backend.
//
// The backend is an opaque collaborator: four JSON endpoints, synchronous
// request/response, no streaming. caseline never interprets decisions, it
// only carries plans and events across the wire.
package caseapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mhollis/caseline/internal/plan"
)

const defaultUnaryTimeout = 5 * time.Second

// Client talks to one backend base URL.
type Client struct {
	baseURL      string
	client       *http.Client
	unaryTimeout time.Duration
}

// New builds a client for the given base URL using the default HTTP client.
func New(baseURL string) *Client {
	return NewWithClient(baseURL, &http.Client{})
}

// NewWithClient builds a client with a caller-supplied http.Client, which
// tests use to point at an httptest server.
func NewWithClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       client,
		unaryTimeout: defaultUnaryTimeout,
	}
}

// WithUnaryTimeout returns a copy of the client with a different per-request
// deadline.
func (c *Client) WithUnaryTimeout(timeout time.Duration) *Client {
	if c == nil {
		return nil
	}
	clone := *c
	clone.unaryTimeout = timeout
	return &clone
}

// RequestError is a non-2xx backend response. The body's human-readable
// message is preserved when the backend supplies one; otherwise the HTTP
// status code stands in.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	message := strings.TrimSpace(e.Message)
	if message != "" {
		if e.StatusCode > 0 {
			return fmt.Sprintf("backend http %d: %s", e.StatusCode, message)
		}
		return message
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend http %d", e.StatusCode)
	}
	return "backend error"
}

// Plan fetches the current plan snapshot for a case.
func (c *Client) Plan(ctx context.Context, caseID string) (plan.Plan, error) {
	body, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/cases/%s/plan", url.PathEscape(caseID)), nil)
	if err != nil {
		return plan.Plan{}, err
	}
	return decodePlan(body)
}

// Execute performs an action with the given validated input and returns the
// updated plan. Each call carries a fresh X-Request-Id so the backend can
// recognize duplicate submissions.
func (c *Client) Execute(ctx context.Context, caseID, actionID string, input map[string]any) (plan.Plan, error) {
	path := fmt.Sprintf("/cases/%s/actions/%s/execute", url.PathEscape(caseID), url.PathEscape(actionID))
	body, err := c.request(ctx, http.MethodPost, path, payload(input))
	if err != nil {
		return plan.Plan{}, err
	}
	return decodePlan(body)
}

// Answer submits an answer to an open question and returns the updated plan.
func (c *Client) Answer(ctx context.Context, caseID, questionID string, input map[string]any) (plan.Plan, error) {
	path := fmt.Sprintf("/cases/%s/questions/%s/answer", url.PathEscape(caseID), url.PathEscape(questionID))
	body, err := c.request(ctx, http.MethodPost, path, payload(input))
	if err != nil {
		return plan.Plan{}, err
	}
	return decodePlan(body)
}

// Events fetches the case's event history.
func (c *Client) Events(ctx context.Context, caseID string) ([]plan.Event, error) {
	body, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/cases/%s/events", url.PathEscape(caseID)), nil)
	if err != nil {
		return nil, err
	}
	var events []plan.Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("caseapi: decode events: %w", err)
	}
	for i := range events {
		events[i].Normalize()
		if err := events[i].Validate(); err != nil {
			return nil, fmt.Errorf("caseapi: events[%d]: %w", i, err)
		}
	}
	return events, nil
}

func payload(input map[string]any) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	return input
}

func decodePlan(body []byte) (plan.Plan, error) {
	var p plan.Plan
	if err := json.Unmarshal(body, &p); err != nil {
		return plan.Plan{}, fmt.Errorf("caseapi: decode plan: %w", err)
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return plan.Plan{}, fmt.Errorf("caseapi: invalid plan: %w", err)
	}
	return p, nil
}

func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	reqCtx := ctx
	if c.unaryTimeout > 0 {
		if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > c.unaryTimeout {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.unaryTimeout)
			defer cancel()
		}
	}
	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, fmt.Errorf("caseapi: encode request body: %w", err)
		}
		reqBody = buf
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-Id", uuid.NewString())
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp.StatusCode, data)
	}
	return data, nil
}

func decodeError(status int, body []byte) error {
	var er struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &er); err == nil {
		if message := strings.TrimSpace(er.Message); message != "" {
			return &RequestError{StatusCode: status, Message: message}
		}
		if message := strings.TrimSpace(er.Error); message != "" {
			return &RequestError{StatusCode: status, Message: message}
		}
	}
	return &RequestError{StatusCode: status}
}
