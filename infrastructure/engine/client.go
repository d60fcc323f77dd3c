// Package engine is the HTTP client for the workflow execution engine. It
// exposes exactly the three operations the orchestrator needs
// (create, update, status) and classifies failures so the orchestrator's
// retry loop can tell transient from permanent.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/workflow"
)

// APIError is a failed engine call. StatusCode 0 means the request never
// produced an HTTP response (network failure, breaker open).
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("engine %s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("engine %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error { return e.Cause }

// Transient reports whether retrying could succeed: network-level failures,
// server errors, and throttling. Other 4xx responses mean the request
// itself is wrong and retrying repeats the failure.
func (e *APIError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client talks to the execution engine over HTTP with a circuit breaker in
// front of every call.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates an engine client
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "execution-engine",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("engine circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    breaker,
		logger:     logger,
	}
}

var _ ports.EngineClient = (*Client)(nil)

// graphPayload is the engine's wire shape for a workflow graph
type graphPayload struct {
	Name        string                `json:"name"`
	Nodes       []workflow.GraphNode  `json:"nodes"`
	Connections []workflow.Connection `json:"connections"`
	Settings    map[string]string     `json:"settings"`
}

type graphResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateGraph registers a new graph on the engine and returns its external ID
func (c *Client) CreateGraph(ctx context.Context, graph *workflow.ConcreteGraph) (string, error) {
	var created graphResponse
	err := c.do(ctx, "CreateGraph", http.MethodPost, "/api/v1/workflows", payloadFor(graph), &created)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdateGraph replaces an existing graph's content in place, preserving its
// external identifier.
func (c *Client) UpdateGraph(ctx context.Context, externalID string, graph *workflow.ConcreteGraph) error {
	return c.do(ctx, "UpdateGraph", http.MethodPut, "/api/v1/workflows/"+externalID, payloadFor(graph), nil)
}

// GetGraphStatus reads the live status of a deployed graph
func (c *Client) GetGraphStatus(ctx context.Context, externalID string) (ports.GraphStatus, error) {
	var got graphResponse
	if err := c.do(ctx, "GetGraphStatus", http.MethodGet, "/api/v1/workflows/"+externalID, nil, &got); err != nil {
		return "", err
	}
	switch got.Status {
	case "active":
		return ports.GraphStatusActive, nil
	case "inactive":
		return ports.GraphStatusInactive, nil
	default:
		return ports.GraphStatusError, nil
	}
}

func payloadFor(graph *workflow.ConcreteGraph) *graphPayload {
	return &graphPayload{
		Name:        graph.Name,
		Nodes:       graph.Nodes,
		Connections: graph.Connections,
		Settings:    map[string]string{"strategy": string(graph.Strategy)},
	}
}

// do runs one HTTP call through the circuit breaker
func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doOnce(ctx, operation, method, path, body, out)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// Breaker rejections are transient: the engine may recover before
		// the orchestrator's retry budget runs out.
		return &APIError{Operation: operation, Message: "circuit breaker open", Cause: err}
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, operation, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &APIError{Operation: operation, StatusCode: http.StatusBadRequest, Message: "failed to encode request", Cause: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &APIError{Operation: operation, Message: "failed to build request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Operation: operation, Message: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Message:    string(detail),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{Operation: operation, StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
		}
	}
	return nil
}
