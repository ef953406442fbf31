package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"habitloop/pkg/circuitbreaker"
	"habitloop/pkg/config"
	"habitloop/pkg/metrics"
)

// CreateTriggerRequest is the scheduler's trigger creation contract.
type CreateTriggerRequest struct {
	AgentName      string `json:"agent_name"`
	Payload        string `json:"payload"`
	RecurrenceRule string `json:"recurrence_rule,omitempty"`
	StartTime      string `json:"start_time"` // RFC 3339
	TimezoneName   string `json:"timezone_name"`
	Status         string `json:"status"`
}

// Trigger is a scheduled trigger as the scheduler reports it.
type Trigger struct {
	ID             string `json:"id"`
	AgentName      string `json:"agent_name"`
	Payload        string `json:"payload"`
	RecurrenceRule string `json:"recurrence_rule,omitempty"`
	StartTime      string `json:"start_time"`
	TimezoneName   string `json:"timezone_name"`
	Status         string `json:"status"`
}

// TriggerClient talks to the external scheduling service.
type TriggerClient interface {
	Create(ctx context.Context, req CreateTriggerRequest) (string, error)
	List(ctx context.Context, agentName string) ([]Trigger, error)
}

// HTTPTriggerClient is the production client, protected by a circuit
// breaker so scheduler outages fail fast instead of stalling handlers.
type HTTPTriggerClient struct {
	baseURL    string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

func NewHTTPTriggerClient(cfg config.SchedulerConfig) *HTTPTriggerClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPTriggerClient{
		baseURL: cfg.URL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			FailureThreshold:    3,
			SuccessThreshold:    2,
			Timeout:             30 * time.Second,
			HalfOpenMaxRequests: 2,
		}),
	}
}

func (c *HTTPTriggerClient) Create(ctx context.Context, req CreateTriggerRequest) (string, error) {
	var triggerID string

	err := c.cb.Execute(func() error {
		start := time.Now()
		body, err := json.Marshal(req)
		if err != nil {
			return err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/triggers", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		latency := time.Since(start)
		if err != nil {
			metrics.RecordSchedulerCallLatency("/triggers", "error", latency)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			metrics.RecordSchedulerCallLatency("/triggers", "5xx", latency)
			return fmt.Errorf("scheduler 5xx: %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			metrics.RecordSchedulerCallLatency("/triggers", fmt.Sprintf("%d", resp.StatusCode), latency)
			return fmt.Errorf("scheduler error: %d", resp.StatusCode)
		}
		metrics.RecordSchedulerCallLatency("/triggers", "success", latency)

		var created Trigger
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return err
		}
		triggerID = created.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return triggerID, nil
}

func (c *HTTPTriggerClient) List(ctx context.Context, agentName string) ([]Trigger, error) {
	var triggers []Trigger

	err := c.cb.Execute(func() error {
		start := time.Now()
		endpoint := c.baseURL + "/triggers?agent_name=" + url.QueryEscape(agentName)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(httpReq)
		latency := time.Since(start)
		if err != nil {
			metrics.RecordSchedulerCallLatency("/triggers", "error", latency)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			metrics.RecordSchedulerCallLatency("/triggers", fmt.Sprintf("%d", resp.StatusCode), latency)
			return fmt.Errorf("scheduler error: %d", resp.StatusCode)
		}
		metrics.RecordSchedulerCallLatency("/triggers", "success", latency)

		return json.NewDecoder(resp.Body).Decode(&triggers)
	})
	if err != nil {
		return nil, err
	}
	return triggers, nil
}
