package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/voiceforge/api/internal/config"
	"github.com/voiceforge/api/internal/fault"
	"github.com/voiceforge/api/internal/workflow"
)

// ExecutionState is the tracked state of a submitted job
type ExecutionState string

const (
	StateSubmitted ExecutionState = "submitted"
	StateRunning   ExecutionState = "running"
	StateCompleted ExecutionState = "completed"
	StateFailed    ExecutionState = "failed"
	StateTimedOut  ExecutionState = "timed_out"
)

// Terminal reports whether the state is final
func (s ExecutionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// OutputRef identifies a produced artifact on the engine
type OutputRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// ExecutionRecord is the engine-side state of a submitted job. Outputs is
// populated only once State is StateCompleted.
type ExecutionRecord struct {
	ID      string
	State   ExecutionState
	Outputs []OutputRef
	Message string
}

// SynthesisEngine defines the interface to the external execution engine
type SynthesisEngine interface {
	UploadInput(ctx context.Context, name string, data io.Reader) (string, error)
	Submit(ctx context.Context, job *workflow.MaterializedJob) (string, error)
	GetExecution(ctx context.Context, id string) (*ExecutionRecord, error)
	AwaitCompletion(ctx context.Context, id string, timeout time.Duration) (*ExecutionRecord, error)
	FetchOutput(ctx context.Context, ref OutputRef) ([]byte, error)
}

const minPollInterval = 500 * time.Millisecond

// EngineClient implements SynthesisEngine against a ComfyUI-style REST API
type EngineClient struct {
	httpClient         *http.Client
	baseURL            string
	apiKey             string
	pollInterval       time.Duration
	pollRequestTimeout time.Duration
	maxPollRetries     int
}

// NewEngineClient creates a synthesis engine client. The poll interval is
// floored so a misconfigured value can never busy-poll the engine.
func NewEngineClient(cfg *config.EngineConfig) *EngineClient {
	interval := time.Duration(cfg.PollIntervalMS) * time.Millisecond
	if interval < minPollInterval {
		interval = minPollInterval
	}

	retries := cfg.MaxPollRetries
	if retries < 0 {
		retries = 0
	}

	return &EngineClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL:            cfg.BaseURL,
		apiKey:             cfg.APIKey,
		pollInterval:       interval,
		pollRequestTimeout: time.Duration(cfg.PollRequestTimeoutSec) * time.Second,
		maxPollRetries:     retries,
	}
}

// IsConfigured returns true if the client has valid configuration
func (c *EngineClient) IsConfigured() bool {
	return c.baseURL != ""
}

// UploadInput stores an input file on the engine and returns the name the
// engine will serve it under.
func (c *EngineClient) UploadInput(ctx context.Context, name string, data io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return "", fmt.Errorf("failed to buffer upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/audio", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	log.Printf("[Engine] → POST /upload/audio (%s)", name)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.EngineComm, err, "input upload failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fault.Wrap(fault.EngineComm, err, "failed to read upload response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fault.New(fault.EngineComm,
			"input upload rejected (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fault.Wrap(fault.EngineComm, err, "failed to unmarshal upload response")
	}
	if result.Name == "" {
		result.Name = name
	}
	return result.Name, nil
}

// Submit queues a materialized job on the engine. A rejected or failed
// submission is terminal — it is surfaced immediately, never retried.
func (c *EngineClient) Submit(ctx context.Context, job *workflow.MaterializedJob) (string, error) {
	payload, err := job.MarshalPayload()
	if err != nil {
		return "", fault.Wrap(fault.SubmissionFailed, err, "failed to marshal job payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(payload))
	if err != nil {
		return "", fault.Wrap(fault.SubmissionFailed, err, "failed to create submit request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	log.Printf("[Engine] → POST /prompt (template=%s)", job.TemplateName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.SubmissionFailed, err, "submission request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fault.Wrap(fault.SubmissionFailed, err, "failed to read submit response")
	}

	log.Printf("[Engine] ← %d POST /prompt", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fault.New(fault.SubmissionFailed,
			"engine rejected submission (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fault.Wrap(fault.SubmissionFailed, err, "failed to unmarshal submit response")
	}
	if result.PromptID == "" {
		return "", fault.New(fault.SubmissionFailed, "engine returned no execution id")
	}
	return result.PromptID, nil
}

// historyEntry mirrors the engine's per-execution history record
type historyEntry struct {
	Status struct {
		StatusStr string `json:"status_str"`
		Completed bool   `json:"completed"`
	} `json:"status"`
	Outputs map[string]struct {
		Audio []OutputRef `json:"audio"`
	} `json:"outputs"`
}

// GetExecution fetches the current state of an execution. An execution with
// no history entry yet is still running.
func (c *EngineClient) GetExecution(ctx context.Context, id string) (*ExecutionRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.EngineComm, err, "status request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Wrap(fault.EngineComm, err, "failed to read status response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fault.New(fault.EngineComm,
			"status request rejected (status %d): %s", resp.StatusCode, string(respBody))
	}

	var history map[string]historyEntry
	if err := json.Unmarshal(respBody, &history); err != nil {
		return nil, fault.Wrap(fault.EngineComm, err, "failed to unmarshal status response")
	}

	entry, ok := history[id]
	if !ok {
		return &ExecutionRecord{ID: id, State: StateRunning}, nil
	}

	record := &ExecutionRecord{ID: id, Message: entry.Status.StatusStr}
	switch {
	case entry.Status.Completed && entry.Status.StatusStr != "error":
		record.State = StateCompleted
		for _, out := range entry.Outputs {
			record.Outputs = append(record.Outputs, out.Audio...)
		}
	case entry.Status.StatusStr == "error":
		record.State = StateFailed
	default:
		record.State = StateRunning
	}
	return record, nil
}

// AwaitCompletion polls the execution until it reaches a terminal state or
// timeout elapses. The timeout is measured from the caller's submission, not
// per poll; each poll carries its own short request timeout, and up to
// maxPollRetries consecutive transient failures are tolerated before the
// wait fails with an engine communication error. Cancelling ctx stops the
// loop promptly.
func (c *EngineClient) AwaitCompletion(ctx context.Context, id string, timeout time.Duration) (*ExecutionRecord, error) {
	deadline := time.Now().Add(timeout)
	attempt := 0
	transientFailures := 0

	for {
		if time.Now().After(deadline) {
			log.Printf("[Engine] Execution %s timed out after %v", id, timeout)
			return &ExecutionRecord{ID: id, State: StateTimedOut},
				fault.New(fault.TimedOut, "execution %s did not finish within %v", id, timeout)
		}

		attempt++
		pollCtx, cancel := context.WithTimeout(ctx, c.pollRequestTimeout)
		record, err := c.GetExecution(pollCtx, id)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			transientFailures++
			log.Printf("[Engine] Poll #%d (execution=%s) — error %d/%d: %v",
				attempt, id, transientFailures, c.maxPollRetries, err)
			if transientFailures > c.maxPollRetries {
				return nil, fault.Wrap(fault.EngineComm, err,
					"%d consecutive poll failures for execution %s", transientFailures, id)
			}
		} else {
			transientFailures = 0
			if record.State.Terminal() {
				log.Printf("[Engine] Poll #%d (execution=%s) — terminal state: %s", attempt, id, record.State)
				return record, nil
			}
		}

		select {
		case <-ctx.Done():
			log.Printf("[Engine] Await (execution=%s) — context cancelled", id)
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// FetchOutput downloads a produced artifact from the engine
func (c *EngineClient) FetchOutput(ctx context.Context, ref OutputRef) ([]byte, error) {
	q := url.Values{}
	q.Set("filename", ref.Filename)
	q.Set("subfolder", ref.Subfolder)
	q.Set("type", ref.Type)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/view?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.EngineComm, err, "artifact fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fault.New(fault.EngineComm,
			"artifact fetch rejected (status %d)", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Wrap(fault.EngineComm, err, "failed to read artifact body")
	}
	return data, nil
}

func (c *EngineClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
