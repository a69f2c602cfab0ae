package e2e

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func validSpeakStartBody() string {
	return `{
		"text": "Hello from the end to end suite.",
		"outputName": "greeting",
		"parameters": {
			"temperature": 0.7,
			"speed": 1.1
		}
	}`
}

func TestSpeakStart_Success(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/speak/start", validSpeakStartBody())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["jobId"] == nil || result["jobId"] == "" {
		t.Error("expected 'jobId' in response")
	}
	if result["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", result["status"])
	}
}

func TestSpeakStart_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/speak/start", validSpeakStartBody(), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestSpeakStart_MissingText(t *testing.T) {
	ta := setupApp(t)

	body := `{"outputName": "no-text"}`

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/speak/start", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestSpeakStatus_Success(t *testing.T) {
	ta := setupApp(t)

	// First, start a job to get a jobId
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/speak/start", validSpeakStartBody())
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	startResult := parseJSON(t, resp)
	jobID := startResult["jobId"].(string)

	// Now check status
	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/speak/status/"+jobID, "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	statusResult := parseJSON(t, resp)
	if statusResult["jobId"] != jobID {
		t.Errorf("expected jobId %s, got %v", jobID, statusResult["jobId"])
	}
	if statusResult["status"] == nil {
		t.Error("expected 'status' field in response")
	}
}

func TestSpeakStatus_NotFound(t *testing.T) {
	ta := setupApp(t)

	fakeJobID := uuid.New().String()
	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/speak/status/"+fakeJobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)

	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "NOT_FOUND" {
		t.Errorf("expected error code NOT_FOUND, got %v", errObj["code"])
	}
}

func TestSpeakResult_NotCompleted(t *testing.T) {
	ta := setupApp(t)

	// Start a job; no worker runs in this suite, so it stays queued
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/speak/start", validSpeakStartBody())
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	startResult := parseJSON(t, resp)
	jobID := startResult["jobId"].(string)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/speak/result/"+jobID, "")
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestSpeakCancel_Success(t *testing.T) {
	ta := setupApp(t)

	// Start a job
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/speak/start", validSpeakStartBody())
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	startResult := parseJSON(t, resp)
	jobID := startResult["jobId"].(string)

	// Cancel it
	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/speak/cancel/"+jobID, "")
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	cancelResult := parseJSON(t, resp)
	if cancelResult["status"] != "canceled" {
		t.Errorf("expected status 'canceled', got %v", cancelResult["status"])
	}

	// Status should reflect the cancellation
	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/speak/status/"+jobID, "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	statusResult := parseJSON(t, resp)
	if statusResult["status"] != "canceled" {
		t.Errorf("expected status 'canceled', got %v", statusResult["status"])
	}
}

func TestSpeakCancel_NotFound(t *testing.T) {
	ta := setupApp(t)

	fakeJobID := uuid.New().String()
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/speak/cancel/"+fakeJobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}
