package model

import (
	"strings"
	"time"
)

// SpeakRequest is the request body for POST /api/speak/start.
// Reference is either inline base64 WAV bytes, an http(s) URL, or empty
// (empty falls back to the configured default voice).
type SpeakRequest struct {
	Text       string             `json:"text" validate:"required,max=1000"`
	Reference  string             `json:"reference,omitempty"`
	Template   string             `json:"template,omitempty"`
	OutputName string             `json:"outputName,omitempty"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
}

// SpeakStartResponse is returned when a speak job is accepted
type SpeakStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// SpeakStatusResponse reflects the current state of a speak job
type SpeakStatusResponse struct {
	JobID       string     `json:"jobId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	ErrorKind   string     `json:"errorKind,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	RetryCount  int        `json:"retryCount"`
}

// SpeakResultResponse is the result of a completed speak job
type SpeakResultResponse struct {
	Success        bool               `json:"success"`
	ArtifactRef    string             `json:"artifactRef"`
	Mode           string             `json:"mode"` // "inline" or "url"
	ExecutionID    string             `json:"executionId"`
	Duration       float64            `json:"duration"`
	SampleRate     int                `json:"sampleRate"`
	ParametersUsed map[string]float64 `json:"parametersUsed"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// SpeakCancelResponse is returned after cancelling a speak job
type SpeakCancelResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

const defaultOutputName = "speech"

// SanitizeOutputName reduces a caller-supplied output name to a safe
// basename: path separators and anything outside [A-Za-z0-9._-] are
// dropped, leading dots stripped. Empty input yields "speech".
func SanitizeOutputName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return defaultOutputName
	}
	return out
}
