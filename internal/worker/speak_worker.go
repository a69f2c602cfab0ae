package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/voiceforge/api/internal/fault"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/pipeline"
	"github.com/voiceforge/api/internal/service"
	"github.com/voiceforge/api/internal/websocket"
)

// cancelCheckInterval is how often a running job re-reads its record to
// notice a caller-side cancellation.
const cancelCheckInterval = 2 * time.Second

// SpeakWorker processes speak jobs. Each task runs its own pipeline
// instance; the worker owns job bookkeeping and progress broadcasting.
type SpeakWorker struct {
	speakService *service.SpeakService
	pipeline     *pipeline.Pipeline
	hub          *websocket.Hub
}

// NewSpeakWorker creates a new speak worker
func NewSpeakWorker(speakService *service.SpeakService, p *pipeline.Pipeline, hub *websocket.Hub) *SpeakWorker {
	return &SpeakWorker{
		speakService: speakService,
		pipeline:     p,
		hub:          hub,
	}
}

// ProcessTask handles speak task processing
func (w *SpeakWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting speak job: %s", jobID)

	var payload model.SpeakJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, string(fault.Internal), "Invalid payload")
		return fmt.Errorf("failed to unmarshal speak payload: %w", err)
	}

	if w.speakService.IsCanceled(ctx, jobID) {
		log.Printf("Speak job %s already cancelled", jobID)
		return nil
	}

	// Propagate caller-side cancellation into the pipeline so the engine
	// wait stops promptly instead of leaking a poll loop.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.watchCancellation(runCtx, cancel, jobID)

	result, err := w.pipeline.Run(runCtx, jobID, &payload.Request, func(step string, percent int) {
		w.updateProgress(ctx, jobID, percent, step)
	})
	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			log.Printf("Speak job %s cancelled by caller", jobID)
			return nil
		}
		kind := string(fault.KindOf(err))
		w.failJob(ctx, jobID, kind, err.Error())
		return err
	}

	response := &model.SpeakResultResponse{
		Success:        true,
		ArtifactRef:    result.Receipt.Ref,
		Mode:           result.Receipt.Mode,
		ExecutionID:    result.ExecutionID,
		Duration:       result.Receipt.Duration,
		SampleRate:     result.Receipt.SampleRate,
		ParametersUsed: result.ParametersUsed,
		CreatedAt:      time.Now(),
	}

	if err := w.speakService.CompleteJob(ctx, jobID, response); err != nil {
		w.failJob(ctx, jobID, string(fault.Internal), "Failed to save result")
		return err
	}

	w.hub.BroadcastComplete(jobID, response)
	log.Printf("Speak job %s completed (execution=%s)", jobID, result.ExecutionID)
	return nil
}

// watchCancellation cancels the run context once the job record reports a
// caller-side cancellation.
func (w *SpeakWorker) watchCancellation(ctx context.Context, cancel context.CancelFunc, jobID string) {
	ticker := time.NewTicker(cancelCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.speakService.IsCanceled(ctx, jobID) {
				cancel()
				return
			}
		}
	}
}

func (w *SpeakWorker) updateProgress(ctx context.Context, jobID string, progress int, step string) {
	if err := w.speakService.UpdateJobProgress(ctx, jobID, progress, step); err != nil {
		log.Printf("Failed to update progress: %v", err)
	}
	w.hub.BroadcastProgress(jobID, progress, model.JobStatusRunning, step)
}

func (w *SpeakWorker) failJob(ctx context.Context, jobID, kind, message string) {
	if err := w.speakService.FailJob(ctx, jobID, kind, message); err != nil {
		log.Printf("Failed to mark job %s failed: %v", jobID, err)
	}
	w.hub.BroadcastError(jobID, kind, message)
}
