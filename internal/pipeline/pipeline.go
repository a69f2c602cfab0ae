// Package pipeline runs one speech synthesis request end to end: resolve
// the reference voice, load and fill the job template, drive the external
// engine to completion, and publish the produced artifact.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/fault"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/publish"
	"github.com/voiceforge/api/internal/reference"
	"github.com/voiceforge/api/internal/workflow"
)

// Progress receives step updates while a request is processed
type Progress func(step string, percent int)

// Result is the outcome of one successfully processed request
type Result struct {
	Receipt        *publish.Receipt
	ExecutionID    string
	ParametersUsed map[string]float64
}

// Pipeline processes speak requests sequentially. Instances hold no
// cross-request state: every Run stages its own reference copy and derives
// its own output prefix from the request token, so independent pipelines
// may run concurrently against the same engine.
type Pipeline struct {
	resolver        *reference.Resolver
	store           *workflow.Store
	engine          client.SynthesisEngine
	publisher       publish.Publisher
	defaultTemplate string
	jobTimeout      time.Duration
}

// New creates a pipeline over the given collaborators
func New(
	resolver *reference.Resolver,
	store *workflow.Store,
	engine client.SynthesisEngine,
	publisher publish.Publisher,
	defaultTemplate string,
	jobTimeout time.Duration,
) *Pipeline {
	return &Pipeline{
		resolver:        resolver,
		store:           store,
		engine:          engine,
		publisher:       publisher,
		defaultTemplate: defaultTemplate,
		jobTimeout:      jobTimeout,
	}
}

// Run executes the full pipeline for one request. The token must be unique
// per request; it keys the staging area and the engine-side output prefix.
// Staged files are released on every exit path. Cancelling ctx stops the
// engine wait promptly.
func (p *Pipeline) Run(ctx context.Context, token string, req *model.SpeakRequest, progress Progress) (*Result, error) {
	if progress == nil {
		progress = func(string, int) {}
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fault.New(fault.Internal, "text is empty after sanitization")
	}

	params := model.ClampParams(req.Parameters)
	outputPrefix := fmt.Sprintf("%s-%s", model.SanitizeOutputName(req.OutputName), token)

	// Stage 1: resolve the reference voice
	progress("Resolving reference voice...", 5)
	artifact, err := p.resolver.Resolve(ctx, req.Reference, token)
	if err != nil {
		return nil, err
	}
	defer artifact.Discard()

	// Stage 2: load the job template. Failing here never touches the engine.
	progress("Loading template...", 15)
	templateName := req.Template
	if templateName == "" {
		templateName = p.defaultTemplate
	}
	tpl, err := p.store.Load(templateName)
	if err != nil {
		return nil, err
	}

	// Stage 3: hand the staged reference to the engine
	progress("Uploading reference voice...", 25)
	refInput, err := p.uploadReference(ctx, artifact, token)
	if err != nil {
		return nil, err
	}

	// Stage 4: fill the template slots
	progress("Preparing job...", 35)
	job, err := workflow.Inject(tpl, workflow.Values{
		Text:           text,
		ReferenceInput: refInput,
		OutputPrefix:   outputPrefix,
		Parameters:     params,
		ClientID:       token,
	})
	if err != nil {
		return nil, err
	}

	// Stage 5: submit and await. The overall timeout is measured from
	// submission, not per poll.
	progress("Submitting to engine...", 45)
	executionID, err := p.engine.Submit(ctx, job)
	if err != nil {
		return nil, err
	}

	progress("Synthesizing...", 55)
	record, err := p.engine.AwaitCompletion(ctx, executionID, p.jobTimeout)
	if err != nil {
		return nil, err
	}
	if record.State == client.StateFailed {
		return nil, fault.New(fault.ExecutionFailed, "engine reported execution %s failed: %s", executionID, record.Message)
	}
	if record.State != client.StateCompleted {
		return nil, fault.New(fault.TimedOut, "execution %s ended in state %s", executionID, record.State)
	}

	// Stage 6: extract the request's own artifact from the completed record
	progress("Fetching artifact...", 85)
	outputRef, err := extractOutput(record, outputPrefix)
	if err != nil {
		return nil, err
	}
	data, err := p.engine.FetchOutput(ctx, outputRef)
	if err != nil {
		return nil, err
	}

	// Stage 7: publish
	progress("Publishing...", 95)
	receipt, err := p.publisher.Publish(ctx, &publish.Artifact{
		Name: outputRef.Filename,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish artifact: %w", err)
	}

	log.Printf("[Pipeline] Request %s published %s (%d bytes, execution=%s)",
		token, outputRef.Filename, receipt.Size, executionID)

	return &Result{
		Receipt:        receipt,
		ExecutionID:    executionID,
		ParametersUsed: params,
	}, nil
}

// uploadReference streams the staged artifact to the engine's input store
func (p *Pipeline) uploadReference(ctx context.Context, artifact *reference.Artifact, token string) (string, error) {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open staged reference: %w", err)
	}
	defer f.Close()

	name := fmt.Sprintf("ref-%s.wav", token)
	stored, err := p.engine.UploadInput(ctx, name, f)
	if err != nil {
		return "", err
	}
	return stored, nil
}

// extractOutput locates the artifact belonging to this request among the
// completed record's outputs. Matching is by the request-scoped output
// prefix — never "whatever file appeared last", which is ambiguous when
// jobs share the engine's output namespace.
func extractOutput(record *client.ExecutionRecord, outputPrefix string) (client.OutputRef, error) {
	for _, ref := range record.Outputs {
		if strings.HasPrefix(ref.Filename, outputPrefix) {
			return ref, nil
		}
	}
	return client.OutputRef{}, fault.New(fault.OutputNotFound,
		"completed execution %s produced no artifact with prefix %q", record.ID, outputPrefix)
}
