// Package publish delivers finished speech artifacts to callers, either
// inline (base64) or through durable object storage.
package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/voiceforge/api/internal/client"
)

// Publish modes
const (
	ModeInline  = "inline"
	ModeStorage = "storage"
)

// Artifact is a finished speech output handed over by the pipeline
type Artifact struct {
	Name string
	Data []byte
}

// Receipt is the caller-visible reference to a published artifact
type Receipt struct {
	Ref        string  `json:"ref"`
	Mode       string  `json:"mode"`
	Size       int64   `json:"size"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sampleRate"`
}

// Publisher accepts an artifact and returns a caller-visible reference
type Publisher interface {
	Publish(ctx context.Context, artifact *Artifact) (*Receipt, error)
}

// InlinePublisher returns the artifact as base64-encoded bytes. This is the
// right mode for serverless callers that want the audio in the response.
type InlinePublisher struct{}

// NewInlinePublisher creates an inline publisher
func NewInlinePublisher() *InlinePublisher {
	return &InlinePublisher{}
}

// Publish encodes the artifact inline
func (p *InlinePublisher) Publish(_ context.Context, artifact *Artifact) (*Receipt, error) {
	receipt := &Receipt{
		Ref:  base64.StdEncoding.EncodeToString(artifact.Data),
		Mode: ModeInline,
		Size: int64(len(artifact.Data)),
	}
	fillAudioMetadata(receipt, artifact)
	return receipt, nil
}

// StoragePublisher uploads the artifact to object storage and returns a
// durable URL.
type StoragePublisher struct {
	storage client.StorageClient
	prefix  string
}

// NewStoragePublisher creates a publisher backed by object storage
func NewStoragePublisher(storage client.StorageClient, prefix string) *StoragePublisher {
	if prefix == "" {
		prefix = "speech"
	}
	return &StoragePublisher{storage: storage, prefix: prefix}
}

// Publish uploads the artifact and returns its URL
func (p *StoragePublisher) Publish(ctx context.Context, artifact *Artifact) (*Receipt, error) {
	key := fmt.Sprintf("%s/%s", p.prefix, artifact.Name)

	url, err := p.storage.Upload(ctx, key, bytes.NewReader(artifact.Data), "audio/wav")
	if err != nil {
		return nil, fmt.Errorf("failed to publish artifact %s: %w", artifact.Name, err)
	}

	receipt := &Receipt{
		Ref:  url,
		Mode: ModeStorage,
		Size: int64(len(artifact.Data)),
	}
	fillAudioMetadata(receipt, artifact)
	return receipt, nil
}

// fillAudioMetadata attaches duration and sample rate when the artifact is
// parseable WAV. Non-WAV output still publishes; it just carries no
// playback metadata.
func fillAudioMetadata(receipt *Receipt, artifact *Artifact) {
	info, err := parseWAV(artifact.Data)
	if err != nil {
		log.Printf("[Publish] No audio metadata for %s: %v", artifact.Name, err)
		return
	}
	receipt.Duration = info.Duration
	receipt.SampleRate = info.SampleRate
}
