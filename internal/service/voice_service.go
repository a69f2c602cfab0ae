package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/model"
)

// VoiceService stores uploaded reference voices in object storage. The
// returned URL can be passed back as the reference of a speak request.
type VoiceService struct {
	storage client.StorageClient
}

// NewVoiceService creates a new voice service
func NewVoiceService(storage client.StorageClient) *VoiceService {
	return &VoiceService{storage: storage}
}

// UploadVoice stores a reference voice recording
func (s *VoiceService) UploadVoice(ctx context.Context, name string, file io.Reader, size int64) (*model.UploadVoiceResponse, error) {
	voiceID := uuid.New().String()
	key := fmt.Sprintf("voices/%s.wav", voiceID)

	if s.storage == nil {
		return s.uploadMock(voiceID, name, size), nil
	}

	fileURL, err := s.storage.Upload(ctx, key, file, "audio/wav")
	if err != nil {
		return nil, fmt.Errorf("failed to upload voice: %w", err)
	}

	return &model.UploadVoiceResponse{
		ID:        voiceID,
		Name:      name,
		FileURL:   fileURL,
		Size:      size,
		CreatedAt: time.Now(),
	}, nil
}

// DeleteVoice removes a stored reference voice
func (s *VoiceService) DeleteVoice(ctx context.Context, voiceID string) error {
	if s.storage == nil {
		return nil // Mock: no-op
	}
	key := fmt.Sprintf("voices/%s.wav", voiceID)
	return s.storage.Delete(ctx, key)
}

// GetSignedURL generates a presigned URL for temporary access to a voice
func (s *VoiceService) GetSignedURL(ctx context.Context, voiceID string, expiry time.Duration) (string, error) {
	key := fmt.Sprintf("voices/%s.wav", voiceID)
	if s.storage == nil {
		return fmt.Sprintf("https://cdn.voiceforge.dev/%s", key), nil
	}
	return s.storage.GetSignedURL(ctx, key, expiry)
}

// Mock implementation for development/testing
func (s *VoiceService) uploadMock(voiceID, name string, size int64) *model.UploadVoiceResponse {
	return &model.UploadVoiceResponse{
		ID:        voiceID,
		Name:      name,
		FileURL:   fmt.Sprintf("https://cdn.voiceforge.dev/voices/%s.wav", voiceID),
		Size:      size,
		CreatedAt: time.Now(),
	}
}
