package handler

import (
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/voiceforge/api/internal/service"
	"github.com/voiceforge/api/pkg/response"
)

const maxVoiceUploadSize = 10 * 1024 * 1024 // matches the reference size cap

type VoiceHandler struct {
	service   *service.VoiceService
	validator *validator.Validate
}

func NewVoiceHandler(svc *service.VoiceService, v *validator.Validate) *VoiceHandler {
	return &VoiceHandler{
		service:   svc,
		validator: v,
	}
}

// Upload handles POST /api/voices — stores a reference voice recording.
// The returned fileUrl can be used as the reference of a speak request.
func (h *VoiceHandler) Upload(c *fiber.Ctx) error {
	name := c.FormValue("name")

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxVoiceUploadSize {
		return response.ValidationError(c, "File exceeds the 10MB limit", nil)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".wav" {
		return response.ValidationError(c, "Only WAV files are accepted", nil)
	}

	src, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to read uploaded file")
	}
	defer src.Close()

	result, err := h.service.UploadVoice(c.Context(), name, src, file.Size)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// Delete handles DELETE /api/voices/:voiceId
func (h *VoiceHandler) Delete(c *fiber.Ctx) error {
	voiceID := c.Params("voiceId")
	if voiceID == "" {
		return response.ValidationError(c, "Voice ID is required", nil)
	}

	if err := h.service.DeleteVoice(c.Context(), voiceID); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}
