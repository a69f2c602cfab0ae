package model

import "time"

// UploadVoiceResponse is returned after uploading a reference voice.
// FileURL is directly usable as the reference field of a SpeakRequest.
type UploadVoiceResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	FileURL   string    `json:"fileUrl"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}
