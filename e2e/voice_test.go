package e2e

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
)

// createVoiceUploadRequest builds a multipart/form-data request with a fake WAV file.
func createVoiceUploadRequest(t *testing.T, token, filename string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	_ = writer.WriteField("name", "Narrator A")

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	partHeader.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	// Minimal WAV header + some data
	wavHeader := []byte("RIFF\x00\x00\x00\x00WAVEfmt ")
	fakeData := make([]byte, 1024)
	_, _ = part.Write(wavHeader)
	_, _ = part.Write(fakeData)

	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/voices/", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

func TestVoiceUpload_Success(t *testing.T) {
	ta := setupApp(t)

	token := generateToken(t)
	req := createVoiceUploadRequest(t, token, "narrator.wav")

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	if result["id"] == nil || result["id"] == "" {
		t.Error("expected 'id' in response")
	}
	if result["fileUrl"] == nil || result["fileUrl"] == "" {
		t.Error("expected 'fileUrl' in response")
	}
}

func TestVoiceUpload_NoAuth(t *testing.T) {
	ta := setupApp(t)

	req := createVoiceUploadRequest(t, "", "narrator.wav")

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestVoiceUpload_WrongExtension(t *testing.T) {
	ta := setupApp(t)

	token := generateToken(t)
	req := createVoiceUploadRequest(t, token, "narrator.mp3")

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestVoiceUpload_NoFile(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/voices/", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestVoiceDelete_Success(t *testing.T) {
	ta := setupApp(t)

	voiceID := uuid.New().String()
	resp, err := doAuthRequest(t, ta.app, http.MethodDelete, "/api/voices/"+voiceID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNoContent)
}
