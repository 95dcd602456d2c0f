package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Transcriber converts an audio note into text. A single failure aborts the
// submission; this stage is never retried.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// WhisperService talks to a whisper-compatible /audio/transcriptions endpoint.
type WhisperService struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

func NewWhisperService() *WhisperService {
	model := os.Getenv("TRANSCRIBE_MODEL")
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperService{
		apiURL: os.Getenv("TRANSCRIBE_API_URL"),
		apiKey: os.Getenv("TRANSCRIBE_API_KEY"),
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe spools the audio to a scratch file so the multipart body can be
// streamed, and removes it on every exit path.
func (s *WhisperService) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	scratch, err := os.CreateTemp("", "meal-audio-*"+filepath.Ext(filename))
	if err != nil {
		return "", fmt.Errorf("failed to create scratch file: %w", err)
	}
	defer os.Remove(scratch.Name())
	defer scratch.Close()

	if _, err := scratch.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind scratch file: %w", err)
	}

	body, contentType, err := s.buildForm(scratch, filename)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, body)
	if err != nil {
		return "", fmt.Errorf("failed to create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call transcription API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API error %d: %s", resp.StatusCode, string(respBody))
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", fmt.Errorf("failed to parse transcription JSON: %w", err)
	}
	return tr.Text, nil
}

func (s *WhisperService) buildForm(audio io.Reader, filename string) (io.Reader, string, error) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	part, err := w.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, "", fmt.Errorf("failed to build multipart form: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, "", fmt.Errorf("failed to copy audio into form: %w", err)
	}
	if err := w.WriteField("model", s.model); err != nil {
		return nil, "", fmt.Errorf("failed to write model field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}
