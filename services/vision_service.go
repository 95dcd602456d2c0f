package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// InferenceProvider sends one multimodal request and returns the model's raw
// text reply. Retrying is the orchestrator's job, not the client's.
type InferenceProvider interface {
	Infer(ctx context.Context, prompt string, imageURLs []string) (string, error)
}

// VisionService calls an OpenAI-compatible chat completions endpoint with the
// stored image references attached.
type VisionService struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

func NewVisionService() *VisionService {
	model := os.Getenv("VISION_MODEL")
	if model == "" {
		model = "gpt-4o-mini" // default fallback
	}
	return &VisionService{
		apiURL: os.Getenv("VISION_API_URL"),
		apiKey: os.Getenv("VISION_API_KEY"),
		model:  model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (s *VisionService) Infer(ctx context.Context, prompt string, imageURLs []string) (string, error) {
	content := []map[string]interface{}{
		{"type": "text", "text": prompt},
	}
	for _, url := range imageURLs {
		content = append(content, map[string]interface{}{
			"type":      "image_url",
			"image_url": map[string]string{"url": url},
		})
	}

	payload := map[string]interface{}{
		"model": s.model,
		"messages": []map[string]interface{}{
			{"role": "user", "content": content},
		},
		"max_tokens":  1000,
		"temperature": 0.1, // low temperature for consistent estimates
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal inference payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("failed to create inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call inference API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference API error %d: %s", resp.StatusCode, string(body))
	}

	var cr chatCompletionResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("failed to parse inference JSON: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("inference response contained no choices")
	}
	return cr.Choices[0].Message.Content, nil
}
