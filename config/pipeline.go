package config

import (
	"os"
	"strconv"
	"time"
)

// PipelineConfig carries the submission-pipeline tunables so the orchestrator
// never reads globals mid-request. Zero backoff is valid and keeps tests
// deterministic.
type PipelineConfig struct {
	MaxImages        int           // max photos per submission
	InferenceRetries int           // extra attempts after the first
	RetryBackoff     time.Duration // fixed delay between attempts
	MaxUploadWorkers int           // concurrent S3 uploads per submission
}

// LoadPipelineConfig builds a PipelineConfig from environment variables so main
// stays lean.
func LoadPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxImages:        envInt("MAX_MEAL_IMAGES", 5),
		InferenceRetries: envInt("INFERENCE_RETRIES", 2),
		RetryBackoff:     envDuration("INFERENCE_RETRY_BACKOFF", time.Second),
		MaxUploadWorkers: envInt("MAX_UPLOAD_WORKERS", 3),
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return fallback
}
