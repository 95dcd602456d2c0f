package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"backend/config"
	"backend/models"
	"backend/utils"

	"gorm.io/gorm"
)

// MealRecordStore persists validated meal logs. Insert-only, no upsert.
type MealRecordStore interface {
	Save(ctx context.Context, log *models.MealLog) error
}

// GormMealStore backs MealRecordStore with the shared postgres handle and
// carries the read-side queries.
type GormMealStore struct {
	db *gorm.DB
}

func NewGormMealStore(db *gorm.DB) *GormMealStore {
	return &GormMealStore{db: db}
}

func (s *GormMealStore) Save(ctx context.Context, log *models.MealLog) error {
	return s.db.WithContext(ctx).Create(log).Error
}

func (s *GormMealStore) ListByUser(userID uint) ([]models.MealLog, error) {
	var logs []models.MealLog
	err := s.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

func (s *GormMealStore) Get(userID, logID uint) (*models.MealLog, error) {
	var log models.MealLog
	err := s.db.
		Where("id = ? AND user_id = ?", logID, userID).
		First(&log).Error
	if err != nil {
		return nil, err // could be ErrRecordNotFound
	}
	return &log, nil
}

const estimateInstruction = `You are a nutrition expert. Analyze the meal shown in the photo(s) and estimate its nutritional content.%s

IMPORTANT: Always respond with valid JSON in this exact format:
{
  "description": "short description of the meal",
  "calories": [number],
  "protein": [number, grams],
  "fat": [number, grams],
  "carbs": [number, grams],
  "confidence": [number between 0 and 1]
}

Give realistic portion estimates. Do not include any other keys.`

// BuildEstimatePrompt interpolates the optional transcript into the fixed
// instruction template.
func BuildEstimatePrompt(transcript string) string {
	note := ""
	if strings.TrimSpace(transcript) != "" {
		note = fmt.Sprintf("\n\nThe user described the meal as: %q. Use this to resolve anything ambiguous in the photos.", transcript)
	}
	return fmt.Sprintf(estimateInstruction, note)
}

// SubmissionResult is the success response for one meal submission.
type SubmissionResult struct {
	Message    string            `json:"message"`
	UserID     uint              `json:"user_id"`
	MealLogID  uint              `json:"meal_log_id"`
	Calories   int               `json:"calories"`
	Protein    int               `json:"protein"`
	Estimate   NutritionEstimate `json:"estimate"`
	ImageURLs  []string          `json:"image_urls"`
	Transcript string            `json:"transcript,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// MealLogService runs the submission pipeline: cardinality check → ingestion →
// optional transcription → inference with bounded retry → extraction →
// validation → persistence. Any stage failure is terminal for the submission;
// only malformed output and inference call errors are retried, inside this
// service's own loop.
type MealLogService struct {
	cfg         config.PipelineConfig
	ingestor    *AssetIngestor
	transcriber Transcriber
	vision      InferenceProvider
	store       MealRecordStore
}

func NewMealLogService(
	cfg config.PipelineConfig,
	ingestor *AssetIngestor,
	transcriber Transcriber,
	vision InferenceProvider,
	store MealRecordStore,
) *MealLogService {
	return &MealLogService{
		cfg:         cfg,
		ingestor:    ingestor,
		transcriber: transcriber,
		vision:      vision,
		store:       store,
	}
}

func (s *MealLogService) Submit(ctx context.Context, userID uint, images []Upload, audio *Upload) (*SubmissionResult, error) {
	if len(images) == 0 {
		return nil, &InvalidSubmissionError{Reason: "at least one image is required"}
	}
	if len(images) > s.cfg.MaxImages {
		return nil, &InvalidSubmissionError{
			Reason: fmt.Sprintf("too many images: %d exceeds the maximum of %d", len(images), s.cfg.MaxImages),
		}
	}

	assets, err := s.ingestor.IngestAll(ctx, userID, images)
	if err != nil {
		// Objects written before the failure are not rolled back.
		return nil, &StorageError{Err: err}
	}
	imageURLs := make([]string, len(assets))
	for i, a := range assets {
		imageURLs[i] = a.StoredURL
	}

	var transcript string
	if audio != nil {
		transcript, err = s.transcriber.Transcribe(ctx, audio.Data, audio.Filename)
		if err != nil {
			return nil, &TranscriptionError{Err: err}
		}
	}

	raw, obj, err := s.inferWithRetry(ctx, BuildEstimatePrompt(transcript), imageURLs)
	if err != nil {
		return nil, err
	}

	est, err := ValidateEstimate(obj)
	if err != nil {
		return nil, err
	}

	warnings := utils.AssessEstimateSafety(est.Calories, est.Protein, est.Carbs, est.Fat)

	urlsJSON, _ := json.Marshal(imageURLs)
	record := &models.MealLog{
		UserID:      userID,
		Description: est.Description,
		Calories:    est.Calories,
		Protein:     est.Protein,
		Carbs:       est.Carbs,
		Fat:         est.Fat,
		Confidence:  est.Confidence,
		ImageURLs:   string(urlsJSON),
		Transcript:  transcript,
		RawResponse: raw,
		Warnings:    strings.Join(warnings, "; "),
	}
	if err := s.store.Save(ctx, record); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	return &SubmissionResult{
		Message:    "meal logged",
		UserID:     userID,
		MealLogID:  record.ID,
		Calories:   est.Calories,
		Protein:    est.Protein,
		Estimate:   *est,
		ImageURLs:  imageURLs,
		Transcript: transcript,
		Warnings:   warnings,
	}, nil
}

// inferWithRetry wraps both the inference call and the JSON extraction, since
// transient model output variance is as common as transport errors. A fixed
// backoff separates attempts; the retry budget exhausting surfaces the last
// underlying error wrapped in an InferenceError.
func (s *MealLogService) inferWithRetry(ctx context.Context, prompt string, imageURLs []string) (string, map[string]interface{}, error) {
	attempts := s.cfg.InferenceRetries + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && s.cfg.RetryBackoff > 0 {
			time.Sleep(s.cfg.RetryBackoff)
		}

		raw, err := s.vision.Infer(ctx, prompt, imageURLs)
		if err != nil {
			lastErr = err
			continue
		}

		obj, err := ExtractJSONObject(raw)
		if err != nil {
			lastErr = err
			continue
		}
		return raw, obj, nil
	}
	return "", nil, &InferenceError{Attempts: attempts, Err: lastErr}
}
