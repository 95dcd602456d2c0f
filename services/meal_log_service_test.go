package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"backend/config"
	"backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validReply = `Here is the estimate: {"description":"cheeseburger and fries","calories":850,"protein":35,"fat":45,"carbs":80,"confidence":0.7} hope that helps`

type fakeObjectStore struct {
	mu   sync.Mutex
	puts []string
	fail bool
}

func (f *fakeObjectStore) PutObject(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("bucket unavailable")
	}
	f.puts = append(f.puts, key)
	return "https://cdn.example.com/" + key, nil
}

func (f *fakeObjectStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	f.calls++
	return f.text, f.err
}

// fakeVision replays scripted replies/errors in order, repeating the last one.
type fakeVision struct {
	replies []string
	errs    []error
	calls   int
}

func (f *fakeVision) Infer(ctx context.Context, prompt string, imageURLs []string) (string, error) {
	i := f.calls
	f.calls++
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i], f.errs[i]
}

type fakeRecordStore struct {
	saved []*models.MealLog
	err   error
}

func (f *fakeRecordStore) Save(ctx context.Context, log *models.MealLog) error {
	if f.err != nil {
		return f.err
	}
	log.ID = uint(len(f.saved) + 1)
	f.saved = append(f.saved, log)
	return nil
}

type pipelineFixture struct {
	objects     *fakeObjectStore
	transcriber *fakeTranscriber
	vision      *fakeVision
	records     *fakeRecordStore
	svc         *MealLogService
}

func newFixture(retries int, vision *fakeVision) *pipelineFixture {
	f := &pipelineFixture{
		objects:     &fakeObjectStore{},
		transcriber: &fakeTranscriber{text: "two slices of pizza"},
		vision:      vision,
		records:     &fakeRecordStore{},
	}
	cfg := config.PipelineConfig{
		MaxImages:        5,
		InferenceRetries: retries,
		RetryBackoff:     0, // deterministic tests
		MaxUploadWorkers: 2,
	}
	f.svc = NewMealLogService(cfg, NewAssetIngestor(f.objects, cfg.MaxUploadWorkers), f.transcriber, vision, f.records)
	return f
}

func images(n int) []Upload {
	ups := make([]Upload, n)
	for i := range ups {
		ups[i] = Upload{
			Filename: fmt.Sprintf("photo-%d.jpg", i),
			MimeType: "image/jpeg",
			Data:     []byte("jpegbytes"),
		}
	}
	return ups
}

func TestSubmitRejectsEmptySubmission(t *testing.T) {
	f := newFixture(0, &fakeVision{replies: []string{validReply}, errs: []error{nil}})

	_, err := f.svc.Submit(context.Background(), 7, nil, nil)

	var invalid *InvalidSubmissionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 0, f.objects.putCount(), "no storage write may happen before the cardinality check")
	assert.Equal(t, 0, f.vision.calls)
}

func TestSubmitRejectsTooManyImages(t *testing.T) {
	f := newFixture(0, &fakeVision{replies: []string{validReply}, errs: []error{nil}})

	_, err := f.svc.Submit(context.Background(), 7, images(6), nil)

	var invalid *InvalidSubmissionError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "6")
	assert.Equal(t, 0, f.objects.putCount())
}

func TestSubmitEndToEnd(t *testing.T) {
	f := newFixture(2, &fakeVision{replies: []string{validReply}, errs: []error{nil}})

	result, err := f.svc.Submit(context.Background(), 7, images(2), nil)
	require.NoError(t, err)

	assert.Equal(t, uint(7), result.UserID)
	assert.Equal(t, 850, result.Calories)
	assert.Equal(t, 35, result.Protein)
	assert.Equal(t, "cheeseburger and fries", result.Estimate.Description)
	assert.Equal(t, 0.7, result.Estimate.Confidence)
	assert.Len(t, result.ImageURLs, 2)
	assert.Empty(t, result.Transcript)
	assert.Equal(t, 1, f.vision.calls, "valid first reply needs no retry")
	assert.Equal(t, 0, f.transcriber.calls, "no audio, no transcription call")

	require.Len(t, f.records.saved, 1)
	rec := f.records.saved[0]
	assert.Equal(t, uint(7), rec.UserID)
	assert.Equal(t, validReply, rec.RawResponse)
	assert.Contains(t, rec.ImageURLs, "https://cdn.example.com/meal-photos/7/")
}

func TestSubmitWithAudioNote(t *testing.T) {
	f := newFixture(0, &fakeVision{replies: []string{validReply}, errs: []error{nil}})

	audio := &Upload{Filename: "note.m4a", MimeType: "audio/mp4", Data: []byte("audiobytes")}
	result, err := f.svc.Submit(context.Background(), 3, images(1), audio)
	require.NoError(t, err)

	assert.Equal(t, "two slices of pizza", result.Transcript)
	assert.Equal(t, 1, f.transcriber.calls)
	require.Len(t, f.records.saved, 1)
	assert.Equal(t, "two slices of pizza", f.records.saved[0].Transcript)
}

func TestSubmitTranscriptionFailureAborts(t *testing.T) {
	f := newFixture(2, &fakeVision{replies: []string{validReply}, errs: []error{nil}})
	f.transcriber.err = errors.New("provider down")

	audio := &Upload{Filename: "note.m4a", MimeType: "audio/mp4", Data: []byte("audiobytes")}
	_, err := f.svc.Submit(context.Background(), 3, images(1), audio)

	var terr *TranscriptionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, f.transcriber.calls, "transcription is never retried")
	assert.Equal(t, 0, f.vision.calls, "inference must not start after a transcription failure")
	assert.Empty(t, f.records.saved)
}

func TestSubmitStorageFailure(t *testing.T) {
	f := newFixture(0, &fakeVision{replies: []string{validReply}, errs: []error{nil}})
	f.objects.fail = true

	_, err := f.svc.Submit(context.Background(), 3, images(2), nil)

	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 0, f.vision.calls)
	assert.Empty(t, f.records.saved)
}

func TestSubmitRetriesMalformedOutput(t *testing.T) {
	vision := &fakeVision{
		replies: []string{"no json here", "still nothing", validReply},
		errs:    []error{nil, nil, nil},
	}
	f := newFixture(2, vision)

	result, err := f.svc.Submit(context.Background(), 1, images(1), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, vision.calls)
	assert.Equal(t, 850, result.Calories)
}

func TestSubmitExhaustsRetryBudget(t *testing.T) {
	vision := &fakeVision{replies: []string{"no json here"}, errs: []error{nil}}
	f := newFixture(2, vision)

	_, err := f.svc.Submit(context.Background(), 1, images(1), nil)

	var ierr *InferenceError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, 3, ierr.Attempts)
	assert.Equal(t, 3, vision.calls, "retries+1 total attempts")

	// The final malformed output collapses into the inference failure but
	// stays reachable for callers that care.
	var malformed *MalformedOutputError
	assert.ErrorAs(t, err, &malformed)
	assert.Empty(t, f.records.saved)
}

func TestSubmitRetriesTransportErrors(t *testing.T) {
	vision := &fakeVision{
		replies: []string{"", validReply},
		errs:    []error{errors.New("connection reset"), nil},
	}
	f := newFixture(1, vision)

	_, err := f.svc.Submit(context.Background(), 1, images(1), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, vision.calls)
}

func TestSubmitValidationFailureIsNotRetriedOrPersisted(t *testing.T) {
	missingProtein := `{"description":"soup","calories":200,"fat":5,"carbs":30}`
	vision := &fakeVision{replies: []string{missingProtein}, errs: []error{nil}}
	f := newFixture(2, vision)

	_, err := f.svc.Submit(context.Background(), 1, images(1), nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "protein", verr.Field)
	assert.Equal(t, 1, vision.calls, "validation failures are terminal, not retry-eligible")
	assert.Empty(t, f.records.saved)
}

func TestSubmitPersistenceFailure(t *testing.T) {
	f := newFixture(0, &fakeVision{replies: []string{validReply}, errs: []error{nil}})
	f.records.err = errors.New("insert failed")

	_, err := f.svc.Submit(context.Background(), 1, images(1), nil)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
}

func TestBuildEstimatePrompt(t *testing.T) {
	t.Run("without transcript", func(t *testing.T) {
		prompt := BuildEstimatePrompt("")
		assert.Contains(t, prompt, `"calories"`)
		assert.NotContains(t, prompt, "described the meal")
	})

	t.Run("with transcript", func(t *testing.T) {
		prompt := BuildEstimatePrompt("leftover curry from yesterday")
		assert.Contains(t, prompt, "leftover curry from yesterday")
		assert.True(t, strings.Contains(prompt, `"protein"`))
	})
}
