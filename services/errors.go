package services

import (
	"errors"
	"fmt"
)

// ErrUnauthorized means the presented credential maps to no known user.
var ErrUnauthorized = errors.New("unrecognized credential")

// InvalidSubmissionError rejects a submission before any asset is touched
// (wrong image count, oversized batch, ...).
type InvalidSubmissionError struct {
	Reason string
}

func (e *InvalidSubmissionError) Error() string {
	return "invalid submission: " + e.Reason
}

// StorageError wraps an object-store write failure during ingestion.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage failure: %v", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// TranscriptionError wraps a failure from the transcription provider. The
// transcription stage is never retried.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcription failure: %v", e.Err) }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// MalformedOutputError means the model reply contained no parseable JSON
// object. It is retry-eligible inside the inference loop; if the budget runs
// out it surfaces wrapped in an InferenceError.
type MalformedOutputError struct {
	Err error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed inference output: %v", e.Err)
}
func (e *MalformedOutputError) Unwrap() error { return e.Err }

// InferenceError is terminal: the retry budget is spent. Err holds the last
// underlying failure, which may be a MalformedOutputError.
type InferenceError struct {
	Attempts int
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed after %d attempts: %v", e.Attempts, e.Err)
}
func (e *InferenceError) Unwrap() error { return e.Err }

// ValidationError names the required estimate field the model left out or
// produced with an uncoercible value.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("estimate field %q missing or invalid", e.Field)
}

// PersistenceError wraps a failed meal-log insert. All prior stages have
// already completed, so the computed estimate is lost unless the client
// resubmits.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence failure: %v", e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }
