package domain

import (
	"fmt"
	"net/http"
)

// ErrorType categorizes a pipeline failure.
type ErrorType string

const (
	// ErrorTypeValidation indicates a malformed request (empty message list,
	// empty content). Rejected before any inference work.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeModelUnavailable indicates model weights could not be loaded.
	// Fatal until resolved; analysis requests are refused.
	ErrorTypeModelUnavailable ErrorType = "model_unavailable"

	// ErrorTypeInference indicates a batch scoring call failed after retry.
	ErrorTypeInference ErrorType = "inference"

	// ErrorTypeTimeout indicates the per-request deadline was exceeded.
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeInternal indicates an invariant violation inside the pipeline.
	ErrorTypeInternal ErrorType = "internal"
)

// Stage identifies where in the request lifecycle a failure occurred.
type Stage string

const (
	StageReceived    Stage = "received"
	StageCacheLookup Stage = "cache_lookup"
	StageInference   Stage = "batched_inference"
	StageAggregation Stage = "aggregation"
)

// AnalysisError is the canonical error surfaced by the pipeline. It carries
// enough detail to diagnose a failure (stage, message index when applicable)
// without exposing internal model identifiers to callers.
type AnalysisError struct {
	Type ErrorType `json:"type"`

	// Stage is the lifecycle stage that failed.
	Stage Stage `json:"stage,omitempty"`

	// MessageIndex is the offending message position, or -1 when the error
	// is not attributable to a single message.
	MessageIndex int `json:"message_index,omitempty"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Err is the wrapped cause, if any. Not serialized.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	if e.MessageIndex >= 0 {
		return fmt.Sprintf("%s at %s (message %d): %s", e.Type, e.Stage, e.MessageIndex, e.Message)
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s at %s: %s", e.Type, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *AnalysisError) Unwrap() error { return e.Err }

// HTTPStatusCode maps the error type to a status code for the HTTP boundary.
func (e *AnalysisError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeModelUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeInference:
		return http.StatusBadGateway
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrValidation builds a validation error. idx is the offending message
// index, or -1 for request-level problems.
func ErrValidation(idx int, format string, args ...any) *AnalysisError {
	return &AnalysisError{
		Type:         ErrorTypeValidation,
		Stage:        StageReceived,
		MessageIndex: idx,
		Message:      fmt.Sprintf(format, args...),
	}
}

// ErrModelUnavailable builds a fatal model-load error wrapping cause.
func ErrModelUnavailable(cause error) *AnalysisError {
	return &AnalysisError{
		Type:         ErrorTypeModelUnavailable,
		Stage:        StageReceived,
		MessageIndex: -1,
		Message:      "model weights are not loaded",
		Err:          cause,
	}
}

// ErrInference builds a batch scoring failure. idx is the first message index
// of the failed batch, or -1 when unknown.
func ErrInference(idx int, cause error) *AnalysisError {
	return &AnalysisError{
		Type:         ErrorTypeInference,
		Stage:        StageInference,
		MessageIndex: idx,
		Message:      "batch inference failed",
		Err:          cause,
	}
}

// ErrTimeout builds a deadline-exceeded error for the given stage.
func ErrTimeout(stage Stage, cause error) *AnalysisError {
	return &AnalysisError{
		Type:         ErrorTypeTimeout,
		Stage:        stage,
		MessageIndex: -1,
		Message:      "request deadline exceeded",
		Err:          cause,
	}
}

// ErrInternal builds an invariant-violation error for the given stage.
func ErrInternal(stage Stage, format string, args ...any) *AnalysisError {
	return &AnalysisError{
		Type:         ErrorTypeInternal,
		Stage:        stage,
		MessageIndex: -1,
		Message:      fmt.Sprintf(format, args...),
	}
}
