package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds surfaced on failed fetch outcomes.
const (
	KindInvalidURL          = "invalid_url"
	KindNetworkError        = "network_error"
	KindExtractionFailed    = "extraction_failed"
	KindQualityRejected     = "quality_rejected"
	KindEngineUnavailable   = "engine_unavailable"
	KindFallbackFetchFailed = "fallback_fetch_failed"
)

// Error is a pipeline failure with a machine-readable kind.
type Error struct {
	Kind string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the pipeline error kind of err, or "" if it is not one.
func KindOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
