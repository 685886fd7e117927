// internal/engine/errors.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/law-makers/pricecrawl/internal/extract"
)

// Common engine errors
var (
	ErrInvalidURL  = errors.New("invalid URL")
	ErrUnknownSite = errors.New("no site configured for URL")
	ErrInvalidPage = errors.New("page numbers must be >= 1")
	ErrBlocked     = errors.New("block or challenge page")
	ErrThinBody    = errors.New("response body too short")
	ErrUnrendered  = errors.New("page needs JavaScript rendering")
	ErrEmptyPlan   = errors.New("acquisition plan has no steps")
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeValidation  ErrorCode = "VALIDATION"
	ErrCodeAcquisition ErrorCode = "ACQUISITION"
	ErrCodeExtraction  ErrorCode = "EXTRACTION"
	ErrCodeTimeout     ErrorCode = "TIMEOUT"
	ErrCodeBlocked     ErrorCode = "BLOCKED"
	ErrCodeInternal    ErrorCode = "INTERNAL"
)

// EngineError wraps errors with additional context. Retry is set on
// failures that may pass when the operation is run again later.
type EngineError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retry      bool
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is checks if the error matches the target
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Underlying, target)
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Message:    message,
		Underlying: err,
		Retry:      false,
		Details:    make(map[string]interface{}),
	}
}

// WithRetry marks the error as retryable
func (e *EngineError) WithRetry() *EngineError {
	e.Retry = true
	return e
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	e.Details[key] = value
	return e
}

// Attempt records one failed strategy inside an acquisition
type Attempt struct {
	Strategy string
	Err      error
}

// AcquisitionError means every strategy in the plan failed
type AcquisitionError struct {
	Tried    []string
	Last     error
	Attempts []Attempt
	// Cancelled is set when the caller's context ended the ladder early
	Cancelled bool
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("all strategies failed [%s]: %v", strings.Join(e.Tried, ", "), e.Last)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Last
}

// AllBlocked reports whether every attempt ended on a block or challenge page
func (e *AcquisitionError) AllBlocked() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if !errors.Is(a.Err, ErrBlocked) {
			return false
		}
	}
	return true
}

// Classify maps any error produced by the pipeline to an ErrorCode
func Classify(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}

	var ae *AcquisitionError
	if errors.As(err, &ae) {
		switch {
		case ae.Cancelled:
			return ErrCodeTimeout
		case ae.AllBlocked():
			return ErrCodeBlocked
		}
		return ErrCodeAcquisition
	}

	switch {
	case errors.Is(err, ErrInvalidURL), errors.Is(err, ErrUnknownSite), errors.Is(err, ErrInvalidPage):
		return ErrCodeValidation
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrCodeTimeout
	case errors.Is(err, ErrBlocked):
		return ErrCodeBlocked
	case errors.Is(err, extract.ErrRequiredField):
		return ErrCodeExtraction
	}
	return ErrCodeInternal
}

// Wrap converts err into an *EngineError carrying its classified code.
// Already-wrapped errors are returned unchanged.
func Wrap(err error, message string) *EngineError {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}
	ee = NewEngineError(Classify(err), message, err)
	if Transient(ee.Code) {
		ee.WithRetry()
	}
	return ee
}

// Transient reports whether failures with code depend on the remote site's
// state rather than on the request
func Transient(code ErrorCode) bool {
	switch code {
	case ErrCodeAcquisition, ErrCodeBlocked, ErrCodeTimeout:
		return true
	}
	return false
}
