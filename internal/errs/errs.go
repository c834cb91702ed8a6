// Package errs holds the error taxonomy shared by services and handlers.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfigMissing     = errors.New("required configuration missing")
	ErrGeneration        = errors.New("model generation failed")
	ErrStore             = errors.New("chat history store unavailable")
	ErrUnknownModel      = errors.New("unknown model")
	ErrEmptyPrompt       = errors.New("prompt is empty")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidToken      = errors.New("invalid or expired session token")
	ErrExportUnavailable = errors.New("export destination not configured")
)

// ConfigError lists every required key that was absent or empty.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfigMissing
}

// ModelError is a failed call to the language model.
type ModelError struct {
	Model      string
	StatusCode int
	Message    string
	Err        error
}

func (e *ModelError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("model %s failed [%d]: %s", e.Model, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("model %s failed: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("model %s failed: %s", e.Model, e.Message)
}

func (e *ModelError) Is(target error) bool {
	return target == ErrGeneration
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// StoreError is a failed chat history operation. Op names the operation
// ("record", "recent", "purge").
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("chat history %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
