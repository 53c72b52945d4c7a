package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUserExists          = errors.New("user already exists")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrPipelineBusy        = errors.New("campaign pipeline busy")
	ErrUnsupportedEdit     = errors.New("unsupported edit")

	ErrGeneration        = errors.New("generation returned no content")
	ErrPlatform          = errors.New("platform error")
	ErrSafetyFilter      = errors.New("safety filter rejection")
	ErrTimeout           = errors.New("generation timed out")
	ErrProtocol          = errors.New("malformed platform response")
	ErrEmptyResult       = errors.New("platform returned an empty result")
	ErrDownload          = errors.New("content download failed")
	ErrOperationNotFound = errors.New("operation not found")
)

// PlatformError carries the message reported by the generative platform for a
// failed operation.
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("video generation failed: %s", e.Message)
}

func (e *PlatformError) Unwrap() error { return ErrPlatform }

// SafetyFilterError reports a content-policy rejection with the first reason
// returned by the platform.
type SafetyFilterError struct {
	Reason string
}

func (e *SafetyFilterError) Error() string {
	return fmt.Sprintf("content blocked by safety filters: %q", e.Reason)
}

func (e *SafetyFilterError) Unwrap() error { return ErrSafetyFilter }

// DownloadError reports a non-success status while fetching generated content.
type DownloadError struct {
	StatusCode int
	Status     string
}

func (e *DownloadError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("download generated content: status %d %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("download generated content: status %d", e.StatusCode)
}

func (e *DownloadError) Unwrap() error { return ErrDownload }
