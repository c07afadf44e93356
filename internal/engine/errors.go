package engine

import (
	"errors"
	"fmt"
)

const (
	CodeShareNotFound            = "SHARE_NOT_FOUND"
	CodeInvalidPassword          = "INVALID_PASSWORD"
	CodePermissionDenied         = "PERMISSION_DENIED"
	CodeDownloadNotStarted       = "DOWNLOAD_NOT_STARTED"
	CodeEnumerationInconsistency = "ENUMERATION_INCONSISTENCY"
	CodeMalformedItem            = "MALFORMED_ITEM"
	CodeValidation               = "VALIDATION"
	CodeBrowserUnavailable       = "BROWSER_UNAVAILABLE"
	CodeNavigationFailed         = "NAVIGATION_FAILED"
	CodeEvalFailure              = "EVAL_FAILURE"
	CodeTimeout                  = "TIMEOUT"
)

// CodedError is a typed error used for stable CLI and API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// shareError prefixes msg with the share ID the way every per-share failure
// is reported.
func shareError(code, shareID, msg string, cause error) error {
	return newError(code, fmt.Sprintf("[%s] %s", shareID, msg), cause)
}

// NewError builds a CodedError for callers outside the engine, such as the
// browser session manager.
func NewError(code, msg string, cause error) error {
	return newError(code, msg, cause)
}

// IsCode reports whether err, or anything it wraps, is a CodedError with code.
func IsCode(err error, code string) bool {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// CodeOf returns the code of the first CodedError in err's chain, or "".
func CodeOf(err error) string {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
