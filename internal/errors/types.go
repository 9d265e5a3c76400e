// Package errors defines the structured error kinds produced while serving
// modules. Every per-request failure is one of these kinds so the HTTP layer
// can decide between falling through to static serving and rendering an
// error body.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeUnresolvedImport ErrorType = "unresolved_import"
	ErrorTypeLoad             ErrorType = "load"
	ErrorTypeTransform        ErrorType = "transform"
	ErrorTypeMissingImporter  ErrorType = "missing_importer"
	ErrorTypeTransportBind    ErrorType = "transport_bind"
	ErrorTypeConfig           ErrorType = "config"
	ErrorTypeInternal         ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeUnresolved      = "ERR_UNRESOLVED_IMPORT"
	ErrCodeLoadFailed      = "ERR_LOAD_FAILED"
	ErrCodeTransformFailed = "ERR_TRANSFORM_FAILED"
	ErrCodeNoImporter      = "ERR_MISSING_IMPORTER"
	ErrCodeTransportBind   = "ERR_TRANSPORT_BIND"
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeHookPanic       = "ERR_HOOK_PANIC"
	ErrCodeInternalError   = "ERR_INTERNAL"
)

// Sentinels for errors.Is comparisons. Matching is by Type and Code, so any
// error built by the constructors below matches its sentinel.
var (
	ErrUnresolvedImport = &ServeError{Type: ErrorTypeUnresolvedImport, Code: ErrCodeUnresolved}
	ErrLoadFailure      = &ServeError{Type: ErrorTypeLoad, Code: ErrCodeLoadFailed}
	ErrTransformFailure = &ServeError{Type: ErrorTypeTransform, Code: ErrCodeTransformFailed}
	ErrMissingImporter  = &ServeError{Type: ErrorTypeMissingImporter, Code: ErrCodeNoImporter}
	ErrTransportBind    = &ServeError{Type: ErrorTypeTransportBind, Code: ErrCodeTransportBind}
)

// ServeError is a structured error type with context.
type ServeError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	// Plugin names the pipeline plugin that raised the error, if any.
	Plugin      string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *ServeError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Plugin != "" {
		parts = append(parts, "plugin:"+e.Plugin)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ServeError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *ServeError) Is(target error) bool {
	var t *ServeError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ServeError) WithContext(key string, value interface{}) *ServeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPlugin records which plugin produced the error.
func (e *ServeError) WithPlugin(name string) *ServeError {
	e.Plugin = name

	return e
}

// WithFile adds file location information.
func (e *ServeError) WithFile(filePath string) *ServeError {
	e.FilePath = filePath

	return e
}

// NewUnresolvedImportError reports that no resolver produced an identity.
func NewUnresolvedImportError(specifier, importer string) *ServeError {
	msg := "cannot resolve " + specifier
	if importer != "" {
		msg += " from " + importer
	}

	return &ServeError{
		Type:        ErrorTypeUnresolvedImport,
		Code:        ErrCodeUnresolved,
		Message:     msg,
		Recoverable: true,
	}
}

// NewLoadError reports that no plugin produced source for a resolved id.
func NewLoadError(id string, cause error) *ServeError {
	return &ServeError{
		Type:        ErrorTypeLoad,
		Code:        ErrCodeLoadFailed,
		Message:     "no source loaded",
		Cause:       cause,
		FilePath:    id,
		Recoverable: true,
	}
}

// NewTransformError reports a failing transform hook.
func NewTransformError(id string, cause error) *ServeError {
	return &ServeError{
		Type:        ErrorTypeTransform,
		Code:        ErrCodeTransformFailed,
		Message:     "transform failed",
		Cause:       cause,
		FilePath:    id,
		Recoverable: true,
	}
}

// NewMissingImporterError reports a relative specifier resolved without an
// importer to anchor it.
func NewMissingImporterError(specifier string) *ServeError {
	return &ServeError{
		Type:        ErrorTypeMissingImporter,
		Code:        ErrCodeNoImporter,
		Message:     "relative specifier " + specifier + " requires an importer",
		Recoverable: false,
	}
}

// NewTransportBindError reports that the HMR listener could not bind.
func NewTransportBindError(addr string, cause error) *ServeError {
	return &ServeError{
		Type:        ErrorTypeTransportBind,
		Code:        ErrCodeTransportBind,
		Message:     "cannot listen on " + addr,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *ServeError {
	return &ServeError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *ServeError {
	return &ServeError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsNotFound reports whether err means "nothing to serve here": the request
// should fall through to the next handler.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnresolvedImport) || errors.Is(err, ErrLoadFailure)
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *ServeError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// HTTPStatus maps an error to the status code written for it.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// AsServeError extracts the first ServeError in err's chain.
func AsServeError(err error) (*ServeError, bool) {
	var se *ServeError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
