package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeResolution ErrorType = "resolution"
	ErrorTypeMerge      ErrorType = "merge"
	ErrorTypeCopy       ErrorType = "copy"
	ErrorTypeStructural ErrorType = "structural"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInternal   ErrorType = "internal"
)

// SyncError is a structured error attributable to a single file or module.
type SyncError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	Module  string
	Path    string
	Key     string
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Module != "" {
		parts = append(parts, "module:"+e.Module)
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	if e.Key != "" {
		parts = append(parts, "key:"+e.Key)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *SyncError) Is(target error) bool {
	var t *SyncError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SyncError) WithContext(key string, value interface{}) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath records the file the error is attributable to.
func (e *SyncError) WithPath(path string) *SyncError {
	e.Path = path

	return e
}

// WithModule records the module the error is attributable to.
func (e *SyncError) WithModule(module string) *SyncError {
	e.Module = module

	return e
}

// WithKey records the configuration key a structural error refers to.
func (e *SyncError) WithKey(key string) *SyncError {
	e.Key = key

	return e
}

// Error creation functions

// NewResolutionError creates a module resolution error.
func NewResolutionError(code, message string, cause error) *SyncError {
	return &SyncError{
		Type:    ErrorTypeResolution,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewMergeError creates a configuration merge error.
func NewMergeError(code, message string, cause error) *SyncError {
	return &SyncError{
		Type:    ErrorTypeMerge,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewCopyError creates a file copy error.
func NewCopyError(code, message string, cause error) *SyncError {
	return &SyncError{
		Type:    ErrorTypeCopy,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewStructuralError creates a structural merge mismatch.
func NewStructuralError(key, message string) *SyncError {
	return &SyncError{
		Type:    ErrorTypeStructural,
		Code:    ErrCodeShapeMismatch,
		Message: message,
		Key:     key,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SyncError {
	return &SyncError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *SyncError {
	return &SyncError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsType reports whether err is a SyncError of the given type.
func IsType(err error, errType ErrorType) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Type == errType
	}

	return false
}

// IsResolutionError checks if an error came from module resolution.
func IsResolutionError(err error) bool {
	return IsType(err, ErrorTypeResolution)
}

// IsMergeError checks if an error came from a configuration merge.
func IsMergeError(err error) bool {
	return IsType(err, ErrorTypeMerge)
}

// IsCopyError checks if an error came from copying a file.
func IsCopyError(err error) bool {
	return IsType(err, ErrorTypeCopy)
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at the level its type calls for. Per-unit errors
// (resolution, merge, copy, structural) are warnings; anything else is an error.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var se *SyncError
	if !errors.As(err, &se) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch se.Type {
	case ErrorTypeResolution:
		h.logger.Warn(ctx, se, "Module resolution failed",
			"code", se.Code,
			"module", se.Module,
			"path", se.Path)
	case ErrorTypeMerge:
		h.logger.Warn(ctx, se, "Configuration merge skipped",
			"code", se.Code,
			"module", se.Module,
			"path", se.Path)
	case ErrorTypeCopy:
		h.logger.Warn(ctx, se, "File skipped",
			"code", se.Code,
			"path", se.Path)
	case ErrorTypeStructural:
		h.logger.Warn(ctx, se, "Configuration key skipped",
			"code", se.Code,
			"key", se.Key)
	default:
		h.logger.Error(ctx, se, "Error occurred",
			"type", se.Type,
			"code", se.Code,
			"path", se.Path)
	}
}

// Common error codes.
const (
	ErrCodeManifestMissing  = "ERR_MANIFEST_MISSING"
	ErrCodeManifestInvalid  = "ERR_MANIFEST_INVALID"
	ErrCodeModuleNotFound   = "ERR_MODULE_NOT_FOUND"
	ErrCodeConfMissing      = "ERR_CONF_MISSING"
	ErrCodeConfInvalid      = "ERR_CONF_INVALID"
	ErrCodeConfWrite        = "ERR_CONF_WRITE"
	ErrCodeSourceMissing    = "ERR_SOURCE_MISSING"
	ErrCodeNotRegularFile   = "ERR_NOT_REGULAR_FILE"
	ErrCodeCopyFailed       = "ERR_COPY_FAILED"
	ErrCodeDeleteFailed     = "ERR_DELETE_FAILED"
	ErrCodeShapeMismatch    = "ERR_SHAPE_MISMATCH"
	ErrCodeUnkeyedSequence  = "ERR_UNKEYED_SEQUENCE"
	ErrCodeGlobFailed       = "ERR_GLOB_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeUnknownCategory  = "ERR_UNKNOWN_CATEGORY"
	ErrCodeInvalidBuildPath = "ERR_INVALID_BUILD_PATH"
	ErrCodeWatchFailed      = "ERR_WATCH_FAILED"
)

// ErrManifestMissing creates the error for a subtree with no readable package manifest.
func ErrManifestMissing(path string, cause error) *SyncError {
	return NewResolutionError(ErrCodeManifestMissing, "package manifest not readable", cause).
		WithPath(path)
}

// ErrManifestInvalid creates the error for a manifest that cannot be parsed.
func ErrManifestInvalid(path string, cause error) *SyncError {
	return NewResolutionError(ErrCodeManifestInvalid, "package manifest not parsable", cause).
		WithPath(path)
}

// ErrConfMissing creates the error for a merge whose destination document is absent.
func ErrConfMissing(path string, cause error) *SyncError {
	return NewMergeError(ErrCodeConfMissing, "destination configuration not found", cause).
		WithPath(path)
}

// ErrConfInvalid creates the error for a configuration document that cannot be parsed.
func ErrConfInvalid(path string, cause error) *SyncError {
	return NewMergeError(ErrCodeConfInvalid, "configuration not parsable", cause).
		WithPath(path)
}

// ErrSourceMissing creates the error for a copy whose source vanished.
func ErrSourceMissing(path string) *SyncError {
	return NewCopyError(ErrCodeSourceMissing, "source file does not exist", nil).
		WithPath(path)
}

// ErrNotRegularFile creates the error for a copy whose source is not a plain file.
func ErrNotRegularFile(path string) *SyncError {
	return NewCopyError(ErrCodeNotRegularFile, "source is not a regular file", nil).
		WithPath(path)
}
