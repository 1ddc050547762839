package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a SyncError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *SyncError {
	if err == nil {
		return nil
	}

	// If it's already a SyncError, keep its attribution
	var se *SyncError
	if errors.As(err, &se) {
		return &SyncError{
			Type:    errType,
			Code:    code,
			Message: message,
			Cause:   se,
			Context: se.Context,
			Module:  se.Module,
			Path:    se.Path,
			Key:     se.Key,
		}
	}

	return &SyncError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps an error as an I/O error attributed to a path
func WrapIO(err error, code, message, path string) *SyncError {
	se := Wrap(err, ErrorTypeIO, code, message)
	if se != nil {
		se.Path = path
	}
	return se
}

// WrapCopy wraps an error as a copy error attributed to a path
func WrapCopy(err error, path string) *SyncError {
	se := Wrap(err, ErrorTypeCopy, ErrCodeCopyFailed, "copy failed")
	if se != nil {
		se.Path = path
	}
	return se
}

// WrapMerge wraps an error as a merge error attributed to a module's document
func WrapMerge(err error, code, message, path, module string) *SyncError {
	se := Wrap(err, ErrorTypeMerge, code, message)
	if se != nil {
		se.Path = path
		se.Module = module
	}
	return se
}

// RootCause unwraps err down to its innermost cause
func RootCause(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}
