// Package errors provides the structured error taxonomy shared by every codec,
// the bucket manager, the relational adapter and the pipeline orchestrator.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeParse is a malformed field in a text decode. Fatal for the whole decode.
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeSchema is a columnar or table read against an incompatible schema.
	ErrorTypeSchema ErrorType = "schema"
	// ErrorTypeStorage is an object storage transport or auth failure.
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeCatalog is a table create, load or commit failure.
	ErrorTypeCatalog ErrorType = "catalog"
	// ErrorTypeCountMismatch is a stage whose output count differs from its input count.
	ErrorTypeCountMismatch ErrorType = "count_mismatch"
	// ErrorTypeValidation represents a record that violates the logical schema
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFile represents local file write/read errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeQuery represents relational statement failures
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeNotFound represents an absent object, file or table
	ErrorTypeNotFound ErrorType = "not_found"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. Wrap(nil, ...) returns nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType reports whether any error in err's chain is an *Error of the given type.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// IsParse reports whether err is a ParseError
func IsParse(err error) bool { return IsType(err, ErrorTypeParse) }

// IsSchema reports whether err is a SchemaError
func IsSchema(err error) bool { return IsType(err, ErrorTypeSchema) }

// IsStorage reports whether err is a StorageError
func IsStorage(err error) bool { return IsType(err, ErrorTypeStorage) }

// IsCatalog reports whether err is a CatalogError
func IsCatalog(err error) bool { return IsType(err, ErrorTypeCatalog) }

// IsCountMismatch reports whether err is a CountMismatchError
func IsCountMismatch(err error) bool { return IsType(err, ErrorTypeCountMismatch) }

// IsNotFound reports whether err reports an absent resource
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// Is and As re-export the standard library helpers so callers need a single import.
var (
	Is = errors.Is
	As = errors.As
)

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
