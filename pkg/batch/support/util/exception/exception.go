// Package exception defines the error type shared by the batch runtime and the ingestion components.
// Errors carry the module that raised them and whether the step may skip the offending item.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// Sentinel names, usable in skip policy configuration.
const (
	SchemaMismatch           = "SchemaMismatch"
	MissingColumn            = "MissingColumn"
	TypeCoercion             = "TypeCoercion"
	SourceUnreadable         = "SourceUnreadable"
	DestinationUnwritable    = "DestinationUnwritable"
	OptimisticLockingFailure = "OptimisticLockingFailure"
)

var (
	// ErrSchemaMismatch is raised when the physical header disagrees with the declared schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrMissingColumn is raised when a declared column is absent from the source.
	ErrMissingColumn = errors.New("missing column")
	// ErrTypeCoercion is raised when a cell cannot be converted to its declared type.
	ErrTypeCoercion = errors.New("type coercion failed")
	// ErrSourceUnreadable wraps I/O failures while opening or reading the input.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrDestinationUnwritable wraps I/O failures while writing the output.
	ErrDestinationUnwritable = errors.New("destination unwritable")
	// ErrOptimisticLockingFailure is returned when a versioned update matches no row.
	ErrOptimisticLockingFailure = errors.New(OptimisticLockingFailure)
)

var (
	errorRegistry = make(map[string]error)
	registryMutex sync.RWMutex
)

// RegisterErrorType registers a named error prototype, compared with errors.Is by IsErrorOfType.
// It panics on an empty name or a nil prototype.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("cannot register nil prototype for name: %s", name))
	}
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered reports whether name is present in the registry.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// BatchError is an error raised by a batch component.
type BatchError struct {
	// Module is the component that raised the error (e.g. "reader", "writer", "catalog").
	Module string
	// Message is a short description.
	Message string
	// OriginalErr is the wrapped cause.
	OriginalErr error
	isRetryable bool
	isSkippable bool
	// StackTrace is captured at construction for debugging.
	StackTrace string
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// NewBatchError creates a BatchError.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf creates a BatchError from a format string.
// Trailing arguments are consumed from the end in the order
// [originalErr error], [isRetryable bool], [isSkippable bool]; the rest feed fmt.Sprintf.
//
//	NewBatchErrorf("reader", "bad row %d", 7, true, false, err)
//	// message "bad row 7", skippable, not retryable, wraps err
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	isRetryable := false
	isSkippable := false
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isRetryable = b
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isSkippable = b
			args = args[:len(args)-1]
		}
	}

	return &BatchError{
		Module:      module,
		Message:     fmt.Sprintf(format, args...),
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewOptimisticLockingFailure creates a fatal BatchError wrapping ErrOptimisticLockingFailure.
func NewOptimisticLockingFailure(module, message string, originalErr error) *BatchError {
	errToWrap := ErrOptimisticLockingFailure
	if originalErr != nil {
		errToWrap = errors.Join(ErrOptimisticLockingFailure, originalErr)
	}
	return NewBatchError(module, message, errToWrap, false, false)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether the error is retryable. The ingest runtime never retries;
// the flag is kept so that callers can surface it.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable reports whether the item that caused the error may be skipped.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// IsFatal reports whether err must fail the step: a BatchError that is neither skippable nor
// retryable, or any error wrapping one of the structural sentinels.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSchemaMismatch) || errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrSourceUnreadable) || errors.Is(err, ErrDestinationUnwritable) {
		return true
	}
	var be *BatchError
	if errors.As(err, &be) {
		return !be.IsRetryable() && !be.IsSkippable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "no such file or directory")
}

// IsErrorOfType matches err against a registered name (errors.Is), then walks the chain
// comparing message substrings and reflected type names (e.g. "*csv.ParseError").
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	target, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok && errors.Is(err, target) {
		return true
	}

	for current := err; current != nil; current = errors.Unwrap(current) {
		if strings.Contains(current.Error(), errorTypeName) {
			return true
		}
		if t := reflect.TypeOf(current); t != nil {
			if t.String() == errorTypeName || (t.Kind() == reflect.Ptr && t.Elem().String() == errorTypeName) {
				return true
			}
		}
	}
	return false
}

// IsOptimisticLockingFailure reports whether err wraps ErrOptimisticLockingFailure.
func IsOptimisticLockingFailure(err error) bool {
	return err != nil && errors.Is(err, ErrOptimisticLockingFailure)
}

// ExtractErrorMessage returns the Message of a BatchError, or err.Error() otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

func init() {
	RegisterErrorType(SchemaMismatch, ErrSchemaMismatch)
	RegisterErrorType(MissingColumn, ErrMissingColumn)
	RegisterErrorType(TypeCoercion, ErrTypeCoercion)
	RegisterErrorType(SourceUnreadable, ErrSourceUnreadable)
	RegisterErrorType(DestinationUnwritable, ErrDestinationUnwritable)
	RegisterErrorType(OptimisticLockingFailure, ErrOptimisticLockingFailure)

	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}
