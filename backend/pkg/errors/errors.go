package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInvalidRecord represents a person missing mandatory fields
	ErrorTypeInvalidRecord ErrorType = "invalid_record"
	// ErrorTypeDuplicateName represents a unique-name violation
	ErrorTypeDuplicateName ErrorType = "duplicate_name"
	// ErrorTypeStoreUnavailable represents an unreachable or failing store
	ErrorTypeStoreUnavailable ErrorType = "store_unavailable"
	// ErrorTypeTimeout represents a store call that ran out of time
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeNotFound represents a missing identity
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypePartialSync represents a save whose graph synchronization failed
	ErrorTypePartialSync ErrorType = "partial_sync"
	// ErrorTypeInvalidArgument represents a bad query argument
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// Step names the stage of an operation that failed.
type Step string

const (
	StepValidate    Step = "validate"
	StepAllocate    Step = "allocate"
	StepInsert      Step = "insert_record"
	StepUpdate      Step = "update_record"
	StepFindRecord  Step = "find_record"
	StepDeleteRow   Step = "delete_record"
	StepListRecords Step = "list_records"
	StepCount       Step = "count_records"
	StepGetImage    Step = "get_image"
	StepPutImage    Step = "put_image"
	StepDeleteImage Step = "delete_image"
	StepCountImages Step = "count_images"
	StepSyncGraph   Step = "sync_graph"
	StepTraverse    Step = "traverse_graph"
	StepDeleteNode  Step = "delete_node"
	StepPending     Step = "pending_connexion"
)

// ErrNoData is returned by analytics when the stores hold nothing to answer with.
var ErrNoData = stderrors.New("no data")

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Step      Step
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Step != "" {
		prefix = fmt.Sprintf("[%s@%s]", e.Type, e.Step)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, step Step, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Step:      step,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Record errors

// ErrInvalidRecord is returned when a person is missing mandatory fields
type ErrInvalidRecord struct {
	*BaseError
	Missing []string
}

func NewInvalidRecord(missing []string) *ErrInvalidRecord {
	return &ErrInvalidRecord{
		BaseError: NewBaseError(ErrorTypeInvalidRecord, StepValidate,
			fmt.Sprintf("missing mandatory fields: %s", strings.Join(missing, ", ")), nil),
		Missing: missing,
	}
}

// ErrDuplicateName is returned when another record already uses the name
type ErrDuplicateName struct {
	*BaseError
	Name string
}

func NewDuplicateName(step Step, name string, err error) *ErrDuplicateName {
	return &ErrDuplicateName{
		BaseError: NewBaseError(ErrorTypeDuplicateName, step, fmt.Sprintf("name already in use: %s", name), err),
		Name:      name,
	}
}

// ErrNotFound is returned when an identity does not exist
type ErrNotFound struct {
	*BaseError
	ID int64
}

func NewNotFound(step Step, id int64) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, step, fmt.Sprintf("person not found: %d", id), nil),
		ID:        id,
	}
}

// ErrInvalidArgument is returned for bad query parameters
type ErrInvalidArgument struct {
	*BaseError
	Argument string
}

func NewInvalidArgument(argument, reason string) *ErrInvalidArgument {
	return &ErrInvalidArgument{
		BaseError: NewBaseError(ErrorTypeInvalidArgument, "", fmt.Sprintf("invalid %s: %s", argument, reason), nil),
		Argument:  argument,
	}
}

// Store errors

// ErrStoreUnavailable is returned when a backing store cannot serve a call
type ErrStoreUnavailable struct {
	*BaseError
	Store string
}

func NewStoreUnavailable(store string, step Step, err error) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		BaseError: NewBaseError(ErrorTypeStoreUnavailable, step, fmt.Sprintf("%s store unavailable", store), err),
		Store:     store,
	}
}

// ErrTimeout is returned when a store call exceeded its deadline
type ErrTimeout struct {
	*BaseError
	Store string
}

func NewTimeout(store string, step Step, err error) *ErrTimeout {
	return &ErrTimeout{
		BaseError: NewBaseError(ErrorTypeTimeout, step, fmt.Sprintf("%s store timed out", store), err),
		Store:     store,
	}
}

// ErrPartialSync is returned when the record and image were committed but the
// graph could not be synchronized. Callers should schedule a repair.
type ErrPartialSync struct {
	*BaseError
	PersonID int64
}

func NewPartialSync(personID int64, err error) *ErrPartialSync {
	return &ErrPartialSync{
		BaseError: NewBaseError(ErrorTypePartialSync, StepSyncGraph,
			fmt.Sprintf("person %d saved but relationship sync failed", personID), err),
		PersonID: personID,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, "", fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// Classify wraps a raw store error as Timeout or StoreUnavailable. Errors that
// already carry a type are returned unchanged.
func Classify(store string, step Step, err error) error {
	if err == nil {
		return nil
	}
	if TypeOf(err) != "" {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(store, step, err)
	}
	var te interface{ Timeout() bool }
	if stderrors.As(err, &te) && te.Timeout() {
		return NewTimeout(store, step, err)
	}
	return NewStoreUnavailable(store, step, err)
}

// TypeOf returns the ErrorType of the first typed error in the chain, or "".
func TypeOf(err error) ErrorType {
	for err != nil {
		if t, ok := err.(interface{ errorType() ErrorType }); ok {
			return t.errorType()
		}
		err = stderrors.Unwrap(err)
	}
	return ""
}

func (e *BaseError) errorType() ErrorType { return e.Type }

// StepOf returns the failing step recorded on err, or "".
func StepOf(err error) Step {
	var base interface{ failedStep() Step }
	if stderrors.As(err, &base) {
		return base.failedStep()
	}
	return ""
}

func (e *BaseError) failedStep() Step { return e.Step }

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// IsRetryable checks if an error is retryable. Only infrastructure failures
// qualify; the idempotent save steps converge on retry.
func IsRetryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeStoreUnavailable, ErrorTypeTimeout, ErrorTypePartialSync:
		return true
	}
	return false
}
