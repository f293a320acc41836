package mailbox

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStoreUnavailable is returned when the mail store cannot be reached.
	ErrStoreUnavailable = errors.New("mail store unavailable")

	// ErrArchiveFailed marks a failed archive of one message.
	ErrArchiveFailed = errors.New("archive failed")

	// ErrDeleteFailed marks a failed delete of one message.
	ErrDeleteFailed = errors.New("delete failed")

	// ErrUnregisteredCategory marks messages whose category has no policy.
	ErrUnregisteredCategory = errors.New("unregistered category")

	// ErrRunInProgress is returned when a cleanup run is requested while
	// another one holds the run lock.
	ErrRunInProgress = errors.New("cleanup run already in progress")

	// ErrPolicyNotFound is returned by policy lookups for unknown categories.
	ErrPolicyNotFound = errors.New("retention policy not found")

	// ErrInvalidPolicy is returned when a policy fails validation.
	ErrInvalidPolicy = errors.New("invalid retention policy")
)

// StoreError represents an error from a mail store backend.
type StoreError struct {
	Backend   string // Store backend ("memory", "sqlite", "imap")
	Operation string // Operation that failed ("count", "list", "delete", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is reports store errors as ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// NewStoreError creates a new StoreError.
func NewStoreError(backend, operation string, cause error) *StoreError {
	return &StoreError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// MessageOp is the per-message operation a MessageError refers to.
type MessageOp string

const (
	OpArchive MessageOp = "archive"
	OpDelete  MessageOp = "delete"
)

// MessageError is a failure to archive or delete one message.
type MessageError struct {
	MessageID string
	Category  string
	Op        MessageOp
	Cause     error
}

// Error implements the error interface.
func (e *MessageError) Error() string {
	return fmt.Sprintf("%s message %s (category=%s): %v", e.Op, e.MessageID, e.Category, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *MessageError) Unwrap() error {
	return e.Cause
}

// Is maps the operation onto ErrArchiveFailed or ErrDeleteFailed.
func (e *MessageError) Is(target error) bool {
	switch e.Op {
	case OpArchive:
		return target == ErrArchiveFailed
	case OpDelete:
		return target == ErrDeleteFailed
	}
	return false
}

// NewArchiveError creates a MessageError for a failed archive.
func NewArchiveError(msg Message, category string, cause error) *MessageError {
	return &MessageError{MessageID: msg.ID, Category: category, Op: OpArchive, Cause: cause}
}

// NewDeleteError creates a MessageError for a failed delete.
func NewDeleteError(msg Message, category string, cause error) *MessageError {
	return &MessageError{MessageID: msg.ID, Category: category, Op: OpDelete, Cause: cause}
}

// PolicyError represents an error tied to one retention category.
type PolicyError struct {
	Category string
	Cause    error
}

// Error implements the error interface.
func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy error [category=%s]: %v", e.Category, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *PolicyError) Unwrap() error {
	return e.Cause
}

// NewPolicyError creates a new PolicyError.
func NewPolicyError(category string, cause error) *PolicyError {
	return &PolicyError{
		Category: category,
		Cause:    cause,
	}
}

// Error kinds reported by ErrorKind.
const (
	ErrorKindArchive      = "archive"
	ErrorKindDelete       = "delete"
	ErrorKindStore        = "store"
	ErrorKindUnregistered = "unregistered_category"
	ErrorKindAborted      = "aborted"
	ErrorKindOther        = "other"
)

// ErrorKind classifies an entry of CleanupResult.Errors by the message
// formats of the error types in this package.
func ErrorKind(msg string) string {
	switch {
	case strings.HasPrefix(msg, string(OpArchive)+" message "):
		return ErrorKindArchive
	case strings.HasPrefix(msg, string(OpDelete)+" message "):
		return ErrorKindDelete
	case strings.HasPrefix(msg, "policy error ") && strings.HasSuffix(msg, ErrUnregisteredCategory.Error()):
		return ErrorKindUnregistered
	case strings.HasPrefix(msg, "run aborted"):
		return ErrorKindAborted
	case strings.Contains(msg, "store error ") || strings.HasPrefix(msg, "list category "):
		return ErrorKindStore
	default:
		return ErrorKindOther
	}
}
