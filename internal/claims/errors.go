package claims

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aldoetobex/claims-backend/pkg/models"
)

// Sentinels for errors.Is checks. The typed errors below match them via Is.
var (
	ErrValidation             = errors.New("validation failed")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrUnsupportedFileType    = errors.New("unsupported file type")
	ErrFileTooLarge           = errors.New("file too large")
	ErrTooManyFiles           = errors.New("too many files")
	ErrClaimClosed            = errors.New("claim is closed")
	ErrNotFound               = errors.New("claim not found")
	ErrForbidden              = errors.New("claim belongs to another claimant")
	ErrDuplicateNumber        = errors.New("duplicate claim number")
)

/* ============================ Validation ================================ */

// ValidationError carries per-field messages, keyed by the JSON field name.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError builds a ValidationError with a single field message.
func NewValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

// Add appends a message for field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool { return e == nil || len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(sortedKeys(e.Fields), ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IncompleteStepError reports the draft step that could not be completed.
type IncompleteStepError struct {
	Step   string
	Fields map[string][]string
}

func (e *IncompleteStepError) Error() string {
	return fmt.Sprintf("step %s incomplete: %s", e.Step, strings.Join(sortedKeys(e.Fields), ", "))
}

func (e *IncompleteStepError) Is(target error) bool { return target == ErrValidation }

/* ============================ Lifecycle ================================= */

// InvalidTransitionError names both sides of a rejected status change.
type InvalidTransitionError struct {
	From models.ClaimStatus
	To   models.ClaimStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

/* ============================ Documents ================================= */

// UnsupportedFileTypeError is a per-file MIME allow-list violation.
type UnsupportedFileTypeError struct {
	FileName string
	MimeType string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("%s: type %q is not allowed", e.FileName, e.MimeType)
}

func (e *UnsupportedFileTypeError) Is(target error) bool { return target == ErrUnsupportedFileType }

// FileTooLargeError is a per-file size cap violation.
type FileTooLargeError struct {
	FileName string
	Size     int64
	Limit    int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s: %d bytes exceeds the %d byte limit", e.FileName, e.Size, e.Limit)
}

func (e *FileTooLargeError) Is(target error) bool { return target == ErrFileTooLarge }

// TooManyFilesError rejects a whole batch that would push a claim over its cap.
type TooManyFilesError struct {
	Existing int
	Adding   int
	Limit    int
}

func (e *TooManyFilesError) Error() string {
	return fmt.Sprintf("claim has %d documents, adding %d exceeds the limit of %d", e.Existing, e.Adding, e.Limit)
}

func (e *TooManyFilesError) Is(target error) bool { return target == ErrTooManyFiles }

func sortedKeys(m map[string][]string) []string {
	return slices.Sorted(maps.Keys(m))
}
