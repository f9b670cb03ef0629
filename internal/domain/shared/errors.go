// Package shared contains common domain types, errors and events that are used
// across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Callers match them with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")
	ErrOutOfRange   = errors.New("value out of range")

	// Consistency errors
	ErrConstraintViolation = errors.New("constraint violation")
	ErrDuplicateEnrollment = errors.New("duplicate enrollment")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrStateTransition     = errors.New("invalid state transition")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "enrollment", "batch", "catalog"
	Op      string // Operation that failed, e.g., "Enroll", "Transition"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Identity errors
var (
	ErrUserNotFound         = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrUserAlreadyExists    = NewDomainError("user", "Create", ErrAlreadyExists, "user with this email already exists")
	ErrStudentNotFound      = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentAlreadyExists = NewDomainError("student", "Create", ErrAlreadyExists, "student with this email already exists")
	ErrUserIDCollision      = NewDomainError("user", "Create", ErrConcurrentModification, "generated user id already taken")
	ErrStudentIDCollision   = NewDomainError("student", "Create", ErrConcurrentModification, "generated student id already taken")
)

// Catalog errors
var (
	ErrCourseNotFound = NewDomainError("catalog", "FindCourse", ErrNotFound, "course not found")
	ErrModuleNotFound = NewDomainError("catalog", "FindModule", ErrNotFound, "module not found")
	ErrLessonNotFound = NewDomainError("catalog", "FindLesson", ErrNotFound, "lesson not found")
)

// Batch errors
var (
	ErrBatchNotFound       = NewDomainError("batch", "Find", ErrNotFound, "batch not found")
	ErrBatchCodeTaken      = NewDomainError("batch", "Create", ErrAlreadyExists, "batch code already in use")
	ErrBatchTransition     = WrapError("batch", "Transition", ErrConstraintViolation, "invalid batch status transition", ErrStateTransition)
	ErrBatchVanished       = NewDomainError("batch", "AdjustSeats", ErrNotFound, "batch disappeared while adjusting seats")
	ErrBatchSeatUnderflow  = NewDomainError("batch", "AdjustSeats", ErrConstraintViolation, "batch seat count would become negative")
	ErrInstructorNotFound  = NewDomainError("batch", "AssignInstructor", ErrNotFound, "instructor not found")
	ErrBatchDatesInverted  = NewDomainError("batch", "Validate", ErrInvalidInput, "end date is before start date")
	ErrBatchInvalidSetting = NewDomainError("batch", "Validate", ErrInvalidInput, "invalid batch settings")
)

// Enrollment errors
var (
	ErrEnrollmentNotFound   = NewDomainError("enrollment", "Find", ErrNotFound, "enrollment not found")
	ErrEnrollmentDuplicate  = NewDomainError("enrollment", "Enroll", ErrDuplicateEnrollment, "student already has an active enrollment in this course")
	ErrBatchCourseMismatch  = NewDomainError("enrollment", "Enroll", ErrConstraintViolation, "batch does not belong to the course")
	ErrBatchClosed          = NewDomainError("enrollment", "Enroll", ErrConstraintViolation, "batch is not open for enrollment")
	ErrBatchFull            = NewDomainError("enrollment", "Enroll", ErrCapacityExceeded, "batch has reached its maximum capacity")
	ErrProgressOutOfRange   = NewDomainError("enrollment", "UpdateProgress", ErrOutOfRange, "progress must be between 0.00 and 100.00")
	ErrEnrollmentTransition = WrapError("enrollment", "ChangeStatus", ErrConstraintViolation, "invalid enrollment status transition", ErrStateTransition)
	ErrEnrollmentNotActive  = NewDomainError("enrollment", "Transfer", ErrConstraintViolation, "only active enrollments can be transferred")
	ErrNumberCollision      = NewDomainError("enrollment", "Enroll", ErrConcurrentModification, "enrollment number collision")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrOutOfRange)
}

// IsConstraintViolation checks if a cross-entity consistency rule was broken.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

// IsDuplicateEnrollment checks if the error is a (student, course) uniqueness failure.
func IsDuplicateEnrollment(err error) bool {
	return errors.Is(err, ErrDuplicateEnrollment)
}

// IsRetryable checks if the whole operation can be re-run from scratch.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// Validationf builds a validation error for a single operation.
func Validationf(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrValidation, fmt.Sprintf(format, args...))
}
