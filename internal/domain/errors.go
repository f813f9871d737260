package domain

import "errors"

// Tagged domain errors. The transport layer maps these to status codes;
// services wrap them with context via fmt.Errorf and %w.
var (
	// ErrValidation covers malformed client input and unknown enum values.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidSource is returned for plan sources outside {rule, llm}.
	ErrInvalidSource = errors.New("invalid plan source")
	// ErrPlanConflict indicates an ACTIVE plan already exists for the user and date.
	ErrPlanConflict = errors.New("active plan already exists for user and target date")
	// ErrContextMismatch indicates the session does not belong to the given plan.
	ErrContextMismatch = errors.New("session does not belong to plan")
	// ErrSetOrderViolation indicates an earlier set is still pending.
	ErrSetOrderViolation = errors.New("previous set must be completed first")
	// ErrPlanNotFound is returned when an exercise plan cannot be located.
	ErrPlanNotFound = errors.New("exercise plan not found")
	// ErrReadingPlanNotFound is returned when the user has no reading plan.
	ErrReadingPlanNotFound = errors.New("reading plan not found")
	// ErrNotificationNotFound is returned when a notification cannot be located.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrIdempotencyConflict signals a uniqueness violation on an idempotency
	// key; callers resolve it by re-reading the existing row.
	ErrIdempotencyConflict = errors.New("idempotency key already exists")
	// ErrNotImplemented marks reserved transitions that are not available yet.
	ErrNotImplemented = errors.New("not implemented")
)
