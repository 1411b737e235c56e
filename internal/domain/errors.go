package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindValidation
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// Error is a message-carrying error tagged with a Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NotFoundf builds a NotFound error with a formatted message.
func NotFoundf(format string, args ...any) error {
	return newError(KindNotFound, fmt.Sprintf(format, args...))
}

// Forbiddenf builds a Forbidden error with a formatted message.
func Forbiddenf(format string, args ...any) error {
	return newError(KindForbidden, fmt.Sprintf(format, args...))
}

// Validationf builds a Validation error with a formatted message.
func Validationf(format string, args ...any) error {
	return newError(KindValidation, fmt.Sprintf(format, args...))
}

// KindOf reports the Kind of err, KindInternal when it carries none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of a domain error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = newError(KindNotFound, "quiz not found")
	// ErrQuizNotPublished is returned when learners reach an unpublished quiz.
	ErrQuizNotPublished = newError(KindForbidden, "quiz is not published")
	// ErrTestSeriesNotFound indicates the parent test series is missing.
	ErrTestSeriesNotFound = newError(KindNotFound, "test series not found")
	// ErrTestSeriesNotPublished is returned when the parent series is unpublished.
	ErrTestSeriesNotPublished = newError(KindForbidden, "test series is not published")
	// ErrAttemptNotFound is returned when an attempt id is unknown.
	ErrAttemptNotFound = newError(KindNotFound, "attempt not found")
	// ErrAttemptGone is returned when an attempt vanished before submission; clients must not retry.
	ErrAttemptGone = newError(KindNotFound, "attempt not found or has expired")
	// ErrAttemptExpired is returned for a submission with no answers after the time limit.
	ErrAttemptExpired = newError(KindValidation, "quiz time limit exceeded and no answers were submitted")
	// ErrAttemptCompleted is returned when submitting a frozen attempt.
	ErrAttemptCompleted = newError(KindConflict, "attempt already completed")
	// ErrActiveAttemptExists is returned by stores when a second active attempt would be created.
	ErrActiveAttemptExists = newError(KindConflict, "an attempt is already in progress for this quiz")
	// ErrNotAttemptOwner is returned when a user touches another user's attempt.
	ErrNotAttemptOwner = newError(KindForbidden, "not authorized to access this attempt")
	// ErrNotQuizOwner is returned for quiz-level operations by non-owners.
	ErrNotQuizOwner = newError(KindForbidden, "not authorized to manage this quiz")
	// ErrAnswersRequired is returned when a submission omits the answers array.
	ErrAnswersRequired = newError(KindValidation, "answers array is required")
)
