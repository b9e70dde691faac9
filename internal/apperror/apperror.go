// Package apperror defines the application's domain errors.
//
// Services return these instead of raw database or library errors so that the
// HTTP layer can map them to status codes with errors.Is, and so that every
// error carries enough context (ids, counts, the offending field) to render a
// precise user-facing message without the caller re-deriving it.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors. Each *AppError wraps exactly one of these; callers check
// which with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// Collection invariant violations. All are conflicts in the HTTP sense
	// (409) but have their own sentinels so tests and callers can tell them
	// apart without string matching.
	ErrDuplicateName      = errors.New("duplicate collection name")
	ErrCannotUnsetDefault = errors.New("cannot unset the default flag directly")
	ErrLastCollection     = errors.New("cannot unset default on the only collection")
	ErrDefaultUndeletable = errors.New("default collection cannot be deleted")
	ErrNonEmptyCollection = errors.New("collection still has cards")

	// ErrStore marks a failure in the underlying persistence layer. The
	// original cause is always wrapped alongside it.
	ErrStore = errors.New("store error")

	// ErrPartialImport marks a restore that was aborted part-way through.
	// The *AppError carrying it holds the partial counts.
	ErrPartialImport = errors.New("import aborted part-way")
)

// AppError is the concrete error type services return.
type AppError struct {
	Err     error  // sentinel (one of the vars above)
	Message string // human-readable error message
	Field   string // optional: field causing a validation error
	Count   int    // optional: e.g. remaining card count on NonEmptyCollection
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// DuplicateName reports a collection name collision within one user's
// collections. Names are compared case-sensitively.
func DuplicateName(name string) *AppError {
	return &AppError{
		Err:     ErrDuplicateName,
		Message: fmt.Sprintf("a collection named %q already exists", name),
		Field:   "name",
	}
}

// CannotUnsetDefault rejects an update that flips isDefault from true to
// false. The compensating promotion only happens through UnsetDefault.
func CannotUnsetDefault(id string) *AppError {
	return &AppError{
		Err:     ErrCannotUnsetDefault,
		Message: fmt.Sprintf("collection %s is the default; promote another collection instead of unsetting the flag", id),
		Field:   "isDefault",
	}
}

// LastCollection rejects UnsetDefault when the user owns only one collection,
// since there is nothing to promote in its place.
func LastCollection(id string) *AppError {
	return &AppError{
		Err:     ErrLastCollection,
		Message: fmt.Sprintf("collection %s is the only collection; the default flag cannot move anywhere", id),
	}
}

// DefaultUndeletable rejects deleting the default collection, regardless of
// whether it holds any cards.
func DefaultUndeletable(id string) *AppError {
	return &AppError{
		Err:     ErrDefaultUndeletable,
		Message: fmt.Sprintf("collection %s is the default collection and cannot be deleted", id),
	}
}

// NonEmptyCollection rejects deleting a collection that cards still reference.
// Count reports how many, so the UI can say "move these 3 cards first".
func NonEmptyCollection(id string, count int) *AppError {
	return &AppError{
		Err:     ErrNonEmptyCollection,
		Message: fmt.Sprintf("collection %s still contains %d card(s); move or delete them first", id, count),
		Count:   count,
	}
}

// Store wraps an underlying persistence failure with context about the
// operation that hit it.
func Store(op string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrStore, cause),
		Message: fmt.Sprintf("storage failure during %s: %v", op, cause),
	}
}

// PartialImport reports a restore aborted mid-loop. Imported/skipped counts
// live on the restore result the service returns alongside this error; the
// message summarises them for logs and API clients.
func PartialImport(imported, skipped int, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrPartialImport, cause),
		Message: fmt.Sprintf("restore aborted after importing %d and skipping %d card(s): %v", imported, skipped, cause),
		Count:   imported,
	}
}
