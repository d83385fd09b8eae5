// Package services implements the business logic of the matching core:
// discovery, swipes, match detection, conversation bootstrap, messaging and
// profiles. This file centralizes the service-level error values so they can
// be returned consistently and checked with errors.Is by callers.
//
// Infrastructure failures are reported as one of the four failure kinds
// below with the underlying store error wrapped alongside, so both
// errors.Is(err, ErrMatchPersistenceFailed) and errors.Is(err, <cause>) hold.
// Translation into HTTP status codes happens in the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Failure kinds.
var (
	// ErrDirectoryUnavailable means the profile or match list could not be
	// read, so discovery cannot produce a correctly filtered result.
	ErrDirectoryUnavailable = errors.New("profile directory unavailable")

	// ErrSwipeRecordingFailed means the swipe decision was not persisted.
	ErrSwipeRecordingFailed = errors.New("swipe recording failed")

	// ErrMatchPersistenceFailed means a mutual right swipe was detected but
	// the match could not be written.
	ErrMatchPersistenceFailed = errors.New("match persistence failed")

	// ErrConversationBootstrapFailed means the match exists but its
	// conversation or intro message could not be created.
	ErrConversationBootstrapFailed = errors.New("conversation bootstrap failed")
)

// Validation and lookup errors.
var (
	ErrMissingActor        = errors.New("actor id is required")
	ErrInvalidRole         = errors.New("role must be mentor or mentee")
	ErrInvalidDirection    = errors.New("direction must be left or right")
	ErrSelfSwipe           = errors.New("cannot swipe on yourself")
	ErrInvalidParticipants = errors.New("a conversation needs two distinct participants")

	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("user is not a participant of this conversation")
	ErrEmptyMessage         = errors.New("message text is empty")
	ErrTooLong              = errors.New("message text too long")
)

// fail wraps cause under kind.
func fail(kind, cause error) error {
	return fmt.Errorf("%w: %w", kind, cause)
}
