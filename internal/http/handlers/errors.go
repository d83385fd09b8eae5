// Package handlers defines the HTTP-layer error codes used across all API
// endpoints and the translation of service errors into them.
//
// Codes are lowercase snake_case and stable: clients branch on them, not on
// messages. Generic codes mirror HTTP status semantics; the domain-specific
// ones name the failure kinds of the matching core.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "directory_unavailable",
//	  "message": "profile directory unavailable"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-mentor-match/internal/repo"
	"github.com/tbourn/go-mentor-match/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeTimeout          = "timeout"

	// Domain-specific:
	ErrCodeDirectoryUnavailable = "directory_unavailable"
	ErrCodeSwipeFailed          = "swipe_failed"
	ErrCodeMatchFailed          = "match_failed"
	ErrCodeBootstrapFailed      = "bootstrap_failed"
	ErrCodeSendFailed           = "send_failed"
	ErrCodeListFailed           = "list_failed"
)

// statusFor maps a service error to (status, code, message). Messages of
// 5xx responses are the failure kind only; the wrapped store error goes to
// the logs, never to the client.
func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, services.ErrMissingActor),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidDirection),
		errors.Is(err, services.ErrSelfSwipe),
		errors.Is(err, services.ErrInvalidParticipants),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrTooLong):
		return http.StatusBadRequest, ErrCodeBadRequest, err.Error()

	case errors.Is(err, services.ErrProfileNotFound):
		return http.StatusNotFound, ErrCodeNotFound, services.ErrProfileNotFound.Error()
	case errors.Is(err, services.ErrConversationNotFound):
		return http.StatusNotFound, ErrCodeNotFound, services.ErrConversationNotFound.Error()
	case errors.Is(err, services.ErrNotParticipant):
		return http.StatusForbidden, ErrCodeForbidden, services.ErrNotParticipant.Error()
	case errors.Is(err, repo.ErrPermissionDenied):
		return http.StatusForbidden, ErrCodeForbidden, "permission denied"
	case errors.Is(err, services.ErrProfileExists):
		return http.StatusConflict, ErrCodeConflict, services.ErrProfileExists.Error()

	case errors.Is(err, services.ErrDirectoryUnavailable):
		return http.StatusServiceUnavailable, ErrCodeDirectoryUnavailable, services.ErrDirectoryUnavailable.Error()
	case errors.Is(err, services.ErrSwipeRecordingFailed):
		return http.StatusInternalServerError, ErrCodeSwipeFailed, services.ErrSwipeRecordingFailed.Error()
	case errors.Is(err, services.ErrMatchPersistenceFailed):
		return http.StatusInternalServerError, ErrCodeMatchFailed, services.ErrMatchPersistenceFailed.Error()
	case errors.Is(err, services.ErrConversationBootstrapFailed):
		return http.StatusInternalServerError, ErrCodeBootstrapFailed, services.ErrConversationBootstrapFailed.Error()

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout, "request timed out"
	}
	return http.StatusInternalServerError, ErrCodeInternal, "internal server error"
}

// failErr records err on the context (so the access log carries it) and
// writes the mapped error envelope. fallbackCode replaces the generic
// internal_error code for unclassified failures.
func failErr(c *gin.Context, err error, fallbackCode string) {
	status, code, msg := statusFor(err)
	if code == ErrCodeInternal && fallbackCode != "" {
		code = fallbackCode
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	fail(c, status, code, msg)
}
