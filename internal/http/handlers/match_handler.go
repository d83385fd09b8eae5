// Discovery, swipe and match HTTP handlers.
//
//   - GET  /discovery   (swipe deck for the caller)
//   - POST /swipes      (record a decision; returns the match on mutual right)
//   - GET  /matches     (caller's matches, newest first)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/http/middleware"
	"github.com/tbourn/go-mentor-match/internal/services"
)

// DiscoveryResponse is the swipe deck.
type DiscoveryResponse struct {
	Candidates []services.Candidate `json:"candidates"`
}

// SwipeRequest is a swipe decision on target_id.
type SwipeRequest struct {
	TargetID  string `json:"target_id" binding:"required,max=128" example:"u_42"`
	Direction string `json:"direction" binding:"required,oneof=left right" example:"right"`
}

// SwipeResponse carries the match created or confirmed by the swipe, if any.
type SwipeResponse struct {
	Matched bool          `json:"matched"`
	Match   *domain.Match `json:"match,omitempty"`
}

// ListMatchesResponse lists the caller's matches.
type ListMatchesResponse struct {
	Matches []domain.Match `json:"matches"`
}

// Discover godoc
// @ID          discover
// @Summary     Swipe deck
// @Description Profiles of the opposite role, excluding the caller and people they already matched with (or passed on).
// @Description The caller's role comes from the token, or from their stored profile when the token has none.
// @Tags        Discovery
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.DiscoveryResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Directory unavailable"
// @Router      /discovery [get]
func (h *Handlers) Discover(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	ctx := c.Request.Context()

	role := middleware.UserRole(c)
	if role == "" {
		p, err := h.profiles.Get(ctx, uid)
		if err != nil {
			if errors.Is(err, services.ErrProfileNotFound) {
				fail(c, http.StatusBadRequest, ErrCodeBadRequest, "register a profile before discovering")
				return
			}
			failErr(c, err, ErrCodeDirectoryUnavailable)
			return
		}
		role = p.Role
	}

	cands, err := h.discovery.Candidates(ctx, uid, role)
	if err != nil {
		failErr(c, err, ErrCodeDirectoryUnavailable)
		return
	}
	if cands == nil {
		cands = []services.Candidate{}
	}
	ok(c, http.StatusOK, DiscoveryResponse{Candidates: cands})
}

// Swipe godoc
// @ID          swipe
// @Summary     Record a swipe
// @Description Stores the caller's latest decision on target_id. A right swipe answering a right swipe creates the match and its conversation.
// @Tags        Matches
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.SwipeRequest  true  "Decision"
// @Success     200   {object}  handlers.SwipeResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     429   {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500   {object}  handlers.ErrorResponse  "Swipe or match persistence failed"
// @Router      /swipes [post]
func (h *Handlers) Swipe(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	var req SwipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "target_id and direction (left|right) required")
		return
	}

	m, err := h.matches.RecordSwipe(c.Request.Context(), uid, strings.TrimSpace(req.TargetID), domain.Direction(req.Direction))
	if err != nil {
		failErr(c, err, ErrCodeSwipeFailed)
		return
	}
	ok(c, http.StatusOK, SwipeResponse{Matched: m != nil, Match: m})
}

// ListMatches godoc
// @ID          listMatches
// @Summary     List matches
// @Tags        Matches
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ListMatchesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /matches [get]
func (h *Handlers) ListMatches(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	items, err := h.matches.ListMatches(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.Match{}
	}
	ok(c, http.StatusOK, ListMatchesResponse{Matches: items})
}
