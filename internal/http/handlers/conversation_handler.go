// Conversation HTTP handlers.
//
//   - GET  /conversations        (caller's conversations, ETag support)
//   - POST /conversations        (get or lazily create the direct conversation with a user)
//   - GET  /conversations/{id}   (one conversation the caller takes part in)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/repo"
)

// OpenConversationRequest names the other participant.
type OpenConversationRequest struct {
	UserID string `json:"user_id" binding:"required,max=128" example:"u_42"`
}

// ConversationView is a conversation as seen by one participant.
type ConversationView struct {
	domain.Conversation
	OtherUserID     string `json:"other_user_id"`
	OtherUserName   string `json:"other_user_name"`
	OtherUserAvatar string `json:"other_user_avatar"`
}

// ListConversationsResponse lists the caller's conversations.
type ListConversationsResponse struct {
	Conversations []ConversationView `json:"conversations"`
}

func viewFor(c domain.Conversation, uid string) ConversationView {
	v := ConversationView{Conversation: c}
	v.OtherUserID, v.OtherUserName, v.OtherUserAvatar, _ = c.OtherParticipant(uid)
	return v
}

func viewsFor(items []domain.Conversation, uid string) []ConversationView {
	out := make([]ConversationView, 0, len(items))
	for _, c := range items {
		out = append(out, viewFor(c, uid))
	}
	return out
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations
// @Description Conversations of the caller, most recent activity first. Supports weak ETag via If-None-Match.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ListConversationsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	ctx := c.Request.Context()

	if h.db != nil {
		if count, latest, err := repo.ConversationsStats(ctx, h.db, uid); err == nil {
			if notModified(c, "conversations:"+uid, count, latest) {
				return
			}
		}
	}

	items, err := h.convs.ListForUser(ctx, uid)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListConversationsResponse{Conversations: viewsFor(items, uid)})
}

// OpenConversation godoc
// @ID          openConversation
// @Summary     Open a direct conversation
// @Description Returns the conversation between the caller and user_id, creating it (without an intro message) if needed.
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.OpenConversationRequest  true  "Other participant"
// @Success     200   {object}  handlers.ConversationView
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404   {object}  handlers.ErrorResponse  "Profile not found"
// @Router      /conversations [post]
func (h *Handlers) OpenConversation(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	var req OpenConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id required")
		return
	}
	conv, err := h.convs.GetOrCreate(c.Request.Context(), uid, strings.TrimSpace(req.UserID))
	if err != nil {
		failErr(c, err, "")
		return
	}
	ok(c, http.StatusOK, viewFor(*conv, uid))
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Get a conversation
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Conversation ID"
// @Success     200  {object}  handlers.ConversationView
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /conversations/{id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	conv, err := h.convs.Get(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		failErr(c, err, "")
		return
	}
	ok(c, http.StatusOK, viewFor(*conv, uid))
}
