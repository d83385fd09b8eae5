// Message HTTP handlers.
//
//   - POST /conversations/{id}/messages   (send a message as the caller)
//   - GET  /conversations/{id}/messages   (paginated history, ETag support)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// send exists for (user, conversation, key), the handler returns that stored
// message with `Idempotency-Replayed: true` instead of sending it again.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/http/middleware"
	"github.com/tbourn/go-mentor-match/internal/repo"
	"github.com/tbourn/go-mentor-match/internal/services"
	"github.com/tbourn/go-mentor-match/internal/utils"
)

// SendMessageRequest is the payload of a message send.
type SendMessageRequest struct {
	// Text is normalized (line endings, blank-line runs) before sending.
	Text string `json:"text" binding:"required" example:"Thanks for connecting! When are you free this week?"`
}

// SendMessageResponse wraps the stored message.
type SendMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse is one page of a conversation, oldest first.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeText converts CRLF/CR to LF, collapses blank-line runs and trims.
func sanitizeText(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a message
// @Description Appends a message from the caller and updates the conversation's last-message summary.
// @Description Supports idempotency via the Idempotency-Key header (same key → same message).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Key for safe retries (UUID recommended)"
// @Param       id               path    string  true   "Conversation ID"
// @Param       body             body    handlers.SendMessageRequest  true  "Message"
// @Success     201  {object}  handlers.SendMessageResponse  "Sent"
// @Success     200  {object}  handlers.SendMessageResponse  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations/{id}/messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	ctx := c.Request.Context()
	convID := c.Param("id")

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}
	text := sanitizeText(req.Text)
	if text == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}

	conv, err := h.convs.Get(ctx, convID, uid)
	if err != nil {
		failErr(c, err, "")
		return
	}

	idemKey, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey && middleware.IsReplay(c) && h.db != nil {
		if prev := h.replayed(c, uid, convID, idemKey); prev != nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, SendMessageResponse{Message: prev})
			return
		}
	}

	sender := services.Participant{
		ID:          uid,
		DisplayName: conv.ParticipantNames[uid],
		AvatarURL:   conv.ParticipantAvatars[uid],
	}
	m, err := h.msgs.Send(ctx, convID, sender, text)
	if err != nil {
		if errors.Is(err, services.ErrTooLong) && h.maxRunes > 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("text too long: max %d characters", h.maxRunes))
			return
		}
		failErr(c, err, ErrCodeSendFailed)
		return
	}

	if hasKey && h.db != nil {
		if _, err := repo.CreateIdempotency(ctx, h.db, uid, convID, idemKey, m.ID, http.StatusCreated, h.idemTTL); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("conversation_id", convID).Msg("idempotency record not stored")
		}
	}
	ok(c, http.StatusCreated, SendMessageResponse{Message: m})
}

// replayed loads the message stored for an idempotent retry, or nil.
func (h *Handlers) replayed(c *gin.Context, uid, convID, key string) *domain.Message {
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, h.db, uid, convID, key, time.Now().UTC())
	if err != nil || rec == nil {
		return nil
	}
	m, err := repo.GetMessage(ctx, h.db, rec.MessageID)
	if err != nil {
		return nil
	}
	return m
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a conversation
// @Description Returns a page of messages ordered by sent time (oldest first).
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       id             path    string  true   "Conversation ID"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ListMessagesResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	ctx := c.Request.Context()
	convID := c.Param("id")

	if _, err := h.convs.Get(ctx, convID, uid); err != nil {
		failErr(c, err, "")
		return
	}

	pg := utils.ParsePage(c.Query("page"), c.Query("page_size"))
	page, pageSize := pg.Number, pg.Size

	if h.db != nil {
		if count, latest, err := repo.MessagesStats(ctx, h.db, convID); err == nil {
			scope := fmt.Sprintf("messages:%s:%d:%d", convID, page, pageSize)
			if notModified(c, scope, count, latest) {
				return
			}
		}
	}

	items, total, err := h.msgs.ListPage(ctx, convID, page, pageSize)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}
