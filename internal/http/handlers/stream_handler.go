// Realtime websocket handlers.
//
//   - GET /conversations/{id}/stream   (message list of one conversation)
//   - GET /conversations/stream        (caller's conversation list)
//
// Each frame is a full snapshot, sent once on connect and again after every
// change. A slow client only ever receives the latest snapshot; stale ones
// are dropped. Clients never send data frames; reads only serve close and
// pong handling.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/http/middleware"
)

// StreamOptions configures the websocket endpoints.
type StreamOptions struct {
	// AllowedOrigins restricts browser origins; empty allows any.
	AllowedOrigins []string
	WriteTimeout   time.Duration // default 10s
	PingInterval   time.Duration // default 30s
}

// MessagesFrame is pushed on /conversations/{id}/stream.
type MessagesFrame struct {
	Type     string           `json:"type" example:"messages"`
	Messages []domain.Message `json:"messages"`
}

// ConversationsFrame is pushed on /conversations/stream.
type ConversationsFrame struct {
	Type          string             `json:"type" example:"conversations"`
	Conversations []ConversationView `json:"conversations"`
}

type streamer struct {
	upgrader  websocket.Upgrader
	writeWait time.Duration
	pingEvery time.Duration
	pongWait  time.Duration
}

func newStreamer(o StreamOptions) streamer {
	s := streamer{writeWait: o.WriteTimeout, pingEvery: o.PingInterval}
	if s.writeWait <= 0 {
		s.writeWait = 10 * time.Second
	}
	if s.pingEvery <= 0 {
		s.pingEvery = 30 * time.Second
	}
	s.pongWait = s.pingEvery * 2

	allowed := make(map[string]struct{}, len(o.AllowedOrigins))
	for _, origin := range o.AllowedOrigins {
		allowed[origin] = struct{}{}
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(allowed) == 0 || origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
	return s
}

// subscribeFunc starts a live view that calls push with each snapshot.
type subscribeFunc func(ctx context.Context, push func(any)) (stop func(), err error)

// serve upgrades the request and forwards snapshots until either side
// goes away.
func (s streamer) serve(c *gin.Context, kind string, subscribe subscribeFunc) {
	lg := middleware.LoggerFrom(c)
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the client.
		lg.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	defer middleware.StreamOpened(kind)()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	frames := make(chan any, 1)
	push := func(v any) {
		select {
		case <-frames:
		default:
		}
		select {
		case frames <- v:
		default:
		}
	}

	stop, err := subscribe(ctx, push)
	if err != nil {
		lg.Warn().Err(err).Str("stream", kind).Msg("subscribe failed")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(s.writeWait))
		return
	}
	defer stop()

	go s.readPump(conn, cancel)

	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.writeWait))
			return
		case v := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := conn.WriteJSON(v); err != nil {
				lg.Debug().Err(err).Str("stream", kind).Msg("stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and cancels the stream when the peer
// closes or stops answering pings.
func (s streamer) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// StreamMessages godoc
// @ID          streamMessages
// @Summary     Live message list (websocket)
// @Description Upgrades to a websocket that pushes a MessagesFrame with the full ordered message list on connect and after each new message.
// @Description Browsers may pass the bearer token as the access_token query parameter.
// @Tags        Realtime
// @Security    BearerAuth
// @Param       id  path  string  true  "Conversation ID"
// @Success     101  {object}  handlers.MessagesFrame
// @Failure     403  {object}  handlers.ErrorResponse  "Not a participant"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Router      /conversations/{id}/stream [get]
func (h *Handlers) StreamMessages(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	convID := c.Param("id")
	if _, err := h.convs.Get(c.Request.Context(), convID, uid); err != nil {
		failErr(c, err, "")
		return
	}

	h.stream.serve(c, "messages", func(ctx context.Context, push func(any)) (func(), error) {
		return h.msgs.Subscribe(ctx, convID, func(ms []domain.Message) {
			if ms == nil {
				ms = []domain.Message{}
			}
			push(MessagesFrame{Type: "messages", Messages: ms})
		})
	})
}

// StreamConversations godoc
// @ID          streamConversations
// @Summary     Live conversation list (websocket)
// @Description Upgrades to a websocket that pushes a ConversationsFrame on connect and whenever one of the caller's conversations is created or receives a message.
// @Tags        Realtime
// @Security    BearerAuth
// @Success     101  {object}  handlers.ConversationsFrame
// @Router      /conversations/stream [get]
func (h *Handlers) StreamConversations(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	h.stream.serve(c, "conversations", func(ctx context.Context, push func(any)) (func(), error) {
		return h.convs.Subscribe(ctx, uid, func(cs []domain.Conversation) {
			push(ConversationsFrame{Type: "conversations", Conversations: viewsFor(cs, uid)})
		})
	})
}
