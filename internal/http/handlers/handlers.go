// Package handlers exposes the mentor-match API over HTTP.
//
// Handlers are transport-thin: they read the caller identity set by
// middleware.Authenticate, bind and validate input, call the application
// services through the narrow interfaces below and translate results and
// errors into responses.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/http/middleware"
	"github.com/tbourn/go-mentor-match/internal/services"
)

//
// Service contracts (context-aware)
//

// ProfileService is the profile directory.
type ProfileService interface {
	Register(ctx context.Context, in services.RegisterInput) (*domain.Profile, error)
	Get(ctx context.Context, id string) (*domain.Profile, error)
	Update(ctx context.Context, id string, in services.UpdateInput) (*domain.Profile, error)
	Completion(ctx context.Context, id string) (*services.Completion, error)
}

// DiscoveryService produces the swipe deck.
type DiscoveryService interface {
	Candidates(ctx context.Context, actorID string, actorRole domain.Role) ([]services.Candidate, error)
}

// MatchService records swipes and lists matches.
type MatchService interface {
	RecordSwipe(ctx context.Context, actorID, targetID string, dir domain.Direction) (*domain.Match, error)
	ListMatches(ctx context.Context, userID string) ([]domain.Match, error)
}

// ConversationService reads, lazily creates and watches conversations.
type ConversationService interface {
	GetOrCreate(ctx context.Context, actorID, otherID string) (*domain.Conversation, error)
	Get(ctx context.Context, id, userID string) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	Subscribe(ctx context.Context, userID string, onUpdate func([]domain.Conversation)) (cancel func(), err error)
}

// MessageService appends, pages and watches messages.
type MessageService interface {
	Send(ctx context.Context, conversationID string, sender services.Participant, text string) (*domain.Message, error)
	ListPage(ctx context.Context, conversationID string, page, pageSize int) ([]domain.Message, int64, error)
	Subscribe(ctx context.Context, conversationID string, onUpdate func([]domain.Message)) (cancel func(), err error)
}

//
// Handler wiring
//

// Deps are the collaborators of Handlers.
type Deps struct {
	Profiles      ProfileService
	Discovery     DiscoveryService
	Matches       MatchService
	Conversations ConversationService
	Messages      MessageService

	// DB backs ETags and idempotency records; nil disables both.
	DB             *gorm.DB
	IdempotencyTTL time.Duration
	// MaxMessageRunes is echoed in validation errors; the service enforces it.
	MaxMessageRunes int

	Stream StreamOptions
}

// Handlers groups the API endpoints.
type Handlers struct {
	profiles  ProfileService
	discovery DiscoveryService
	matches   MatchService
	convs     ConversationService
	msgs      MessageService

	db       *gorm.DB
	idemTTL  time.Duration
	maxRunes int
	stream   streamer
}

// New constructs Handlers from d.
func New(d Deps) *Handlers {
	ttl := d.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handlers{
		profiles:  d.Profiles,
		discovery: d.Discovery,
		matches:   d.Matches,
		convs:     d.Conversations,
		msgs:      d.Messages,
		db:        d.DB,
		idemTTL:   ttl,
		maxRunes:  d.MaxMessageRunes,
		stream:    newStreamer(d.Stream),
	}
}

// currentUser returns the authenticated caller or writes 401.
func currentUser(c *gin.Context) (string, bool) {
	uid := middleware.UserID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return "", false
	}
	return uid, true
}
