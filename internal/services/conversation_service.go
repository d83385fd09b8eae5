// Package services – ConversationService
//
// ConversationService manages 1:1 conversations. A conversation's id is the
// sorted pair of participant ids, so "the conversation between A and B" has
// exactly one possible identity. Creation is create-if-absent at the storage
// level, which makes EnsureConversation safe under concurrent callers: only
// one of them observes created == true.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/realtime"
	"github.com/tbourn/go-mentor-match/internal/repo"
	"github.com/tbourn/go-mentor-match/internal/sysutil"
)

// Participant identifies one side of a conversation together with the
// presentation fields snapshotted into it.
type Participant struct {
	ID          string
	DisplayName string
	AvatarURL   string
}

// ParticipantFromUser builds a Participant from u, using fallbackName when
// u has no display name.
func ParticipantFromUser(u *domain.User, fallbackName string) Participant {
	return Participant{
		ID:          u.ID,
		DisplayName: sysutil.FirstNonEmpty(u.DisplayName, fallbackName),
		AvatarURL:   u.AvatarURL,
	}
}

// ConversationService creates, lists and watches conversations. Message
// sends are delegated to Messages.
type ConversationService struct {
	DB       *gorm.DB
	Broker   *realtime.Broker
	Messages *MessageService

	Now func() time.Time
}

func (s *ConversationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// EnsureConversation returns the id of the conversation between a and b,
// creating it with a snapshot of both participants' names and avatars if it
// does not exist yet. created is true only for the call that wrote it; an
// existing conversation is never modified.
func (s *ConversationService) EnsureConversation(ctx context.Context, a, b Participant) (id string, created bool, err error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "EnsureConversation",
		trace.WithAttributes(
			attribute.String("participant.a", a.ID),
			attribute.String("participant.b", b.ID),
		),
	)
	defer span.End()

	if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(b.ID) == "" || a.ID == b.ID {
		return "", false, ErrInvalidParticipants
	}

	id = domain.ConversationKey(a.ID, b.ID)
	first, second := a.ID, b.ID
	if second < first {
		first, second = second, first
	}
	now := s.now()
	c := &domain.Conversation{
		ID:                 id,
		ParticipantA:       first,
		ParticipantB:       second,
		Participants:       []string{a.ID, b.ID},
		ParticipantNames:   map[string]string{a.ID: a.DisplayName, b.ID: b.DisplayName},
		ParticipantAvatars: map[string]string{a.ID: a.AvatarURL, b.ID: b.AvatarURL},
		LastMessageAt:      now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	created, err = repo.CreateConversationIfAbsent(ctx, s.DB, c)
	if err != nil {
		span.RecordError(err)
		return "", false, err
	}
	if created {
		s.Broker.Publish(realtime.UserConversationsTopic(a.ID), realtime.UserConversationsTopic(b.ID))
	}
	span.SetAttributes(attribute.Bool("conversation.created", created))
	return id, created, nil
}

// SendIntroMessage posts text into conversationID on behalf of from.
func (s *ConversationService) SendIntroMessage(ctx context.Context, conversationID string, from Participant, text string) error {
	_, err := s.Messages.Send(ctx, conversationID, from, text)
	return err
}

// GetOrCreate returns the direct conversation between actorID and otherID,
// creating it lazily (without an intro message) when needed. Both users
// must have profiles.
func (s *ConversationService) GetOrCreate(ctx context.Context, actorID, otherID string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "GetOrCreate",
		trace.WithAttributes(
			attribute.String("user.id", actorID),
			attribute.String("other.id", otherID),
		),
	)
	defer span.End()

	if actorID == "" {
		return nil, ErrMissingActor
	}
	if otherID == "" || actorID == otherID {
		return nil, ErrInvalidParticipants
	}

	id := domain.ConversationKey(actorID, otherID)
	if c, err := repo.GetConversation(ctx, s.DB, id); err == nil {
		return c, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	me, err := s.user(ctx, actorID)
	if err != nil {
		return nil, err
	}
	other, err := s.user(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.EnsureConversation(ctx, ParticipantFromUser(me, "User"), ParticipantFromUser(other, "User")); err != nil {
		return nil, err
	}
	return repo.GetConversation(ctx, s.DB, id)
}

// Get returns conversation id if userID takes part in it.
func (s *ConversationService) Get(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	c, err := repo.GetConversation(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return c, nil
}

// ListForUser returns userID's conversations, most recent activity first.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListForUser",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if userID == "" {
		return nil, ErrMissingActor
	}
	return repo.ListConversationsForUser(ctx, s.DB, userID)
}

// Subscribe delivers userID's conversation list (most recent first) to
// onUpdate now and whenever one of them is created or receives a message,
// until ctx is done or cancel is called.
func (s *ConversationService) Subscribe(ctx context.Context, userID string, onUpdate func([]domain.Conversation)) (cancel func(), err error) {
	if userID == "" {
		return nil, ErrMissingActor
	}
	load := func(ctx context.Context) ([]domain.Conversation, error) {
		return repo.ListConversationsForUser(ctx, s.DB, userID)
	}
	return realtime.Watch(ctx, s.Broker, realtime.UserConversationsTopic(userID), load, onUpdate), nil
}

func (s *ConversationService) user(ctx context.Context, id string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return u, err
}
