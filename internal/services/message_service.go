// Package services – MessageService
//
// MessageService owns the lifecycle of conversation messages. It validates
// text, checks that the conversation exists and that the sender takes part in
// it, and appends the message together with the conversation's last-message
// summary in a single transaction. Committed sends are published to the
// realtime broker so live views refresh.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include conversation/sender identifiers and pagination parameters.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/realtime"
	"github.com/tbourn/go-mentor-match/internal/repo"
	"github.com/tbourn/go-mentor-match/internal/sysutil"
	"github.com/tbourn/go-mentor-match/internal/utils"
)

// MessageService coordinates message persistence, listing and live views.
type MessageService struct {
	DB     *gorm.DB
	Broker *realtime.Broker

	// MaxTextRunes caps message length; 0 disables the check.
	MaxTextRunes int

	// Now is the clock used for SentAt; defaults to time.Now.
	Now func() time.Time
}

func (s *MessageService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Send appends a message from sender to conversationID and updates the
// conversation's last-message fields. The message starts unread.
func (s *MessageService) Send(ctx context.Context, conversationID string, sender Participant, text string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("sender.id", sender.ID),
		),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxTextRunes > 0 && utf8.RuneCountInString(text) > s.MaxTextRunes {
		return nil, ErrTooLong
	}

	var (
		msg  *domain.Message
		conv *domain.Conversation
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := repo.GetConversation(ctx, tx, conversationID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		if !c.HasParticipant(sender.ID) {
			return ErrNotParticipant
		}

		name := sender.DisplayName
		if name == "" {
			name = sysutil.FirstNonEmpty(c.ParticipantNames[sender.ID], "User")
		}
		m := &domain.Message{
			ConversationID:    conversationID,
			SenderID:          sender.ID,
			SenderDisplayName: name,
			SenderAvatarURL:   sysutil.FirstNonEmpty(sender.AvatarURL, c.ParticipantAvatars[sender.ID]),
			Text:              text,
			SentAt:            s.now(),
		}
		if err := repo.CreateMessage(ctx, tx, m); err != nil {
			return err
		}
		if err := repo.TouchConversation(ctx, tx, conversationID, text, sender.ID, m.SentAt); err != nil {
			return err
		}
		msg, conv = m, c
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	messagesSent.Inc()
	topics := []string{realtime.ConversationTopic(conversationID)}
	for _, p := range conv.Participants {
		topics = append(topics, realtime.UserConversationsTopic(p))
	}
	s.Broker.Publish(topics...)
	return msg, nil
}

// List returns every message of a conversation in send order.
func (s *MessageService) List(ctx context.Context, conversationID string) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	if err := s.ensureConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return repo.ListMessages(ctx, s.DB, conversationID, 0)
}

// ListPage returns one page of a conversation's messages in send order plus
// the total message count.
func (s *MessageService) ListPage(ctx context.Context, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	pg := utils.Page{Number: max(page, 1), Size: pageSize}
	if pg.Size <= 0 {
		pg.Size = 50
	}

	if err := s.ensureConversation(ctx, conversationID); err != nil {
		return nil, 0, err
	}
	total, err := repo.CountMessages(ctx, s.DB, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, conversationID, pg.Offset(), pg.Size)
	return items, total, err
}

// Subscribe delivers the full ordered message list of conversationID to
// onUpdate now and after every new message, until ctx is done or the
// returned cancel func is called. onUpdate runs on a dedicated goroutine
// and must not block for long.
func (s *MessageService) Subscribe(ctx context.Context, conversationID string, onUpdate func([]domain.Message)) (cancel func(), err error) {
	if err := s.ensureConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	load := func(ctx context.Context) ([]domain.Message, error) {
		return repo.ListMessages(ctx, s.DB, conversationID, 0)
	}
	return realtime.Watch(ctx, s.Broker, realtime.ConversationTopic(conversationID), load, onUpdate), nil
}

func (s *MessageService) ensureConversation(ctx context.Context, conversationID string) error {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Conversation{}).Where("id = ?", conversationID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrConversationNotFound
	}
	return nil
}
