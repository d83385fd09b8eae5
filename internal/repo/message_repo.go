package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-match/internal/domain"
)

// CreateMessage inserts m, assigning a UUIDv7 id and SentAt if unset.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id.String()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Omit("Conversation").Create(m).Error
}

// inConversation scopes a query to one conversation in delivery order:
// SentAt, then ID for messages stamped with the same instant.
func inConversation(ctx context.Context, db *gorm.DB, conversationID string) *gorm.DB {
	return db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID).
		Order("sent_at ASC, id ASC")
}

// ListMessages returns the conversation's messages in delivery order,
// at most limit of them when limit > 0.
func ListMessages(ctx context.Context, db *gorm.DB, conversationID string, limit int) ([]domain.Message, error) {
	q := inConversation(ctx, db, conversationID)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Message
	return out, q.Find(&out).Error
}

// ListMessagesPage returns limit messages after skipping offset.
func ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := inConversation(ctx, db, conversationID).Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).Scan(&total).Error
	return total, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
