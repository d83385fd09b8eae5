// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// Functions:
//
//   - CreateConversationIfAbsent(ctx, db, c) -> (created bool, error)
//     Storage-level create-if-absent keyed on the symmetric conversation id.
//
//   - GetConversation(ctx, db, id) -> *domain.Conversation, error
//
//   - ListConversationsForUser(ctx, db, userID) -> []domain.Conversation, error
//     Conversations containing userID, most recent activity first.
//
//   - TouchConversation(ctx, db, id, text, sender, at) -> error
//     Updates the last-message summary. ErrNotFound if no such conversation.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-mentor-match/internal/domain"
)

// CreateConversationIfAbsent inserts c unless a conversation with the same id
// already exists. created reports whether this call wrote the row; the
// existing row is never modified.
func CreateConversationIfAbsent(ctx context.Context, db *gorm.DB, c *domain.Conversation) (created bool, err error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetConversation fetches a conversation by id, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversationsForUser returns conversations where userID is a
// participant, ordered by last activity descending.
func ListConversationsForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("last_message_at DESC, id ASC").
		Find(&out).Error
	return out, err
}

// TouchConversation records text as the latest message of conversation id.
func TouchConversation(ctx context.Context, db *gorm.DB, id, text, senderID string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_message":        text,
			"last_message_sender": senderID,
			"last_message_at":     at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
