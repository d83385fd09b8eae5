// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-match/internal/domain"
)

// ConversationsStats returns the number of conversations userID takes part in
// and the latest UpdatedAt among them (nil when there are none).
func ConversationsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("participant_a = ? OR participant_b = ?", userID, userID)
	return countAndLatest(q, "updated_at")
}

// MessagesStats returns the number of messages in a conversation and the
// latest SentAt among them (nil when there are none).
func MessagesStats(ctx context.Context, db *gorm.DB, conversationID string) (count int64, maxSentAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("conversation_id = ?", conversationID)
	return countAndLatest(q, "sent_at")
}

func countAndLatest(q *gorm.DB, column string) (int64, *time.Time, error) {
	var count int64
	if err := q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	// Order+Limit instead of MAX(): SQLite returns MAX() of a datetime as TEXT.
	var row struct {
		UpdatedAt time.Time
		SentAt    time.Time
	}
	if err := q.Session(&gorm.Session{}).Select(column).Order(column + " DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	latest := row.UpdatedAt
	if column == "sent_at" {
		latest = row.SentAt
	}
	return count, &latest, nil
}
