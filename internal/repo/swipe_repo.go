// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the swipe ledger: one row per ordered
// (actor, target) pair holding the latest decision.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-mentor-match/internal/domain"
)

// UpsertSwipe writes d under its pair key, replacing any earlier decision by
// the same actor about the same target (last writer wins). d.ID is derived
// from the pair if empty.
func UpsertSwipe(ctx context.Context, db *gorm.DB, d *domain.SwipeDecision) error {
	if d.ID == "" {
		d.ID = domain.SwipeKey(d.ActorID, d.TargetID)
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"direction", "decided_at"}),
		}).
		Create(d).Error
}

// GetSwipe returns actorID's decision about targetID, or ErrNotFound.
func GetSwipe(ctx context.Context, db *gorm.DB, actorID, targetID string) (*domain.SwipeDecision, error) {
	var d domain.SwipeDecision
	err := db.WithContext(ctx).
		Where("id = ?", domain.SwipeKey(actorID, targetID)).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListSwipedTargets returns the ids actorID has swiped on in direction dir.
func ListSwipedTargets(ctx context.Context, db *gorm.DB, actorID string, dir domain.Direction) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.SwipeDecision{}).
		Where("actor_id = ? AND direction = ?", actorID, dir).
		Pluck("target_id", &ids).Error
	return ids, err
}
