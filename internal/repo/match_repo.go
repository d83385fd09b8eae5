// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for matches.
//
// Matches are written with create-if-absent semantics: the primary key is the
// deterministic {mentor}_{mentee} pair, and a second writer for the same pair
// is a no-op rather than an error. This keeps concurrent mutual right swipes
// from producing duplicates.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-mentor-match/internal/domain"
)

// CreateMatchIfAbsent inserts m unless a match with the same id exists.
// created reports whether this call wrote the row.
func CreateMatchIfAbsent(ctx context.Context, db *gorm.DB, m *domain.Match) (created bool, err error) {
	if m.ID == "" {
		m.ID = domain.MatchKey(m.MentorID, m.MenteeID)
	}
	if m.Status == "" {
		m.Status = domain.MatchStatusActive
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetMatch fetches a match by id, or ErrNotFound.
func GetMatch(ctx context.Context, db *gorm.DB, id string) (*domain.Match, error) {
	var m domain.Match
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMatchesForUser returns every match where userID is mentor or mentee,
// newest first.
func ListMatchesForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Match, error) {
	var out []domain.Match
	err := db.WithContext(ctx).
		Where("mentor_id = ? OR mentee_id = ?", userID, userID).
		Order("created_at DESC, id ASC").
		Find(&out).Error
	return out, err
}
