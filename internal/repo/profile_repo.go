// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for user profiles:
// the users table plus the per-role detail tables (mentors, mentees).
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
//
// Error semantics:
//   - Missing users return ErrNotFound (gorm.ErrRecordNotFound).
//   - A duplicate registration returns ErrDuplicate.
//   - Other DB errors are propagated unchanged.
//
// Functions:
//
//   - CreateProfile(ctx, db, user, mentor, mentee) -> error
//     Inserts the user and exactly one role detail row in a transaction.
//
//   - GetUser(ctx, db, id) -> *domain.User, error
//
//   - GetProfile(ctx, db, id) -> *domain.Profile, error
//     Joins the user with their role details (details may be empty).
//
//   - ListProfilesByRole(ctx, db, role) -> []domain.Profile, error
//     All users of role with details attached, ordered by id.
//
//   - UpdateUserFields(ctx, db, id, fields) -> error
//     Partial update from a column map; ErrNotFound when no row matched.
//
//   - UpdateDetailFields(ctx, db, role, id, details, rate, columns) -> error
//     Partial update of the listed detail columns (upserting the row).
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-mentor-match/internal/domain"
)

// CreateProfile inserts u and the detail row matching u.Role. Exactly one of
// mentor/mentee is used; the other may be nil.
func CreateProfile(ctx context.Context, db *gorm.DB, u *domain.User, mentor *domain.MentorDetails, mentee *domain.MenteeDetails) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		switch u.Role {
		case domain.RoleMentor:
			if mentor == nil {
				mentor = &domain.MentorDetails{}
			}
			mentor.UserID = u.ID
			return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(mentor).Error
		case domain.RoleMentee:
			if mentee == nil {
				mentee = &domain.MenteeDetails{}
			}
			mentee.UserID = u.ID
			return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(mentee).Error
		}
		return nil
	})
}

// GetUser fetches a single user by id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetProfile returns the combined profile of id. Missing detail rows are not
// an error; the profile is returned with empty details.
func GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	u, err := GetUser(ctx, db, id)
	if err != nil {
		return nil, err
	}
	p := &domain.Profile{User: *u}
	switch u.Role {
	case domain.RoleMentor:
		var d domain.MentorDetails
		err = db.WithContext(ctx).Where("user_id = ?", id).First(&d).Error
		if err == nil {
			p.Details, p.HourlyRate = d.RoleDetails, d.HourlyRate
		}
	case domain.RoleMentee:
		var d domain.MenteeDetails
		err = db.WithContext(ctx).Where("user_id = ?", id).First(&d).Error
		if err == nil {
			p.Details = d.RoleDetails
		}
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	p.Details.UserID = id
	return p, nil
}

// ListProfilesByRole returns every user of the given role with their details,
// ordered by id. It issues one query for users and one for details.
func ListProfilesByRole(ctx context.Context, db *gorm.DB, role domain.Role) ([]domain.Profile, error) {
	var users []domain.User
	if err := db.WithContext(ctx).
		Where("role = ?", role).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return []domain.Profile{}, nil
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	details := make(map[string]domain.RoleDetails, len(users))
	rates := make(map[string]*float64)
	switch role {
	case domain.RoleMentor:
		var rows []domain.MentorDetails
		if err := db.WithContext(ctx).Where("user_id IN ?", ids).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			details[r.UserID] = r.RoleDetails
			rates[r.UserID] = r.HourlyRate
		}
	case domain.RoleMentee:
		var rows []domain.MenteeDetails
		if err := db.WithContext(ctx).Where("user_id IN ?", ids).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			details[r.UserID] = r.RoleDetails
		}
	}

	out := make([]domain.Profile, len(users))
	for i, u := range users {
		d := details[u.ID]
		d.UserID = u.ID
		out[i] = domain.Profile{User: u, Details: d, HourlyRate: rates[u.ID]}
	}
	return out, nil
}

// UpdateUserFields applies a partial update to the users row of id.
// An empty map is a no-op.
func UpdateUserFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDetailFields writes the named columns of the role detail row of id,
// creating the row first if it is missing. Values are taken from d (and
// hourlyRate for mentors); columns not listed are left untouched.
func UpdateDetailFields(ctx context.Context, db *gorm.DB, role domain.Role, id string, d domain.RoleDetails, hourlyRate *float64, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	d.UserID = id
	d.UpdatedAt = time.Now().UTC()
	columns = append(columns, "updated_at")

	var empty, filled any
	switch role {
	case domain.RoleMentor:
		empty = &domain.MentorDetails{RoleDetails: domain.RoleDetails{UserID: id}}
		filled = &domain.MentorDetails{RoleDetails: d, HourlyRate: hourlyRate}
	case domain.RoleMentee:
		empty = &domain.MenteeDetails{RoleDetails: domain.RoleDetails{UserID: id}}
		filled = &domain.MenteeDetails{RoleDetails: d}
	default:
		return ErrNotFound
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(empty).Error; err != nil {
			return err
		}
		return tx.Model(filled).Select(columns).Updates(filled).Error
	})
}
