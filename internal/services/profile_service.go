// Package services – ProfileService
//
// ProfileService is the profile directory: registration of a user with their
// role-specific details, reads of the combined profile, partial updates and
// the profile-completion summary shown to users with sparse profiles.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/repo"
)

// DeckInvalidator drops every cached discovery deck.
type DeckInvalidator interface {
	InvalidateAll(ctx context.Context)
}

// RegisterInput is the payload of a registration. ID comes from the caller's
// identity, never from the request body.
type RegisterInput struct {
	ID           string
	Email        string
	DisplayName  string
	Role         domain.Role
	AvatarURL    string
	IsPublic     bool
	Bio          string
	Skills       []string
	Location     string
	Experience   string
	Education    string
	Languages    []string
	Availability string
	HourlyRate   *float64
}

// UpdateInput is a partial profile update; nil fields are left unchanged.
// Role and ID cannot be changed.
type UpdateInput struct {
	DisplayName  *string
	AvatarURL    *string
	IsPublic     *bool
	Bio          *string
	Skills       *[]string
	Location     *string
	Experience   *string
	Education    *string
	Languages    *[]string
	Availability *string
	HourlyRate   *float64
}

// Completion summarizes how much of a profile is filled in.
type Completion struct {
	Percent int      `json:"percent"`
	Missing []string `json:"missing"`
}

// ProfileService reads and writes profiles.
type ProfileService struct {
	DB    *gorm.DB
	Decks DeckInvalidator // optional
}

// Register creates the profile of in.ID. A second registration of the same
// id fails with ErrProfileExists.
func (s *ProfileService) Register(ctx context.Context, in RegisterInput) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Register",
		trace.WithAttributes(
			attribute.String("user.id", in.ID),
			attribute.String("user.role", string(in.Role)),
		),
	)
	defer span.End()

	if strings.TrimSpace(in.ID) == "" {
		return nil, ErrMissingActor
	}
	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}

	u := &domain.User{
		ID:          in.ID,
		Email:       strings.TrimSpace(in.Email),
		DisplayName: strings.TrimSpace(in.DisplayName),
		Role:        in.Role,
		AvatarURL:   strings.TrimSpace(in.AvatarURL),
		IsPublic:    in.IsPublic,
	}
	details := domain.RoleDetails{
		Bio:          strings.TrimSpace(in.Bio),
		Skills:       cleanList(in.Skills),
		Location:     strings.TrimSpace(in.Location),
		Experience:   strings.TrimSpace(in.Experience),
		Education:    strings.TrimSpace(in.Education),
		Languages:    cleanList(in.Languages),
		Availability: strings.TrimSpace(in.Availability),
	}

	var (
		mentor *domain.MentorDetails
		mentee *domain.MenteeDetails
	)
	if in.Role == domain.RoleMentor {
		mentor = &domain.MentorDetails{RoleDetails: details, HourlyRate: in.HourlyRate}
	} else {
		mentee = &domain.MenteeDetails{RoleDetails: details}
	}

	if err := repo.CreateProfile(ctx, s.DB, u, mentor, mentee); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrProfileExists
		}
		span.RecordError(err)
		return nil, err
	}
	if s.Decks != nil {
		s.Decks.InvalidateAll(ctx)
	}
	return s.Get(ctx, in.ID)
}

// Get returns the combined profile of id.
func (s *ProfileService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingActor
	}
	p, err := repo.GetProfile(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return p, nil
}

// Update applies the non-nil fields of in to the profile of id and returns
// the updated profile.
func (s *ProfileService) Update(ctx context.Context, id string, in UpdateInput) (*domain.Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	userFields := map[string]any{}
	if in.DisplayName != nil {
		userFields["display_name"] = strings.TrimSpace(*in.DisplayName)
	}
	if in.AvatarURL != nil {
		userFields["avatar_url"] = strings.TrimSpace(*in.AvatarURL)
	}
	if in.IsPublic != nil {
		userFields["is_public"] = *in.IsPublic
	}

	var (
		d    domain.RoleDetails
		cols []string
	)
	setStr := func(col string, src *string, dst *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
			cols = append(cols, col)
		}
	}
	setStr("bio", in.Bio, &d.Bio)
	setStr("location", in.Location, &d.Location)
	setStr("experience", in.Experience, &d.Experience)
	setStr("education", in.Education, &d.Education)
	setStr("availability", in.Availability, &d.Availability)
	if in.Skills != nil {
		d.Skills = cleanList(*in.Skills)
		cols = append(cols, "skills")
	}
	if in.Languages != nil {
		d.Languages = cleanList(*in.Languages)
		cols = append(cols, "languages")
	}
	if in.HourlyRate != nil && current.Role == domain.RoleMentor {
		cols = append(cols, "hourly_rate")
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpdateUserFields(ctx, tx, id, userFields); err != nil {
			return err
		}
		return repo.UpdateDetailFields(ctx, tx, current.Role, id, d, in.HourlyRate, cols)
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.Get(ctx, id)
}

// Completion reports which profile fields of id are still empty.
func (s *ProfileService) Completion(ctx context.Context, id string) (*Completion, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return ProfileCompletion(p), nil
}

// ProfileCompletion computes the completion summary of p. Mentors are
// additionally expected to state an hourly rate.
func ProfileCompletion(p *domain.Profile) *Completion {
	checks := []struct {
		name   string
		filled bool
	}{
		{"display_name", strings.TrimSpace(p.DisplayName) != ""},
		{"avatar_url", strings.TrimSpace(p.AvatarURL) != ""},
		{"bio", strings.TrimSpace(p.Details.Bio) != ""},
		{"skills", len(p.Details.Skills) > 0},
		{"location", strings.TrimSpace(p.Details.Location) != ""},
		{"experience", strings.TrimSpace(p.Details.Experience) != ""},
		{"education", strings.TrimSpace(p.Details.Education) != ""},
		{"languages", len(p.Details.Languages) > 0},
		{"availability", strings.TrimSpace(p.Details.Availability) != ""},
	}
	if p.Role == domain.RoleMentor {
		checks = append(checks, struct {
			name   string
			filled bool
		}{"hourly_rate", p.HourlyRate != nil})
	}

	c := &Completion{Missing: []string{}}
	filled := 0
	for _, ch := range checks {
		if ch.filled {
			filled++
		} else {
			c.Missing = append(c.Missing, ch.name)
		}
	}
	c.Percent = filled * 100 / len(checks)
	return c
}

// cleanList trims entries and drops empty ones and duplicates, keeping order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
