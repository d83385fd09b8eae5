package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-mentor-match/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestProfileService_RegisterAndGet(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	p, err := s.profiles.Register(ctx, RegisterInput{
		ID:          "m1",
		Email:       " ada@example.com ",
		DisplayName: "Ada",
		Role:        domain.RoleMentor,
		IsPublic:    true,
		Bio:         "Systems engineer",
		Skills:      []string{"Go", " ", "Go", "SQL"},
		Languages:   []string{"English"},
		HourlyRate:  ptr(80.0),
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, domain.RoleMentor, p.Role)
	assert.True(t, p.IsPublic)
	assert.Equal(t, []string{"Go", "SQL"}, p.Details.Skills)
	require.NotNil(t, p.HourlyRate)
	assert.Equal(t, 80.0, *p.HourlyRate)
	assert.EqualValues(t, 1, countRows(t, s.db, &domain.MentorDetails{}))
	assert.Zero(t, countRows(t, s.db, &domain.MenteeDetails{}))

	got, err := s.profiles.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Systems engineer", got.Details.Bio)

	e, err := s.profiles.Register(ctx, RegisterInput{ID: "e1", Role: domain.RoleMentee, HourlyRate: ptr(10.0)})
	require.NoError(t, err)
	assert.Nil(t, e.HourlyRate, "mentees have no rate")
	assert.False(t, e.IsPublic)
}

func TestProfileService_RegisterErrors(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	_, err := s.profiles.Register(ctx, RegisterInput{ID: "x", Role: domain.Role("admin")})
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = s.profiles.Register(ctx, RegisterInput{Role: domain.RoleMentee})
	assert.ErrorIs(t, err, ErrMissingActor)

	_, err = s.profiles.Register(ctx, RegisterInput{ID: "dup", Role: domain.RoleMentee})
	require.NoError(t, err)
	_, err = s.profiles.Register(ctx, RegisterInput{ID: "dup", Role: domain.RoleMentor})
	assert.ErrorIs(t, err, ErrProfileExists)
	assert.Zero(t, countRows(t, s.db, &domain.MentorDetails{}), "failed registration leaves no detail row")

	_, err = s.profiles.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileService_UpdateSkipsNilFields(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	_, err := s.profiles.Register(ctx, RegisterInput{
		ID:          "m1",
		DisplayName: "Ada",
		Role:        domain.RoleMentor,
		Bio:         "old bio",
		Location:    "Athens",
		Skills:      []string{"Go"},
		HourlyRate:  ptr(50.0),
	})
	require.NoError(t, err)

	p, err := s.profiles.Update(ctx, "m1", UpdateInput{
		Bio:        ptr("new bio"),
		Skills:     ptr([]string{"Go", "Rust"}),
		IsPublic:   ptr(true),
		HourlyRate: ptr(65.0),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.Equal(t, "new bio", p.Details.Bio)
	assert.Equal(t, "Athens", p.Details.Location)
	assert.Equal(t, []string{"Go", "Rust"}, p.Details.Skills)
	assert.True(t, p.IsPublic)
	require.NotNil(t, p.HourlyRate)
	assert.Equal(t, 65.0, *p.HourlyRate)

	p, err = s.profiles.Update(ctx, "m1", UpdateInput{DisplayName: ptr("Ada L."), Location: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", p.DisplayName)
	assert.Equal(t, "", p.Details.Location)
	assert.Equal(t, "new bio", p.Details.Bio)

	_, err = s.profiles.Update(ctx, "ghost", UpdateInput{Bio: ptr("x")})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileService_UpdateCreatesMissingDetailRow(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	seedUser(t, s.db, "e1", domain.RoleMentee, "Eve")
	require.NoError(t, s.db.Where("user_id = ?", "e1").Delete(&domain.MenteeDetails{}).Error)

	p, err := s.profiles.Update(ctx, "e1", UpdateInput{Availability: ptr("weekends")})
	require.NoError(t, err)
	assert.Equal(t, "weekends", p.Details.Availability)
	assert.EqualValues(t, 1, countRows(t, s.db, &domain.MenteeDetails{}))
}

func TestProfileCompletion(t *testing.T) {
	empty := &domain.Profile{User: domain.User{ID: "e", Role: domain.RoleMentee}}
	c := ProfileCompletion(empty)
	assert.Equal(t, 0, c.Percent)
	assert.Len(t, c.Missing, 9)
	assert.NotContains(t, c.Missing, "hourly_rate")

	mentor := &domain.Profile{
		User: domain.User{ID: "m", Role: domain.RoleMentor, DisplayName: "M", AvatarURL: "a"},
		Details: domain.RoleDetails{
			Bio: "b", Skills: []string{"Go"}, Location: "l", Experience: "x",
			Education: "e", Languages: []string{"en"}, Availability: "always",
		},
	}
	c = ProfileCompletion(mentor)
	assert.Equal(t, 90, c.Percent)
	assert.Equal(t, []string{"hourly_rate"}, c.Missing)

	mentor.HourlyRate = ptr(1.0)
	c = ProfileCompletion(mentor)
	assert.Equal(t, 100, c.Percent)
	assert.Empty(t, c.Missing)
}

func TestProfileService_Completion(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	_, err := s.profiles.Register(ctx, RegisterInput{ID: "e", Role: domain.RoleMentee, DisplayName: "Eve", Bio: "hi"})
	require.NoError(t, err)

	c, err := s.profiles.Completion(ctx, "e")
	require.NoError(t, err)
	assert.Equal(t, 22, c.Percent)
	assert.NotContains(t, c.Missing, "bio")
	assert.Contains(t, c.Missing, "skills")

	_, err = s.profiles.Completion(ctx, "ghost")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
