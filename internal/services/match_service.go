// Package services – MatchService
//
// MatchService records swipe decisions and turns mutual right swipes into
// matches. The flow for a right swipe is:
//
//  1. Upsert the actor's decision (last writer wins per ordered pair).
//  2. Read the reverse decision. Absent, unreadable or "left" ends the flow.
//  3. Resolve which side is the mentor from both profiles.
//  4. Create the match if absent (race-safe at the storage level).
//  5. Ensure the conversation and, only when it was newly created, send the
//     mentee's intro message.
//
// Step 5 is best effort: its failure is logged and counted but the match
// stands. Running the whole flow again for the same pair is a no-op apart
// from healing a missing conversation.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-match/internal/config"
	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/repo"
)

// MatchRepo is the persistence contract used by MatchService.
type MatchRepo interface {
	UpsertSwipe(ctx context.Context, db *gorm.DB, d *domain.SwipeDecision) error
	GetSwipe(ctx context.Context, db *gorm.DB, actorID, targetID string) (*domain.SwipeDecision, error)
	GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)
	CreateMatchIfAbsent(ctx context.Context, db *gorm.DB, m *domain.Match) (bool, error)
	GetMatch(ctx context.Context, db *gorm.DB, id string) (*domain.Match, error)
	ListMatchesForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Match, error)
}

// ConversationBootstrapper creates the conversation for a new match and
// posts the intro message. ConversationService implements it.
type ConversationBootstrapper interface {
	EnsureConversation(ctx context.Context, a, b Participant) (id string, created bool, err error)
	SendIntroMessage(ctx context.Context, conversationID string, from Participant, text string) error
}

// CandidateInvalidator drops cached discovery results for users whose
// candidate set just changed. DiscoveryService implements it.
type CandidateInvalidator interface {
	InvalidateCandidates(ctx context.Context, userIDs ...string)
}

// MatchService owns swipes and matches.
type MatchService struct {
	DB            *gorm.DB
	Repo          MatchRepo
	Conversations ConversationBootstrapper
	Invalidator   CandidateInvalidator // optional

	// IntroTemplate is the intro text; "{mentor}" is replaced with the
	// mentor's display name.
	IntroTemplate string

	Now func() time.Time
}

// NewMatchService wires a MatchService with the default intro template.
func NewMatchService(db *gorm.DB, r MatchRepo, conv ConversationBootstrapper) *MatchService {
	return &MatchService{
		DB:            db,
		Repo:          r,
		Conversations: conv,
		IntroTemplate: config.DefaultIntroTemplate,
	}
}

func (s *MatchService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RecordSwipe persists actorID's decision about targetID. A right swipe then
// runs CheckAndCreateMatch synchronously and returns its match (nil when
// there is none). Left swipes always return a nil match.
func (s *MatchService) RecordSwipe(ctx context.Context, actorID, targetID string, dir domain.Direction) (*domain.Match, error) {
	tr := otel.Tracer("services/MatchService")
	ctx, span := tr.Start(ctx, "RecordSwipe",
		trace.WithAttributes(
			attribute.String("actor.id", actorID),
			attribute.String("target.id", targetID),
			attribute.String("swipe.direction", string(dir)),
		),
	)
	defer span.End()

	if strings.TrimSpace(actorID) == "" || strings.TrimSpace(targetID) == "" {
		return nil, ErrMissingActor
	}
	if actorID == targetID {
		return nil, ErrSelfSwipe
	}
	if !dir.Valid() {
		return nil, ErrInvalidDirection
	}

	decision := &domain.SwipeDecision{
		ID:        domain.SwipeKey(actorID, targetID),
		ActorID:   actorID,
		TargetID:  targetID,
		Direction: dir,
		DecidedAt: s.now(),
	}
	if err := s.Repo.UpsertSwipe(ctx, s.DB, decision); err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("actor_id", actorID).Str("target_id", targetID).Msg("swipe not recorded")
		return nil, fail(ErrSwipeRecordingFailed, err)
	}
	swipesRecorded.WithLabelValues(string(dir)).Inc()

	// Either direction may overwrite an earlier decision the cached deck
	// was built from.
	if s.Invalidator != nil {
		s.Invalidator.InvalidateCandidates(ctx, actorID)
	}
	if dir == domain.DirectionLeft {
		return nil, nil
	}
	return s.CheckAndCreateMatch(ctx, actorID, targetID)
}

// CheckAndCreateMatch creates the match between actorID and targetID if
// targetID has swiped right on actorID. It returns nil, nil when there is no
// mutual interest. Conversation bootstrap failures are logged, not returned.
func (s *MatchService) CheckAndCreateMatch(ctx context.Context, actorID, targetID string) (*domain.Match, error) {
	tr := otel.Tracer("services/MatchService")
	ctx, span := tr.Start(ctx, "CheckAndCreateMatch",
		trace.WithAttributes(
			attribute.String("actor.id", actorID),
			attribute.String("target.id", targetID),
		),
	)
	defer span.End()

	if actorID == "" || targetID == "" {
		return nil, ErrMissingActor
	}
	if actorID == targetID {
		return nil, ErrSelfSwipe
	}

	reverse, err := s.Repo.GetSwipe(ctx, s.DB, targetID, actorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrPermissionDenied) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, err
	}
	if reverse.Direction != domain.DirectionRight {
		return nil, nil
	}

	actor, err := s.Repo.GetUser(ctx, s.DB, actorID)
	if err != nil {
		return nil, s.matchFailed(span, actorID, targetID, err)
	}
	target, err := s.Repo.GetUser(ctx, s.DB, targetID)
	if err != nil {
		return nil, s.matchFailed(span, actorID, targetID, err)
	}
	mentor, mentee := assignRoles(actor, target)

	m := &domain.Match{
		ID:        domain.MatchKey(mentor.ID, mentee.ID),
		MentorID:  mentor.ID,
		MenteeID:  mentee.ID,
		Status:    domain.MatchStatusActive,
		CreatedAt: s.now(),
	}
	created, err := s.Repo.CreateMatchIfAbsent(ctx, s.DB, m)
	if err != nil {
		return nil, s.matchFailed(span, actorID, targetID, err)
	}
	if created {
		matchesCreated.Inc()
		log.Info().Str("match_id", m.ID).Str("mentor_id", m.MentorID).Str("mentee_id", m.MenteeID).Msg("match created")
		if s.Invalidator != nil {
			s.Invalidator.InvalidateCandidates(ctx, mentor.ID, mentee.ID)
		}
	} else if existing, gerr := s.Repo.GetMatch(ctx, s.DB, m.ID); gerr == nil {
		m = existing
	}
	span.SetAttributes(attribute.String("match.id", m.ID), attribute.Bool("match.created", created))

	if err := s.bootstrap(ctx, mentor, mentee); err != nil {
		bootstrapFailures.Inc()
		span.RecordError(err)
		log.Warn().Err(err).Str("match_id", m.ID).Msg("match stands without conversation")
	}
	return m, nil
}

// ListMatches returns userID's matches, newest first.
func (s *MatchService) ListMatches(ctx context.Context, userID string) ([]domain.Match, error) {
	tr := otel.Tracer("services/MatchService")
	ctx, span := tr.Start(ctx, "ListMatches",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if userID == "" {
		return nil, ErrMissingActor
	}
	return s.Repo.ListMatchesForUser(ctx, s.DB, userID)
}

func (s *MatchService) matchFailed(span trace.Span, actorID, targetID string, err error) error {
	matchFailures.Inc()
	span.RecordError(err)
	log.Error().Err(err).Str("actor_id", actorID).Str("target_id", targetID).Msg("mutual right swipe but match not persisted")
	return fail(ErrMatchPersistenceFailed, err)
}

// bootstrap ensures the match conversation and sends the intro only when
// this call created the conversation.
func (s *MatchService) bootstrap(ctx context.Context, mentor, mentee *domain.User) error {
	if s.Conversations == nil {
		return nil
	}
	convID, created, err := s.Conversations.EnsureConversation(ctx,
		ParticipantFromUser(mentor, "Mentor"),
		ParticipantFromUser(mentee, "Mentee"),
	)
	if err != nil {
		return fail(ErrConversationBootstrapFailed, err)
	}
	if !created {
		return nil
	}
	from := ParticipantFromUser(mentee, "User")
	if err := s.Conversations.SendIntroMessage(ctx, convID, from, s.introText(mentor)); err != nil {
		return fail(ErrConversationBootstrapFailed, err)
	}
	return nil
}

func (s *MatchService) introText(mentor *domain.User) string {
	tpl := s.IntroTemplate
	if strings.TrimSpace(tpl) == "" {
		tpl = config.DefaultIntroTemplate
	}
	name := mentor.DisplayName
	if strings.TrimSpace(name) == "" {
		name = "Mentor"
	}
	return strings.ReplaceAll(tpl, "{mentor}", name)
}

// assignRoles returns (mentor, mentee). When both users claim the same role
// the lexicographically smaller id is treated as the mentor and the anomaly
// is logged; the pair still yields one deterministic match id.
func assignRoles(a, b *domain.User) (mentor, mentee *domain.User) {
	switch {
	case a.Role == domain.RoleMentor && b.Role == domain.RoleMentee:
		return a, b
	case a.Role == domain.RoleMentee && b.Role == domain.RoleMentor:
		return b, a
	}
	log.Warn().
		Str("user_a", a.ID).Str("role_a", string(a.Role)).
		Str("user_b", b.ID).Str("role_b", string(b.Role)).
		Msg("mutual swipe between users of the same role")
	if a.ID < b.ID {
		return a, b
	}
	return b, a
}
