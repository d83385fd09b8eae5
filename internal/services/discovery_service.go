// Package services – DiscoveryService
//
// DiscoveryService produces the swipe deck of a user: every profile of the
// opposite role minus the user themselves, anyone they are already matched
// with and (optionally) anyone they already swiped left on.
//
// Results may be cached per actor. The cache only ever holds fully filtered
// lists; a failed directory read is returned as ErrDirectoryUnavailable and
// never falls back to an unfiltered deck.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/repo"
	"github.com/tbourn/go-mentor-match/internal/search"
)

// CandidateCache is the subset of cache.Redis used for discovery decks.
type CandidateCache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Candidate is one entry of a discovery deck. Affinity is set only when
// ranking is enabled.
type Candidate struct {
	domain.Profile
	Affinity *float64 `json:"affinity,omitempty"`
}

// DiscoveryService builds discovery decks.
type DiscoveryService struct {
	DB *gorm.DB

	Cache    CandidateCache // optional
	CacheTTL time.Duration

	// ExcludeLeftSwiped hides profiles the actor already swiped left on.
	ExcludeLeftSwiped bool
	// Rank orders candidates by profile-text affinity with the actor.
	Rank bool
}

// globEscaper quotes the Redis SCAN MATCH metacharacters in an id.
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func candidatesKey(actorID string, role domain.Role) string {
	return "discovery:" + actorID + ":" + string(role)
}

// Candidates returns the deck for actorID, who has role actorRole.
func (s *DiscoveryService) Candidates(ctx context.Context, actorID string, actorRole domain.Role) ([]Candidate, error) {
	tr := otel.Tracer("services/DiscoveryService")
	ctx, span := tr.Start(ctx, "Candidates",
		trace.WithAttributes(
			attribute.String("actor.id", actorID),
			attribute.String("actor.role", string(actorRole)),
		),
	)
	defer span.End()

	if strings.TrimSpace(actorID) == "" {
		return nil, ErrMissingActor
	}
	if !actorRole.Valid() {
		return nil, ErrInvalidRole
	}

	key := candidatesKey(actorID, actorRole)
	if s.Cache != nil {
		var cached []Candidate
		found, err := s.Cache.GetJSON(ctx, key, &cached)
		if err != nil {
			log.Debug().Err(err).Str("key", key).Msg("discovery cache read failed")
		}
		if found {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
	}

	profiles, err := repo.ListProfilesByRole(ctx, s.DB, actorRole.Opposite())
	if err != nil {
		span.RecordError(err)
		return nil, fail(ErrDirectoryUnavailable, err)
	}
	excluded, err := s.excludedIDs(ctx, actorID)
	if err != nil {
		span.RecordError(err)
		return nil, fail(ErrDirectoryUnavailable, err)
	}

	out := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		if _, skip := excluded[p.ID]; skip {
			continue
		}
		out = append(out, Candidate{Profile: p})
	}

	if s.Rank && len(out) > 0 {
		if err := s.rank(ctx, actorID, out); err != nil {
			// Ranking is cosmetic; an unranked deck is still correct.
			log.Warn().Err(err).Str("actor_id", actorID).Msg("discovery ranking skipped")
		}
	}

	if s.Cache != nil {
		if err := s.Cache.SetJSON(ctx, key, out, s.CacheTTL); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("discovery cache write failed")
		}
	}
	span.SetAttributes(attribute.Int("candidates.count", len(out)))
	return out, nil
}

// InvalidateCandidates drops the cached decks of the given users.
func (s *DiscoveryService) InvalidateCandidates(ctx context.Context, userIDs ...string) {
	if s.Cache == nil {
		return
	}
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if err := s.Cache.DeleteByPattern(ctx, "discovery:"+globEscaper.Replace(id)+":*"); err != nil {
			log.Debug().Err(err).Str("user_id", id).Msg("discovery cache invalidation failed")
		}
	}
}

// InvalidateAll drops every cached deck, e.g. after a new profile appears.
func (s *DiscoveryService) InvalidateAll(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.DeleteByPattern(ctx, "discovery:*"); err != nil {
		log.Debug().Err(err).Msg("discovery cache invalidation failed")
	}
}

// excludedIDs is the actor, their match counterparts and, when configured,
// their left-swiped targets.
func (s *DiscoveryService) excludedIDs(ctx context.Context, actorID string) (map[string]struct{}, error) {
	matches, err := repo.ListMatchesForUser(ctx, s.DB, actorID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(matches)+1)
	out[actorID] = struct{}{}
	for _, m := range matches {
		out[m.Counterpart(actorID)] = struct{}{}
	}

	if s.ExcludeLeftSwiped {
		left, err := repo.ListSwipedTargets(ctx, s.DB, actorID, domain.DirectionLeft)
		if err != nil {
			return nil, err
		}
		for _, id := range left {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// rank scores every candidate against the actor's profile text and sorts the
// slice in place by score desc, then id.
func (s *DiscoveryService) rank(ctx context.Context, actorID string, cands []Candidate) error {
	me, err := repo.GetProfile(ctx, s.DB, actorID)
	if err != nil {
		return err
	}

	docs := make([]search.Document, len(cands))
	for i, c := range cands {
		docs[i] = search.Document{ID: c.ID, Text: ProfileText(c.Profile)}
	}
	scores := search.NewIndex(docs).Scores(ProfileText(*me))

	results := make([]search.Result, len(cands))
	byID := make(map[string]Candidate, len(cands))
	for i, c := range cands {
		results[i] = search.Result{ID: c.ID, Score: scores[c.ID]}
		byID[c.ID] = c
	}
	search.SortResults(results)
	for i, r := range results {
		c := byID[r.ID]
		score := r.Score
		c.Affinity = &score
		cands[i] = c
	}
	return nil
}

// ProfileText is the text a profile is matched on.
func ProfileText(p domain.Profile) string {
	parts := make([]string, 0, len(p.Details.Skills)+len(p.Details.Languages)+2)
	parts = append(parts, p.Details.Skills...)
	parts = append(parts, p.Details.Languages...)
	parts = append(parts, p.Details.Bio, p.Details.Experience)
	return strings.Join(parts, " ")
}
