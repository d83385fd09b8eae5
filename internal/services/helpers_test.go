package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/realtime"
	"github.com/tbourn/go-mentor-match/internal/repo"
)

// newServiceDB opens a migrated file-backed SQLite database. A file (rather
// than a shared in-memory cache) gives WAL semantics, so concurrent writers
// and live-view readers behave like production.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id string, role domain.Role, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Role: role, DisplayName: name, AvatarURL: "https://img/" + id, IsPublic: true}
	require.NoError(t, repo.CreateProfile(context.Background(), db, u, nil, nil))
	return u
}

// repoShim adapts the repo package functions to MatchRepo.
type repoShim struct{}

func (repoShim) UpsertSwipe(ctx context.Context, db *gorm.DB, d *domain.SwipeDecision) error {
	return repo.UpsertSwipe(ctx, db, d)
}
func (repoShim) GetSwipe(ctx context.Context, db *gorm.DB, actorID, targetID string) (*domain.SwipeDecision, error) {
	return repo.GetSwipe(ctx, db, actorID, targetID)
}
func (repoShim) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}
func (repoShim) CreateMatchIfAbsent(ctx context.Context, db *gorm.DB, m *domain.Match) (bool, error) {
	return repo.CreateMatchIfAbsent(ctx, db, m)
}
func (repoShim) GetMatch(ctx context.Context, db *gorm.DB, id string) (*domain.Match, error) {
	return repo.GetMatch(ctx, db, id)
}
func (repoShim) ListMatchesForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Match, error) {
	return repo.ListMatchesForUser(ctx, db, userID)
}

// faultyRepo injects errors into selected MatchRepo calls.
type faultyRepo struct {
	repoShim
	upsertErr   error
	getSwipeErr error
	getUserErr  error
	createErr   error
}

func (f faultyRepo) UpsertSwipe(ctx context.Context, db *gorm.DB, d *domain.SwipeDecision) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.repoShim.UpsertSwipe(ctx, db, d)
}
func (f faultyRepo) GetSwipe(ctx context.Context, db *gorm.DB, actorID, targetID string) (*domain.SwipeDecision, error) {
	if f.getSwipeErr != nil {
		return nil, f.getSwipeErr
	}
	return f.repoShim.GetSwipe(ctx, db, actorID, targetID)
}
func (f faultyRepo) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	return f.repoShim.GetUser(ctx, db, id)
}
func (f faultyRepo) CreateMatchIfAbsent(ctx context.Context, db *gorm.DB, m *domain.Match) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	return f.repoShim.CreateMatchIfAbsent(ctx, db, m)
}

// brokenBootstrapper fails every EnsureConversation call and counts them.
type brokenBootstrapper struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (b *brokenBootstrapper) EnsureConversation(ctx context.Context, a, c Participant) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return "", false, b.err
}

func (b *brokenBootstrapper) SendIntroMessage(ctx context.Context, id string, from Participant, text string) error {
	return b.err
}

// recordingInvalidator remembers which users had their decks dropped.
type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) InvalidateCandidates(_ context.Context, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

func (r *recordingInvalidator) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

// stack is a fully wired set of services over one database.
type stack struct {
	db        *gorm.DB
	broker    *realtime.Broker
	messages  *MessageService
	convs     *ConversationService
	matches   *MatchService
	discovery *DiscoveryService
	profiles  *ProfileService
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newStack(t *testing.T) *stack {
	t.Helper()
	db := newServiceDB(t)
	b := realtime.NewBroker()
	msgs := &MessageService{DB: db, Broker: b, MaxTextRunes: 4000}
	convs := &ConversationService{DB: db, Broker: b, Messages: msgs}
	disc := &DiscoveryService{DB: db, ExcludeLeftSwiped: true}
	ms := NewMatchService(db, repoShim{}, convs)
	ms.Invalidator = disc
	return &stack{
		db:        db,
		broker:    b,
		messages:  msgs,
		convs:     convs,
		matches:   ms,
		discovery: disc,
		profiles:  &ProfileService{DB: db, Decks: disc},
	}
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

// next waits for one value on ch or fails the test.
func next[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for live update")
	}
	var zero T
	return zero
}
