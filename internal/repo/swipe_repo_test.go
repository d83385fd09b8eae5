package repo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-mentor-match/internal/domain"
)

func TestUpsertSwipe_LastWriterWins(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	d := &domain.SwipeDecision{ActorID: "a", TargetID: "b", Direction: domain.DirectionRight, DecidedAt: t0}
	if err := UpsertSwipe(ctx, db, d); err != nil {
		t.Fatalf("UpsertSwipe: %v", err)
	}
	if d.ID != "a_b" {
		t.Fatalf("expected derived id a_b, got %q", d.ID)
	}
	if err := UpsertSwipe(ctx, db, &domain.SwipeDecision{ActorID: "a", TargetID: "b", Direction: domain.DirectionLeft, DecidedAt: t0.Add(time.Minute)}); err != nil {
		t.Fatalf("UpsertSwipe overwrite: %v", err)
	}

	got, err := GetSwipe(ctx, db, "a", "b")
	if err != nil {
		t.Fatalf("GetSwipe: %v", err)
	}
	if got.Direction != domain.DirectionLeft || !got.DecidedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("expected latest decision, got %+v", got)
	}

	var n int64
	db.Model(&domain.SwipeDecision{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected one row per ordered pair, got %d", n)
	}

	if _, err := GetSwipe(ctx, db, "b", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reverse decision must be absent, got %v", err)
	}
}

func TestUpsertSwipe_RejectsUnknownDirection(t *testing.T) {
	db := newMigratedDB(t)
	err := UpsertSwipe(context.Background(), db, &domain.SwipeDecision{ActorID: "a", TargetID: "b", Direction: "up", DecidedAt: time.Now()})
	if err == nil {
		t.Fatalf("expected check constraint violation")
	}
}

func TestListSwipedTargets(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for _, s := range []struct {
		actor, target string
		dir           domain.Direction
	}{
		{"a", "x", domain.DirectionLeft},
		{"a", "y", domain.DirectionRight},
		{"a", "z", domain.DirectionLeft},
		{"b", "x", domain.DirectionLeft},
	} {
		if err := UpsertSwipe(ctx, db, &domain.SwipeDecision{ActorID: s.actor, TargetID: s.target, Direction: s.dir, DecidedAt: now}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	left, err := ListSwipedTargets(ctx, db, "a", domain.DirectionLeft)
	if err != nil {
		t.Fatalf("ListSwipedTargets: %v", err)
	}
	sort.Strings(left)
	if len(left) != 2 || left[0] != "x" || left[1] != "z" {
		t.Fatalf("unexpected left targets: %v", left)
	}
}

func TestCreateMatchIfAbsent(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()

	m := &domain.Match{MentorID: "m", MenteeID: "e", CreatedAt: time.Now().UTC()}
	created, err := CreateMatchIfAbsent(ctx, db, m)
	if err != nil || !created {
		t.Fatalf("first create = %v, %v", created, err)
	}
	if m.ID != "m_e" || m.Status != domain.MatchStatusActive {
		t.Fatalf("unexpected defaults: %+v", m)
	}

	created, err = CreateMatchIfAbsent(ctx, db, &domain.Match{MentorID: "m", MenteeID: "e"})
	if err != nil || created {
		t.Fatalf("second create = %v, %v; want false, nil", created, err)
	}

	got, err := GetMatch(ctx, db, "m_e")
	if err != nil || got.MentorID != "m" {
		t.Fatalf("GetMatch = %+v, %v", got, err)
	}
	if _, err := GetMatch(ctx, db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateMatchIfAbsent_Concurrent(t *testing.T) {
	// File-backed so writers contend on a real lock with busy_timeout.
	db, err := OpenSQLite(t.TempDir() + "/matches.db")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := CreateMatchIfAbsent(context.Background(), db, &domain.Match{MentorID: "m", MenteeID: "e", CreatedAt: time.Now().UTC()})
			if err != nil {
				t.Errorf("CreateMatchIfAbsent: %v", err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("expected exactly one creator, got %d", created)
	}
}

func TestListMatchesForUser(t *testing.T) {
	db := newMigratedDB(t)
	ctx := context.Background()
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, m := range []*domain.Match{
		{MentorID: "m1", MenteeID: "e"},
		{MentorID: "m2", MenteeID: "e"},
		{MentorID: "m1", MenteeID: "other"},
	} {
		m.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if _, err := CreateMatchIfAbsent(ctx, db, m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := ListMatchesForUser(ctx, db, "e")
	if err != nil {
		t.Fatalf("ListMatchesForUser: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m2_e" || got[1].ID != "m1_e" {
		t.Fatalf("unexpected matches for e: %+v", got)
	}
	got, _ = ListMatchesForUser(ctx, db, "m1")
	if len(got) != 2 {
		t.Fatalf("mentor side: expected 2, got %d", len(got))
	}
}
