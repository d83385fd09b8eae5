package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-mentor-match/internal/domain"
)

func TestConversationsStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, _, err := ConversationsStats(context.Background(), db, "u1"); err == nil {
		t.Fatalf("expected error due to missing conversations table")
	}
}

func TestConversationsStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, &domain.Conversation{})
	count, maxAt, err := ConversationsStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("ConversationsStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestConversationsStats_Success_FilterAndMax(t *testing.T) {
	db := newTestDB(t, &domain.Conversation{})

	t1 := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC) // max for u1
	t3 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)   // does not involve u1

	for _, c := range []*domain.Conversation{
		{ID: "u0_u1", ParticipantA: "u0", ParticipantB: "u1", Participants: []string{"u0", "u1"}, CreatedAt: t1, UpdatedAt: t1},
		{ID: "u1_u2", ParticipantA: "u1", ParticipantB: "u2", Participants: []string{"u1", "u2"}, CreatedAt: t2, UpdatedAt: t2},
		{ID: "u2_u3", ParticipantA: "u2", ParticipantB: "u3", Participants: []string{"u2", "u3"}, CreatedAt: t3, UpdatedAt: t3},
	} {
		if err := db.Create(c).Error; err != nil {
			t.Fatalf("seed %s: %v", c.ID, err)
		}
	}

	count, maxAt, err := ConversationsStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("ConversationsStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("expected maxUpdatedAt %v, got %v", t2, maxAt)
	}
}

func TestMessagesStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t)
	if _, _, err := MessagesStats(context.Background(), db, "c1"); err == nil {
		t.Fatalf("expected error due to missing messages table")
	}
}

func TestMessagesStats_Success_FilterAndMax(t *testing.T) {
	db := newMigratedDB(t)

	t1 := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 4, 1, 12, 5, 0, 0, time.UTC) // max for a_b
	t3 := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)  // other conversation

	for _, c := range []string{"a_b", "c_d"} {
		conv := &domain.Conversation{ID: c, ParticipantA: c[:1], ParticipantB: c[2:], Participants: []string{c[:1], c[2:]}}
		if err := db.Create(conv).Error; err != nil {
			t.Fatalf("seed conversation: %v", err)
		}
	}

	count, maxAt, err := MessagesStats(context.Background(), db, "a_b")
	if err != nil || count != 0 || maxAt != nil {
		t.Fatalf("empty conversation: (%d, %v, %v)", count, maxAt, err)
	}

	for _, m := range []*domain.Message{
		{ID: "m1", ConversationID: "a_b", SenderID: "a", Text: "hi", SentAt: t1},
		{ID: "m2", ConversationID: "a_b", SenderID: "b", Text: "hey", SentAt: t2},
		{ID: "m3", ConversationID: "c_d", SenderID: "c", Text: "yo", SentAt: t3},
	} {
		if err := CreateMessage(context.Background(), db, m); err != nil {
			t.Fatalf("seed %s: %v", m.ID, err)
		}
	}

	count, maxAt, err = MessagesStats(context.Background(), db, "a_b")
	if err != nil {
		t.Fatalf("MessagesStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("expected maxSentAt %v, got %v", t2, maxAt)
	}
}

// Force the second query (SELECT sent_at ...) to fail by renaming the column.
func TestMessagesStats_SelectLatest_ErrorPath(t *testing.T) {
	db := newTestDB(t, &domain.Conversation{}, &domain.Message{})
	if err := db.Create(&domain.Conversation{ID: "a_b", ParticipantA: "a", ParticipantB: "b", Participants: []string{"a", "b"}}).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	if err := CreateMessage(context.Background(), db, &domain.Message{ConversationID: "a_b", SenderID: "a", Text: "x"}); err != nil {
		t.Fatalf("seed msg: %v", err)
	}
	if err := db.Exec(`ALTER TABLE messages RENAME COLUMN sent_at TO sent_at_old`).Error; err != nil {
		t.Fatalf("rename column: %v", err)
	}

	if _, _, err := MessagesStats(context.Background(), db, "a_b"); err == nil {
		t.Fatalf("expected error from latest-sent select after column rename")
	}
}
