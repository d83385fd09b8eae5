package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		User{}.TableName():          "users",
		MentorDetails{}.TableName(): "mentors",
		MenteeDetails{}.TableName(): "mentees",
		SwipeDecision{}.TableName(): "swipes",
		Match{}.TableName():         "matches",
		Conversation{}.TableName():  "conversations",
		Message{}.TableName():       "messages",
		Idempotency{}.TableName():   "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestRole_ValidAndOpposite(t *testing.T) {
	if !RoleMentor.Valid() || !RoleMentee.Valid() {
		t.Fatal("known roles must be valid")
	}
	if Role("admin").Valid() || Role("").Valid() {
		t.Fatal("unknown roles must be invalid")
	}
	if RoleMentor.Opposite() != RoleMentee || RoleMentee.Opposite() != RoleMentor {
		t.Fatal("opposite roles mismatch")
	}
	if Role("x").Opposite() != "" {
		t.Fatal("unknown role should have no opposite")
	}
}

func TestDirection_Valid(t *testing.T) {
	if !DirectionLeft.Valid() || !DirectionRight.Valid() {
		t.Fatal("left/right must be valid")
	}
	if Direction("up").Valid() {
		t.Fatal("up must be invalid")
	}
}

func TestKeys(t *testing.T) {
	if got := SwipeKey("a", "b"); got != "a_b" {
		t.Fatalf("SwipeKey = %q", got)
	}
	if SwipeKey("a", "b") == SwipeKey("b", "a") {
		t.Fatal("swipe keys must be directional")
	}
	if got := MatchKey("mentor1", "mentee1"); got != "mentor1_mentee1" {
		t.Fatalf("MatchKey = %q", got)
	}
}

func TestConversationKey_Symmetric(t *testing.T) {
	pairs := [][2]string{{"u1", "u2"}, {"zed", "amy"}, {"same", "samf"}, {"B", "a"}}
	for _, p := range pairs {
		ab := ConversationKey(p[0], p[1])
		ba := ConversationKey(p[1], p[0])
		if ab != ba {
			t.Fatalf("ConversationKey(%q,%q)=%q but reversed=%q", p[0], p[1], ab, ba)
		}
	}
	if got := ConversationKey("zed", "amy"); got != "amy_zed" {
		t.Fatalf("ConversationKey = %q; want amy_zed", got)
	}
}

func TestConversation_Participants(t *testing.T) {
	c := &Conversation{
		Participants:       []string{"m1", "e1"},
		ParticipantNames:   map[string]string{"m1": "Mia", "e1": "Eli"},
		ParticipantAvatars: map[string]string{"m1": "http://a/m1.png"},
	}
	if !c.HasParticipant("m1") || !c.HasParticipant("e1") || c.HasParticipant("x") {
		t.Fatal("HasParticipant mismatch")
	}
	id, name, avatar, ok := c.OtherParticipant("e1")
	if !ok || id != "m1" || name != "Mia" || avatar != "http://a/m1.png" {
		t.Fatalf("OtherParticipant(e1) = %q %q %q %v", id, name, avatar, ok)
	}
	if _, _, _, ok := c.OtherParticipant("stranger"); ok {
		t.Fatal("stranger must not resolve")
	}
}

func TestMatch_Counterpart(t *testing.T) {
	m := Match{MentorID: "m", MenteeID: "e"}
	if m.Counterpart("m") != "e" || m.Counterpart("e") != "m" {
		t.Fatal("Counterpart mismatch")
	}
}

func TestMigrations_IndexesSerializersAndCascade(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&User{}, &MentorDetails{}, &MenteeDetails{}, &SwipeDecision{}, &Match{}, &Conversation{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasIndex(&Message{}, "idx_conv_msgs") {
		t.Fatal("expected index idx_conv_msgs on messages")
	}
	if !m.HasIndex(&SwipeDecision{}, "idx_swipe_actor_dir") {
		t.Fatal("expected index idx_swipe_actor_dir on swipes")
	}

	// Role check constraint.
	if err := db.Create(&User{ID: "bad", Role: "admin"}).Error; err == nil {
		t.Fatal("expected check constraint violation for role")
	}

	rate := 42.5
	md := &MentorDetails{RoleDetails: RoleDetails{UserID: "m1", Skills: []string{"go", "sql"}, Languages: []string{"en"}}, HourlyRate: &rate}
	if err := db.Create(md).Error; err != nil {
		t.Fatalf("insert mentor details: %v", err)
	}
	var gotMD MentorDetails
	if err := db.First(&gotMD, "user_id = ?", "m1").Error; err != nil {
		t.Fatalf("read mentor details: %v", err)
	}
	if len(gotMD.Skills) != 2 || gotMD.Skills[1] != "sql" || gotMD.HourlyRate == nil || *gotMD.HourlyRate != rate {
		t.Fatalf("unexpected mentor details: %+v", gotMD)
	}

	now := time.Now().UTC()
	conv := &Conversation{
		ID:               ConversationKey("m1", "e1"),
		ParticipantA:     "e1",
		ParticipantB:     "m1",
		Participants:     []string{"m1", "e1"},
		ParticipantNames: map[string]string{"m1": "Mia", "e1": "Eli"},
		CreatedAt:        now,
	}
	if err := db.Create(conv).Error; err != nil {
		t.Fatalf("insert conversation: %v", err)
	}
	var gotConv Conversation
	if err := db.First(&gotConv, "id = ?", conv.ID).Error; err != nil {
		t.Fatalf("read conversation: %v", err)
	}
	if len(gotConv.Participants) != 2 || gotConv.ParticipantNames["e1"] != "Eli" {
		t.Fatalf("unexpected conversation: %+v", gotConv)
	}

	msg := &Message{ID: "msg1", ConversationID: conv.ID, SenderID: "e1", Text: "hi", SentAt: now}
	if err := db.Omit("Conversation").Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}
	orphan := &Message{ID: "msg2", ConversationID: "nope", SenderID: "e1", Text: "hi", SentAt: now}
	if err := db.Omit("Conversation").Create(orphan).Error; err == nil {
		t.Fatal("expected FK violation for message without conversation")
	}

	if err := db.Delete(&Conversation{}, "id = ?", conv.ID).Error; err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	var left int64
	db.Model(&Message{}).Where("conversation_id = ?", conv.ID).Count(&left)
	if left != 0 {
		t.Fatalf("expected messages cascade-deleted, got %d", left)
	}
}
