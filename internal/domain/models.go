// Package domain defines the persistence models for profiles, swipe
// decisions, matches, conversations and messages. These types are mapped with
// GORM and form the core data layer of the mentor matching backend.
package domain

import (
	"sort"
	"strings"
	"time"
)

// Role is the side of the marketplace a user registered on.
type Role string

const (
	RoleMentor Role = "mentor"
	RoleMentee Role = "mentee"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool { return r == RoleMentor || r == RoleMentee }

// Opposite returns the role a user of role r discovers. Unknown roles map to "".
func (r Role) Opposite() Role {
	switch r {
	case RoleMentor:
		return RoleMentee
	case RoleMentee:
		return RoleMentor
	}
	return ""
}

// Direction is the outcome of a swipe.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

func (d Direction) Valid() bool { return d == DirectionLeft || d == DirectionRight }

// MatchStatus is the lifecycle state of a Match. Only "active" is produced.
type MatchStatus string

const MatchStatusActive MatchStatus = "active"

// User is the public identity record of a registered user. IDs come from the
// identity provider and are never generated here.
//
// Fields:
//   - ID: identity-provider subject, primary key.
//   - Role: mentor or mentee (enforced by DB constraint).
//   - DisplayName / AvatarURL: presentation fields, may be empty.
//   - IsPublic: profile visibility flag chosen at registration.
type User struct {
	ID          string    `json:"id"           gorm:"type:varchar(128);primaryKey"`
	Email       string    `json:"email"        gorm:"type:varchar(255)"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255)"`
	Role        Role      `json:"role"         gorm:"type:varchar(16);not null;index;check:role IN ('mentor','mentee')"`
	AvatarURL   string    `json:"avatar_url"   gorm:"type:varchar(1024)"`
	IsPublic    bool      `json:"is_public"    gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// RoleDetails holds the attributes shared by mentor and mentee profiles.
type RoleDetails struct {
	UserID       string    `json:"-"            gorm:"type:varchar(128);primaryKey"`
	Bio          string    `json:"bio"          gorm:"type:text"`
	Skills       []string  `json:"skills"       gorm:"type:text;serializer:json"`
	Location     string    `json:"location"     gorm:"type:varchar(255)"`
	Experience   string    `json:"experience"   gorm:"type:text"`
	Education    string    `json:"education"    gorm:"type:text"`
	Languages    []string  `json:"languages"    gorm:"type:text;serializer:json"`
	Availability string    `json:"availability" gorm:"type:varchar(255)"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// MentorDetails are stored in the mentors table, one row per mentor user.
type MentorDetails struct {
	RoleDetails
	HourlyRate *float64 `json:"hourly_rate,omitempty"`
}

func (MentorDetails) TableName() string { return "mentors" }

// MenteeDetails are stored in the mentees table, one row per mentee user.
type MenteeDetails struct {
	RoleDetails
}

func (MenteeDetails) TableName() string { return "mentees" }

// Profile is the combined read model of a user and their role details.
// It is not persisted directly.
type Profile struct {
	User
	Details    RoleDetails `json:"details"`
	HourlyRate *float64    `json:"hourly_rate,omitempty"`
}

// SwipeDecision records one user's left/right decision about another.
// The primary key is derived from the ordered (actor, target) pair, so a
// later decision on the same pair overwrites the earlier one.
type SwipeDecision struct {
	ID        string    `json:"id"         gorm:"type:varchar(300);primaryKey"`
	ActorID   string    `json:"actor_id"   gorm:"type:varchar(128);not null;index:idx_swipe_actor_dir,priority:1"`
	TargetID  string    `json:"target_id"  gorm:"type:varchar(128);not null;index"`
	Direction Direction `json:"direction"  gorm:"type:varchar(8);not null;index:idx_swipe_actor_dir,priority:2;check:direction IN ('left','right')"`
	DecidedAt time.Time `json:"decided_at" gorm:"not null"`
}

func (SwipeDecision) TableName() string { return "swipes" }

// SwipeKey is the storage key of actor's decision about target.
func SwipeKey(actorID, targetID string) string { return actorID + "_" + targetID }

// Match is the durable record that a mentor and a mentee mutually swiped right.
type Match struct {
	ID        string      `json:"id"         gorm:"type:varchar(300);primaryKey"`
	MentorID  string      `json:"mentor_id"  gorm:"type:varchar(128);not null;index"`
	MenteeID  string      `json:"mentee_id"  gorm:"type:varchar(128);not null;index"`
	Status    MatchStatus `json:"status"     gorm:"type:varchar(16);not null;default:'active'"`
	CreatedAt time.Time   `json:"created_at"`
}

func (Match) TableName() string { return "matches" }

// MatchKey is the storage key of the match between mentorID and menteeID.
func MatchKey(mentorID, menteeID string) string { return mentorID + "_" + menteeID }

// Counterpart returns the other side of the match from userID's point of view.
func (m Match) Counterpart(userID string) string {
	if m.MentorID == userID {
		return m.MenteeID
	}
	return m.MentorID
}

// Conversation is a 1:1 thread between exactly two users. Its ID is symmetric
// in the participants (see ConversationKey) and participants never change.
//
// Fields:
//   - ParticipantA / ParticipantB: sorted participant ids, indexed for lookup.
//   - Participants: ids in creation order.
//   - ParticipantNames / ParticipantAvatars: snapshot taken at creation.
//   - LastMessage*: denormalised summary of the most recent message.
type Conversation struct {
	ID                 string            `json:"id"                  gorm:"type:varchar(300);primaryKey"`
	ParticipantA       string            `json:"-"                   gorm:"type:varchar(128);not null;index"`
	ParticipantB       string            `json:"-"                   gorm:"type:varchar(128);not null;index"`
	Participants       []string          `json:"participants"        gorm:"type:text;serializer:json;not null"`
	ParticipantNames   map[string]string `json:"participant_names"   gorm:"type:text;serializer:json"`
	ParticipantAvatars map[string]string `json:"participant_avatars" gorm:"type:text;serializer:json"`
	LastMessage        string            `json:"last_message"        gorm:"type:text"`
	LastMessageAt      time.Time         `json:"last_message_at"     gorm:"index"`
	LastMessageSender  string            `json:"last_message_sender" gorm:"type:varchar(128)"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// ConversationKey returns the id of the conversation between a and b. It is
// the lexicographically sorted pair joined with "_", so the argument order
// does not matter.
func ConversationKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the id, display name and avatar of the participant
// that is not userID. ok is false when userID is not part of the conversation.
func (c *Conversation) OtherParticipant(userID string) (id, name, avatar string, ok bool) {
	if !c.HasParticipant(userID) {
		return "", "", "", false
	}
	for _, p := range c.Participants {
		if p != userID {
			return p, c.ParticipantNames[p], c.ParticipantAvatars[p], true
		}
	}
	return "", "", "", false
}

// Message is a single text sent within a conversation.
//
// Messages are ordered by SentAt and then ID; IDs are UUIDv7 so they also
// sort by creation time.
type Message struct {
	ID                string    `json:"id"                  gorm:"type:char(36);primaryKey"`
	ConversationID    string    `json:"conversation_id"     gorm:"type:varchar(300);not null;index:idx_conv_msgs,priority:1"`
	SenderID          string    `json:"sender_id"           gorm:"type:varchar(128);not null"`
	SenderDisplayName string    `json:"sender_display_name" gorm:"type:varchar(255)"`
	SenderAvatarURL   string    `json:"sender_avatar_url"   gorm:"type:varchar(1024)"`
	Text              string    `json:"text"                gorm:"type:text;not null"`
	SentAt            time.Time `json:"sent_at"             gorm:"not null;index:idx_conv_msgs,priority:2"`
	Read              bool      `json:"read"                gorm:"not null;default:false"`

	// Conversation is the parent thread. Messages are cascade-deleted
	// if their conversation is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Message) TableName() string { return "messages" }
