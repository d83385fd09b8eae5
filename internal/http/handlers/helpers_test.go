package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/http/middleware"
	"github.com/tbourn/go-mentor-match/internal/repo"
	"github.com/tbourn/go-mentor-match/internal/services"
)

// ---------- test plumbing ----------

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:h_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// stub services; nil funcs fail the test loudly when reached.

type stubProfiles struct {
	register   func(ctx context.Context, in services.RegisterInput) (*domain.Profile, error)
	get        func(ctx context.Context, id string) (*domain.Profile, error)
	update     func(ctx context.Context, id string, in services.UpdateInput) (*domain.Profile, error)
	completion func(ctx context.Context, id string) (*services.Completion, error)
}

func (s stubProfiles) Register(ctx context.Context, in services.RegisterInput) (*domain.Profile, error) {
	return s.register(ctx, in)
}
func (s stubProfiles) Get(ctx context.Context, id string) (*domain.Profile, error) {
	return s.get(ctx, id)
}
func (s stubProfiles) Update(ctx context.Context, id string, in services.UpdateInput) (*domain.Profile, error) {
	return s.update(ctx, id, in)
}
func (s stubProfiles) Completion(ctx context.Context, id string) (*services.Completion, error) {
	return s.completion(ctx, id)
}

type stubDiscovery struct {
	candidates func(ctx context.Context, actorID string, role domain.Role) ([]services.Candidate, error)
}

func (s stubDiscovery) Candidates(ctx context.Context, actorID string, role domain.Role) ([]services.Candidate, error) {
	return s.candidates(ctx, actorID, role)
}

type stubMatches struct {
	swipe func(ctx context.Context, actorID, targetID string, dir domain.Direction) (*domain.Match, error)
	list  func(ctx context.Context, userID string) ([]domain.Match, error)
}

func (s stubMatches) RecordSwipe(ctx context.Context, actorID, targetID string, dir domain.Direction) (*domain.Match, error) {
	return s.swipe(ctx, actorID, targetID, dir)
}
func (s stubMatches) ListMatches(ctx context.Context, userID string) ([]domain.Match, error) {
	return s.list(ctx, userID)
}

type stubConvs struct {
	getOrCreate func(ctx context.Context, actorID, otherID string) (*domain.Conversation, error)
	get         func(ctx context.Context, id, userID string) (*domain.Conversation, error)
	list        func(ctx context.Context, userID string) ([]domain.Conversation, error)
	subscribe   func(ctx context.Context, userID string, onUpdate func([]domain.Conversation)) (func(), error)
}

func (s stubConvs) GetOrCreate(ctx context.Context, actorID, otherID string) (*domain.Conversation, error) {
	return s.getOrCreate(ctx, actorID, otherID)
}
func (s stubConvs) Get(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	return s.get(ctx, id, userID)
}
func (s stubConvs) ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	return s.list(ctx, userID)
}
func (s stubConvs) Subscribe(ctx context.Context, userID string, onUpdate func([]domain.Conversation)) (func(), error) {
	return s.subscribe(ctx, userID, onUpdate)
}

type stubMsgs struct {
	send      func(ctx context.Context, convID string, sender services.Participant, text string) (*domain.Message, error)
	listPage  func(ctx context.Context, convID string, page, size int) ([]domain.Message, int64, error)
	subscribe func(ctx context.Context, convID string, onUpdate func([]domain.Message)) (func(), error)
}

func (s stubMsgs) Send(ctx context.Context, convID string, sender services.Participant, text string) (*domain.Message, error) {
	return s.send(ctx, convID, sender, text)
}
func (s stubMsgs) ListPage(ctx context.Context, convID string, page, size int) ([]domain.Message, int64, error) {
	return s.listPage(ctx, convID, page, size)
}
func (s stubMsgs) Subscribe(ctx context.Context, convID string, onUpdate func([]domain.Message)) (func(), error) {
	return s.subscribe(ctx, convID, onUpdate)
}

// conv builds a conversation between a and b with display names.
func conv(a, b string) *domain.Conversation {
	return &domain.Conversation{
		ID:                 domain.ConversationKey(a, b),
		Participants:       []string{a, b},
		ParticipantNames:   map[string]string{a: "Name " + a, b: "Name " + b},
		ParticipantAvatars: map[string]string{a: "https://img/" + a, b: ""},
	}
}

// convGetter answers Get for exactly one conversation.
func convGetter(c *domain.Conversation) func(context.Context, string, string) (*domain.Conversation, error) {
	return func(_ context.Context, id, uid string) (*domain.Conversation, error) {
		if id != c.ID {
			return nil, services.ErrConversationNotFound
		}
		if !c.HasParticipant(uid) {
			return nil, services.ErrNotParticipant
		}
		cp := *c
		return &cp, nil
	}
}

// newRouter mounts every endpoint behind header identity, the way
// RegisterRoutes does without a signing secret.
func newRouter(h *Handlers, db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Authenticate(middleware.AuthOptions{}))

	var lookup middleware.IdempotencyLookup
	if db != nil {
		lookup = func(ctx context.Context, uid, convID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, uid, convID, key, now)
			if err != nil {
				return false, nil
			}
			return rec != nil, nil
		}
	}

	r.POST("/profiles", h.RegisterProfile)
	r.GET("/profiles/me", h.GetMyProfile)
	r.PATCH("/profiles/me", h.UpdateMyProfile)
	r.GET("/profiles/me/completion", h.GetMyCompletion)
	r.GET("/profiles/:id", h.GetProfile)
	r.GET("/discovery", h.Discover)
	r.POST("/swipes", h.Swipe)
	r.GET("/matches", h.ListMatches)
	r.GET("/conversations", h.ListConversations)
	r.POST("/conversations", h.OpenConversation)
	r.GET("/conversations/stream", h.StreamConversations)
	r.GET("/conversations/:id", h.GetConversation)
	r.GET("/conversations/:id/stream", h.StreamMessages)
	r.GET("/conversations/:id/messages", h.ListMessages)
	r.POST("/conversations/:id/messages",
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup),
		h.SendMessage)
	return r
}

// do performs a request as uid ("" for anonymous) with optional JSON body
// and extra headers given as name/value pairs.
func do(t *testing.T, r http.Handler, method, path, uid string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			rdr = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set(middleware.HeaderUserID, uid)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v; body=%s", err, w.Body.String())
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status=%d want %d; body=%s", w.Code, status, w.Body.String())
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != code {
		t.Fatalf("code=%q want %q (%s)", er.Code, code, er.Message)
	}
	if er.RequestID == "" {
		t.Fatalf("missing request_id in %+v", er)
	}
	return er
}
