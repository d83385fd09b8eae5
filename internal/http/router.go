// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Only /health, /metrics and /swagger are reachable without credentials
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-mentor-match/docs"
	"github.com/tbourn/go-mentor-match/internal/config"
	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/http/handlers"
	"github.com/tbourn/go-mentor-match/internal/http/middleware"
	"github.com/tbourn/go-mentor-match/internal/realtime"
	"github.com/tbourn/go-mentor-match/internal/repo"
	"github.com/tbourn/go-mentor-match/internal/services"
)

// matchRepoShim adapts the repository free functions to the
// services.MatchRepo interface expected by the MatchService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type matchRepoShim struct{}

func (matchRepoShim) UpsertSwipe(ctx context.Context, db *gorm.DB, d *domain.SwipeDecision) error {
	return repo.UpsertSwipe(ctx, db, d)
}

func (matchRepoShim) GetSwipe(ctx context.Context, db *gorm.DB, actorID, targetID string) (*domain.SwipeDecision, error) {
	return repo.GetSwipe(ctx, db, actorID, targetID)
}

func (matchRepoShim) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}

func (matchRepoShim) CreateMatchIfAbsent(ctx context.Context, db *gorm.DB, m *domain.Match) (bool, error) {
	return repo.CreateMatchIfAbsent(ctx, db, m)
}

func (matchRepoShim) GetMatch(ctx context.Context, db *gorm.DB, id string) (*domain.Match, error) {
	return repo.GetMatch(ctx, db, id)
}

func (matchRepoShim) ListMatchesForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Match, error) {
	return repo.ListMatchesForUser(ctx, db, userID)
}

// Services bundles the application services built from a database handle.
type Services struct {
	Broker        *realtime.Broker
	Profiles      *services.ProfileService
	Discovery     *services.DiscoveryService
	Matches       *services.MatchService
	Conversations *services.ConversationService
	Messages      *services.MessageService
}

// NewServices wires the matching core. deck may be nil to disable the
// discovery cache.
func NewServices(db *gorm.DB, deck services.CandidateCache, cfg config.Config) *Services {
	broker := realtime.NewBroker()

	discovery := &services.DiscoveryService{
		DB:                db,
		Cache:             deck,
		CacheTTL:          cfg.Redis.TTL,
		ExcludeLeftSwiped: cfg.Matching.ExcludeLeftSwiped,
		Rank:              cfg.Matching.RankCandidates,
	}
	msgs := &services.MessageService{
		DB:           db,
		Broker:       broker,
		MaxTextRunes: cfg.Matching.MaxMessageRunes,
	}
	convs := &services.ConversationService{DB: db, Broker: broker, Messages: msgs}

	matches := services.NewMatchService(db, matchRepoShim{}, convs)
	matches.Invalidator = discovery
	if cfg.Matching.IntroTemplate != "" {
		matches.IntroTemplate = cfg.Matching.IntroTemplate
	}

	return &Services{
		Broker:        broker,
		Profiles:      &services.ProfileService{DB: db, Decks: discovery},
		Discovery:     discovery,
		Matches:       matches,
		Conversations: convs,
		Messages:      msgs,
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), CORS and security
// headers, health and metrics endpoints, and then mounts the versioned,
// authenticated API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//
// and on the API group:
//  8. Authenticate: resolve the caller (bearer token or dev headers)
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user, bypass on replay)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc *Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.Logger(middleware.LogOptions{
		MaskHeaders: []string{"X-API-Key"},
		LogHeaders:  cfg.LogLevel == "debug",
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (allow all if none configured) and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(handlers.Deps{
		Profiles:        svc.Profiles,
		Discovery:       svc.Discovery,
		Matches:         svc.Matches,
		Conversations:   svc.Conversations,
		Messages:        svc.Messages,
		DB:              db,
		IdempotencyTTL:  cfg.IdempotencyTTL,
		MaxMessageRunes: cfg.Matching.MaxMessageRunes,
		Stream: handlers.StreamOptions{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		},
	})

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		middleware.Authenticate(middleware.AuthOptions{
			Secret: cfg.Auth.JWTSecret,
			Issuer: cfg.Auth.Issuer,
		}),
		middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{MaxLen: 200},
			func(ctx context.Context, userID, convID, key string, now time.Time) (bool, error) {
				rec, err := repo.GetIdempotency(ctx, db, userID, convID, key, now)
				if err != nil || rec == nil {
					return false, nil
				}
				return true, nil
			},
		),
		rl.Handler(),
	)

	// Websocket upgrades hijack the connection, so they stay outside gzip.
	api.GET("/conversations/stream", h.StreamConversations)
	api.GET("/conversations/:id/stream", h.StreamMessages)

	rest := api.Group("", gzip.Gzip(gzip.DefaultCompression))
	{
		// Profiles
		rest.POST("/profiles", h.RegisterProfile)
		rest.GET("/profiles/me", h.GetMyProfile)
		rest.PATCH("/profiles/me", h.UpdateMyProfile)
		rest.GET("/profiles/me/completion", h.GetMyCompletion)
		rest.GET("/profiles/:id", h.GetProfile)

		// Discovery and matching
		rest.GET("/discovery", h.Discover)
		rest.POST("/swipes", h.Swipe)
		rest.GET("/matches", h.ListMatches)

		// Conversations
		rest.GET("/conversations", h.ListConversations)
		rest.POST("/conversations", h.OpenConversation)
		rest.GET("/conversations/:id", h.GetConversation)

		// Messages
		rest.GET("/conversations/:id/messages", h.ListMessages)
		rest.POST("/conversations/:id/messages", h.SendMessage)
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
			middleware.HeaderUserID, middleware.HeaderUserRole, middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = origins
	}
	return cors.New(conf)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
