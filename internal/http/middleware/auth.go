// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file authenticates API callers. In production the API expects an
// HS256 bearer token whose "sub" claim is the user id and whose optional
// "role" claim is mentor or mentee. When no signing secret is configured
// (local development, tests) the caller identity is taken from the
// X-User-ID and X-User-Role headers instead.
//
// The resolved identity is stored in the Gin context under "userID" and
// "userRole" so that logging, rate limiting and idempotency can key on it.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-mentor-match/internal/domain"
)

const (
	ctxKeyUserID   = "userID"
	ctxKeyUserRole = "userRole"

	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// AuthOptions configures Authenticate.
type AuthOptions struct {
	// Secret is the HS256 signing key. Empty enables header identity.
	Secret string
	// Issuer, when set, must match the token's "iss" claim.
	Issuer string
	// Now overrides the clock used for exp/nbf checks.
	Now func() time.Time
}

// Claims is the token payload accepted by Authenticate.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var errNoSubject = errors.New("token has no subject")

// Authenticate resolves the caller identity or aborts with 401.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	if opts.Secret == "" {
		return headerIdentity
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Now != nil {
		parserOpts = append(parserOpts, jwt.WithTimeFunc(opts.Now))
	}
	parser := jwt.NewParser(parserOpts...)
	key := []byte(opts.Secret)

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			// Browsers cannot set headers on websocket upgrades.
			raw = c.Query("access_token")
		}
		if raw == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		claims, err := parseClaims(parser, key, raw)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("token rejected")
			unauthorized(c, "invalid token")
			return
		}

		setIdentity(c, claims.Subject, claims.Role)
		c.Next()
	}
}

func parseClaims(p *jwt.Parser, key []byte, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := p.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil })
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errNoSubject
	}
	return claims, nil
}

func headerIdentity(c *gin.Context) {
	uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
	if uid == "" {
		unauthorized(c, "X-User-ID header required")
		return
	}
	setIdentity(c, uid, c.GetHeader(HeaderUserRole))
	c.Next()
}

func setIdentity(c *gin.Context, uid, role string) {
	c.Set(ctxKeyUserID, uid)
	switch r := domain.Role(strings.ToLower(strings.TrimSpace(role))); r {
	case domain.RoleMentor, domain.RoleMentee:
		c.Set(ctxKeyUserRole, r)
	}
}

func bearerToken(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	abort(c, http.StatusUnauthorized, "unauthorized", msg)
}

// abort ends the chain with the API error envelope. The request id header
// is set by RequestID before any other middleware runs.
func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(HeaderRequestID),
		"code":       code,
		"message":    msg,
	})
}

// UserID returns the authenticated user id, or "" when Authenticate did
// not run.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// UserRole returns the role asserted by the caller's credentials, if any.
func UserRole(c *gin.Context) domain.Role {
	if v, ok := c.Get(ctxKeyUserRole); ok {
		if r, ok := v.(domain.Role); ok {
			return r
		}
	}
	return ""
}

// IssueToken signs an HS256 token for userID that Authenticate accepts.
// Production tokens come from the identity provider.
func IssueToken(secret, issuer, userID string, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
