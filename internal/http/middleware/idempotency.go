// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on message sends. When a
// stored result exists for (user, conversation, key) the request is marked
// as a replay: the handler answers with the original message and the rate
// limiter lets it through.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemMaxLen = 200
)

var idemKeyAlphabet = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyOptions configures IdempotencyValidator. Zero values select
// a 200 byte limit, the URL-safe alphabet above and the "id" route param.
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
	Param   string
}

// IdempotencyLookup reports whether an unexpired result is stored for
// (userID, conversationID, key).
type IdempotencyLookup func(ctx context.Context, userID, conversationID, key string, now time.Time) (bool, error)

type idempotencyGuard struct {
	maxLen  int
	pattern *regexp.Regexp
	param   string
	lookup  IdempotencyLookup
}

func (g idempotencyGuard) valid(key string) bool {
	return len(key) <= g.maxLen && g.pattern.MatchString(key)
}

// replay asks the store about key. A failing lookup is logged and treated
// as a first attempt.
func (g idempotencyGuard) replay(c *gin.Context, key string) bool {
	uid := UserID(c)
	if g.lookup == nil || uid == "" {
		return false
	}
	found, err := g.lookup(c.Request.Context(), uid, c.Param(g.param), key, time.Now().UTC())
	if err != nil {
		LoggerFrom(c).Warn().Err(err).Str("conversation_id", c.Param(g.param)).Msg("idempotency lookup failed")
		return false
	}
	return found
}

// IdempotencyValidator rejects malformed keys with 400 and marks replays.
// Requests without the header pass through untouched.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	g := idempotencyGuard{maxLen: opts.MaxLen, pattern: opts.Pattern, param: opts.Param, lookup: lookup}
	if g.maxLen <= 0 {
		g.maxLen = defaultIdemMaxLen
	}
	if g.pattern == nil {
		g.pattern = idemKeyAlphabet
	}
	if g.param == "" {
		g.param = "id"
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		switch {
		case key == "":
		case !g.valid(key):
			abort(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		default:
			c.Set(ctxKeyIdemKey, key)
			if g.replay(c, key) {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

// GetIdempotencyKey returns the key accepted by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	key := c.GetString(ctxKeyIdemKey)
	return key, key != ""
}

// IsReplay reports whether a stored result exists for this request's key.
func IsReplay(c *gin.Context) bool { return c.GetBool(ctxKeyIdemReplay) }
