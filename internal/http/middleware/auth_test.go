package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-mentor-match/internal/domain"
)

const testSecret = "s3cret"

func authRouter(opts AuthOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(opts))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserID(c), "role": string(UserRole(c))})
	})
	return r
}

func doAuth(r *gin.Engine, mutate func(*http.Request)) (int, map[string]any) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	mutate(req)
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func TestAuthenticate_ValidToken(t *testing.T) {
	tok, err := IssueToken(testSecret, "mm", "u1", domain.RoleMentee, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	code, body := doAuth(authRouter(AuthOptions{Secret: testSecret, Issuer: "mm"}), bearer(tok))
	if code != http.StatusOK || body["id"] != "u1" || body["role"] != "mentee" {
		t.Fatalf("code=%d body=%v", code, body)
	}
}

func TestAuthenticate_QueryTokenForWebsockets(t *testing.T) {
	tok, _ := IssueToken(testSecret, "", "u2", "", time.Hour)
	code, body := doAuth(authRouter(AuthOptions{Secret: testSecret}), func(r *http.Request) {
		q := r.URL.Query()
		q.Set("access_token", tok)
		r.URL.RawQuery = q.Encode()
	})
	if code != http.StatusOK || body["id"] != "u2" || body["role"] != "" {
		t.Fatalf("code=%d body=%v", code, body)
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	good := func(mut func(*Claims)) string {
		c := Claims{Role: "mentor", RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "mm",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		if mut != nil {
			mut(&c)
		}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	otherKey, _ := IssueToken("other", "mm", "u1", domain.RoleMentor, time.Hour)

	cases := map[string]func(*http.Request){
		"missing header": func(*http.Request) {},
		"not bearer":     func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
		"empty bearer":   func(r *http.Request) { r.Header.Set("Authorization", "Bearer   ") },
		"garbage":        bearer("not.a.jwt"),
		"wrong key":      bearer(otherKey),
		"alg none":       bearer(none),
		"expired":        bearer(good(func(c *Claims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) })),
		"no expiry":      bearer(good(func(c *Claims) { c.ExpiresAt = nil })),
		"wrong issuer":   bearer(good(func(c *Claims) { c.Issuer = "evil" })),
		"no subject":     bearer(good(func(c *Claims) { c.Subject = " " })),
	}
	r := authRouter(AuthOptions{Secret: testSecret, Issuer: "mm"})
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			code, body := doAuth(r, mutate)
			if code != http.StatusUnauthorized || body["code"] != "unauthorized" {
				t.Fatalf("code=%d body=%v", code, body)
			}
		})
	}
}

func TestAuthenticate_InjectedClock(t *testing.T) {
	tok, _ := IssueToken(testSecret, "", "u1", domain.RoleMentor, time.Hour)
	future := func() time.Time { return time.Now().Add(2 * time.Hour) }
	code, _ := doAuth(authRouter(AuthOptions{Secret: testSecret, Now: future}), bearer(tok))
	if code != http.StatusUnauthorized {
		t.Fatalf("token must be expired under the injected clock, got %d", code)
	}
}

func TestAuthenticate_HeaderIdentityWithoutSecret(t *testing.T) {
	r := authRouter(AuthOptions{})

	code, body := doAuth(r, func(req *http.Request) {
		req.Header.Set(HeaderUserID, " u9 ")
		req.Header.Set(HeaderUserRole, "MENTOR")
	})
	if code != http.StatusOK || body["id"] != "u9" || body["role"] != "mentor" {
		t.Fatalf("code=%d body=%v", code, body)
	}

	_, body = doAuth(r, func(req *http.Request) {
		req.Header.Set(HeaderUserID, "u9")
		req.Header.Set(HeaderUserRole, "admin")
	})
	if body["role"] != "" {
		t.Fatalf("unknown roles must be dropped, got %v", body["role"])
	}

	if code, _ := doAuth(r, func(*http.Request) {}); code != http.StatusUnauthorized {
		t.Fatalf("missing X-User-ID must be 401, got %d", code)
	}
}

func TestUserID_UserRole_Absent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if UserID(c) != "" || UserRole(c) != "" {
		t.Fatalf("expected empty identity")
	}
}
