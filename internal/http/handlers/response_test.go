package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-mentor-match/internal/http/middleware"
)

func envelopeRouter(logs *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	logger := zerolog.New(logs)
	r.Use(func(c *gin.Context) {
		c.Header(middleware.HeaderRequestID, "rid-9")
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/swipe", func(c *gin.Context) {
		_ = c.Error(errors.New("database is locked"))
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not record swipe")
	})
	r.GET("/profile", func(c *gin.Context) {
		Fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
	})
	r.POST("/messages", func(c *gin.Context) {
		ok(c, http.StatusCreated, gin.H{"id": "m1"})
	})
	return r
}

func Test_fail_Envelope(t *testing.T) {
	cases := []struct {
		path, code, msg string
		status          int
		logged          bool
	}{
		{"/swipe", ErrCodeInternal, "could not record swipe", http.StatusInternalServerError, true},
		{"/profile", ErrCodeNotFound, "profile not found", http.StatusNotFound, false},
	}
	for _, tc := range cases {
		var logs bytes.Buffer
		w := httptest.NewRecorder()
		envelopeRouter(&logs).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))

		if w.Code != tc.status {
			t.Fatalf("%s: status=%d", tc.path, w.Code)
		}
		var body ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: json: %v", tc.path, err)
		}
		if body != (ErrorResponse{RequestID: "rid-9", Code: tc.code, Message: tc.msg}) {
			t.Fatalf("%s: body=%+v", tc.path, body)
		}
		if strings.Contains(w.Body.String(), "database is locked") {
			t.Fatalf("%s: cause leaked to client", tc.path)
		}
		gotLog := strings.Contains(logs.String(), `"level":"error"`)
		if gotLog != tc.logged {
			t.Fatalf("%s: logged=%v, logs=%s", tc.path, gotLog, logs.String())
		}
		if tc.logged && !strings.Contains(logs.String(), "database is locked") {
			t.Fatalf("cause missing from log: %s", logs.String())
		}
	}
}

func Test_ok(t *testing.T) {
	w := httptest.NewRecorder()
	envelopeRouter(&bytes.Buffer{}).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/messages", nil))
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), `"id":"m1"`) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func Test_notModified(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ts := time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if notModified(c, "conversations:u1", 2, &ts) {
		t.Fatalf("no If-None-Match must not short-circuit")
	}
	etag := w.Header().Get("ETag")
	want := `W/"conversations:u1:2:` + strconv.FormatInt(ts.UnixNano(), 10) + `"`
	if etag != want {
		t.Fatalf("etag=%q want %q", etag, want)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("If-None-Match", etag)
	if !notModified(c, "conversations:u1", 2, &ts) {
		t.Fatalf("matching tag should short-circuit")
	}
	c.Writer.WriteHeaderNow()
	if w.Code != http.StatusNotModified {
		t.Fatalf("status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	notModified(c, "messages:x", 0, nil)
	if got := w.Header().Get("ETag"); got != `W/"messages:x:0:0"` {
		t.Fatalf("empty etag=%q", got)
	}
}

func Test_newPagination(t *testing.T) {
	p := newPagination(1, 20, 41)
	if p.TotalPages != 3 || !p.HasNext {
		t.Fatalf("%+v", p)
	}
	p = newPagination(3, 20, 41)
	if p.HasNext {
		t.Fatalf("last page has no next: %+v", p)
	}
	p = newPagination(1, 20, 0)
	if p.TotalPages != 0 || p.HasNext {
		t.Fatalf("empty: %+v", p)
	}
}
