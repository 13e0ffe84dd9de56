package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowPerKey(t *testing.T) {
	l := New(Config{Rate: 0.001, Burst: 2})
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "buckets are independent")
	assert.Equal(t, 2, l.Len())
}

func TestBucketRefills(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(Config{Rate: 1, Burst: 1})
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))
	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
}

func TestIdleBucketsAreDropped(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(Config{Rate: 1, Burst: 1, MaxAge: time.Minute})
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	require.Equal(t, 2, l.Len())

	now = now.Add(2 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Len())
}

func TestDefaults(t *testing.T) {
	l := New(Config{Rate: 1})
	assert.Equal(t, 1, l.config.Burst)
	assert.Equal(t, 5*time.Minute, l.config.MaxAge)

	cfg := DefaultLoginConfig()
	assert.Positive(t, cfg.Rate)
	assert.Greater(t, cfg.Burst, 1)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := New(Config{Rate: 0.001, Burst: 1})
	engine := gin.New()
	engine.POST("/login", l.Middleware(func(c *gin.Context) string { return c.GetHeader("X-User") }), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("alice").Code)
	rejected := send("alice")
	assert.Equal(t, http.StatusTooManyRequests, rejected.Code)
	assert.Equal(t, "1", rejected.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"reason":"rate limit exceeded, please try again later"}`, rejected.Body.String())
	assert.Equal(t, http.StatusOK, send("bob").Code)
}

func TestMiddlewareDefaultsToClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := New(Config{Rate: 0.001, Burst: 1})
	engine := gin.New()
	engine.GET("/", l.Middleware(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
