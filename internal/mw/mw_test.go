package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, target, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestCache(t *testing.T) {
	calls := 0
	r := gin.New()
	r.Use(Cache(cache.New(time.Minute, time.Minute), time.Minute))
	r.GET("/daily", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/broken", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	r.POST("/daily", func(c *gin.Context) {
		calls++
		c.Status(http.StatusNoContent)
	})

	first := serve(r, http.MethodGet, "/daily?days=7")
	assert.Equal(t, "MISS", first.Header().Get(CacheHeader))
	assert.JSONEq(t, `{"calls":1}`, first.Body.String())

	second := serve(r, http.MethodGet, "/daily?days=7")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get(CacheHeader))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"calls":1}`, second.Body.String())

	other := serve(r, http.MethodGet, "/daily?days=30")
	assert.JSONEq(t, `{"calls":2}`, other.Body.String(), "the query string is part of the key")

	serve(r, http.MethodGet, "/broken")
	broken := serve(r, http.MethodGet, "/broken")
	assert.Equal(t, http.StatusInternalServerError, broken.Code)
	assert.Equal(t, "MISS", broken.Header().Get(CacheHeader), "errors are not cached")

	post := serve(r, http.MethodPost, "/daily")
	assert.Equal(t, http.StatusNoContent, post.Code)
	assert.Empty(t, post.Header().Get(CacheHeader))
	assert.Equal(t, 5, calls)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(1, 2))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ping").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ping").Code)

	limited := serve(r, http.MethodGet, "/ping")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.JSONEq(t, `{"error":"too many requests"}`, limited.Body.String())
}

func TestIPRateLimiter_PerIP(t *testing.T) {
	l := NewIPRateLimiter(1, 1, time.Minute)

	assert.True(t, l.GetLimiter("192.0.2.1").Allow())
	assert.False(t, l.GetLimiter("192.0.2.1").Allow())
	assert.True(t, l.GetLimiter("192.0.2.2").Allow())
	assert.Same(t, l.GetLimiter("192.0.2.1"), l.GetLimiter("192.0.2.1"))
	assert.Equal(t, 2, l.Len())
}

func TestIPRateLimiter_Expiry(t *testing.T) {
	l := NewIPRateLimiter(1, 1, 20*time.Millisecond)

	first := l.GetLimiter("192.0.2.1")
	require.True(t, first.Allow())

	time.Sleep(40 * time.Millisecond)
	assert.NotSame(t, first, l.GetLimiter("192.0.2.1"), "an idle bucket is replaced")
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(r, http.MethodGet, "/ok")
	serve(r, http.MethodGet, "/bad")
	serve(r, http.MethodGet, "/fail")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/bad", entries[1].ContextMap()["path"])
	assert.Equal(t, int64(http.StatusBadRequest), entries[1].ContextMap()["status"])
	assert.Len(t, entries[0].ContextMap()["request_id"], 36)
}

func TestLogger_RequestID(t *testing.T) {
	r := gin.New()
	r.Use(Logger(zap.NewNop()))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := serve(r, http.MethodGet, "/ok")
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
