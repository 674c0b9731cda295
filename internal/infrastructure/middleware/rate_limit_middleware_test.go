package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"watchsync/pkg/config"
)

func newLimitedRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.Use(NewHTTPRateLimitMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doGet(router http.Handler, remote string) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remote
	router.ServeHTTP(w, req)
	return w.Code
}

// Test that when rate limiting is disabled, middleware lets all requests through.
func TestHTTPRateLimitMiddleware_Disabled_AllowsRequests(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = false
	router := newLimitedRouter(cfg)

	for i := 0; i < 3; i++ {
		if code := doGet(router, "10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, code)
		}
	}
}

// Test basic per-IP rate limiting behaviour.
func TestHTTPRateLimitMiddleware_Enabled_RateLimited(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1
	cfg.RateLimiting.HTTP.Burst = 1
	router := newLimitedRouter(cfg)

	if code := doGet(router, "10.0.0.1:1234"); code != http.StatusOK {
		t.Fatalf("expected status 200 for first request, got %d", code)
	}
	if code := doGet(router, "10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 for second request, got %d", code)
	}
	// A different client has its own bucket.
	if code := doGet(router, "10.0.0.2:1234"); code != http.StatusOK {
		t.Fatalf("expected status 200 for other client, got %d", code)
	}
}

func TestClientIP_ForwardedList(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := clientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "garbage")
	if got := clientIP(req); got != "127.0.0.1" {
		t.Fatalf("expected remote addr fallback, got %q", got)
	}
}

func TestRateLimiterStore_EvictsIdle(t *testing.T) {
	store := newRateLimiterStore(1, 1)
	start := time.Now()

	store.getLimiter("a", start)
	store.getLimiter("b", start.Add(limiterIdleTTL))
	store.getLimiter("b", start.Add(limiterIdleTTL+time.Minute))

	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.limiters["a"]; ok {
		t.Fatal("expected idle limiter to be evicted")
	}
	if _, ok := store.limiters["b"]; !ok {
		t.Fatal("expected active limiter to be kept")
	}
}
