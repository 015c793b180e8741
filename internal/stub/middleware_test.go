package stub

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/netpanel/netpanel/clients/go-auth/pkg/metrics"
)

// withSubject injects a claims map so the limiter keys per-user instead of
// per-IP; it also keeps tests isolated from each other's buckets.
func withSubject(sub string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("claims", map[string]interface{}{"sub": sub})
		c.Next()
	}
}

func hit(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddlewareAllowsUnderLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withSubject("mw-under-limit"))
	r.Use(RateLimitMiddleware(10, 2))
	r.GET("/ok", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	before := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))
	require.Equal(t, http.StatusOK, hit(r, "/ok").Code)
	require.Equal(t, http.StatusOK, hit(r, "/ok").Code)
	require.Equal(t, before+2, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory")))
}

func TestRateLimitMiddlewareBlocksWhenExceeded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withSubject("mw-blocks"))
	r.Use(RateLimitMiddleware(0.5, 1))
	r.GET("/limited", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, hit(r, "/limited").Code)

	w := hit(r, "/limited")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))

	// at 0.5 rps a token replenishes after 2s
	time.Sleep(2100 * time.Millisecond)
	require.Equal(t, http.StatusOK, hit(r, "/limited").Code)
}

func TestRateLimitMiddlewareIsolatesSubjects(t *testing.T) {
	gin.SetMode(gin.TestMode)

	build := func(sub string) *gin.Engine {
		r := gin.New()
		r.Use(withSubject(sub))
		r.Use(RateLimitMiddleware(0.5, 1))
		r.GET("/u", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
		return r
	}
	a := build("mw-subject-a")
	b := build("mw-subject-b")

	require.Equal(t, http.StatusOK, hit(a, "/u").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(a, "/u").Code)

	// a different subject has its own bucket
	require.Equal(t, http.StatusOK, hit(b, "/u").Code)
}

func TestRedisRateLimitMiddlewareFixedWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := gin.New()
	r.Use(withSubject("mw-redis"))
	// 0 rps * 60s window + burst 2 = 2 allowed per window; the wide window
	// keeps the test clear of a bucket boundary
	r.Use(RedisRateLimitMiddleware(client, 0, 2, time.Minute))
	r.GET("/w", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, hit(r, "/w").Code)
	require.Equal(t, http.StatusOK, hit(r, "/w").Code)

	w := hit(r, "/w")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRedisRateLimitMiddlewareNilClientFallsBack(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withSubject("mw-redis-fallback"))
	r.Use(RedisRateLimitMiddleware(nil, 0.5, 1, time.Second))
	r.GET("/f", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	require.Equal(t, http.StatusOK, hit(r, "/f").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/f").Code)
}
