package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeLimiter struct {
	limited bool
	err     error
	keys    []string
}

func (f *fakeLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.limited, f.err
}

func limitedRouter(l RateLimiter) *gin.Engine {
	r := gin.New()
	r.GET("/ping", RateLimit(l, 10, time.Second), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func ping(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_Allows(t *testing.T) {
	l := &fakeLimiter{}
	w := ping(limitedRouter(l))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ip:10.0.0.7"}, l.keys)
}

func TestRateLimit_Limited(t *testing.T) {
	w := ping(limitedRouter(&fakeLimiter{limited: true}))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Too many requests","kind":"rate_limited"}`, w.Body.String())
}

func TestRateLimit_LimiterErrorLetsRequestThrough(t *testing.T) {
	w := ping(limitedRouter(&fakeLimiter{err: errors.New("redis down")}))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_InvalidArgumentsPanic(t *testing.T) {
	assert.Panics(t, func() { RateLimit(nil, 10, time.Second) })
	assert.Panics(t, func() { RateLimit(&fakeLimiter{}, 0, time.Second) })
	assert.Panics(t, func() { RateLimit(&fakeLimiter{}, 10, 0) })
}
