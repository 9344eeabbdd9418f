package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
)

// memoryRedis implements the commands the idempotency middleware uses.
type memoryRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	data map[string]string
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: make(map[string]string)}
}

func (m *memoryRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryRedis) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = stringValue(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) SetNX(ctx context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = stringValue(value)
	return redis.NewBoolResult(true, nil)
}

func (m *memoryRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func stringValue(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

func withCaller(c *gin.Context, caller domain.Caller) {
	c.Set(callerContextKey, caller)
}

func idempotentRouter(store redis.Cmdable, calls *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/deliveries", IdempotencyMiddleware(store), func(c *gin.Context) {
		*calls++
		body, _ := io.ReadAll(c.Request.Body)
		c.Data(http.StatusCreated, "application/json", body)
	})
	return r
}

func post(r *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/deliveries", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyHeader, key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyCacheKey_ScopedToCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/deliveries", nil)

	assert.Equal(t, "idempotency:anonymous:POST:/v1/deliveries:k1", idempotencyCacheKey(c, "k1"))

	withCaller(c, domain.Caller{ID: "seller-1", Role: domain.RoleSeller})
	assert.Equal(t, "idempotency:seller-1:POST:/v1/deliveries:k1", idempotencyCacheKey(c, "k1"))

	assert.True(t, isMutating(http.MethodPatch))
	assert.False(t, isMutating(http.MethodGet))
}

func TestIdempotency_ReplaysSameBody(t *testing.T) {
	calls := 0
	r := idempotentRouter(newMemoryRedis(), &calls)

	first := post(r, "k1", `{"weight":2.5}`)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, `{"weight":2.5}`, first.Body.String(), "handler sees the original body")

	again := post(r, "k1", `{"weight":2.5}`)
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get(idempotencyReplayHeader))
	assert.Equal(t, first.Body.String(), again.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotency_RejectsKeyReuseWithDifferentBody(t *testing.T) {
	calls := 0
	r := idempotentRouter(newMemoryRedis(), &calls)

	require.Equal(t, http.StatusCreated, post(r, "k1", `{"weight":2.5}`).Code)

	w := post(r, "k1", `{"weight":40}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, w.Header().Get(idempotencyReplayHeader))
	assert.Equal(t, 1, calls)

	// A fresh key with the new body goes through.
	assert.Equal(t, http.StatusCreated, post(r, "k2", `{"weight":40}`).Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_InFlightConflict(t *testing.T) {
	store := newMemoryRedis()
	calls := 0
	r := idempotentRouter(store, &calls)

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/deliveries", nil)
	store.SetNX(context.Background(), idempotencyCacheKey(c, "k1")+":inflight", 1, time.Minute)

	w := post(r, "k1", `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, calls)
}
