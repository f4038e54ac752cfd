package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(context.Context) error { return nil }
}

func failingCheck(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func get(t *testing.T, h http.Handler, path string) (int, statusResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func router(h *Health) http.Handler {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

func TestLive_AllPassing(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passingCheck())
	h.AddLivenessCheck("gc", time.Second, passingCheck())

	code, body := get(t, router(h), "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, map[string]string{"goroutines": "ok", "gc": "ok"}, body.Checks)
}

func TestLive_FailureThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("reconcile", time.Second, failingCheck("last run 2h ago"))
	r := router(h)

	runN(h.liveness[0], 2)
	code, _ := get(t, r, "/livez")
	assert.Equal(t, http.StatusOK, code, "two failures stay below the threshold")

	runN(h.liveness[0], 1)
	code, body := get(t, r, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "last run 2h ago", body.Checks["reconcile"])
}

func TestWithThresholds(t *testing.T) {
	h := New()
	h.AddLivenessCheck("strict", time.Second, failingCheck("down"), WithThresholds(1, 2))
	c := h.liveness[0]

	runN(c, 1)
	assert.False(t, c.isHealthy())

	c.fn = passingCheck()
	runN(c, 1)
	assert.False(t, c.isHealthy(), "needs two successes")
	runN(c, 1)
	assert.True(t, c.isHealthy())
}

func TestReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())
	h.AddReadinessCheck("redis", time.Second, failingCheck("connection refused"))
	r := router(h)

	code, body := get(t, r, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, notReadyKey)

	h.SetReady(true)
	code, _ = get(t, r, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	runN(h.readiness[1], 3)
	code, body = get(t, r, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
	assert.False(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestCheckRecovery(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	c := h.liveness[0]

	runN(c, 3)
	assert.False(t, c.isHealthy())
	assert.EqualError(t, c.lastError(), "down")

	failing = false
	runN(c, 1)
	assert.True(t, c.isHealthy())
	assert.NoError(t, c.lastError())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, failingCheck("err"))
	h.AddReadinessCheck("ready", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)

	r := router(h)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				get(t, r, "/livez")
				get(t, r, "/readyz")
			}
		}()
	}
	wg.Wait()

	h.Stop()
	h.Stop()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, PingCheck(pinger{})(ctx))
	assert.ErrorContains(t, PingCheck(pinger{err: errors.New("refused")})(ctx), "refused")

	assert.NoError(t, GoroutineCountCheck(100000)(ctx))
	assert.ErrorContains(t, GoroutineCountCheck(0)(ctx), "exceeds threshold")

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))
}
