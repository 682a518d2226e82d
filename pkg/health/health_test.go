package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(err error) CheckFunc {
	return func(context.Context) error { return err }
}

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func runProbes(h *Health, times int) {
	probes := append(append([]*probe{}, h.liveness...), h.readiness...)
	for range times {
		runAll(context.Background(), probes)
	}
}

func TestFailureThreshold(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, failing(errors.New("down")))
	h.SetReady(true)

	// Two consecutive failures stay healthy.
	runProbes(h, 2)
	assert.True(t, h.IsReady())

	// The third flips it.
	runProbes(h, 1)
	assert.False(t, h.IsReady())
}

func TestRecovery(t *testing.T) {
	var err error
	h := New()
	h.AddReadinessCheck("db", time.Second, func(context.Context) error { return err })
	h.SetReady(true)

	err = errors.New("down")
	runProbes(h, 3)
	require.False(t, h.IsReady())

	err = nil
	runProbes(h, 1)
	assert.True(t, h.IsReady())
}

func TestReadinessGate(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, passing())
	runProbes(h, 1)

	assert.False(t, h.IsReady(), "not ready before SetReady")

	h.SetReady(true)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady(), "drained during shutdown")
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("goroutines", time.Second, passing())
		runProbes(h, 1)

		rec := httptest.NewRecorder()
		h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("unhealthy lists failing checks", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("goroutines", time.Second, failing(errors.New("too many")))
		runProbes(h, failureThreshold)

		rec := httptest.NewRecorder()
		h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "too many", resp.Checks["goroutines"])
	})
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, passing())
	runProbes(h, 1)

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "_readiness")

	h.SetReady(true)
	rec = httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", 100*time.Millisecond, passing())
	h.SetReady(true)

	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	require.Eventually(t, h.IsReady, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop() // idempotent
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
