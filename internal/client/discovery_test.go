package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestDiscoveryLeavesNoGoroutinesBehind(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	healthy := healthyServer(t)
	starting := unhealthyServer(t, `{"status":"starting"}`)

	httpClient := &http.Client{}
	d := NewDiscovery(DiscoveryConfig{
		Candidates:     []string{starting.URL, healthy.URL, "http://192.0.2.1:9"},
		ProbeTimeout:   500 * time.Millisecond,
		OverallTimeout: 2 * time.Second,
	}, httpClient)

	base, err := d.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, healthy.URL, base)

	healthy.Close()
	starting.Close()
	httpClient.CloseIdleConnections()
}

func healthyServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func unhealthyServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoveryFindsOnlyHealthyCandidate(t *testing.T) {
	healthy := healthyServer(t)
	starting := unhealthyServer(t, `{"status":"starting"}`)

	d := NewDiscovery(DiscoveryConfig{
		Candidates: []string{
			"http://192.0.2.1:9", // unreachable, TEST-NET address
			starting.URL,
			healthy.URL,
		},
		ProbeTimeout:   500 * time.Millisecond,
		OverallTimeout: 2 * time.Second,
	}, nil)

	base, err := d.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, healthy.URL, base)
}

func TestDiscoveryRejectsNonOkStatus(t *testing.T) {
	degraded := unhealthyServer(t, `{"status":"degraded"}`)

	d := NewDiscovery(DiscoveryConfig{
		Candidates:     []string{degraded.URL},
		ProbeTimeout:   500 * time.Millisecond,
		OverallTimeout: time.Second,
	}, nil)

	_, err := d.BaseURL(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDiscoveryFallback(t *testing.T) {
	d := NewDiscovery(DiscoveryConfig{
		Candidates:     []string{"http://192.0.2.1:9"},
		Fallback:       "http://fallback.local:3001",
		ProbeTimeout:   200 * time.Millisecond,
		OverallTimeout: time.Second,
	}, nil)

	base, err := d.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://fallback.local:3001", base)
}

func TestDiscoveryCachesWinner(t *testing.T) {
	var probes atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	d := NewDiscovery(DiscoveryConfig{
		Candidates:     []string{srv.URL},
		ProbeTimeout:   500 * time.Millisecond,
		OverallTimeout: time.Second,
		TTL:            time.Minute,
	}, nil)

	base, err := d.BaseURL(context.Background())
	require.NoError(t, err)
	afterDiscovery := probes.Load()

	// a cached read revalidates with exactly one probe, no fan-out
	again, err := d.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, base, again)
	assert.Equal(t, afterDiscovery+1, probes.Load())
}

func TestDiscoveryEvictsDeadCachedHost(t *testing.T) {
	dying := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	healthy := healthyServer(t)

	d := NewDiscovery(DiscoveryConfig{
		Candidates:     []string{dying.URL, healthy.URL},
		ProbeTimeout:   500 * time.Millisecond,
		OverallTimeout: 2 * time.Second,
		TTL:            time.Minute,
	}, nil)

	first, err := d.BaseURL(context.Background())
	require.NoError(t, err)

	dying.Close()
	if first != dying.URL {
		// the healthy host won the first round, nothing to evict; force
		// the cache onto the dead one to exercise revalidation
		d.mu.Lock()
		d.cached = dying.URL
		d.cachedAt = time.Now()
		d.mu.Unlock()
	}

	base, err := d.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, healthy.URL, base, "dead cached host must be replaced")
}

func TestDiscoveryRefreshRunsNewRound(t *testing.T) {
	healthy := healthyServer(t)

	d := NewDiscovery(DiscoveryConfig{
		Candidates:     []string{healthy.URL},
		ProbeTimeout:   500 * time.Millisecond,
		OverallTimeout: time.Second,
		TTL:            time.Minute,
	}, nil)

	_, err := d.BaseURL(context.Background())
	require.NoError(t, err)

	base, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, healthy.URL, base)
}

func TestDiscoveryNoCandidatesNoFallback(t *testing.T) {
	d := NewDiscovery(DiscoveryConfig{}, nil)

	_, err := d.BaseURL(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDiscoveryHonoursOverallTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	d := NewDiscovery(DiscoveryConfig{
		Candidates:     []string{slow.URL},
		ProbeTimeout:   10 * time.Second,
		OverallTimeout: 300 * time.Millisecond,
	}, nil)

	start := time.Now()
	_, err := d.BaseURL(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 3*time.Second, "round must stop at the overall timeout")
}
