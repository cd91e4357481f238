package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vocalis-app/vocalis/internal/log"
)

// DiscoveryConfig describes where and how to look for a server.
type DiscoveryConfig struct {
	// Candidates are base URLs to probe, e.g. "http://10.0.0.5:3001".
	Candidates []string
	// Fallback is returned when no candidate answers. Empty means
	// discovery failure is an error instead.
	Fallback string
	// ProbeTimeout bounds one health probe.
	ProbeTimeout time.Duration
	// OverallTimeout caps a whole discovery round across all candidates.
	OverallTimeout time.Duration
	// TTL is how long a discovered base URL is trusted without a recheck.
	TTL time.Duration
}

func (c *DiscoveryConfig) withDefaults() {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 3 * time.Second
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = 6 * time.Second
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
}

// Discovery finds a reachable server by probing candidate base URLs in
// parallel and caching the winner. All state lives on the value, so two
// independent Discovery instances never interfere.
type Discovery struct {
	cfg  DiscoveryConfig
	http *http.Client

	group singleflight.Group

	mu       sync.Mutex
	cached   string
	cachedAt time.Time
}

// NewDiscovery creates a Discovery over the given candidates. httpClient
// may be nil; per-probe timeouts come from the config either way.
func NewDiscovery(cfg DiscoveryConfig, httpClient *http.Client) *Discovery {
	cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Discovery{cfg: cfg, http: httpClient}
}

// BaseURL returns a base URL believed reachable. A fresh cached entry is
// revalidated with a single probe before being trusted; on failure the
// entry is evicted and a full discovery round runs. Concurrent callers
// share one round instead of racing their own.
func (d *Discovery) BaseURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	cached := d.cached
	fresh := cached != "" && time.Since(d.cachedAt) < d.cfg.TTL
	d.mu.Unlock()

	if fresh {
		if d.probe(ctx, cached) {
			return cached, nil
		}
		d.evict(cached)
	}

	return d.discover(ctx)
}

// Refresh drops the cached base URL and runs a fresh discovery round.
func (d *Discovery) Refresh(ctx context.Context) (string, error) {
	d.mu.Lock()
	d.cached = ""
	d.mu.Unlock()
	return d.discover(ctx)
}

func (d *Discovery) evict(base string) {
	d.mu.Lock()
	if d.cached == base {
		d.cached = ""
	}
	d.mu.Unlock()
}

// discover probes every candidate in parallel and takes the first that
// answers healthy. In-flight rounds are shared via singleflight.
func (d *Discovery) discover(ctx context.Context) (string, error) {
	v, err, _ := d.group.Do("discover", func() (any, error) {
		return d.fanOut(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (d *Discovery) fanOut(ctx context.Context) (string, error) {
	logger := log.WithComponent("client.discovery")

	ctx, cancel := context.WithTimeout(ctx, d.cfg.OverallTimeout)
	defer cancel()

	winners := make(chan string, len(d.cfg.Candidates))
	g, gctx := errgroup.WithContext(ctx)
	for _, candidate := range d.cfg.Candidates {
		candidate := candidate
		g.Go(func() error {
			if d.probe(gctx, candidate) {
				winners <- candidate
				cancel() // first healthy host wins, stop the rest
			}
			return nil
		})
	}
	_ = g.Wait()
	close(winners)

	if base, ok := <-winners; ok && base != "" {
		d.mu.Lock()
		d.cached = base
		d.cachedAt = time.Now()
		d.mu.Unlock()
		logger.Info().
			Str(log.FieldEvent, "discovery.found").
			Str(log.FieldBaseURL, base).
			Msg("discovered reachable server")
		return base, nil
	}

	if d.cfg.Fallback != "" {
		logger.Warn().
			Str(log.FieldEvent, "discovery.fallback").
			Str(log.FieldBaseURL, d.cfg.Fallback).
			Msg("no candidate answered, using fallback")
		return d.cfg.Fallback, nil
	}
	return "", fmt.Errorf("%w: probed %d candidates", ErrUnavailable, len(d.cfg.Candidates))
}

// probe checks base's health endpoint. Healthy means HTTP 200 with a JSON
// body whose "status" field is exactly "ok"; that is the wire contract
// with the server's health handler.
func (d *Discovery) probe(ctx context.Context, base string) bool {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Status == "ok"
}
