// Package proxy maintains the process-wide pool of Webshare residential
// proxies. The pool is read-mostly: a background loop refreshes it on an
// interval while callers take the next identity with Next. Callers must
// handle an empty pool (Next returns "").
package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Cap the in-memory list: a full Webshare export can run to hundreds of
// thousands of lines, while a thousand entries give ample rotation.
const maxProxiesInMemory = 1000

const apiListURL = "https://proxy.webshare.io/api/v2/proxy/list/?mode=direct&page_size=100"

type entry struct {
	server   string // http://ip:port
	username string
	password string
}

// Config holds Webshare credentials. Both fields optional; with neither
// set the pool stays empty and strategies run unproxied.
type Config struct {
	DownloadLink string
	APIKey       string
}

// Pool fetches and rotates residential proxies. Thread-safe.
type Pool struct {
	cfg     Config
	client  *http.Client
	apiBase string

	mu      sync.Mutex
	proxies []entry
	index   int
}

// NewPool creates an unloaded pool; call Refresh to populate it.
func NewPool(cfg Config) *Pool {
	return &Pool{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		apiBase: apiListURL,
	}
}

// Refresh fetches a fresh proxy list, preferring the pre-authenticated
// download link over the REST API. Failures leave the pool empty rather
// than erroring: strategies degrade to unproxied operation.
func (p *Pool) Refresh(ctx context.Context) {
	var proxies []entry

	if p.cfg.DownloadLink != "" {
		list, err := p.fetchDownloadLink(ctx)
		if err != nil {
			slog.Warn("Webshare download link failed", "error", err)
		} else {
			proxies = list
		}
	}

	if len(proxies) == 0 && p.cfg.APIKey != "" {
		list, err := p.fetchAPI(ctx)
		if err != nil {
			slog.Warn("Webshare API fallback failed", "error", err)
		} else {
			proxies = list
		}
	}

	if len(proxies) == 0 {
		if p.cfg.DownloadLink == "" && p.cfg.APIKey == "" {
			slog.Info("Webshare not configured, running without residential proxies")
		} else {
			slog.Warn("Webshare proxy list empty, strategies run unproxied")
		}
	} else {
		slog.Info("Webshare proxy pool refreshed", "count", len(proxies))
	}

	p.mu.Lock()
	p.proxies = proxies
	p.index = 0
	p.mu.Unlock()
}

// Loaded reports whether the pool currently holds any proxies.
func (p *Pool) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies) > 0
}

// Next returns the next proxy URL in round-robin order, in the form
// http://user:pass@ip:port, or "" when the pool is empty.
func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return ""
	}
	e := p.proxies[p.index%len(p.proxies)]
	p.index = (p.index + 1) % len(p.proxies)
	hostPort := strings.TrimPrefix(strings.TrimPrefix(e.server, "http://"), "https://")
	return fmt.Sprintf("http://%s:%s@%s", e.username, e.password, hostPort)
}

// RunRefreshLoop refreshes the pool on the given interval until ctx is
// cancelled. The orchestrator never waits on this loop.
func (p *Pool) RunRefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

func (p *Pool) fetchDownloadLink(ctx context.Context) ([]entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.DownloadLink, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download link HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	return parseProxyList(string(body)), nil
}

// parseProxyList parses one proxy per line in ip:port:username:password
// form, sampling down to maxProxiesInMemory when the export is larger.
func parseProxyList(text string) []entry {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > maxProxiesInMemory {
		rand.Shuffle(len(lines), func(i, j int) { lines[i], lines[j] = lines[j], lines[i] })
		lines = lines[:maxProxiesInMemory]
	}

	var proxies []entry
	for _, line := range lines {
		parts := strings.Split(line, ":")
		if len(parts) < 4 || parts[0] == "" || parts[1] == "" || parts[2] == "" || parts[3] == "" {
			continue
		}
		proxies = append(proxies, entry{
			server:   "http://" + parts[0] + ":" + parts[1],
			username: parts[2],
			password: parts[3],
		})
	}
	return proxies
}
