// Package control wires configuration into the running application and
// manages its lifecycle.
package control

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vidfetch/vidfetch/internal/api"
	"github.com/vidfetch/vidfetch/internal/core/config"
	"github.com/vidfetch/vidfetch/internal/fallback"
	"github.com/vidfetch/vidfetch/internal/infra/proxy"
	redisclient "github.com/vidfetch/vidfetch/internal/infra/redis"
	"github.com/vidfetch/vidfetch/internal/infra/storage"
	"github.com/vidfetch/vidfetch/internal/infra/tracking"
	"github.com/vidfetch/vidfetch/internal/metrics"
	"github.com/vidfetch/vidfetch/internal/strategy/cobalt"
	"github.com/vidfetch/vidfetch/internal/strategy/invidious"
	"github.com/vidfetch/vidfetch/internal/strategy/native"
	"github.com/vidfetch/vidfetch/internal/strategy/piped"
	"github.com/vidfetch/vidfetch/internal/strategy/streamlink"
	"github.com/vidfetch/vidfetch/internal/strategy/ytdlp"
)

// App is the assembled application.
type App struct {
	cfg         config.AppConfig
	server      *api.Server
	store       *storage.Manager
	sweeper     *storage.Sweeper
	pool        *proxy.Pool
	db          *tracking.DB
	redisClient *redisclient.Client
	cookieFile  string
	log         *slog.Logger
}

// NewApp initializes all dependencies from configuration.
func NewApp(cfg config.AppConfig) (*App, error) {
	log := slog.Default()

	store, err := storage.NewManager(cfg.Storage.Dir, cfg.Storage.FileTTL())
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	cookieFile, err := materializeCookies(cfg.Strategies.CookiesB64, store.Root())
	if err != nil {
		log.Warn("Failed to write cookie jar, cookie strategies disabled", "error", err)
		cookieFile = ""
	}

	var db *tracking.DB
	var trk *tracking.Tracker
	var tracker fallback.Tracker
	if cfg.Database.URL != "" {
		db, err = tracking.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate("migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		trk = tracking.NewTracker(db, log)
		tracker = trk
		log.Info("Using PostgreSQL attempt tracking")
	}

	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, rate limits are per-replica", "error", err)
			redisClient = nil
		}
	}
	limiter := redisclient.NewRateLimiter(cfg.Server.RateLimitRPM, redisClient)

	var pool *proxy.Pool
	var proxies fallback.ProxySource
	if cfg.Proxy.DownloadLink != "" || cfg.Proxy.APIKey != "" {
		pool = proxy.NewPool(proxy.Config{
			DownloadLink: cfg.Proxy.DownloadLink,
			APIKey:       cfg.Proxy.APIKey,
		})
		pool.Refresh(context.Background())
		proxies = pool
	}

	ytAdapter := ytdlp.New(ytdlp.Options{
		CookiesFile: cookieFile,
		POToken:     cfg.Strategies.POToken,
		VisitorData: cfg.Strategies.VisitorData,
	})

	avail := fallback.Availability{
		YTDLPBinary:      ytdlp.Available(),
		StreamlinkBinary: streamlink.Available(),
		Cookies:          cookieFile != "",
	}
	log.Info("strategy availability",
		"yt-dlp", avail.YTDLPBinary, "streamlink", avail.StreamlinkBinary, "cookies", avail.Cookies)

	catalog := fallback.NewCatalog(cfg.Strategies, fallback.Adapters{
		YTDLP:      ytAdapter,
		Cobalt:     cobalt.New(),
		Invidious:  invidious.New(),
		Piped:      piped.New(),
		Native:     native.New(),
		Streamlink: streamlink.New(),
	}, avail, proxies)

	orch := fallback.NewOrchestrator(catalog, fallback.NewRunner(log), tracker, log)

	var prober api.Prober
	if avail.YTDLPBinary {
		prober = ytAdapter
	}

	server := api.NewServer(cfg, orch, prober, store, limiter, log)
	if trk != nil {
		server.SetStatsSource(trk)
	}
	sweeper := storage.NewSweeper(store, cfg.Storage.CleanupInterval(), log)

	return &App{
		cfg:         cfg,
		server:      server,
		store:       store,
		sweeper:     sweeper,
		pool:        pool,
		db:          db,
		redisClient: redisClient,
		cookieFile:  cookieFile,
		log:         log,
	}, nil
}

// Start launches the background loops and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	go a.sweeper.Run(ctx)

	if a.pool != nil {
		go a.pool.RunRefreshLoop(ctx, a.cfg.Proxy.RefreshInterval())
	}

	go a.runDiskMetrics(ctx)

	go func() {
		if err := a.server.Start(); err != nil {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts everything down.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping...")

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
	if a.cookieFile != "" {
		_ = os.Remove(a.cookieFile)
	}

	return a.server.Shutdown(ctx)
}

func (a *App) runDiskMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pct, err := a.store.DiskUsagePercent(); err == nil {
				metrics.DiskUsagePercent.Set(pct)
			}
		}
	}
}

// materializeCookies decodes the configured base64 cookie jar to a file
// next to the download root so yt-dlp can read it.
func materializeCookies(b64, root string) (string, error) {
	if b64 == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("invalid cookie material: %w", err)
	}
	path := filepath.Join(root, ".cookies.txt")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
