// Package api is the HTTP surface: the download endpoint in front of
// the fallback engine, file serving for completed downloads, probing,
// and operational endpoints.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidfetch/vidfetch/internal/core/config"
	"github.com/vidfetch/vidfetch/internal/core/domain"
	"github.com/vidfetch/vidfetch/internal/core/faults"
	"github.com/vidfetch/vidfetch/internal/fallback"
	redisclient "github.com/vidfetch/vidfetch/internal/infra/redis"
	"github.com/vidfetch/vidfetch/internal/infra/storage"
	"github.com/vidfetch/vidfetch/internal/infra/tracking"
	"github.com/vidfetch/vidfetch/internal/strategy"
)

// Downloader runs the fallback engine for one job.
type Downloader interface {
	Run(ctx context.Context, job domain.DownloadJob) (*fallback.Result, *faults.Detail)
	Strategies() []strategy.Descriptor
}

// Prober fetches metadata without downloading.
type Prober interface {
	Probe(ctx context.Context, sourceURL string) (domain.VideoMetadata, error)
}

// StatsSource reports per-strategy attempt aggregates for health output.
type StatsSource interface {
	Stats(ctx context.Context, since time.Time) ([]tracking.StrategyStats, error)
}

// Server holds the HTTP surface and its dependencies.
type Server struct {
	cfg        config.AppConfig
	downloader Downloader
	prober     Prober
	store      *storage.Manager
	limiter    *redisclient.RateLimiter
	stats      StatsSource
	log        *slog.Logger
	started    time.Time

	counters struct {
		total  atomic.Int64
		active atomic.Int64
		failed atomic.Int64
	}

	httpServer *http.Server
}

// Version is reported by the health endpoint.
const Version = "1.2.0"

func NewServer(cfg config.AppConfig, downloader Downloader, prober Prober, store *storage.Manager, limiter *redisclient.RateLimiter, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		downloader: downloader,
		prober:     prober,
		store:      store,
		limiter:    limiter,
		log:        log,
		started:    time.Now(),
	}
}

// SetStatsSource attaches the optional attempt-stats backend.
func (s *Server) SetStatsSource(src StatsSource) { s.stats = src }

// Router assembles all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/download", s.handleDownload)
		r.Post("/info", s.handleInfo)
		r.Get("/strategies", s.handleStrategies)
		r.Get("/health", s.handleHealth)
	})

	r.Get("/downloads/{jobID}/{filename}", s.handleFile)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start begins serving and blocks until the listener fails.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// rateLimit rejects requests over the per-IP quota with a Retry-After.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			ip := redisclient.GetClientIP(r)
			if ok, _ := s.limiter.Allow(ip); !ok {
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorBody{
					Success: false,
					Error: faults.Detail{
						Code:              faults.RateLimited,
						Message:           "Too many requests",
						IsTransient:       true,
						RetryAfterSeconds: 60,
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
