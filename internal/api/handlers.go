package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vidfetch/vidfetch/internal/core/domain"
	"github.com/vidfetch/vidfetch/internal/core/faults"
)

type downloadRequest struct {
	VideoURL       string `json:"video_url"`
	JobID          string `json:"job_id,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Format         string `json:"format,omitempty"`
	PreferBase64   bool   `json:"prefer_base64,omitempty"`
	OnlyStrategy   int    `json:"only_strategy,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

type downloadResponse struct {
	Success     bool                 `json:"success"`
	JobID       string               `json:"job_id"`
	Strategy    string               `json:"strategy"`
	Method      string               `json:"method"`
	Metadata    domain.VideoMetadata `json:"metadata"`
	VideoBase64 string               `json:"video_base64,omitempty"`
	DownloadURL string               `json:"download_url,omitempty"`
	ExpiresAt   string               `json:"expires_at,omitempty"`
}

// jobIDPattern bounds caller-chosen job IDs to path-safe names.
var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type errorBody struct {
	Success bool          `json:"success"`
	Error   faults.Detail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeFailure(w http.ResponseWriter, detail faults.Detail) {
	status := http.StatusInternalServerError
	if !detail.IsTransient {
		status = http.StatusBadRequest
	}
	if detail.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", detail.RetryAfterSeconds))
	}
	writeJSON(w, status, errorBody{Success: false, Error: detail})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Success: false,
		Error:   faults.Detail{Code: faults.InvalidURL, Message: msg, IsTransient: false},
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.VideoURL == "" {
		badRequest(w, "video_url is required")
		return
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	} else if !jobIDPattern.MatchString(jobID) {
		badRequest(w, "invalid job_id")
		return
	}
	workspace, err := s.store.JobDir(jobID)
	if err != nil {
		s.log.Error("failed to create workspace", "job", jobID, "error", err)
		writeFailure(w, faults.Classify("disk error: "+err.Error()))
		return
	}

	format := req.Format
	if format == "" {
		format = s.cfg.Download.DefaultFormat
	}
	quality := req.Quality
	if quality == "" {
		quality = s.cfg.Download.DefaultQuality
	}
	deadline := s.cfg.Download.DefaultTimeout()
	if req.TimeoutSeconds > 0 {
		deadline = time.Duration(req.TimeoutSeconds) * time.Second
	}

	job := domain.DownloadJob{
		ID:           jobID,
		SourceURL:    req.VideoURL,
		Quality:      domain.ParseQuality(quality),
		Format:       format,
		Deadline:     deadline,
		Workspace:    workspace,
		OnlyStrategy: req.OnlyStrategy,
	}

	s.counters.active.Add(1)
	result, detail := s.downloader.Run(r.Context(), job)
	s.counters.active.Add(-1)
	s.counters.total.Add(1)
	if detail != nil {
		s.counters.failed.Add(1)
		_ = s.store.Purge(jobID)
		writeFailure(w, *detail)
		return
	}

	resp := downloadResponse{
		Success:  true,
		JobID:    jobID,
		Strategy: result.Strategy,
		Metadata: result.Metadata,
	}

	if req.PreferBase64 && result.Metadata.SizeBytes <= s.cfg.Download.MaxInlineBytes {
		data, err := os.ReadFile(result.File)
		if err != nil {
			s.log.Error("failed to read output for inline response", "job", jobID, "error", err)
			writeFailure(w, faults.Classify("disk error: "+err.Error()))
			return
		}
		resp.Method = "base64"
		resp.VideoBase64 = base64.StdEncoding.EncodeToString(data)
		_ = s.store.Purge(jobID)
	} else {
		// The winning strategy decides the extension: streamlink writes a
		// transport stream and yt-dlp may land on a container other than
		// the requested one, so the URL must point at the real file.
		resp.Method = "url"
		resp.DownloadURL = fmt.Sprintf("/downloads/%s/%s", jobID, filepath.Base(result.File))
		resp.ExpiresAt = time.Now().Add(s.store.TTL()).UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	filename := chi.URLParam(r, "filename")

	path, ok := s.store.Lookup(jobID, filename)
	if !ok {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if time.Since(info.ModTime()) > s.store.TTL() {
		_ = s.store.Purge(jobID)
		http.Error(w, "download expired", http.StatusGone)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

type infoRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req infoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		badRequest(w, "url is required")
		return
	}
	if s.prober == nil {
		writeFailure(w, faults.Classify("metadata probing is not available on this server"))
		return
	}

	meta, err := s.prober.Probe(r.Context(), req.URL)
	if err != nil {
		writeFailure(w, faults.Classify(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "metadata": meta})
}

type strategyEntry struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	descriptors := s.downloader.Strategies()
	entries := make([]strategyEntry, 0, len(descriptors))
	for i, d := range descriptors {
		entries = append(entries, strategyEntry{Number: i + 1, Name: d.Name, Kind: d.Kind})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(entries), "strategies": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":         "ok",
		"version":        Version,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"strategies":     len(s.downloader.Strategies()),
		"stats": map[string]any{
			"total_downloads":  s.counters.total.Load(),
			"active_downloads": s.counters.active.Load(),
			"failed_downloads": s.counters.failed.Load(),
			"stored_bytes":     s.store.TotalSize(),
		},
	}
	if pct, err := s.store.DiskUsagePercent(); err == nil {
		body["disk_usage_percent"] = pct
	}
	if s.stats != nil {
		if rows, err := s.stats.Stats(r.Context(), time.Now().Add(-24*time.Hour)); err == nil {
			body["strategy_stats_24h"] = rows
		}
	}
	writeJSON(w, http.StatusOK, body)
}
