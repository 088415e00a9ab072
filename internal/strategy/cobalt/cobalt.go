// Package cobalt downloads through a cobalt.tools-compatible API: the
// instance resolves the video server-side and hands back a stream URL
// proxied through its own servers, so no origin IP ever sees ours.
package cobalt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/vidfetch/vidfetch/internal/core/domain"
	"github.com/vidfetch/vidfetch/internal/strategy"
	"github.com/vidfetch/vidfetch/internal/strategy/stream"
)

// Params keys: "api_url" (instance endpoint), "proxy" (optional egress proxy).
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Kind() string { return "cobalt" }

var qualityLabels = map[domain.Quality]string{
	domain.Quality360:  "360",
	domain.Quality480:  "480",
	domain.Quality720:  "720",
	domain.Quality1080: "1080",
	domain.QualityBest: "max",
}

type request struct {
	URL          string `json:"url"`
	VideoQuality string `json:"videoQuality"`
	DownloadMode string `json:"downloadMode"`
}

type pickerItem struct {
	URL string `json:"url"`
}

type response struct {
	Status string          `json:"status"`
	URL    string          `json:"url"`
	Picker []pickerItem    `json:"picker"`
	Error  json.RawMessage `json:"error"`
}

func (a *Adapter) Fetch(ctx context.Context, job domain.DownloadJob, params strategy.Params) domain.ExecutionResult {
	apiURL := params["api_url"]
	if apiURL == "" {
		return domain.Fail("cobalt: no api_url configured")
	}

	quality, ok := qualityLabels[job.Quality]
	if !ok {
		quality = "720"
	}

	client := stream.NewClient(params["proxy"], 5*time.Minute)

	streamURL, err := a.resolve(ctx, client, apiURL, job.SourceURL, quality)
	if err != nil {
		return domain.Failf("cobalt", err)
	}

	dest := job.OutputPath()
	if _, err := stream.Download(ctx, client, streamURL, dest); err != nil {
		return domain.Failf("cobalt download failed", err)
	}

	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		return domain.Fail("cobalt: empty or missing file after download")
	}

	// cobalt exposes no metadata endpoint; report only what we observe.
	meta := domain.VideoMetadata{
		Title:     "Unknown",
		SizeBytes: info.Size(),
		Format:    "mp4",
	}
	return domain.Succeed(dest, meta)
}

// resolve asks the instance for a proxied stream URL.
func (a *Adapter) resolve(ctx context.Context, client *http.Client, apiURL, sourceURL, quality string) (string, error) {
	body, err := json.Marshal(request{URL: sourceURL, VideoQuality: quality, DownloadMode: "auto"})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API HTTP %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("invalid JSON: %s", truncate(raw, 200))
	}

	switch parsed.Status {
	case "error":
		return "", fmt.Errorf("instance error: %s", truncate(parsed.Error, 200))
	case "picker":
		if len(parsed.Picker) == 0 {
			return "", fmt.Errorf("picker returned no items")
		}
		if parsed.Picker[0].URL == "" {
			return "", fmt.Errorf("picker item has no URL")
		}
		return parsed.Picker[0].URL, nil
	case "stream", "redirect", "tunnel":
		if parsed.URL == "" {
			return "", fmt.Errorf("no stream URL returned")
		}
		return parsed.URL, nil
	default:
		return "", fmt.Errorf("unexpected status %q: %s", parsed.Status, truncate(raw, 200))
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
