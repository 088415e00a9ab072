// Package piped downloads through a Piped API instance, the other
// open-source frontend family. Same contract as invidious: resolve by
// video ID, pick a stream at or below the requested height, copy it.
package piped

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/vidfetch/vidfetch/internal/core/domain"
	"github.com/vidfetch/vidfetch/internal/strategy"
	"github.com/vidfetch/vidfetch/internal/strategy/stream"
)

// Params keys: "instance" (API base URL), "proxy" (optional egress proxy).
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Kind() string { return "piped" }

type videoStream struct {
	URL       string `json:"url"`
	MimeType  string `json:"mimeType"`
	Height    int    `json:"height"`
	VideoOnly bool   `json:"videoOnly"`
}

type streamsResponse struct {
	Title        string        `json:"title"`
	Duration     float64       `json:"duration"`
	Views        int64         `json:"views"`
	UploaderURL  string        `json:"uploaderUrl"`
	Uploader     string        `json:"uploader"`
	VideoStreams []videoStream `json:"videoStreams"`
	Error        string        `json:"error"`
}

func (a *Adapter) Fetch(ctx context.Context, job domain.DownloadJob, params strategy.Params) domain.ExecutionResult {
	instance := params["instance"]
	if instance == "" {
		return domain.Fail("piped: no instance configured")
	}

	videoID, err := stream.ExtractVideoID(job.SourceURL)
	if err != nil {
		return domain.Failf("piped", err)
	}

	client := stream.NewClient(params["proxy"], 5*time.Minute)

	info, err := a.fetchStreams(ctx, client, instance, videoID)
	if err != nil {
		return domain.Failf("piped", err)
	}

	best := pickStream(info.VideoStreams, job.Quality.MaxHeight())
	if best == nil {
		return domain.Fail("piped: no combined video streams available")
	}

	dest := job.OutputPath()
	if _, err := stream.Download(ctx, client, best.URL, dest); err != nil {
		return domain.Failf("piped download failed", err)
	}

	st, err := os.Stat(dest)
	if err != nil || st.Size() == 0 {
		return domain.Fail("piped: empty or missing file after download")
	}

	meta := domain.VideoMetadata{
		Title:           info.Title,
		DurationSeconds: info.Duration,
		Height:          best.Height,
		SizeBytes:       st.Size(),
		Format:          "mp4",
		VideoID:         videoID,
		ChannelName:     info.Uploader,
		ViewCount:       info.Views,
	}
	if meta.Title == "" {
		meta.Title = "Unknown"
	}
	return domain.Succeed(dest, meta)
}

func (a *Adapter) fetchStreams(ctx context.Context, client *http.Client, instance, videoID string) (*streamsResponse, error) {
	url := strings.TrimRight(instance, "/") + "/streams/" + videoID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API HTTP %d", resp.StatusCode)
	}

	var info streamsResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("invalid JSON response")
	}
	if info.Error != "" {
		return nil, fmt.Errorf("instance error: %s", info.Error)
	}
	return &info, nil
}

// pickStream selects the best muxed mp4 stream at or below maxHeight.
// Video-only streams are skipped: the result must be playable as-is.
func pickStream(streams []videoStream, maxHeight int) *videoStream {
	var best *videoStream
	bestHeight := 0
	for i := range streams {
		s := &streams[i]
		if s.VideoOnly || s.URL == "" || !strings.Contains(s.MimeType, "mp4") {
			continue
		}
		if s.Height <= maxHeight && s.Height > bestHeight {
			bestHeight = s.Height
			best = s
		}
	}
	return best
}
