// Package invidious downloads through an Invidious instance. With
// local=true the instance rewrites stream URLs to proxy through its own
// servers, which sidesteps origin CDN IP-locking.
package invidious

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vidfetch/vidfetch/internal/core/domain"
	"github.com/vidfetch/vidfetch/internal/strategy"
	"github.com/vidfetch/vidfetch/internal/strategy/stream"
)

// Params keys: "instance" (base URL), "proxy" (optional egress proxy).
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Kind() string { return "invidious" }

type formatStream struct {
	URL        string `json:"url"`
	Resolution string `json:"resolution"`
}

type videoResponse struct {
	Title         string         `json:"title"`
	LengthSeconds float64        `json:"lengthSeconds"`
	ViewCount     int64          `json:"viewCount"`
	FormatStreams []formatStream `json:"formatStreams"`
	Error         string         `json:"error"`
}

func (a *Adapter) Fetch(ctx context.Context, job domain.DownloadJob, params strategy.Params) domain.ExecutionResult {
	instance := params["instance"]
	if instance == "" {
		return domain.Fail("invidious: no instance configured")
	}

	videoID, err := stream.ExtractVideoID(job.SourceURL)
	if err != nil {
		return domain.Failf("invidious", err)
	}

	client := stream.NewClient(params["proxy"], 5*time.Minute)

	info, err := a.fetchVideo(ctx, client, instance, videoID)
	if err != nil {
		return domain.Failf("invidious", err)
	}

	best := pickStream(info.FormatStreams, job.Quality.MaxHeight())
	if best == nil {
		return domain.Fail("invidious: no format streams available")
	}
	if best.URL == "" {
		return domain.Fail("invidious: stream has no URL")
	}

	dest := job.OutputPath()
	if _, err := stream.Download(ctx, client, best.URL, dest); err != nil {
		return domain.Failf("invidious download failed", err)
	}

	st, err := os.Stat(dest)
	if err != nil || st.Size() == 0 {
		return domain.Fail("invidious: empty or missing file after download")
	}

	meta := domain.VideoMetadata{
		Title:           info.Title,
		DurationSeconds: info.LengthSeconds,
		SizeBytes:       st.Size(),
		Format:          "mp4",
		VideoID:         videoID,
		ViewCount:       info.ViewCount,
	}
	if meta.Title == "" {
		meta.Title = "Unknown"
	}
	return domain.Succeed(dest, meta)
}

func (a *Adapter) fetchVideo(ctx context.Context, client *http.Client, instance, videoID string) (*videoResponse, error) {
	url := strings.TrimRight(instance, "/") + "/api/v1/videos/" + videoID + "?local=true"
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

	var info videoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("invalid JSON response")
	}
	if info.Error != "" {
		return nil, fmt.Errorf("instance error: %s", info.Error)
	}
	return &info, nil
}

// pickStream selects the highest-resolution stream at or below
// maxHeight, falling back to the last entry when none qualifies.
func pickStream(streams []formatStream, maxHeight int) *formatStream {
	if len(streams) == 0 {
		return nil
	}
	var best *formatStream
	bestHeight := 0
	for i := range streams {
		h := parseHeight(streams[i].Resolution)
		if h > 0 && h <= maxHeight && h > bestHeight {
			bestHeight = h
			best = &streams[i]
		}
	}
	if best == nil {
		best = &streams[len(streams)-1]
	}
	return best
}

// parseHeight understands both "640x360" and "360p" resolution labels.
func parseHeight(res string) int {
	if i := strings.Index(res, "x"); i >= 0 {
		h, err := strconv.Atoi(res[i+1:])
		if err != nil {
			return 0
		}
		return h
	}
	h, err := strconv.Atoi(strings.TrimSuffix(res, "p"))
	if err != nil {
		return 0
	}
	return h
}
