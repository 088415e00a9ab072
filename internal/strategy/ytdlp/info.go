package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/vidfetch/vidfetch/internal/core/domain"
)

// infoDict is the subset of the yt-dlp info JSON the service reads.
type infoDict struct {
	Title          string  `json:"title"`
	Duration       float64 `json:"duration"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	Ext            string  `json:"ext"`
	ID             string  `json:"id"`
	ChannelID      string  `json:"channel_id"`
	Channel        string  `json:"channel"`
	Uploader       string  `json:"uploader"`
	UploadDate     string  `json:"upload_date"`
	ViewCount      int64   `json:"view_count"`
	LikeCount      int64   `json:"like_count"`
	IsLive         bool    `json:"is_live"`
}

func (d infoDict) metadata() domain.VideoMetadata {
	meta := domain.VideoMetadata{
		Title:           d.Title,
		DurationSeconds: d.Duration,
		Width:           d.Width,
		Height:          d.Height,
		SizeBytes:       d.Filesize,
		Format:          d.Ext,
		VideoID:         d.ID,
		ChannelID:       d.ChannelID,
		ChannelName:     d.Channel,
		UploadDate:      d.UploadDate,
		ViewCount:       d.ViewCount,
		LikeCount:       d.LikeCount,
		IsLive:          d.IsLive,
	}
	if meta.Title == "" {
		meta.Title = "Unknown"
	}
	if meta.SizeBytes == 0 {
		meta.SizeBytes = d.FilesizeApprox
	}
	if meta.ChannelName == "" {
		meta.ChannelName = d.Uploader
	}
	return meta
}

// parseInfoJSON reads the last JSON line of a --print-json run. A parse
// failure degrades to minimal metadata rather than failing the attempt.
func parseInfoJSON(out []byte) domain.VideoMetadata {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var d infoDict
		if err := json.Unmarshal(line, &d); err == nil {
			return d.metadata()
		}
	}
	return domain.VideoMetadata{Title: "Unknown", Format: "mp4"}
}

// Probe extracts metadata without downloading, for the info endpoint.
func (a *Adapter) Probe(ctx context.Context, sourceURL string) (domain.VideoMetadata, error) {
	clients := "player_client=ios,tv_embedded,mweb"
	if a.opts.CookiesFile == "" {
		clients += ";player_skip=webpage"
	}

	args := []string{
		"--user-agent", userAgent,
		"--extractor-args", "youtube:" + clients,
		"--no-warnings",
		"-J",
		"--skip-download",
	}
	if a.opts.CookiesFile != "" {
		args = append(args, "--cookies", a.opts.CookiesFile)
	}
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return domain.VideoMetadata{}, &ProbeError{Message: msg}
	}

	var d infoDict
	if err := json.Unmarshal(stdout.Bytes(), &d); err != nil {
		return domain.VideoMetadata{}, &ProbeError{Message: "yt-dlp returned no info"}
	}
	return d.metadata(), nil
}

// ProbeError carries the raw extractor message for classification.
type ProbeError struct {
	Message string
}

func (e *ProbeError) Error() string { return e.Message }
