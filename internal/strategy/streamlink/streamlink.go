// Package streamlink shells out to the streamlink binary, an
// independent extraction engine that handles HLS VODs and live streams
// the other families do not. Output is a transport stream, not mp4.
package streamlink

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vidfetch/vidfetch/internal/core/domain"
	"github.com/vidfetch/vidfetch/internal/strategy"
)

// Available reports whether the streamlink binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("streamlink")
	return err == nil
}

// Params keys: "proxy" (optional egress proxy).
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Kind() string { return "streamlink" }

// qualityArg maps the quality label to streamlink's selector syntax;
// the trailing entries are fallbacks when the exact height is absent.
func qualityArg(q domain.Quality) string {
	switch q {
	case domain.Quality360:
		return "360p,worst"
	case domain.Quality480:
		return "480p,360p,worst"
	case domain.Quality720:
		return "720p,480p,360p,worst"
	case domain.Quality1080:
		return "1080p,720p,480p,worst"
	default:
		return "best,720p,480p,360p,worst"
	}
}

func (a *Adapter) Fetch(ctx context.Context, job domain.DownloadJob, params strategy.Params) domain.ExecutionResult {
	dest := filepath.Join(job.Workspace, domain.OutputStem+".ts")

	args := []string{
		"--force",
		"-o", dest,
	}
	if params["proxy"] != "" {
		args = append(args, "--http-proxy", params["proxy"])
	}
	args = append(args, job.SourceURL, qualityArg(job.Quality))

	cmd := exec.CommandContext(ctx, "streamlink", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return domain.Fail("streamlink strategy timed out")
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return domain.Fail(msg)
	}

	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		return domain.Fail("streamlink produced an empty or missing file")
	}

	meta := domain.VideoMetadata{
		Title:     "Unknown",
		SizeBytes: info.Size(),
		Format:    "ts",
	}
	return domain.Succeed(dest, meta)
}
