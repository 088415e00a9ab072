// Package ytdlp shells out to the yt-dlp binary. One adapter serves all
// player-client variants (ios, android, tv_embedded, mweb, web_creator);
// the descriptor's params pick the client, cookie use, and egress proxy.
package ytdlp

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vidfetch/vidfetch/internal/core/domain"
	"github.com/vidfetch/vidfetch/internal/strategy"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// qualityFormats maps a quality label to a yt-dlp format selector.
var qualityFormats = map[domain.Quality]string{
	domain.Quality360:  "bestvideo[height<=360][ext=mp4]+bestaudio[ext=m4a]/best[height<=360][ext=mp4]/best",
	domain.Quality480:  "bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/best[height<=480][ext=mp4]/best",
	domain.Quality720:  "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]/best",
	domain.Quality1080: "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[height<=1080][ext=mp4]/best",
	domain.QualityBest: "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
}

// Available reports whether the yt-dlp binary is on PATH. Checked once
// at catalog construction, not per attempt.
func Available() bool {
	_, err := exec.LookPath("yt-dlp")
	return err == nil
}

// Options holds process-wide credential material shared by all
// descriptors of this family.
type Options struct {
	CookiesFile string // netscape jar on disk, "" when not configured
	POToken     string
	VisitorData string
}

type Adapter struct {
	opts Options
}

func New(opts Options) *Adapter { return &Adapter{opts: opts} }

func (a *Adapter) Kind() string { return "ytdlp" }

// Fetch runs one yt-dlp download. Params keys: "player_client",
// "cookies" ("1" to attach the jar), "skip_webpage" ("1"), "proxy".
func (a *Adapter) Fetch(ctx context.Context, job domain.DownloadJob, params strategy.Params) domain.ExecutionResult {
	format, ok := qualityFormats[job.Quality]
	if !ok {
		format = qualityFormats[domain.Quality720]
	}

	args := a.baseArgs(params)
	args = append(args,
		"-f", format,
		"--merge-output-format", "mp4",
		"-o", job.OutputPath(),
		"--print-json",
		"--no-progress",
		"--retries", "2",
		"--fragment-retries", "2",
		"--file-access-retries", "2",
		job.SourceURL,
	)

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return domain.Fail("yt-dlp strategy timed out")
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return domain.Fail(msg)
	}

	actual, err := locateOutput(job)
	if err != nil {
		return domain.Fail("File not found on disk after yt-dlp download")
	}

	meta := parseInfoJSON(stdout.Bytes())
	info, statErr := os.Stat(actual)
	if statErr != nil || info.Size() == 0 {
		return domain.Fail("yt-dlp produced an empty or missing file")
	}
	meta.SizeBytes = info.Size()
	if meta.Format == "" {
		meta.Format = strings.TrimPrefix(filepath.Ext(actual), ".")
	}
	return domain.Succeed(actual, meta)
}

// baseArgs assembles the flags every invocation of this family shares.
func (a *Adapter) baseArgs(params strategy.Params) []string {
	extractorArgs := []string{"player_client=" + params["player_client"]}
	if params["skip_webpage"] == "1" {
		extractorArgs = append(extractorArgs, "player_skip=webpage")
	}
	if a.opts.POToken != "" && a.opts.VisitorData != "" {
		extractorArgs = append(extractorArgs,
			"po_token=web+"+a.opts.POToken,
			"visitor_data="+a.opts.VisitorData,
		)
	}

	args := []string{
		"--user-agent", userAgent,
		"--extractor-args", "youtube:" + strings.Join(extractorArgs, ";"),
		"--add-headers", "Accept-Language:en-US,en;q=0.9",
		"--no-warnings",
	}
	if params["cookies"] == "1" && a.opts.CookiesFile != "" {
		args = append(args, "--cookies", a.opts.CookiesFile)
	}
	if params["proxy"] != "" {
		args = append(args, "--proxy", params["proxy"])
	}
	return args
}

// locateOutput finds the file yt-dlp actually wrote. The merge step can
// save under a different extension than requested, so fall back to the
// largest video.* candidate in the workspace.
func locateOutput(job domain.DownloadJob) (string, error) {
	want := job.OutputPath()
	if info, err := os.Stat(want); err == nil && info.Size() > 0 {
		return want, nil
	}

	candidates, err := filepath.Glob(filepath.Join(job.Workspace, domain.OutputStem+".*"))
	if err != nil || len(candidates) == 0 {
		return "", os.ErrNotExist
	}
	sort.Slice(candidates, func(i, j int) bool {
		si, _ := os.Stat(candidates[i])
		sj, _ := os.Stat(candidates[j])
		var ni, nj int64
		if si != nil {
			ni = si.Size()
		}
		if sj != nil {
			nj = sj.Size()
		}
		return ni > nj
	})
	return candidates[0], nil
}
