package domain

import (
	"path/filepath"
	"time"
)

type Quality string

const (
	Quality360  Quality = "360p"
	Quality480  Quality = "480p"
	Quality720  Quality = "720p"
	Quality1080 Quality = "1080p"
	QualityBest Quality = "best"
)

// QualityHeights maps a quality label to its maximum pixel height.
var QualityHeights = map[Quality]int{
	Quality360:  360,
	Quality480:  480,
	Quality720:  720,
	Quality1080: 1080,
	QualityBest: 9999,
}

// ParseQuality normalizes a quality string, defaulting to 720p.
func ParseQuality(s string) Quality {
	q := Quality(s)
	if _, ok := QualityHeights[q]; !ok {
		return Quality720
	}
	return q
}

// MaxHeight returns the pixel-height ceiling for the quality.
func (q Quality) MaxHeight() int {
	if h, ok := QualityHeights[q]; ok {
		return h
	}
	return 720
}

// DownloadJob is one download request. The workspace directory is owned
// exclusively by this job for its lifetime; the TTL sweeper reclaims it.
type DownloadJob struct {
	ID        string
	SourceURL string
	Quality   Quality
	Format    string
	Deadline  time.Duration
	Workspace string

	// OnlyStrategy restricts the run to the 1-based catalog entry when
	// positive. Diagnostic knob; zero means the full catalog.
	OnlyStrategy int
}

// OutputStem is the canonical output filename prefix inside the workspace.
// Every adapter writes OutputStem.<ext>, and the attempt runner globs
// OutputStem.* when cleaning residue between attempts.
const OutputStem = "video"

// OutputPath returns the canonical output path for the job's format.
func (j DownloadJob) OutputPath() string {
	ext := j.Format
	if ext == "" {
		ext = "mp4"
	}
	return filepath.Join(j.Workspace, OutputStem+"."+ext)
}
