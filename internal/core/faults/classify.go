package faults

import "strings"

type Code string

const (
	VideoUnavailable Code = "VIDEO_UNAVAILABLE"
	RateLimited      Code = "RATE_LIMITED"
	DownloadTimeout  Code = "DOWNLOAD_TIMEOUT"
	DiskFull         Code = "DISK_FULL"
	InvalidURL       Code = "INVALID_URL"
	NetworkError     Code = "NETWORK_ERROR"
	ServerError      Code = "SERVER_ERROR"
)

// Detail is a classified failure. Produced only by Classify; the
// orchestrator appends the attempt log under Details before returning.
type Detail struct {
	Code              Code           `json:"code"`
	Message           string         `json:"message"`
	IsTransient       bool           `json:"is_transient"`
	RetryAfterSeconds int            `json:"retry_after_seconds,omitempty"`
	Details           map[string]any `json:"details,omitempty"`
}

func contains(s string, kws ...string) bool {
	for _, kw := range kws {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Classify maps a raw failure message to a structured Detail. Pure and
// total: case-insensitive keyword matching, first rule wins, unmatched
// input falls through to SERVER_ERROR.
func Classify(raw string) Detail {
	s := strings.ToLower(raw)

	switch {
	case contains(s, "private", "unavailable", "deleted", "removed", "geo-block"):
		return Detail{
			Code:        VideoUnavailable,
			Message:     "Video is private, deleted, or unavailable",
			IsTransient: false,
			Details:     map[string]any{"error": raw},
		}
	case contains(s, "sign in", "bot", "confirm you"):
		return Detail{
			Code:              RateLimited,
			Message:           "Bot detection triggered, sign-in or cookies required",
			IsTransient:       true,
			RetryAfterSeconds: 300,
			Details:           map[string]any{"error": raw},
		}
	case contains(s, "429", "rate limit", "too many requests"):
		return Detail{
			Code:              RateLimited,
			Message:           "Rate limited by origin",
			IsTransient:       true,
			RetryAfterSeconds: 300,
			Details:           map[string]any{"error": raw},
		}
	case contains(s, "timeout", "timed out"):
		return Detail{
			Code:              DownloadTimeout,
			Message:           "Download timed out",
			IsTransient:       true,
			RetryAfterSeconds: 60,
			Details:           map[string]any{"error": raw},
		}
	case contains(s, "network", "connection", "resolve", "unreachable"):
		return Detail{
			Code:              NetworkError,
			Message:           "Network connection error",
			IsTransient:       true,
			RetryAfterSeconds: 30,
			Details:           map[string]any{"error": raw},
		}
	case contains(s, "disk", "no space"):
		return Detail{
			Code:              DiskFull,
			Message:           "Server disk full",
			IsTransient:       true,
			RetryAfterSeconds: 600,
			Details:           map[string]any{"error": raw},
		}
	case contains(s, "invalid", "malformed", "unsupported url"):
		return Detail{
			Code:        InvalidURL,
			Message:     "Invalid or unsupported URL",
			IsTransient: false,
			Details:     map[string]any{"error": raw},
		}
	default:
		return Detail{
			Code:              ServerError,
			Message:           "Download failed",
			IsTransient:       true,
			RetryAfterSeconds: 120,
			Details:           map[string]any{"error": raw},
		}
	}
}

// IsPermanent reports whether no strategy switch can change the outcome.
// Only an unavailable source or a malformed URL qualifies; everything
// else is assumed strategy-dependent and worth another mechanism.
func IsPermanent(d Detail) bool {
	return d.Code == VideoUnavailable || d.Code == InvalidURL
}
