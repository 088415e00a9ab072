package stream

import (
	"fmt"
	"regexp"
)

var videoIDPattern = regexp.MustCompile(`(?:v=|youtu\.be/|shorts/)([A-Za-z0-9_-]{11})`)

// ExtractVideoID pulls the 11-character video ID out of a watch URL.
// The frontend-instance adapters address videos by ID, not URL.
func ExtractVideoID(sourceURL string) (string, error) {
	m := videoIDPattern.FindStringSubmatch(sourceURL)
	if m == nil {
		return "", fmt.Errorf("cannot extract video ID from URL: %s", sourceURL)
	}
	return m[1], nil
}
