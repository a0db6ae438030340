// Package extract defines the browser-driven audio extraction boundary:
// given a video URL, produce a local audio file or fail with a classified
// error. The chrome subpackage holds the real headless-browser
// implementation; tests stub the boundary with the mock subpackage.
package extract

import (
	"context"
	"regexp"
)

// Extractor produces a local audio file for a video URL.
//
// On success the returned path points at an existing, non-empty file owned
// by the caller. Implementations perform no retries of their own and must
// tear down any browser process and temp profile on every exit path,
// including ctx cancellation.
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// videoIDPatterns recognises the supported video URL shapes: standard watch
// URLs, /v/ and /embed/ paths, youtu.be short links, and shorts.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=|/v/|/embed/|youtu\.be/)([^&?/]+)`),
	regexp.MustCompile(`(?:youtube\.com/shorts/)([^&?/]+)`),
}

// VideoID extracts the video identifier from a video URL. Returns false when
// the URL does not match any supported shape.
func VideoID(url string) (string, bool) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1], true
		}
	}
	return "", false
}
