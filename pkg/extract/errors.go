package extract

import (
	"errors"
	"fmt"
)

// Kind classifies an extraction failure at the component boundary.
type Kind string

const (
	// KindInvalidURL means the submitted URL is not a recognisable video URL.
	KindInvalidURL Kind = "invalid_url"

	// KindPageLoadTimeout means the converter page did not become ready in time.
	KindPageLoadTimeout Kind = "page_load_timeout"

	// KindNoAudioStream means no audio file was produced for the video.
	KindNoAudioStream Kind = "no_audio_stream"

	// KindDownloadTooLarge means the produced audio exceeds the configured
	// byte limit of the downstream cloning service.
	KindDownloadTooLarge Kind = "download_too_large"

	// KindAutomationDetected means anti-bot defences blocked the session.
	KindAutomationDetected Kind = "automation_detected"

	// KindBrowserCrashed means the browser process died or lost its connection.
	KindBrowserCrashed Kind = "browser_crashed"
)

// Error is a classified extraction failure.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("extract: %s", e.Kind)
	}
	return fmt.Sprintf("extract: %s: %s", e.Kind, e.Detail)
}

// KindOf extracts the [Kind] from err. Unclassified errors map to
// KindBrowserCrashed: anything unexpected from the automation layer means
// the session is unusable.
func KindOf(err error) Kind {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindBrowserCrashed
}
