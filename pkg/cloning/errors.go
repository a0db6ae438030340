package cloning

import (
	"errors"
	"fmt"
)

// Kind classifies a cloning-service failure at the provider boundary.
type Kind string

const (
	// KindQuotaExceeded means the account has no voice slots or characters left.
	KindQuotaExceeded Kind = "quota_exceeded"

	// KindUnsupportedFormat means the uploaded sample was rejected as audio.
	KindUnsupportedFormat Kind = "unsupported_audio_format"

	// KindFileTooLarge means the sample exceeds the service's upload limit.
	KindFileTooLarge Kind = "file_too_large"

	// KindUnknownVoice means the voice ID does not exist upstream.
	KindUnknownVoice Kind = "unknown_voice_id"

	// KindInvalidText means the synthesis text is empty or over the limit.
	KindInvalidText Kind = "invalid_text"

	// KindUpstreamUnavailable covers timeouts, connection errors, and 5xx
	// responses. The only kind where a fresh attempt may succeed.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
)

// Retryable reports whether a fresh job could plausibly succeed after this
// failure. Quota and format errors fail identically on retry.
func (k Kind) Retryable() bool {
	return k == KindUpstreamUnavailable
}

// Error is a classified cloning-service failure.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("cloning: %s", e.Kind)
	}
	return fmt.Sprintf("cloning: %s: %s", e.Kind, e.Detail)
}

// KindOf extracts the [Kind] from err. Returns KindUpstreamUnavailable for
// unclassified errors, since those are invariably transport-level failures.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUpstreamUnavailable
}
