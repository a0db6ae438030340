// Package cloning defines the provider boundary for the external
// voice-cloning service: uploading an audio sample to create a cloned voice,
// and synthesizing speech from a previously created voice.
//
// Implementations live in subpackages (e.g. [elevenlabs]); tests use the
// mock subpackage. Clients hold no per-call state — every operation is an
// independent request against the upstream API.
package cloning

import "context"

// Client is the minimal surface the pipeline needs from a voice-cloning
// vendor. All methods honour ctx cancellation and deadlines.
type Client interface {
	// CreateVoice uploads the audio sample at audioPath and returns the
	// opaque voice ID assigned by the service. Callers must not blindly
	// retry on failure: the service does not deduplicate uploads, so a
	// retry may create a second billed voice.
	CreateVoice(ctx context.Context, audioPath string) (string, error)

	// Synthesize renders text with the given voice and returns encoded
	// audio bytes (MPEG for the default output format).
	Synthesize(ctx context.Context, voiceID, text string) ([]byte, error)

	// RenameVoice updates the display name of an existing voice upstream.
	RenameVoice(ctx context.Context, voiceID, name string) error

	// DeleteVoice removes a voice from the upstream service.
	DeleteVoice(ctx context.Context, voiceID string) error
}
