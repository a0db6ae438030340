// Package mock provides a test double for the cloning.Client interface.
//
// Configure the result fields, then verify recorded calls:
//
//	c := &mock.Client{CreateVoiceResult: "v_123"}
//	id, _ := c.CreateVoice(ctx, "/tmp/sample.mp3")
package mock

import (
	"context"
	"sync"

	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/cloning"
)

// CreateVoiceCall records a single invocation of CreateVoice.
type CreateVoiceCall struct {
	Ctx       context.Context
	AudioPath string
}

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Ctx     context.Context
	VoiceID string
	Text    string
}

// RenameVoiceCall records a single invocation of RenameVoice.
type RenameVoiceCall struct {
	Ctx     context.Context
	VoiceID string
	Name    string
}

// DeleteVoiceCall records a single invocation of DeleteVoice.
type DeleteVoiceCall struct {
	Ctx     context.Context
	VoiceID string
}

// Client is a mock implementation of cloning.Client.
type Client struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// CreateVoiceResult is the voice ID returned by CreateVoice.
	CreateVoiceResult string

	// CreateVoiceErr, if non-nil, is returned from CreateVoice.
	CreateVoiceErr error

	// CreateVoiceFn, if non-nil, overrides the canned result entirely.
	CreateVoiceFn func(ctx context.Context, audioPath string) (string, error)

	// SynthesizeResult is the audio returned by Synthesize.
	SynthesizeResult []byte

	// SynthesizeErr, if non-nil, is returned from Synthesize.
	SynthesizeErr error

	// RenameVoiceErr, if non-nil, is returned from RenameVoice.
	RenameVoiceErr error

	// DeleteVoiceErr, if non-nil, is returned from DeleteVoice.
	DeleteVoiceErr error

	// --- Call records ---

	CreateVoiceCalls []CreateVoiceCall
	SynthesizeCalls  []SynthesizeCall
	RenameVoiceCalls []RenameVoiceCall
	DeleteVoiceCalls []DeleteVoiceCall
}

// CreateVoice records the call and returns the configured result.
func (c *Client) CreateVoice(ctx context.Context, audioPath string) (string, error) {
	c.mu.Lock()
	c.CreateVoiceCalls = append(c.CreateVoiceCalls, CreateVoiceCall{Ctx: ctx, AudioPath: audioPath})
	fn := c.CreateVoiceFn
	res, err := c.CreateVoiceResult, c.CreateVoiceErr
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, audioPath)
	}
	return res, err
}

// Synthesize records the call and returns the configured result.
func (c *Client) Synthesize(ctx context.Context, voiceID, text string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SynthesizeCalls = append(c.SynthesizeCalls, SynthesizeCall{Ctx: ctx, VoiceID: voiceID, Text: text})
	return c.SynthesizeResult, c.SynthesizeErr
}

// RenameVoice records the call and returns RenameVoiceErr.
func (c *Client) RenameVoice(ctx context.Context, voiceID, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RenameVoiceCalls = append(c.RenameVoiceCalls, RenameVoiceCall{Ctx: ctx, VoiceID: voiceID, Name: name})
	return c.RenameVoiceErr
}

// DeleteVoice records the call and returns DeleteVoiceErr.
func (c *Client) DeleteVoice(ctx context.Context, voiceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DeleteVoiceCalls = append(c.DeleteVoiceCalls, DeleteVoiceCall{Ctx: ctx, VoiceID: voiceID})
	return c.DeleteVoiceErr
}

// Reset clears all recorded calls. Thread-safe.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CreateVoiceCalls = nil
	c.SynthesizeCalls = nil
	c.RenameVoiceCalls = nil
	c.DeleteVoiceCalls = nil
}

// Ensure Client implements cloning.Client at compile time.
var _ cloning.Client = (*Client)(nil)
