package resilience

import (
	"context"

	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/cloning"
)

// GuardedClient wraps a [cloning.Client] with a shared [CircuitBreaker].
// Every upstream call passes through the breaker; when it is open, calls
// fail fast with [ErrCircuitOpen] instead of hitting a service that is
// already struggling.
//
// Only transport-level failures ([cloning.KindUpstreamUnavailable]) count
// toward tripping the breaker. Quota, format, and validation errors mean
// the upstream answered, so they keep the circuit closed.
type GuardedClient struct {
	inner   cloning.Client
	breaker *CircuitBreaker
}

// NewGuardedClient wraps inner with breaker.
func NewGuardedClient(inner cloning.Client, breaker *CircuitBreaker) *GuardedClient {
	return &GuardedClient{inner: inner, breaker: breaker}
}

// Breaker exposes the underlying breaker for state inspection.
func (g *GuardedClient) Breaker() *CircuitBreaker {
	return g.breaker
}

// countUpstreamFailure reports whether err should trip the breaker.
func countUpstreamFailure(err error) bool {
	return cloning.KindOf(err) == cloning.KindUpstreamUnavailable
}

// CreateVoice forwards to the wrapped client through the breaker.
func (g *GuardedClient) CreateVoice(ctx context.Context, audioPath string) (string, error) {
	var voiceID string
	err := g.breaker.Execute(func() error {
		var err error
		voiceID, err = g.inner.CreateVoice(ctx, audioPath)
		return err
	}, countUpstreamFailure)
	return voiceID, err
}

// Synthesize forwards to the wrapped client through the breaker.
func (g *GuardedClient) Synthesize(ctx context.Context, voiceID, text string) ([]byte, error) {
	var audio []byte
	err := g.breaker.Execute(func() error {
		var err error
		audio, err = g.inner.Synthesize(ctx, voiceID, text)
		return err
	}, countUpstreamFailure)
	return audio, err
}

// RenameVoice forwards to the wrapped client through the breaker.
func (g *GuardedClient) RenameVoice(ctx context.Context, voiceID, name string) error {
	return g.breaker.Execute(func() error {
		return g.inner.RenameVoice(ctx, voiceID, name)
	}, countUpstreamFailure)
}

// DeleteVoice forwards to the wrapped client through the breaker.
func (g *GuardedClient) DeleteVoice(ctx context.Context, voiceID string) error {
	return g.breaker.Execute(func() error {
		return g.inner.DeleteVoice(ctx, voiceID)
	}, countUpstreamFailure)
}

// Ensure GuardedClient implements cloning.Client at compile time.
var _ cloning.Client = (*GuardedClient)(nil)
