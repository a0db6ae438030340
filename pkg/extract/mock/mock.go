// Package mock provides a test double for the extract.Extractor interface.
package mock

import (
	"context"
	"sync"

	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/extract"
)

// ExtractCall records a single invocation of Extract.
type ExtractCall struct {
	Ctx context.Context
	URL string
}

// Extractor is a mock implementation of extract.Extractor.
type Extractor struct {
	mu sync.Mutex

	// ExtractResult is the audio path returned by Extract.
	ExtractResult string

	// ExtractErr, if non-nil, is returned from Extract.
	ExtractErr error

	// ExtractFn, if non-nil, overrides the canned result entirely. Useful
	// for blocking until a test signals, or for creating the temp file on
	// demand.
	ExtractFn func(ctx context.Context, url string) (string, error)

	// ExtractCalls records every call to Extract in order.
	ExtractCalls []ExtractCall
}

// Extract records the call and returns the configured result.
func (e *Extractor) Extract(ctx context.Context, url string) (string, error) {
	e.mu.Lock()
	e.ExtractCalls = append(e.ExtractCalls, ExtractCall{Ctx: ctx, URL: url})
	fn := e.ExtractFn
	res, err := e.ExtractResult, e.ExtractErr
	e.mu.Unlock()

	if fn != nil {
		return fn(ctx, url)
	}
	return res, err
}

// Reset clears all recorded calls. Thread-safe.
func (e *Extractor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ExtractCalls = nil
}

// Ensure Extractor implements extract.Extractor at compile time.
var _ extract.Extractor = (*Extractor)(nil)
