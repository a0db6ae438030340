package pipeline

import (
	"context"
	"sync"
	"time"
)

// State is the lifecycle stage of an extraction job.
type State string

const (
	// StatePending means the job is accepted but not yet running (it may be
	// waiting for a browser slot).
	StatePending State = "pending"

	// StateExtractingAudio means the browser session is active.
	StateExtractingAudio State = "extracting_audio"

	// StateCloningVoice means the audio sample is being uploaded to the
	// cloning upstream.
	StateCloningVoice State = "cloning_voice"

	// StateCompleted is the successful terminal state; a voice ID is set.
	StateCompleted State = "completed"

	// StateExtractionFailed is the terminal state for a failed extraction.
	StateExtractionFailed State = "extraction_failed"

	// StateCloningFailed is the terminal state for a failed clone upload.
	StateCloningFailed State = "cloning_failed"

	// StateCancelled is the terminal state for a caller-cancelled job.
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateExtractionFailed, StateCloningFailed, StateCancelled:
		return true
	}
	return false
}

// Snapshot is an immutable view of a job at one point in time.
type Snapshot struct {
	ID         string
	URL        string
	State      State
	VoiceID    string
	Failure    string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// job is the orchestrator's mutable record for one submission. All fields
// behind mu; cancel tears down the job-scoped context.
type job struct {
	mu         sync.Mutex
	id         string
	url        string
	state      State
	voiceID    string
	failure    string
	createdAt  time.Time
	finishedAt time.Time

	cancel context.CancelFunc

	// audioPath holds the extracted sample between the extraction and
	// cloning stages so terminal cleanup can always remove it.
	audioPath string
}

func (j *job) snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:         j.id,
		URL:        j.url,
		State:      j.state,
		VoiceID:    j.voiceID,
		Failure:    j.failure,
		CreatedAt:  j.createdAt,
		FinishedAt: j.finishedAt,
	}
}

func (j *job) setState(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = s
}

func (j *job) currentState() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}
