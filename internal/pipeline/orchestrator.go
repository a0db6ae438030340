// Package pipeline runs the extract-then-clone job pipeline.
//
// Each submitted URL becomes a job that moves through a fixed state machine:
// pending → extracting_audio → (extraction_failed | cloning_voice) →
// (cloning_failed | completed), with cancelled reachable from any
// non-terminal state. A job reaches exactly one terminal state, emits
// exactly one terminal progress event, and leaves no temp audio behind.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/observe"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/progress"
	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/cloning"
	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/extract"
)

// Progress lines shown to clients. The terminal and stage messages are part
// of the public contract; frontends match on them.
const (
	msgStart        = "Starting voice cloning process..."
	msgStealthSetup = "Setting up secure browser environment..."
	msgExtracted    = "Audio extraction completed successfully!"
	msgCloned       = "Voice clone created successfully!"

	cancelReason = "job cancelled"
)

var (
	// ErrEmptyURL is returned by Submit for a blank URL.
	ErrEmptyURL = errors.New("pipeline: empty url")

	// ErrUnknownJob is returned for job IDs never issued by this process.
	ErrUnknownJob = errors.New("pipeline: unknown job")

	// ErrJobFinished is returned by Cancel when the job is already terminal.
	ErrJobFinished = errors.New("pipeline: job already finished")
)

// defaultMaxConcurrent bounds simultaneous browser sessions when the config
// does not say otherwise. Each session is a full Chrome process.
const defaultMaxConcurrent = 2

// Config holds all dependencies for an [Orchestrator].
type Config struct {
	Extractor   extract.Extractor
	Cloner      cloning.Client
	Broadcaster *progress.Broadcaster

	// Metrics is optional; when nil, [observe.DefaultMetrics] is used.
	Metrics *observe.Metrics

	// MaxConcurrent caps simultaneous extractions. Default: 2.
	MaxConcurrent int64

	// Stealth mirrors the extractor's stealth setting so the matching
	// progress line is emitted before the browser starts.
	Stealth bool
}

// Orchestrator owns the job table and runs one goroutine per job.
// All exported methods are safe for concurrent use.
type Orchestrator struct {
	extractor extract.Extractor
	cloner    cloning.Client
	bus       *progress.Broadcaster
	metrics   *observe.Metrics
	sem       *semaphore.Weighted
	stealth   bool

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

// New creates an Orchestrator from cfg. Extractor, Cloner, and Broadcaster
// are required.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Extractor == nil {
		return nil, errors.New("pipeline: extractor is required")
	}
	if cfg.Cloner == nil {
		return nil, errors.New("pipeline: cloner is required")
	}
	if cfg.Broadcaster == nil {
		return nil, errors.New("pipeline: broadcaster is required")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Orchestrator{
		extractor: cfg.Extractor,
		cloner:    cfg.Cloner,
		bus:       cfg.Broadcaster,
		metrics:   cfg.Metrics,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		stealth:   cfg.Stealth,
		jobs:      make(map[string]*job),
	}, nil
}

// Submit accepts url, creates a job, and starts its pipeline goroutine.
// Returns the job ID immediately; progress is observed via the broadcaster
// and [Orchestrator.Job]. The job's lifetime is independent of ctx.
func (o *Orchestrator) Submit(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", ErrEmptyURL
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:        uuid.NewString(),
		url:       url,
		state:     StatePending,
		createdAt: time.Now().UTC(),
		cancel:    cancel,
	}

	o.mu.Lock()
	o.jobs[j.id] = j
	o.mu.Unlock()

	o.metrics.JobsStarted.Add(ctx, 1)
	o.metrics.ActiveJobs.Add(ctx, 1)
	slog.Info("job submitted", "job_id", j.id, "url", url)

	o.wg.Add(1)
	go o.run(jobCtx, j)

	return j.id, nil
}

// Job returns a snapshot of the job with the given ID.
func (o *Orchestrator) Job(id string) (Snapshot, error) {
	o.mu.Lock()
	j, ok := o.jobs[id]
	o.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrUnknownJob
	}
	return j.snapshot(), nil
}

// Cancel aborts a running job. The job context is cancelled, which tears
// down an active browser session promptly; the pipeline goroutine performs
// the terminal transition and cleanup.
func (o *Orchestrator) Cancel(id string) error {
	o.mu.Lock()
	j, ok := o.jobs[id]
	o.mu.Unlock()
	if !ok {
		return ErrUnknownJob
	}
	if j.currentState().Terminal() {
		return ErrJobFinished
	}
	j.cancel()
	return nil
}

// Shutdown cancels every non-terminal job and waits for all pipeline
// goroutines to finish, or for ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, j := range o.jobs {
		j.cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run drives one job through extraction and cloning. ctx is the job-scoped
// context; cancelling it aborts whichever stage is active.
func (o *Orchestrator) run(ctx context.Context, j *job) {
	defer o.wg.Done()
	defer j.cancel()

	// Wait for a browser slot. A cancel while queued is still a clean
	// cancellation; nothing has been published for the job yet.
	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.finish(j, StateCancelled, cancelReason)
		return
	}

	o.bus.Publish(j.id, msgStart)
	j.setState(StateExtractingAudio)
	if o.stealth {
		o.bus.Publish(j.id, msgStealthSetup)
	}

	start := time.Now()
	audioPath, err := o.extractor.Extract(ctx, j.url)
	o.sem.Release(1)
	o.metrics.ExtractionDuration.Record(context.Background(), time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			o.finish(j, StateCancelled, cancelReason)
			return
		}
		slog.Warn("extraction failed", "job_id", j.id, "kind", extract.KindOf(err), "err", err)
		o.finish(j, StateExtractionFailed, failureReason(err))
		return
	}

	j.mu.Lock()
	j.audioPath = audioPath
	j.mu.Unlock()

	o.bus.Publish(j.id, msgExtracted)
	j.setState(StateCloningVoice)

	start = time.Now()
	voiceID, err := o.cloner.CreateVoice(ctx, audioPath)
	o.metrics.CloningDuration.Record(context.Background(), time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			o.finish(j, StateCancelled, cancelReason)
			return
		}
		kind := cloning.KindOf(err)
		o.metrics.RecordUpstreamError(context.Background(), string(kind))
		slog.Warn("voice clone failed", "job_id", j.id, "kind", kind, "err", err)
		o.finish(j, StateCloningFailed, failureReason(err))
		return
	}

	j.mu.Lock()
	j.voiceID = voiceID
	j.mu.Unlock()

	o.finish(j, StateCompleted, "")
}

// finish performs the terminal transition: record state, remove the temp
// audio sample, publish the single terminal progress event, and close the
// job's progress streams. Idempotent; only the first caller wins.
func (o *Orchestrator) finish(j *job, state State, failure string) {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	j.state = state
	j.failure = failure
	j.finishedAt = time.Now().UTC()
	audioPath := j.audioPath
	j.audioPath = ""
	j.mu.Unlock()

	if audioPath != "" {
		if err := os.Remove(audioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("temp audio cleanup failed", "job_id", j.id, "path", audioPath, "err", err)
		}
	}

	if state == StateCompleted {
		o.bus.Publish(j.id, msgCloned)
	} else {
		o.bus.Publish(j.id, "Error: "+failure)
	}
	o.bus.Close(j.id)

	o.metrics.ActiveJobs.Add(context.Background(), -1)
	o.metrics.RecordJobFinished(context.Background(), string(state))
	slog.Info("job finished", "job_id", j.id, "state", state, "failure", failure)
}

// failureReason extracts the human-readable detail from a classified
// component error, falling back to the raw error text.
func failureReason(err error) string {
	var ee *extract.Error
	if errors.As(err, &ee) && ee.Detail != "" {
		return ee.Detail
	}
	var ce *cloning.Error
	if errors.As(err, &ce) && ce.Detail != "" {
		return ce.Detail
	}
	return err.Error()
}
