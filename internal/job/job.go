package job

import (
	"context"
	"log"
	"sync"

	"github.com/tubebeam/tubebeam/internal/model"
)

// Backend fetches the source media for a request into destDir and returns
// the path of the fetched file. Implementations stream progress through
// emit as the underlying process produces it.
type Backend interface {
	Name() string
	Fetch(ctx context.Context, req model.JobRequest, destDir string, emit func(model.ProgressSample)) (string, error)
}

// Transcoder converts a fetched file into the requested container
type Transcoder interface {
	Convert(ctx context.Context, source, targetExt, quality string, emit func(model.ProgressSample)) (string, error)
}

// Result describes a successfully produced output file
type Result struct {
	MediaID string
	Path    string
	Size    int64
}

// Job is one in-flight download operation. Handlers are registered at most
// once per kind; re-registration replaces the previous handler. Handlers
// run synchronously on the job's goroutine and must not call back into the
// Job. The job goroutine blocks until Begin is called, so handlers
// registered in between cannot miss an event.
type Job struct {
	ID  string
	Req model.JobRequest

	begin     chan struct{}
	beginOnce sync.Once

	mu         sync.Mutex
	phase      model.Phase
	last       model.ProgressSample
	cancelled  bool
	cancel     context.CancelFunc
	onProgress func(model.ProgressSample)
	onComplete func(Result)
	onError    func(error)
	pendingErr error // failure that arrived before an error handler did
}

// OnProgress registers the progress handler
func (j *Job) OnProgress(fn func(model.ProgressSample)) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onProgress = fn
	return j
}

// OnComplete registers the completion handler
func (j *Job) OnComplete(fn func(Result)) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onComplete = fn
	return j
}

// OnError registers the error handler. It fires exactly once for a failed
// job; a failure that happened before registration (a cancel racing the
// handler chain) is delivered immediately.
func (j *Job) OnError(fn func(error)) *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onError = fn
	if j.pendingErr != nil && fn != nil {
		err := j.pendingErr
		j.pendingErr = nil
		fn(err)
	}
	return j
}

// Begin releases the job goroutine. Call it once all handlers are
// registered; calling it again has no effect.
func (j *Job) Begin() *Job {
	j.beginOnce.Do(func() { close(j.begin) })
	return j
}

// Phase returns the current lifecycle phase
func (j *Job) Phase() model.Phase {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.phase
}

// LastProgress returns the most recent progress sample
func (j *Job) LastProgress() model.ProgressSample {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// Cancel transitions the job to Failed and terminates the underlying
// process tree. Once Cancel returns no handler fires again.
func (j *Job) Cancel() {
	j.mu.Lock()
	if j.phase.IsTerminal() {
		j.mu.Unlock()
		return
	}
	j.cancelled = true
	j.phase = model.PhaseFailed
	cancel := j.cancel
	err := &model.CancelledError{MediaID: j.Req.MediaID}
	if j.onError != nil {
		j.onError(err)
	} else {
		j.pendingErr = err
	}
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// emitProgress forwards a sample to the registered handler. Samples are
// dropped once the job is terminal, and SampledAt never decreases across
// delivered samples.
func (j *Job) emitProgress(sample model.ProgressSample) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.phase.IsTerminal() || j.cancelled {
		return
	}
	if sample.SampledAt.Before(j.last.SampledAt) {
		sample.SampledAt = j.last.SampledAt
	}
	j.last = sample

	if j.onProgress != nil {
		j.onProgress(sample)
	}
}

// advance moves the state machine forward, refusing illegal transitions
func (j *Job) advance(next model.Phase) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.phase.CanTransition(next) {
		if !j.phase.IsTerminal() {
			log.Printf("job %s: illegal transition %s -> %s", j.ID, j.phase, next)
		}
		return false
	}
	j.phase = next
	return true
}

// fail moves the job to Failed and fires the error handler. A job that is
// already terminal (completed, failed, or cancelled) absorbs the call so
// the one-notification guarantee holds.
func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.phase.IsTerminal() {
		return
	}
	j.phase = model.PhaseFailed

	if j.onError != nil {
		j.onError(err)
	} else {
		j.pendingErr = err
	}
}

// finish moves the job to Completed and fires the completion handler
func (j *Job) finish(res Result) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.phase.CanTransition(model.PhaseCompleted) {
		return
	}
	j.phase = model.PhaseCompleted

	if j.onComplete != nil {
		j.onComplete(res)
	}
}

// wasCancelled reports whether Cancel was requested
func (j *Job) wasCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}
