package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tubebeam/tubebeam/internal/model"
)

const jobIDPrefix = "job-"

// Runner creates jobs and owns the table of active ones. Entries are
// removed unconditionally on termination, including on cancel.
type Runner struct {
	mu   sync.Mutex
	jobs map[string]*Job

	transcoder Transcoder
	workDir    string
}

// NewRunner creates a job runner that stages files under workDir
func NewRunner(workDir string, transcoder Transcoder) *Runner {
	return &Runner{
		jobs:       make(map[string]*Job),
		transcoder: transcoder,
		workDir:    workDir,
	}
}

// Start registers a new job for the request and arms it against the given
// backend. The job does not run until its Begin method is called, giving
// the caller a window to register handlers. Admission is the caller's
// concern; Start never rejects.
func (r *Runner) Start(req model.JobRequest, backend Backend) *Job {
	ctx, cancel := context.WithCancel(context.Background())

	j := &Job{
		ID:     generateJobID(),
		Req:    req,
		begin:  make(chan struct{}),
		phase:  model.PhasePending,
		cancel: cancel,
	}

	r.mu.Lock()
	r.jobs[j.ID] = j
	r.mu.Unlock()

	go r.run(ctx, j, backend)

	return j
}

// Get returns an active job by id
func (r *Runner) Get(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

// Active returns all jobs currently in the table
func (r *Runner) Active() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	return jobs
}

// KillAll cancels every active job belonging to requesterID, or every job
// when requesterID is zero. Returns the number of jobs cancelled.
func (r *Runner) KillAll(requesterID int64) int {
	killed := 0
	for _, j := range r.Active() {
		if requesterID != 0 && j.Req.RequesterID != requesterID {
			continue
		}
		if j.Phase().IsTerminal() {
			continue
		}
		j.Cancel()
		killed++
	}
	return killed
}

func (r *Runner) run(ctx context.Context, j *Job, backend Backend) {
	defer func() {
		r.mu.Lock()
		delete(r.jobs, j.ID)
		r.mu.Unlock()
	}()

	select {
	case <-j.begin:
	case <-ctx.Done():
		return
	}

	destDir := filepath.Join(r.workDir, j.ID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		j.fail(fmt.Errorf("create work dir: %w", err))
		return
	}

	// The work dir outlives the job only on success; the delivery layer
	// removes it once the file is handed off. Every failure path,
	// including cancellation, reclaims it here.
	delivered := false
	defer func() {
		if !delivered {
			os.RemoveAll(destDir)
		}
	}()

	if !j.advance(model.PhaseFetching) {
		return
	}

	fetched, err := backend.Fetch(ctx, j.Req, destDir, j.emitProgress)
	if err != nil {
		if !j.wasCancelled() {
			j.fail(err)
		}
		return
	}

	output := fetched
	targetExt := j.Req.Format.TargetExt()
	if filepath.Ext(fetched) != targetExt {
		if !j.advance(model.PhaseConverting) {
			return
		}
		output, err = r.transcoder.Convert(ctx, fetched, targetExt, j.Req.Quality, j.emitProgress)
		if err != nil {
			if !j.wasCancelled() {
				j.fail(err)
			}
			return
		}
	}

	info, err := os.Stat(output)
	if err != nil {
		j.fail(fmt.Errorf("stat output: %w", err))
		return
	}

	delivered = true
	j.finish(Result{
		MediaID: j.Req.MediaID,
		Path:    output,
		Size:    info.Size(),
	})
}

// generateJobID returns a unique job id using UUID v7 for time ordering
func generateJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(jobIDPrefix+"%d", time.Now().UnixNano())
	}
	return jobIDPrefix + id.String()
}
