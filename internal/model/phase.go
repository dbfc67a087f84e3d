package model

// Phase represents the lifecycle stage of a download job
type Phase string

const (
	// PhasePending means the job is admitted but no process has started
	PhasePending Phase = "Pending"

	// PhaseFetching means the media fetch process is running
	PhaseFetching Phase = "Fetching"

	// PhaseConverting means the post-fetch transcode process is running
	PhaseConverting Phase = "Converting"

	// PhaseCompleted means the job produced its output file
	PhaseCompleted Phase = "Completed"

	// PhaseFailed means the job terminated with an error or was cancelled
	PhaseFailed Phase = "Failed"
)

// String returns the string representation of Phase
func (p Phase) String() string {
	return string(p)
}

// IsTerminal returns true if no further transition is possible
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// CanTransition reports whether moving from p to next is a legal step in the
// job state machine. Failed is reachable from any non-terminal phase; all
// other transitions only move forward.
func (p Phase) CanTransition(next Phase) bool {
	if p.IsTerminal() {
		return false
	}
	if next == PhaseFailed {
		return true
	}
	switch p {
	case PhasePending:
		return next == PhaseFetching
	case PhaseFetching:
		return next == PhaseConverting || next == PhaseCompleted
	case PhaseConverting:
		return next == PhaseCompleted
	}
	return false
}
