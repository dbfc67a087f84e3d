package model

import "fmt"

// LaunchError means an external binary could not be started at all.
// Fatal to the job, never retried automatically.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// FetchError means the fetch process exited non-zero
type FetchError struct {
	MediaID  string
	ExitCode int
	Stderr   string // excerpt of captured stderr for diagnostics
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: exit code %d: %s", e.MediaID, e.ExitCode, e.Stderr)
}

// TranscodeError means the converter exited non-zero. The source file is
// preserved in this case.
type TranscodeError struct {
	Source   string
	ExitCode int
	Stderr   string
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s: exit code %d: %s", e.Source, e.ExitCode, e.Stderr)
}

// ProbeError means metadata could not be obtained from any probe backend
type ProbeError struct {
	MediaID string
	Err     error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.MediaID, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// UploadError means delivery of a finished file failed. Reported once, not
// retried, so the user never receives duplicate sends.
type UploadError struct {
	MediaID string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.MediaID, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// CancelledError marks a job that was stopped by an explicit cancel request
type CancelledError struct {
	MediaID string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("job for %s cancelled", e.MediaID)
}

// AlreadyInProgressError is an admission-time rejection: an identical
// (requester, media) request is already in flight.
type AlreadyInProgressError struct {
	RequesterID int64
	MediaID     string
}

func (e *AlreadyInProgressError) Error() string {
	return fmt.Sprintf("download of %s already in progress for user %d", e.MediaID, e.RequesterID)
}

// ConcurrencyLimitError is an admission-time rejection: the requester
// already holds the maximum number of concurrent slots. Count carries the
// current number for user-facing messaging.
type ConcurrencyLimitError struct {
	RequesterID int64
	Count       int
	Limit       int
}

func (e *ConcurrencyLimitError) Error() string {
	return fmt.Sprintf("user %d has %d of %d downloads running", e.RequesterID, e.Count, e.Limit)
}
