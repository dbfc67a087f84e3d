package job

// Package job runs one fetch(+optional transcode) operation as a state
// machine with a fixed three-event contract: progress, complete, error.
// A Runner owns the table of active jobs, keyed by job id rather than OS
// pid so entries survive subprocess pid reuse.
