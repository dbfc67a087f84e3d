package model

import "time"

// Stage tags a progress sample with the process that produced it
type Stage string

const (
	StageFetching   Stage = "fetching"
	StageConverting Stage = "converting"
)

// ProgressSample is one structured progress event extracted from raw
// process output. Percent is always within [0, 100].
type ProgressSample struct {
	Percent     float64
	Transferred string // human readable amount, e.g. "10.00MiB", may be empty
	Rate        string // human readable rate, e.g. "1.2MiB/s", may be empty
	Stage       Stage
	SampledAt   time.Time
}
