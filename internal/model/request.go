package model

// Format is the requested output kind
type Format string

const (
	FormatAudio Format = "audio"
	FormatVideo Format = "video"
)

// TargetExt returns the container extension a finished job must end up in
func (f Format) TargetExt() string {
	if f == FormatAudio {
		return ".mp3"
	}
	return ".mp4"
}

// JobRequest describes what a job must produce. It is created when a user
// picks a quality button and never mutated afterwards.
type JobRequest struct {
	MediaID     string // opaque source video identifier
	Format      Format
	Quality     string // quality label, e.g. "720p" or "192k"
	FormatID    string // source format identifier from the probe, may be empty
	RequesterID int64
	VIP         bool // elevated bandwidth tier
}
