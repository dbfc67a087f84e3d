package model

// FormatOption is one downloadable rendition reported by the probe
type FormatOption struct {
	FormatID   string
	Quality    string // quality label, e.g. "720p"
	SizeApprox int64  // approximate size in bytes, 0 if unknown
	AudioOnly  bool
}

// MediaInfo is the probed metadata for a source video or track
type MediaInfo struct {
	ID              string
	Title           string
	Channel         string
	DurationSeconds float64
	ThumbnailURL    string
	IsLive          bool
	Formats         []FormatOption
	Source          string // probe backend that produced this info
}

// BestAudio returns the audio-only option, or nil if the probe found none
func (m *MediaInfo) BestAudio() *FormatOption {
	for i := range m.Formats {
		if m.Formats[i].AudioOnly {
			return &m.Formats[i]
		}
	}
	return nil
}
