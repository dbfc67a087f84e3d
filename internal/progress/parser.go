package progress

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tubebeam/tubebeam/internal/model"
)

var (
	// yt-dlp: "[download]  42.5% of   10.00MiB at    1.21MiB/s ETA 00:12"
	fetchRe = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%\s+of\s+~?\s*([\d.]+\s?[KMGT]?i?B)(?:\s+at\s+([\d.]+\s?[KMGT]?i?B/s|Unknown B/s))?`)

	// ffmpeg stats line: "frame=  123 fps= 30 q=28.0 size=    1024kB ..."
	frameRe = regexp.MustCompile(`frame=\s*(\d+)`)
)

// ParseFetch extracts a sample from one yt-dlp output line. The second
// return value is false for lines that are not download progress.
func ParseFetch(line string) (model.ProgressSample, bool) {
	m := fetchRe.FindStringSubmatch(line)
	if m == nil {
		return model.ProgressSample{}, false
	}

	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return model.ProgressSample{}, false
	}

	rate := strings.TrimSpace(m[3])
	if rate == "Unknown B/s" {
		rate = ""
	}

	return model.ProgressSample{
		Percent:     clamp(percent),
		Transferred: strings.TrimSpace(m[2]),
		Rate:        rate,
		Stage:       model.StageFetching,
		SampledAt:   time.Now(),
	}, true
}

// FrameParser derives transcode percentage from ffmpeg frame counters. The
// total frame count comes from a prior probe pass; until it is known every
// sample is suppressed rather than risk a division by zero or a bogus
// percentage.
type FrameParser struct {
	totalFrames int
}

// SetTotalFrames records the frame count of the source file
func (f *FrameParser) SetTotalFrames(n int) {
	f.totalFrames = n
}

// Parse extracts a converting sample from one ffmpeg stderr line
func (f *FrameParser) Parse(line string) (model.ProgressSample, bool) {
	m := frameRe.FindStringSubmatch(line)
	if m == nil {
		return model.ProgressSample{}, false
	}
	if f.totalFrames <= 0 {
		return model.ProgressSample{}, false
	}

	current, err := strconv.Atoi(m[1])
	if err != nil || current < 0 {
		return model.ProgressSample{}, false
	}

	percent := float64(current) / float64(f.totalFrames) * 100

	return model.ProgressSample{
		Percent:   clamp(percent),
		Stage:     model.StageConverting,
		SampledAt: time.Now(),
	}, true
}

// ParseTotalFrames reads the frame counter from a counting pass. It is used
// against the output of "ffmpeg -vcodec copy -f null -" where the final
// stats line carries the total.
func ParseTotalFrames(line string) (int, bool) {
	m := frameRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func clamp(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
