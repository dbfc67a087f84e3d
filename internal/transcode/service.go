package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tubebeam/tubebeam/internal/model"
	"github.com/tubebeam/tubebeam/internal/proc"
	"github.com/tubebeam/tubebeam/internal/progress"
)

// FFmpeg constants for conversion settings
const (
	FFmpegCommand = "ffmpeg"

	// Video codec settings
	VideoCodec = "libx264"
	VideoCRF   = "20"

	// Audio codec settings
	AudioCodecMP3 = "libmp3lame"
	AudioCodecAAC = "aac"

	// Fallback quality labels for unknown inputs
	DefaultVideoQuality = "360p"
	DefaultAudioQuality = "128k"
)

type resolution struct {
	width  int
	height int
}

// videoQualities maps quality labels to output resolutions
var videoQualities = map[string]resolution{
	"144p":  {256, 144},
	"240p":  {426, 240},
	"360p":  {640, 360},
	"480p":  {854, 480},
	"720p":  {1280, 720},
	"1080p": {1920, 1080},
}

// audioQualities maps quality labels to output bitrates
var audioQualities = map[string]string{
	"128k": "128k",
	"192k": "192k",
	"320k": "320k",
}

// Service converts fetched media into the requested container and quality
type Service struct {
	ffmpegPath string
}

// NewService creates a transcode service. An empty path falls back to the
// ffmpeg binary on PATH.
func NewService(ffmpegPath string) *Service {
	if ffmpegPath == "" {
		ffmpegPath = FFmpegCommand
	}
	return &Service{ffmpegPath: ffmpegPath}
}

// BuildArgs builds the ffmpeg command arguments for one conversion. Unknown
// quality labels fall back to 360p for video and 128k for audio.
func (s *Service) BuildArgs(input, output, quality string) []string {
	args := []string{"-i", input, "-y"}

	ext := strings.ToLower(filepath.Ext(output))
	switch ext {
	case ".mp3", ".wav":
		bitrate, ok := audioQualities[quality]
		if !ok {
			bitrate = audioQualities[DefaultAudioQuality]
		}
		args = append(args, "-vn", "-ab", bitrate)
		if ext == ".mp3" {
			args = append(args, "-c:a", AudioCodecMP3)
		}
	case ".m4a":
		bitrate, ok := audioQualities[quality]
		if !ok {
			bitrate = audioQualities[DefaultAudioQuality]
		}
		args = append(args, "-vn", "-c:a", AudioCodecAAC, "-strict", "-2", "-b:a", bitrate)
	default:
		res, ok := videoQualities[quality]
		if !ok {
			res = videoQualities[DefaultVideoQuality]
		}
		args = append(args,
			"-vf", fmt.Sprintf("scale=%d:%d", res.width, res.height),
			"-c:v", VideoCodec,
			"-crf", VideoCRF,
			"-c:a", AudioCodecAAC,
		)
	}

	return append(args, output)
}

// CountFrames runs a decode-free counting pass over the source and returns
// its total frame count. Needed before a video conversion so frame progress
// can be expressed as a percentage.
func (s *Service) CountFrames(ctx context.Context, input string) (int, error) {
	h, err := proc.Start(ctx, s.ffmpegPath, "-i", input, "-vcodec", "copy", "-f", "null", "-")
	if err != nil {
		return 0, err
	}

	total := 0
	for line := range h.Lines() {
		if n, ok := progress.ParseTotalFrames(line); ok && n > total {
			total = n
		}
	}

	code, err := h.Wait()
	if err != nil {
		return 0, err
	}
	if code != 0 {
		return 0, &model.TranscodeError{Source: input, ExitCode: code, Stderr: h.StderrTail()}
	}
	return total, nil
}

// Convert transcodes source into the target container at the given quality
// and returns the new path. The source file is deleted only after the
// converter reports a zero exit code; on failure it is preserved so nothing
// is silently lost.
func (s *Service) Convert(ctx context.Context, source, targetExt, quality string, emit func(model.ProgressSample)) (string, error) {
	output := strings.TrimSuffix(source, filepath.Ext(source)) + targetExt

	var parser progress.FrameParser
	if targetExt == ".mp4" || targetExt == ".mkv" {
		// Frame totals only make sense for video targets. If counting
		// fails the conversion still runs, just without percentages.
		if total, err := s.CountFrames(ctx, source); err == nil {
			parser.SetTotalFrames(total)
		}
	}

	h, err := proc.Start(ctx, s.ffmpegPath, s.BuildArgs(source, output, quality)...)
	if err != nil {
		return "", err
	}

	for line := range h.Lines() {
		if sample, ok := parser.Parse(line); ok && emit != nil {
			emit(sample)
		}
	}

	code, err := h.Wait()
	if err != nil {
		return "", err
	}
	if code != 0 {
		os.Remove(output)
		return "", &model.TranscodeError{Source: source, ExitCode: code, Stderr: h.StderrTail()}
	}

	os.Remove(source)
	return output, nil
}
