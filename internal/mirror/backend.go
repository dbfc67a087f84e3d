package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kkdai/youtube/v2"

	"github.com/tubebeam/tubebeam/internal/model"
)

const (
	// progressInterval throttles byte-progress emission
	progressInterval = 1500 * time.Millisecond

	copyBufferSize = 256 * 1024
)

// Backend downloads media through the YouTube innertube API without
// spawning external processes
type Backend struct {
	client youtube.Client
}

// NewBackend creates a mirror backend
func NewBackend() *Backend {
	return &Backend{}
}

// Name identifies the backend in logs and probe metadata
func (b *Backend) Name() string { return "mirror" }

// Probe returns a reduced, best-effort metadata set for the media id. Used
// as the fallback when the primary probe fails.
func (b *Backend) Probe(ctx context.Context, mediaID string) (*model.MediaInfo, error) {
	video, err := b.client.GetVideoContext(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	info := &model.MediaInfo{
		ID:              mediaID,
		Title:           video.Title,
		Channel:         video.Author,
		DurationSeconds: video.Duration.Seconds(),
		Source:          b.Name(),
	}
	if len(video.Thumbnails) > 0 {
		info.ThumbnailURL = video.Thumbnails[0].URL
	}

	seen := make(map[string]bool)
	for _, format := range video.Formats {
		if format.QualityLabel == "" || seen[format.QualityLabel] {
			continue
		}
		if !strings.HasPrefix(format.MimeType, "video/mp4") || format.AudioChannels == 0 {
			continue
		}
		seen[format.QualityLabel] = true
		info.Formats = append(info.Formats, model.FormatOption{
			FormatID:   fmt.Sprintf("%d", format.ItagNo),
			Quality:    format.QualityLabel,
			SizeApprox: format.ContentLength,
		})
	}
	if audio := bestAudioFormat(video.Formats); audio != nil {
		info.Formats = append(info.Formats, model.FormatOption{
			FormatID:   fmt.Sprintf("%d", audio.ItagNo),
			Quality:    "128k",
			SizeApprox: audio.ContentLength,
			AudioOnly:  true,
		})
	}

	return info, nil
}

// Fetch streams the chosen rendition to destDir and returns its path. The
// fetched container rarely matches the requested one, so the job normally
// chains a transcode afterwards.
func (b *Backend) Fetch(ctx context.Context, req model.JobRequest, destDir string, emit func(model.ProgressSample)) (string, error) {
	video, err := b.client.GetVideoContext(ctx, req.MediaID)
	if err != nil {
		return "", &model.FetchError{MediaID: req.MediaID, ExitCode: -1, Stderr: err.Error()}
	}

	var format *youtube.Format
	if req.Format == model.FormatAudio {
		format = bestAudioFormat(video.Formats)
	} else {
		format = bestVideoFormat(video.Formats, req.Quality)
	}
	if format == nil {
		return "", &model.FetchError{MediaID: req.MediaID, ExitCode: -1, Stderr: "no matching format"}
	}

	stream, size, err := b.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return "", &model.FetchError{MediaID: req.MediaID, ExitCode: -1, Stderr: err.Error()}
	}
	defer stream.Close()

	path := filepath.Join(destDir, "source"+extForMime(format.MimeType))
	if err := saveStream(ctx, stream, path, size, emit); err != nil {
		os.Remove(path)
		return "", &model.FetchError{MediaID: req.MediaID, ExitCode: -1, Stderr: err.Error()}
	}

	return path, nil
}

// saveStream copies the stream to disk, emitting a byte-derived percentage
// at most every progressInterval
func saveStream(ctx context.Context, stream io.Reader, path string, total int64, emit func(model.ProgressSample)) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	buf := make([]byte, copyBufferSize)
	var written int64
	started := time.Now()
	lastEmit := time.Time{}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := stream.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return err
			}
			written += int64(n)

			now := time.Now()
			if emit != nil && total > 0 && now.Sub(lastEmit) >= progressInterval {
				lastEmit = now
				elapsed := now.Sub(started).Seconds()
				rate := ""
				if elapsed > 0 {
					rate = humanize.IBytes(uint64(float64(written)/elapsed)) + "/s"
				}
				percent := float64(written) / float64(total) * 100
				if percent > 100 {
					percent = 100
				}
				emit(model.ProgressSample{
					Percent:     percent,
					Transferred: humanize.IBytes(uint64(written)),
					Rate:        rate,
					Stage:       model.StageFetching,
					SampledAt:   now,
				})
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		format := &formats[i]
		if !strings.HasPrefix(format.MimeType, "audio/") {
			continue
		}
		if best == nil || format.Bitrate > best.Bitrate {
			best = format
		}
	}
	return best
}

func bestVideoFormat(formats youtube.FormatList, quality string) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		format := &formats[i]
		if !strings.HasPrefix(format.MimeType, "video/mp4") || format.AudioChannels == 0 {
			continue
		}
		if format.QualityLabel == quality {
			return format
		}
		if best == nil || format.Bitrate > best.Bitrate {
			best = format
		}
	}
	return best
}

func extForMime(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/mp4"):
		return ".m4a"
	case strings.HasPrefix(mimeType, "audio/webm"):
		return ".webm"
	case strings.HasPrefix(mimeType, "video/webm"):
		return ".webm"
	default:
		return ".mp4"
	}
}
