package fetch

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

const (
	YtdlpCommand = "yt-dlp"

	// Output template: a fixed stem keeps the fetched file discoverable
	// regardless of source title or extension
	outputTemplate = "source.%(ext)s"

	// MergeContainer is the merge target for split video+audio formats.
	// mkv handles VP9 properly; the transcode step produces the final mp4.
	MergeContainer = "mkv"

	// Bandwidth caps per tier
	DefaultRateLimit = "2M"
	VIPRateLimit     = "8M"

	watchURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// Backend fetches media via the yt-dlp binary
type Backend struct {
	bin       string
	rateLimit string
	vipLimit  string
}

// NewBackend creates a yt-dlp backend. Empty arguments fall back to the
// yt-dlp binary on PATH and the default bandwidth tiers.
func NewBackend(bin, rateLimit, vipLimit string) *Backend {
	if bin == "" {
		bin = YtdlpCommand
	}
	if rateLimit == "" {
		rateLimit = DefaultRateLimit
	}
	if vipLimit == "" {
		vipLimit = VIPRateLimit
	}
	return &Backend{bin: bin, rateLimit: rateLimit, vipLimit: vipLimit}
}

// Name identifies the backend in logs and probe metadata
func (b *Backend) Name() string { return "yt-dlp" }

// BuildArgs builds the yt-dlp invocation for a request
func (b *Backend) BuildArgs(req model.JobRequest, destDir string) []string {
	args := []string{
		"--newline",
		"--no-warnings",
		"--no-playlist",
		"-o", filepath.Join(destDir, outputTemplate),
	}

	limit := b.rateLimit
	if req.VIP {
		limit = b.vipLimit
	}
	args = append(args, "--limit-rate", limit)

	formatID := req.FormatID
	if formatID == "" {
		if req.Format == model.FormatAudio {
			formatID = "bestaudio"
		} else {
			formatID = "best"
		}
	}
	args = append(args, "-f", formatID)

	if req.Format == model.FormatVideo {
		args = append(args, "--merge-output-format", MergeContainer)
	}

	return append(args, fmt.Sprintf(watchURLTemplate, req.MediaID))
}

// Fetch runs yt-dlp and returns the path of the fetched file
func (b *Backend) Fetch(ctx context.Context, req model.JobRequest, destDir string, emit func(model.ProgressSample)) (string, error) {
	h, err := proc.Start(ctx, b.bin, b.BuildArgs(req, destDir)...)
	if err != nil {
		return "", err
	}

	for line := range h.Lines() {
		if sample, ok := progress.ParseFetch(line); ok && emit != nil {
			emit(sample)
		}
	}

	code, err := h.Wait()
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", &model.FetchError{MediaID: req.MediaID, ExitCode: code, Stderr: h.StderrTail()}
	}

	return findFetchedFile(destDir)
}

// findFetchedFile locates the file written under the output template. The
// extension is whatever yt-dlp settled on, so the directory is scanned
// rather than guessed.
func findFetchedFile(destDir string) (string, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), "source.") && !strings.HasSuffix(entry.Name(), ".part") {
			return filepath.Join(destDir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("no fetched file in %s", destDir)
}
