package proc

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/tubebeam/tubebeam/internal/model"
)

const (
	// LineBufferSize is the capacity of the output line channel. Producers
	// never block on it: when the consumer lags, older samples are dropped,
	// which is fine for a lossy progress stream.
	LineBufferSize = 64

	// StderrTailLines is how many trailing stderr lines are kept for error
	// reporting
	StderrTailLines = 20

	// maxLineSize guards the scanner against pathological process output
	maxLineSize = 256 * 1024
)

// Handle is a running external process. Output lines are consumed as
// produced (single traversal); Wait must always be called to reap the
// process.
type Handle struct {
	cmd   *exec.Cmd
	lines chan string

	tailMu sync.Mutex
	tail   []string

	scanWG   sync.WaitGroup
	waitOnce sync.Once
	exitCode int
	waitErr  error
	done     chan struct{}

	killOnce sync.Once
}

// Start launches an external executable in its own process group and
// begins streaming its output. A binary that cannot be started at all is
// reported synchronously as a LaunchError.
func Start(ctx context.Context, name string, args ...string) (*Handle, error) {
	cmd := exec.Command(name, args...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &model.LaunchError{Binary: name, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &model.LaunchError{Binary: name, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &model.LaunchError{Binary: name, Err: err}
	}

	h := &Handle{
		cmd:   cmd,
		lines: make(chan string, LineBufferSize),
		done:  make(chan struct{}),
	}

	h.scanWG.Add(2)
	go h.scan(stdout, false)
	go h.scan(stderr, true)

	// The line channel closes as soon as both pipes hit EOF, so a caller
	// ranging over Lines() before calling Wait does not block forever.
	go func() {
		h.scanWG.Wait()
		close(h.lines)
	}()

	// Kill the process group if the caller's context ends first.
	go func() {
		select {
		case <-ctx.Done():
			h.Kill()
		case <-h.done:
		}
	}()

	return h, nil
}

// Lines returns the merged stdout/stderr line stream. The channel is closed
// once the process exits and both pipes are drained.
func (h *Handle) Lines() <-chan string {
	return h.lines
}

// Wait reaps the process and returns its exit code. The returned error is
// only non-nil for supervision failures, not for non-zero exits.
func (h *Handle) Wait() (int, error) {
	h.waitOnce.Do(func() {
		// cmd.Wait closes the pipes, so the scanners must finish first
		h.scanWG.Wait()

		err := h.cmd.Wait()
		close(h.done)
		if err == nil {
			h.exitCode = 0
			return
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			h.exitCode = exitErr.ExitCode()
			return
		}
		h.exitCode = -1
		h.waitErr = err
	})
	return h.exitCode, h.waitErr
}

// Kill terminates the whole process group, including transcode children.
// Safe to call multiple times and concurrently with Wait.
func (h *Handle) Kill() {
	h.killOnce.Do(func() {
		killProcessGroup(h.cmd)
	})
}

// StderrTail returns the last captured stderr lines as one excerpt
func (h *Handle) StderrTail() string {
	h.tailMu.Lock()
	defer h.tailMu.Unlock()
	return strings.Join(h.tail, "\n")
}

func (h *Handle) scan(r io.Reader, isStderr bool) {
	defer h.scanWG.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), maxLineSize)
	scanner.Split(scanLinesCR)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if isStderr {
			h.appendTail(line)
		}
		select {
		case h.lines <- line:
		default:
		}
	}
}

func (h *Handle) appendTail(line string) {
	h.tailMu.Lock()
	defer h.tailMu.Unlock()
	h.tail = append(h.tail, line)
	if len(h.tail) > StderrTailLines {
		h.tail = h.tail[len(h.tail)-StderrTailLines:]
	}
}

// scanLinesCR splits on \n like bufio.ScanLines but also treats a bare \r
// as a terminator. ffmpeg rewrites its stats line with carriage returns, so
// plain line scanning would never surface frame progress.
func scanLinesCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, bytes.TrimRight(data[:i], "\r\n"), nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
