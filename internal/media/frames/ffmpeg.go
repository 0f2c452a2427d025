package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"scenesub/internal/scenes"
)

// stderrTail bounds how many non-showinfo stderr lines are kept for errors.
const stderrTail = 20

var ptsPattern = regexp.MustCompile(`\bpts_time:\s*(\S+)`)

// FFmpegSource decodes the first video stream of Path with ffmpeg.
type FFmpegSource struct {
	Binary string
	Path   string
	// Width and Height are the decoded stream dimensions, usually from ffprobe.
	Width  int
	Height int
	// MaxWidth asks ffmpeg to downscale wider streams before piping frames.
	MaxWidth int
	// FPS is reported to the detector; zero means unknown.
	FPS float64
}

// OutputSize returns the frame dimensions ffmpeg will emit.
func (s FFmpegSource) OutputSize() (int, int) {
	w, h := s.Width, s.Height
	if s.MaxWidth > 0 && w > s.MaxWidth {
		h = max(h*s.MaxWidth/w, 1)
		w = s.MaxWidth
	}
	return w, h
}

// Args returns the ffmpeg arguments used to decode the source.
func (s FFmpegSource) Args() []string {
	filter := "showinfo"
	if w, h := s.OutputSize(); w != s.Width || h != s.Height {
		filter = fmt.Sprintf("scale=%d:%d,showinfo", w, h)
	}
	return []string{
		"-hide_banner",
		"-nostats",
		"-loglevel", "info",
		"-i", s.Path,
		"-map", "0:v:0",
		"-an", "-sn", "-dn",
		"-vf", filter,
		// One output frame per showinfo line; CFR sync would duplicate or drop
		// frames after the filter and desync the pts channel.
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	}
}

// Open starts ffmpeg. The returned reader owns the process; Close kills it.
func (s FFmpegSource) Open(ctx context.Context) (scenes.Reader, error) {
	if strings.TrimSpace(s.Path) == "" {
		return nil, errors.New("frames: empty path")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("frames: unknown frame size %dx%d", s.Width, s.Height)
	}
	binary := strings.TrimSpace(s.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}

	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, binary, s.Args()...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("frames: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("frames: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("frames: start %s: %w", binary, err)
	}

	w, h := s.OutputSize()
	r := newStreamReader(stdout, stderr, w, h, s.FPS)
	r.wait = cmd.Wait
	r.cancel = cancel
	return r, nil
}

// streamReader pairs fixed-size gray frames from one stream with showinfo
// timestamps parsed from another.
type streamReader struct {
	frames io.Reader
	width  int
	height int
	fps    float64

	pts      chan float64
	stopped  chan struct{}
	logsDone chan struct{}
	logMu    sync.Mutex
	logTail  []string

	wait   func() error
	cancel context.CancelFunc

	count     int
	finishErr error
	finished  bool
	closeOnce sync.Once
}

func newStreamReader(frames, logs io.Reader, width, height int, fps float64) *streamReader {
	r := &streamReader{
		frames:   frames,
		width:    width,
		height:   height,
		fps:      fps,
		pts:      make(chan float64, 64),
		stopped:  make(chan struct{}),
		logsDone: make(chan struct{}),
	}
	go r.scanLogs(logs)
	return r
}

func (r *streamReader) FrameRate() float64 { return r.fps }

func (r *streamReader) scanLogs(logs io.Reader) {
	defer close(r.logsDone)
	defer close(r.pts)

	var line bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := logs.Read(buf)
		for _, b := range buf[:n] {
			// ffmpeg ends progress lines with \r as well as \n.
			if b != '\n' && b != '\r' {
				line.WriteByte(b)
				continue
			}
			if !r.handleLine(line.String()) {
				return
			}
			line.Reset()
		}
		if err != nil {
			if line.Len() > 0 {
				r.handleLine(line.String())
			}
			return
		}
	}
}

// handleLine returns false once the reader has been closed.
func (r *streamReader) handleLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}
	ts, ok, err := parsePTS(line)
	if !ok {
		r.logMu.Lock()
		r.logTail = append(r.logTail, strings.TrimSpace(line))
		if len(r.logTail) > stderrTail {
			r.logTail = r.logTail[len(r.logTail)-stderrTail:]
		}
		r.logMu.Unlock()
		return true
	}
	if err != nil {
		ts = math.NaN()
	}
	select {
	case r.pts <- ts:
		return true
	case <-r.stopped:
		return false
	}
}

// Next reads the next frame and its timestamp.
func (r *streamReader) Next(ctx context.Context) (scenes.Frame, error) {
	if r.finished {
		return scenes.Frame{}, r.endErr()
	}
	img := image.NewGray(image.Rect(0, 0, r.width, r.height))
	_, err := io.ReadFull(r.frames, img.Pix)
	switch {
	case errors.Is(err, io.EOF):
		r.finish()
		return scenes.Frame{}, r.endErr()
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.finish()
		return scenes.Frame{}, fmt.Errorf("frames: partial frame %d: %w", r.count, r.describe(io.ErrUnexpectedEOF))
	case err != nil:
		return scenes.Frame{}, fmt.Errorf("frames: read frame %d: %w", r.count, err)
	}

	var ts float64
	select {
	case <-ctx.Done():
		return scenes.Frame{}, ctx.Err()
	case v, ok := <-r.pts:
		if !ok {
			return scenes.Frame{}, fmt.Errorf("frames: no timestamp for frame %d", r.count)
		}
		if math.IsNaN(v) {
			return scenes.Frame{}, fmt.Errorf("frames: unparsable timestamp for frame %d", r.count)
		}
		ts = v
	}
	r.count++
	return scenes.Frame{Image: img, Timestamp: ts}, nil
}

// finish waits for the decoder to exit after its output ended.
func (r *streamReader) finish() {
	if r.finished {
		return
	}
	r.finished = true
	for range r.pts {
	}
	<-r.logsDone
	if r.wait != nil {
		r.finishErr = r.wait()
		r.wait = nil
	}
}

func (r *streamReader) endErr() error {
	if r.finishErr != nil {
		return fmt.Errorf("frames: decoder exited after %d frames: %w", r.count, r.describe(r.finishErr))
	}
	return io.EOF
}

func (r *streamReader) describe(err error) error {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	if len(r.logTail) == 0 {
		return err
	}
	return fmt.Errorf("%w: %s", err, strings.Join(r.logTail, "; "))
}

// Close stops the decoder and releases its pipes.
func (r *streamReader) Close() error {
	r.closeOnce.Do(func() {
		close(r.stopped)
		if r.cancel != nil {
			r.cancel()
		}
		if !r.finished {
			r.finished = true
			<-r.logsDone
			if r.wait != nil {
				// The process was killed; its exit status carries no information.
				_ = r.wait()
				r.wait = nil
			}
		}
	})
	return nil
}

// parsePTS extracts pts_time from a showinfo line. ok reports whether the
// line is a showinfo frame line at all.
func parsePTS(line string) (ts float64, ok bool, err error) {
	if !strings.Contains(line, "showinfo") {
		return 0, false, nil
	}
	m := ptsPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false, nil
	}
	ts, err = strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, true, fmt.Errorf("parse pts_time %q: %w", m[1], err)
	}
	return ts, true, nil
}
