package scenes

import (
	"context"
	"errors"
	"image"
	"io"
	"math"

	"golang.org/x/image/draw"

	"scenesub/internal/services"
)

const (
	// DefaultThreshold is the scene-change sensitivity as a percentage.
	DefaultThreshold = 30.0
	// DefaultFPS is reported when a reader cannot supply its frame rate.
	DefaultFPS = 25.0
)

// ErrUnavailable marks a source that could not be opened or read at all. It
// is distinct from a readable source that simply has no cuts.
var ErrUnavailable = services.ErrUnavailable

// Frame is one decoded picture with its presentation timestamp in seconds.
type Frame struct {
	Image     image.Image
	Timestamp float64
}

// Reader yields frames in presentation order until io.EOF.
type Reader interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Source opens a Reader. Implementations acquire decoder resources in Open and
// release them in Reader.Close.
type Source interface {
	Open(ctx context.Context) (Reader, error)
}

// FrameRater is implemented by readers that know the stream's frame rate.
type FrameRater interface {
	FrameRate() float64
}

// List is a strictly increasing list of scene-change timestamps in seconds.
type List []float64

// Result is the outcome of a detection run.
type Result struct {
	Timestamps List
	// Frames counts decoded frames.
	Frames int
	// FPS is the reader's frame rate, or DefaultFPS when unknown.
	FPS float64
	// Truncated is set when decoding failed after at least one frame; the
	// timestamps cover the frames read before the failure.
	Truncated bool
	DecodeErr error
}

// Available reports whether the source produced a usable list.
func (r Result) Available() bool {
	return len(r.Timestamps) > 0
}

// Options tunes detection.
type Options struct {
	// Threshold is a percentage in [0, 100]; a change is recorded when the
	// histogram distance exceeds Threshold/100.
	Threshold float64
	// MaxWidth downscales wider frames before histogramming. Zero disables.
	MaxWidth int
}

// Detect consumes r and returns the scene-change timestamps. The caller owns r.
func Detect(ctx context.Context, r Reader, threshold float64) (Result, error) {
	return Options{Threshold: threshold}.Detect(ctx, r)
}

// DetectSource opens src, runs Detect, and always closes the reader.
func DetectSource(ctx context.Context, src Source, threshold float64) (Result, error) {
	return Options{Threshold: threshold}.DetectSource(ctx, src)
}

// DetectSource opens src, runs detection, and always closes the reader.
func (o Options) DetectSource(ctx context.Context, src Source) (Result, error) {
	if src == nil {
		return Result{Timestamps: List{}}, services.Wrap(ErrUnavailable, "scenes", "open", "no frame source", nil)
	}
	reader, err := src.Open(ctx)
	if err != nil {
		return Result{Timestamps: List{}}, services.Wrap(ErrUnavailable, "scenes", "open", "open frame source", err)
	}
	defer reader.Close()
	return o.Detect(ctx, reader)
}

// Detect consumes r and returns the scene-change timestamps. The caller owns r.
func (o Options) Detect(ctx context.Context, r Reader) (Result, error) {
	result := Result{FPS: DefaultFPS}
	if r == nil {
		result.Timestamps = List{}
		return result, services.Wrap(ErrUnavailable, "scenes", "read", "no frame reader", nil)
	}
	if rater, ok := r.(FrameRater); ok {
		if fps := rater.FrameRate(); fps > 0 {
			result.FPS = fps
		}
	}

	limit := o.Threshold / 100
	timestamps := List{0}
	var prev *Histogram

	for {
		if err := ctx.Err(); err != nil {
			result.Timestamps = timestamps
			return result, err
		}

		frame, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			if result.Frames == 0 {
				result.Timestamps = List{}
				return result, services.Wrap(ErrUnavailable, "scenes", "read", "no frames decoded", nil)
			}
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.Timestamps = timestamps
				return result, ctxErr
			}
			if result.Frames == 0 {
				result.Timestamps = List{}
				return result, services.Wrap(ErrUnavailable, "scenes", "read", "decode first frame", err)
			}
			result.Truncated = true
			result.DecodeErr = err
			break
		}
		result.Frames++

		hist := NewHistogram(o.prepare(frame.Image))
		if prev != nil && Bhattacharyya(prev, &hist) > limit {
			timestamps = timestamps.appendMonotonic(frame.Timestamp)
		}
		prev = &hist
	}

	result.Timestamps = timestamps
	return result, nil
}

func (o Options) prepare(img image.Image) image.Image {
	if img == nil || o.MaxWidth <= 0 {
		return img
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= o.MaxWidth || height == 0 {
		return img
	}
	scaledHeight := max(height*o.MaxWidth/width, 1)
	dst := image.NewGray(image.Rect(0, 0, o.MaxWidth, scaledHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// appendMonotonic adds ts only when it keeps the list strictly increasing.
func (l List) appendMonotonic(ts float64) List {
	if math.IsNaN(ts) || ts <= l[len(l)-1] {
		return l
	}
	return append(l, ts)
}
