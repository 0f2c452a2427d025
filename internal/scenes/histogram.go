package scenes

import (
	"image"
	"image/color"
	"math"
)

// Bins is the number of luminance buckets in a Histogram.
const Bins = 256

// Histogram is an L2-normalized luminance distribution.
type Histogram [Bins]float64

// NewHistogram computes the normalized luminance histogram of img.
func NewHistogram(img image.Image) Histogram {
	var h Histogram
	if img == nil {
		return h
	}
	accumulate(&h, img)
	h.normalize()
	return h
}

func accumulate(h *Histogram, img image.Image) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return
	}
	switch src := img.(type) {
	case *image.Gray:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, y):src.PixOffset(bounds.Max.X, y)]
			for _, v := range row {
				h[v]++
			}
		}
	case *image.YCbCr:
		// The Y plane already holds luma.
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := src.Y[src.YOffset(bounds.Min.X, y) : src.YOffset(bounds.Max.X-1, y)+1]
			for _, v := range row {
				h[v]++
			}
		}
	default:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
				h[g.Y]++
			}
		}
	}
}

func (h *Histogram) normalize() {
	var sum float64
	for _, v := range h {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range h {
		h[i] /= norm
	}
}

func (h *Histogram) sum() float64 {
	var s float64
	for _, v := range h {
		s += v
	}
	return s
}

// Empty reports whether the histogram has no mass (a zero-pixel frame).
func (h *Histogram) Empty() bool {
	return h.sum() == 0
}

// Bhattacharyya returns the distance between two histograms in [0, 1]; 0 means
// identical distributions. Two empty histograms are identical; an empty and a
// non-empty histogram are maximally distant.
func Bhattacharyya(a, b *Histogram) float64 {
	sa, sb := a.sum(), b.sum()
	switch {
	case sa == 0 && sb == 0:
		return 0
	case sa == 0 || sb == 0:
		return 1
	}

	var overlap float64
	for i := range a {
		overlap += math.Sqrt(a[i] * b[i])
	}
	// 1/sqrt(mean(a)*mean(b)*N^2) reduces to 1/sqrt(sum(a)*sum(b)).
	coefficient := overlap / math.Sqrt(sa*sb)
	d := math.Sqrt(math.Max(0, 1-coefficient))
	return math.Min(d, 1)
}
