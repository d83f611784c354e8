// Package filter applies PNG scanline filters and chooses one filter type
// per scanline using heuristics, exhaustive searches driven by real
// compressed sizes, or a genetic algorithm.
package filter

import (
	"errors"
	"fmt"
)

// PNG filter types.
const (
	None uint8 = iota
	Sub
	Up
	Average
	Paeth
	NumTypes = 5
)

// Errors returned by the filter package.
var (
	ErrNoEvaluator   = errors.New("filter: strategy needs an evaluator")
	ErrBadAssignment = errors.New("filter: invalid filter assignment")
	ErrBudget        = errors.New("filter: search budget is empty")
	ErrCorrupt       = errors.New("filter: corrupt filtered data")
	ErrImage         = errors.New("filter: invalid image geometry")
)

// Assignment holds one filter type per scanline.
type Assignment []uint8

// Validate checks the length against the scanline count and every entry
// against the known filter types.
func (a Assignment) Validate(height int) error {
	if len(a) != height {
		return fmt.Errorf("%w: %d entries for %d scanlines", ErrBadAssignment, len(a), height)
	}
	for y, f := range a {
		if f >= NumTypes {
			return fmt.Errorf("%w: scanline %d has filter %d", ErrBadAssignment, y, f)
		}
	}
	return nil
}

// Image describes unfiltered scanlines.
type Image struct {
	Data   []byte // Height rows of Stride bytes
	Stride int
	Height int
	BPP    int // bytes per complete pixel, at least 1
}

func (img *Image) validate() error {
	if img.Stride <= 0 || img.Height <= 0 || img.BPP < 1 || img.BPP > 8 || len(img.Data) != img.Stride*img.Height {
		return fmt.Errorf("%w: stride %d height %d bpp %d data %d", ErrImage, img.Stride, img.Height, img.BPP, len(img.Data))
	}
	return nil
}

// Row returns scanline y.
func (img *Image) Row(y int) []byte {
	return img.Data[y*img.Stride : (y+1)*img.Stride]
}

// FilteredSize returns the length of the filter-byte prefixed stream.
func (img *Image) FilteredSize() int {
	return img.Height * (img.Stride + 1)
}

// Apply filters every scanline with its assigned type and prefixes each
// with the filter byte.
func Apply(img *Image, a Assignment) []byte {
	out := make([]byte, img.FilteredSize())
	ApplyTo(out, img, a)
	return out
}

// ApplyTo is Apply writing into out, which must hold FilteredSize bytes.
func ApplyTo(out []byte, img *Image, a Assignment) {
	var prev []byte
	for y := 0; y < img.Height; y++ {
		off := y * (img.Stride + 1)
		out[off] = a[y]
		cur := img.Row(y)
		filterRow(out[off+1:off+1+img.Stride], a[y], cur, prev, img.BPP)
		prev = cur
	}
}

// applyRow rewrites scanline y of an Apply result for filter type ft.
func applyRow(out []byte, img *Image, y int, ft uint8) {
	off := y * (img.Stride + 1)
	out[off] = ft
	var prev []byte
	if y > 0 {
		prev = img.Row(y - 1)
	}
	filterRow(out[off+1:off+1+img.Stride], ft, img.Row(y), prev, img.BPP)
}

// filterRow writes the residuals of cur into dst. A nil prev is the zero
// row above the image.
func filterRow(dst []byte, ft uint8, cur, prev []byte, bpp int) {
	n := len(cur)
	switch ft {
	case None:
		copy(dst, cur)
	case Sub:
		copy(dst[:min(bpp, n)], cur)
		for i := bpp; i < n; i++ {
			dst[i] = cur[i] - cur[i-bpp]
		}
	case Up:
		if prev == nil {
			copy(dst, cur)
			return
		}
		for i := 0; i < n; i++ {
			dst[i] = cur[i] - prev[i]
		}
	case Average:
		for i := 0; i < n; i++ {
			var left, up int
			if i >= bpp {
				left = int(cur[i-bpp])
			}
			if prev != nil {
				up = int(prev[i])
			}
			dst[i] = cur[i] - byte((left+up)>>1)
		}
	case Paeth:
		for i := 0; i < n; i++ {
			var left, up, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
			}
			if prev != nil {
				up = prev[i]
				if i >= bpp {
					upLeft = prev[i-bpp]
				}
			}
			dst[i] = cur[i] - paeth(left, up, upLeft)
		}
	}
}

// paeth is the PNG Paeth predictor.
func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := absInt(p-int(a)), absInt(p-int(b)), absInt(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Unfilter reverses Apply, returning the scanlines and the filter types
// found in the stream.
func Unfilter(filtered []byte, stride, height, bpp int) ([]byte, Assignment, error) {
	if stride <= 0 || height < 0 || len(filtered) != height*(stride+1) {
		return nil, nil, fmt.Errorf("%w: %d bytes for %d rows of %d", ErrCorrupt, len(filtered), height, stride)
	}
	out := make([]byte, stride*height)
	a := make(Assignment, height)
	for y := 0; y < height; y++ {
		in := filtered[y*(stride+1):]
		ft := in[0]
		if ft >= NumTypes {
			return nil, nil, fmt.Errorf("%w: scanline %d filter %d", ErrCorrupt, y, ft)
		}
		a[y] = ft
		in = in[1 : 1+stride]
		cur := out[y*stride : (y+1)*stride]
		var prev []byte
		if y > 0 {
			prev = out[(y-1)*stride : y*stride]
		}
		for i := 0; i < stride; i++ {
			var left, up, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
			}
			if prev != nil {
				up = prev[i]
				if i >= bpp {
					upLeft = prev[i-bpp]
				}
			}
			var pred byte
			switch ft {
			case Sub:
				pred = left
			case Up:
				pred = up
			case Average:
				pred = byte((int(left) + int(up)) >> 1)
			case Paeth:
				pred = paeth(left, up, upLeft)
			}
			cur[i] = in[i] + pred
		}
	}
	return out, a, nil
}
