// Package raster turns decoded PNG pixels into raw scanline bytes for a
// chosen color type and bit depth, and analyses which reduced color types
// can represent an image without loss.
//
// All pixels are held as straight-alpha RGBA samples on a 16-bit scale, so
// 8-bit input sample v is stored as v*257.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// Errors returned by the raster package.
var (
	ErrDecode      = errors.New("raster: cannot decode pixels")
	ErrUnsupported = errors.New("raster: unsupported pixel layout")
)

// Image is a decoded image in 16-bit straight-alpha RGBA samples.
type Image struct {
	Width, Height int
	// Pix holds 4 samples (R, G, B, A) per pixel, row-major.
	Pix []uint16

	// Palette and Index are set for palette input only and reproduce the
	// original indexed representation exactly.
	Palette []color.NRGBA
	Index   []uint8
}

// New allocates an opaque black image.
func New(width, height int) *Image {
	img := &Image{Width: width, Height: height, Pix: make([]uint16, 4*width*height)}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xffff
	}
	return img
}

// Decode decodes a PNG byte stream with image/png.
func Decode(data []byte) (*Image, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return FromImage(src)
}

// FromImage converts a decoded image into straight-alpha 16-bit samples.
// The concrete types produced by image/png are converted without
// precision loss.
func FromImage(src image.Image) (*Image, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty bounds %v", ErrUnsupported, b)
	}
	img := &Image{Width: w, Height: h, Pix: make([]uint16, 4*w*h)}
	p := img.Pix
	i := 0

	switch s := src.(type) {
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+4*w]
			for _, v := range row {
				p[i] = uint16(v) * 257
				i++
			}
		}
	case *image.NRGBA64:
		for y := 0; y < h; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+8*w]
			for j := 0; j < len(row); j += 2 {
				p[i] = uint16(row[j])<<8 | uint16(row[j+1])
				i++
			}
		}
	case *image.RGBA:
		// image/png only produces RGBA for opaque truecolor.
		for y := 0; y < h; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+4*w]
			for _, v := range row {
				p[i] = uint16(v) * 257
				i++
			}
		}
	case *image.RGBA64:
		for y := 0; y < h; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+8*w]
			for j := 0; j < len(row); j += 2 {
				p[i] = uint16(row[j])<<8 | uint16(row[j+1])
				i++
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			for _, v := range s.Pix[y*s.Stride : y*s.Stride+w] {
				g := uint16(v) * 257
				p[i], p[i+1], p[i+2], p[i+3] = g, g, g, 0xffff
				i += 4
			}
		}
	case *image.Gray16:
		for y := 0; y < h; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+2*w]
			for j := 0; j < len(row); j += 2 {
				g := uint16(row[j])<<8 | uint16(row[j+1])
				p[i], p[i+1], p[i+2], p[i+3] = g, g, g, 0xffff
				i += 4
			}
		}
	case *image.Paletted:
		pal := make([]color.NRGBA, len(s.Palette))
		for k, c := range s.Palette {
			pal[k] = color.NRGBAModel.Convert(c).(color.NRGBA)
		}
		img.Palette = pal
		img.Index = make([]uint8, w*h)
		for y := 0; y < h; y++ {
			for x, idx := range s.Pix[y*s.Stride : y*s.Stride+w] {
				if int(idx) >= len(pal) {
					return nil, fmt.Errorf("%w: palette index %d out of range", ErrDecode, idx)
				}
				img.Index[y*w+x] = idx
				c := pal[idx]
				p[i], p[i+1], p[i+2], p[i+3] = uint16(c.R)*257, uint16(c.G)*257, uint16(c.B)*257, uint16(c.A)*257
				i += 4
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBA64Model.Convert(src.At(x, y)).(color.NRGBA64)
				p[i], p[i+1], p[i+2], p[i+3] = c.R, c.G, c.B, c.A
				i += 4
			}
		}
	}
	return img, nil
}

// At returns the samples of pixel (x, y).
func (img *Image) At(x, y int) (r, g, b, a uint16) {
	i := 4 * (y*img.Width + x)
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]
}

// Clone returns a deep copy without the original palette.
func (img *Image) Clone() *Image {
	out := &Image{Width: img.Width, Height: img.Height, Pix: make([]uint16, len(img.Pix))}
	copy(out.Pix, img.Pix)
	return out
}

// NRGBA returns the 8-bit colors of every pixel, taking the high byte of
// each sample.
func (img *Image) NRGBA() []color.NRGBA {
	out := make([]color.NRGBA, img.Width*img.Height)
	for i := range out {
		p := img.Pix[4*i : 4*i+4]
		out[i] = color.NRGBA{uint8(p[0] >> 8), uint8(p[1] >> 8), uint8(p[2] >> 8), uint8(p[3] >> 8)}
	}
	return out
}

// Equal reports whether two images hold identical samples.
func (img *Image) Equal(o *Image) bool {
	if img.Width != o.Width || img.Height != o.Height || len(img.Pix) != len(o.Pix) {
		return false
	}
	for i, v := range img.Pix {
		if o.Pix[i] != v {
			return false
		}
	}
	return true
}
