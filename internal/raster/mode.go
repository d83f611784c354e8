package raster

import (
	"fmt"

	"github.com/deepteams/pngopt/internal/container"
)

// Mode is a PNG pixel representation: color type, bit depth and an
// optional tRNS color key.
type Mode struct {
	ColorType uint8
	BitDepth  uint8
	// Key is the fully transparent color, in samples of BitDepth, for gray
	// and truecolor modes. Gray uses Key[0] only.
	HasKey bool
	Key    [3]uint16
}

func (m Mode) String() string {
	name := map[uint8]string{
		container.ColorGray:      "gray",
		container.ColorRGB:       "rgb",
		container.ColorPalette:   "palette",
		container.ColorGrayAlpha: "gray-alpha",
		container.ColorRGBA:      "rgba",
	}[m.ColorType]
	if m.HasKey {
		return fmt.Sprintf("%s%d+key", name, m.BitDepth)
	}
	return fmt.Sprintf("%s%d", name, m.BitDepth)
}

// BitsPerPixel returns the bits one pixel occupies.
func (m Mode) BitsPerPixel() int {
	return container.Channels(m.ColorType) * int(m.BitDepth)
}

// Stride returns the bytes of one unfiltered scanline.
func (m Mode) Stride(width int) int {
	return (width*m.BitsPerPixel() + 7) / 8
}

// FilterBPP returns the byte distance between corresponding bytes of
// adjacent pixels used by the scanline filters.
func (m Mode) FilterBPP() int {
	return max(1, m.BitsPerPixel()/8)
}

// RawSize returns the size of the filter-byte prefixed scanline data.
func (m Mode) RawSize(width, height int) int {
	return height * (m.Stride(width) + 1)
}

// TRNS returns the tRNS payload for a keyed gray or truecolor mode, or nil.
func (m Mode) TRNS() []byte {
	if !m.HasKey {
		return nil
	}
	if m.ColorType == container.ColorGray {
		return []byte{byte(m.Key[0] >> 8), byte(m.Key[0])}
	}
	out := make([]byte, 6)
	for i, k := range m.Key {
		out[2*i], out[2*i+1] = byte(k>>8), byte(k)
	}
	return out
}

// KeyFromTRNS parses the color key of a gray or truecolor tRNS chunk.
func KeyFromTRNS(colorType uint8, data []byte) (key [3]uint16, ok bool) {
	switch {
	case colorType == container.ColorGray && len(data) >= 2:
		key[0] = uint16(data[0])<<8 | uint16(data[1])
		return key, true
	case colorType == container.ColorRGB && len(data) >= 6:
		for i := range key {
			key[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
		}
		return key, true
	}
	return key, false
}

// sampleAt scales a 16-bit sample to the given depth. Low depths assume the
// sample is exactly representable, which Analyze guarantees.
func sampleAt(v uint16, depth uint8) uint16 {
	switch depth {
	case 16:
		return v
	case 8:
		return v >> 8
	default:
		return (v >> 8) >> (8 - depth)
	}
}
