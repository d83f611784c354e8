package raster

import "github.com/deepteams/pngopt/internal/container"

// AlphaKind classifies the alpha channel of an image.
type AlphaKind uint8

const (
	// AlphaOpaque means every pixel is fully opaque.
	AlphaOpaque AlphaKind = iota
	// AlphaKey means alpha is binary and one RGB value identifies every
	// transparent pixel, so a tRNS color key can replace the channel.
	AlphaKey
	// AlphaFull needs an alpha channel.
	AlphaFull
)

// MaxPaletteColors is the largest palette PNG allows.
const MaxPaletteColors = 256

// Analysis summarizes which representations an image fits losslessly.
type Analysis struct {
	Needs16  bool // some sample has differing high and low bytes
	Gray     bool // R == G == B everywhere
	GrayBits uint8
	Alpha    AlphaKind
	Key      [3]uint16 // 16-bit scale, valid for AlphaKey
	// Colors counts distinct 8-bit RGBA colors, saturating at
	// MaxPaletteColors+1.
	Colors int
}

// Analyze scans every pixel once.
func Analyze(img *Image) Analysis {
	a := Analysis{Gray: true, Alpha: AlphaOpaque}
	binary := true
	var haveKey, keyClash bool
	var key [3]uint16
	// 0: every gray byte fits 1 bit, 1: 2 bits, 2: 4 bits, 3: 8 bits.
	grayLevel := 0
	colors := make(map[uint32]struct{}, MaxPaletteColors+1)

	p := img.Pix
	for i := 0; i < len(p); i += 4 {
		r, g, b, al := p[i], p[i+1], p[i+2], p[i+3]
		if !a.Needs16 && (r>>8 != r&0xff || g>>8 != g&0xff || b>>8 != b&0xff || al>>8 != al&0xff) {
			a.Needs16 = true
		}
		if r != g || g != b {
			a.Gray = false
		}
		if grayLevel < 3 {
			grayLevel = max(grayLevel, grayLevelOf(uint8(r>>8)))
		}
		switch al {
		case 0xffff:
		case 0:
			rgb := [3]uint16{r, g, b}
			if !haveKey {
				key, haveKey = rgb, true
			} else if rgb != key {
				keyClash = true
			}
		default:
			binary = false
		}
		if len(colors) <= MaxPaletteColors {
			colors[uint32(r>>8)<<24|uint32(g>>8)<<16|uint32(b>>8)<<8|uint32(al>>8)] = struct{}{}
		}
	}
	a.Colors = len(colors)
	a.GrayBits = [4]uint8{1, 2, 4, 8}[grayLevel]

	switch {
	case !binary || keyClash:
		a.Alpha = AlphaFull
	case haveKey:
		// The key must not also name an opaque pixel.
		for i := 0; i < len(p); i += 4 {
			if p[i+3] == 0xffff && p[i] == key[0] && p[i+1] == key[1] && p[i+2] == key[2] {
				a.Alpha = AlphaFull
				return a
			}
		}
		a.Alpha = AlphaKey
		a.Key = key
	}
	return a
}

func grayLevelOf(v uint8) int {
	switch {
	case v == 0 || v == 255:
		return 0
	case v%85 == 0:
		return 1
	case v%17 == 0:
		return 2
	default:
		return 3
	}
}

// FullColor returns the smallest non-palette mode that holds the analysed
// image without loss.
func (a Analysis) FullColor() Mode {
	depth := uint8(8)
	if a.Needs16 {
		depth = 16
	}
	var m Mode
	if a.Gray {
		m.BitDepth = depth
		if !a.Needs16 {
			m.BitDepth = a.GrayBits
		}
		m.ColorType = container.ColorGray
		if a.Alpha == AlphaFull {
			m.ColorType, m.BitDepth = container.ColorGrayAlpha, depth
		}
	} else {
		m.ColorType, m.BitDepth = container.ColorRGB, depth
		if a.Alpha == AlphaFull {
			m.ColorType = container.ColorRGBA
		}
	}
	if a.Alpha == AlphaKey {
		m.HasKey = true
		for i, k := range a.Key {
			m.Key[i] = sampleAt(k, m.BitDepth)
		}
	}
	return m
}

// PaletteViable reports whether the image fits a palette.
func (a Analysis) PaletteViable() bool {
	return !a.Needs16 && a.Colors <= MaxPaletteColors
}

// PaletteDepth returns the smallest palette bit depth for n entries.
func PaletteDepth(n int) uint8 {
	switch {
	case n <= 2:
		return 1
	case n <= 4:
		return 2
	case n <= 16:
		return 4
	default:
		return 8
	}
}
