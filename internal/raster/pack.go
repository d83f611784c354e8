package raster

import (
	"fmt"

	"github.com/deepteams/pngopt/internal/container"
)

// bitPacker appends samples narrower than a byte, most significant bits
// first, as PNG scanlines require.
type bitPacker struct {
	row  []byte
	acc  byte
	nacc uint8
}

func (bp *bitPacker) put(v uint16, depth uint8) {
	bp.acc = bp.acc<<depth | byte(v)
	bp.nacc += depth
	if bp.nacc == 8 {
		bp.row = append(bp.row, bp.acc)
		bp.acc, bp.nacc = 0, 0
	}
}

// flush pads a partial final byte with zero bits.
func (bp *bitPacker) flush() {
	if bp.nacc > 0 {
		bp.row = append(bp.row, bp.acc<<(8-bp.nacc))
		bp.acc, bp.nacc = 0, 0
	}
}

// Pack serializes the image into unfiltered scanlines of mode, without
// filter bytes. Transparent pixels of a keyed mode are written as the key.
func Pack(img *Image, m Mode) ([]byte, error) {
	if m.ColorType == container.ColorPalette {
		return nil, fmt.Errorf("%w: palette modes pack indices", ErrUnsupported)
	}
	if !container.ValidDepth(m.ColorType, m.BitDepth) {
		return nil, fmt.Errorf("%w: color type %d depth %d", ErrUnsupported, m.ColorType, m.BitDepth)
	}
	stride := m.Stride(img.Width)
	out := make([]byte, 0, stride*img.Height)
	var bp bitPacker
	bp.row = out

	put := func(v uint16) {
		switch m.BitDepth {
		case 16:
			bp.row = append(bp.row, byte(v>>8), byte(v))
		case 8:
			bp.row = append(bp.row, byte(v>>8))
		default:
			bp.put(sampleAt(v, m.BitDepth), m.BitDepth)
		}
	}

	p := img.Pix
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := 4 * (y*img.Width + x)
			r, g, b, a := p[i], p[i+1], p[i+2], p[i+3]
			if m.HasKey && a == 0 {
				// Keys are stored at BitDepth; put expects 16-bit scale.
				r, g, b = keyTo16(m.Key[0], m.BitDepth), keyTo16(m.Key[1], m.BitDepth), keyTo16(m.Key[2], m.BitDepth)
			}
			switch m.ColorType {
			case container.ColorGray:
				put(r)
			case container.ColorGrayAlpha:
				put(r)
				put(a)
			case container.ColorRGB:
				put(r)
				put(g)
				put(b)
			case container.ColorRGBA:
				put(r)
				put(g)
				put(b)
				put(a)
			}
		}
		bp.flush()
	}
	return bp.row, nil
}

// keyTo16 is the inverse of sampleAt for exactly representable values.
func keyTo16(k uint16, depth uint8) uint16 {
	switch depth {
	case 16:
		return k
	case 8:
		return k * 257
	default:
		v := k * (255 / (1<<depth - 1))
		return v * 257
	}
}

// PackIndices serializes palette indices into unfiltered scanlines at the
// given bit depth.
func PackIndices(index []uint8, width, height int, depth uint8) ([]byte, error) {
	if !container.ValidDepth(container.ColorPalette, depth) {
		return nil, fmt.Errorf("%w: palette depth %d", ErrUnsupported, depth)
	}
	if len(index) != width*height {
		return nil, fmt.Errorf("%w: %d indices for %dx%d", ErrUnsupported, len(index), width, height)
	}
	if depth == 8 {
		out := make([]byte, len(index))
		copy(out, index)
		return out, nil
	}
	limit := uint8(1<<depth - 1)
	var bp bitPacker
	bp.row = make([]byte, 0, (width*int(depth)+7)/8*height)
	for y := 0; y < height; y++ {
		for _, idx := range index[y*width : (y+1)*width] {
			if idx > limit {
				return nil, fmt.Errorf("%w: index %d exceeds depth %d", ErrUnsupported, idx, depth)
			}
			bp.put(uint16(idx), depth)
		}
		bp.flush()
	}
	return bp.row, nil
}
