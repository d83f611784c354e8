package container

import (
	"encoding/binary"
	"fmt"
)

// Header is the content of the IHDR chunk.
type Header struct {
	Width     int
	Height    int
	BitDepth  uint8
	ColorType uint8
	Interlace uint8 // 0 none, 1 Adam7
}

// ParseHeader decodes and validates an IHDR payload.
func ParseHeader(p []byte) (Header, error) {
	if len(p) != IHDRSize {
		return Header{}, fmt.Errorf("%w: length %d", ErrInvalidHeader, len(p))
	}
	h := Header{
		Width:     int(binary.BigEndian.Uint32(p[0:4])),
		Height:    int(binary.BigEndian.Uint32(p[4:8])),
		BitDepth:  p[8],
		ColorType: p[9],
		Interlace: p[12],
	}
	if h.Width <= 0 || h.Height <= 0 || h.Width > MaxChunkPayload || h.Height > MaxChunkPayload {
		return Header{}, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidHeader, h.Width, h.Height)
	}
	if !ValidDepth(h.ColorType, h.BitDepth) {
		return Header{}, fmt.Errorf("%w: color type %d with bit depth %d", ErrInvalidHeader, h.ColorType, h.BitDepth)
	}
	if p[10] != 0 || p[11] != 0 {
		return Header{}, fmt.Errorf("%w: compression %d, filter %d", ErrInvalidHeader, p[10], p[11])
	}
	if h.Interlace > 1 {
		return Header{}, fmt.Errorf("%w: interlace method %d", ErrInvalidHeader, h.Interlace)
	}
	return h, nil
}

// Marshal encodes the header as an IHDR payload.
func (h Header) Marshal() []byte {
	p := make([]byte, IHDRSize)
	binary.BigEndian.PutUint32(p[0:4], uint32(h.Width))
	binary.BigEndian.PutUint32(p[4:8], uint32(h.Height))
	p[8] = h.BitDepth
	p[9] = h.ColorType
	p[12] = h.Interlace
	return p
}

// BitsPerPixel returns the number of bits of one pixel.
func (h Header) BitsPerPixel() int {
	return Channels(h.ColorType) * int(h.BitDepth)
}

// Stride returns the number of bytes of one scanline, excluding the filter byte.
func (h Header) Stride() int {
	return (h.Width*h.BitsPerPixel() + 7) / 8
}
