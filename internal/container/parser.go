package container

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// File is a parsed PNG: its header and every chunk in file order.
type File struct {
	Header Header
	Chunks []Chunk
}

// Parse walks all chunks of a PNG, checking the signature, every CRC and
// the ordering of the critical chunks. Payloads alias data.
func Parse(data []byte) (*File, error) {
	if len(data) < len(Signature) {
		return nil, ErrTruncated
	}
	if !bytes.Equal(data[:len(Signature)], Signature[:]) {
		return nil, ErrInvalidSignature
	}
	buf := data[len(Signature):]

	f := &File{}
	seenIDAT, idatDone, seenEnd := false, false, false
	for len(buf) > 0 && !seenEnd {
		c, n, err := ReadChunk(buf)
		if err != nil {
			return nil, err
		}
		buf = buf[n:]

		first := len(f.Chunks) == 0
		if first != (c.Type == TypeIHDR) {
			return nil, fmt.Errorf("%w: IHDR must be the first chunk", ErrInvalidChunk)
		}
		switch c.Type {
		case TypeIHDR:
			if f.Header, err = ParseHeader(c.Data); err != nil {
				return nil, err
			}
		case TypePLTE:
			if seenIDAT || len(c.Data) == 0 || len(c.Data)%3 != 0 || len(c.Data) > 256*3 {
				return nil, fmt.Errorf("%w: PLTE", ErrInvalidChunk)
			}
		case TypeIDAT:
			if idatDone {
				return nil, fmt.Errorf("%w: IDAT chunks not consecutive", ErrInvalidChunk)
			}
			seenIDAT = true
		case TypeIEND:
			seenEnd = true
		}
		if seenIDAT && c.Type != TypeIDAT {
			idatDone = true
		}
		f.Chunks = append(f.Chunks, c)
	}
	if !seenIDAT {
		return nil, fmt.Errorf("%w: IDAT", ErrMissingChunk)
	}
	if !seenEnd {
		return nil, fmt.Errorf("%w: IEND", ErrMissingChunk)
	}
	if f.Header.ColorType == ColorPalette && f.Chunk(TypePLTE) == nil {
		return nil, fmt.Errorf("%w: PLTE", ErrMissingChunk)
	}
	return f, nil
}

// Chunk returns the first chunk of type typ, or nil.
func (f *File) Chunk(typ string) *Chunk {
	for i := range f.Chunks {
		if f.Chunks[i].Type == typ {
			return &f.Chunks[i]
		}
	}
	return nil
}

// IDAT returns the concatenated payload of all IDAT chunks.
func (f *File) IDAT() []byte {
	var out []byte
	for _, c := range f.Chunks {
		if c.Type == TypeIDAT {
			out = append(out, c.Data...)
		}
	}
	return out
}

// FilterBytes returns the filter type byte of every scanline. It is only
// defined for non-interlaced images.
func (f *File) FilterBytes() ([]uint8, error) {
	h := f.Header
	if h.Interlace != 0 {
		return nil, ErrInterlaced
	}
	r, err := zlib.NewReader(bytes.NewReader(f.IDAT()))
	if err != nil {
		return nil, fmt.Errorf("png: inflating IDAT: %w", err)
	}
	defer r.Close()

	rowLen := h.Stride() + 1
	row := make([]byte, rowLen)
	filters := make([]uint8, h.Height)
	for y := range filters {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, fmt.Errorf("%w: scanline %d: %v", ErrTruncated, y, err)
		}
		if row[0] > 4 {
			return nil, fmt.Errorf("%w: scanline %d has filter type %d", ErrInvalidChunk, y, row[0])
		}
		filters[y] = row[0]
	}
	return filters, nil
}

// Kept groups retained ancillary chunks by where they go relative to the
// PLTE and IDAT chunks of the output.
type Kept struct {
	BeforePLTE []Chunk
	BeforeIDAT []Chunk
	AfterIDAT  []Chunk
}

// afterPLTE lists chunk types that must follow PLTE when one is present.
var afterPLTE = map[string]bool{"bKGD": true, "hIST": true, "tRNS": true}

// Keep returns the chunks whose type is listed in names, preserving their
// order and position. Critical chunks and tRNS are never returned because
// the encoder regenerates them.
func (f *File) Keep(names []string) Kept {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var k Kept
	seenPLTE, seenIDAT := false, false
	for _, c := range f.Chunks {
		switch c.Type {
		case TypePLTE:
			seenPLTE = true
			continue
		case TypeIDAT:
			seenIDAT = true
			continue
		}
		if !want[c.Type] || c.Critical() || c.Type == TypeTRNS {
			continue
		}
		switch {
		case seenIDAT:
			k.AfterIDAT = append(k.AfterIDAT, c)
		case seenPLTE || afterPLTE[c.Type]:
			k.BeforeIDAT = append(k.BeforeIDAT, c)
		default:
			k.BeforePLTE = append(k.BeforePLTE, c)
		}
	}
	return k
}
