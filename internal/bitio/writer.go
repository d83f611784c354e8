// Package bitio provides LSB-first bit writing and reading for DEFLATE streams.
package bitio

import "encoding/binary"

// Writer packs bit fields in DEFLATE order (RFC 1951, section 3.1.1): each
// field starts at the lowest free bit of the current byte. Huffman codes
// must be bit-reversed by the caller.
//
// Fields collect in a 64-bit accumulator that is spilled to the output four
// bytes at a time.
type Writer struct {
	acc  uint64 // pending bits, oldest at bit 0
	nacc int    // pending bit count
	out  []byte
}

// NewWriter returns a Writer whose buffer starts with room for sizeHint
// bytes.
func NewWriter(sizeHint int) *Writer {
	return &Writer{out: make([]byte, 0, max(sizeHint, 256))}
}

// WriteBits appends the low nBits (0..32) of v.
func (w *Writer) WriteBits(v uint32, nBits int) {
	if nBits == 0 {
		return
	}
	if w.nacc >= 32 {
		w.out = binary.LittleEndian.AppendUint32(w.out, uint32(w.acc))
		w.acc >>= 32
		w.nacc -= 32
	}
	w.acc |= uint64(v&(1<<uint(nBits)-1)) << uint(w.nacc)
	w.nacc += nBits
}

// WriteBit appends one bit.
func (w *Writer) WriteBit(b bool) {
	var v uint32
	if b {
		v = 1
	}
	w.WriteBits(v, 1)
}

// AlignToByte pads the stream with zero bits up to the next byte boundary.
func (w *Writer) AlignToByte() {
	if r := w.nacc & 7; r != 0 {
		w.nacc += 8 - r
	}
}

// WriteBytes aligns the stream to a byte boundary and copies p verbatim.
func (w *Writer) WriteBytes(p []byte) {
	w.AlignToByte()
	w.drain()
	w.out = append(w.out, p...)
}

// drain moves the accumulator to the output. The pending bit count must be
// a multiple of 8.
func (w *Writer) drain() {
	for ; w.nacc > 0; w.nacc -= 8 {
		w.out = append(w.out, byte(w.acc))
		w.acc >>= 8
	}
	w.acc, w.nacc = 0, 0
}

// Finish pads the last byte with zeros and returns the stream.
func (w *Writer) Finish() []byte {
	w.AlignToByte()
	w.drain()
	return w.out
}

// NumBits returns the number of bits written so far, padding included.
func (w *Writer) NumBits() int {
	return len(w.out)*8 + w.nacc
}

// NumBytes returns the stream length in bytes, counting a partial last byte.
func (w *Writer) NumBytes() int {
	return len(w.out) + (w.nacc+7)/8
}
