package bitio

const (
	// maxReadBits is the most bits a single ReadBits call returns.
	maxReadBits = 24
	// windowBits is the size of the prefetch register.
	windowBits = 64
)

// Reader reads bit fields in DEFLATE order: the first field starts at the
// least significant bit of the first byte.
//
// Bits are prefetched into a 64-bit window one byte at a time. Reading past
// the end returns zeros and sets the end-of-stream flag.
//
// The encoder never reads bits back; Reader serves the tests that decode
// what Writer produced, here and in package deflate.
type Reader struct {
	val  uint64 // prefetched bits, next bit at position 0
	n    int    // valid bits in val
	buf  []byte
	pos  int // next byte of buf to load
	used int // bits consumed so far
	eos  bool
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	r := &Reader{buf: data}
	r.fill()
	return r
}

func (r *Reader) fill() {
	for r.n <= windowBits-8 && r.pos < len(r.buf) {
		r.val |= uint64(r.buf[r.pos]) << uint(r.n)
		r.pos++
		r.n += 8
	}
}

// ReadBits reads nBits (0..24) and returns them with the first bit read in
// the least significant position.
func (r *Reader) ReadBits(nBits int) uint32 {
	if r.eos || nBits < 0 || nBits > maxReadBits {
		r.eos = true
		return 0
	}
	if nBits > r.n {
		r.eos = true
		r.val, r.n = 0, 0
		return 0
	}
	v := uint32(r.val) & (1<<uint(nBits) - 1)
	r.val >>= uint(nBits)
	r.n -= nBits
	r.used += nBits
	r.fill()
	return v
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() bool { return r.ReadBits(1) == 1 }

// AlignToByte skips to the next byte boundary.
func (r *Reader) AlignToByte() {
	if k := r.used & 7; k != 0 {
		r.ReadBits(8 - k)
	}
}

// ReadBytes reads n whole bytes after aligning to a byte boundary.
func (r *Reader) ReadBytes(n int) []byte {
	r.AlignToByte()
	out := make([]byte, 0, n)
	for i := 0; i < n && !r.eos; i++ {
		out = append(out, byte(r.ReadBits(8)))
	}
	return out
}

// BitPos returns the number of bits consumed.
func (r *Reader) BitPos() int { return r.used }

// IsEndOfStream reports whether a read went past the end of the data.
func (r *Reader) IsEndOfStream() bool { return r.eos }
