// Package pool recycles byte buffers for scanline scratch rows and filtered
// image streams. Buffers are grouped in power-of-two size classes from
// 256 bytes to 16 MiB; larger requests are allocated directly.
package pool

import (
	"math/bits"
	"sync"
)

const (
	minClassBits = 8
	maxClassBits = 24

	// MinSize is the smallest buffer capacity that is pooled.
	MinSize = 1 << minClassBits
	// MaxSize is the largest buffer capacity that is pooled.
	MaxSize = 1 << maxClassBits
)

var pools [maxClassBits - minClassBits + 1]sync.Pool

// classFor returns the class whose buffers hold size bytes, or -1 when
// size is too large to pool.
func classFor(size int) int {
	if size <= MinSize {
		return 0
	}
	if size > MaxSize {
		return -1
	}
	return bits.Len(uint(size-1)) - minClassBits
}

// classOf returns the largest class a buffer of capacity c can serve, or
// -1 when it is too small or too large.
func classOf(c int) int {
	if c < MinSize || c > MaxSize {
		return -1
	}
	return bits.Len(uint(c)) - 1 - minClassBits
}

// Get returns a byte slice of length size. Its contents are undefined.
// The caller should call Put when done.
func Get(size int) []byte {
	cl := classFor(size)
	if cl < 0 {
		return make([]byte, size)
	}
	if bp, ok := pools[cl].Get().(*[]byte); ok {
		return (*bp)[:size]
	}
	return make([]byte, size, 1<<(cl+minClassBits))
}

// GetZeroed is Get with the slice cleared.
func GetZeroed(size int) []byte {
	b := Get(size)
	clear(b)
	return b
}

// Put returns a buffer for reuse. Buffers outside the pooled capacity
// range are dropped.
func Put(b []byte) {
	cl := classOf(cap(b))
	if cl < 0 {
		return
	}
	b = b[:cap(b)]
	pools[cl].Put(&b)
}
