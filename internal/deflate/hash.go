package deflate

// hashChain indexes the LZ77 window for match finding.
//
// Two chains are maintained. The primary chain is keyed on a rolling hash of
// the next three bytes. The secondary chain additionally mixes in the length
// of the run of identical bytes starting at a position, which lets the match
// finder skip quickly through long runs where every primary-chain entry would
// collide.
//
// All arrays are indexed by position modulo the window size.
const (
	hashShift = 5
	hashMask  = 32767
	// hashHeads is the number of hash buckets.
	hashHeads = 65536
)

type hashChain struct {
	head    []int32  // hash value -> most recent window index, -1 if none
	prev    []uint16 // window index -> previous index with the same hash
	hashval []int32  // window index -> hash value stored there, -1 if none
	val     int

	head2    []int32
	prev2    []uint16
	hashval2 []int32
	val2     int

	// same[i] is the number of bytes after position i equal to the byte at i.
	same []uint16
}

func newHashChain() *hashChain {
	h := &hashChain{
		head:     make([]int32, hashHeads),
		prev:     make([]uint16, windowSize),
		hashval:  make([]int32, windowSize),
		head2:    make([]int32, hashHeads),
		prev2:    make([]uint16, windowSize),
		hashval2: make([]int32, windowSize),
		same:     make([]uint16, windowSize),
	}
	h.reset()
	return h
}

// reset clears the chain so it can index a new block.
func (h *hashChain) reset() {
	h.val = 0
	h.val2 = 0
	for i := range h.head {
		h.head[i] = -1
		h.head2[i] = -1
	}
	for i := 0; i < windowSize; i++ {
		h.prev[i] = uint16(i)
		h.hashval[i] = -1
		h.prev2[i] = uint16(i)
		h.hashval2[i] = -1
		h.same[i] = 0
	}
}

func (h *hashChain) updateValue(c byte) {
	h.val = ((h.val << hashShift) ^ int(c)) & hashMask
}

// warmup primes the rolling hash with the first two bytes at pos.
func (h *hashChain) warmup(data []byte, pos, end int) {
	h.updateValue(data[pos])
	if pos+1 < end {
		h.updateValue(data[pos+1])
	}
}

// update inserts position pos into both chains. Positions must be inserted
// in increasing order.
func (h *hashChain) update(data []byte, pos, end int) {
	hpos := pos & windowMask

	var c byte
	if pos+minMatch <= end {
		c = data[pos+minMatch-1]
	}
	h.updateValue(c)
	h.hashval[hpos] = int32(h.val)
	if head := h.head[h.val]; head != -1 && h.hashval[head] == int32(h.val) {
		h.prev[hpos] = uint16(head)
	} else {
		h.prev[hpos] = uint16(hpos)
	}
	h.head[h.val] = int32(hpos)

	// Run length of identical bytes, reusing the previous position's count.
	amount := 0
	if s := int(h.same[(pos-1)&windowMask]); s > 1 {
		amount = s - 1
	}
	for pos+amount+1 < end && data[pos] == data[pos+amount+1] && amount < 0xffff {
		amount++
	}
	h.same[hpos] = uint16(amount)

	h.val2 = ((amount - minMatch) & 255) ^ h.val
	h.hashval2[hpos] = int32(h.val2)
	if head := h.head2[h.val2]; head != -1 && h.hashval2[head] == int32(h.val2) {
		h.prev2[hpos] = uint16(head)
	} else {
		h.prev2[hpos] = uint16(hpos)
	}
	h.head2[h.val2] = int32(hpos)
}

// prime resets the chain and inserts the window that precedes start, so
// matches may reach back before the block being parsed.
func (h *hashChain) prime(data []byte, start, end int) {
	windowStart := 0
	if start > windowSize {
		windowStart = start - windowSize
	}
	h.reset()
	h.warmup(data, windowStart, end)
	for i := windowStart; i < start; i++ {
		h.update(data, i, end)
	}
}
