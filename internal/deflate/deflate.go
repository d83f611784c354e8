// Package deflate implements a DEFLATE (RFC 1951) compressor that spends CPU
// time for output size: an iterated shortest-path LZ77 parser, a greedy block
// splitter and an encoder that picks the cheapest block type per block.
package deflate

import (
	"errors"
	"fmt"

	"github.com/deepteams/pngopt/internal/bitio"
)

// ErrInvariant reports an internal consistency failure, such as blocks that
// do not partition the token stream. It always indicates a bug.
var ErrInvariant = errors.New("deflate: internal invariant violated")

// Block types as encoded in the BTYPE header field.
const (
	blockStored  = 0
	blockFixed   = 1
	blockDynamic = 2
)

// Block is a half-open range of tokens coded with one Huffman table pair.
type Block struct {
	Start, End int
}

// blocksFromSplits converts split points over n tokens into blocks and
// checks that they partition [0, n).
func blocksFromSplits(points []int, n int) ([]Block, error) {
	blocks := make([]Block, 0, len(points)+1)
	prev := 0
	for _, p := range points {
		blocks = append(blocks, Block{prev, p})
		prev = p
	}
	blocks = append(blocks, Block{prev, n})
	if err := checkPartition(blocks, n); err != nil {
		return nil, err
	}
	return blocks, nil
}

// checkPartition verifies that blocks are contiguous, ordered and cover
// exactly n tokens.
func checkPartition(blocks []Block, n int) error {
	next := 0
	for i, b := range blocks {
		if b.Start != next || b.End < b.Start {
			return fmt.Errorf("%w: block %d spans [%d, %d), expected start %d", ErrInvariant, i, b.Start, b.End, next)
		}
		next = b.End
	}
	if next != n {
		return fmt.Errorf("%w: blocks cover %d of %d tokens", ErrInvariant, next, n)
	}
	return nil
}

// fixedLengths returns the code lengths of the fixed Huffman code.
func fixedLengths() (ll [numLL]uint8, d [numD]uint8) {
	for i := range ll {
		switch {
		case i < 144:
			ll[i] = 8
		case i < 256:
			ll[i] = 9
		case i < 280:
			ll[i] = 7
		default:
			ll[i] = 8
		}
	}
	for i := range d {
		d[i] = 5
	}
	return ll, d
}

// symbolBits returns the bits needed for the tokens described by the
// histograms, end-of-block symbol included.
func symbolBits(llCounts *[numLL]int, dCounts *[numD]int, ll, d []uint8) int {
	bits := int(ll[endOfBlock])
	for i := 0; i < endOfBlock; i++ {
		bits += int(ll[i]) * llCounts[i]
	}
	for i := 257; i < 286; i++ {
		bits += (int(ll[i]) + lengthExtra[i-257]) * llCounts[i]
	}
	for i := 0; i < 30; i++ {
		bits += (int(d[i]) + distExtra[i]) * dCounts[i]
	}
	return bits
}

// patchDistanceCodes makes sure at least two distance codes exist. Some
// inflaters reject blocks with fewer, even when no distance is used.
func patchDistanceCodes(d []uint8) {
	num := 0
	for i := 0; i < 30; i++ {
		if d[i] != 0 {
			num++
		}
		if num >= 2 {
			return
		}
	}
	switch num {
	case 0:
		d[0], d[1] = 1, 1
	case 1:
		if d[0] != 0 {
			d[1] = 1
		} else {
			d[0] = 1
		}
	}
}

// dynamicLengths computes the Huffman code lengths of a dynamic block for
// tokens [lstart, lend) and returns the block size in bits excluding the
// 3-bit block header. Count smoothing for better run-length coding of the
// header is kept only when it makes the block smaller.
func dynamicLengths(store *Store, lstart, lend int, ll *[numLL]uint8, d *[numD]uint8) float64 {
	var llCounts [numLL]int
	var dCounts [numD]int
	store.Histogram(lstart, lend, &llCounts, &dCounts)
	llCounts[endOfBlock] = 1

	lengthLimitedCodeLengths(llCounts[:], maxCodeLength, ll[:])
	lengthLimitedCodeLengths(dCounts[:], maxCodeLength, d[:])
	patchDistanceCodes(d[:])
	_, treeSize := bestTreeEncoding(ll[:], d[:])
	size := treeSize + symbolBits(&llCounts, &dCounts, ll[:], d[:])

	llCounts2, dCounts2 := llCounts, dCounts
	optimizeHuffmanForRle(llCounts2[:])
	optimizeHuffmanForRle(dCounts2[:])
	var ll2 [numLL]uint8
	var d2 [numD]uint8
	lengthLimitedCodeLengths(llCounts2[:], maxCodeLength, ll2[:])
	lengthLimitedCodeLengths(dCounts2[:], maxCodeLength, d2[:])
	patchDistanceCodes(d2[:])
	_, treeSize2 := bestTreeEncoding(ll2[:], d2[:])
	size2 := treeSize2 + symbolBits(&llCounts, &dCounts, ll2[:], d2[:])

	if size2 < size {
		*ll, *d = ll2, d2
		return float64(size2)
	}
	return float64(size)
}

// calculateBlockSize estimates the size in bits of tokens [lstart, lend)
// coded as one block of type btype.
func calculateBlockSize(store *Store, lstart, lend, btype int) float64 {
	switch btype {
	case blockStored:
		length := store.ByteRange(lstart, lend)
		blocks := (length + maxStoredLength - 1) / maxStoredLength
		// Each stored block carries 5 header bytes: 3 bits, padding, LEN, NLEN.
		return float64(blocks*5*8 + length*8)
	case blockFixed:
		ll, d := fixedLengths()
		var llCounts [numLL]int
		var dCounts [numD]int
		store.Histogram(lstart, lend, &llCounts, &dCounts)
		return 3 + float64(symbolBits(&llCounts, &dCounts, ll[:], d[:]))
	default:
		var ll [numLL]uint8
		var d [numD]uint8
		return 3 + dynamicLengths(store, lstart, lend, &ll, &d)
	}
}

// calculateBlockSizeAutoType returns the smallest of the stored, fixed and
// dynamic sizes. The fixed estimate is skipped for large stores, where it is
// rarely competitive.
func calculateBlockSizeAutoType(store *Store, lstart, lend int) float64 {
	stored := calculateBlockSize(store, lstart, lend, blockStored)
	fixed := stored
	if store.Len() <= 1000 {
		fixed = calculateBlockSize(store, lstart, lend, blockFixed)
	}
	dyn := calculateBlockSize(store, lstart, lend, blockDynamic)
	if stored < fixed && stored < dyn {
		return stored
	}
	return min(fixed, dyn)
}

// Compress returns data as a raw DEFLATE stream.
func Compress(data []byte, opts *Options) ([]byte, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	w := bitio.NewWriter(len(data)/2 + 64)
	if err := compressTo(w, data, opts); err != nil {
		return nil, err
	}
	return w.Finish(), nil
}

func compressTo(w *bitio.Writer, data []byte, opts *Options) error {
	i := 0
	for {
		final := i+masterBlockSize >= len(data)
		size := masterBlockSize
		if final {
			size = len(data) - i
		}
		if err := deflatePart(w, data, i, i+size, final, opts); err != nil {
			return err
		}
		i += size
		if i >= len(data) {
			return nil
		}
	}
}

// deflatePart encodes data[start:end] as one or more blocks. Split points
// are chosen on a greedy parse, every block is parsed optimally, and the
// split is then recomputed on the final tokens and kept if it is cheaper.
func deflatePart(w *bitio.Writer, data []byte, start, end int, final bool, opts *Options) error {
	var byteSplits []int
	if opts.BlockSplitting {
		byteSplits = BlockSplit(data, start, end, opts.MaxBlocks)
	}

	m := newMatcher(data)
	all := NewStore(data)
	block := NewStore(data)
	points := make([]int, 0, len(byteSplits))
	totalCost := 0.0
	for i := 0; i <= len(byteSplits); i++ {
		bs, be := start, end
		if i > 0 {
			bs = byteSplits[i-1]
		}
		if i < len(byteSplits) {
			be = byteSplits[i]
		}
		block.Reset()
		m.lz77Optimal(bs, be, opts.NumIterations, opts.NumStagnations, block)
		totalCost += calculateBlockSizeAutoType(block, 0, block.Len())
		all.Append(block)
		if i < len(byteSplits) {
			points = append(points, all.Len())
		}
	}

	if opts.BlockSplitting && len(points) > 1 {
		points2 := BlockSplitLZ77(all, opts.MaxBlocks)
		totalCost2 := 0.0
		for i := 0; i <= len(points2); i++ {
			s, e := 0, all.Len()
			if i > 0 {
				s = points2[i-1]
			}
			if i < len(points2) {
				e = points2[i]
			}
			totalCost2 += calculateBlockSizeAutoType(all, s, e)
		}
		if totalCost2 < totalCost {
			points = points2
		}
	}

	blocks, err := blocksFromSplits(points, all.Len())
	if err != nil {
		return err
	}
	for i, b := range blocks {
		writeBlockAutoType(w, m, all, b.Start, b.End, final && i == len(blocks)-1)
	}
	return nil
}

// writeBlockAutoType writes tokens [lstart, lend) using the cheapest block
// type. Small blocks, and blocks where the fixed code is already close to the
// dynamic one, are re-parsed under the fixed cost model first.
func writeBlockAutoType(w *bitio.Writer, m *matcher, store *Store, lstart, lend int, final bool) {
	if lstart == lend {
		// The smallest empty block: fixed code with only the end symbol.
		w.WriteBit(final)
		w.WriteBits(1, 2)
		w.WriteBits(0, 7)
		return
	}
	stored := calculateBlockSize(store, lstart, lend, blockStored)
	fixed := calculateBlockSize(store, lstart, lend, blockFixed)
	dyn := calculateBlockSize(store, lstart, lend, blockDynamic)

	expensiveFixed := store.Len() < 1000 || fixed <= dyn*1.1
	var fixedStore *Store
	if expensiveFixed {
		start := store.Pos[lstart]
		end := start + store.ByteRange(lstart, lend)
		fixedStore = NewStore(store.Data())
		m.lz77OptimalFixed(start, end, fixedStore)
		fixed = calculateBlockSize(fixedStore, 0, fixedStore.Len(), blockFixed)
	}

	switch {
	case stored < fixed && stored < dyn:
		writeBlock(w, blockStored, final, store, lstart, lend)
	case fixed < dyn:
		if expensiveFixed {
			writeBlock(w, blockFixed, final, fixedStore, 0, fixedStore.Len())
		} else {
			writeBlock(w, blockFixed, final, store, lstart, lend)
		}
	default:
		writeBlock(w, blockDynamic, final, store, lstart, lend)
	}
}

// writeBlock writes tokens [lstart, lend) as one block of type btype.
func writeBlock(w *bitio.Writer, btype int, final bool, store *Store, lstart, lend int) {
	if btype == blockStored {
		pos := 0
		if lstart != lend {
			pos = store.Pos[lstart]
		}
		writeStored(w, store.Data()[pos:pos+store.ByteRange(lstart, lend)], final)
		return
	}

	w.WriteBit(final)
	w.WriteBits(uint32(btype), 2)

	var ll [numLL]uint8
	var d [numD]uint8
	if btype == blockFixed {
		ll, d = fixedLengths()
	} else {
		dynamicLengths(store, lstart, lend, &ll, &d)
		writeTree(ll[:], d[:], w)
	}
	llCodes := canonicalCodes(ll[:], maxCodeLength)
	dCodes := canonicalCodes(d[:], maxCodeLength)

	for _, t := range store.Tokens[lstart:lend] {
		if t.Dist == 0 {
			w.WriteBits(uint32(llCodes[t.LitLen]), int(ll[t.LitLen]))
			continue
		}
		length, dist := int(t.LitLen), int(t.Dist)
		ls := lengthSymbol(length)
		ds := distSymbol(dist)
		w.WriteBits(uint32(llCodes[ls]), int(ll[ls]))
		w.WriteBits(uint32(lengthExtraValue(length)), lengthExtraBits(length))
		w.WriteBits(uint32(dCodes[ds]), int(d[ds]))
		w.WriteBits(uint32(distExtraValue(dist)), distExtraBits(dist))
	}
	w.WriteBits(uint32(llCodes[endOfBlock]), int(ll[endOfBlock]))
}

// writeStored writes p as stored blocks of at most 65535 bytes each. An empty
// p still produces one empty stored block.
func writeStored(w *bitio.Writer, p []byte, final bool) {
	pos := 0
	for {
		size := min(len(p)-pos, maxStoredLength)
		last := pos+size >= len(p)
		w.WriteBit(final && last)
		w.WriteBits(blockStored, 2)
		w.AlignToByte()
		hdr := [4]byte{byte(size), byte(size >> 8), ^byte(size), ^byte(size >> 8)}
		w.WriteBytes(hdr[:])
		w.WriteBytes(p[pos : pos+size])
		if last {
			return
		}
		pos += size
	}
}
