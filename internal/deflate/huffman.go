package deflate

import "sort"

// pmNode is an item of the package-merge lists: either a leaf (a symbol) or
// a package of two items of the next deeper list.
type pmNode struct {
	weight      int
	leaf        int // symbol, or -1 for a package
	left, right int32
}

// lengthLimitedCodeLengths computes optimal Huffman code lengths for freqs
// with no code longer than maxBits, using the package-merge algorithm.
// Symbols with a zero frequency get length 0. A single used symbol gets
// length 1 so the code remains decodable.
func lengthLimitedCodeLengths(freqs []int, maxBits int, lengths []uint8) {
	for i := range lengths {
		lengths[i] = 0
	}
	leaves := make([]int, 0, len(freqs))
	for s, f := range freqs {
		if f > 0 {
			leaves = append(leaves, s)
		}
	}
	n := len(leaves)
	switch n {
	case 0:
		return
	case 1:
		lengths[leaves[0]] = 1
		return
	}
	sort.SliceStable(leaves, func(i, j int) bool {
		return freqs[leaves[i]] < freqs[leaves[j]]
	})

	pool := make([]pmNode, 0, 2*n*maxBits)
	for _, s := range leaves {
		pool = append(pool, pmNode{weight: freqs[s], leaf: s})
	}
	leafIdx := make([]int32, n)
	for i := range leafIdx {
		leafIdx[i] = int32(i)
	}

	list := leafIdx
	for level := 1; level < maxBits; level++ {
		next := make([]int32, 0, n+len(list)/2)
		li, pi := 0, 0
		npk := len(list) / 2
		for li < n || pi < npk {
			var pkWeight int
			if pi < npk {
				pkWeight = pool[list[2*pi]].weight + pool[list[2*pi+1]].weight
			}
			if li < n && (pi >= npk || pool[leafIdx[li]].weight <= pkWeight) {
				next = append(next, leafIdx[li])
				li++
				continue
			}
			pool = append(pool, pmNode{
				weight: pkWeight,
				leaf:   -1,
				left:   list[2*pi],
				right:  list[2*pi+1],
			})
			next = append(next, int32(len(pool)-1))
			pi++
		}
		list = next
	}

	stack := make([]int32, 0, maxBits*2)
	for _, idx := range list[:2*n-2] {
		stack = append(stack[:0], idx)
		for len(stack) > 0 {
			nd := pool[stack[len(stack)-1]]
			stack = stack[:len(stack)-1]
			if nd.leaf >= 0 {
				lengths[nd.leaf]++
				continue
			}
			stack = append(stack, nd.left, nd.right)
		}
	}
}

// canonicalCodes assigns the canonical Huffman code of RFC 1951 section
// 3.2.2 to each symbol, bit-reversed for the LSB-first writer.
func canonicalCodes(lengths []uint8, maxBits int) []uint16 {
	blCount := make([]int, maxBits+1)
	for _, l := range lengths {
		blCount[l]++
	}
	blCount[0] = 0
	nextCode := make([]uint32, maxBits+1)
	code := uint32(0)
	for bits := 1; bits <= maxBits; bits++ {
		code = (code + uint32(blCount[bits-1])) << 1
		nextCode[bits] = code
	}
	codes := make([]uint16, len(lengths))
	for s, l := range lengths {
		if l == 0 {
			continue
		}
		codes[s] = reverseBits(nextCode[l], int(l))
		nextCode[l]++
	}
	return codes
}

// reverseBits reverses the lower nBits of v.
func reverseBits(v uint32, nBits int) uint16 {
	var result uint32
	for i := 0; i < nBits; i++ {
		result = (result << 1) | (v & 1)
		v >>= 1
	}
	return uint16(result)
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// optimizeHuffmanForRle smooths counts in place so the resulting code
// lengths form longer runs, which the code-length alphabet encodes cheaply.
// Trailing zeros are left untouched.
func optimizeHuffmanForRle(counts []int) {
	length := len(counts)
	for length > 0 && counts[length-1] == 0 {
		length--
	}
	if length == 0 {
		return
	}

	// Mark strides that are already long enough to be run-length coded.
	goodForRle := make([]bool, length)
	symbol := counts[0]
	stride := 0
	for i := 0; i <= length; i++ {
		if i == length || counts[i] != symbol {
			if (symbol == 0 && stride >= 5) || (symbol != 0 && stride >= 7) {
				for k := 0; k < stride; k++ {
					goodForRle[i-k-1] = true
				}
			}
			stride = 1
			if i != length {
				symbol = counts[i]
			}
		} else {
			stride++
		}
	}

	// Collapse strides of similar counts to their average.
	stride = 0
	limit := counts[0]
	sum := 0
	for i := 0; i <= length; i++ {
		if i == length || goodForRle[i] || absDiff(counts[i], limit) >= 4 {
			if stride >= 4 || (stride >= 3 && sum == 0) {
				count := (sum + stride/2) / stride
				if count < 1 {
					count = 1
				}
				if sum == 0 {
					count = 0
				}
				for k := 0; k < stride; k++ {
					counts[i-k-1] = count
				}
			}
			stride = 0
			sum = 0
			switch {
			case i < length-3:
				limit = (counts[i] + counts[i+1] + counts[i+2] + counts[i+3] + 2) / 4
			case i < length:
				limit = counts[i]
			default:
				limit = 0
			}
		}
		stride++
		if i != length {
			sum += counts[i]
		}
		if stride >= 4 {
			limit = (sum + stride/2) / stride
		}
	}
}
