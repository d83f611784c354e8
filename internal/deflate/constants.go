package deflate

// DEFLATE format constants (RFC 1951).
const (
	// windowSize is the LZ77 window, the largest distance a match may use.
	windowSize = 32768
	windowMask = windowSize - 1

	// minMatch and maxMatch bound the length of a back-reference.
	minMatch = 3
	maxMatch = 258

	// numLL is the size of the literal/length alphabet (0..255 literals,
	// 256 end of block, 257..285 lengths, 286..287 unused but codable).
	numLL = 288
	// numD is the size of the distance alphabet (0..29 used).
	numD = 32

	// endOfBlock is the literal/length symbol that terminates a block.
	endOfBlock = 256

	// maxCodeLength is the longest Huffman codeword DEFLATE allows.
	maxCodeLength = 15
	// maxCodeLengthCodeLength is the longest code-length-alphabet codeword.
	maxCodeLengthCodeLength = 7

	// maxStoredLength is the largest payload of one stored block.
	maxStoredLength = 65535
)

// Parser tuning.
const (
	// maxChainHits caps how many hash chain entries a single match search visits.
	maxChainHits = 8192

	// masterBlockSize is the slice of input processed independently. Splitting
	// the input bounds memory for very large scanline streams.
	masterBlockSize = 1000000

	// largeFloat marks unreachable positions in the cost arrays.
	largeFloat = 1e30

	// minSplitTokens is the smallest token range the block splitter examines.
	minSplitTokens = 10
)

// codeLengthOrder is the transmission order of code-length code lengths.
var codeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// lengthBase and lengthExtra describe length symbols 257..285.
var lengthBase = [29]int{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
	35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
}

var lengthExtra = [29]int{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
	3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
}

// distBase and distExtra describe distance symbols 0..29.
var distBase = [30]int{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
	257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}

var distExtra = [30]int{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
	7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

// lengthSymbolLUT maps a match length (0..258) to its length symbol index
// (0..28, add 257 for the alphabet symbol).
var lengthSymbolLUT [maxMatch + 1]uint8

func init() {
	for code := 0; code < len(lengthBase); code++ {
		hi := maxMatch
		if code+1 < len(lengthBase) {
			hi = lengthBase[code+1] - 1
		}
		for l := lengthBase[code]; l <= hi; l++ {
			lengthSymbolLUT[l] = uint8(code)
		}
	}
}

// lengthSymbol returns the literal/length alphabet symbol for a match length.
func lengthSymbol(length int) int {
	return 257 + int(lengthSymbolLUT[length])
}

// lengthExtraBits returns the number of extra bits for a match length.
func lengthExtraBits(length int) int {
	return lengthExtra[lengthSymbolLUT[length]]
}

// lengthExtraValue returns the extra-bits value for a match length.
func lengthExtraValue(length int) int {
	return length - lengthBase[lengthSymbolLUT[length]]
}

// distSymbol returns the distance alphabet symbol for a distance in 1..32768.
func distSymbol(dist int) int {
	if dist < 5 {
		return dist - 1
	}
	// Index of the highest set bit of dist-1.
	d := dist - 1
	l := 0
	for v := d; v > 1; v >>= 1 {
		l++
	}
	r := (d >> uint(l-1)) & 1
	return l*2 + r
}

// distExtraBits returns the number of extra bits for a distance.
func distExtraBits(dist int) int {
	if dist < 5 {
		return 0
	}
	l := 0
	for v := dist - 1; v > 1; v >>= 1 {
		l++
	}
	return l - 1
}

// distExtraValue returns the extra-bits value for a distance.
func distExtraValue(dist int) int {
	return dist - distBase[distSymbol(dist)]
}
