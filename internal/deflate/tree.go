package deflate

import "github.com/deepteams/pngopt/internal/bitio"

// clToken is one symbol of the code-length alphabet with its extra bits.
type clToken struct {
	symbol uint8
	extra  uint8
}

// encodeTree computes, and writes when w is non-nil, the dynamic block header
// describing ll and d (HLIT, HDIST, HCLEN, code-length code, run-length coded
// lengths). The use flags enable the repeat codes 16, 17 and 18. It returns
// the header size in bits.
func encodeTree(ll, d []uint8, use16, use17, use18 bool, w *bitio.Writer) int {
	hlit := 29 // 286 - 257
	hdist := 29
	for hlit > 0 && ll[257+hlit-1] == 0 {
		hlit--
	}
	for hdist > 0 && d[1+hdist-1] == 0 {
		hdist--
	}
	hlit2 := hlit + 257
	total := hlit2 + hdist + 1
	at := func(i int) uint8 {
		if i < hlit2 {
			return ll[i]
		}
		return d[i-hlit2]
	}

	var clCounts [19]int
	var tokens []clToken
	emit := func(sym, extra int) {
		clCounts[sym]++
		if w != nil {
			tokens = append(tokens, clToken{uint8(sym), uint8(extra)})
		}
	}

	for i := 0; i < total; i++ {
		symbol := at(i)
		count := 1
		if use16 || (symbol == 0 && (use17 || use18)) {
			for j := i + 1; j < total && at(j) == symbol; j++ {
				count++
			}
		}
		i += count - 1

		if symbol == 0 && count >= 3 {
			if use18 {
				for count >= 11 {
					c := min(count, 138)
					emit(18, c-11)
					count -= c
				}
			}
			if use17 {
				for count >= 3 {
					c := min(count, 10)
					emit(17, c-3)
					count -= c
				}
			}
		}

		if use16 && count >= 4 {
			// The first occurrence is sent literally.
			count--
			emit(int(symbol), 0)
			for count >= 3 {
				c := min(count, 6)
				emit(16, c-3)
				count -= c
			}
		}

		for ; count > 0; count-- {
			emit(int(symbol), 0)
		}
	}

	var clLengths [19]uint8
	lengthLimitedCodeLengths(clCounts[:], maxCodeLengthCodeLength, clLengths[:])

	hclen := 15
	for hclen > 0 && clCounts[codeLengthOrder[hclen+4-1]] == 0 {
		hclen--
	}

	if w != nil {
		clCodes := canonicalCodes(clLengths[:], maxCodeLengthCodeLength)
		w.WriteBits(uint32(hlit), 5)
		w.WriteBits(uint32(hdist), 5)
		w.WriteBits(uint32(hclen), 4)
		for i := 0; i < hclen+4; i++ {
			w.WriteBits(uint32(clLengths[codeLengthOrder[i]]), 3)
		}
		for _, t := range tokens {
			w.WriteBits(uint32(clCodes[t.symbol]), int(clLengths[t.symbol]))
			switch t.symbol {
			case 16:
				w.WriteBits(uint32(t.extra), 2)
			case 17:
				w.WriteBits(uint32(t.extra), 3)
			case 18:
				w.WriteBits(uint32(t.extra), 7)
			}
		}
	}

	size := 14 + (hclen+4)*3
	for i, c := range clCounts {
		size += int(clLengths[i]) * c
	}
	size += clCounts[16]*2 + clCounts[17]*3 + clCounts[18]*7
	return size
}

// treeFlags returns the repeat-code switches of combination i (0..7).
func treeFlags(i int) (use16, use17, use18 bool) {
	return i&1 != 0, i&2 != 0, i&4 != 0
}

// bestTreeEncoding returns the repeat-code combination with the smallest
// header and that header's size in bits.
func bestTreeEncoding(ll, d []uint8) (best, size int) {
	size = -1
	for i := 0; i < 8; i++ {
		u16, u17, u18 := treeFlags(i)
		s := encodeTree(ll, d, u16, u17, u18, nil)
		if size < 0 || s < size {
			best, size = i, s
		}
	}
	return best, size
}

// writeTree writes the dynamic block header using its cheapest encoding.
func writeTree(ll, d []uint8, w *bitio.Writer) {
	best, _ := bestTreeEncoding(ll, d)
	u16, u17, u18 := treeFlags(best)
	encodeTree(ll, d, u16, u17, u18, w)
}
