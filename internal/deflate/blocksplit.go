package deflate

import "sort"

// findMinimum returns the position in [start, end) where f is smallest, and
// that value. Small ranges are scanned exhaustively. Larger ranges are
// narrowed around the best of nine evenly spaced probes until no probe
// improves on the previous round.
func findMinimum(f func(int) float64, start, end int) (int, float64) {
	if end-start < 1024 {
		best := largeFloat
		result := start
		for i := start; i < end; i++ {
			if v := f(i); v < best {
				best = v
				result = i
			}
		}
		return result, best
	}

	const num = 9
	var p [num]int
	var vp [num]float64
	lastBest := largeFloat
	pos := start
	for end-start > num {
		for i := 0; i < num; i++ {
			p[i] = start + (i+1)*((end-start)/(num+1))
			vp[i] = f(p[i])
		}
		besti := 0
		best := vp[0]
		for i := 1; i < num; i++ {
			if vp[i] < best {
				best = vp[i]
				besti = i
			}
		}
		if best > lastBest {
			break
		}
		if besti > 0 {
			start = p[besti-1]
		}
		if besti < num-1 {
			end = p[besti+1]
		}
		pos = p[besti]
		lastBest = best
	}
	return pos, lastBest
}

// largestSplittable returns the longest block between split points whose
// start is not marked done. The last block is measured up to n-1.
func largestSplittable(n int, done []bool, points []int) (lstart, lend int, found bool) {
	longest := 0
	for i := 0; i <= len(points); i++ {
		start, end := 0, n-1
		if i > 0 {
			start = points[i-1]
		}
		if i < len(points) {
			end = points[i]
		}
		if !done[start] && end-start > longest {
			lstart, lend, found = start, end, true
			longest = end - start
		}
	}
	return lstart, lend, found
}

// BlockSplitLZ77 returns token indices where the store should be split into
// separately coded blocks. The search is greedy: each round splits the
// largest block not yet known to be final at the point that minimizes the
// summed cost of both halves, provided that is not worse than keeping it
// whole. maxBlocks of 0 means unlimited.
func BlockSplitLZ77(store *Store, maxBlocks int) []int {
	n := store.Len()
	if n < minSplitTokens {
		return nil
	}
	done := make([]bool, n)
	var points []int
	numBlocks := 1
	lstart, lend := 0, n

	for {
		if maxBlocks > 0 && numBlocks >= maxBlocks {
			break
		}
		s, e := lstart, lend
		splitCost := func(i int) float64 {
			return calculateBlockSizeAutoType(store, s, i) + calculateBlockSizeAutoType(store, i, e)
		}
		llpos, cost := findMinimum(splitCost, lstart+1, lend)
		orig := calculateBlockSizeAutoType(store, lstart, lend)
		if cost > orig || llpos == lstart+1 || llpos == lend {
			done[lstart] = true
		} else {
			i := sort.SearchInts(points, llpos)
			points = append(points, 0)
			copy(points[i+1:], points[i:])
			points[i] = llpos
			numBlocks++
		}

		var found bool
		lstart, lend, found = largestSplittable(n, done, points)
		if !found || lend-lstart < minSplitTokens {
			break
		}
	}
	return points
}

// BlockSplit returns byte positions in data[start:end] where blocks should
// begin. Split points are searched on a quick greedy parse, which yields
// better boundaries than searching on the final optimal parse.
func BlockSplit(data []byte, start, end, maxBlocks int) []int {
	store := LZ77Greedy(data, start, end)
	lz77Points := BlockSplitLZ77(store, maxBlocks)
	if len(lz77Points) == 0 {
		return nil
	}
	points := make([]int, 0, len(lz77Points))
	pos := start
	for i, t := range store.Tokens {
		if lz77Points[len(points)] == i {
			points = append(points, pos)
			if len(points) == len(lz77Points) {
				break
			}
		}
		pos += t.Length()
	}
	return points
}
