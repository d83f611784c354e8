package deflate

import "math"

// SymbolStats holds symbol frequencies of a parse and the bit costs derived
// from them. A value is used unchanged for one parse pass.
type SymbolStats struct {
	litlens [numLL]int
	dists   [numD]int

	llSymbols [numLL]float64
	dSymbols  [numD]float64
}

// entropyBits fills bits[i] with -log2(count[i]/sum). Unused symbols get the
// cost of a symbol seen once.
func entropyBits(count []int, bits []float64) {
	sum := 0
	for _, c := range count {
		sum += c
	}
	var log2sum float64
	if sum == 0 {
		log2sum = math.Log2(float64(len(count)))
	} else {
		log2sum = math.Log2(float64(sum))
	}
	for i, c := range count {
		if c == 0 {
			bits[i] = log2sum
			continue
		}
		bits[i] = log2sum - math.Log2(float64(c))
		if bits[i] < 0 {
			bits[i] = 0
		}
	}
}

func (s *SymbolStats) calculate() {
	entropyBits(s.litlens[:], s.llSymbols[:])
	entropyBits(s.dists[:], s.dSymbols[:])
}

// statsFromStore counts the symbols of every token in the store.
func statsFromStore(store *Store) SymbolStats {
	var s SymbolStats
	for _, t := range store.Tokens {
		if t.Dist == 0 {
			s.litlens[t.LitLen]++
		} else {
			s.litlens[lengthSymbol(int(t.LitLen))]++
			s.dists[distSymbol(int(t.Dist))]++
		}
	}
	s.litlens[endOfBlock] = 1
	s.calculate()
	return s
}

// blend returns w1*a + w2*b, frequencies truncated to integers.
func blend(a *SymbolStats, w1 float64, b *SymbolStats, w2 float64) SymbolStats {
	var r SymbolStats
	for i := range r.litlens {
		r.litlens[i] = int(float64(a.litlens[i])*w1 + float64(b.litlens[i])*w2)
	}
	for i := range r.dists {
		r.dists[i] = int(float64(a.dists[i])*w1 + float64(b.dists[i])*w2)
	}
	r.litlens[endOfBlock] = 1
	r.calculate()
	return r
}

// cost is the cost model backed by the statistics.
func (s *SymbolStats) cost(litlen, dist int) float64 {
	if dist == 0 {
		return s.llSymbols[litlen]
	}
	return float64(lengthExtraBits(litlen)+distExtraBits(dist)) +
		s.llSymbols[lengthSymbol(litlen)] + s.dSymbols[distSymbol(dist)]
}

// costFunc estimates the bits needed to encode a literal (dist 0) or a match.
type costFunc func(litlen, dist int) float64

// costFixed is the exact cost under the fixed Huffman code.
func costFixed(litlen, dist int) float64 {
	if dist == 0 {
		if litlen <= 143 {
			return 8
		}
		return 9
	}
	cost := 5 + lengthExtraBits(litlen) + distExtraBits(dist)
	if lengthSymbol(litlen) <= 279 {
		cost += 7
	} else {
		cost += 8
	}
	return float64(cost)
}

// minCost returns the cheapest match cost the model can produce, found from
// the cheapest length and the cheapest distance bucket independently.
func minCost(cost costFunc) float64 {
	bestLength := 0
	best := largeFloat
	for i := minMatch; i <= maxMatch; i++ {
		if c := cost(i, 1); c < best {
			bestLength = i
			best = c
		}
	}
	bestDist := 0
	best = largeFloat
	for _, d := range distBase {
		if c := cost(minMatch, d); c < best {
			bestDist = d
			best = c
		}
	}
	return cost(bestLength, bestDist)
}

// rng is a multiply-with-carry generator. Its fixed seed keeps the stats
// randomization reproducible.
type rng struct {
	w, z uint32
}

func newRNG() rng { return rng{w: 1, z: 2} }

func (r *rng) next() uint32 {
	r.z = 36969*(r.z&65535) + (r.z >> 16)
	r.w = 18000*(r.w&65535) + (r.w >> 16)
	return (r.z << 16) + r.w
}

func randomizeFreqs(r *rng, freqs []int) {
	n := uint32(len(freqs))
	for i := range freqs {
		if (r.next()>>4)%3 == 0 {
			freqs[i] = freqs[r.next()%n]
		}
	}
}

func (s *SymbolStats) randomize(r *rng) {
	randomizeFreqs(r, s.litlens[:])
	randomizeFreqs(r, s.dists[:])
	s.litlens[endOfBlock] = 1
}

// squeezer owns the scratch state of the shortest-path parse of one block.
type squeezer struct {
	m       *matcher
	start   int
	end     int
	costs   []float32
	lengths []uint16
	path    []uint16
}

func newSqueezer(m *matcher, start, end int) *squeezer {
	n := end - start + 1
	return &squeezer{
		m:       m,
		start:   start,
		end:     end,
		costs:   make([]float32, n),
		lengths: make([]uint16, n),
	}
}

// bestLengths runs the forward dynamic program: costs[j] is the cheapest
// known way to encode the first j bytes and lengths[j] the length of the last
// token on that path.
func (q *squeezer) bestLengths(cost costFunc) float64 {
	start, end := q.start, q.end
	if start == end {
		return 0
	}
	data := q.m.data
	h := q.m.h
	sublen := &q.m.sublen
	costs, lengths := q.costs, q.lengths
	minc := minCost(cost)

	h.prime(data, start, end)

	for i := range costs {
		costs[i] = largeFloat
	}
	costs[0] = 0
	lengths[0] = 0

	for i := start; i < end; i++ {
		j := i - start
		h.update(data, i, end)

		// Inside a long run of one byte value, step 258 bytes at a time with
		// maximal matches instead of searching every position.
		if h.same[i&windowMask] > maxMatch*2 &&
			i > start+maxMatch+1 &&
			i+maxMatch*2+1 < end &&
			h.same[(i-maxMatch)&windowMask] > maxMatch {
			symbolCost := cost(maxMatch, 1)
			for k := 0; k < maxMatch; k++ {
				costs[j+maxMatch] = float32(float64(costs[j]) + symbolCost)
				lengths[j+maxMatch] = maxMatch
				i++
				j++
				h.update(data, i, end)
			}
		}

		_, length := q.m.findLongestMatch(i, end, maxMatch, sublen)

		if i+1 <= end {
			newCost := cost(int(data[i]), 0) + float64(costs[j])
			if newCost < float64(costs[j+1]) {
				costs[j+1] = float32(newCost)
				lengths[j+1] = 1
			}
		}

		kend := length
		if kend > end-i {
			kend = end - i
		}
		floor := minc + float64(costs[j])
		for k := minMatch; k <= kend; k++ {
			if float64(costs[j+k]) <= floor {
				continue
			}
			newCost := cost(k, int(sublen[k])) + float64(costs[j])
			if newCost < float64(costs[j+k]) {
				costs[j+k] = float32(newCost)
				lengths[j+k] = uint16(k)
			}
		}
	}
	return float64(costs[end-start])
}

// traceBackwards turns the lengths array into the token length path, first
// token first.
func (q *squeezer) traceBackwards() {
	q.path = q.path[:0]
	index := q.end - q.start
	if index == 0 {
		return
	}
	for index > 0 {
		l := q.lengths[index]
		q.path = append(q.path, l)
		index -= int(l)
	}
	for i, j := 0, len(q.path)-1; i < j; i, j = i+1, j-1 {
		q.path[i], q.path[j] = q.path[j], q.path[i]
	}
}

// followPath replays the path, recovering the distance of every match.
func (q *squeezer) followPath(store *Store) {
	start, end := q.start, q.end
	if start == end {
		return
	}
	data := q.m.data
	h := q.m.h
	h.prime(data, start, end)

	pos := start
	for _, l := range q.path {
		length := int(l)
		h.update(data, pos, end)
		if length >= minMatch {
			dist, _ := q.m.findLongestMatch(pos, end, length, nil)
			store.Add(length, dist, pos)
		} else {
			length = 1
			store.Add(int(data[pos]), 0, pos)
		}
		for j := 1; j < length; j++ {
			h.update(data, pos+j, end)
		}
		pos += length
	}
}

// run performs one shortest-path parse under cost into store.
func (q *squeezer) run(cost costFunc, store *Store) float64 {
	c := q.bestLengths(cost)
	q.traceBackwards()
	q.followPath(store)
	return c
}

// LZ77Optimal parses data[start:end] by iterated shortest-path search. Each
// pass uses the symbol statistics of the previous pass as its cost model and
// the parse with the smallest dynamic block size is returned.
func LZ77Optimal(data []byte, start, end int, opts *Options) *Store {
	if opts == nil {
		opts = DefaultOptions()
	}
	m := newMatcher(data)
	out := NewStore(data)
	m.lz77Optimal(start, end, opts.NumIterations, opts.NumStagnations, out)
	return out
}

func (m *matcher) lz77Optimal(start, end, iterations, stagnations int, out *Store) {
	if start == end {
		return
	}
	m.cache = newMatchCache(start, end-start)
	defer func() { m.cache = nil }()

	q := newSqueezer(m, start, end)
	current := NewStore(m.data)
	r := newRNG()

	m.lz77Greedy(start, end, current)
	stats := statsFromStore(current)

	var best, last SymbolStats
	bestCost := largeFloat
	lastCost := 0.0
	lastRandomStep := -1
	stagnant := 0

	for i := 0; i < iterations; i++ {
		current.Reset()
		q.run(stats.cost, current)
		cost := calculateBlockSize(current, 0, current.Len(), blockDynamic)
		if cost < bestCost {
			out.CopyFrom(current)
			best = stats
			bestCost = cost
			stagnant = 0
		} else {
			stagnant++
		}

		last = stats
		stats = statsFromStore(current)
		if lastRandomStep != -1 {
			stats = blend(&stats, 1.0, &last, 0.5)
		}
		if i > 5 && cost == lastCost {
			stats = best
			stats.randomize(&r)
			stats.calculate()
			lastRandomStep = i
		}
		lastCost = cost

		if stagnations > 0 && stagnant >= stagnations {
			break
		}
	}
}

// LZ77OptimalFixed parses data[start:end] with a single shortest-path pass
// under the fixed Huffman code. No iteration is needed because the code is
// known in advance.
func LZ77OptimalFixed(data []byte, start, end int) *Store {
	m := newMatcher(data)
	out := NewStore(data)
	m.lz77OptimalFixed(start, end, out)
	return out
}

func (m *matcher) lz77OptimalFixed(start, end int, out *Store) {
	if start == end {
		return
	}
	m.cache = newMatchCache(start, end-start)
	defer func() { m.cache = nil }()
	newSqueezer(m, start, end).run(costFixed, out)
}
