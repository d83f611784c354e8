package deflate

// matcher finds back-references in data using a hashChain and an optional
// per-block matchCache.
type matcher struct {
	data   []byte
	h      *hashChain
	cache  *matchCache
	sublen [maxMatch + 1]uint16
}

func newMatcher(data []byte) *matcher {
	return &matcher{data: data, h: newHashChain()}
}

// distance returns the ring distance walked from window index pp back to p.
func distance(p, pp int) int {
	if p < pp {
		return pp - p
	}
	return windowSize - p + pp
}

// findLongestMatch returns the best match at pos not longer than limit. The
// hash chain must already contain pos. When sublen is non-nil, sublen[l] is
// set to the smallest distance that reaches length l, for 3 <= l <= length.
//
// A returned length below minMatch means no usable match exists.
func (m *matcher) findLongestMatch(pos, end, limit int, sublen *[maxMatch + 1]uint16) (dist, length int) {
	if end-pos < minMatch {
		return 0, 0
	}
	if pos+limit > end {
		limit = end - pos
	}
	if m.cache == nil {
		return m.search(pos, end, limit, sublen)
	}
	if !m.cache.has(pos) {
		full := maxMatch
		if pos+full > end {
			full = end - pos
		}
		d, l := m.search(pos, end, full, &m.sublen)
		m.cache.put(pos, d, l, &m.sublen)
	}
	return m.cache.get(pos, limit, sublen)
}

// search walks the hash chains. The first chain is followed until the best
// length reaches the current run of identical bytes, at which point the
// run-length chain takes over because it only links positions whose runs
// have the same length.
func (m *matcher) search(pos, end, limit int, sublen *[maxMatch + 1]uint16) (int, int) {
	data := m.data
	h := m.h
	hpos := pos & windowMask

	bestDist, bestLength := 0, 1
	chainCounter := maxChainHits

	prev := h.prev
	second := false

	pp := hpos
	p := int(prev[pp])
	dist := distance(p, pp)

	for dist < windowSize {
		if dist > pos {
			break
		}
		currentLength := 0
		if dist > 0 {
			scan, match := pos, pos-dist
			if pos+bestLength >= end || data[scan+bestLength] == data[match+bestLength] {
				if same0 := int(h.same[hpos]); same0 > 2 && data[scan] == data[match] {
					same := int(h.same[match&windowMask])
					if same0 < same {
						same = same0
					}
					if same > limit {
						same = limit
					}
					scan += same
					match += same
				}
				stop := pos + limit
				for scan < stop && data[scan] == data[match] {
					scan++
					match++
				}
				currentLength = scan - pos
			}

			if currentLength > bestLength {
				if sublen != nil {
					for j := bestLength + 1; j <= currentLength; j++ {
						sublen[j] = uint16(dist)
					}
				}
				bestDist = dist
				bestLength = currentLength
				if currentLength >= limit {
					break
				}
			}
		}

		if !second && bestLength >= int(h.same[hpos]) && h.val2 == int(h.hashval2[p]) {
			prev = h.prev2
			second = true
		}

		pp = p
		p = int(prev[p])
		if p == pp {
			break
		}
		dist += distance(p, pp)

		chainCounter--
		if chainCounter <= 0 {
			break
		}
	}

	if bestLength > limit {
		bestLength = limit
	}
	return bestDist, bestLength
}

// lengthScore penalizes short far matches, which cost more extra bits than
// they save.
func lengthScore(length, dist int) int {
	if dist > 1024 {
		return length - 1
	}
	return length
}

// LZ77Greedy parses data[start:end] with lazy matching: a match is deferred by
// one byte when the next position offers a strictly better one. Bytes before
// start are used as history.
func LZ77Greedy(data []byte, start, end int) *Store {
	s := NewStore(data)
	if start == end {
		return s
	}
	m := newMatcher(data)
	m.lz77Greedy(start, end, s)
	return s
}

func (m *matcher) lz77Greedy(start, end int, s *Store) {
	data := m.data
	h := m.h
	h.prime(data, start, end)

	prevLength, prevMatch := 0, 0
	matchAvailable := false

	for i := start; i < end; i++ {
		h.update(data, i, end)

		dist, length := m.findLongestMatch(i, end, maxMatch, nil)
		score := lengthScore(length, dist)

		if matchAvailable {
			matchAvailable = false
			if score > lengthScore(prevLength, prevMatch)+1 {
				s.Add(int(data[i-1]), 0, i-1)
				if score >= minMatch && length < maxMatch {
					matchAvailable = true
					prevLength, prevMatch = length, dist
					continue
				}
			} else {
				// Emit the deferred match and skip the bytes it covers.
				length, dist = prevLength, prevMatch
				s.Add(length, dist, i-1)
				for j := 2; j < length; j++ {
					i++
					h.update(data, i, end)
				}
				continue
			}
		} else if score >= minMatch && length < maxMatch {
			matchAvailable = true
			prevLength, prevMatch = length, dist
			continue
		}

		if score >= minMatch {
			s.Add(length, dist, i)
		} else {
			length = 1
			s.Add(int(data[i]), 0, i)
		}
		for j := 1; j < length; j++ {
			i++
			h.update(data, i, end)
		}
	}
}
