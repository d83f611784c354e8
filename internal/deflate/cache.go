package deflate

// matchCache memoizes the full-length match search of every position of a
// block. The hash chain evolves identically on each parse pass, so the search
// result at a position never changes while the block is being optimized.
//
// For each position it keeps the best (length, distance) and the
// "sublength" table compressed into breakpoints: runs of lengths that share
// the same smallest distance are stored once as (last length, distance).
type matchCache struct {
	start  int
	length []uint16
	dist   []uint16
	offset []int32 // start index into points, -1 if not yet searched
	count  []uint16
	points []uint32 // length<<16 | distance
}

func newMatchCache(start, size int) *matchCache {
	c := &matchCache{
		start:  start,
		length: make([]uint16, size),
		dist:   make([]uint16, size),
		offset: make([]int32, size),
		count:  make([]uint16, size),
		points: make([]uint32, 0, size),
	}
	for i := range c.offset {
		c.offset[i] = -1
	}
	return c
}

func (c *matchCache) has(pos int) bool {
	return c.offset[pos-c.start] >= 0
}

// put records a full search result for pos.
func (c *matchCache) put(pos, dist, length int, sublen *[maxMatch + 1]uint16) {
	i := pos - c.start
	c.length[i] = uint16(length)
	c.dist[i] = uint16(dist)
	c.offset[i] = int32(len(c.points))
	n := 0
	for j := minMatch; j <= length; j++ {
		if j == length || sublen[j+1] != sublen[j] {
			c.points = append(c.points, uint32(j)<<16|uint32(sublen[j]))
			n++
		}
	}
	c.count[i] = uint16(n)
}

// get returns the match for pos restricted to limit (already clamped to the
// end of input) and fills sublen[3..length] when sublen is non-nil.
func (c *matchCache) get(pos, limit int, sublen *[maxMatch + 1]uint16) (dist, length int) {
	i := pos - c.start
	length = int(c.length[i])
	dist = int(c.dist[i])
	pts := c.points[c.offset[i] : c.offset[i]+int32(c.count[i])]
	if limit < length {
		length = limit
		dist = 0
		for _, p := range pts {
			if int(p>>16) >= limit {
				dist = int(p & 0xffff)
				break
			}
		}
	}
	if sublen != nil {
		j := minMatch
		for _, p := range pts {
			plen, pdist := int(p>>16), uint16(p&0xffff)
			for ; j <= plen && j <= length; j++ {
				sublen[j] = pdist
			}
		}
	}
	return dist, length
}
