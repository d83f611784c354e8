package filter

import (
	"math"

	"github.com/deepteams/pngopt/internal/pool"
)

// scorer rates a filtered scanline; lower is better.
type scorer struct {
	kind  Strategy
	stamp uint32
	seen  [256]uint32
	pairs []uint32
	hist  [256]int
}

func newScorer(kind Strategy) *scorer {
	s := &scorer{kind: kind}
	if kind == DistinctBigrams {
		s.pairs = make([]uint32, 1<<16)
	}
	return s
}

func (s *scorer) score(ft uint8, row []byte) float64 {
	switch s.kind {
	case MinSum:
		sum := 0
		if ft == None {
			for _, b := range row {
				sum += int(b)
			}
		} else {
			// Residuals are signed: 255 is -1.
			for _, b := range row {
				sum += min(int(b), 256-int(b))
			}
		}
		return float64(sum)

	case DistinctBytes:
		s.stamp++
		n := 0
		for _, b := range row {
			if s.seen[b] != s.stamp {
				s.seen[b] = s.stamp
				n++
			}
		}
		return float64(n)

	case DistinctBigrams:
		s.stamp++
		n := 0
		for i := 1; i < len(row); i++ {
			k := uint16(row[i-1])<<8 | uint16(row[i])
			if s.pairs[k] != s.stamp {
				s.pairs[k] = s.stamp
				n++
			}
		}
		return float64(n)

	default: // Entropy
		clear(s.hist[:])
		s.hist[ft]++
		for _, b := range row {
			s.hist[b]++
		}
		total := float64(len(row) + 1)
		bits := 0.0
		for _, c := range s.hist {
			if c > 0 {
				p := float64(c) / total
				bits -= float64(c) * math.Log2(p)
			}
		}
		return bits
	}
}

// heuristic picks, per scanline, the filter type whose residuals score
// lowest. Ties go to the lower filter type.
func heuristic(img *Image, kind Strategy) Assignment {
	s := newScorer(kind)
	var rows [NumTypes][]byte
	for i := range rows {
		rows[i] = pool.Get(img.Stride)
	}
	defer func() {
		for _, r := range rows {
			pool.Put(r)
		}
	}()

	a := make(Assignment, img.Height)
	var prev []byte
	for y := 0; y < img.Height; y++ {
		cur := img.Row(y)
		best, bestScore := None, math.Inf(1)
		for ft := range uint8(NumTypes) {
			filterRow(rows[ft], ft, cur, prev, img.BPP)
			if sc := s.score(ft, rows[ft]); sc < bestScore {
				best, bestScore = ft, sc
			}
		}
		a[y] = best
		prev = cur
	}
	return a
}

// fixed assigns ft to every scanline.
func fixed(height int, ft uint8) Assignment {
	a := make(Assignment, height)
	for i := range a {
		a[i] = ft
	}
	return a
}
