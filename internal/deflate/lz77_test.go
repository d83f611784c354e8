package deflate

import (
	"bytes"
	"math/rand"
	"testing"
)

func coveredBytes(s *Store) int {
	n := 0
	for _, t := range s.Tokens {
		n += t.Length()
	}
	return n
}

func TestLZ77Greedy_Reconstructs(t *testing.T) {
	for name, data := range testInputs() {
		s := LZ77Greedy(data, 0, len(data))
		if err := s.Verify(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got := coveredBytes(s); got != len(data) {
			t.Fatalf("%s: tokens cover %d bytes, want %d", name, got, len(data))
		}
	}
}

func TestLZ77Optimal_Reconstructs(t *testing.T) {
	opts := fastOptions()
	for name, data := range testInputs() {
		if len(data) > 20000 {
			data = data[:20000]
		}
		s := LZ77Optimal(data, 0, len(data), opts)
		if err := s.Verify(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got := coveredBytes(s); got != len(data) {
			t.Fatalf("%s: tokens cover %d bytes, want %d", name, got, len(data))
		}
	}
}

func TestLZ77Optimal_UsesHistory(t *testing.T) {
	block := []byte("0123456789abcdefghij")
	data := append(append([]byte{}, block...), block...)
	s := LZ77Optimal(data, len(block), len(data), fastOptions())
	if s.Len() != 1 {
		t.Fatalf("tokens = %v, want one match into the history", s.Tokens)
	}
	if tok := s.Tokens[0]; tok.Dist != uint16(len(block)) || int(tok.LitLen) != len(block) {
		t.Fatalf("token = %+v", tok)
	}
	if s.Pos[0] != len(block) {
		t.Fatalf("pos = %d", s.Pos[0])
	}
}

func TestLZ77Optimal_NotWorseThanGreedy(t *testing.T) {
	data := testInputs()["rows"]
	greedy := LZ77Greedy(data, 0, len(data))
	opt := LZ77Optimal(data, 0, len(data), fastOptions())
	g := calculateBlockSize(greedy, 0, greedy.Len(), blockDynamic)
	o := calculateBlockSize(opt, 0, opt.Len(), blockDynamic)
	if o > g {
		t.Fatalf("optimal parse %v bits > greedy %v bits", o, g)
	}
}

func TestLZ77Optimal_MoreIterationsNotWorse(t *testing.T) {
	data := testInputs()["mixed"]
	prev := largeFloat
	for _, n := range []int{1, 3, 8} {
		opts := &Options{NumIterations: n}
		s := LZ77Optimal(data, 0, len(data), opts)
		c := calculateBlockSize(s, 0, s.Len(), blockDynamic)
		if c > prev {
			t.Fatalf("%d iterations: %v bits > %v bits", n, c, prev)
		}
		prev = c
	}
}

func TestLZ77Optimal_Deterministic(t *testing.T) {
	data := testInputs()["text"]
	opts := &Options{NumIterations: 10}
	a := LZ77Optimal(data, 0, len(data), opts)
	b := LZ77Optimal(data, 0, len(data), opts)
	if a.Len() != b.Len() {
		t.Fatalf("token counts differ: %d vs %d", a.Len(), b.Len())
	}
	for i := range a.Tokens {
		if a.Tokens[i] != b.Tokens[i] {
			t.Fatalf("token %d differs", i)
		}
	}
}

func TestLZ77OptimalFixed_Reconstructs(t *testing.T) {
	data := testInputs()["mixed"]
	s := LZ77OptimalFixed(data, 100, len(data))
	if err := s.Verify(); err != nil {
		t.Fatal(err)
	}
	if got := coveredBytes(s); got != len(data)-100 {
		t.Fatalf("covered %d bytes", got)
	}
}

// The cache must answer every (position, limit) query exactly like an
// uncached search over the same hash state.
func TestMatchCache_MatchesSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	data := make([]byte, 3000)
	for i := range data {
		// Small alphabet for many overlapping matches.
		data[i] = byte(rng.Intn(3))
	}
	copy(data[1500:], bytes.Repeat([]byte{1}, 600))

	plain := newMatcher(data)
	cached := newMatcher(data)
	cached.cache = newMatchCache(0, len(data))
	plain.h.prime(data, 0, len(data))
	cached.h.prime(data, 0, len(data))

	var subA, subB [maxMatch + 1]uint16
	for pos := 0; pos < len(data); pos++ {
		plain.h.update(data, pos, len(data))
		cached.h.update(data, pos, len(data))
		for _, limit := range []int{maxMatch, 3, 17, 100} {
			da, la := plain.findLongestMatch(pos, len(data), limit, &subA)
			db, lb := cached.findLongestMatch(pos, len(data), limit, &subB)
			if da != db || la != lb {
				t.Fatalf("pos %d limit %d: search (%d,%d), cache (%d,%d)", pos, limit, da, la, db, lb)
			}
			for l := minMatch; l <= la; l++ {
				if subA[l] != subB[l] {
					t.Fatalf("pos %d limit %d: sublen[%d] %d vs %d", pos, limit, l, subA[l], subB[l])
				}
			}
		}
	}
}

func TestFindLongestMatch_Sublengths(t *testing.T) {
	// "abcd" at 0, "abcdef" at 10, query "abcdefg" at 20.
	data := []byte("abcdXXXXXXabcdefYYYYabcdefg")
	m := newMatcher(data)
	m.h.prime(data, 0, len(data))
	for i := 0; i <= 20; i++ {
		m.h.update(data, i, len(data))
	}
	var sub [maxMatch + 1]uint16
	dist, length := m.findLongestMatch(20, len(data), maxMatch, &sub)
	if length != 6 || dist != 10 {
		t.Fatalf("match = (%d,%d), want (10,6)", dist, length)
	}
	for l := 3; l <= 6; l++ {
		if sub[l] != 10 {
			t.Fatalf("sublen[%d] = %d, want 10", l, sub[l])
		}
	}
}

func TestDistSymbol(t *testing.T) {
	for sym, base := range distBase {
		hi := windowSize
		if sym+1 < len(distBase) {
			hi = distBase[sym+1] - 1
		}
		for _, d := range []int{base, hi} {
			if got := distSymbol(d); got != sym {
				t.Fatalf("distSymbol(%d) = %d, want %d", d, got, sym)
			}
			if got := distExtraBits(d); got != distExtra[sym] {
				t.Fatalf("distExtraBits(%d) = %d, want %d", d, got, distExtra[sym])
			}
		}
	}
}

func TestLengthSymbol(t *testing.T) {
	cases := map[int]int{3: 257, 10: 264, 11: 265, 12: 265, 257: 284, 258: 285}
	for l, want := range cases {
		if got := lengthSymbol(l); got != want {
			t.Errorf("lengthSymbol(%d) = %d, want %d", l, got, want)
		}
	}
	if lengthExtraBits(258) != 0 || lengthExtraBits(257) != 5 {
		t.Fatal("length extra bits wrong")
	}
}

func TestRNGSequence(t *testing.T) {
	r := newRNG()
	// z = 36969*2, w = 18000*1 on the first step.
	z := uint32(36969 * 2)
	if got, want := r.next(), z<<16+18000; got != want {
		t.Fatalf("first value = %d, want %d", got, want)
	}
}
