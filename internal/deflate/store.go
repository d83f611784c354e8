package deflate

import "fmt"

// Token is one LZ77 symbol: a literal byte when Dist is 0, otherwise a
// back-reference of LitLen bytes starting Dist bytes back.
type Token struct {
	LitLen uint16
	Dist   uint16
}

// IsLiteral reports whether the token is a literal byte.
func (t Token) IsLiteral() bool { return t.Dist == 0 }

// Length returns the number of input bytes the token covers.
func (t Token) Length() int {
	if t.Dist == 0 {
		return 1
	}
	return int(t.LitLen)
}

// Store is a growable token sequence together with the input position of
// every token and the data it was parsed from.
type Store struct {
	Tokens []Token
	Pos    []int
	data   []byte
}

// NewStore allocates a Store over data.
func NewStore(data []byte) *Store {
	return &Store{data: data}
}

// Add appends a token that starts at input position pos.
func (s *Store) Add(litlen, dist, pos int) {
	s.Tokens = append(s.Tokens, Token{LitLen: uint16(litlen), Dist: uint16(dist)})
	s.Pos = append(s.Pos, pos)
}

// Reset clears all stored tokens while retaining the underlying memory.
func (s *Store) Reset() {
	s.Tokens = s.Tokens[:0]
	s.Pos = s.Pos[:0]
}

// Len returns the number of stored tokens.
func (s *Store) Len() int { return len(s.Tokens) }

// Data returns the input the tokens refer to.
func (s *Store) Data() []byte { return s.data }

// Append copies all tokens of src to the end of s.
func (s *Store) Append(src *Store) {
	s.Tokens = append(s.Tokens, src.Tokens...)
	s.Pos = append(s.Pos, src.Pos...)
}

// CopyFrom replaces the contents of s with those of src.
func (s *Store) CopyFrom(src *Store) {
	s.Tokens = append(s.Tokens[:0], src.Tokens...)
	s.Pos = append(s.Pos[:0], src.Pos...)
	s.data = src.data
}

// ByteRange returns the number of input bytes covered by tokens [lstart, lend).
func (s *Store) ByteRange(lstart, lend int) int {
	if lstart == lend {
		return 0
	}
	l := lend - 1
	return s.Pos[l] + s.Tokens[l].Length() - s.Pos[lstart]
}

// Histogram counts literal/length and distance symbols over [lstart, lend).
// The end-of-block symbol is not included.
func (s *Store) Histogram(lstart, lend int, llCounts *[numLL]int, dCounts *[numD]int) {
	for i := range llCounts {
		llCounts[i] = 0
	}
	for i := range dCounts {
		dCounts[i] = 0
	}
	for _, t := range s.Tokens[lstart:lend] {
		if t.Dist == 0 {
			llCounts[t.LitLen]++
		} else {
			llCounts[lengthSymbol(int(t.LitLen))]++
			dCounts[distSymbol(int(t.Dist))]++
		}
	}
}

// Verify checks that every token reproduces the input it claims to cover.
func (s *Store) Verify() error {
	for i, t := range s.Tokens {
		pos := s.Pos[i]
		if t.Dist == 0 {
			if pos >= len(s.data) || s.data[pos] != byte(t.LitLen) {
				return fmt.Errorf("%w: literal %d at %d does not match input", ErrInvariant, i, pos)
			}
			continue
		}
		length, dist := int(t.LitLen), int(t.Dist)
		if length < minMatch || length > maxMatch || dist < 1 || dist > windowSize || dist > pos || pos+length > len(s.data) {
			return fmt.Errorf("%w: match %d (len %d, dist %d) at %d out of range", ErrInvariant, i, length, dist, pos)
		}
		for k := 0; k < length; k++ {
			if s.data[pos+k] != s.data[pos+k-dist] {
				return fmt.Errorf("%w: match %d at %d differs at offset %d", ErrInvariant, i, pos, k)
			}
		}
	}
	return nil
}
