package filter

import "fmt"

// Strategy selects how filter types are assigned to scanlines.
type Strategy uint8

const (
	Zero Strategy = iota // every scanline uses filter 0
	One
	Two
	Three
	Four
	MinSum
	DistinctBytes
	DistinctBigrams
	Entropy
	BruteForce
	Incremental
	Predefined
	GeneticAlgorithm

	numStrategies
)

var strategyNames = [numStrategies]string{
	"zero", "one", "two", "three", "four",
	"minsum", "distinct-bytes", "distinct-bigrams", "entropy",
	"brute-force", "incremental", "predefined", "genetic",
}

// Strategies lists every strategy in declaration order.
func Strategies() []Strategy {
	out := make([]Strategy, numStrategies)
	for i := range out {
		out[i] = Strategy(i)
	}
	return out
}

func (s Strategy) String() string {
	if s.Valid() {
		return strategyNames[s]
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool { return s < numStrategies }

// NeedsEvaluator reports whether the strategy compresses candidates.
func (s Strategy) NeedsEvaluator() bool {
	return s == BruteForce || s == Incremental || s == GeneticAlgorithm
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("filter: unknown strategy %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStrategy returns the strategy with the given name.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("filter: unknown strategy %q", name)
}
