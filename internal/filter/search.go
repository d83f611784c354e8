package filter

import (
	"fmt"

	"github.com/deepteams/pngopt/internal/pool"
)

// Evaluator returns the compressed size of a filtered stream. It must not
// retain or modify the slice.
type Evaluator func(filtered []byte) (int, error)

// GAParams configures the genetic search.
type GAParams struct {
	PopulationSize       int
	MaxEvaluations       int // 0 means no limit
	StagnateEvaluations  int // 0 means no limit
	MutationProbability  float64
	CrossoverProbability float64
	Offspring            int
}

// DefaultGAParams returns the genetic search defaults.
func DefaultGAParams() GAParams {
	return GAParams{
		PopulationSize:       19,
		MaxEvaluations:       0,
		StagnateEvaluations:  15,
		MutationProbability:  0.01,
		CrossoverProbability: 0.9,
		Offspring:            2,
	}
}

// Params carries what the search strategies need beyond the image.
type Params struct {
	// Evaluator sizes candidates for BruteForce, Incremental and
	// GeneticAlgorithm.
	Evaluator Evaluator
	// Predefined is the assignment used by the Predefined strategy.
	Predefined Assignment
	GA         GAParams
	// Workers bounds concurrent evaluations of one GA generation. With more
	// than one worker the Evaluator must be safe for concurrent use.
	Workers int
}

// Choose returns the filter assignment strategy s selects for img.
func Choose(img *Image, s Strategy, p *Params) (Assignment, error) {
	if err := img.validate(); err != nil {
		return nil, err
	}
	if p == nil {
		p = &Params{}
	}
	if s.NeedsEvaluator() && p.Evaluator == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoEvaluator, s)
	}
	switch s {
	case Zero, One, Two, Three, Four:
		return fixed(img.Height, uint8(s-Zero)), nil
	case MinSum, DistinctBytes, DistinctBigrams, Entropy:
		return heuristic(img, s), nil
	case BruteForce:
		return bruteForce(img, p.Evaluator)
	case Incremental:
		return incremental(img, p.Evaluator)
	case Predefined:
		if err := p.Predefined.Validate(img.Height); err != nil {
			return nil, err
		}
		out := make(Assignment, len(p.Predefined))
		copy(out, p.Predefined)
		return out, nil
	case GeneticAlgorithm:
		return genetic(img, p)
	}
	return nil, fmt.Errorf("filter: unknown strategy %d", uint8(s))
}

// bruteForce compresses the image once per global filter type.
func bruteForce(img *Image, eval Evaluator) (Assignment, error) {
	buf := pool.Get(img.FilteredSize())
	defer pool.Put(buf)
	var best Assignment
	bestSize := 0
	for ft := range uint8(NumTypes) {
		a := fixed(img.Height, ft)
		ApplyTo(buf, img, a)
		size, err := eval(buf)
		if err != nil {
			return nil, err
		}
		if best == nil || size < bestSize {
			best, bestSize = a, size
		}
	}
	return best, nil
}

// incremental starts from MinSum and tries every other filter type on one
// scanline at a time, keeping changes that shrink the compressed size. It
// stops after a full pass without improvement.
func incremental(img *Image, eval Evaluator) (Assignment, error) {
	a := heuristic(img, MinSum)
	buf := Apply(img, a)
	size, err := eval(buf)
	if err != nil {
		return nil, err
	}
	for improved := true; improved; {
		improved = false
		for y := 0; y < img.Height; y++ {
			orig := a[y]
			for ft := range uint8(NumTypes) {
				if ft == orig {
					continue
				}
				applyRow(buf, img, y, ft)
				s, err := eval(buf)
				if err != nil {
					return nil, err
				}
				if s < size {
					size, a[y], improved = s, ft, true
				}
			}
			applyRow(buf, img, y, a[y])
		}
	}
	return a, nil
}
