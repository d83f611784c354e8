package filter

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/deepteams/pngopt/internal/pool"
)

// Fixed seed so every run explores the same genomes.
const gaSeed1, gaSeed2 = 1, 2

type genome struct {
	genes   Assignment
	fitness int
}

// gaState is one run of the genetic search. Only evaluate runs work
// concurrently; selection, breeding and replacement are sequential, so the
// outcome does not depend on Workers.
type gaState struct {
	img     *Image
	eval    Evaluator
	params  GAParams
	workers int
	rng     *rand.Rand

	cache     map[string]int
	evals     int
	sinceBest int
	best      genome
}

// genetic evolves filter assignments, using compressed size as fitness,
// and returns the best assignment ever evaluated.
func genetic(img *Image, p *Params) (Assignment, error) {
	st, err := newGAState(img, p)
	if err != nil {
		return nil, err
	}
	return st.run()
}

func newGAState(img *Image, p *Params) (*gaState, error) {
	g := p.GA
	switch {
	case g.MaxEvaluations <= 0 && g.StagnateEvaluations <= 0:
		return nil, fmt.Errorf("%w: no evaluation or stagnation limit", ErrBudget)
	case g.PopulationSize < 2:
		return nil, fmt.Errorf("%w: population of %d", ErrBudget, g.PopulationSize)
	case g.Offspring < 1:
		return nil, fmt.Errorf("%w: %d offspring per generation", ErrBudget, g.Offspring)
	}
	return &gaState{
		img:     img,
		eval:    p.Evaluator,
		params:  g,
		workers: max(1, p.Workers),
		rng:     rand.New(rand.NewPCG(gaSeed1, gaSeed2)),
		cache:   make(map[string]int),
		best:    genome{fitness: -1},
	}, nil
}

func (st *gaState) run() (Assignment, error) {
	pop, err := st.evaluate(st.seed())
	if err != nil {
		return nil, err
	}
	// Offspring beyond the population size would replace each other.
	offspring := min(st.params.Offspring, st.params.PopulationSize)
	for !st.done() {
		children := make([]Assignment, offspring)
		for i := range children {
			children[i] = st.breed(pop)
		}
		evaluated, err := st.evaluate(children)
		if err != nil {
			return nil, err
		}
		st.replaceWorst(pop, evaluated)
	}
	return st.best.genes, nil
}

// seed builds the initial population: the fixed assignments, MinSum and
// Entropy as far as they fit, then uniformly random genomes.
func (st *gaState) seed() []Assignment {
	h := st.img.Height
	n := st.params.PopulationSize
	seeds := make([]Assignment, 0, n)
	for ft := range uint8(NumTypes) {
		seeds = append(seeds, fixed(h, ft))
	}
	seeds = append(seeds, heuristic(st.img, MinSum), heuristic(st.img, Entropy))
	if len(seeds) > n {
		seeds = seeds[:n]
	}
	for len(seeds) < n {
		a := make(Assignment, h)
		for i := range a {
			a[i] = uint8(st.rng.IntN(NumTypes))
		}
		seeds = append(seeds, a)
	}
	return seeds
}

// evaluate sizes a batch of genomes. Cache lookups and bookkeeping happen
// in batch order; misses are compressed on up to workers goroutines.
func (st *gaState) evaluate(batch []Assignment) ([]genome, error) {
	out := make([]genome, len(batch))
	missing := make(map[string]int) // key -> index of first occurrence
	var order []int
	for i, a := range batch {
		out[i].genes = a
		key := string(a)
		if _, ok := st.cache[key]; ok {
			continue
		}
		if _, ok := missing[key]; !ok {
			missing[key] = i
			order = append(order, i)
		}
	}

	sizes := make([]int, len(batch))
	var eg errgroup.Group
	eg.SetLimit(st.workers)
	for _, i := range order {
		eg.Go(func() error {
			buf := pool.Get(st.img.FilteredSize())
			defer pool.Put(buf)
			ApplyTo(buf, st.img, batch[i])
			size, err := st.eval(buf)
			if err != nil {
				return err
			}
			sizes[i] = size
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	for _, i := range order {
		st.cache[string(batch[i])] = sizes[i]
	}

	for i := range out {
		out[i].fitness = st.cache[string(out[i].genes)]
		st.evals++
		if st.best.fitness < 0 || out[i].fitness < st.best.fitness {
			st.best = genome{genes: slices.Clone(out[i].genes), fitness: out[i].fitness}
			st.sinceBest = 0
		} else {
			st.sinceBest++
		}
	}
	return out, nil
}

func (st *gaState) done() bool {
	g := st.params
	return (g.MaxEvaluations > 0 && st.evals >= g.MaxEvaluations) ||
		(g.StagnateEvaluations > 0 && st.sinceBest >= g.StagnateEvaluations)
}

// tournament returns the fitter of two random members.
func (st *gaState) tournament(pop []genome) *genome {
	a := &pop[st.rng.IntN(len(pop))]
	b := &pop[st.rng.IntN(len(pop))]
	if b.fitness < a.fitness {
		return b
	}
	return a
}

// breed produces one child by crossover and mutation.
func (st *gaState) breed(pop []genome) Assignment {
	p1 := st.tournament(pop)
	p2 := st.tournament(pop)
	child := slices.Clone(p1.genes)
	if st.rng.Float64() < st.params.CrossoverProbability {
		for i := range child {
			if st.rng.IntN(2) == 1 {
				child[i] = p2.genes[i]
			}
		}
	}
	for i := range child {
		if st.rng.Float64() < st.params.MutationProbability {
			child[i] = uint8(st.rng.IntN(NumTypes))
		}
	}
	return child
}

// replaceWorst overwrites the least fit members with the children. Among
// equally unfit members the lower index goes first.
func (st *gaState) replaceWorst(pop, children []genome) {
	idx := make([]int, len(pop))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return pop[b].fitness - pop[a].fitness
	})
	for k, c := range children {
		pop[idx[k]] = c
	}
}
