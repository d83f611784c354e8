package pngopt

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/deepteams/pngopt/internal/filter"
	"github.com/deepteams/pngopt/internal/palette"
)

// FilterStrategy selects how scanline filters are chosen.
type FilterStrategy = filter.Strategy

// Filter strategies, in the order Options.FilterStrategies is usually
// written. They marshal as the lowercase names shown by String.
const (
	StrategyZero             = filter.Zero  // filter 0 (None) on every row
	StrategyOne              = filter.One   // filter 1 (Sub) on every row
	StrategyTwo              = filter.Two   // filter 2 (Up) on every row
	StrategyThree            = filter.Three // filter 3 (Average) on every row
	StrategyFour             = filter.Four  // filter 4 (Paeth) on every row
	StrategyMinSum           = filter.MinSum
	StrategyDistinctBytes    = filter.DistinctBytes
	StrategyDistinctBigrams  = filter.DistinctBigrams
	StrategyEntropy          = filter.Entropy
	StrategyBruteForce       = filter.BruteForce
	StrategyIncremental      = filter.Incremental
	StrategyPredefined       = filter.Predefined
	StrategyGeneticAlgorithm = filter.GeneticAlgorithm
)

// Palette ordering policies.
type (
	PalettePriority     = palette.Priority
	PaletteDirection    = palette.Direction
	PaletteTransparency = palette.Transparency
	PaletteOrder        = palette.Order
	// PaletteConfig is one combination of the four palette policies.
	PaletteConfig = palette.Config
)

const (
	PriorityPopularity = palette.Popularity
	PriorityRGB        = palette.RGB
	PriorityYUV        = palette.YUV
	PriorityLab        = palette.Lab
	PriorityMSB        = palette.MSB

	DirectionAscending  = palette.Ascending
	DirectionDescending = palette.Descending

	TransparencyIgnore = palette.TransparencyIgnore
	TransparencySort   = palette.TransparencySort
	TransparencyFirst  = palette.TransparencyFirst

	OrderNone     = palette.OrderNone
	OrderGlobal   = palette.OrderGlobal
	OrderNearest  = palette.OrderNearest
	OrderWeight   = palette.OrderWeight
	OrderNeighbor = palette.OrderNeighbor
)

// Options controls the search. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// LossyTransparent allows changing the hidden color of fully
	// transparent pixels:
	//   0 = keep them (lossless)
	//   1 = set them to black
	//   2 = also try copying the left neighbour's color
	LossyTransparent int `yaml:"lossy_transparent" validate:"min=0,max=2"`

	// Lossy8Bit converts 16-bit images to 8 bits even when the low bytes
	// carry information.
	Lossy8Bit bool `yaml:"lossy_8bit"`

	// KeepColorType keeps the input color type and bit depth instead of
	// searching for a smaller representation. Palette input keeps its
	// palette and indices unchanged.
	KeepColorType bool `yaml:"keep_color_type"`

	// FilterStrategies lists the strategies to try, in tie-break order.
	FilterStrategies []FilterStrategy `yaml:"filter_strategies" validate:"min=1,dive,known"`

	// AutoFilterStrategy scores every strategy with a fast compressor and
	// compresses only the winner with the main compressor. When false,
	// every strategy is a separate candidate.
	AutoFilterStrategy bool `yaml:"auto_filter_strategy"`

	// Palette policies to combine. Every combination is tried when the
	// image has at most 256 colors; combinations producing the same
	// palette are tried once.
	PalettePriorities     []PalettePriority     `yaml:"palette_priorities" validate:"dive,known"`
	PaletteDirections     []PaletteDirection    `yaml:"palette_directions" validate:"dive,known"`
	PaletteTransparencies []PaletteTransparency `yaml:"palette_transparencies" validate:"dive,known"`
	PaletteOrders         []PaletteOrder        `yaml:"palette_orders" validate:"dive,known"`

	// UseZopfli selects the optimal-parsing DEFLATE encoder. When false
	// the candidates are compressed with zlib at its best level.
	UseZopfli bool `yaml:"use_zopfli"`

	// NumIterations is the number of optimal-parse passes for filtered
	// data smaller than 200000 bytes, NumIterationsLarge for bigger data.
	NumIterations      int `yaml:"num_iterations" validate:"gte=0"`
	NumIterationsLarge int `yaml:"num_iterations_large" validate:"gte=0"`

	// NumStagnations stops the passes after this many in a row without
	// improvement. 0 disables the early stop.
	NumStagnations int `yaml:"num_stagnations" validate:"gte=0"`

	// MaxBlocks caps the DEFLATE blocks per master block. 0 means no limit.
	MaxBlocks int `yaml:"max_blocks" validate:"gte=0"`

	// TryPalettelessSize also tries the full-color representation of a
	// palette-capable image when its raw scanlines exceed this many bytes.
	TryPalettelessSize int `yaml:"try_paletteless_size" validate:"gte=0"`

	// Genetic filter search. The search stops after GAMaxEvaluations
	// evaluations or GAStagnateEvaluations evaluations without a new best;
	// 0 disables either limit, but not both.
	GAPopulationSize       int     `yaml:"ga_population_size" validate:"gte=0"`
	GAMaxEvaluations       int     `yaml:"ga_max_evaluations" validate:"gte=0"`
	GAStagnateEvaluations  int     `yaml:"ga_stagnate_evaluations" validate:"gte=0"`
	GAMutationProbability  float64 `yaml:"ga_mutation_probability" validate:"min=0,max=1"`
	GACrossoverProbability float64 `yaml:"ga_crossover_probability" validate:"min=0,max=1"`
	GANumberOfOffspring    int     `yaml:"ga_number_of_offspring" validate:"gte=0"`

	// KeepChunks names ancillary chunks copied to the output. Critical
	// chunks and tRNS are always regenerated.
	KeepChunks []string `yaml:"keep_chunks" validate:"dive,len=4,alpha"`

	// Workers bounds how many candidates are evaluated at once. The output
	// does not depend on it.
	Workers int `yaml:"workers" validate:"gte=1"`

	// Logger receives debug records per candidate and the final choice.
	// nil discards them.
	Logger *slog.Logger `yaml:"-" validate:"-"`
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	ga := filter.DefaultGAParams()
	return &Options{
		FilterStrategies: []FilterStrategy{
			StrategyZero, StrategyOne, StrategyTwo, StrategyThree, StrategyFour,
			StrategyMinSum, StrategyEntropy, StrategyPredefined, StrategyBruteForce,
		},
		AutoFilterStrategy:     true,
		PalettePriorities:      palette.Priorities(),
		PaletteDirections:      palette.Directions(),
		PaletteTransparencies:  palette.Transparencies(),
		PaletteOrders:          palette.Orders(),
		UseZopfli:              true,
		NumIterations:          15,
		NumIterationsLarge:     5,
		NumStagnations:         15,
		MaxBlocks:              15,
		TryPalettelessSize:     2048,
		GAPopulationSize:       ga.PopulationSize,
		GAMaxEvaluations:       ga.MaxEvaluations,
		GAStagnateEvaluations:  ga.StagnateEvaluations,
		GAMutationProbability:  ga.MutationProbability,
		GACrossoverProbability: ga.CrossoverProbability,
		GANumberOfOffspring:    ga.Offspring,
		Workers:                1,
	}
}

// validatorOnce builds the validator with the "known" tag, which accepts
// enum values whose Valid method reports true.
var validatorOnce = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("known", func(fl validator.FieldLevel) bool {
		e, ok := fl.Field().Interface().(interface{ Valid() bool })
		return ok && e.Valid()
	})
	return v
})

// Validate checks every option against its documented range.
func (o *Options) Validate() error {
	if err := validatorOnce().Struct(o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

// checkBudget rejects options under which a search could not terminate
// or could not start.
func (o *Options) checkBudget() error {
	if o.UseZopfli && (o.NumIterations < 1 || o.NumIterationsLarge < 1) {
		return fmt.Errorf("%w: zopfli needs at least one iteration (num_iterations %d, num_iterations_large %d)",
			ErrResourceExhausted, o.NumIterations, o.NumIterationsLarge)
	}
	for _, s := range o.FilterStrategies {
		if s != StrategyGeneticAlgorithm {
			continue
		}
		switch {
		case o.GAMaxEvaluations == 0 && o.GAStagnateEvaluations == 0:
			return fmt.Errorf("%w: genetic search needs ga_max_evaluations or ga_stagnate_evaluations", ErrResourceExhausted)
		case o.GAPopulationSize < 2:
			return fmt.Errorf("%w: genetic search needs a population of at least 2, got %d", ErrResourceExhausted, o.GAPopulationSize)
		case o.GANumberOfOffspring < 1:
			return fmt.Errorf("%w: genetic search needs at least one offspring", ErrResourceExhausted)
		}
	}
	return nil
}

func (o *Options) gaParams() filter.GAParams {
	return filter.GAParams{
		PopulationSize:       o.GAPopulationSize,
		MaxEvaluations:       o.GAMaxEvaluations,
		StagnateEvaluations:  o.GAStagnateEvaluations,
		MutationProbability:  o.GAMutationProbability,
		CrossoverProbability: o.GACrossoverProbability,
		Offspring:            o.GANumberOfOffspring,
	}
}

// paletteConfigs returns every policy combination, nested priority,
// direction, transparency, order. This nesting is the tie-break order.
func (o *Options) paletteConfigs() []PaletteConfig {
	var out []PaletteConfig
	for _, p := range o.PalettePriorities {
		for _, d := range o.PaletteDirections {
			for _, t := range o.PaletteTransparencies {
				for _, ord := range o.PaletteOrders {
					out = append(out, PaletteConfig{Priority: p, Direction: d, Transparency: t, Order: ord})
				}
			}
		}
	}
	return out
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// LoadOptions reads YAML options from path. Fields missing from the file
// keep their DefaultOptions values.
func LoadOptions(path string) (*Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pngopt: reading options: %w", err)
	}
	defer f.Close()
	return ReadOptions(f)
}

// ReadOptions decodes YAML options from r on top of DefaultOptions and
// validates the result. Unknown keys are rejected.
func ReadOptions(r io.Reader) (*Options, error) {
	opts := DefaultOptions()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// WriteYAML writes the options as a YAML document that ReadOptions
// accepts.
func (o *Options) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(o); err != nil {
		return fmt.Errorf("pngopt: encoding options: %w", err)
	}
	return enc.Close()
}
