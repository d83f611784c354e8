package main

import (
	"encoding"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/deepteams/pngopt"
)

// optionFlags mirrors pngopt.Options on a flag set. Only flags given on the
// command line override the configuration file.
type optionFlags struct {
	def   *pngopt.Options
	apply map[string]func(*pngopt.Options) error
}

func newOptionFlags(fs *pflag.FlagSet) *optionFlags {
	f := &optionFlags{def: pngopt.DefaultOptions(), apply: make(map[string]func(*pngopt.Options) error)}

	f.intVar(fs, "lossy-transparent", func(o *pngopt.Options) *int { return &o.LossyTransparent },
		"hidden colors of transparent pixels: 0 keep, 1 clear, 2 also copy left")
	f.boolVar(fs, "lossy-8bit", func(o *pngopt.Options) *bool { return &o.Lossy8Bit },
		"convert 16-bit images to 8 bits")
	f.boolVar(fs, "keep-color-type", func(o *pngopt.Options) *bool { return &o.KeepColorType },
		"keep the input color type and bit depth")

	listVar(f, fs, "filters", func(o *pngopt.Options) *[]pngopt.FilterStrategy { return &o.FilterStrategies },
		"filter strategies to try")
	f.boolVar(fs, "auto-filter", func(o *pngopt.Options) *bool { return &o.AutoFilterStrategy },
		"pick the filter strategy with a fast compressor")

	listVar(f, fs, "palette-priorities", func(o *pngopt.Options) *[]pngopt.PalettePriority { return &o.PalettePriorities },
		"palette sort keys")
	listVar(f, fs, "palette-directions", func(o *pngopt.Options) *[]pngopt.PaletteDirection { return &o.PaletteDirections },
		"palette sort directions")
	listVar(f, fs, "palette-transparencies", func(o *pngopt.Options) *[]pngopt.PaletteTransparency { return &o.PaletteTransparencies },
		"placement of transparent palette entries")
	listVar(f, fs, "palette-orders", func(o *pngopt.Options) *[]pngopt.PaletteOrder { return &o.PaletteOrders },
		"palette ordering passes")

	f.boolVar(fs, "zopfli", func(o *pngopt.Options) *bool { return &o.UseZopfli },
		"use the optimal-parsing deflate encoder")
	f.intVar(fs, "iterations", func(o *pngopt.Options) *int { return &o.NumIterations },
		"optimal-parse passes for small images")
	f.intVar(fs, "iterations-large", func(o *pngopt.Options) *int { return &o.NumIterationsLarge },
		"optimal-parse passes for images with 200000 or more filtered bytes")
	f.intVar(fs, "stagnations", func(o *pngopt.Options) *int { return &o.NumStagnations },
		"stop after this many passes without improvement (0 = never)")
	f.intVar(fs, "max-blocks", func(o *pngopt.Options) *int { return &o.MaxBlocks },
		"maximum deflate blocks (0 = unlimited)")
	f.intVar(fs, "paletteless-size", func(o *pngopt.Options) *int { return &o.TryPalettelessSize },
		"also try full color above this many raw bytes")

	f.intVar(fs, "ga-population", func(o *pngopt.Options) *int { return &o.GAPopulationSize },
		"genetic search population size")
	f.intVar(fs, "ga-max-evaluations", func(o *pngopt.Options) *int { return &o.GAMaxEvaluations },
		"genetic search evaluation limit (0 = none)")
	f.intVar(fs, "ga-stagnate-evaluations", func(o *pngopt.Options) *int { return &o.GAStagnateEvaluations },
		"stop the genetic search after this many evaluations without a new best (0 = never)")
	f.floatVar(fs, "ga-mutation", func(o *pngopt.Options) *float64 { return &o.GAMutationProbability },
		"genetic search mutation probability")
	f.floatVar(fs, "ga-crossover", func(o *pngopt.Options) *float64 { return &o.GACrossoverProbability },
		"genetic search crossover probability")
	f.intVar(fs, "ga-offspring", func(o *pngopt.Options) *int { return &o.GANumberOfOffspring },
		"genetic search offspring per generation")

	keep := fs.StringSlice("keep-chunks", nil, "ancillary chunks to copy, e.g. iCCP,tEXt")
	f.apply["keep-chunks"] = func(o *pngopt.Options) error {
		o.KeepChunks = append([]string(nil), *keep...)
		return nil
	}
	f.intVar(fs, "workers", func(o *pngopt.Options) *int { return &o.Workers },
		"candidates evaluated at once")
	return f
}

func (f *optionFlags) intVar(fs *pflag.FlagSet, name string, field func(*pngopt.Options) *int, usage string) {
	p := fs.Int(name, *field(f.def), usage)
	f.apply[name] = func(o *pngopt.Options) error { *field(o) = *p; return nil }
}

func (f *optionFlags) boolVar(fs *pflag.FlagSet, name string, field func(*pngopt.Options) *bool, usage string) {
	p := fs.Bool(name, *field(f.def), usage)
	f.apply[name] = func(o *pngopt.Options) error { *field(o) = *p; return nil }
}

func (f *optionFlags) floatVar(fs *pflag.FlagSet, name string, field func(*pngopt.Options) *float64, usage string) {
	p := fs.Float64(name, *field(f.def), usage)
	f.apply[name] = func(o *pngopt.Options) error { *field(o) = *p; return nil }
}

// listVar registers a comma-separated list of enum names.
func listVar[T fmt.Stringer, P interface {
	*T
	encoding.TextUnmarshaler
}](f *optionFlags, fs *pflag.FlagSet, name string, field func(*pngopt.Options) *[]T, usage string) {
	var names []string
	for _, v := range *field(f.def) {
		names = append(names, v.String())
	}
	p := fs.StringSlice(name, names, usage)
	f.apply[name] = func(o *pngopt.Options) error {
		out := make([]T, 0, len(*p))
		for _, s := range *p {
			var v T
			if err := P(&v).UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
				return fmt.Errorf("--%s: %w", name, err)
			}
			out = append(out, v)
		}
		*field(o) = out
		return nil
	}
}

// override applies the flags set on the command line to o.
func (f *optionFlags) override(fs *pflag.FlagSet, o *pngopt.Options) error {
	var err error
	fs.Visit(func(fl *pflag.Flag) {
		if apply, ok := f.apply[fl.Name]; ok && err == nil {
			err = apply(o)
		}
	})
	return err
}
