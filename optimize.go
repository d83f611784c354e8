package pngopt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/deepteams/pngopt/internal/container"
	"github.com/deepteams/pngopt/internal/filter"
	"github.com/deepteams/pngopt/internal/raster"
)

// Result is the smallest PNG found. It is not modified after Optimize
// returns.
type Result struct {
	// PNG is the complete optimized file.
	PNG []byte
	// InputSize is the size of the input file.
	InputSize int
	// IDATSize is the size of the compressed image data.
	IDATSize int

	ColorType uint8
	BitDepth  uint8
	// Strategy is the filter strategy that produced Filters. With
	// AutoFilterStrategy it is the strategy the fast compressor preferred.
	Strategy FilterStrategy
	Filters  []uint8
	// Palette is the policy that ordered the palette, or nil when the
	// output is not indexed or keeps the input palette.
	Palette *PaletteConfig
	// Mode describes the chosen color mode, e.g. "palette2" or "rgb8+key".
	Mode string
	// Candidates is the number of candidates evaluated.
	Candidates int
}

// Improved reports whether the output is smaller than the input.
func (r *Result) Improved() bool {
	return len(r.PNG) < r.InputSize
}

// Optimize recompresses a PNG. A nil opts uses DefaultOptions.
func Optimize(input []byte, opts *Options) (*Result, error) {
	return OptimizeContext(context.Background(), input, opts)
}

// OptimizeContext is Optimize with cancellation. The context is checked
// between candidates; a running candidate evaluation is not interrupted.
func OptimizeContext(ctx context.Context, input []byte, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := opts.checkBudget(); err != nil {
		return nil, err
	}
	o := &optimizer{opts: opts, log: opts.logger()}
	return o.run(ctx, input)
}

type optimizer struct {
	opts       *Options
	log        *slog.Logger
	predefined filter.Assignment
}

// job is one candidate: an encoding and a filter strategy, or every
// strategy when auto is set.
type job struct {
	enc      *encoding
	strategy filter.Strategy
	auto     bool
}

type outcome struct {
	job      *job
	strategy filter.Strategy
	filters  filter.Assignment
	idat     []byte
	// size is what the candidate adds to the file: IDAT plus PLTE and tRNS.
	size int
	err  error
}

func (o *optimizer) run(ctx context.Context, input []byte) (*Result, error) {
	file, err := container.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	src, err := raster.Decode(input)
	if err != nil {
		return nil, classify(err)
	}
	hdr := file.Header
	if src.Width != hdr.Width || src.Height != hdr.Height {
		return nil, fmt.Errorf("%w: decoded %dx%d, header %dx%d", ErrMalformedInput, src.Width, src.Height, hdr.Width, hdr.Height)
	}
	if hdr.Interlace == 0 {
		if o.predefined, err = file.FilterBytes(); err != nil {
			o.log.Debug("input filters unavailable", "err", err)
		}
	}

	var trns []byte
	if c := file.Chunk(container.TypeTRNS); c != nil {
		trns = c.Data
	}
	encs, err := o.opts.encodings(src, hdr, trns)
	if err != nil {
		return nil, err
	}

	var jobs []*job
	for _, e := range encs {
		if o.opts.AutoFilterStrategy {
			jobs = append(jobs, &job{enc: e, auto: true})
			continue
		}
		for _, s := range o.opts.FilterStrategies {
			jobs = append(jobs, &job{enc: e, strategy: s})
		}
	}
	o.log.Debug("searching", "width", hdr.Width, "height", hdr.Height,
		"encodings", len(encs), "candidates", len(jobs))

	results := make([]outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.evaluate(j)
			if errors.Is(results[i].err, ErrInternal) {
				return results[i].err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Results are in enumeration order, so a strict comparison keeps the
	// earliest of equally small candidates.
	var best *outcome
	var failure error
	for i := range results {
		r := &results[i]
		if r.err != nil {
			o.log.Warn("candidate dropped", "mode", r.job.enc, "strategy", r.strategy, "err", r.err)
			if failure == nil || errorRank(r.err) > errorRank(failure) {
				failure = r.err
			}
			continue
		}
		if best == nil || r.size < best.size {
			best = r
		}
	}
	if best == nil {
		if failure == nil {
			return nil, fmt.Errorf("%w: no candidates", ErrUnsupportedColor)
		}
		return nil, failure
	}

	res := o.assemble(file, best, len(input))
	res.Candidates = len(jobs)
	o.log.Info("optimized", "mode", res.Mode, "strategy", res.Strategy,
		"input", res.InputSize, "output", len(res.PNG), "candidates", res.Candidates)
	return res, nil
}

func (o *optimizer) params(eval filter.Evaluator) *filter.Params {
	return &filter.Params{
		Evaluator:  eval,
		Predefined: o.predefined,
		GA:         o.opts.gaParams(),
		Workers:    o.opts.Workers,
	}
}

// evaluate chooses filters for one candidate and compresses it.
func (o *optimizer) evaluate(j *job) outcome {
	out := outcome{job: j, strategy: j.strategy}
	rows := &j.enc.rows
	var err error
	if j.auto {
		out.filters, out.strategy, err = o.autoFilters(rows)
	} else {
		out.filters, err = filter.Choose(rows, j.strategy, o.params(o.opts.compressedSize))
	}
	if err != nil {
		out.err = classify(err)
		return out
	}
	out.idat, err = o.opts.compress(filter.Apply(rows, out.filters))
	if err != nil {
		out.err = classify(err)
		return out
	}
	out.size = len(out.idat) + j.enc.overhead()
	o.log.Debug("candidate", "mode", j.enc, "strategy", out.strategy, "size", out.size)
	return out
}

// autoFilters runs every configured strategy against the fast compressor
// and returns the assignment that compressed smallest.
func (o *optimizer) autoFilters(rows *filter.Image) (filter.Assignment, filter.Strategy, error) {
	var (
		best      filter.Assignment
		bestS     filter.Strategy
		bestSize  int
		failure   error
		buf       = make([]byte, rows.FilteredSize())
		evaluator = o.params(zlibSize)
	)
	for _, s := range o.opts.FilterStrategies {
		a, err := filter.Choose(rows, s, evaluator)
		if err != nil {
			err = classify(err)
			if errors.Is(err, ErrInternal) {
				return nil, s, err
			}
			o.log.Debug("strategy skipped", "strategy", s, "err", err)
			if failure == nil || errorRank(err) > errorRank(failure) {
				failure = err
			}
			continue
		}
		filter.ApplyTo(buf, rows, a)
		size, err := zlibSize(buf)
		if err != nil {
			return nil, s, err
		}
		if best == nil || size < bestSize {
			best, bestS, bestSize = a, s, size
		}
	}
	if best == nil {
		return nil, 0, failure
	}
	return best, bestS, nil
}

// assemble writes the winning candidate as a PNG.
func (o *optimizer) assemble(file *container.File, best *outcome, inputSize int) *Result {
	e := best.job.enc
	kept := file.Keep(o.opts.KeepChunks)
	if !e.sameLayout {
		kept = o.dropColorDependent(kept)
	}
	png := container.Encode(&container.Image{
		Header: container.Header{
			Width:     file.Header.Width,
			Height:    file.Header.Height,
			BitDepth:  e.mode.BitDepth,
			ColorType: e.mode.ColorType,
		},
		PLTE: e.plte(),
		TRNS: e.trns(),
		IDAT: best.idat,
		Kept: kept,
	})
	res := &Result{
		PNG:       png,
		InputSize: inputSize,
		IDATSize:  len(best.idat),
		ColorType: e.mode.ColorType,
		BitDepth:  e.mode.BitDepth,
		Strategy:  best.strategy,
		Filters:   best.filters,
		Mode:      e.mode.String(),
	}
	if e.config != nil {
		cfg := *e.config
		res.Palette = &cfg
	}
	return res
}

// colorDependent lists ancillary chunks whose payload is laid out for one
// color type, bit depth or palette.
var colorDependent = map[string]bool{"bKGD": true, "sBIT": true, "hIST": true}

func (o *optimizer) dropColorDependent(k container.Kept) container.Kept {
	keep := func(cs []container.Chunk) []container.Chunk {
		var out []container.Chunk
		for _, c := range cs {
			if colorDependent[c.Type] {
				o.log.Warn("dropping chunk that depends on the input color type", "chunk", c.Type)
				continue
			}
			out = append(out, c)
		}
		return out
	}
	return container.Kept{
		BeforePLTE: keep(k.BeforePLTE),
		BeforeIDAT: keep(k.BeforeIDAT),
		AfterIDAT:  keep(k.AfterIDAT),
	}
}
