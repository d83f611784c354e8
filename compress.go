package pngopt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/deepteams/pngopt/internal/deflate"
)

// largeFilteredSize is the filtered stream size from which
// NumIterationsLarge replaces NumIterations.
const largeFilteredSize = 200000

var zlibWriters = sync.Pool{
	New: func() any {
		w, _ := zlib.NewWriterLevel(io.Discard, zlib.BestCompression)
		return w
	},
}

// zlibTo streams data through a pooled best-compression zlib writer.
func zlibTo(dst io.Writer, data []byte) error {
	zw := zlibWriters.Get().(*zlib.Writer)
	defer func() {
		zw.Reset(io.Discard)
		zlibWriters.Put(zw)
	}()
	zw.Reset(dst)
	if _, err := zw.Write(data); err != nil {
		return err
	}
	return zw.Close()
}

// zlibCompress is the fast compressor: klauspost zlib at best compression.
func zlibCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data)/2 + 64)
	if err := zlibTo(&buf, data); err != nil {
		return nil, fmt.Errorf("pngopt: zlib: %w", err)
	}
	return buf.Bytes(), nil
}

type countingWriter int

func (c *countingWriter) Write(p []byte) (int, error) {
	*c += countingWriter(len(p))
	return len(p), nil
}

// zlibSize is the fast compressor as a filter.Evaluator. It is safe for
// concurrent use.
func zlibSize(data []byte) (int, error) {
	var n countingWriter
	if err := zlibTo(&n, data); err != nil {
		return 0, fmt.Errorf("pngopt: zlib: %w", err)
	}
	return int(n), nil
}

// deflateOptions returns the optimal-parse settings for a filtered stream
// of the given size.
func (o *Options) deflateOptions(size int) *deflate.Options {
	iterations := o.NumIterations
	if size >= largeFilteredSize {
		iterations = o.NumIterationsLarge
	}
	return &deflate.Options{
		NumIterations:  iterations,
		NumStagnations: o.NumStagnations,
		BlockSplitting: true,
		MaxBlocks:      o.MaxBlocks,
	}
}

// compress is the main compressor producing the IDAT payload.
func (o *Options) compress(data []byte) ([]byte, error) {
	if !o.UseZopfli {
		return zlibCompress(data)
	}
	out, err := deflate.ZlibCompress(data, o.deflateOptions(len(data)))
	if err != nil {
		if errors.Is(err, deflate.ErrInvariant) {
			return nil, fmt.Errorf("%w: %w", ErrInternal, err)
		}
		return nil, err
	}
	return out, nil
}

// compressedSize is the main compressor as a filter.Evaluator.
func (o *Options) compressedSize(data []byte) (int, error) {
	if !o.UseZopfli {
		return zlibSize(data)
	}
	out, err := o.compress(data)
	return len(out), err
}
