package pngopt

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepteams/pngopt/internal/container"
	"github.com/deepteams/pngopt/internal/raster"
)

func encodeStd(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// rawPNG builds a PNG from unfiltered scanlines, every row with filter 0.
func rawPNG(t testing.TB, hdr container.Header, raw []byte, kept container.Kept) []byte {
	t.Helper()
	stride := hdr.Stride()
	require.Len(t, raw, stride*hdr.Height)
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	for y := 0; y < hdr.Height; y++ {
		_, err := zw.Write(append([]byte{0}, raw[y*stride:(y+1)*stride]...))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return container.Encode(&container.Image{Header: hdr, IDAT: buf.Bytes(), Kept: kept})
}

// quickOptions keeps the search small enough for unit tests.
func quickOptions() *Options {
	o := DefaultOptions()
	o.NumIterations = 2
	o.NumIterationsLarge = 1
	o.NumStagnations = 0
	o.PalettePriorities = []PalettePriority{PriorityPopularity, PriorityLab}
	o.PaletteTransparencies = []PaletteTransparency{TransparencyIgnore, TransparencyFirst}
	o.PaletteOrders = []PaletteOrder{OrderNone, OrderGlobal, OrderNeighbor}
	return o
}

func decodeRaster(t testing.TB, data []byte) *raster.Image {
	t.Helper()
	img, err := raster.Decode(data)
	require.NoError(t, err)
	return img
}

func chunkTypes(t testing.TB, data []byte) []string {
	t.Helper()
	f, err := container.Parse(data)
	require.NoError(t, err)
	var out []string
	for _, c := range f.Chunks {
		out = append(out, c.Type)
	}
	return out
}

var (
	red    = color.NRGBA{255, 0, 0, 255}
	blue   = color.NRGBA{0, 0, 255, 255}
	hidden = color.NRGBA{0, 0, 0, 0}
)

func TestOptimize_TwoColorPalette(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, red)
	img.SetNRGBA(1, 0, blue)
	img.SetNRGBA(0, 1, blue)
	img.SetNRGBA(1, 1, red)

	opts := DefaultOptions()
	opts.UseZopfli = false
	res, err := Optimize(encodeStd(t, img), opts)
	require.NoError(t, err)

	assert.Equal(t, container.ColorPalette, res.ColorType)
	assert.Equal(t, uint8(1), res.BitDepth)
	assert.NotNil(t, res.Palette)
	f, err := container.Parse(res.PNG)
	require.NoError(t, err)
	plte := f.Chunk(container.TypePLTE)
	require.NotNil(t, plte)
	assert.Len(t, plte.Data, 6, "two palette entries")
	assert.Nil(t, f.Chunk(container.TypeTRNS))

	// Stored zlib of the input's truecolor rows: header, one stored block,
	// data and the Adler-32 trailer.
	raw := 2 * (1 + 2*3)
	stored := 2 + 5 + raw + 4
	assert.Less(t, res.IDATSize, stored)

	assert.True(t, decodeRaster(t, res.PNG).Equal(decodeRaster(t, encodeStd(t, img))))
}

func TestOptimize_AllZeroGrayStrategiesAgree(t *testing.T) {
	hdr := container.Header{Width: 100, Height: 100, BitDepth: 8, ColorType: container.ColorGray}
	in := rawPNG(t, hdr, make([]byte, 100*100), container.Kept{})

	strategies := []FilterStrategy{
		StrategyZero, StrategyMinSum, StrategyDistinctBytes, StrategyDistinctBigrams,
		StrategyEntropy, StrategyBruteForce, StrategyIncremental, StrategyPredefined,
		StrategyGeneticAlgorithm,
	}
	size := -1
	for _, s := range strategies {
		opts := quickOptions()
		opts.AutoFilterStrategy = false
		opts.FilterStrategies = []FilterStrategy{s}
		opts.GAMaxEvaluations = 40
		res, err := Optimize(in, opts)
		require.NoError(t, err, s.String())

		assert.Equal(t, container.ColorGray, res.ColorType, s.String())
		assert.Equal(t, uint8(1), res.BitDepth, s.String())
		for y, f := range res.Filters {
			require.Zero(t, f, "%v: row %d", s, y)
		}
		if size < 0 {
			size = len(res.PNG)
		}
		assert.Equal(t, size, len(res.PNG), s.String())
	}

	// Fixed filters 1-4 still write their filter byte on every row, which
	// costs a few bytes over the all-zero rows above.
	for k, s := range []FilterStrategy{StrategyOne, StrategyTwo, StrategyThree, StrategyFour} {
		opts := quickOptions()
		opts.AutoFilterStrategy = false
		opts.FilterStrategies = []FilterStrategy{s}
		res, err := Optimize(in, opts)
		require.NoError(t, err, s.String())
		for y, f := range res.Filters {
			require.Equal(t, uint8(k+1), f, "%v: row %d", s, y)
		}
		assert.GreaterOrEqual(t, len(res.PNG), size, s.String())
	}
}

func transparentImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			c := color.NRGBA{uint8(x * 30), uint8(y * 40), 90, 255}
			if (x+y)%3 == 0 {
				// Hidden colors vary from pixel to pixel.
				c = color.NRGBA{uint8(x * 17), uint8(y * 23), uint8(x * y), 0}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestOptimize_LosslessKeepsHiddenColors(t *testing.T) {
	in := encodeStd(t, transparentImage())
	res, err := Optimize(in, quickOptions())
	require.NoError(t, err)
	assert.True(t, decodeRaster(t, res.PNG).Equal(decodeRaster(t, in)))
}

func TestOptimize_LossyTransparent(t *testing.T) {
	in := encodeStd(t, transparentImage())
	src := decodeRaster(t, in)

	opts := quickOptions()
	opts.LossyTransparent = 1
	res, err := Optimize(in, opts)
	require.NoError(t, err)
	got := decodeRaster(t, res.PNG)
	require.True(t, raster.VisibleEqual(src, got), "visible pixels changed")
	for i := 0; i < len(got.Pix); i += 4 {
		if got.Pix[i+3] == 0 {
			assert.Equal(t, []uint16{0, 0, 0}, got.Pix[i:i+3], "pixel %d", i/4)
		}
	}

	opts.LossyTransparent = 2
	res2, err := Optimize(in, opts)
	require.NoError(t, err)
	assert.True(t, raster.VisibleEqual(src, decodeRaster(t, res2.PNG)))
	assert.LessOrEqual(t, len(res2.PNG), len(res.PNG), "mode 2 also tries the mode 1 variant")
}

func TestOptimize_RoundTrip(t *testing.T) {
	gradient := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	gray := image.NewGray(image.Rect(0, 0, 16, 16))
	deep := image.NewNRGBA64(image.Rect(0, 0, 6, 5))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			gradient.SetNRGBA(x, y, color.NRGBA{uint8(x * 10), uint8(y * 15), uint8((x + y) * 5), 255 - uint8(x*3)})
		}
		for x := 0; x < 16; x++ {
			gray.SetGray(x, y, color.Gray{uint8(x*16 + y)})
		}
	}
	for y := 0; y < 5; y++ {
		for x := 0; x < 6; x++ {
			deep.SetNRGBA64(x, y, color.NRGBA64{uint16(x*9000 + y), uint16(y * 7001), 0x1234, 0xffff})
		}
	}
	pal := image.NewPaletted(image.Rect(0, 0, 9, 7), color.Palette{
		color.NRGBA{0, 0, 0, 255}, color.NRGBA{200, 10, 10, 255},
		color.NRGBA{10, 200, 10, 128}, color.NRGBA{10, 10, 200, 255}, color.NRGBA{90, 90, 90, 0},
	})
	for i := range pal.Pix {
		pal.Pix[i] = uint8(i*7%5) % 5
	}

	cases := []struct {
		name      string
		img       image.Image
		colorType uint8
		depth     uint8
	}{
		{"rgba", gradient, container.ColorRGBA, 8},
		{"gray", gray, 0, 0},
		{"rgb16", deep, container.ColorRGB, 16},
		{"paletted", pal, container.ColorPalette, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := encodeStd(t, tc.img)
			res, err := Optimize(in, quickOptions())
			require.NoError(t, err)
			assert.True(t, decodeRaster(t, res.PNG).Equal(decodeRaster(t, in)), "pixels differ")
			if tc.colorType != 0 {
				assert.Equal(t, tc.colorType, res.ColorType)
			}
			if tc.depth != 0 {
				assert.Equal(t, tc.depth, res.BitDepth)
			}
			f, err := container.Parse(res.PNG)
			require.NoError(t, err)
			assert.Zero(t, f.Header.Interlace)
			filters, err := f.FilterBytes()
			require.NoError(t, err)
			assert.Equal(t, res.Filters, filters)
		})
	}
}

func TestOptimize_SixteenBitReduction(t *testing.T) {
	exact := image.NewNRGBA64(image.Rect(0, 0, 20, 20))
	lossy := image.NewNRGBA64(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			v := uint16(x*12+y) * 257
			exact.SetNRGBA64(x, y, color.NRGBA64{v, 0xffff - v, uint16(y*10) * 257, 0xffff})
			lossy.SetNRGBA64(x, y, color.NRGBA64{uint16(x*3000 + y*7), uint16(y * 3001), 0x8001, 0xffff})
		}
	}

	in := encodeStd(t, exact)
	res, err := Optimize(in, quickOptions())
	require.NoError(t, err)
	assert.LessOrEqual(t, res.BitDepth, uint8(8), "equal high and low bytes reduce without loss")
	assert.True(t, decodeRaster(t, res.PNG).Equal(decodeRaster(t, in)))

	in = encodeStd(t, lossy)
	res, err = Optimize(in, quickOptions())
	require.NoError(t, err)
	assert.Equal(t, uint8(16), res.BitDepth)

	opts := quickOptions()
	opts.Lossy8Bit = true
	res, err = Optimize(in, opts)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.BitDepth, uint8(8))
	assert.True(t, decodeRaster(t, res.PNG).Equal(raster.Reduce8(decodeRaster(t, in))))
}

func TestOptimize_ColorKey(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := color.NRGBA{uint8(100 + x), uint8(y * 20), 40, 255}
			if x == y {
				c = hidden
			}
			img.SetNRGBA(x, y, c)
		}
	}
	in := encodeStd(t, img)
	opts := quickOptions()
	opts.PalettePriorities = nil
	res, err := Optimize(in, opts)
	require.NoError(t, err)

	assert.Equal(t, container.ColorRGB, res.ColorType)
	assert.Equal(t, "rgb8+key", res.Mode)
	f, err := container.Parse(res.PNG)
	require.NoError(t, err)
	trns := f.Chunk(container.TypeTRNS)
	require.NotNil(t, trns)
	assert.Equal(t, make([]byte, 6), trns.Data)
	assert.True(t, decodeRaster(t, res.PNG).Equal(decodeRaster(t, in)))
}

func TestOptimize_KeepColorType(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 16; i++ {
		img.SetNRGBA(i%4, i/4, red)
	}
	img.SetNRGBA(2, 2, color.NRGBA{255, 0, 0, 100})
	in := encodeStd(t, img)

	opts := quickOptions()
	opts.KeepColorType = true
	res, err := Optimize(in, opts)
	require.NoError(t, err)
	assert.Equal(t, container.ColorRGBA, res.ColorType)
	assert.Equal(t, uint8(8), res.BitDepth)
	assert.Nil(t, res.Palette)
	assert.True(t, decodeRaster(t, res.PNG).Equal(decodeRaster(t, in)))

	pal := image.NewPaletted(image.Rect(0, 0, 5, 3), color.Palette{blue, red, color.NRGBA{1, 2, 3, 4}})
	for i := range pal.Pix {
		pal.Pix[i] = uint8(i % 3)
	}
	in = encodeStd(t, pal)
	res, err = Optimize(in, opts)
	require.NoError(t, err)
	assert.Equal(t, container.ColorPalette, res.ColorType)
	src, err := container.Parse(in)
	require.NoError(t, err)
	out, err := container.Parse(res.PNG)
	require.NoError(t, err)
	assert.Equal(t, src.Header.BitDepth, out.Header.BitDepth)
	assert.Equal(t, src.Chunk(container.TypePLTE).Data, out.Chunk(container.TypePLTE).Data)
	assert.True(t, decodeRaster(t, res.PNG).Equal(decodeRaster(t, in)))
}

func TestOptimize_KeepChunks(t *testing.T) {
	hdr := container.Header{Width: 4, Height: 2, BitDepth: 8, ColorType: container.ColorRGB}
	raw := bytes.Repeat([]byte{255, 0, 0, 0, 0, 255}, 4)
	in := rawPNG(t, hdr, raw, container.Kept{
		BeforePLTE: []container.Chunk{{Type: "tEXt", Data: []byte("Title\x00two colors")}},
		BeforeIDAT: []container.Chunk{{Type: "bKGD", Data: []byte{0, 1, 0, 2, 0, 3}}},
		AfterIDAT:  []container.Chunk{{Type: "tIME", Data: []byte{7, 234, 10, 17, 12, 0, 0}}},
	})

	opts := quickOptions()
	opts.KeepChunks = []string{"tEXt", "bKGD", "tIME"}
	res, err := Optimize(in, opts)
	require.NoError(t, err)
	require.Equal(t, container.ColorPalette, res.ColorType)
	// The background color is laid out for RGB and cannot follow a palette.
	assert.Equal(t, []string{"IHDR", "tEXt", "PLTE", "IDAT", "tIME", "IEND"}, chunkTypes(t, res.PNG))

	opts.KeepColorType = true
	res, err = Optimize(in, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"IHDR", "tEXt", "bKGD", "IDAT", "tIME", "IEND"}, chunkTypes(t, res.PNG))

	opts.KeepChunks = nil
	res, err = Optimize(in, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"IHDR", "IDAT", "IEND"}, chunkTypes(t, res.PNG))
}

func TestOptimize_Deterministic(t *testing.T) {
	in := encodeStd(t, transparentImage())
	opts := quickOptions()
	opts.FilterStrategies = append(opts.FilterStrategies, StrategyGeneticAlgorithm, StrategyIncremental)
	opts.GAMaxEvaluations = 30

	a, err := Optimize(in, opts)
	require.NoError(t, err)
	b, err := Optimize(in, opts)
	require.NoError(t, err)
	assert.Equal(t, a.PNG, b.PNG)

	opts.Workers = 4
	c, err := Optimize(in, opts)
	require.NoError(t, err)
	assert.Equal(t, a.PNG, c.PNG, "parallel output differs")
	assert.Equal(t, a.Candidates, c.Candidates)
}

func TestOptimize_WorkersWithoutAuto(t *testing.T) {
	in := encodeStd(t, transparentImage())
	opts := quickOptions()
	opts.UseZopfli = false
	opts.AutoFilterStrategy = false

	seq, err := Optimize(in, opts)
	require.NoError(t, err)
	opts.Workers = 3
	par, err := Optimize(in, opts)
	require.NoError(t, err)
	assert.Equal(t, seq.PNG, par.PNG)
	assert.Equal(t, seq.Strategy, par.Strategy)
}

func TestOptimize_Errors(t *testing.T) {
	valid := encodeStd(t, transparentImage())

	_, err := Optimize([]byte("not a png"), nil)
	assert.ErrorIs(t, err, ErrMalformedInput)

	corrupt := append([]byte(nil), valid...)
	corrupt[len(container.Signature)+container.ChunkHeaderSize] ^= 0xff
	_, err = Optimize(corrupt, nil)
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.ErrorIs(t, err, container.ErrBadCRC)

	_, err = Optimize(valid[:len(valid)-20], nil)
	assert.ErrorIs(t, err, ErrMalformedInput)

	opts := quickOptions()
	opts.GAMutationProbability = 1.5
	_, err = Optimize(valid, opts)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	opts = quickOptions()
	opts.FilterStrategies = []FilterStrategy{StrategyGeneticAlgorithm}
	opts.GAMaxEvaluations, opts.GAStagnateEvaluations = 0, 0
	_, err = Optimize(valid, opts)
	assert.ErrorIs(t, err, ErrResourceExhausted)

	opts = quickOptions()
	opts.NumIterations = 0
	_, err = Optimize(valid, opts)
	assert.ErrorIs(t, err, ErrResourceExhausted)

	opts.UseZopfli = false
	_, err = Optimize(valid, opts)
	assert.NoError(t, err, "iterations only matter for zopfli")
}

func TestOptimize_Context(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := OptimizeContext(ctx, encodeStd(t, transparentImage()), quickOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptimize_Logging(t *testing.T) {
	var logs bytes.Buffer
	opts := quickOptions()
	opts.UseZopfli = false
	opts.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	res, err := Optimize(encodeStd(t, transparentImage()), opts)
	require.NoError(t, err)

	out := logs.String()
	assert.Equal(t, res.Candidates, strings.Count(out, "msg=candidate "))
	assert.Contains(t, out, "msg=optimized")
	assert.Contains(t, out, "mode="+res.Mode)
}

func TestResult_Improved(t *testing.T) {
	assert.True(t, (&Result{PNG: make([]byte, 10), InputSize: 11}).Improved())
	assert.False(t, (&Result{PNG: make([]byte, 11), InputSize: 11}).Improved())
}

func BenchmarkOptimize(b *testing.B) {
	in := encodeStd(b, transparentImage())
	opts := quickOptions()
	b.ReportAllocs()
	b.SetBytes(int64(len(in)))
	for i := 0; i < b.N; i++ {
		if _, err := Optimize(in, opts); err != nil {
			b.Fatal(err)
		}
	}
}
