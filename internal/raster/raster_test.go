package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/klauspost/compress/zlib"

	"github.com/deepteams/pngopt/internal/container"
)

// encodePNG wraps unfiltered scanlines in a PNG with filter type 0 rows.
func encodePNG(t *testing.T, m Mode, w, h int, raw, plte, trns []byte) []byte {
	t.Helper()
	stride := m.Stride(w)
	if len(raw) != stride*h {
		t.Fatalf("raw = %d bytes, want %d", len(raw), stride*h)
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	for y := 0; y < h; y++ {
		zw.Write([]byte{0})
		zw.Write(raw[y*stride : (y+1)*stride])
	}
	zw.Close()
	return container.Encode(&container.Image{
		Header: container.Header{Width: w, Height: h, BitDepth: m.BitDepth, ColorType: m.ColorType},
		PLTE:   plte,
		TRNS:   trns,
		IDAT:   buf.Bytes(),
	})
}

func roundTrip(t *testing.T, img *Image, m Mode) *Image {
	t.Helper()
	raw, err := Pack(img, m)
	if err != nil {
		t.Fatalf("Pack(%v): %v", m, err)
	}
	got, err := Decode(encodePNG(t, m, img.Width, img.Height, raw, nil, m.TRNS()))
	if err != nil {
		t.Fatalf("Decode(%v): %v", m, err)
	}
	return got
}

func grayImage(w, h int, level func(x, y int) uint8) *Image {
	img := New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint16(level(x, y)) * 257
			i := 4 * (y*w + x)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = v, v, v
		}
	}
	return img
}

func TestFromImage_NRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(1, 0, color.NRGBA{10, 20, 30, 40})
	img, err := FromImage(src)
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, a := img.At(1, 0)
	if r != 10*257 || g != 20*257 || b != 30*257 || a != 40*257 {
		t.Fatalf("At = %d %d %d %d", r, g, b, a)
	}
}

func TestFromImage_Paletted(t *testing.T) {
	pal := color.Palette{color.NRGBA{1, 2, 3, 0}, color.NRGBA{200, 100, 50, 255}}
	src := image.NewPaletted(image.Rect(0, 0, 3, 1), pal)
	src.SetColorIndex(2, 0, 1)
	img, err := FromImage(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Palette) != 2 || img.Palette[0] != (color.NRGBA{1, 2, 3, 0}) {
		t.Fatalf("palette = %v", img.Palette)
	}
	if img.Index[2] != 1 || img.Index[0] != 0 {
		t.Fatalf("index = %v", img.Index)
	}
	// Hidden color of a transparent entry survives.
	if r, _, _, a := img.At(0, 0); r != 257 || a != 0 {
		t.Fatalf("At(0,0) = %d alpha %d", r, a)
	}
}

func TestAnalyze_GrayBits(t *testing.T) {
	cases := []struct {
		levels []uint8
		want   uint8
	}{
		{[]uint8{0, 255}, 1},
		{[]uint8{0, 85, 170}, 2},
		{[]uint8{17, 34, 255}, 4},
		{[]uint8{0, 1}, 8},
	}
	for _, c := range cases {
		img := grayImage(len(c.levels), 1, func(x, _ int) uint8 { return c.levels[x] })
		a := Analyze(img)
		if !a.Gray || a.Needs16 || a.Alpha != AlphaOpaque {
			t.Fatalf("levels %v: analysis %+v", c.levels, a)
		}
		if a.GrayBits != c.want {
			t.Errorf("levels %v: GrayBits = %d, want %d", c.levels, a.GrayBits, c.want)
		}
		if m := a.FullColor(); m.ColorType != container.ColorGray || m.BitDepth != c.want {
			t.Errorf("levels %v: FullColor = %v", c.levels, m)
		}
	}
}

func TestAnalyze_Alpha(t *testing.T) {
	img := New(3, 1)
	img.Pix[0] = 0xffff   // red
	img.Pix[4+3] = 0      // transparent black
	img.Pix[8+1] = 0xffff // green
	a := Analyze(img)
	if a.Alpha != AlphaKey || a.Key != [3]uint16{} {
		t.Fatalf("analysis = %+v, want black key", a)
	}
	if m := a.FullColor(); m.ColorType != container.ColorRGB || !m.HasKey {
		t.Fatalf("FullColor = %v", m)
	}

	// The third pixel is opaque black, so black cannot be the key.
	img.Pix[8], img.Pix[9], img.Pix[10] = 0, 0, 0
	if a := Analyze(img); a.Alpha != AlphaFull {
		t.Fatalf("key clashes with opaque pixel: %+v", a)
	}

	img.Pix[4+3] = 0x8080
	if a := Analyze(img); a.Alpha != AlphaFull {
		t.Fatalf("partial alpha: %+v", a)
	}
}

func TestAnalyze_Needs16(t *testing.T) {
	img := New(1, 1)
	img.Pix[0] = 0x1234
	a := Analyze(img)
	if !a.Needs16 || a.PaletteViable() {
		t.Fatalf("analysis = %+v", a)
	}
	if m := a.FullColor(); m.BitDepth != 16 || m.ColorType != container.ColorRGB {
		t.Fatalf("FullColor = %v", m)
	}
	if !Analyze(Reduce8(img)).PaletteViable() {
		t.Fatal("reduced image should fit a palette")
	}
}

func TestAnalyze_ColorsSaturate(t *testing.T) {
	img := New(300, 1)
	for x := 0; x < 300; x++ {
		img.Pix[4*x] = uint16(x%256) * 257
		img.Pix[4*x+1] = uint16(x/256) * 257
	}
	if a := Analyze(img); a.Colors != MaxPaletteColors+1 || a.PaletteViable() {
		t.Fatalf("colors = %d", a.Colors)
	}
}

func TestPack_RoundTrip(t *testing.T) {
	gray := grayImage(13, 5, func(x, y int) uint8 { return []uint8{0, 255}[(x+y)%2] })
	color16 := New(7, 3)
	for i := range color16.Pix {
		if i%4 != 3 {
			color16.Pix[i] = uint16(i * 4099)
		}
	}
	rgba := New(9, 4)
	for i := range rgba.Pix {
		rgba.Pix[i] = uint16(i*37%256) * 257
	}
	keyed := New(5, 2)
	for x := 0; x < 10; x++ {
		keyed.Pix[4*x] = 0xffff
	}
	keyed.Pix[4*6], keyed.Pix[4*6+3] = 0, 0

	cases := []struct {
		name string
		img  *Image
	}{
		{"gray1", gray},
		{"gray2", grayImage(6, 3, func(x, y int) uint8 { return uint8(85 * ((x + y) % 4)) })},
		{"gray4", grayImage(5, 2, func(x, _ int) uint8 { return uint8(17 * x) })},
		{"gray8", grayImage(4, 4, func(x, y int) uint8 { return uint8(x*y + 3) })},
		{"rgb16", color16},
		{"rgba8", rgba},
		{"rgb-key", keyed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := Analyze(c.img).FullColor()
			if got := roundTrip(t, c.img, m); !got.Equal(c.img) {
				t.Fatalf("mode %v does not reproduce the pixels", m)
			}
		})
	}
}

func TestPackIndices(t *testing.T) {
	index := []uint8{0, 1, 1, 0, 1, 0, 0, 1, 1}
	out, err := PackIndices(index, 9, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte{0b01101001, 0b10000000}) {
		t.Fatalf("packed = %08b", out)
	}
	if _, err := PackIndices([]uint8{4}, 1, 1, 2); err == nil {
		t.Fatal("index wider than depth accepted")
	}

	// 3 colors at depth 2 decode back to the same image.
	plte := []byte{255, 0, 0, 0, 255, 0, 0, 0, 255}
	index = []uint8{0, 1, 2, 2, 1, 0}
	raw, err := PackIndices(index, 3, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	m := Mode{ColorType: container.ColorPalette, BitDepth: 2}
	dec, err := png.Decode(bytes.NewReader(encodePNG(t, m, 3, 2, raw, plte, nil)))
	if err != nil {
		t.Fatal(err)
	}
	p := dec.(*image.Paletted)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			if p.ColorIndexAt(x, y) != index[y*3+x] {
				t.Fatalf("index(%d,%d) = %d", x, y, p.ColorIndexAt(x, y))
			}
		}
	}
}

func TestTransparentTransforms(t *testing.T) {
	img := New(3, 1)
	for i := range img.Pix {
		img.Pix[i] = uint16(1000 * (i + 1))
	}
	img.Pix[4+3] = 0
	img.Pix[8+3] = 0

	cleared := ClearTransparent(img)
	if !VisibleEqual(img, cleared) {
		t.Fatal("ClearTransparent changed a visible pixel")
	}
	if r, g, b, _ := cleared.At(1, 0); r|g|b != 0 {
		t.Fatalf("hidden color = %d %d %d", r, g, b)
	}

	copied := CopyLeftTransparent(img)
	if !VisibleEqual(img, copied) {
		t.Fatal("CopyLeftTransparent changed a visible pixel")
	}
	r0, g0, b0, _ := img.At(0, 0)
	for x := 1; x < 3; x++ {
		if r, g, b, _ := copied.At(x, 0); r != r0 || g != g0 || b != b0 {
			t.Fatalf("pixel %d = %d %d %d, want left color", x, r, g, b)
		}
	}
}

func TestMode_Geometry(t *testing.T) {
	m := Mode{ColorType: container.ColorGray, BitDepth: 2}
	if m.Stride(5) != 2 || m.FilterBPP() != 1 || m.RawSize(5, 3) != 9 {
		t.Fatalf("gray2: stride %d bpp %d raw %d", m.Stride(5), m.FilterBPP(), m.RawSize(5, 3))
	}
	m = Mode{ColorType: container.ColorRGBA, BitDepth: 16}
	if m.Stride(2) != 16 || m.FilterBPP() != 8 {
		t.Fatalf("rgba16: stride %d bpp %d", m.Stride(2), m.FilterBPP())
	}
	key, ok := KeyFromTRNS(container.ColorRGB, []byte{0, 1, 0, 2, 0, 3})
	if !ok || key != [3]uint16{1, 2, 3} {
		t.Fatalf("key = %v %v", key, ok)
	}
	if _, ok := KeyFromTRNS(container.ColorRGBA, []byte{0, 1}); ok {
		t.Fatal("key parsed for RGBA")
	}
}
