package pngopt

import (
	"fmt"

	"github.com/deepteams/pngopt/internal/container"
	"github.com/deepteams/pngopt/internal/filter"
	"github.com/deepteams/pngopt/internal/palette"
	"github.com/deepteams/pngopt/internal/raster"
)

// encoding is one way to store the pixels: a color mode, its palette when
// indexed, and the unfiltered scanlines it produces.
type encoding struct {
	mode    raster.Mode
	palette *palette.Palette
	// config is the palette policy that built palette; nil when the
	// palette comes from the input or the mode is not indexed.
	config  *palette.Config
	variant string
	// sameLayout is set when the pixel layout equals the input's, so
	// color-dependent ancillary chunks stay valid.
	sameLayout bool
	rows       filter.Image
}

func (e *encoding) plte() []byte {
	if e.palette == nil {
		return nil
	}
	return e.palette.PLTE()
}

func (e *encoding) trns() []byte {
	if e.palette != nil {
		return e.palette.TRNS()
	}
	return e.mode.TRNS()
}

// overhead is the size of the PLTE and tRNS chunks this encoding adds.
func (e *encoding) overhead() int {
	n := 0
	for _, p := range [][]byte{e.plte(), e.trns()} {
		if p != nil {
			n += container.ChunkHeaderSize + container.ChunkCRCSize + len(p)
		}
	}
	return n
}

func (e *encoding) String() string {
	s := e.mode.String()
	if e.config != nil {
		s += " " + e.config.String()
	}
	if e.variant != "" {
		s += " " + e.variant
	}
	return s
}

func newEncoding(mode raster.Mode, packed []byte, width, height int) *encoding {
	return &encoding{
		mode: mode,
		rows: filter.Image{Data: packed, Stride: mode.Stride(width), Height: height, BPP: mode.FilterBPP()},
	}
}

// variant is a version of the source pixels the search may encode.
type variant struct {
	name string
	img  *raster.Image
}

// variants applies the lossy options. Without them the source is the only
// variant.
func (o *Options) variants(src *raster.Image) []variant {
	base := src
	if o.Lossy8Bit && !o.KeepColorType {
		base = raster.Reduce8(src)
	}
	switch o.LossyTransparent {
	case 1:
		return []variant{{"cleared", raster.ClearTransparent(base)}}
	case 2:
		return []variant{
			{"cleared", raster.ClearTransparent(base)},
			{"copy-left", raster.CopyLeftTransparent(base)},
		}
	}
	return []variant{{"", base}}
}

// encodings enumerates every representation to try, in tie-break order:
// variants, then palette configurations, then full color.
func (o *Options) encodings(src *raster.Image, hdr container.Header, trns []byte) ([]*encoding, error) {
	if o.KeepColorType {
		return o.keptEncodings(src, hdr, trns)
	}
	var out []*encoding
	for _, v := range o.variants(src) {
		encs, err := o.reducedEncodings(v, hdr)
		if err != nil {
			return nil, err
		}
		out = append(out, encs...)
	}
	return out, nil
}

func (o *Options) reducedEncodings(v variant, hdr container.Header) ([]*encoding, error) {
	img := v.img
	w, h := img.Width, img.Height
	a := raster.Analyze(img)
	full := a.FullColor()

	var out []*encoding
	var paletteDepth uint8
	configs := o.paletteConfigs()
	if a.PaletteViable() && len(configs) > 0 {
		pixels := img.NRGBA()
		seen := make(map[string]bool)
		for _, cfg := range configs {
			pal, index, err := palette.Build(pixels, w, h, cfg)
			if err != nil {
				return nil, classify(err)
			}
			key := pal.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			mode := raster.Mode{ColorType: container.ColorPalette, BitDepth: pal.BitDepth()}
			packed, err := raster.PackIndices(index, w, h, mode.BitDepth)
			if err != nil {
				return nil, classify(err)
			}
			e := newEncoding(mode, packed, w, h)
			e.palette, e.config, e.variant = pal, &cfg, v.name
			out = append(out, e)
		}
		paletteDepth = raster.PaletteDepth(a.Colors)
	}

	grayFits := full.ColorType == container.ColorGray && full.BitDepth <= paletteDepth
	if paletteDepth == 0 || full.RawSize(w, h) > o.TryPalettelessSize || grayFits {
		packed, err := raster.Pack(img, full)
		if err != nil {
			return nil, classify(err)
		}
		e := newEncoding(full, packed, w, h)
		e.variant = v.name
		e.sameLayout = full.ColorType == hdr.ColorType && full.BitDepth == hdr.BitDepth
		out = append(out, e)
	}
	return out, nil
}

// keptEncodings stores the pixels in the input's color type and bit depth.
func (o *Options) keptEncodings(src *raster.Image, hdr container.Header, trns []byte) ([]*encoding, error) {
	w, h := src.Width, src.Height
	if hdr.ColorType == container.ColorPalette {
		if src.Index == nil {
			return nil, fmt.Errorf("%w: palette image decoded without indices", ErrUnsupportedColor)
		}
		pal := &palette.Palette{Entries: make([]palette.Entry, len(src.Palette))}
		for i, c := range src.Palette {
			pal.Entries[i].Color = c
		}
		for _, idx := range src.Index {
			pal.Entries[idx].Count++
		}
		mode := raster.Mode{ColorType: container.ColorPalette, BitDepth: hdr.BitDepth}
		packed, err := raster.PackIndices(src.Index, w, h, hdr.BitDepth)
		if err != nil {
			return nil, classify(err)
		}
		e := newEncoding(mode, packed, w, h)
		e.palette, e.sameLayout = pal, true
		return []*encoding{e}, nil
	}

	mode := raster.Mode{ColorType: hdr.ColorType, BitDepth: hdr.BitDepth}
	mode.Key, mode.HasKey = raster.KeyFromTRNS(hdr.ColorType, trns)
	var out []*encoding
	for _, v := range o.variants(src) {
		packed, err := raster.Pack(v.img, mode)
		if err != nil {
			return nil, classify(err)
		}
		e := newEncoding(mode, packed, w, h)
		e.variant, e.sameLayout = v.name, true
		out = append(out, e)
	}
	return out, nil
}
