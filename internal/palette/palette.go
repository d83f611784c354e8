// Package palette builds indexed-color palettes for images with at most
// 256 distinct colors. Entry order follows configurable policies so that
// similar colors land on nearby indices, which helps the scanline filters
// and the compressor downstream.
package palette

import (
	"cmp"
	"errors"
	"fmt"
	"image/color"
	"math"
	"slices"

	"github.com/lucasb-eyer/go-colorful"
)

// MaxColors is the largest palette PNG allows.
const MaxColors = 256

// Errors returned by Build.
var (
	ErrTooManyColors = errors.New("palette: more than 256 colors")
	ErrInvalidConfig = errors.New("palette: invalid configuration")
	ErrGeometry      = errors.New("palette: pixel count does not match dimensions")
)

// Entry is one palette color and the number of pixels using it.
type Entry struct {
	Color color.NRGBA
	Count int
}

// Palette is an ordered set of unique colors; a pixel index is a position
// in Entries.
type Palette struct {
	Entries []Entry
}

// Len returns the number of entries.
func (p *Palette) Len() int { return len(p.Entries) }

// PLTE returns the PLTE chunk payload.
func (p *Palette) PLTE() []byte {
	out := make([]byte, 0, 3*len(p.Entries))
	for _, e := range p.Entries {
		out = append(out, e.Color.R, e.Color.G, e.Color.B)
	}
	return out
}

// TRNS returns the tRNS chunk payload with trailing opaque entries
// trimmed, or nil when every entry is opaque.
func (p *Palette) TRNS() []byte {
	n := len(p.Entries)
	for n > 0 && p.Entries[n-1].Color.A == 0xff {
		n--
	}
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = p.Entries[i].Color.A
	}
	return out
}

// BitDepth returns the smallest PNG palette bit depth that can index
// every entry.
func (p *Palette) BitDepth() uint8 {
	switch n := len(p.Entries); {
	case n <= 2:
		return 1
	case n <= 4:
		return 2
	case n <= 16:
		return 4
	default:
		return 8
	}
}

// Key identifies the palette by its ordered colors.
func (p *Palette) Key() string {
	b := make([]byte, 0, 4*len(p.Entries))
	for _, e := range p.Entries {
		b = append(b, e.Color.R, e.Color.G, e.Color.B, e.Color.A)
	}
	return string(b)
}

func packRGBA(c color.NRGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}

// Build collects the distinct colors of pixels (width*height, row-major),
// orders them by cfg and returns the palette with one index per pixel.
func Build(pixels []color.NRGBA, width, height int, cfg Config) (*Palette, []uint8, error) {
	if !cfg.Valid() {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, cfg)
	}
	if width <= 0 || height <= 0 || len(pixels) != width*height {
		return nil, nil, fmt.Errorf("%w: %d pixels for %dx%d", ErrGeometry, len(pixels), width, height)
	}

	// Distinct colors in order of first appearance.
	first := make(map[color.NRGBA]int, MaxColors)
	var entries []Entry
	for _, c := range pixels {
		i, ok := first[c]
		if !ok {
			if len(entries) == MaxColors {
				return nil, nil, ErrTooManyColors
			}
			i = len(entries)
			first[c] = i
			entries = append(entries, Entry{Color: c})
		}
		entries[i].Count++
	}

	b := &builder{cfg: cfg, entries: entries}
	order := b.arrange(pixels, width, height, first)

	pal := &Palette{Entries: make([]Entry, len(order))}
	remap := make([]uint8, len(order))
	for newIdx, oldIdx := range order {
		pal.Entries[newIdx] = entries[oldIdx]
		remap[oldIdx] = uint8(newIdx)
	}
	index := make([]uint8, len(pixels))
	for i, c := range pixels {
		index[i] = remap[first[c]]
	}
	return pal, index, nil
}

// builder computes an entry order: a permutation of indices into entries.
type builder struct {
	cfg     Config
	entries []Entry
	labs    [][3]float64
}

// arrange sorts the entries by the transparency policy and the priority key
// in the configured direction, then runs the order's extra pass.
func (b *builder) arrange(pixels []color.NRGBA, width, height int, first map[color.NRGBA]int) []int {
	n := len(b.entries)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	keys := make([][3]float64, n)
	for i, e := range b.entries {
		keys[i] = b.priorityKey(e)
	}
	slices.SortFunc(order, func(x, y int) int {
		ex, ey := b.entries[x].Color, b.entries[y].Color
		switch b.cfg.Transparency {
		case TransparencyFirst:
			if c := cmpBool(b.transparent(y), b.transparent(x)); c != 0 {
				return c
			}
		case TransparencySort:
			if c := b.directed(cmp.Compare(ex.A, ey.A)); c != 0 {
				return c
			}
		}
		for k := range keys[x] {
			if c := b.directed(cmp.Compare(keys[x][k], keys[y][k])); c != 0 {
				return c
			}
		}
		return cmp.Compare(packRGBA(ex), packRGBA(ey))
	})
	if b.cfg.Order == OrderNone {
		return order
	}

	b.labs = make([][3]float64, n)
	for i, e := range b.entries {
		b.labs[i] = labOf(e.Color)
	}
	if b.cfg.Order == OrderGlobal {
		for _, seg := range b.groups(order) {
			b.untangle(seg)
		}
		return order
	}

	var adj [][]int
	if b.cfg.Order == OrderNeighbor {
		adj = adjacency(pixels, width, height, first, n)
	}
	// The transparent prefix chains separately so it stays in front.
	split := 0
	if b.cfg.Transparency == TransparencyFirst {
		for split < n && b.transparent(order[split]) {
			split++
		}
	}
	b.chain(order[:split], adj)
	b.chain(order[split:], adj)
	return order
}

// groups splits a sorted order into the runs the transparency policy keeps
// together: the transparent prefix with TransparencyFirst, runs of equal
// alpha with TransparencySort, and the whole order otherwise.
func (b *builder) groups(order []int) [][]int {
	same := func(x, y int) bool {
		switch b.cfg.Transparency {
		case TransparencyFirst:
			return b.transparent(x) == b.transparent(y)
		case TransparencySort:
			return b.entries[x].Color.A == b.entries[y].Color.A
		}
		return true
	}
	var out [][]int
	start := 0
	for i := 1; i <= len(order); i++ {
		if i == len(order) || !same(order[start], order[i]) {
			out = append(out, order[start:i])
			start = i
		}
	}
	return out
}

// maxUntangleSweeps bounds the passes of untangle over one sequence.
const maxUntangleSweeps = 16

// untangle shortens the color path through seq by reversing any segment
// whose reversal lowers the summed distance between neighbors (2-opt). The
// first entry stays in place. Sweeps repeat until none improves.
func (b *builder) untangle(seq []int) {
	n := len(seq)
	if n < 3 {
		return
	}
	d := func(i, j int) float64 { return b.distance(seq[i], seq[j]) }
	for sweep := 0; sweep < maxUntangleSweeps; sweep++ {
		improved := false
		for i := 1; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				before, after := d(i-1, i), d(i-1, j)
				if j+1 < n {
					before += d(j, j+1)
					after += d(i, j+1)
				}
				if after < before-1e-9 {
					slices.Reverse(seq[i : j+1])
					improved = true
				}
			}
		}
		if !improved {
			return
		}
	}
}

func (b *builder) transparent(i int) bool { return b.entries[i].Color.A == 0 }

func (b *builder) directed(c int) int {
	if b.cfg.Direction == Descending {
		return -c
	}
	return c
}

func cmpBool(x, y bool) int {
	switch {
	case x == y:
		return 0
	case x:
		return 1
	default:
		return -1
	}
}

// priorityKey returns the sort key of an entry, compared component-wise.
func (b *builder) priorityKey(e Entry) [3]float64 {
	c := e.Color
	r, g, bl := float64(c.R), float64(c.G), float64(c.B)
	switch b.cfg.Priority {
	case Popularity:
		return [3]float64{float64(e.Count)}
	case RGB:
		return [3]float64{float64(packRGBA(c))}
	case YUV:
		y := 0.299*r + 0.587*g + 0.114*bl
		u := -0.14713*r - 0.28886*g + 0.436*bl
		v := 0.615*r - 0.51499*g - 0.10001*bl
		return [3]float64{y, u, v}
	case Lab:
		return labOf(c)
	default: // MSB
		return [3]float64{float64(interleave(c))}
	}
}

// interleave spreads the bits of R, G, B and A so that the most
// significant bit of every channel comes before any lower bit.
func interleave(c color.NRGBA) uint32 {
	var v uint32
	for bit := 7; bit >= 0; bit-- {
		for _, ch := range [4]uint8{c.R, c.G, c.B, c.A} {
			v = v<<1 | uint32(ch>>uint(bit)&1)
		}
	}
	return v
}

func labOf(c color.NRGBA) [3]float64 {
	l, a, b := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Lab()
	return [3]float64{l, a, b}
}

// distance is the Lab distance plus the alpha difference on a 0..1 scale.
func (b *builder) distance(i, j int) float64 {
	p, q := b.labs[i], b.labs[j]
	d := math.Sqrt((p[0]-q[0])*(p[0]-q[0]) + (p[1]-q[1])*(p[1]-q[1]) + (p[2]-q[2])*(p[2]-q[2]))
	da := int(b.entries[i].Color.A) - int(b.entries[j].Color.A)
	return d + math.Abs(float64(da))/255
}

// chain reorders seq in place as a greedy path starting at seq[0]. Ties
// go to the candidate earlier in seq.
func (b *builder) chain(seq []int, adj [][]int) {
	for pos := 1; pos < len(seq); pos++ {
		cur := seq[pos-1]
		best := pos
		switch b.cfg.Order {
		case OrderNearest:
			best = b.closest(seq, pos, cur)
		case OrderWeight:
			bestScore := -1.0
			for k := pos; k < len(seq); k++ {
				s := float64(b.entries[seq[k]].Count) / (1 + b.distance(cur, seq[k]))
				if s > bestScore {
					best, bestScore = k, s
				}
			}
		case OrderNeighbor:
			bestCount := 0
			for k := pos; k < len(seq); k++ {
				if c := adj[cur][seq[k]]; c > bestCount {
					best, bestCount = k, c
				}
			}
			if bestCount == 0 {
				best = b.closest(seq, pos, cur)
			}
		}
		// Shift rather than swap so the remaining candidates keep their
		// sorted order for tie-breaking.
		v := seq[best]
		copy(seq[pos+1:best+1], seq[pos:best])
		seq[pos] = v
	}
}

func (b *builder) closest(seq []int, pos, cur int) int {
	best, bestDist := pos, math.Inf(1)
	for k := pos; k < len(seq); k++ {
		if d := b.distance(cur, seq[k]); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// adjacency counts horizontally and vertically adjacent pixel pairs of
// differing colors, symmetric in the two entries.
func adjacency(pixels []color.NRGBA, width, height int, first map[color.NRGBA]int, n int) [][]int {
	adj := make([][]int, n)
	for i := range adj {
		adj[i] = make([]int, n)
	}
	idx := make([]int, len(pixels))
	for i, c := range pixels {
		idx[i] = first[c]
	}
	add := func(a, b int) {
		if a != b {
			adj[a][b]++
			adj[b][a]++
		}
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if x+1 < width {
				add(idx[i], idx[i+1])
			}
			if y+1 < height {
				add(idx[i], idx[i+width])
			}
		}
	}
	return adj
}
