package raster

// Reduce8 drops the low byte of every sample.
func Reduce8(img *Image) *Image {
	out := img.Clone()
	for i, v := range out.Pix {
		out.Pix[i] = (v >> 8) * 257
	}
	return out
}

// ClearTransparent sets the hidden color of every fully transparent pixel
// to black. Visible pixels are untouched.
func ClearTransparent(img *Image) *Image {
	out := img.Clone()
	p := out.Pix
	for i := 0; i < len(p); i += 4 {
		if p[i+3] == 0 {
			p[i], p[i+1], p[i+2] = 0, 0, 0
		}
	}
	return out
}

// CopyLeftTransparent gives every fully transparent pixel the color of its
// left neighbour (black in the first column), which turns transparent
// areas into horizontal runs.
func CopyLeftTransparent(img *Image) *Image {
	out := img.Clone()
	p := out.Pix
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			i := 4 * (y*out.Width + x)
			if p[i+3] != 0 {
				continue
			}
			if x == 0 {
				p[i], p[i+1], p[i+2] = 0, 0, 0
				continue
			}
			p[i], p[i+1], p[i+2] = p[i-4], p[i-3], p[i-2]
		}
	}
	return out
}

// VisibleEqual reports whether two images agree on every pixel that is not
// fully transparent, and on the transparency of every pixel.
func VisibleEqual(a, b *Image) bool {
	if a.Width != b.Width || a.Height != b.Height {
		return false
	}
	for i := 0; i < len(a.Pix); i += 4 {
		if a.Pix[i+3] != b.Pix[i+3] {
			return false
		}
		if a.Pix[i+3] == 0 {
			continue
		}
		if a.Pix[i] != b.Pix[i] || a.Pix[i+1] != b.Pix[i+1] || a.Pix[i+2] != b.Pix[i+2] {
			return false
		}
	}
	return true
}
