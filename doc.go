// Package pngopt losslessly recompresses PNG images into the smallest byte
// stream it can find.
//
// Optimize tries every color representation that holds the decoded pixels
// exactly (reduced gray depths, color-keyed transparency, palettes in many
// entry orders), chooses per-scanline filters with a configurable set of
// strategies up to a genetic search, and compresses each candidate with a
// near-optimal DEFLATE encoder. The smallest result is written as a
// non-interlaced PNG.
//
// Basic usage:
//
//	res, err := pngopt.Optimize(data, nil)
//	if err != nil {
//		return err
//	}
//	if res.Improved() {
//		os.WriteFile("out.png", res.PNG, 0o644)
//	}
//
// Lossy behavior is opt-in: Options.LossyTransparent may rewrite the hidden
// color of fully transparent pixels and Options.Lossy8Bit may drop the low
// byte of 16-bit samples.
package pngopt
