// Package container reads and writes the PNG chunk container: signature,
// length-prefixed chunks with CRC-32 trailers and the IHDR image header.
package container

import "errors"

// Signature is the eight-byte PNG file signature.
var Signature = [8]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Chunk layout constants.
const (
	ChunkHeaderSize = 8 // length + type
	ChunkCRCSize    = 4
	IHDRSize        = 13
	// MaxChunkPayload is the largest length a chunk may declare.
	MaxChunkPayload = 1<<31 - 1
)

// Chunk types the container handles itself.
const (
	TypeIHDR = "IHDR"
	TypePLTE = "PLTE"
	TypeIDAT = "IDAT"
	TypeIEND = "IEND"
	TypeTRNS = "tRNS"
)

// PNG color types (IHDR byte 9).
const (
	ColorGray      uint8 = 0
	ColorRGB       uint8 = 2
	ColorPalette   uint8 = 3
	ColorGrayAlpha uint8 = 4
	ColorRGBA      uint8 = 6
)

// Common errors.
var (
	ErrInvalidSignature = errors.New("png: invalid signature")
	ErrTruncated        = errors.New("png: truncated data")
	ErrBadCRC           = errors.New("png: chunk CRC mismatch")
	ErrInvalidChunk     = errors.New("png: invalid chunk")
	ErrInvalidHeader    = errors.New("png: invalid IHDR")
	ErrMissingChunk     = errors.New("png: missing critical chunk")
	ErrTooLarge         = errors.New("png: chunk too large")
	ErrInterlaced       = errors.New("png: scanline filters unavailable for interlaced image")
)

// colorDepths lists the bit depths allowed for each color type.
var colorDepths = map[uint8][]uint8{
	ColorGray:      {1, 2, 4, 8, 16},
	ColorRGB:       {8, 16},
	ColorPalette:   {1, 2, 4, 8},
	ColorGrayAlpha: {8, 16},
	ColorRGBA:      {8, 16},
}

// Channels returns the number of samples per pixel of a color type.
func Channels(colorType uint8) int {
	switch colorType {
	case ColorRGB:
		return 3
	case ColorGrayAlpha:
		return 2
	case ColorRGBA:
		return 4
	default:
		return 1
	}
}

// ValidDepth reports whether bitDepth is allowed for colorType.
func ValidDepth(colorType, bitDepth uint8) bool {
	for _, d := range colorDepths[colorType] {
		if d == bitDepth {
			return true
		}
	}
	return false
}
