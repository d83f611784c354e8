package deflate

import (
	"encoding/binary"
	"hash/adler32"

	"github.com/deepteams/pngopt/internal/bitio"
)

// zlibHeader is CMF 0x78 (deflate, 32K window) and FLG 0xDA (maximum
// compression level, no dictionary, valid FCHECK).
var zlibHeader = [2]byte{0x78, 0xda}

// ZlibCompress returns data as a zlib stream (RFC 1950): header, raw DEFLATE
// data and the big-endian Adler-32 checksum of data.
func ZlibCompress(data []byte, opts *Options) ([]byte, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	w := bitio.NewWriter(len(data)/2 + 64)
	w.WriteBytes(zlibHeader[:])
	if err := compressTo(w, data, opts); err != nil {
		return nil, err
	}
	out := w.Finish()
	return binary.BigEndian.AppendUint32(out, adler32.Checksum(data)), nil
}
