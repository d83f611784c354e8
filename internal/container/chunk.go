package container

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Chunk is one PNG chunk with its four-letter type and payload.
type Chunk struct {
	Type string
	Data []byte
}

// Critical reports whether the chunk type is critical (uppercase first letter).
func (c Chunk) Critical() bool {
	return len(c.Type) == 4 && c.Type[0]&0x20 == 0
}

// validType reports whether t consists of four ASCII letters.
func validType(t []byte) bool {
	for _, c := range t {
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}

// ReadChunk reads the chunk at the start of data and verifies its CRC.
// It returns the chunk and the number of bytes consumed.
func ReadChunk(data []byte) (Chunk, int, error) {
	if len(data) < ChunkHeaderSize {
		return Chunk{}, 0, ErrTruncated
	}
	length := binary.BigEndian.Uint32(data[0:4])
	if length > MaxChunkPayload {
		return Chunk{}, 0, ErrTooLarge
	}
	typ := data[4:8]
	if !validType(typ) {
		return Chunk{}, 0, fmt.Errorf("%w: type %q", ErrInvalidChunk, typ)
	}
	total := ChunkHeaderSize + int(length) + ChunkCRCSize
	if total > len(data) {
		return Chunk{}, 0, fmt.Errorf("%w: chunk %s needs %d bytes, have %d", ErrTruncated, typ, total, len(data))
	}
	payload := data[ChunkHeaderSize : ChunkHeaderSize+int(length)]
	want := binary.BigEndian.Uint32(data[total-ChunkCRCSize : total])
	if got := crc32.ChecksumIEEE(data[4 : ChunkHeaderSize+int(length)]); got != want {
		return Chunk{}, 0, fmt.Errorf("%w: chunk %s", ErrBadCRC, typ)
	}
	return Chunk{Type: string(typ), Data: payload}, total, nil
}

// AppendChunk appends the serialized chunk (length, type, data, CRC) to dst.
func AppendChunk(dst []byte, typ string, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	start := len(dst)
	dst = append(dst, typ...)
	dst = append(dst, data...)
	return binary.BigEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start:]))
}
