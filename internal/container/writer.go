package container

// Image is everything needed to serialize an optimized PNG.
type Image struct {
	Header Header
	PLTE   []byte // nil when the color type has no palette
	TRNS   []byte // nil when there is no transparency chunk
	IDAT   []byte // zlib stream of the filtered scanlines
	Kept   Kept
}

// Encode serializes img: signature, IHDR, kept chunks that precede PLTE,
// PLTE, tRNS, kept chunks that precede IDAT, a single IDAT, kept chunks
// that follow it and IEND.
func Encode(img *Image) []byte {
	size := len(Signature) + 4*(ChunkHeaderSize+ChunkCRCSize) + IHDRSize + len(img.PLTE) + len(img.TRNS) + len(img.IDAT)
	for _, group := range [][]Chunk{img.Kept.BeforePLTE, img.Kept.BeforeIDAT, img.Kept.AfterIDAT} {
		for _, c := range group {
			size += ChunkHeaderSize + ChunkCRCSize + len(c.Data)
		}
	}
	out := make([]byte, 0, size+ChunkHeaderSize+ChunkCRCSize)
	out = append(out, Signature[:]...)
	out = AppendChunk(out, TypeIHDR, img.Header.Marshal())
	for _, c := range img.Kept.BeforePLTE {
		out = AppendChunk(out, c.Type, c.Data)
	}
	if img.PLTE != nil {
		out = AppendChunk(out, TypePLTE, img.PLTE)
	}
	if img.TRNS != nil {
		out = AppendChunk(out, TypeTRNS, img.TRNS)
	}
	for _, c := range img.Kept.BeforeIDAT {
		out = AppendChunk(out, c.Type, c.Data)
	}
	out = AppendChunk(out, TypeIDAT, img.IDAT)
	for _, c := range img.Kept.AfterIDAT {
		out = AppendChunk(out, c.Type, c.Data)
	}
	return AppendChunk(out, TypeIEND, nil)
}
