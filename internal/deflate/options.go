package deflate

// Options controls the effort spent by the compressor.
type Options struct {
	// NumIterations is the number of shortest-path passes per block.
	NumIterations int

	// NumStagnations stops the passes early after this many consecutive
	// passes without a smaller block. 0 disables the early stop.
	NumStagnations int

	// BlockSplitting enables dividing the input into separately coded blocks.
	BlockSplitting bool

	// MaxBlocks caps the number of blocks per master block. 0 means no limit.
	MaxBlocks int
}

// DefaultOptions returns the options used when nil is passed.
func DefaultOptions() *Options {
	return &Options{
		NumIterations:  15,
		NumStagnations: 15,
		BlockSplitting: true,
		MaxBlocks:      15,
	}
}
