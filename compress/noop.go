package compress

// NoOpCompressor passes the residual stream through unchanged.
//
// It is useful when the caller wants to measure the quantization stage alone.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor creates a new no-operation compressor.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Compress returns the input slice as-is. The result aliases data.
func (c NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns the input slice as-is. The result aliases data.
func (c NoOpCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
