package compress

// ZstdCompressor provides Zstandard compression for quantized residual streams.
//
// Smooth climate fields quantize to long runs of identical deltas, which zstd
// collapses far better than the faster codecs, so it is the default entropy stage.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
