// Package compress provides the lossless entropy stage used by the reference native codec.
//
// The reference codec quantizes floating point values under the configured error bound,
// turns the quantization indices into zig-zag varint deltas and then hands that byte
// stream to one of the codecs in this package:
//   - None: No entropy stage (fastest, largest)
//   - Zstd: Excellent ratio on the long zero runs produced by smooth fields (default)
//   - S2: Balanced compression and speed
//   - LZ4: Fast decompression, moderate compression
//
// # Zstd Backends
//
// By default Zstd is served by the pure Go github.com/klauspost/compress/zstd package
// with pooled encoders and decoders. Building with `-tags gozstd` (and cgo enabled)
// switches to github.com/valyala/gozstd, which links the C zstd library. Both produce
// standard zstd frames, so blobs are interchangeable between builds.
//
// # Thread Safety
//
// All codecs returned by GetCodec are safe for concurrent use.
//
// # Decoded Size Limit
//
// Decompress refuses streams that would decode to more than 2 GiB. The zstd and s2
// codecs check the size declared by the stream before allocating.
package compress
