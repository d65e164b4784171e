//go:build cgo && gozstd

package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/valyala/gozstd"
)

const gozstdLevel = 3

// Compress compresses the input data using the C zstd library.
func (c ZstdCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.CompressLevel(nil, data, gozstdLevel), nil
}

// Decompress decompresses Zstd-compressed data using the C zstd library.
func (c ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var hdr zstd.Header
	if err := hdr.Decode(data); err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	if hdr.HasFCS && hdr.FrameContentSize > maxDecodedSize {
		return nil, fmt.Errorf("zstd frame declares %d bytes, limit is %d", hdr.FrameContentSize, uint64(maxDecodedSize))
	}

	decompressed, err := gozstd.Decompress(nil, data)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	return decompressed, nil
}
