package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// lz4CompressorPool pools lz4.Compressor instances; their hash tables are worth reusing.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

const (
	lz4ModeRaw   = 0x0
	lz4ModeBlock = 0x1
)

var errLZ4Corrupt = errors.New("lz4: corrupt frame")

// LZ4Compressor wraps raw LZ4 blocks in a small frame: the uvarint length of the
// original data, a mode byte and the payload. Incompressible input is stored raw.
type LZ4Compressor struct{}

var _ Codec = (*LZ4Compressor)(nil)

// NewLZ4Compressor creates a new LZ4 compressor.
func NewLZ4Compressor() LZ4Compressor {
	return LZ4Compressor{}
}

// Compress compresses the input data using LZ4 block compression.
//
// Returns:
//   - []byte: Framed compressed data (nil if input is empty)
//   - error: Compression error if any
func (c LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dst := make([]byte, binary.MaxVarintLen64+1+lz4.CompressBlockBound(len(data)))
	hdr := binary.PutUvarint(dst, uint64(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst[hdr+1:])
	if err != nil {
		return nil, err
	}

	if n == 0 || n >= len(data) {
		dst[hdr] = lz4ModeRaw
		n = copy(dst[hdr+1:], data)
	} else {
		dst[hdr] = lz4ModeBlock
	}

	return dst[:hdr+1+n], nil
}

// Decompress decompresses a frame produced by Compress.
func (c LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	size, hdr := binary.Uvarint(data)
	if hdr <= 0 || hdr >= len(data) || size > maxDecodedSize {
		return nil, errLZ4Corrupt
	}

	payload := data[hdr+1:]
	switch data[hdr] {
	case lz4ModeRaw:
		if uint64(len(payload)) != size {
			return nil, errLZ4Corrupt
		}

		return append([]byte(nil), payload...), nil
	case lz4ModeBlock:
		buf := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, buf)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		if uint64(n) != size {
			return nil, errLZ4Corrupt
		}

		return buf, nil
	default:
		return nil, errLZ4Corrupt
	}
}
