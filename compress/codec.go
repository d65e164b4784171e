package compress

import (
	"fmt"

	"github.com/arloliu/ebcc/format"
)

// Compressor compresses the quantized residual stream produced by the reference codec.
//
// Memory management:
//   - Returned slice is newly allocated and owned by the caller (except NoOp)
//   - Input slice is not modified
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor.
//
// Thread Safety: Decompressor implementations must be safe for concurrent use.
type Decompressor interface {
	// Decompress returns an error if the data is corrupted or was produced by a
	// different algorithm.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

// maxDecodedSize caps the decoded size of any entropy stage stream, so a corrupt or
// crafted stream is refused instead of allocating without limit.
const maxDecodedSize = 1 << 31

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves a built-in Codec for the specified compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}

// IsSupported reports whether compressionType names a built-in codec.
func IsSupported(compressionType format.CompressionType) bool {
	_, ok := builtinCodecs[compressionType]
	return ok
}
