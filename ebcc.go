// Package ebcc compresses multi-dimensional floating-point arrays with the EBCC
// error-bounded codec.
//
// EBCC splits an array into a lossy base layer and an optional residual layer that
// brings every value back within a caller-chosen error bound. It targets gridded
// scientific data such as climate reanalysis fields, where the two trailing
// dimensions form a spatial grid and any leading dimensions are stacked as frames.
//
// # Core Features
//
//   - Absolute (max error) and relative error bounds, or base layer only
//   - Float32 and float64 arrays of rank 2 and above
//   - Strided and transposed input views, staged without extra copies when possible
//   - Self-describing blobs with an optional embedded logical shape
//   - Pure Go reference codec by default, libebcc through cgo with -tags ebcc_native
//   - Typed errors carrying the native stage and status code
//
// # Basic Usage
//
// Compressing a field with an absolute error bound:
//
//	import "github.com/arloliu/ebcc"
//
//	cfg, err := ebcc.MaxAbsoluteErrorConfig(30, 0.01)
//	if err != nil {
//	    return err
//	}
//
//	blob, err := ebcc.CompressFloat32(field, []int{721, 1440}, cfg)
//
// Restoring it:
//
//	restored, err := ebcc.DecompressFloat32(blob)
//
// # Package Structure
//
// This package provides top-level wrappers around a default codec.Codec backed by the
// reference library. For a custom native library, a logger, shape hints or strided
// views, use the codec and array packages directly.
package ebcc

import (
	"github.com/arloliu/ebcc/array"
	"github.com/arloliu/ebcc/codec"
	"github.com/arloliu/ebcc/errs"
	"github.com/arloliu/ebcc/format"
)

var defaultCodec = mustDefaultCodec()

func mustDefaultCodec() *codec.Codec {
	c, err := codec.New()
	if err != nil {
		// codec.New fails only on invalid options.
		panic(err)
	}

	return c
}

// DefaultCodec returns the codec used by the package-level functions.
func DefaultCodec() *codec.Codec {
	return defaultCodec
}

// DefaultConfig returns the default configuration: base layer only, compression
// ratio 10, zstd entropy stage and embedded shape.
func DefaultConfig() *codec.CompressionConfig {
	return codec.DefaultConfig()
}

// BaseOnlyConfig creates a configuration without residual layer.
func BaseOnlyConfig(baseCR float64) (*codec.CompressionConfig, error) {
	return codec.BaseOnlyConfig(baseCR)
}

// MaxAbsoluteErrorConfig creates a configuration bounding |x - x'| by errorBound for
// every element.
//
// Example:
//
//	cfg, err := ebcc.MaxAbsoluteErrorConfig(30, 0.01)
func MaxAbsoluteErrorConfig(baseCR, errorBound float64) (*codec.CompressionConfig, error) {
	return codec.MaxAbsoluteErrorConfig(baseCR, errorBound)
}

// RelativeErrorConfig creates a configuration bounding the error by errorBound times
// the value range of the array.
func RelativeErrorConfig(baseCR, errorBound float64) (*codec.CompressionConfig, error) {
	return codec.RelativeErrorConfig(baseCR, errorBound)
}

// Compress encodes v with the default codec.
func Compress(v array.View, cfg *codec.CompressionConfig) ([]byte, error) {
	return defaultCodec.Compress(v, cfg)
}

// CompressFloat32 encodes a row-major float32 array of the given shape.
//
// Parameters:
//   - data: elements in row-major order, len(data) must equal the product of shape
//   - shape: logical shape, at least two dimensions
//   - cfg: configuration built by one of the config constructors
//
// Returns the blob, or an *errs.Error describing why the input was rejected.
func CompressFloat32(data []float32, shape []int, cfg *codec.CompressionConfig) ([]byte, error) {
	return defaultCodec.Compress(array.Float32View(data, shape...), cfg)
}

// CompressFloat64 encodes a row-major float64 array of the given shape.
func CompressFloat64(data []float64, shape []int, cfg *codec.CompressionConfig) ([]byte, error) {
	return defaultCodec.Compress(array.Float64View(data, shape...), cfg)
}

// Decompress decodes blob with the default codec.
func Decompress(blob []byte, opts ...codec.DecompressOption) (array.Array, error) {
	return defaultCodec.Decompress(blob, opts...)
}

// DecompressInto decodes blob into dst with the default codec.
func DecompressInto(blob []byte, dst array.View, opts ...codec.DecompressOption) error {
	return defaultCodec.DecompressInto(blob, dst, opts...)
}

// DecompressFloat32 decodes a float32 blob and returns its elements in row-major
// order together with the logical shape.
//
// A float64 blob is rejected with errs.ErrUnsupportedElementType.
func DecompressFloat32(blob []byte, opts ...codec.DecompressOption) ([]float32, []int, error) {
	arr, err := decompressAs(blob, format.Float32, opts)
	if err != nil {
		return nil, nil, err
	}

	return arr.Float32, arr.Shape, nil
}

// DecompressFloat64 decodes a float64 blob and returns its elements in row-major
// order together with the logical shape.
func DecompressFloat64(blob []byte, opts ...codec.DecompressOption) ([]float64, []int, error) {
	arr, err := decompressAs(blob, format.Float64, opts)
	if err != nil {
		return nil, nil, err
	}

	return arr.Float64, arr.Shape, nil
}

func decompressAs(blob []byte, elem format.ElementType, opts []codec.DecompressOption) (array.Array, error) {
	arr, err := defaultCodec.Decompress(blob, opts...)
	if err != nil {
		return array.Array{}, err
	}

	if arr.Elem != elem {
		return array.Array{}, errs.New(errs.KindUnsupportedElementType, "blob holds %s, not %s", arr.Elem, elem)
	}

	return arr, nil
}
