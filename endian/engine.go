// Package endian provides byte order utilities for the buffers exchanged with the
// native codec.
//
// Element buffers crossing the native boundary are always laid out in the host byte
// order, because the native library reads them as plain C arrays. The blob container
// written around the native payload is always little-endian. This package gives both
// sides a single EndianEngine type and bulk float conversion helpers.
//
// # Basic Usage
//
//	engine := endian.NativeEngine()
//	buf := make([]byte, len(values)*4)
//	engine.PutFloat32s(buf, values)
//
// # Thread Safety
//
// All functions and methods in this package are safe for concurrent use.
// The returned engines are immutable and stateless.
package endian

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface for convenient byte order operations.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// CheckEndianness uses a fixed integer value to determine the host's byte order.
func CheckEndianness() binary.ByteOrder {
	var i uint16 = 0x0100
	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 0x01 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

func IsNativeLittleEndian() bool {
	return CheckEndianness() == binary.LittleEndian
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// NativeEngine returns the engine matching the host byte order.
func NativeEngine() EndianEngine {
	if IsNativeLittleEndian() {
		return binary.LittleEndian
	}

	return binary.BigEndian
}

// PutFloat32s writes src into dst using the engine's byte order.
// dst must hold at least len(src)*4 bytes.
func PutFloat32s(engine EndianEngine, dst []byte, src []float32) {
	_ = dst[len(src)*4-1:]
	for i, v := range src {
		engine.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// PutFloat64s writes src into dst using the engine's byte order.
// dst must hold at least len(src)*8 bytes.
func PutFloat64s(engine EndianEngine, dst []byte, src []float64) {
	_ = dst[len(src)*8-1:]
	for i, v := range src {
		engine.PutUint64(dst[i*8:], math.Float64bits(v))
	}
}

// Float32s decodes len(dst) values from src using the engine's byte order.
func Float32s(engine EndianEngine, dst []float32, src []byte) {
	_ = src[len(dst)*4-1:]
	for i := range dst {
		dst[i] = math.Float32frombits(engine.Uint32(src[i*4:]))
	}
}

// Float64s decodes len(dst) values from src using the engine's byte order.
func Float64s(engine EndianEngine, dst []float64, src []byte) {
	_ = src[len(dst)*8-1:]
	for i := range dst {
		dst[i] = math.Float64frombits(engine.Uint64(src[i*8:]))
	}
}

// Float32Bytes reinterprets a float32 slice as its host-order bytes without copying.
// The returned slice aliases src and must not outlive it.
func Float32Bytes(src []float32) []byte {
	if len(src) == 0 {
		return nil
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), len(src)*4)
}

// Float64Bytes reinterprets a float64 slice as its host-order bytes without copying.
// The returned slice aliases src and must not outlive it.
func Float64Bytes(src []float64) []byte {
	if len(src) == 0 {
		return nil
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), len(src)*8)
}
