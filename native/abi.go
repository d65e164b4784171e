package native

import (
	"errors"
	"fmt"
	"slices"
	"unsafe"

	"github.com/arloliu/ebcc/format"
)

// ErrNativeUnavailable is returned by NativeLibrary when the binary was built without
// the libebcc binding.
var ErrNativeUnavailable = errors.New("native: built without libebcc (use -tags ebcc_native with cgo)")

// Status is the integer status code returned by every library entry point.
type Status int32

const (
	StatusOK              Status = 0
	StatusInitFailed      Status = 1  // global or context initialization failed
	StatusAllocFailed     Status = 2  // the library could not allocate memory
	StatusInvalidArgument Status = 3  // a parameter or buffer violates the contract
	StatusInvalidDims     Status = 4  // dims are zero or smaller than the minimum extent
	StatusUnsupportedType Status = 5  // element type not accepted
	StatusEncodeFailed    Status = 6  // encoder failure
	StatusCorruptStream   Status = 7  // encoded stream is malformed
	StatusDecodeFailed    Status = 8  // decoder failure
	StatusInvalidContext  Status = 9  // unknown, destroyed or busy context
	statusSentinel        Status = 10 // first unassigned code
)

// Known reports whether s is one of the codes defined by this version of the contract.
func (s Status) Known() bool {
	return s >= StatusOK && s < statusSentinel
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInitFailed:
		return "init failed"
	case StatusAllocFailed:
		return "allocation failed"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusInvalidDims:
		return "invalid dims"
	case StatusUnsupportedType:
		return "unsupported element type"
	case StatusEncodeFailed:
		return "encode failed"
	case StatusCorruptStream:
		return "corrupt stream"
	case StatusDecodeFailed:
		return "decode failed"
	case StatusInvalidContext:
		return "invalid context"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Context is an opaque compressor context. The zero value is never a valid context.
type Context uintptr

// CodecConfig mirrors codec_config_t.
//
// Quality and Entropy are extensions honoured only by libraries whose Capabilities
// report Extensions; the C library ignores them.
type CodecConfig struct {
	Dims         [3]uint64 // frames, height, width
	BaseCR       float32
	ResidualType format.ResidualType
	ResidualCR   float32
	Error        float32

	Quality uint8 // base layer bit depth, 0 derives it from BaseCR
	Entropy format.CompressionType
}

// Elements returns the product of Dims and false when it overflows.
func (c *CodecConfig) Elements() (uint64, bool) {
	n := uint64(1)
	for _, d := range c.Dims {
		if d != 0 && n > ^uint64(0)/d {
			return 0, false
		}
		n *= d
	}

	return n, true
}

// InputBuffer is the flat element buffer handed to Encode, in host byte order.
// The library only reads it and never retains it past the call.
type InputBuffer struct {
	Elem format.ElementType
	Data []byte
}

// OutputBuffer is memory allocated by a library. Data aliases that memory and is valid
// only until the buffer is passed to FreeBuffer.
type OutputBuffer struct {
	Data []byte
	// Elem is the element type of a decoded buffer; it is ElementInvalid for encoded streams.
	Elem format.ElementType

	ptr unsafe.Pointer // C allocation
	ref uint64         // reference library allocation
}

// IsNull reports whether the buffer carries no allocation.
func (b OutputBuffer) IsNull() bool {
	return b.Data == nil && b.ptr == nil && b.ref == 0
}

// Capabilities describes what a library accepts, so callers can validate before calling it.
type Capabilities struct {
	ElementTypes []format.ElementType
	// MinTrailingExtent is the minimum size of the height and width dimensions.
	MinTrailingExtent int
	// Extensions reports whether CodecConfig.Quality and CodecConfig.Entropy are honoured.
	Extensions bool
}

// Accepts reports whether the element type can be passed to Encode.
func (c Capabilities) Accepts(elem format.ElementType) bool {
	return slices.Contains(c.ElementTypes, elem)
}

// Library is the native codec contract.
//
// Implementations must allow different contexts to be used concurrently. A single
// context is not reentrant.
type Library interface {
	Name() string
	Capabilities() Capabilities

	// Init performs the process-wide setup of the library.
	Init() Status

	NewContext() (Context, Status)
	FreeContext(ctx Context) Status

	Encode(ctx Context, in InputBuffer, cfg *CodecConfig) (OutputBuffer, Status)
	Decode(ctx Context, data []byte) (OutputBuffer, Status)
	FreeBuffer(buf OutputBuffer)

	// LastError returns the message of the last failed call on ctx, or "".
	// The returned string is owned by the caller.
	LastError(ctx Context) string
}
