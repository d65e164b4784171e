//go:build cgo && ebcc_native

package native

/*
#cgo LDFLAGS: -lebcc -lopenjp2 -lzstd -lm
#include <stdlib.h>
#include "ebcc_codec.h"
*/
import "C"

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/arloliu/ebcc/format"
)

// libEBCC binds the C library. EBCC keeps no per-call state, so contexts are plain
// tokens tracked on the Go side to keep the create/destroy contract observable.
type libEBCC struct {
	next atomic.Uint64
	live sync.Map
}

var _ Library = (*libEBCC)(nil)

var nativeLibrary = &libEBCC{}

// NativeLibrary returns the cgo binding to libebcc.
func NativeLibrary() (Library, error) {
	return nativeLibrary, nil
}

func (l *libEBCC) Name() string {
	return "libebcc"
}

func (l *libEBCC) Capabilities() Capabilities {
	return Capabilities{
		ElementTypes:      []format.ElementType{format.Float32},
		MinTrailingExtent: MinTrailingExtent,
	}
}

func (l *libEBCC) Init() Status {
	return StatusOK
}

func (l *libEBCC) NewContext() (Context, Status) {
	ctx := Context(l.next.Add(1))
	l.live.Store(ctx, struct{}{})

	return ctx, StatusOK
}

func (l *libEBCC) FreeContext(ctx Context) Status {
	if _, ok := l.live.LoadAndDelete(ctx); !ok {
		return StatusInvalidContext
	}

	return StatusOK
}

func (l *libEBCC) LastError(Context) string {
	return ""
}

func residualToC(r format.ResidualType) C.residual_t {
	switch r {
	case format.ResidualMaxError:
		return C.residual_t(C.MAX_ERROR)
	case format.ResidualRelativeError:
		return C.residual_t(C.RELATIVE_ERROR)
	default:
		return C.residual_t(C.NONE)
	}
}

func (l *libEBCC) Encode(ctx Context, in InputBuffer, cfg *CodecConfig) (OutputBuffer, Status) {
	if _, ok := l.live.Load(ctx); !ok {
		return OutputBuffer{}, StatusInvalidContext
	}

	if in.Elem != format.Float32 {
		return OutputBuffer{}, StatusUnsupportedType
	}

	if cfg == nil || len(in.Data) == 0 {
		return OutputBuffer{}, StatusInvalidArgument
	}

	// ebcc_encode may write to its input, so it works on a C-owned copy
	src := C.CBytes(in.Data)
	defer C.free(src)

	var ccfg C.codec_config_t
	for i, d := range cfg.Dims {
		ccfg.dims[i] = C.size_t(d)
	}
	ccfg.base_cr = C.float(cfg.BaseCR)
	ccfg.residual_compression_type = residualToC(cfg.ResidualType)
	ccfg.residual_cr = C.float(cfg.ResidualCR)
	ccfg.error = C.float(cfg.Error)

	var out *C.uint8_t
	n := C.ebcc_encode((*C.float)(src), &ccfg, &out)
	if n == 0 || out == nil {
		if out != nil {
			C.free_buffer(unsafe.Pointer(out))
		}

		return OutputBuffer{}, StatusEncodeFailed
	}

	return OutputBuffer{
		Data: unsafe.Slice((*byte)(unsafe.Pointer(out)), int(n)),
		ptr:  unsafe.Pointer(out),
	}, StatusOK
}

func (l *libEBCC) Decode(ctx Context, data []byte) (OutputBuffer, Status) {
	if _, ok := l.live.Load(ctx); !ok {
		return OutputBuffer{}, StatusInvalidContext
	}

	if len(data) == 0 {
		return OutputBuffer{}, StatusInvalidArgument
	}

	src := C.CBytes(data)
	defer C.free(src)

	var out *C.float
	n := C.ebcc_decode((*C.uint8_t)(src), C.size_t(len(data)), &out)
	if n == 0 || out == nil {
		if out != nil {
			C.free_buffer(unsafe.Pointer(out))
		}

		return OutputBuffer{}, StatusDecodeFailed
	}

	return OutputBuffer{
		Data: unsafe.Slice((*byte)(unsafe.Pointer(out)), int(n)*4),
		Elem: format.Float32,
		ptr:  unsafe.Pointer(out),
	}, StatusOK
}

func (l *libEBCC) FreeBuffer(buf OutputBuffer) {
	if buf.ptr != nil {
		C.free_buffer(buf.ptr)
	}
}
