package bridge

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/ebcc/array"
	"github.com/arloliu/ebcc/errs"
	"github.com/arloliu/ebcc/format"
	"github.com/arloliu/ebcc/native"
	"github.com/arloliu/ebcc/section"
)

var refCaps = native.NewReference().Capabilities()

// countingLib records FreeBuffer calls; no other method is used by the bridge.
type countingLib struct {
	native.Library
	frees int
}

func (c *countingLib) FreeBuffer(native.OutputBuffer) {
	c.frees++
}

func ramp32(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}

	return out
}

func ramp64(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * 0.5
	}

	return out
}

func TestToNative_ContiguousIsZeroCopy(t *testing.T) {
	data := ramp32(32 * 40)
	s, err := ToNative(array.Float32View(data, 32, 40), nil, refCaps)
	require.NoError(t, err)
	defer s.Release()

	require.False(t, s.Copied)
	require.Equal(t, [3]uint64{1, 32, 40}, s.Dims)
	require.Equal(t, array.Shape{32, 40}, s.NativeShape)
	require.Equal(t, format.Float32, s.Input.Elem)
	require.Len(t, s.Input.Data, len(data)*4)
	require.Equal(t, unsafe.Pointer(&data[0]), unsafe.Pointer(&s.Input.Data[0]))
}

func TestToNative_FoldsLeadingAxes(t *testing.T) {
	tests := []struct {
		shape array.Shape
		dims  [3]uint64
	}{
		{array.Shape{4, 32, 32}, [3]uint64{4, 32, 32}},
		{array.Shape{2, 3, 32, 33}, [3]uint64{6, 32, 33}},
		{array.Shape{1, 1, 1, 64, 32}, [3]uint64{1, 64, 32}},
	}

	for _, tt := range tests {
		n, _ := tt.shape.Elements()
		s, err := ToNative(array.View{Elem: format.Float64, Shape: tt.shape, Float64: ramp64(n)}, nil, refCaps)
		require.NoError(t, err, tt.shape)
		require.Equal(t, tt.dims, s.Dims, tt.shape)
		s.Release()
	}
}

func TestToNative_TransposedViewIsGathered(t *testing.T) {
	data := ramp32(40 * 32)
	base := array.Float32View(data, 40, 32)
	v, err := base.Permute(1, 0)
	require.NoError(t, err)

	s, err := ToNative(v, nil, refCaps)
	require.NoError(t, err)
	defer s.Release()

	require.True(t, s.Copied)
	require.Equal(t, [3]uint64{1, 32, 40}, s.Dims)

	got := make([]float32, 32*40)
	for i := range got {
		got[i] = math.Float32frombits(nativeUint32(s.Input.Data[i*4:]))
	}
	for i := range 32 {
		for j := range 40 {
			require.Equal(t, float32(v.At(i, j)), got[i*40+j])
		}
	}
}

func TestToNative_DimOrder(t *testing.T) {
	data := ramp64(32 * 3 * 40)
	v := array.Float64View(data, 32, 3, 40)

	s, err := ToNative(v, []int{1, 0, 2}, refCaps)
	require.NoError(t, err)
	defer s.Release()

	require.True(t, s.Copied)
	require.Equal(t, array.Shape{3, 32, 40}, s.NativeShape)
	require.Equal(t, [3]uint64{3, 32, 40}, s.Dims)
}

// rankShape returns a shape of the given rank holding one 32x32 grid.
func rankShape(rank int) []int {
	shape := make([]int, rank)
	for i := range shape {
		shape[i] = 1
	}
	shape[rank-2], shape[rank-1] = 32, 32

	return shape
}

func TestToNative_Errors(t *testing.T) {
	tests := []struct {
		name     string
		view     array.View
		dimOrder []int
		want     error
	}{
		{"int32", array.View{Elem: format.Int32, Shape: array.Shape{32, 32}}, nil, errs.ErrUnsupportedElementType},
		{"uint8", array.View{Elem: format.Uint8, Shape: array.Shape{32, 32}}, nil, errs.ErrUnsupportedElementType},
		{"rank one", array.Float32View(ramp32(1024), 1024), nil, errs.ErrInvalidLayout},
		{"rank above blob limit", array.Float32View(ramp32(1024), rankShape(section.MaxRank+1)...), nil, errs.ErrInvalidLayout},
		{"zero extent", array.Float32View(nil, 0, 32), nil, errs.ErrInvalidInput},
		{"negative extent", array.Float32View(nil, -1, 32), nil, errs.ErrInvalidInput},
		{"overflow", array.Float32View(nil, math.MaxInt/2, 64), nil, errs.ErrInvalidInput},
		{"short storage", array.Float32View(ramp32(32*32-1), 32, 32), nil, errs.ErrSizeMismatch},
		{"long storage", array.Float32View(ramp32(32*32+1), 32, 32), nil, errs.ErrSizeMismatch},
		{"stride count", array.Float32View(ramp32(32*32), 32, 32).WithStrides(1), nil, errs.ErrInvalidLayout},
		{"gapped strides", array.Float32View(ramp32(32*32), 32, 32).WithStrides(64, 1), nil, errs.ErrInvalidLayout},
		{"overlapping strides", array.Float32View(ramp32(32*32), 32, 32).WithStrides(1, 1), nil, errs.ErrInvalidLayout},
		{"negative stride", array.Float32View(ramp32(32*32), 32, 32).WithStrides(-32, 1), nil, errs.ErrInvalidLayout},
		{"small height", array.Float32View(ramp32(31*64), 31, 64), nil, errs.ErrInvalidLayout},
		{"small width", array.Float32View(ramp32(64*31), 64, 31), nil, errs.ErrInvalidLayout},
		{"dim order moves small axis last", array.Float32View(ramp32(3*32*32), 3, 32, 32), []int{1, 2, 0}, errs.ErrInvalidLayout},
		{"dim order wrong rank", array.Float32View(ramp32(32*32), 32, 32), []int{0, 1, 2}, errs.ErrInvalidConfig},
		{"dim order repeated", array.Float32View(ramp32(32*32), 32, 32), []int{0, 0}, errs.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ToNative(tt.view, tt.dimOrder, refCaps)
			require.ErrorIs(t, err, tt.want)
			require.Nil(t, s)

			_, err = Validate(tt.view, tt.dimOrder, refCaps)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestToNative_NonFinite(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		data := ramp64(32 * 32)
		data[500] = bad
		_, err := ToNative(array.Float64View(data, 32, 32), nil, refCaps)
		require.ErrorIs(t, err, errs.ErrInvalidInput)

		data32 := ramp32(32 * 32)
		data32[7] = float32(bad)
		_, err = ToNative(array.Float32View(data32, 32, 32), nil, refCaps)
		require.ErrorIs(t, err, errs.ErrInvalidInput)
	}
}

func TestToNative_CapabilitiesRefuseFloat64(t *testing.T) {
	caps := native.Capabilities{ElementTypes: []format.ElementType{format.Float32}, MinTrailingExtent: 32}
	_, err := ToNative(array.Float64View(ramp64(32*32), 32, 32), nil, caps)
	require.ErrorIs(t, err, errs.ErrUnsupportedElementType)
}

func TestStaged_ReleaseIsIdempotent(t *testing.T) {
	v, err := array.Float32View(ramp32(40*32), 40, 32).Permute(1, 0)
	require.NoError(t, err)

	s, err := ToNative(v, nil, refCaps)
	require.NoError(t, err)
	s.Release()
	s.Release()
	require.Nil(t, s.Input.Data)
}

func TestRoundTrip_Layouts(t *testing.T) {
	tests := []struct {
		name     string
		shape    []int
		perm     []int // view permutation applied to the storage
		dimOrder []int
	}{
		{"contiguous", []int{2, 32, 40}, nil, nil},
		{"transposed view", []int{40, 32}, []int{1, 0}, nil},
		{"dim order", []int{32, 2, 40}, nil, []int{1, 0, 2}},
		{"transposed view and dim order", []int{3, 40, 32}, []int{2, 0, 1}, []int{1, 0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _ := array.Shape(tt.shape).Elements()
			v := array.Float64View(ramp64(n), tt.shape...)
			if tt.perm != nil {
				var err error
				v, err = v.Permute(tt.perm...)
				require.NoError(t, err)
			}

			s, err := ToNative(v, tt.dimOrder, refCaps)
			require.NoError(t, err)
			defer s.Release()

			lib := &countingLib{}
			out := native.OutputBuffer{Data: append([]byte(nil), s.Input.Data...), Elem: format.Float64}
			got, err := FromNative(lib, out, format.Float64, s.NativeShape, tt.dimOrder)
			require.NoError(t, err)
			require.Equal(t, 1, lib.frees)
			require.Equal(t, v.Shape, got.Shape)

			idx := make([]int, len(v.Shape))
			for k := range n {
				rem := k
				for d := len(idx) - 1; d >= 0; d-- {
					idx[d] = rem % v.Shape[d]
					rem /= v.Shape[d]
				}
				require.Equal(t, v.At(idx...), got.Float64[k])
			}
		})
	}
}

func TestFromNativeInto_StridedDestination(t *testing.T) {
	data := ramp32(32 * 40)
	s, err := ToNative(array.Float32View(data, 32, 40), nil, refCaps)
	require.NoError(t, err)

	// destination stored column-major
	storage := make([]float32, 32*40)
	dst, err := array.Float32View(storage, 40, 32).Permute(1, 0)
	require.NoError(t, err)

	lib := &countingLib{}
	out := native.OutputBuffer{Data: append([]byte(nil), s.Input.Data...), Elem: format.Float32}
	require.NoError(t, FromNativeInto(lib, out, format.Float32, s.NativeShape, nil, dst))
	require.Equal(t, 1, lib.frees)

	for i := range 32 {
		for j := range 40 {
			require.Equal(t, data[i*40+j], storage[j*32+i])
		}
	}
}

func TestFromNative_RejectsMismatchedOutput(t *testing.T) {
	shape := array.Shape{32, 32}
	full := make([]byte, 32*32*4)

	tests := []struct {
		name  string
		out   native.OutputBuffer
		shape array.Shape
		order []int
	}{
		{"short", native.OutputBuffer{Data: full[:len(full)-4], Elem: format.Float32}, shape, nil},
		{"long", native.OutputBuffer{Data: append(full, 0, 0, 0, 0), Elem: format.Float32}, shape, nil},
		{"element type", native.OutputBuffer{Data: full, Elem: format.Float64}, shape, nil},
		{"bad order", native.OutputBuffer{Data: full, Elem: format.Float32}, shape, []int{1, 1}},
		{"rank one", native.OutputBuffer{Data: full, Elem: format.Float32}, array.Shape{1024}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib := &countingLib{}
			got, err := FromNative(lib, tt.out, format.Float32, tt.shape, tt.order)
			require.ErrorIs(t, err, errs.ErrOutputSizeMismatch)
			require.Nil(t, got.Float32)
			require.Equal(t, 1, lib.frees, "buffer must be freed exactly once")
		})
	}
}

func TestFromNativeInto_RejectsDestination(t *testing.T) {
	shape := array.Shape{32, 32}
	out := func() native.OutputBuffer {
		return native.OutputBuffer{Data: make([]byte, 32*32*4), Elem: format.Float32}
	}

	tests := []struct {
		name string
		dst  array.View
		want error
	}{
		{"element type", array.Float64View(make([]float64, 1024), 32, 32), errs.ErrUnsupportedElementType},
		{"shape", array.Float32View(make([]float32, 1024), 16, 64), errs.ErrShapeMismatch},
		{"storage", array.Float32View(make([]float32, 1000), 32, 32), errs.ErrSizeMismatch},
		{"strides", array.Float32View(make([]float32, 1024), 32, 32).WithStrides(1, 1), errs.ErrInvalidLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib := &countingLib{}
			require.ErrorIs(t, FromNativeInto(lib, out(), format.Float32, shape, nil, tt.dst), tt.want)
			require.Equal(t, 1, lib.frees)
		})
	}
}

func TestCopyOut(t *testing.T) {
	lib := &countingLib{}
	src := []byte{1, 2, 3}
	got := CopyOut(lib, native.OutputBuffer{Data: src})
	require.Equal(t, src, got)
	require.Equal(t, 1, lib.frees)

	src[0] = 9
	require.Equal(t, byte(1), got[0], "copy must not alias native memory")

	CopyOut(lib, native.OutputBuffer{})
	require.Equal(t, 1, lib.frees, "null buffers are not freed")
}

func TestShapeHelpers(t *testing.T) {
	order := []int{2, 0, 1}
	logical := array.Shape{5, 32, 40}
	nat := NativeShape(logical, order)
	require.Equal(t, array.Shape{40, 5, 32}, nat)
	require.Equal(t, logical, LogicalShape(nat, order))
	require.Equal(t, logical, LogicalShape(logical, nil))
}

func nativeUint32(b []byte) uint32 {
	return *(*uint32)(unsafe.Pointer(&b[0]))
}
