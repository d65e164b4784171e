// Package bridge adapts array views to the flat buffers of the native codec and back.
//
// The native codec reads one row-major element stream with three dimensions
// (frames, height, width). ToNative validates a view, applies the dim order, folds
// the leading native axes into frames, and either aliases the caller's storage or
// gathers it into a pooled staging buffer. FromNative and FromNativeInto copy a
// native output buffer into Go memory and free it exactly once.
package bridge

import (
	"math"
	"sort"

	"github.com/arloliu/ebcc/array"
	"github.com/arloliu/ebcc/endian"
	"github.com/arloliu/ebcc/errs"
	"github.com/arloliu/ebcc/format"
	"github.com/arloliu/ebcc/internal/pool"
	"github.com/arloliu/ebcc/native"
	"github.com/arloliu/ebcc/section"
)

// Staged is a validated view ready to be handed to native.Library.Encode.
type Staged struct {
	Input native.InputBuffer
	// Dims is the native (frames, height, width) triple.
	Dims [3]uint64
	// NativeShape is the logical shape permuted by the dim order.
	NativeShape array.Shape
	// Copied reports whether Input lives in a staging buffer rather than aliasing the view.
	Copied bool

	staging *pool.ByteBuffer
}

// Release returns the staging buffer, if any, to its pool. It is safe to call more than once.
func (s *Staged) Release() {
	if s.staging != nil {
		pool.PutStagingBuffer(s.staging)
		s.staging = nil
		s.Input.Data = nil
	}
}

// Validate runs every check of ToNative without staging any data, and returns the
// native shape the view would be encoded with.
func Validate(v array.View, dimOrder []int, caps native.Capabilities) (array.Shape, error) {
	l, err := validate(v, dimOrder, caps)
	if err != nil {
		return nil, err
	}

	return l.nativeShape, nil
}

// ToNative validates v and adapts it to a native input buffer. dimOrder maps native
// axis i to logical axis dimOrder[i]; nil means identity.
//
// Errors are returned before any data is copied:
//   - UnsupportedElementType: the element type has no storage or caps refuses it
//   - InvalidLayout: rank outside [2, section.MaxRank], strides that are not a
//     packed permutation, or trailing native extents below caps.MinTrailingExtent
//   - SizeMismatch: storage length differs from the product of the extents
//   - InvalidInput: a zero extent, an overflowing product, or a non-finite value
//   - InvalidConfig: a dim order that does not fit the rank
func ToNative(v array.View, dimOrder []int, caps native.Capabilities) (*Staged, error) {
	l, err := validate(v, dimOrder, caps)
	if err != nil {
		return nil, err
	}

	if err := checkFinite(v); err != nil {
		return nil, err
	}

	s := &Staged{
		Input:       native.InputBuffer{Elem: v.Elem},
		Dims:        l.dims,
		NativeShape: l.nativeShape,
	}

	if isRowMajor(l.nativeShape, l.nativeStrides) {
		switch v.Elem {
		case format.Float32:
			s.Input.Data = endian.Float32Bytes(v.Float32)
		case format.Float64:
			s.Input.Data = endian.Float64Bytes(v.Float64)
		}

		return s, nil
	}

	size := v.Elem.Size()
	s.staging = pool.GetStagingBuffer(l.elements * size)
	s.Copied = true
	gather(v, l, s.staging.B)
	s.Input.Data = s.staging.B

	return s, nil
}

type layout struct {
	nativeShape   array.Shape
	nativeStrides []int
	dims          [3]uint64
	elements      int
}

func validate(v array.View, dimOrder []int, caps native.Capabilities) (layout, error) {
	if !v.Elem.IsFloat() || !caps.Accepts(v.Elem) {
		return layout{}, errs.New(errs.KindUnsupportedElementType, "element type %s is not supported", v.Elem)
	}

	rank := v.Shape.Rank()
	if rank < 2 {
		return layout{}, errs.New(errs.KindInvalidLayout, "rank %d, the codec needs at least 2 dimensions", rank)
	}

	if rank > section.MaxRank {
		return layout{}, errs.New(errs.KindInvalidLayout, "rank %d, a blob holds at most %d dimensions", rank, section.MaxRank)
	}

	for i, d := range v.Shape {
		if d <= 0 {
			return layout{}, errs.New(errs.KindInvalidInput, "extent %d of shape %s is %d", i, v.Shape, d)
		}
	}

	n, ok := v.Shape.Elements()
	if !ok {
		return layout{}, errs.New(errs.KindInvalidInput, "element count of shape %s overflows", v.Shape)
	}

	if v.Len() != n {
		return layout{}, errs.New(errs.KindSizeMismatch, "storage holds %d elements, shape %s needs %d", v.Len(), v.Shape, n)
	}

	strides := v.EffectiveStrides()
	if len(strides) != rank {
		return layout{}, errs.New(errs.KindInvalidLayout, "%d strides for rank %d", len(strides), rank)
	}

	if !isPackedPermutation(v.Shape, strides) {
		return layout{}, errs.New(errs.KindInvalidLayout, "strides %v are not a packed layout of shape %s", strides, v.Shape)
	}

	order := dimOrder
	if order == nil {
		order = identity(rank)
	} else if !isPermutation(order, rank) {
		return layout{}, errs.New(errs.KindInvalidConfig, "dim order %v does not fit rank %d", order, rank)
	}

	l := layout{
		nativeShape:   make(array.Shape, rank),
		nativeStrides: make([]int, rank),
		elements:      n,
	}
	for i, axis := range order {
		l.nativeShape[i] = v.Shape[axis]
		l.nativeStrides[i] = strides[axis]
	}

	h, w := l.nativeShape[rank-2], l.nativeShape[rank-1]
	if h < caps.MinTrailingExtent || w < caps.MinTrailingExtent {
		return layout{}, errs.New(errs.KindInvalidLayout, "trailing native extents %dx%d, the codec needs at least %dx%d",
			h, w, caps.MinTrailingExtent, caps.MinTrailingExtent)
	}

	l.dims = NativeDims(l.nativeShape)

	return l, nil
}

// NativeDims folds all but the last two extents of a native shape into frames.
func NativeDims(nativeShape array.Shape) [3]uint64 {
	rank := len(nativeShape)
	frames, _ := nativeShape[:rank-2].Elements()

	return [3]uint64{uint64(frames), uint64(nativeShape[rank-2]), uint64(nativeShape[rank-1])} //nolint: gosec
}

// isPackedPermutation reports whether strides describe a dense layout of shape in some
// axis order. Axes of extent 1 may carry any stride.
func isPackedPermutation(shape array.Shape, strides []int) bool {
	axes := make([]int, 0, len(shape))
	for i, d := range shape {
		if d > 1 {
			axes = append(axes, i)
		}
	}
	sort.SliceStable(axes, func(a, b int) bool { return strides[axes[a]] < strides[axes[b]] })

	expected := 1
	for _, a := range axes {
		if strides[a] != expected {
			return false
		}
		expected *= shape[a]
	}

	return true
}

func isRowMajor(shape array.Shape, strides []int) bool {
	expected := 1
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] == 1 {
			continue
		}
		if strides[i] != expected {
			return false
		}
		expected *= shape[i]
	}

	return true
}

func isPermutation(order []int, rank int) bool {
	if len(order) != rank {
		return false
	}

	seen := make([]bool, rank)
	for _, a := range order {
		if a < 0 || a >= rank || seen[a] {
			return false
		}
		seen[a] = true
	}

	return true
}

func identity(rank int) []int {
	order := make([]int, rank)
	for i := range order {
		order[i] = i
	}

	return order
}

// checkFinite rejects NaN and infinite values. The storage is dense, so every slot is
// an element of the view.
func checkFinite(v array.View) error {
	switch v.Elem {
	case format.Float32:
		for i, x := range v.Float32 {
			if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
				return errs.New(errs.KindInvalidInput, "non-finite value %v at storage index %d", x, i)
			}
		}
	case format.Float64:
		for i, x := range v.Float64 {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return errs.New(errs.KindInvalidInput, "non-finite value %v at storage index %d", x, i)
			}
		}
	}

	return nil
}

// gather copies the view into dst in native row-major order.
func gather(v array.View, l layout, dst []byte) {
	engine := endian.NativeEngine()
	it := newOdometer(l.nativeShape, l.nativeStrides)

	switch v.Elem {
	case format.Float32:
		for i := range l.elements {
			engine.PutUint32(dst[i*4:], math.Float32bits(v.Float32[it.off]))
			it.next()
		}
	case format.Float64:
		for i := range l.elements {
			engine.PutUint64(dst[i*8:], math.Float64bits(v.Float64[it.off]))
			it.next()
		}
	}
}

// odometer walks a strided array in row-major index order, tracking the storage offset.
type odometer struct {
	shape   []int
	strides []int
	idx     []int
	off     int
}

func newOdometer(shape, strides []int) *odometer {
	return &odometer{shape: shape, strides: strides, idx: make([]int, len(shape))}
}

func (o *odometer) next() {
	for k := len(o.idx) - 1; k >= 0; k-- {
		o.idx[k]++
		o.off += o.strides[k]
		if o.idx[k] < o.shape[k] {
			return
		}
		o.off -= o.idx[k] * o.strides[k]
		o.idx[k] = 0
	}
}
