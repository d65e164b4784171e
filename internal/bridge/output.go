package bridge

import (
	"math"

	"github.com/arloliu/ebcc/array"
	"github.com/arloliu/ebcc/endian"
	"github.com/arloliu/ebcc/errs"
	"github.com/arloliu/ebcc/format"
	"github.com/arloliu/ebcc/native"
)

// Consume passes the bytes of an encoded native buffer to fn, then frees the buffer.
// fn must copy what it keeps; the slice is invalid once Consume returns.
func Consume(lib native.Library, out native.OutputBuffer, fn func(data []byte)) {
	defer free(lib, out)

	fn(out.Data)
}

// CopyOut copies an encoded native buffer into Go memory and frees it.
func CopyOut(lib native.Library, out native.OutputBuffer) []byte {
	var data []byte
	Consume(lib, out, func(b []byte) { data = append([]byte(nil), b...) })

	return data
}

// FromNative copies a decoded native buffer into a newly allocated row-major array
// of the logical shape, then frees the buffer. nativeShape and dimOrder are those the
// array was encoded with.
//
// The buffer is freed exactly once on every path. A buffer whose length or element
// type does not match nativeShape and elem is rejected with OutputSizeMismatch and no
// partial array is returned.
func FromNative(lib native.Library, out native.OutputBuffer, elem format.ElementType,
	nativeShape array.Shape, dimOrder []int,
) (array.Array, error) {
	if err := checkOutput(out, elem, nativeShape, dimOrder); err != nil {
		free(lib, out)
		return array.Array{}, err
	}

	dst := array.New(elem, LogicalShape(nativeShape, dimOrder))
	if err := FromNativeInto(lib, out, elem, nativeShape, dimOrder, dst.View()); err != nil {
		return array.Array{}, err
	}

	return dst, nil
}

// FromNativeInto copies a decoded native buffer into dst, which must have the logical
// shape and element type, then frees the buffer. dst may be strided as long as its
// strides form a packed layout.
func FromNativeInto(lib native.Library, out native.OutputBuffer, elem format.ElementType,
	nativeShape array.Shape, dimOrder []int, dst array.View,
) error {
	defer free(lib, out)

	if err := checkOutput(out, elem, nativeShape, dimOrder); err != nil {
		return err
	}

	if err := CheckDestination(dst, elem, LogicalShape(nativeShape, dimOrder)); err != nil {
		return err
	}

	rank := len(nativeShape)
	order := dimOrder
	if order == nil {
		order = identity(rank)
	}

	// native axis i lands on logical axis order[i]
	logicalStrides := dst.EffectiveStrides()
	strides := make([]int, rank)
	for i, axis := range order {
		strides[i] = logicalStrides[axis]
	}

	n, _ := nativeShape.Elements()
	engine := endian.NativeEngine()

	if isRowMajor(nativeShape, strides) {
		switch elem {
		case format.Float32:
			endian.Float32s(engine, dst.Float32[:n], out.Data)
		case format.Float64:
			endian.Float64s(engine, dst.Float64[:n], out.Data)
		}

		return nil
	}

	it := newOdometer(nativeShape, strides)
	switch elem {
	case format.Float32:
		for i := range n {
			dst.Float32[it.off] = math.Float32frombits(engine.Uint32(out.Data[i*4:]))
			it.next()
		}
	case format.Float64:
		for i := range n {
			dst.Float64[it.off] = math.Float64frombits(engine.Uint64(out.Data[i*8:]))
			it.next()
		}
	}

	return nil
}

func free(lib native.Library, out native.OutputBuffer) {
	if !out.IsNull() {
		lib.FreeBuffer(out)
	}
}

// CheckDestination validates a caller-supplied output view against the decoded
// element type and logical shape.
func CheckDestination(dst array.View, elem format.ElementType, shape array.Shape) error {
	if dst.Elem != elem {
		return errs.New(errs.KindUnsupportedElementType, "destination holds %s, blob holds %s", dst.Elem, elem)
	}

	if !dst.Shape.Equal(shape) {
		return errs.New(errs.KindShapeMismatch, "destination shape %s, blob shape %s", dst.Shape, shape)
	}

	n, _ := shape.Elements()
	if dst.Len() != n {
		return errs.New(errs.KindSizeMismatch, "destination holds %d elements, shape %s needs %d", dst.Len(), shape, n)
	}

	strides := dst.EffectiveStrides()
	if len(strides) != len(shape) || !isPackedPermutation(shape, strides) {
		return errs.New(errs.KindInvalidLayout, "destination strides %v are not a packed layout of shape %s", strides, shape)
	}

	return nil
}

func checkOutput(out native.OutputBuffer, elem format.ElementType, nativeShape array.Shape, dimOrder []int) error {
	if out.Elem != format.ElementInvalid && out.Elem != elem {
		return errs.New(errs.KindOutputSizeMismatch, "native buffer holds %s, expected %s", out.Elem, elem)
	}

	if len(nativeShape) < 2 || (dimOrder != nil && !isPermutation(dimOrder, len(nativeShape))) {
		return errs.New(errs.KindOutputSizeMismatch, "native shape %s does not fit dim order %v", nativeShape, dimOrder)
	}

	n, ok := nativeShape.Elements()
	if !ok || len(out.Data) != n*elem.Size() {
		return errs.New(errs.KindOutputSizeMismatch, "native buffer holds %d bytes, shape %s of %s needs %d",
			len(out.Data), nativeShape, elem, n*elem.Size())
	}

	return nil
}

// LogicalShape inverts the dim order applied to a native shape.
func LogicalShape(nativeShape array.Shape, dimOrder []int) array.Shape {
	if dimOrder == nil {
		return nativeShape.Clone()
	}

	shape := make(array.Shape, len(nativeShape))
	for i, axis := range dimOrder {
		shape[axis] = nativeShape[i]
	}

	return shape
}

// NativeShape applies a dim order to a logical shape.
func NativeShape(shape array.Shape, dimOrder []int) array.Shape {
	if dimOrder == nil {
		return shape.Clone()
	}

	out := make(array.Shape, len(shape))
	for i, axis := range dimOrder {
		out[i] = shape[axis]
	}

	return out
}
