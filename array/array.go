// Package array holds the array types passed to and returned from the codec.
//
// A View borrows caller storage and describes it with a shape and optional strides.
// An Array owns its storage, always in row-major order.
//
//	data := make([]float32, 721*1440)
//	v := array.Float32View(data, 721, 1440)
//
//	// a transposed view of the same storage
//	t, err := v.Permute(1, 0)
package array

import (
	"fmt"
	"math/bits"
	"slices"

	"github.com/arloliu/ebcc/errs"
	"github.com/arloliu/ebcc/format"
)

// Shape is the list of extents of an array, outermost first.
type Shape []int

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Elements returns the product of the extents. ok is false when an extent is negative
// or the product overflows int.
func (s Shape) Elements() (n int, ok bool) {
	n = 1
	for _, d := range s {
		if d < 0 {
			return 0, false
		}

		hi, lo := bits.Mul64(uint64(n), uint64(d))
		if hi != 0 || lo > uint64(maxInt) {
			return 0, false
		}
		n = int(lo)
	}

	return n, true
}

const maxInt = int(^uint(0) >> 1)

// Equal reports whether both shapes have the same extents.
func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s, other)
}

// Clone returns a copy of s.
func (s Shape) Clone() Shape {
	return slices.Clone(s)
}

// RowMajorStrides returns the element strides of a packed row-major array of this shape.
func (s Shape) RowMajorStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}

	return strides
}

func (s Shape) String() string {
	return fmt.Sprint([]int(s))
}

// View is a borrowed, possibly strided, window on caller storage.
//
// Exactly one of Float32 and Float64 holds the storage, matching Elem. Strides are in
// elements; nil means row-major contiguous.
type View struct {
	Elem    format.ElementType
	Shape   Shape
	Strides []int
	Float32 []float32
	Float64 []float64
}

// Float32View describes data as a row-major float32 array of the given shape.
func Float32View(data []float32, shape ...int) View {
	return View{Elem: format.Float32, Shape: Shape(shape), Float32: data}
}

// Float64View describes data as a row-major float64 array of the given shape.
func Float64View(data []float64, shape ...int) View {
	return View{Elem: format.Float64, Shape: Shape(shape), Float64: data}
}

// WithStrides returns a copy of v with explicit element strides.
func (v View) WithStrides(strides ...int) View {
	v.Strides = strides
	return v
}

// EffectiveStrides returns the strides of v, computing row-major strides when none are set.
func (v View) EffectiveStrides() []int {
	if v.Strides == nil {
		return v.Shape.RowMajorStrides()
	}

	return v.Strides
}

// Permute returns a view of the same storage with its axes reordered: axis i of the
// result is axis axes[i] of v.
func (v View) Permute(axes ...int) (View, error) {
	if len(axes) != len(v.Shape) {
		return View{}, errs.New(errs.KindInvalidLayout, "permutation of %d axes for rank %d", len(axes), len(v.Shape))
	}

	strides := v.EffectiveStrides()
	out := v
	out.Shape = make(Shape, len(axes))
	out.Strides = make([]int, len(axes))
	seen := make([]bool, len(axes))
	for i, a := range axes {
		if a < 0 || a >= len(axes) || seen[a] {
			return View{}, errs.New(errs.KindInvalidLayout, "%v is not a permutation", axes)
		}
		seen[a] = true
		out.Shape[i] = v.Shape[a]
		out.Strides[i] = strides[a]
	}

	return out, nil
}

// Len returns the number of elements in the backing storage.
func (v View) Len() int {
	switch v.Elem {
	case format.Float32:
		return len(v.Float32)
	case format.Float64:
		return len(v.Float64)
	default:
		return 0
	}
}

// At returns the element at the given index, honouring strides.
func (v View) At(idx ...int) float64 {
	off := 0
	for i, s := range v.EffectiveStrides() {
		off += idx[i] * s
	}

	if v.Elem == format.Float64 {
		return v.Float64[off]
	}

	return float64(v.Float32[off])
}

// Array is an owned row-major array returned by decompression.
type Array struct {
	Elem    format.ElementType
	Shape   Shape
	Float32 []float32
	Float64 []float64
}

// New allocates a zeroed array.
func New(elem format.ElementType, shape Shape) Array {
	n, _ := shape.Elements()
	a := Array{Elem: elem, Shape: shape.Clone()}
	switch elem {
	case format.Float32:
		a.Float32 = make([]float32, n)
	case format.Float64:
		a.Float64 = make([]float64, n)
	}

	return a
}

// View returns a contiguous view of the array's storage.
func (a Array) View() View {
	return View{Elem: a.Elem, Shape: a.Shape, Float32: a.Float32, Float64: a.Float64}
}

// Len returns the number of elements.
func (a Array) Len() int {
	return a.View().Len()
}

// At returns the element at the given index.
func (a Array) At(idx ...int) float64 {
	return a.View().At(idx...)
}

// Values returns the elements widened to float64, in row-major order.
func (a Array) Values() []float64 {
	if a.Elem == format.Float64 {
		return slices.Clone(a.Float64)
	}

	out := make([]float64, len(a.Float32))
	for i, v := range a.Float32 {
		out[i] = float64(v)
	}

	return out
}
