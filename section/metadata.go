package section

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/arloliu/ebcc/errs"
)

// Metadata is the variable-size section between the header and the native payload,
// encoded in the protobuf wire format:
//
//	field 1: packed varint logical shape (only when the shape is embedded)
//	field 2: packed varint dim order (only when it is not the identity)
//	field 3: varint native frame count
//
// Unknown fields are skipped on parse.
type Metadata struct {
	Shape    []int
	DimOrder []int
	Frames   uint64
}

// AppendTo appends the encoded metadata to dst.
func (m *Metadata) AppendTo(dst []byte) []byte {
	dst = appendPacked(dst, fieldShape, m.Shape)
	dst = appendPacked(dst, fieldDimOrder, m.DimOrder)
	dst = protowire.AppendTag(dst, fieldFrames, protowire.VarintType)
	dst = protowire.AppendVarint(dst, m.Frames)

	return dst
}

func appendPacked(dst []byte, num protowire.Number, values []int) []byte {
	if len(values) == 0 {
		return dst
	}

	size := 0
	for _, v := range values {
		size += protowire.SizeVarint(uint64(v)) //nolint: gosec
	}

	dst = protowire.AppendTag(dst, num, protowire.BytesType)
	dst = protowire.AppendVarint(dst, uint64(size)) //nolint: gosec
	for _, v := range values {
		dst = protowire.AppendVarint(dst, uint64(v)) //nolint: gosec
	}

	return dst
}

// ParseMetadata decodes a metadata section written for a blob with the given header.
//
// The decoded fields must agree with the header flags: the shape is present exactly
// when the shape bit is set, the dim order exactly when the dim order bit is set, and
// both have Rank entries.
func ParseMetadata(data []byte, h *Header) (Metadata, error) {
	var m Metadata
	var seenFrames bool

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Metadata{}, metadataError(n)
		}
		data = data[n:]

		switch {
		case num == fieldShape && typ == protowire.BytesType:
			values, n, err := consumePacked(data)
			if err != nil {
				return Metadata{}, err
			}
			m.Shape = values
			data = data[n:]
		case num == fieldDimOrder && typ == protowire.BytesType:
			values, n, err := consumePacked(data)
			if err != nil {
				return Metadata{}, err
			}
			m.DimOrder = values
			data = data[n:]
		case num == fieldFrames && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return Metadata{}, metadataError(n)
			}
			m.Frames = v
			seenFrames = true
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Metadata{}, metadataError(n)
			}
			data = data[n:]
		}
	}

	if !seenFrames || m.Frames == 0 {
		return Metadata{}, errs.New(errs.KindCorruptBlob, "metadata has no frame count")
	}

	rank := int(h.Rank)
	if h.Flag.HasShape() != (m.Shape != nil) {
		return Metadata{}, errs.New(errs.KindCorruptBlob, "shape presence disagrees with header flag")
	}

	if m.Shape != nil {
		if len(m.Shape) != rank {
			return Metadata{}, errs.New(errs.KindCorruptBlob, "shape has %d extents, header rank is %d", len(m.Shape), rank)
		}
		for i, d := range m.Shape {
			if d <= 0 {
				return Metadata{}, errs.New(errs.KindCorruptBlob, "shape extent %d is %d", i, d)
			}
		}
	}

	if h.Flag.HasDimOrder() != (m.DimOrder != nil) {
		return Metadata{}, errs.New(errs.KindCorruptBlob, "dim order presence disagrees with header flag")
	}

	if m.DimOrder != nil && !IsPermutation(m.DimOrder, rank) {
		return Metadata{}, errs.New(errs.KindCorruptBlob, "dim order %v is not a permutation of rank %d", m.DimOrder, rank)
	}

	return m, nil
}

// consumePacked reads a length-delimited run of varints and returns the bytes consumed.
func consumePacked(data []byte) ([]int, int, error) {
	packed, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, 0, metadataError(n)
	}

	values := make([]int, 0, MaxRank)
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return nil, 0, metadataError(m)
		}
		if v > maxExtent || len(values) == MaxRank {
			return nil, 0, errs.New(errs.KindCorruptBlob, "packed metadata field out of range")
		}
		values = append(values, int(v))
		packed = packed[m:]
	}

	return values, n, nil
}

// maxExtent keeps decoded extents far from int overflow on 64-bit hosts.
const maxExtent = 1 << 40

func metadataError(n int) error {
	return errs.Wrap(errs.KindCorruptBlob, protowire.ParseError(n), "metadata")
}

// IsPermutation reports whether order is a permutation of 0..rank-1.
func IsPermutation(order []int, rank int) bool {
	if len(order) != rank {
		return false
	}

	var seen [MaxRank]bool
	for _, d := range order {
		if d < 0 || d >= rank || d >= MaxRank || seen[d] {
			return false
		}
		seen[d] = true
	}

	return true
}

// IsIdentity reports whether order maps every axis to itself.
func IsIdentity(order []int) bool {
	for i, d := range order {
		if d != i {
			return false
		}
	}

	return true
}
