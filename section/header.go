package section

import (
	"github.com/arloliu/ebcc/endian"
	"github.com/arloliu/ebcc/errs"
	"github.com/arloliu/ebcc/format"
)

var le = endian.GetLittleEndianEngine()

// Flag is the packed option byte of a blob header.
type Flag uint8

// HasShape reports whether the metadata carries the logical shape.
func (f Flag) HasShape() bool { return f&FlagShapeEmbedded != 0 }

// HasDimOrder reports whether the metadata carries a dim order.
func (f Flag) HasDimOrder() bool { return f&FlagDimOrder != 0 }

// SetShapeEmbedded sets or clears the shape bit.
func (f *Flag) SetShapeEmbedded(on bool) { f.set(FlagShapeEmbedded, on) }

// SetDimOrder sets or clears the dim order bit.
func (f *Flag) SetDimOrder(on bool) { f.set(FlagDimOrder, on) }

func (f *Flag) set(bit Flag, on bool) {
	if on {
		*f |= bit
	} else {
		*f &^= bit
	}
}

// Validate rejects unknown flag bits.
func (f Flag) Validate() error {
	if f&^flagKnownMask != 0 {
		return errs.New(errs.KindCorruptBlob, "unknown flag bits 0x%02x", uint8(f&^flagKnownMask))
	}

	return nil
}

// Header is the fixed-size section at the start of every blob.
//
//	Bytes  | Field          | Type   | Description
//	-------|----------------|--------|-------------------------------------
//	0-1    | Magic          | uint16 | 0xEBCC
//	2      | Version        | uint8  | container version, 1
//	3      | Flag           | uint8  | shape embedded, dim order present
//	4      | Elem           | uint8  | format.ElementType of the array
//	5      | Rank           | uint8  | logical rank of the array
//	6-7    | reserved       |        | zero
//	8-11   | MetadataLength | uint32 | size of the metadata section
//	12-19  | Checksum       | uint64 | xxHash64 of metadata and payload
//	20-23  | reserved       |        | zero
type Header struct {
	Checksum       uint64
	MetadataLength uint32
	Flag           Flag
	Elem           format.ElementType
	Rank           uint8
}

// NewHeader creates a header for an array of the given element type and rank.
func NewHeader(elem format.ElementType, rank int) *Header {
	return &Header{Elem: elem, Rank: uint8(rank)} //nolint: gosec
}

// Parse parses the header from the first HeaderSize bytes of data.
func (h *Header) Parse(data []byte) error {
	if len(data) < HeaderSize {
		return errs.New(errs.KindCorruptBlob, "blob holds %d bytes, header needs %d", len(data), HeaderSize)
	}

	if magic := le.Uint16(data[magicOffset:]); magic != Magic {
		return errs.New(errs.KindCorruptBlob, "bad magic 0x%04x", magic)
	}

	if v := data[versionOffset]; v != Version {
		return errs.New(errs.KindCorruptBlob, "unsupported version %d", v)
	}

	h.Flag = Flag(data[flagOffset])
	h.Elem = format.ElementType(data[elemOffset])
	h.Rank = data[rankOffset]
	h.MetadataLength = le.Uint32(data[metaLenOffset:])
	h.Checksum = le.Uint64(data[checksumOffset:])

	return h.Validate()
}

// Validate checks the fields that do not depend on the rest of the blob.
func (h *Header) Validate() error {
	if err := h.Flag.Validate(); err != nil {
		return err
	}

	if h.Elem.Size() == 0 {
		return errs.New(errs.KindCorruptBlob, "unknown element type %d", uint8(h.Elem))
	}

	if h.Rank < 2 || h.Rank > MaxRank {
		return errs.New(errs.KindCorruptBlob, "rank %d outside [2, %d]", h.Rank, MaxRank)
	}

	if h.MetadataLength > MaxMetadataSize {
		return errs.New(errs.KindCorruptBlob, "metadata length %d exceeds %d", h.MetadataLength, MaxMetadataSize)
	}

	return nil
}

// AppendTo appends the serialized header to dst.
func (h *Header) AppendTo(dst []byte) []byte {
	dst = le.AppendUint16(dst, Magic)
	dst = append(dst, Version, byte(h.Flag), byte(h.Elem), h.Rank, 0, 0)
	dst = le.AppendUint32(dst, h.MetadataLength)
	dst = le.AppendUint64(dst, h.Checksum)
	dst = append(dst, 0, 0, 0, 0)

	return dst
}

// Bytes serializes the header into a new slice.
func (h *Header) Bytes() []byte {
	return h.AppendTo(make([]byte, 0, HeaderSize))
}
