package format

type (
	ElementType     uint8
	ResidualType    uint8
	CompressionType uint8
)

const (
	ElementInvalid ElementType = 0x0 // ElementInvalid is the zero value and is never accepted.
	Float32        ElementType = 0x1 // Float32 represents IEEE-754 single precision values.
	Float64        ElementType = 0x2 // Float64 represents IEEE-754 double precision values.
	Int32          ElementType = 0x3 // Int32 represents signed 32-bit integers, not accepted by the codec.
	Uint8          ElementType = 0x4 // Uint8 represents raw bytes, not accepted by the codec.

	ResidualNone          ResidualType = 0x0 // ResidualNone applies only the lossy base layer.
	ResidualMaxError      ResidualType = 0x1 // ResidualMaxError bounds the absolute per-element error.
	ResidualRelativeError ResidualType = 0x2 // ResidualRelativeError bounds the error relative to the data range.

	CompressionNone CompressionType = 0x1 // CompressionNone represents no entropy stage.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

// Size returns the size in bytes of one element, or 0 for unknown types.
func (e ElementType) Size() int {
	switch e {
	case Float32, Int32:
		return 4
	case Float64:
		return 8
	case Uint8:
		return 1
	default:
		return 0
	}
}

// IsFloat reports whether the element type is one of the floating point types.
func (e ElementType) IsFloat() bool {
	return e == Float32 || e == Float64
}

func (e ElementType) String() string {
	switch e {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Uint8:
		return "uint8"
	default:
		return "Unknown"
	}
}

// IsBounded reports whether the residual layer enforces an error bound.
func (r ResidualType) IsBounded() bool {
	return r == ResidualMaxError || r == ResidualRelativeError
}

func (r ResidualType) String() string {
	switch r {
	case ResidualNone:
		return "None"
	case ResidualMaxError:
		return "MaxError"
	case ResidualRelativeError:
		return "RelativeError"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}
