package section

const (
	// Magic identifies an ebcc blob, stored little-endian in bytes 0-1.
	Magic uint16 = 0xEBCC
	// Version is the only container version this package writes and reads.
	Version uint8 = 1

	// Flag bits (byte 3)
	FlagShapeEmbedded = 0x01 // metadata carries the logical shape
	FlagDimOrder      = 0x02 // metadata carries a non-identity dim order
	flagKnownMask     = FlagShapeEmbedded | FlagDimOrder
)

// offsets and sizes in the blob
const (
	HeaderSize = 24 // fixed header size in bytes

	magicOffset    = 0
	versionOffset  = 2
	flagOffset     = 3
	elemOffset     = 4
	rankOffset     = 5
	metaLenOffset  = 8
	checksumOffset = 12

	// MaxRank is the largest rank a blob can describe.
	MaxRank = 32
	// MaxMetadataSize bounds the metadata section; a full MaxRank shape and dim order fit easily.
	MaxMetadataSize = 1024
)

// metadata field numbers
const (
	fieldShape    = 1
	fieldDimOrder = 2
	fieldFrames   = 3
)
