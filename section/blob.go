package section

import (
	"github.com/arloliu/ebcc/errs"
	"github.com/arloliu/ebcc/internal/hash"
)

// Blob is a parsed blob. Payload aliases the slice it was parsed from.
type Blob struct {
	Header   Header
	Metadata Metadata
	Payload  []byte
}

// AppendBlob appends a complete blob to dst: the header with its flags, metadata length
// and checksum filled in from meta and payload, then the metadata, then payload.
func AppendBlob(dst []byte, h Header, meta Metadata, payload []byte) []byte {
	h.Flag.SetShapeEmbedded(len(meta.Shape) > 0)
	h.Flag.SetDimOrder(len(meta.DimOrder) > 0)

	start := len(dst)
	dst = append(dst, make([]byte, HeaderSize)...)
	dst = meta.AppendTo(dst)
	metaBytes := dst[start+HeaderSize:]

	h.MetadataLength = uint32(len(metaBytes)) //nolint: gosec
	h.Checksum = hash.Checksum(metaBytes, payload)
	// header is written in place over the reserved bytes
	h.AppendTo(dst[start:start])

	return append(dst, payload...)
}

// Parse validates data as a blob and splits it into its sections.
//
// All failures are KindCorruptBlob: an empty or short slice, a bad magic number or
// version, unknown flags, a metadata section that runs past the end of data, a
// checksum mismatch, or metadata that disagrees with the header.
func Parse(data []byte) (Blob, error) {
	if len(data) == 0 {
		return Blob{}, errs.New(errs.KindCorruptBlob, "empty blob")
	}

	var b Blob
	if err := b.Header.Parse(data); err != nil {
		return Blob{}, err
	}

	metaEnd := HeaderSize + int(b.Header.MetadataLength)
	if metaEnd > len(data) {
		return Blob{}, errs.New(errs.KindCorruptBlob, "metadata section ends at %d, blob holds %d bytes", metaEnd, len(data))
	}

	metaBytes := data[HeaderSize:metaEnd]
	b.Payload = data[metaEnd:]
	if len(b.Payload) == 0 {
		return Blob{}, errs.New(errs.KindCorruptBlob, "blob has no payload")
	}

	if sum := hash.Checksum(metaBytes, b.Payload); sum != b.Header.Checksum {
		return Blob{}, errs.New(errs.KindCorruptBlob, "checksum mismatch: stored %016x, computed %016x", b.Header.Checksum, sum)
	}

	meta, err := ParseMetadata(metaBytes, &b.Header)
	if err != nil {
		return Blob{}, err
	}
	b.Metadata = meta

	return b, nil
}
