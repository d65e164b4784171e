// Package section defines the binary container that wraps a native ebcc payload.
//
// The native codec only knows three dimensions and one element stream. The container
// records what the binding layer needs to rebuild the caller's array: the element
// type, the logical rank, optionally the logical shape and the dim order, and the
// native frame count.
//
// # Blob Structure
//
//	┌─────────────────────────────────────────────────────────┐
//	│ Header (24 bytes, fixed)                                │
//	│  - Magic, version, flags, element type, rank            │
//	│  - Metadata length (4 bytes)                            │
//	│  - xxHash64 of metadata and payload (8 bytes)           │
//	├─────────────────────────────────────────────────────────┤
//	│ Metadata (variable, protobuf wire format)               │
//	│  - Shape (optional), dim order (optional), frames       │
//	├─────────────────────────────────────────────────────────┤
//	│ Native payload (variable)                               │
//	│  - Bytes produced by the native encoder                 │
//	└─────────────────────────────────────────────────────────┘
//
// All multi-byte header fields are little-endian regardless of the host.
//
// # Flag Format
//
//	Bit 0: shape embedded (0=shape hint required at decompress, 1=present)
//	Bit 1: dim order present (0=identity, 1=present)
//	Bits 2-7: reserved, must be 0
//
// # Usage
//
//	h := section.NewHeader(format.Float32, 2)
//	blob := section.AppendBlob(nil, *h, section.Metadata{Shape: []int{64, 64}, Frames: 1}, payload)
//
//	parsed, err := section.Parse(blob)
//	if err != nil {
//	    // errors.Is(err, errs.ErrCorruptBlob)
//	}
//
// Every parse failure is reported as errs.KindCorruptBlob.
package section
