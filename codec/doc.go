// Package codec is the high-level API of the ebcc bindings.
//
// A Codec validates compression parameters and arrays, owns the native context of
// each call and turns native status codes into errs.Error values.
//
// # Basic Usage
//
//	c, _ := codec.New(codec.WithLogger(logger))
//
//	cfg, err := codec.MaxAbsoluteErrorConfig(30, 0.01)
//	if err != nil {
//	    return err
//	}
//
//	blob, err := c.Compress(array.Float32View(field, 721, 1440), cfg)
//	if err != nil {
//	    return err
//	}
//
//	restored, err := c.Decompress(blob)
//
// # Call Lifecycle
//
// Compress runs, in order: configuration check, array validation, context acquire,
// native encode, copy-out and buffer free, context release. Decompress parses the blob
// container and resolves the logical shape before acquiring a context. Validation
// errors therefore never touch native state, and the context of a call is destroyed
// exactly once whatever the outcome.
//
// # Shapes
//
// By default the logical shape is stored in the blob and a shape hint is optional.
// With WithEmbeddedShape(false) the blob only records the native frame count and the
// caller must pass WithShapeHint, or use DecompressInto, to decompress it.
package codec
