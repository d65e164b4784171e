package codec

import (
	"slices"

	"go.uber.org/zap"

	"github.com/arloliu/ebcc/array"
	"github.com/arloliu/ebcc/errs"
	"github.com/arloliu/ebcc/format"
	"github.com/arloliu/ebcc/internal/bridge"
	"github.com/arloliu/ebcc/internal/options"
	"github.com/arloliu/ebcc/native"
	"github.com/arloliu/ebcc/section"
)

// Codec compresses and decompresses arrays through a native library.
//
// A Codec holds no native state between calls: every call creates its own native
// context and destroys it before returning. It is safe for concurrent use.
type Codec struct {
	lib    native.Library
	guard  *initGuard
	logger *zap.Logger

	compressLog   *zap.Logger
	decompressLog *zap.Logger
}

// Option configures a Codec.
type Option = options.Option[*Codec]

// WithLibrary selects the native library. The default is native.Reference().
func WithLibrary(lib native.Library) Option {
	return options.New(func(c *Codec) error {
		if lib == nil {
			return errs.New(errs.KindInvalidConfig, "nil native library")
		}
		c.lib = lib

		return nil
	})
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// New creates a Codec.
func New(opts ...Option) (*Codec, error) {
	c := &Codec{
		lib:    native.Reference(),
		logger: zap.NewNop(),
	}

	if err := options.Apply(c, opts...); err != nil {
		return nil, err
	}

	c.guard = guardFor(c.lib)
	base := c.logger.Named("ebcc")
	c.compressLog = base.Named("compress").With(zap.String("library", c.lib.Name()))
	c.decompressLog = base.Named("decompress").With(zap.String("library", c.lib.Name()))

	return c, nil
}

// Library returns the native library used by c.
func (c *Codec) Library() native.Library {
	return c.lib
}

// Compress encodes v under cfg and returns an owned blob.
//
// The configuration and the view are fully validated before any native resource is
// acquired. On failure no blob is returned and every native allocation made during
// the call has been released.
func (c *Codec) Compress(v array.View, cfg *CompressionConfig) ([]byte, error) {
	if !cfg.Valid() {
		return nil, errs.New(errs.KindInvalidConfig, "configuration was not built by NewCompressionConfig")
	}

	log := c.compressLog
	order := cfg.normalizedDimOrder()

	staged, err := bridge.ToNative(v, order, c.lib.Capabilities())
	if err != nil {
		log.Debug("input rejected", zap.Stringer("shape", v.Shape), zap.Stringer("elem", v.Elem), zap.Error(err))
		return nil, err
	}
	defer staged.Release()

	params := cfg.ToNativeParams(staged.Dims)
	log.Debug("compress",
		zap.Stringer("shape", v.Shape),
		zap.Stringer("elem", v.Elem),
		zap.Uint64s("dims", staged.Dims[:]),
		zap.Bool("staged_copy", staged.Copied),
		zap.Stringer("residual", cfg.Residual()),
	)

	hdr := section.NewHeader(v.Elem, v.Shape.Rank())
	meta := section.Metadata{DimOrder: order, Frames: staged.Dims[0]}
	if cfg.EmbedShape() {
		meta.Shape = slices.Clone(v.Shape)
	}

	var blob []byte
	err = withHandle(c.lib, c.guard, log, func(h *handle) error {
		out, err := h.encode(staged.Input, &params)
		if err != nil {
			return err
		}

		bridge.Consume(c.lib, out, func(payload []byte) {
			blob = section.AppendBlob(make([]byte, 0, section.HeaderSize+64+len(payload)), *hdr, meta, payload)
		})

		return nil
	})
	if err != nil {
		log.Debug("compress failed", zap.Error(err))
		return nil, err
	}

	log.Debug("compressed", zap.Int("bytes", len(blob)), zap.Int("input_bytes", len(staged.Input.Data)))

	return blob, nil
}

// DecompressOption configures a single decompression.
type DecompressOption = options.Option[*decompressOptions]

type decompressOptions struct {
	hint array.Shape
}

// WithShapeHint supplies the logical shape of the array. It is required for blobs
// written without an embedded shape; for other blobs it is checked against the
// embedded shape.
func WithShapeHint(shape ...int) DecompressOption {
	return options.NoError(func(o *decompressOptions) {
		o.hint = array.Shape(slices.Clone(shape))
	})
}

// plan is a validated decompression, computed before any native resource is acquired.
type plan struct {
	elem        format.ElementType
	shape       array.Shape
	nativeShape array.Shape
	dimOrder    []int
	payload     []byte
}

func (c *Codec) plan(blob []byte, hint array.Shape) (plan, error) {
	parsed, err := section.Parse(blob)
	if err != nil {
		return plan{}, err
	}

	hdr, meta := parsed.Header, parsed.Metadata
	if !c.lib.Capabilities().Accepts(hdr.Elem) {
		return plan{}, errs.New(errs.KindUnsupportedElementType, "library %s cannot decode %s", c.lib.Name(), hdr.Elem)
	}

	var shape array.Shape
	switch {
	case hdr.Flag.HasShape():
		shape = array.Shape(meta.Shape)
		if hint != nil && !hint.Equal(shape) {
			return plan{}, errs.New(errs.KindShapeMismatch, "shape hint %s, blob shape %s", hint, shape)
		}
	case hint == nil:
		return plan{}, errs.New(errs.KindMissingShapeHint, "blob has no embedded shape")
	default:
		shape = hint
	}

	if shape.Rank() != int(hdr.Rank) {
		return plan{}, errs.New(errs.KindShapeMismatch, "shape %s has rank %d, blob rank is %d", shape, shape.Rank(), hdr.Rank)
	}

	for _, d := range shape {
		if d <= 0 {
			return plan{}, errs.New(errs.KindShapeMismatch, "shape %s has a non-positive extent", shape)
		}
	}

	if _, ok := shape.Elements(); !ok {
		return plan{}, errs.New(errs.KindShapeMismatch, "element count of shape %s overflows", shape)
	}

	nativeShape := bridge.NativeShape(shape, meta.DimOrder)
	if frames := bridge.NativeDims(nativeShape)[0]; frames != meta.Frames {
		return plan{}, errs.New(errs.KindShapeMismatch, "shape %s gives %d native frames, blob has %d", shape, frames, meta.Frames)
	}

	return plan{
		elem:        hdr.Elem,
		shape:       shape,
		nativeShape: nativeShape,
		dimOrder:    meta.DimOrder,
		payload:     parsed.Payload,
	}, nil
}

// Decompress decodes blob into a newly allocated array of its logical shape.
//
// Container problems are reported as CorruptBlob and shape problems as
// MissingShapeHint or ShapeMismatch, all before any native resource is acquired.
func (c *Codec) Decompress(blob []byte, opts ...DecompressOption) (array.Array, error) {
	o := &decompressOptions{}
	if err := options.Apply(o, opts...); err != nil {
		return array.Array{}, err
	}

	log := c.decompressLog
	p, err := c.plan(blob, o.hint)
	if err != nil {
		log.Debug("blob rejected", zap.Int("bytes", len(blob)), zap.Error(err))
		return array.Array{}, err
	}

	log.Debug("decompress", zap.Stringer("shape", p.shape), zap.Stringer("elem", p.elem), zap.Int("bytes", len(blob)))

	var result array.Array
	err = withHandle(c.lib, c.guard, log, func(h *handle) error {
		out, err := h.decode(p.payload)
		if err != nil {
			return err
		}

		result, err = bridge.FromNative(c.lib, out, p.elem, p.nativeShape, p.dimOrder)

		return err
	})
	if err != nil {
		log.Debug("decompress failed", zap.Error(err))
		return array.Array{}, err
	}

	return result, nil
}

// DecompressInto decodes blob into dst. A blob without embedded shape takes the shape
// of dst; otherwise dst must have the embedded shape. dst may be strided as long as
// its strides form a packed layout. dst is written only when the call succeeds.
func (c *Codec) DecompressInto(blob []byte, dst array.View, opts ...DecompressOption) error {
	o := &decompressOptions{}
	if err := options.Apply(o, opts...); err != nil {
		return err
	}

	hint := o.hint
	if hint == nil {
		hint = dst.Shape
	}

	log := c.decompressLog
	p, err := c.plan(blob, hint)
	if err != nil {
		log.Debug("blob rejected", zap.Int("bytes", len(blob)), zap.Error(err))
		return err
	}

	if err := bridge.CheckDestination(dst, p.elem, p.shape); err != nil {
		return err
	}

	log.Debug("decompress into", zap.Stringer("shape", p.shape), zap.Stringer("elem", p.elem), zap.Int("bytes", len(blob)))

	err = withHandle(c.lib, c.guard, log, func(h *handle) error {
		out, err := h.decode(p.payload)
		if err != nil {
			return err
		}

		return bridge.FromNativeInto(c.lib, out, p.elem, p.nativeShape, p.dimOrder, dst)
	})
	if err != nil {
		log.Debug("decompress failed", zap.Error(err))
	}

	return err
}
