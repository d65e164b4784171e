package codec

import (
	"math"
	"slices"

	"github.com/arloliu/ebcc/errs"
	"github.com/arloliu/ebcc/format"
	"github.com/arloliu/ebcc/internal/options"
	"github.com/arloliu/ebcc/native"
)

// Quality bounds: the quantization bit depth of the base layer.
const (
	MinQuality = 2
	MaxQuality = 24
)

const (
	// DefaultBaseCR is the base layer compression ratio used when none is given.
	DefaultBaseCR = 10
	// DefaultEntropy is the entropy stage used when none is given.
	DefaultEntropy = format.CompressionZstd

	// residualCR is fixed by the native codec and passed through unchanged.
	residualCR = 1.0
)

// CompressionConfig is a validated, immutable set of compression parameters.
//
// Construct it with NewCompressionConfig or one of the preset constructors; the zero
// value is not valid.
type CompressionConfig struct {
	residual   format.ResidualType
	errorBound float64
	baseCR     float64
	quality    int
	dimOrder   []int
	entropy    format.CompressionType
	embedShape bool
	valid      bool
}

// ConfigOption configures a CompressionConfig under construction.
type ConfigOption = options.Option[*CompressionConfig]

// NewCompressionConfig builds a configuration from defaults (base-only, base CR 10,
// zstd entropy stage, embedded shape) and opts, then validates it.
//
// Every rule violation is reported as errs.KindInvalidConfig before any native call:
//   - error bound NaN, infinite or negative, or zero for the error-bounded modes
//   - base compression ratio NaN, infinite or not positive
//   - quality outside [MinQuality, MaxQuality]
//   - dim order that is not a permutation of 0..n-1
//   - unknown residual type or entropy codec
func NewCompressionConfig(opts ...ConfigOption) (*CompressionConfig, error) {
	cfg := &CompressionConfig{
		residual:   format.ResidualNone,
		baseCR:     DefaultBaseCR,
		entropy:    DefaultEntropy,
		embedShape: true,
	}

	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.valid = true

	return cfg, nil
}

// DefaultConfig returns the default configuration: base layer only at ratio 10.
func DefaultConfig() *CompressionConfig {
	cfg, _ := NewCompressionConfig()
	return cfg
}

// BaseOnlyConfig returns a configuration without residual layer.
func BaseOnlyConfig(baseCR float64) (*CompressionConfig, error) {
	return NewCompressionConfig(WithBaseCR(baseCR))
}

// MaxAbsoluteErrorConfig returns a configuration bounding the absolute error of every
// element by errorBound.
func MaxAbsoluteErrorConfig(baseCR, errorBound float64) (*CompressionConfig, error) {
	return NewCompressionConfig(WithBaseCR(baseCR), WithResidual(format.ResidualMaxError), WithErrorBound(errorBound))
}

// RelativeErrorConfig returns a configuration bounding the error of every element by
// errorBound times the value range of the array.
func RelativeErrorConfig(baseCR, errorBound float64) (*CompressionConfig, error) {
	return NewCompressionConfig(WithBaseCR(baseCR), WithResidual(format.ResidualRelativeError), WithErrorBound(errorBound))
}

// WithResidual sets the residual layer mode.
func WithResidual(mode format.ResidualType) ConfigOption {
	return options.NoError(func(c *CompressionConfig) {
		c.residual = mode
	})
}

// WithErrorBound sets the error bound of the residual layer.
func WithErrorBound(bound float64) ConfigOption {
	return options.NoError(func(c *CompressionConfig) {
		c.errorBound = bound
	})
}

// WithBaseCR sets the target compression ratio of the base layer.
func WithBaseCR(ratio float64) ConfigOption {
	return options.NoError(func(c *CompressionConfig) {
		c.baseCR = ratio
	})
}

// WithQuality sets the base layer bit depth explicitly, overriding the depth derived
// from the base compression ratio.
func WithQuality(level int) ConfigOption {
	return options.NoError(func(c *CompressionConfig) {
		c.quality = level
	})
}

// WithDimOrder reorders the array axes before they reach the native codec: native axis
// i is logical axis order[i]. The last two native axes must be at least 32 long. The
// order is recorded in the blob and undone on decompression.
func WithDimOrder(order ...int) ConfigOption {
	return options.NoError(func(c *CompressionConfig) {
		c.dimOrder = slices.Clone(order)
	})
}

// WithEntropy selects the lossless stage applied by the reference codec.
func WithEntropy(comp format.CompressionType) ConfigOption {
	return options.NoError(func(c *CompressionConfig) {
		c.entropy = comp
	})
}

// WithEmbeddedShape chooses whether the blob records the logical shape. Blobs without
// an embedded shape need a shape hint to be decompressed.
func WithEmbeddedShape(embed bool) ConfigOption {
	return options.NoError(func(c *CompressionConfig) {
		c.embedShape = embed
	})
}

func (c *CompressionConfig) validate() error {
	if math.IsNaN(c.errorBound) || math.IsInf(c.errorBound, 0) || c.errorBound < 0 {
		return errs.New(errs.KindInvalidConfig, "error bound must be finite and non-negative, got %v", c.errorBound)
	}

	if math.IsNaN(c.baseCR) || math.IsInf(c.baseCR, 0) || c.baseCR <= 0 {
		return errs.New(errs.KindInvalidConfig, "base compression ratio must be finite and positive, got %v", c.baseCR)
	}

	if c.baseCR > math.MaxFloat32 || c.errorBound > math.MaxFloat32 {
		return errs.New(errs.KindInvalidConfig, "parameters must fit in float32")
	}

	switch c.residual {
	case format.ResidualNone:
	case format.ResidualMaxError, format.ResidualRelativeError:
		if float32(c.errorBound) <= 0 {
			return errs.New(errs.KindInvalidConfig, "error bound must be positive for %s", c.residual)
		}
	default:
		return errs.New(errs.KindInvalidConfig, "unknown residual type %d", uint8(c.residual))
	}

	if c.quality != 0 && (c.quality < MinQuality || c.quality > MaxQuality) {
		return errs.New(errs.KindInvalidConfig, "quality %d outside [%d, %d]", c.quality, MinQuality, MaxQuality)
	}

	if c.dimOrder != nil && !isPermutation(c.dimOrder) {
		return errs.New(errs.KindInvalidConfig, "dim order %v is not a permutation", c.dimOrder)
	}

	switch c.entropy {
	case format.CompressionNone, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4:
	default:
		return errs.New(errs.KindInvalidConfig, "unknown entropy codec %d", uint8(c.entropy))
	}

	return nil
}

func isPermutation(order []int) bool {
	seen := make([]bool, len(order))
	for _, a := range order {
		if a < 0 || a >= len(order) || seen[a] {
			return false
		}
		seen[a] = true
	}

	return true
}

// Valid reports whether c was produced by a successful constructor.
func (c *CompressionConfig) Valid() bool { return c != nil && c.valid }

// Residual returns the residual layer mode.
func (c *CompressionConfig) Residual() format.ResidualType { return c.residual }

// ErrorBound returns the residual error bound.
func (c *CompressionConfig) ErrorBound() float64 { return c.errorBound }

// BaseCR returns the base layer compression ratio.
func (c *CompressionConfig) BaseCR() float64 { return c.baseCR }

// Quality returns the explicit base layer bit depth, or 0 when derived from BaseCR.
func (c *CompressionConfig) Quality() int { return c.quality }

// DimOrder returns a copy of the dim order, or nil for identity.
func (c *CompressionConfig) DimOrder() []int { return slices.Clone(c.dimOrder) }

// Entropy returns the entropy stage codec.
func (c *CompressionConfig) Entropy() format.CompressionType { return c.entropy }

// EmbedShape reports whether blobs record the logical shape.
func (c *CompressionConfig) EmbedShape() bool { return c.embedShape }

// normalizedDimOrder returns the dim order, or nil when it is the identity.
func (c *CompressionConfig) normalizedDimOrder() []int {
	for i, a := range c.dimOrder {
		if a != i {
			return c.dimOrder
		}
	}

	return nil
}

// ToNativeParams translates the configuration into the native parameter struct for
// the given native (frames, height, width) dims. It is pure and never fails; the error
// bound is zero for the base-only mode.
func (c *CompressionConfig) ToNativeParams(dims [3]uint64) native.CodecConfig {
	p := native.CodecConfig{
		Dims:         dims,
		BaseCR:       float32(c.baseCR),
		ResidualType: c.residual,
		ResidualCR:   residualCR,
		Quality:      uint8(c.quality), //nolint: gosec
		Entropy:      c.entropy,
	}

	if c.residual.IsBounded() {
		p.Error = float32(c.errorBound)
	}

	return p
}
