package native

import (
	"math"
	"testing"

	"github.com/arloliu/ebcc/endian"
	"github.com/arloliu/ebcc/format"
	"github.com/stretchr/testify/require"
)

func newInitialized(t *testing.T) *ReferenceLibrary {
	t.Helper()

	lib := NewReference()
	require.Equal(t, StatusOK, lib.Init())

	return lib
}

func rampField(n int) []float32 {
	values := make([]float32, n)
	for i := range values {
		values[i] = float32(math.Sin(float64(i)*0.1) * 100)
	}

	return values
}

func float32Input(values []float32) InputBuffer {
	buf := make([]byte, len(values)*4)
	endian.PutFloat32s(endian.NativeEngine(), buf, values)

	return InputBuffer{Elem: format.Float32, Data: buf}
}

func decodeFloat32(t *testing.T, buf OutputBuffer) []float32 {
	t.Helper()

	require.Equal(t, format.Float32, buf.Elem)
	out := make([]float32, len(buf.Data)/4)
	endian.Float32s(endian.NativeEngine(), out, buf.Data)

	return out
}

func defaultConfig(dims [3]uint64) *CodecConfig {
	return &CodecConfig{
		Dims:         dims,
		BaseCR:       15,
		ResidualType: format.ResidualMaxError,
		ResidualCR:   1,
		Error:        0.1,
		Entropy:      format.CompressionZstd,
	}
}

func TestStatus(t *testing.T) {
	require.True(t, StatusOK.Known())
	require.True(t, StatusInvalidContext.Known())
	require.False(t, Status(-1).Known())
	require.False(t, Status(42).Known())
	require.Equal(t, "corrupt stream", StatusCorruptStream.String())
	require.Equal(t, "status(42)", Status(42).String())
}

func TestCodecConfig_Elements(t *testing.T) {
	cfg := CodecConfig{Dims: [3]uint64{2, 32, 64}}
	n, ok := cfg.Elements()
	require.True(t, ok)
	require.Equal(t, uint64(4096), n)

	cfg.Dims = [3]uint64{math.MaxUint64, 32, 32}
	_, ok = cfg.Elements()
	require.False(t, ok)
}

func TestReference_RequiresInit(t *testing.T) {
	lib := NewReference()

	_, status := lib.NewContext()
	require.Equal(t, StatusInitFailed, status)

	require.Equal(t, StatusOK, lib.Init())
	ctx, status := lib.NewContext()
	require.Equal(t, StatusOK, status)
	require.NotZero(t, ctx)
	require.Equal(t, StatusOK, lib.FreeContext(ctx))
	require.Equal(t, StatusInvalidContext, lib.FreeContext(ctx))

	stats := lib.Stats()
	require.Equal(t, int64(1), stats.Inits)
	require.Zero(t, stats.LiveContexts())
}

func TestReference_RoundTrip(t *testing.T) {
	lib := newInitialized(t)
	ctx, status := lib.NewContext()
	require.Equal(t, StatusOK, status)
	defer lib.FreeContext(ctx)

	values := rampField(2 * 32 * 48)
	cfg := defaultConfig([3]uint64{2, 32, 48})

	for _, entropy := range []format.CompressionType{
		format.CompressionNone, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4,
	} {
		t.Run(entropy.String(), func(t *testing.T) {
			cfg.Entropy = entropy

			encoded, status := lib.Encode(ctx, float32Input(values), cfg)
			require.Equal(t, StatusOK, status)
			require.False(t, encoded.IsNull())
			require.Equal(t, format.ElementInvalid, encoded.Elem)

			stream := append([]byte(nil), encoded.Data...)
			lib.FreeBuffer(encoded)

			decoded, status := lib.Decode(ctx, stream)
			require.Equal(t, StatusOK, status)
			out := decodeFloat32(t, decoded)
			lib.FreeBuffer(decoded)

			require.Len(t, out, len(values))
			for i := range values {
				require.LessOrEqual(t, math.Abs(float64(values[i])-float64(out[i])), float64(cfg.Error))
			}
		})
	}

	stats := lib.Stats()
	require.Zero(t, stats.LiveBuffers())
	require.Zero(t, stats.InvalidFrees)
}

func TestReference_Float64(t *testing.T) {
	lib := newInitialized(t)
	ctx, _ := lib.NewContext()
	defer lib.FreeContext(ctx)

	values := make([]float64, 32*32)
	for i := range values {
		values[i] = 1e6 + float64(i)*1e-3
	}
	in := InputBuffer{Elem: format.Float64, Data: make([]byte, len(values)*8)}
	endian.PutFloat64s(endian.NativeEngine(), in.Data, values)

	cfg := defaultConfig([3]uint64{1, 32, 32})
	cfg.Error = 1e-4

	encoded, status := lib.Encode(ctx, in, cfg)
	require.Equal(t, StatusOK, status)
	stream := append([]byte(nil), encoded.Data...)
	lib.FreeBuffer(encoded)

	decoded, status := lib.Decode(ctx, stream)
	require.Equal(t, StatusOK, status)
	require.Equal(t, format.Float64, decoded.Elem)

	out := make([]float64, len(values))
	endian.Float64s(endian.NativeEngine(), out, decoded.Data)
	lib.FreeBuffer(decoded)

	for i := range values {
		require.LessOrEqual(t, math.Abs(values[i]-out[i]), 1e-4)
	}
}

func TestReference_ModesAndConstantField(t *testing.T) {
	lib := newInitialized(t)
	ctx, _ := lib.NewContext()
	defer lib.FreeContext(ctx)

	t.Run("constant field is exact", func(t *testing.T) {
		values := make([]float32, 32*32)
		for i := range values {
			values[i] = 42
		}

		for _, residual := range []format.ResidualType{format.ResidualNone, format.ResidualMaxError, format.ResidualRelativeError} {
			cfg := defaultConfig([3]uint64{1, 32, 32})
			cfg.ResidualType = residual

			encoded, status := lib.Encode(ctx, float32Input(values), cfg)
			require.Equal(t, StatusOK, status)
			require.Less(t, len(encoded.Data), len(values)*4/2)
			stream := append([]byte(nil), encoded.Data...)
			lib.FreeBuffer(encoded)

			decoded, status := lib.Decode(ctx, stream)
			require.Equal(t, StatusOK, status)
			require.Equal(t, values, decodeFloat32(t, decoded))
			lib.FreeBuffer(decoded)
		}
	})

	t.Run("base layer only stays within a tenth of the range", func(t *testing.T) {
		values := make([]float32, 32*32)
		for i := range values {
			values[i] = float32(i) * 0.1
		}
		cfg := defaultConfig([3]uint64{1, 32, 32})
		cfg.ResidualType = format.ResidualNone
		cfg.BaseCR = 10

		encoded, status := lib.Encode(ctx, float32Input(values), cfg)
		require.Equal(t, StatusOK, status)
		stream := append([]byte(nil), encoded.Data...)
		lib.FreeBuffer(encoded)

		decoded, status := lib.Decode(ctx, stream)
		require.Equal(t, StatusOK, status)
		out := decodeFloat32(t, decoded)
		lib.FreeBuffer(decoded)

		dataRange := float64(values[len(values)-1] - values[0])
		for i := range values {
			require.Less(t, math.Abs(float64(values[i]-out[i])), dataRange*0.1)
		}
	})

	t.Run("relative bound scales with the range", func(t *testing.T) {
		values := rampField(32 * 32)
		cfg := defaultConfig([3]uint64{1, 32, 32})
		cfg.ResidualType = format.ResidualRelativeError
		cfg.Error = 0.001

		encoded, status := lib.Encode(ctx, float32Input(values), cfg)
		require.Equal(t, StatusOK, status)
		stream := append([]byte(nil), encoded.Data...)
		lib.FreeBuffer(encoded)

		decoded, status := lib.Decode(ctx, stream)
		require.Equal(t, StatusOK, status)
		out := decodeFloat32(t, decoded)
		lib.FreeBuffer(decoded)

		lo, hi := values[0], values[0]
		for _, v := range values {
			lo, hi = min(lo, v), max(hi, v)
		}
		bound := float64(cfg.Error) * float64(hi-lo)
		for i := range values {
			require.LessOrEqual(t, math.Abs(float64(values[i]-out[i])), bound+1e-6)
		}
	})
}

func TestReference_EncodeRejects(t *testing.T) {
	lib := newInitialized(t)
	ctx, _ := lib.NewContext()
	defer lib.FreeContext(ctx)

	valid := float32Input(make([]float32, 32*32))

	tests := []struct {
		name   string
		in     InputBuffer
		mutate func(*CodecConfig)
		want   Status
	}{
		{"zero dim", valid, func(c *CodecConfig) { c.Dims[0] = 0 }, StatusInvalidDims},
		{"small trailing", float32Input(make([]float32, 32*16)), func(c *CodecConfig) { c.Dims = [3]uint64{2, 16, 16} }, StatusInvalidDims},
		{"unsupported type", InputBuffer{Elem: format.Int32, Data: valid.Data}, nil, StatusUnsupportedType},
		{"short input", InputBuffer{Elem: format.Float32, Data: valid.Data[:100]}, nil, StatusInvalidArgument},
		{"bad base cr", valid, func(c *CodecConfig) { c.BaseCR = -1 }, StatusInvalidArgument},
		{"nan error", valid, func(c *CodecConfig) { c.Error = float32(math.NaN()) }, StatusInvalidArgument},
		{"bad quality", valid, func(c *CodecConfig) { c.Quality = 30 }, StatusInvalidArgument},
		{"bad entropy", valid, func(c *CodecConfig) { c.Entropy = 0x7F }, StatusInvalidArgument},
		{"bad residual", valid, func(c *CodecConfig) { c.ResidualType = 0x9 }, StatusInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig([3]uint64{1, 32, 32})
			if tt.mutate != nil {
				tt.mutate(cfg)
			}

			buf, status := lib.Encode(ctx, tt.in, cfg)
			require.Equal(t, tt.want, status)
			require.True(t, buf.IsNull())
			require.NotEmpty(t, lib.LastError(ctx))
		})
	}

	t.Run("non-finite value", func(t *testing.T) {
		values := make([]float32, 32*32)
		values[5] = float32(math.Inf(1))

		_, status := lib.Encode(ctx, float32Input(values), defaultConfig([3]uint64{1, 32, 32}))
		require.Equal(t, StatusInvalidArgument, status)
		require.Contains(t, lib.LastError(ctx), "index 5")
	})

	t.Run("unknown context", func(t *testing.T) {
		_, status := lib.Encode(Context(9999), valid, defaultConfig([3]uint64{1, 32, 32}))
		require.Equal(t, StatusInvalidContext, status)
	})

	require.Zero(t, lib.Stats().LiveBuffers())
}

func TestReference_DecodeRejectsCorruptStreams(t *testing.T) {
	lib := newInitialized(t)
	ctx, _ := lib.NewContext()
	defer lib.FreeContext(ctx)

	encoded, status := lib.Encode(ctx, float32Input(rampField(32*32)), defaultConfig([3]uint64{1, 32, 32}))
	require.Equal(t, StatusOK, status)
	stream := append([]byte(nil), encoded.Data...)
	lib.FreeBuffer(encoded)

	flip := func(i int) []byte {
		c := append([]byte(nil), stream...)
		c[i] ^= 0xFF
		return c
	}

	tests := []struct {
		name string
		data []byte
		want Status
	}{
		{"empty", nil, StatusCorruptStream},
		{"bad magic", flip(0), StatusCorruptStream},
		{"bad element type", flip(4), StatusCorruptStream},
		{"truncated", stream[:len(stream)-1], StatusCorruptStream},
		{"bad entropy codec", flip(6), StatusCorruptStream},
		{"garbled payload", flip(refHeaderSize), StatusDecodeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, status := lib.Decode(ctx, tt.data)
			require.Equal(t, tt.want, status)
			require.True(t, buf.IsNull())
		})
	}

	stats := lib.Stats()
	require.Zero(t, stats.LiveBuffers())
}

func TestReference_DecodeRejectsOversizedDims(t *testing.T) {
	lib := newInitialized(t)
	ctx, _ := lib.NewContext()
	defer lib.FreeContext(ctx)

	hdr := refHeader{
		elem:    format.Float32,
		entropy: format.CompressionNone,
		dims:    [3]uint64{1, 65536, 65536},
		payload: 1,
	}
	stream := append(hdr.append(nil), 0x00)
	require.Len(t, stream, refHeaderSize+1)

	buf, status := lib.Decode(ctx, stream)
	require.Equal(t, StatusCorruptStream, status)
	require.True(t, buf.IsNull())
	require.Contains(t, lib.LastError(ctx), "cannot hold")
	require.Zero(t, lib.Stats().LiveBuffers())
}

func TestReference_FreeBufferAccounting(t *testing.T) {
	lib := newInitialized(t)
	ctx, _ := lib.NewContext()
	defer lib.FreeContext(ctx)

	encoded, status := lib.Encode(ctx, float32Input(rampField(32*32)), defaultConfig([3]uint64{1, 32, 32}))
	require.Equal(t, StatusOK, status)
	require.Equal(t, int64(1), lib.Stats().LiveBuffers())

	lib.FreeBuffer(encoded)
	lib.FreeBuffer(encoded)
	lib.FreeBuffer(OutputBuffer{})

	stats := lib.Stats()
	require.Zero(t, stats.LiveBuffers())
	require.Equal(t, int64(2), stats.InvalidFrees)
}

func TestNativeLibrary_Unavailable(t *testing.T) {
	lib, err := NativeLibrary()
	if err != nil {
		require.ErrorIs(t, err, ErrNativeUnavailable)
		require.Nil(t, lib)

		return
	}

	require.Equal(t, "libebcc", lib.Name())
}
