package native

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/arloliu/ebcc/compress"
	"github.com/arloliu/ebcc/endian"
	"github.com/arloliu/ebcc/format"
	"github.com/arloliu/ebcc/internal/pool"
)

// Reference stream layout, little-endian:
//
//	[0:4]   magic "EBR1"
//	[4]     element type
//	[5]     residual type
//	[6]     entropy codec
//	[7]     base layer bit depth (0 when error bounded)
//	[8:32]  dims, 3 x uint64
//	[32:40] minimum value, float64 bits
//	[40:48] quantization step, float64 bits
//	[48:56] outlier count
//	[56:64] entropy payload length
//	payload: entropy coded zig-zag uvarint deltas of the quantization indices
//	outliers: (index uint64, value float64 bits) pairs
const (
	refHeaderSize  = 64
	refOutlierSize = 16

	minBaseBits = 2
	maxBaseBits = 24

	// maxLevels keeps quantization indices exactly representable in a float64.
	maxLevels = 1 << 52

	// maxDecodedElements refuses streams declaring more than 16 GiB of float32 data.
	maxDecodedElements = 1 << 32
)

var refMagic = [4]byte{'E', 'B', 'R', '1'}

var le = endian.GetLittleEndianEngine()

type refHeader struct {
	elem     format.ElementType
	residual format.ResidualType
	entropy  format.CompressionType
	bits     uint8
	dims     [3]uint64
	min      float64
	step     float64
	outliers uint64
	payload  uint64
}

func (h *refHeader) append(dst []byte) []byte {
	dst = append(dst, refMagic[:]...)
	dst = append(dst, byte(h.elem), byte(h.residual), byte(h.entropy), h.bits)
	for _, d := range h.dims {
		dst = le.AppendUint64(dst, d)
	}
	dst = le.AppendUint64(dst, math.Float64bits(h.min))
	dst = le.AppendUint64(dst, math.Float64bits(h.step))
	dst = le.AppendUint64(dst, h.outliers)
	dst = le.AppendUint64(dst, h.payload)

	return dst
}

func (h *refHeader) parse(data []byte) bool {
	if len(data) < refHeaderSize || [4]byte(data[0:4]) != refMagic {
		return false
	}

	h.elem = format.ElementType(data[4])
	h.residual = format.ResidualType(data[5])
	h.entropy = format.CompressionType(data[6])
	h.bits = data[7]
	for i := range h.dims {
		h.dims[i] = le.Uint64(data[8+i*8:])
	}
	h.min = math.Float64frombits(le.Uint64(data[32:]))
	h.step = math.Float64frombits(le.Uint64(data[40:]))
	h.outliers = le.Uint64(data[48:])
	h.payload = le.Uint64(data[56:])

	return true
}

// baseBits returns the bit depth of the base layer: the explicit quality when set,
// otherwise 32 bits shared out by the target compression ratio.
func baseBits(cfg *CodecConfig) uint8 {
	if cfg.Quality != 0 {
		return cfg.Quality
	}

	bits := int(math.Round(32 / float64(cfg.BaseCR)))

	return uint8(max(minBaseBits, min(maxBaseBits, bits)))
}

// reconstruct maps a quantization index back to a value of the element type.
// Encoder and decoder share it so the outlier check sees exactly what decode produces.
func reconstruct(elem format.ElementType, lo, step float64, q int64) float64 {
	v := lo + float64(q)*step
	if elem == format.Float32 {
		return float64(float32(v))
	}

	return v
}

func validateConfig(in InputBuffer, cfg *CodecConfig) (uint64, Status, string) {
	for i, d := range cfg.Dims {
		if d == 0 {
			return 0, StatusInvalidDims, fmt.Sprintf("dimension %d is zero", i)
		}
	}

	if cfg.Dims[1] < MinTrailingExtent || cfg.Dims[2] < MinTrailingExtent {
		return 0, StatusInvalidDims, fmt.Sprintf("trailing dimensions must be at least %dx%d, got %dx%d",
			MinTrailingExtent, MinTrailingExtent, cfg.Dims[1], cfg.Dims[2])
	}

	if !in.Elem.IsFloat() {
		return 0, StatusUnsupportedType, fmt.Sprintf("element type %s is not supported", in.Elem)
	}

	n, ok := cfg.Elements()
	if !ok || n > maxDecodedElements {
		return 0, StatusInvalidDims, "dimension product overflows"
	}

	if uint64(len(in.Data)) != n*uint64(in.Elem.Size()) {
		return 0, StatusInvalidArgument, fmt.Sprintf("input holds %d bytes, dims require %d",
			len(in.Data), n*uint64(in.Elem.Size()))
	}

	if !(cfg.BaseCR > 0) || math.IsInf(float64(cfg.BaseCR), 0) {
		return 0, StatusInvalidArgument, "base compression ratio must be positive"
	}

	switch cfg.ResidualType {
	case format.ResidualNone:
	case format.ResidualMaxError, format.ResidualRelativeError:
		if !(cfg.Error > 0) || math.IsInf(float64(cfg.Error), 0) {
			return 0, StatusInvalidArgument, "error bound must be positive"
		}
	default:
		return 0, StatusInvalidArgument, fmt.Sprintf("unknown residual type %d", cfg.ResidualType)
	}

	if cfg.Quality != 0 && (cfg.Quality < minBaseBits || cfg.Quality > maxBaseBits) {
		return 0, StatusInvalidArgument, fmt.Sprintf("quality %d outside [%d, %d]", cfg.Quality, minBaseBits, maxBaseBits)
	}

	if !compress.IsSupported(cfg.Entropy) {
		return 0, StatusInvalidArgument, fmt.Sprintf("unknown entropy codec %d", cfg.Entropy)
	}

	return n, StatusOK, ""
}

func readValues(in InputBuffer, dst []float64) {
	engine := endian.NativeEngine()
	switch in.Elem {
	case format.Float32:
		for i := range dst {
			dst[i] = float64(math.Float32frombits(engine.Uint32(in.Data[i*4:])))
		}
	case format.Float64:
		endian.Float64s(engine, dst, in.Data)
	}
}

func encodeField(in InputBuffer, cfg *CodecConfig, out *pool.ByteBuffer) (Status, string) {
	n, status, msg := validateConfig(in, cfg)
	if status != StatusOK {
		return status, msg
	}

	values, releaseValues := pool.GetFloat64Slice(int(n))
	defer releaseValues()
	readValues(in, values)

	lo, hi := values[0], values[0]
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return StatusInvalidArgument, fmt.Sprintf("non-finite value %v at index %d", v, i)
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo

	hdr := refHeader{
		elem:     in.Elem,
		residual: cfg.ResidualType,
		entropy:  cfg.Entropy,
		dims:     cfg.Dims,
		min:      lo,
	}

	var bound float64
	switch cfg.ResidualType {
	case format.ResidualMaxError:
		bound = float64(cfg.Error)
		hdr.step = 2 * bound
	case format.ResidualRelativeError:
		bound = float64(cfg.Error) * rng
		hdr.step = 2 * bound
	default:
		hdr.bits = baseBits(cfg)
		if rng > 0 {
			hdr.step = rng / float64(uint64(1)<<hdr.bits-1)
		}
	}

	if rng == 0 {
		hdr.step = 0
	} else if rng/hdr.step > maxLevels {
		hdr.step = rng / maxLevels
	}

	deltas := pool.GetStagingBuffer(0)
	defer pool.PutStagingBuffer(deltas)

	var outliers []byte
	var prev int64
	for i, v := range values {
		var q int64
		if hdr.step > 0 {
			q = int64(math.Round((v - lo) / hdr.step))
		}

		if cfg.ResidualType.IsBounded() {
			if math.Abs(v-reconstruct(in.Elem, lo, hdr.step, q)) > bound {
				outliers = le.AppendUint64(outliers, uint64(i))
				outliers = le.AppendUint64(outliers, math.Float64bits(v))
				hdr.outliers++
			}
		}

		d := q - prev
		prev = q
		deltas.B = binary.AppendUvarint(deltas.B, uint64((d<<1)^(d>>63)))
	}

	codec, err := compress.GetCodec(cfg.Entropy)
	if err != nil {
		return StatusEncodeFailed, err.Error()
	}

	payload, err := codec.Compress(deltas.B)
	if err != nil {
		return StatusEncodeFailed, fmt.Sprintf("entropy stage: %v", err)
	}
	hdr.payload = uint64(len(payload))

	out.B = hdr.append(out.B)
	out.B = append(out.B, payload...)
	out.B = append(out.B, outliers...)

	return StatusOK, ""
}

func decodeField(data []byte, out *pool.ByteBuffer) (format.ElementType, Status, string) {
	var hdr refHeader
	if !hdr.parse(data) {
		return 0, StatusCorruptStream, "missing reference stream header"
	}

	if !hdr.elem.IsFloat() {
		return 0, StatusCorruptStream, fmt.Sprintf("stream declares element type %d", hdr.elem)
	}

	cfg := CodecConfig{Dims: hdr.dims}
	n, ok := cfg.Elements()
	if !ok || n == 0 || n > maxDecodedElements {
		return 0, StatusCorruptStream, "stream declares invalid dims"
	}

	body := uint64(len(data) - refHeaderSize)
	if hdr.payload > body || hdr.outliers > (body-hdr.payload)/refOutlierSize ||
		hdr.payload+hdr.outliers*refOutlierSize != body {
		return 0, StatusCorruptStream, "stream length does not match its header"
	}

	codec, err := compress.GetCodec(hdr.entropy)
	if err != nil {
		return 0, StatusCorruptStream, err.Error()
	}

	payload := data[refHeaderSize : refHeaderSize+hdr.payload]
	deltas, err := codec.Decompress(payload)
	if err != nil {
		return 0, StatusDecodeFailed, fmt.Sprintf("entropy stage: %v", err)
	}

	// every element takes at least one uvarint byte
	if uint64(len(deltas)) < n {
		return 0, StatusCorruptStream, fmt.Sprintf("residual stream of %d bytes cannot hold %d elements", len(deltas), n)
	}

	size := hdr.elem.Size()
	out.Resize(int(n) * size)
	engine := endian.NativeEngine()

	var q int64
	for i := range int(n) {
		zig, read := binary.Uvarint(deltas)
		if read <= 0 {
			return 0, StatusCorruptStream, fmt.Sprintf("residual stream ends at element %d of %d", i, n)
		}
		deltas = deltas[read:]
		q += int64(zig>>1) ^ -int64(zig&1)

		v := reconstruct(hdr.elem, hdr.min, hdr.step, q)
		putValue(engine, hdr.elem, out.B[i*size:], v)
	}

	if len(deltas) != 0 {
		return 0, StatusCorruptStream, "trailing bytes after residual stream"
	}

	outliers := data[refHeaderSize+hdr.payload:]
	for j := range int(hdr.outliers) {
		rec := outliers[j*refOutlierSize:]
		idx := le.Uint64(rec)
		if idx >= n {
			return 0, StatusCorruptStream, fmt.Sprintf("outlier index %d out of range", idx)
		}
		putValue(engine, hdr.elem, out.B[int(idx)*size:], math.Float64frombits(le.Uint64(rec[8:])))
	}

	return hdr.elem, StatusOK, ""
}

func putValue(engine endian.EndianEngine, elem format.ElementType, dst []byte, v float64) {
	if elem == format.Float32 {
		engine.PutUint32(dst, math.Float32bits(float32(v)))
		return
	}

	engine.PutUint64(dst, math.Float64bits(v))
}
