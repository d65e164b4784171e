package compress

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/arloliu/ebcc/format"
	"github.com/stretchr/testify/require"
)

func getAllCodecs() map[string]Codec {
	return map[string]Codec{
		"NoOp": NewNoOpCompressor(),
		"LZ4":  NewLZ4Compressor(),
		"S2":   NewS2Compressor(),
		"Zstd": NewZstdCompressor(),
	}
}

// generateResidualStream mimics the zig-zag delta stream of a quantized smooth field:
// mostly zero bytes with occasional small steps.
func generateResidualStream(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		if i%97 == 0 {
			data[i] = byte(i % 7)
		}
	}

	return data
}

func generateNoise(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte((i*31 + i*i*7 + i*i*i*3) % 256)
	}

	return data
}

func TestGetCodec(t *testing.T) {
	tests := []struct {
		name    string
		typ     format.CompressionType
		wantErr bool
	}{
		{"None", format.CompressionNone, false},
		{"Zstd", format.CompressionZstd, false},
		{"S2", format.CompressionS2, false},
		{"LZ4", format.CompressionLZ4, false},
		{"Invalid", format.CompressionType(0xFF), true},
		{"Zero", format.CompressionType(0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := GetCodec(tt.typ)
			require.Equal(t, !tt.wantErr, IsSupported(tt.typ))
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, codec)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, codec)
		})
	}
}

func TestCodecs_RejectOversizedStreams(t *testing.T) {
	huge := uint64(maxDecodedSize) + 1

	// single segment zstd frame declaring an 8 byte content size, then one raw block
	zstdFrame := []byte{0x28, 0xB5, 0x2F, 0xFD, 0xE0}
	zstdFrame = binary.LittleEndian.AppendUint64(zstdFrame, huge)
	zstdFrame = append(zstdFrame, 0x09, 0x00, 0x00, 0x00)

	s2Block := binary.AppendUvarint(nil, huge)
	s2Block = append(s2Block, 0x00, 0x00)

	lz4Frame := binary.AppendUvarint(nil, huge)
	lz4Frame = append(lz4Frame, lz4ModeBlock, 0x00)

	tests := map[string]struct {
		codec Codec
		data  []byte
	}{
		"Zstd": {NewZstdCompressor(), zstdFrame},
		"S2":   {NewS2Compressor(), s2Block},
		"LZ4":  {NewLZ4Compressor(), lz4Frame},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := tt.codec.Decompress(tt.data)
			require.Error(t, err)
			require.Nil(t, out)
		})
	}
}

func TestAllCodecs_RoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"residual_1KB":  generateResidualStream(1024),
		"residual_64KB": generateResidualStream(64 * 1024),
		"zeros_10000":   make([]byte, 10000),
		"noise_4KB":     generateNoise(4096),
		"single_byte":   {0x7F},
	}

	for codecName, codec := range getAllCodecs() {
		for inputName, input := range inputs {
			t.Run(codecName+"/"+inputName, func(t *testing.T) {
				compressed, err := codec.Compress(input)
				require.NoError(t, err)

				decompressed, err := codec.Decompress(compressed)
				require.NoError(t, err)
				require.True(t, bytes.Equal(input, decompressed))
			})
		}
	}
}

func TestAllCodecs_EmptyData(t *testing.T) {
	for name, codec := range getAllCodecs() {
		t.Run(name, func(t *testing.T) {
			compressed, err := codec.Compress(nil)
			require.NoError(t, err)
			require.Empty(t, compressed)

			decompressed, err := codec.Decompress(nil)
			require.NoError(t, err)
			require.Empty(t, decompressed)
		})
	}
}

func TestAllCodecs_ShrinkZeroRuns(t *testing.T) {
	input := make([]byte, 10000)

	for name, codec := range getAllCodecs() {
		if name == "NoOp" {
			continue
		}

		t.Run(name, func(t *testing.T) {
			compressed, err := codec.Compress(input)
			require.NoError(t, err)
			require.Less(t, len(compressed), len(input)/10)
		})
	}
}

func TestCodecs_RejectCorruptData(t *testing.T) {
	garbage := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03}

	for _, name := range []string{"Zstd", "S2", "LZ4"} {
		t.Run(name, func(t *testing.T) {
			_, err := getAllCodecs()[name].Decompress(garbage)
			require.Error(t, err)
		})
	}
}

func TestLZ4_StoresIncompressibleRaw(t *testing.T) {
	codec := NewLZ4Compressor()
	input := generateNoise(64)

	compressed, err := codec.Compress(input)
	require.NoError(t, err)
	require.LessOrEqual(t, len(compressed), len(input)+3)

	decompressed, err := codec.Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, input, decompressed)

	// truncated frame
	_, err = codec.Decompress(compressed[:len(compressed)-1])
	require.Error(t, err)
}

func TestNoOp_Aliases(t *testing.T) {
	input := []byte{1, 2, 3}
	out, err := NewNoOpCompressor().Compress(input)
	require.NoError(t, err)
	require.Same(t, &input[0], &out[0])
}
