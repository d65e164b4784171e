package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/ebcc/native"
)

func TestTranslate_KnownStatusPerStage(t *testing.T) {
	tests := []struct {
		stage Stage
		want  *Error
	}{
		{StageAcquire, ErrNativeInitFailed},
		{StageCompress, ErrNativeCompressFailed},
		{StageDecompress, ErrNativeDecompressFailed},
		{StageRelease, ErrNativeUnknownError},
	}

	known := []native.Status{
		native.StatusInitFailed, native.StatusAllocFailed, native.StatusInvalidArgument,
		native.StatusInvalidDims, native.StatusUnsupportedType, native.StatusEncodeFailed,
		native.StatusCorruptStream, native.StatusDecodeFailed, native.StatusInvalidContext,
	}

	for _, tt := range tests {
		for _, status := range known {
			t.Run(fmt.Sprintf("%s/%s", tt.stage, status), func(t *testing.T) {
				err := Translate(tt.stage, status, "boom")
				require.NotNil(t, err)
				require.ErrorIs(t, err, tt.want)
				require.Equal(t, status, err.Code)
				require.Equal(t, tt.stage, err.Stage)
				require.Equal(t, "boom", err.Message)
				require.True(t, err.Native())
			})
		}
	}
}

func TestTranslate_UnknownStatus(t *testing.T) {
	for _, stage := range []Stage{StageAcquire, StageCompress, StageDecompress, StageRelease} {
		err := Translate(stage, native.Status(4242), "")
		require.ErrorIs(t, err, ErrNativeUnknownError)
		require.Equal(t, native.Status(4242), err.Code, "raw code must be kept")
		require.Equal(t, "status(4242)", err.Message)
	}

	err := Translate(StageCompress, native.Status(-1), "negative")
	require.ErrorIs(t, err, ErrNativeUnknownError)
}

func TestTranslate_OK(t *testing.T) {
	require.Nil(t, Translate(StageCompress, native.StatusOK, "ignored"))
}

func TestTranslate_EachStatusHasOneKind(t *testing.T) {
	sentinels := []*Error{
		ErrInvalidConfig, ErrInvalidLayout, ErrSizeMismatch, ErrUnsupportedElementType,
		ErrInvalidInput, ErrNativeInitFailed, ErrNativeCompressFailed,
		ErrNativeDecompressFailed, ErrNativeUnknownError, ErrOutputSizeMismatch,
		ErrShapeMismatch, ErrMissingShapeHint, ErrCorruptBlob,
	}

	err := Translate(StageDecompress, native.StatusCorruptStream, "bad")
	matches := 0
	for _, s := range sentinels {
		if errors.Is(err, s) {
			matches++
		}
	}
	require.Equal(t, 1, matches)
}

func TestError_IsAndAs(t *testing.T) {
	err := New(KindSizeMismatch, "storage holds %d elements, extents require %d", 3, 4)
	wrapped := fmt.Errorf("compress field: %w", err)

	require.ErrorIs(t, wrapped, ErrSizeMismatch)
	require.NotErrorIs(t, wrapped, ErrInvalidLayout)

	var e *Error
	require.ErrorAs(t, wrapped, &e)
	require.Equal(t, KindSizeMismatch, e.Kind)
	require.False(t, e.Native())
	require.Equal(t, KindSizeMismatch, KindOf(wrapped))
	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestError_Wrap(t *testing.T) {
	cause := errors.New("checksum mismatch")
	err := Wrap(KindCorruptBlob, cause, "blob header")

	require.ErrorIs(t, err, ErrCorruptBlob)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "ebcc: corrupt blob: blob header: checksum mismatch", err.Error())
}

func TestError_Message(t *testing.T) {
	err := Translate(StageCompress, native.StatusEncodeFailed, "codec exploded")
	require.Equal(t, "ebcc: native compress failed [compress, status 6]: codec exploded", err.Error())

	require.Equal(t, "ebcc: invalid config: error bound is NaN", New(KindInvalidConfig, "error bound is NaN").Error())
	require.Equal(t, "ebcc: missing shape hint", ErrMissingShapeHint.Error())
}
