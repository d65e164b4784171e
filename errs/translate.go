package errs

import (
	"strings"

	"github.com/arloliu/ebcc/native"
)

// Stage names the native entry point a status code came from.
type Stage uint8

const (
	StageNone Stage = iota
	StageAcquire
	StageCompress
	StageDecompress
	StageRelease
)

func (s Stage) String() string {
	switch s {
	case StageAcquire:
		return "acquire"
	case StageCompress:
		return "compress"
	case StageDecompress:
		return "decompress"
	case StageRelease:
		return "release"
	default:
		return "none"
	}
}

// stageKinds maps each stage to the kind of its known failure statuses.
var stageKinds = [...]Kind{
	StageNone:       KindNativeUnknownError,
	StageAcquire:    KindNativeInitFailed,
	StageCompress:   KindNativeCompressFailed,
	StageDecompress: KindNativeDecompressFailed,
	StageRelease:    KindNativeUnknownError,
}

// Translate converts a non-OK native status into an *Error. It returns nil for StatusOK.
//
// A known status maps to the kind of its stage; a failed context destroy has no kind
// of its own and reports as KindNativeUnknownError. An unknown status always maps to
// KindNativeUnknownError, keeping the raw code. msg is copied.
func Translate(stage Stage, status native.Status, msg string) *Error {
	if status == native.StatusOK {
		return nil
	}

	kind := KindNativeUnknownError
	if status.Known() {
		if int(stage) < len(stageKinds) {
			kind = stageKinds[stage]
		}
	}

	if msg == "" {
		msg = status.String()
	}

	return &Error{Kind: kind, Stage: stage, Code: status, Message: strings.Clone(msg)}
}
