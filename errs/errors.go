// Package errs defines the error taxonomy of the ebcc bindings.
//
// Every failure is returned as an *Error carrying a Kind. Each Kind has a sentinel
// error, so callers can branch with errors.Is:
//
//	if errors.Is(err, errs.ErrSizeMismatch) { ... }
//
// and reach the native status code and message with errors.As:
//
//	var e *errs.Error
//	if errors.As(err, &e) && e.Native() {
//	    log.Printf("native status %d: %s", e.Code, e.Message)
//	}
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arloliu/ebcc/native"
)

// Kind classifies a failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindInvalidConfig reports bad compression parameters, detected before any native call.
	KindInvalidConfig
	// KindInvalidLayout reports strides or ranks the native codec cannot describe.
	KindInvalidLayout
	// KindSizeMismatch reports a backing storage length that disagrees with the extents.
	KindSizeMismatch
	// KindUnsupportedElementType reports an element type the native codec does not accept.
	KindUnsupportedElementType
	// KindInvalidInput reports array contents the codec refuses, such as NaN values or zero extents.
	KindInvalidInput
	// KindNativeInitFailed reports a failed library initialization or context creation.
	KindNativeInitFailed
	// KindNativeCompressFailed reports a known failure status from the native encoder.
	KindNativeCompressFailed
	// KindNativeDecompressFailed reports a known failure status from the native decoder.
	KindNativeDecompressFailed
	// KindNativeUnknownError reports a status code this version does not know.
	KindNativeUnknownError
	// KindOutputSizeMismatch reports a native output buffer that does not match the expected shape.
	KindOutputSizeMismatch
	// KindShapeMismatch reports a shape hint that disagrees with the shape embedded in a blob.
	KindShapeMismatch
	// KindMissingShapeHint reports a blob without embedded shape decompressed without a hint.
	KindMissingShapeHint
	// KindCorruptBlob reports a blob whose container is malformed or fails its checksum.
	KindCorruptBlob
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfig:
		return "invalid config"
	case KindInvalidLayout:
		return "invalid layout"
	case KindSizeMismatch:
		return "size mismatch"
	case KindUnsupportedElementType:
		return "unsupported element type"
	case KindInvalidInput:
		return "invalid input"
	case KindNativeInitFailed:
		return "native init failed"
	case KindNativeCompressFailed:
		return "native compress failed"
	case KindNativeDecompressFailed:
		return "native decompress failed"
	case KindNativeUnknownError:
		return "native unknown error"
	case KindOutputSizeMismatch:
		return "output size mismatch"
	case KindShapeMismatch:
		return "shape mismatch"
	case KindMissingShapeHint:
		return "missing shape hint"
	case KindCorruptBlob:
		return "corrupt blob"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per Kind.
var (
	ErrInvalidConfig          = &Error{Kind: KindInvalidConfig}
	ErrInvalidLayout          = &Error{Kind: KindInvalidLayout}
	ErrSizeMismatch           = &Error{Kind: KindSizeMismatch}
	ErrUnsupportedElementType = &Error{Kind: KindUnsupportedElementType}
	ErrInvalidInput           = &Error{Kind: KindInvalidInput}
	ErrNativeInitFailed       = &Error{Kind: KindNativeInitFailed}
	ErrNativeCompressFailed   = &Error{Kind: KindNativeCompressFailed}
	ErrNativeDecompressFailed = &Error{Kind: KindNativeDecompressFailed}
	ErrNativeUnknownError     = &Error{Kind: KindNativeUnknownError}
	ErrOutputSizeMismatch     = &Error{Kind: KindOutputSizeMismatch}
	ErrShapeMismatch          = &Error{Kind: KindShapeMismatch}
	ErrMissingShapeHint       = &Error{Kind: KindMissingShapeHint}
	ErrCorruptBlob            = &Error{Kind: KindCorruptBlob}
)

// Error is the single error type returned by the bindings.
type Error struct {
	Kind Kind
	// Stage is the native entry point involved, StageNone for validation errors.
	Stage Stage
	// Code is the raw native status; meaningful only when Stage is not StageNone.
	Code native.Status
	// Message is an owned copy of the native message or a validation detail.
	Message string
	// Err is an optional underlying cause.
	Err error
}

// New creates a validation error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("ebcc: ")
	sb.WriteString(e.Kind.String())

	if e.Stage != StageNone {
		fmt.Fprintf(&sb, " [%s, status %d]", e.Stage, int32(e.Code))
	}

	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}

	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	return sb.String()
}

// Is matches any *Error of the same Kind, which makes the sentinels usable with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Kind == e.Kind && (t.Stage == StageNone || t.Stage == e.Stage) &&
		(t.Code == native.StatusOK || t.Code == e.Code) && t.Message == "" && t.Err == nil
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Native reports whether the error originated from a native status code.
func (e *Error) Native() bool {
	return e.Stage != StageNone
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}
