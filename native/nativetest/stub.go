// Package nativetest provides a fault-injecting native.Library for tests of the
// binding layer.
package nativetest

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/ebcc/native"
)

// Stage names the library entry point at which a Stub injects a failure.
type Stage int

const (
	StageNone Stage = iota
	StageInit
	StageNewContext
	StageEncode
	StageDecode
	StageFreeContext
	// StageShortOutput makes Decode succeed with a buffer missing its last element.
	StageShortOutput
	// StageUnknownStatus makes Encode and Decode fail with an unassigned status code.
	StageUnknownStatus
)

// UnknownStatus is the status returned at StageUnknownStatus.
const UnknownStatus native.Status = 0x7EBC

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageInit:
		return "init"
	case StageNewContext:
		return "new-context"
	case StageEncode:
		return "encode"
	case StageDecode:
		return "decode"
	case StageFreeContext:
		return "free-context"
	case StageShortOutput:
		return "short-output"
	case StageUnknownStatus:
		return "unknown-status"
	default:
		return "unknown"
	}
}

// Counts is a snapshot of the calls observed by a Stub.
type Counts struct {
	Inits          int64
	Acquired       int64
	Released       int64
	ReleaseCalls   int64
	Encodes        int64
	Decodes        int64
	Buffers        int64
	BuffersFreed   int64
	MaxConcurrent  int64
	ForeignFrees   int64
	ReleaseFailure int64
}

// Balanced reports whether every acquired context and every buffer was released exactly once.
func (c Counts) Balanced() bool {
	return c.Acquired == c.Released && c.Buffers == c.BuffersFreed && c.ForeignFrees == 0
}

// NativeCalls returns the number of encode and decode calls.
func (c Counts) NativeCalls() int64 {
	return c.Encodes + c.Decodes
}

// Stub wraps a native.Library, counts every call and fails at a chosen stage.
type Stub struct {
	inner   native.Library
	failAt  map[Stage]bool
	status  native.Status
	message string

	mu      sync.Mutex
	counts  Counts
	live    map[native.Context]struct{}
	buffers map[*byte]struct{}
	active  atomic.Int64
}

var _ native.Library = (*Stub)(nil)

// Option configures a Stub.
type Option func(*Stub)

// FailAt injects a failure at each of the given stages.
func FailAt(stages ...Stage) Option {
	return func(s *Stub) {
		for _, stage := range stages {
			s.failAt[stage] = true
		}
	}
}

// WithStatus overrides the status returned by the injected failure.
func WithStatus(status native.Status) Option {
	return func(s *Stub) { s.status = status }
}

// WithMessage sets the message reported through LastError after an injected failure.
func WithMessage(msg string) Option {
	return func(s *Stub) { s.message = msg }
}

// New wraps inner, which is usually a fresh native.NewReference().
func New(inner native.Library, opts ...Option) *Stub {
	s := &Stub{
		inner:   inner,
		message: "injected failure",
		failAt:  make(map[Stage]bool),
		live:    make(map[native.Context]struct{}),
		buffers: make(map[*byte]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Counts returns a snapshot of the observed calls.
func (s *Stub) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts
}

func (s *Stub) statusFor(def native.Status) native.Status {
	if s.status != native.StatusOK {
		return s.status
	}

	return def
}

func (s *Stub) Name() string {
	return "stub(" + s.inner.Name() + ")"
}

func (s *Stub) Capabilities() native.Capabilities {
	return s.inner.Capabilities()
}

func (s *Stub) Init() native.Status {
	s.mu.Lock()
	s.counts.Inits++
	s.mu.Unlock()

	if s.failAt[StageInit] {
		return s.statusFor(native.StatusInitFailed)
	}

	return s.inner.Init()
}

func (s *Stub) NewContext() (native.Context, native.Status) {
	if s.failAt[StageNewContext] {
		return 0, s.statusFor(native.StatusAllocFailed)
	}

	ctx, status := s.inner.NewContext()
	if status != native.StatusOK {
		return ctx, status
	}

	s.mu.Lock()
	s.counts.Acquired++
	s.live[ctx] = struct{}{}
	s.mu.Unlock()

	return ctx, status
}

func (s *Stub) FreeContext(ctx native.Context) native.Status {
	s.mu.Lock()
	s.counts.ReleaseCalls++
	_, ok := s.live[ctx]
	if ok {
		delete(s.live, ctx)
		s.counts.Released++
	}
	s.mu.Unlock()

	status := s.inner.FreeContext(ctx)
	if s.failAt[StageFreeContext] {
		s.mu.Lock()
		s.counts.ReleaseFailure++
		s.mu.Unlock()

		return s.statusFor(native.StatusInvalidContext)
	}

	return status
}

func (s *Stub) enter() func() {
	n := s.active.Add(1)

	s.mu.Lock()
	s.counts.MaxConcurrent = max(s.counts.MaxConcurrent, n)
	s.mu.Unlock()

	return func() { s.active.Add(-1) }
}

func (s *Stub) track(buf native.OutputBuffer) {
	if len(buf.Data) == 0 {
		return
	}

	s.mu.Lock()
	s.counts.Buffers++
	s.buffers[&buf.Data[0]] = struct{}{}
	s.mu.Unlock()
}

func (s *Stub) Encode(ctx native.Context, in native.InputBuffer, cfg *native.CodecConfig) (native.OutputBuffer, native.Status) {
	defer s.enter()()

	s.mu.Lock()
	s.counts.Encodes++
	s.mu.Unlock()

	switch {
	case s.failAt[StageEncode]:
		return native.OutputBuffer{}, s.statusFor(native.StatusEncodeFailed)
	case s.failAt[StageUnknownStatus]:
		return native.OutputBuffer{}, UnknownStatus
	}

	buf, status := s.inner.Encode(ctx, in, cfg)
	if status == native.StatusOK {
		s.track(buf)
	}

	return buf, status
}

func (s *Stub) Decode(ctx native.Context, data []byte) (native.OutputBuffer, native.Status) {
	defer s.enter()()

	s.mu.Lock()
	s.counts.Decodes++
	s.mu.Unlock()

	switch {
	case s.failAt[StageDecode]:
		return native.OutputBuffer{}, s.statusFor(native.StatusDecodeFailed)
	case s.failAt[StageUnknownStatus]:
		return native.OutputBuffer{}, UnknownStatus
	}

	buf, status := s.inner.Decode(ctx, data)
	if status != native.StatusOK {
		return buf, status
	}

	s.track(buf)
	if s.failAt[StageShortOutput] {
		buf.Data = buf.Data[:len(buf.Data)-buf.Elem.Size()]
	}

	return buf, status
}

func (s *Stub) FreeBuffer(buf native.OutputBuffer) {
	if len(buf.Data) > 0 {
		s.mu.Lock()
		key := &buf.Data[0]
		if _, ok := s.buffers[key]; ok {
			delete(s.buffers, key)
			s.counts.BuffersFreed++
		} else {
			s.counts.ForeignFrees++
		}
		s.mu.Unlock()
	}

	s.inner.FreeBuffer(buf)
}

func (s *Stub) LastError(ctx native.Context) string {
	if s.failAt[StageEncode] || s.failAt[StageDecode] || s.failAt[StageUnknownStatus] {
		return s.message
	}

	return s.inner.LastError(ctx)
}
