package native

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/ebcc/format"
	"github.com/arloliu/ebcc/internal/pool"
)

// MinTrailingExtent is the smallest height and width the codec accepts.
const MinTrailingExtent = 32

// Stats is a snapshot of the allocation accounting of a ReferenceLibrary.
type Stats struct {
	Inits            int64
	ContextsCreated  int64
	ContextsFreed    int64
	BuffersAllocated int64
	BuffersFreed     int64
	InvalidFrees     int64
}

// LiveContexts returns the number of contexts not yet destroyed.
func (s Stats) LiveContexts() int64 {
	return s.ContextsCreated - s.ContextsFreed
}

// LiveBuffers returns the number of allocations not yet freed.
func (s Stats) LiveBuffers() int64 {
	return s.BuffersAllocated - s.BuffersFreed
}

type refContext struct {
	busy    atomic.Bool
	lastErr string
}

// ReferenceLibrary is the pure Go implementation of Library.
//
// Allocations handed out by Encode and Decode come from a pooled heap and are tracked
// by id, so a leaked or doubly freed buffer shows up in Stats.
type ReferenceLibrary struct {
	initialized atomic.Bool

	mu       sync.Mutex
	nextID   uint64
	contexts map[Context]*refContext
	buffers  map[uint64]*pool.ByteBuffer
	stats    Stats
}

var _ Library = (*ReferenceLibrary)(nil)

var defaultReference = NewReference()

// Reference returns the process-wide reference library.
func Reference() *ReferenceLibrary {
	return defaultReference
}

// NewReference creates an independent reference library with its own accounting.
func NewReference() *ReferenceLibrary {
	return &ReferenceLibrary{
		contexts: make(map[Context]*refContext),
		buffers:  make(map[uint64]*pool.ByteBuffer),
	}
}

func (r *ReferenceLibrary) Name() string {
	return "reference"
}

func (r *ReferenceLibrary) Capabilities() Capabilities {
	return Capabilities{
		ElementTypes:      []format.ElementType{format.Float32, format.Float64},
		MinTrailingExtent: MinTrailingExtent,
		Extensions:        true,
	}
}

// Init marks the library as initialized. Repeated calls are counted but harmless.
func (r *ReferenceLibrary) Init() Status {
	r.mu.Lock()
	r.stats.Inits++
	r.mu.Unlock()

	r.initialized.Store(true)

	return StatusOK
}

func (r *ReferenceLibrary) NewContext() (Context, Status) {
	if !r.initialized.Load() {
		return 0, StatusInitFailed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	ctx := Context(r.nextID)
	r.contexts[ctx] = &refContext{}
	r.stats.ContextsCreated++

	return ctx, StatusOK
}

func (r *ReferenceLibrary) FreeContext(ctx Context) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contexts[ctx]; !ok {
		return StatusInvalidContext
	}

	delete(r.contexts, ctx)
	r.stats.ContextsFreed++

	return StatusOK
}

func (r *ReferenceLibrary) LastError(ctx Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.contexts[ctx]; ok {
		return c.lastErr
	}

	return ""
}

func (r *ReferenceLibrary) Encode(ctx Context, in InputBuffer, cfg *CodecConfig) (OutputBuffer, Status) {
	c, status := r.enter(ctx)
	if status != StatusOK {
		return OutputBuffer{}, status
	}
	defer c.busy.Store(false)

	if cfg == nil {
		return OutputBuffer{}, r.fail(c, StatusInvalidArgument, "nil codec config")
	}

	out := pool.GetHeapBuffer()
	if status, msg := encodeField(in, cfg, out); status != StatusOK {
		pool.PutHeapBuffer(out)
		return OutputBuffer{}, r.fail(c, status, msg)
	}

	return r.register(out, format.ElementInvalid), StatusOK
}

func (r *ReferenceLibrary) Decode(ctx Context, data []byte) (OutputBuffer, Status) {
	c, status := r.enter(ctx)
	if status != StatusOK {
		return OutputBuffer{}, status
	}
	defer c.busy.Store(false)

	out := pool.GetHeapBuffer()
	elem, status, msg := decodeField(data, out)
	if status != StatusOK {
		pool.PutHeapBuffer(out)
		return OutputBuffer{}, r.fail(c, status, msg)
	}

	return r.register(out, elem), StatusOK
}

// FreeBuffer returns an allocation to the heap. Unknown or already freed buffers are
// counted as invalid frees and otherwise ignored.
func (r *ReferenceLibrary) FreeBuffer(buf OutputBuffer) {
	r.mu.Lock()
	bb, ok := r.buffers[buf.ref]
	if ok {
		delete(r.buffers, buf.ref)
		r.stats.BuffersFreed++
	} else {
		r.stats.InvalidFrees++
	}
	r.mu.Unlock()

	if ok {
		pool.PutHeapBuffer(bb)
	}
}

// Stats returns a snapshot of the allocation accounting.
func (r *ReferenceLibrary) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stats
}

// enter looks up ctx and marks it busy; contexts are not reentrant.
func (r *ReferenceLibrary) enter(ctx Context) (*refContext, Status) {
	r.mu.Lock()
	c, ok := r.contexts[ctx]
	r.mu.Unlock()

	if !ok {
		return nil, StatusInvalidContext
	}

	if !c.busy.CompareAndSwap(false, true) {
		return nil, StatusInvalidContext
	}

	return c, StatusOK
}

func (r *ReferenceLibrary) fail(c *refContext, status Status, msg string) Status {
	r.mu.Lock()
	c.lastErr = msg
	r.mu.Unlock()

	return status
}

func (r *ReferenceLibrary) register(bb *pool.ByteBuffer, elem format.ElementType) OutputBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.buffers[id] = bb
	r.stats.BuffersAllocated++

	return OutputBuffer{Data: bb.B, Elem: elem, ref: id}
}
