package codec

import (
	"reflect"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arloliu/ebcc/errs"
	"github.com/arloliu/ebcc/native"
)

// initGuard runs Library.Init once and remembers the outcome.
type initGuard struct {
	once   sync.Once
	status native.Status
	msg    string
}

// initGuards holds one guard per comparable library value for the life of the
// process. Libraries are expected to be long-lived, such as native.Reference().
var initGuards sync.Map // native.Library -> *initGuard

// guardFor returns the shared guard of lib. A library value that cannot be a map key
// gets a guard of its own, so its Init runs once per Codec.
func guardFor(lib native.Library) *initGuard {
	if !reflect.ValueOf(lib).Comparable() {
		return &initGuard{}
	}

	v, _ := initGuards.LoadOrStore(lib, &initGuard{})
	g, _ := v.(*initGuard)

	return g
}

func (g *initGuard) ensure(lib native.Library) error {
	g.once.Do(func() {
		g.status = lib.Init()
		if g.status != native.StatusOK {
			g.msg = "library initialization failed: " + g.status.String()
		}
	})

	if g.status != native.StatusOK {
		return errs.Translate(errs.StageAcquire, g.status, g.msg)
	}

	return nil
}

// handle owns one native context for the duration of a single call.
type handle struct {
	lib      native.Library
	ctx      native.Context
	released bool
}

func acquire(lib native.Library, guard *initGuard) (*handle, error) {
	if err := guard.ensure(lib); err != nil {
		return nil, err
	}

	ctx, status := lib.NewContext()
	if status != native.StatusOK {
		return nil, errs.Translate(errs.StageAcquire, status, "context creation failed")
	}

	return &handle{lib: lib, ctx: ctx}, nil
}

// release destroys the context. Calls after the first are no-ops.
func (h *handle) release() error {
	if h.released {
		return nil
	}
	h.released = true

	if status := h.lib.FreeContext(h.ctx); status != native.StatusOK {
		return errs.Translate(errs.StageRelease, status, "context destroy failed")
	}

	return nil
}

// fail translates a failed status, copying the context's message while it is still alive.
func (h *handle) fail(stage errs.Stage, status native.Status) error {
	return errs.Translate(stage, status, h.lib.LastError(h.ctx))
}

func (h *handle) encode(in native.InputBuffer, params *native.CodecConfig) (native.OutputBuffer, error) {
	out, status := h.lib.Encode(h.ctx, in, params)
	if status != native.StatusOK {
		return native.OutputBuffer{}, h.fail(errs.StageCompress, status)
	}

	return out, nil
}

func (h *handle) decode(data []byte) (native.OutputBuffer, error) {
	out, status := h.lib.Decode(h.ctx, data)
	if status != native.StatusOK {
		return native.OutputBuffer{}, h.fail(errs.StageDecompress, status)
	}

	return out, nil
}

// withHandle acquires a handle, runs op and releases the handle on every path,
// including a panic in op. A release failure is combined with the error of op and
// never replaces it.
func withHandle(lib native.Library, guard *initGuard, log *zap.Logger, op func(h *handle) error) (err error) {
	h, err := acquire(lib, guard)
	if err != nil {
		return err
	}

	defer func() {
		if relErr := h.release(); relErr != nil {
			log.Warn("native context release failed", zap.Error(relErr))
			err = multierr.Append(err, relErr)
		}
	}()

	return op(h)
}
