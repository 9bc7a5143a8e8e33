//go:build darwin && cgo

package metal

/*
#include <stdlib.h>
#include "bridge.h"
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime/cgo"
	"time"
	"unsafe"

	"github.com/gogpu/cmt/backend"
	"github.com/gogpu/cmt/gpucore"
)

// queue encodes each batch into one MTLCommandBuffer. Metal executes
// command buffers of a queue in commit order.
type queue struct {
	dev *device
	ref C.cmt_mtl_ref
}

// completion is the state a committed command buffer carries to its
// completed handler.
type completion struct {
	label string
	start time.Time
	done  func(error)
}

func (q *queue) Submit(b *gpucore.Batch, done func(error)) error {
	clabel := C.CString(b.Label)
	defer C.free(unsafe.Pointer(clabel))
	cb := C.cmt_mtl_command_buffer_new(q.ref, clabel)
	if cb == nil {
		return errors.New("metal: create command buffer")
	}
	defer C.cmt_mtl_release(cb)

	for pi := range b.Passes {
		if err := q.encodePass(cb, &b.Passes[pi]); err != nil {
			return fmt.Errorf("pass %d: %w", pi, err)
		}
	}

	token := cgo.NewHandle(&completion{label: b.Label, start: time.Now(), done: done})
	C.cmt_mtl_commit(cb, C.uintptr_t(token))
	return nil
}

func (q *queue) encodePass(cb C.cmt_mtl_ref, pass *gpucore.Pass) error {
	clabel := C.CString(pass.Label)
	defer C.free(unsafe.Pointer(clabel))
	enc := C.cmt_mtl_encoder_new(cb, clabel)
	if enc == nil {
		return errors.New("metal: create compute encoder")
	}
	defer C.cmt_mtl_release(enc)

	var resident []C.cmt_mtl_ref
	for di := range pass.Dispatches {
		d := &pass.Dispatches[di]
		p, ok := d.Pipeline.(*pipeline)
		if !ok {
			C.cmt_mtl_encoder_end(enc)
			return fmt.Errorf("dispatch %d: pipeline was not created by the metal driver", di)
		}
		C.cmt_mtl_encoder_set_pipeline(enc, p.ref)
		for _, bind := range d.Bindings {
			if bind.Buffer == nil {
				C.cmt_mtl_encoder_set_bytes(enc, unsafe.Pointer(unsafe.SliceData(bind.Bytes)),
					C.size_t(len(bind.Bytes)), C.uint32_t(bind.Index))
				continue
			}
			buf, ok := bind.Buffer.(*buffer)
			if !ok {
				C.cmt_mtl_encoder_end(enc)
				return fmt.Errorf("dispatch %d: buffer %d was not allocated by the metal driver", di, bind.Index)
			}
			C.cmt_mtl_encoder_set_buffer(enc, buf.ref, C.uint64_t(bind.Offset), C.uint32_t(bind.Index))
		}
		if p.argumentBuffers {
			if resident == nil {
				resident = q.dev.resident()
			}
			if len(resident) > 0 {
				C.cmt_mtl_encoder_use_buffers(enc, &resident[0], C.size_t(len(resident)))
			}
		}
		g, t := d.Grid, d.Threadgroup
		C.cmt_mtl_encoder_dispatch(enc, C.bool(d.Mode == gpucore.DispatchThreadgroups),
			C.uint64_t(g.Width), C.uint64_t(g.Height), C.uint64_t(g.Depth),
			C.uint64_t(t.Width), C.uint64_t(t.Height), C.uint64_t(t.Depth))
	}
	C.cmt_mtl_encoder_end(enc)
	return nil
}

func (q *queue) Destroy() { C.cmt_mtl_release(q.ref) }

// ExecutionError is reported for a command buffer Metal finished in the
// error state.
type ExecutionError struct {
	Label       string
	Description string
}

func (e *ExecutionError) Error() string {
	if e.Label == "" {
		return "metal: command buffer failed: " + e.Description
	}
	return fmt.Sprintf("metal: command buffer %q failed: %s", e.Label, e.Description)
}

//export cmtMetalCompleted
func cmtMetalCompleted(token C.uintptr_t, msg *C.char) {
	h := cgo.Handle(token)
	c := h.Value().(*completion)
	h.Delete()

	var err error
	if msg != nil {
		err = &ExecutionError{Label: c.label, Description: C.GoString(msg)}
	}
	backend.Logger().Debug("metal: batch executed", "label", c.label, "elapsed", time.Since(c.start), "err", err)
	c.done(err)
}
