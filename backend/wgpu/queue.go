//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmt/backend"
	"github.com/gogpu/cmt/gpucore"
)

// ErrQueueClosed is returned by Submit after Destroy.
var ErrQueueClosed = errors.New("wgpu: queue destroyed")

type job struct {
	batch *gpucore.Batch
	done  func(error)
}

// queue runs batches one at a time on its own goroutine. Each batch is a
// single HAL command buffer followed by a fence wait.
type queue struct {
	dev *device

	mu     sync.Mutex
	jobs   []job
	closed bool

	wake    chan struct{}
	stopped chan struct{}
}

func newQueue(d *device) *queue {
	q := &queue{
		dev:     d,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *queue) Submit(b *gpucore.Batch, done func(error)) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.jobs = append(q.jobs, job{batch: b, done: done})
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) run() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		j := q.jobs[0]
		q.jobs[0] = job{}
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		start := time.Now()
		err := q.execute(j.batch)
		backend.Logger().Debug("wgpu: batch executed",
			"label", j.batch.Label, "passes", len(j.batch.Passes), "elapsed", time.Since(start), "err", err)
		j.done(err)
	}
}

// Destroy stops the queue goroutine once queued batches have finished.
// It does not wait, since the final release may come from a completion
// callback running on that goroutine.
func (q *queue) Destroy() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// batchResources tracks the HAL objects of one batch for cleanup.
type batchResources struct {
	dev        hal.Device
	bindGroups []hal.BindGroup
	buffers    []hal.Buffer
	cmdBuf     hal.CommandBuffer
	fence      hal.Fence
}

func (r *batchResources) cleanup() {
	if r.fence != nil {
		r.dev.DestroyFence(r.fence)
	}
	if r.cmdBuf != nil {
		r.dev.FreeCommandBuffer(r.cmdBuf)
	}
	for _, g := range r.bindGroups {
		r.dev.DestroyBindGroup(g)
	}
	for _, b := range r.buffers {
		r.dev.DestroyBuffer(b)
	}
}

// readback is a writable shared buffer and the staging copy of its
// contents.
type readback struct {
	buf     *buffer
	staging hal.Buffer
}

func (q *queue) execute(b *gpucore.Batch) error {
	d := q.dev
	res := &batchResources{dev: d.gpu}
	defer res.cleanup()

	shared, err := q.sharedBuffers(b)
	if err != nil {
		return err
	}
	for buf := range shared {
		if err := d.queue.WriteBuffer(buf.buf, 0, buf.upload()); err != nil {
			return fmt.Errorf("wgpu: upload: %w", err)
		}
	}

	encoder, err := d.gpu.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: b.Label})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(b.Label); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	for pi := range b.Passes {
		pass := &b.Passes[pi]
		for di := range pass.Dispatches {
			if err := q.encodeDispatch(encoder, res, pass.Label, &pass.Dispatches[di]); err != nil {
				encoder.DiscardEncoding()
				return fmt.Errorf("pass %d dispatch %d: %w", pi, di, err)
			}
		}
	}

	var reads []readback
	for buf, writable := range shared {
		if !writable {
			continue
		}
		staging, err := d.gpu.CreateBuffer(&hal.BufferDescriptor{
			Label: "cmt_readback",
			Size:  buf.size,
			Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			encoder.DiscardEncoding()
			return fmt.Errorf("wgpu: create readback buffer: %w", err)
		}
		res.buffers = append(res.buffers, staging)
		encoder.CopyBufferToBuffer(buf.buf, staging, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: buf.size},
		})
		reads = append(reads, readback{buf: buf, staging: staging})
	}

	res.cmdBuf, err = encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	if err := q.submitAndWait(res); err != nil {
		return err
	}

	for _, r := range reads {
		data := make([]byte, r.buf.size)
		if err := d.queue.ReadBuffer(r.staging, 0, data); err != nil {
			return fmt.Errorf("wgpu: readback: %w", err)
		}
		copy(r.buf.host.Bytes(), data)
	}
	return nil
}

// sharedBuffers returns the shared buffers bound by b, mapped to whether
// any dispatch may write them.
func (q *queue) sharedBuffers(b *gpucore.Batch) (map[*buffer]bool, error) {
	shared := make(map[*buffer]bool)
	for pi := range b.Passes {
		for di := range b.Passes[pi].Dispatches {
			disp := &b.Passes[pi].Dispatches[di]
			p, ok := disp.Pipeline.(*pipeline)
			if !ok {
				return nil, fmt.Errorf("wgpu: pipeline was not created by this driver")
			}
			for _, bind := range disp.Bindings {
				if bind.Buffer == nil {
					continue
				}
				buf, ok := bind.Buffer.(*buffer)
				if !ok || buf.dev != q.dev {
					return nil, fmt.Errorf("wgpu: buffer at index %d was not created by this device", bind.Index)
				}
				if buf.host != nil {
					shared[buf] = shared[buf] || p.writable(bind.Index)
				}
			}
		}
	}
	return shared, nil
}

func (q *queue) encodeDispatch(encoder hal.CommandEncoder, res *batchResources, label string, disp *gpucore.Dispatch) error {
	p := disp.Pipeline.(*pipeline)

	groups, err := workgroups(p, disp)
	if err != nil {
		return err
	}

	entries := make([]gputypes.BindGroupEntry, 0, len(disp.Bindings))
	for _, bind := range disp.Bindings {
		entry, err := q.bindGroupEntry(res, bind)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}
	bg, err := q.dev.gpu.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.fn.ep.Name + "_bg",
		Layout:  p.bgLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group: %w", err)
	}
	res.bindGroups = append(res.bindGroups, bg)

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(groups[0], groups[1], groups[2])
	pass.End()
	return nil
}

// workgroups converts a dispatch to a workgroup count. WGSL fixes the
// workgroup size in the source, so DispatchThreadgroups must use it.
func workgroups(p *pipeline, disp *gpucore.Dispatch) ([3]uint32, error) {
	wg := p.fn.ep.WorkgroupSize
	var groups gpucore.Size
	if disp.Mode == gpucore.DispatchThreadgroups {
		if disp.Threadgroup != wg {
			return [3]uint32{}, fmt.Errorf("wgpu: %w: threadgroup %v differs from @workgroup_size %v",
				gpucore.ErrUnsupported, disp.Threadgroup, wg)
		}
		groups = disp.Grid
	} else {
		groups = disp.Grid.CeilDiv(wg)
	}
	if groups.Width > maxWorkgroupsPerDimension || groups.Height > maxWorkgroupsPerDimension ||
		groups.Depth > maxWorkgroupsPerDimension {
		return [3]uint32{}, fmt.Errorf("wgpu: %v workgroups exceed %d per dimension", groups, maxWorkgroupsPerDimension)
	}
	//nolint:gosec // G115: bounded above
	return [3]uint32{uint32(groups.Width), uint32(groups.Height), uint32(groups.Depth)}, nil
}

func (q *queue) bindGroupEntry(res *batchResources, bind gpucore.Binding) (gputypes.BindGroupEntry, error) {
	if bind.Buffer == nil {
		// Inline bytes get a scratch buffer written before submission.
		size := gpucore.AlignUp(uint64(len(bind.Bytes)), 16)
		scratch, err := q.dev.gpu.CreateBuffer(&hal.BufferDescriptor{
			Label: "cmt_inline_bytes",
			Size:  size,
			Usage: bufferUsage,
		})
		if err != nil {
			return gputypes.BindGroupEntry{}, fmt.Errorf("wgpu: inline bytes at index %d: %w", bind.Index, err)
		}
		res.buffers = append(res.buffers, scratch)
		data := make([]byte, size)
		copy(data, bind.Bytes)
		if err := q.dev.queue.WriteBuffer(scratch, 0, data); err != nil {
			return gputypes.BindGroupEntry{}, fmt.Errorf("wgpu: upload: inline bytes at index %d: %w", bind.Index, err)
		}
		return gputypes.BindGroupEntry{
			Binding:  bind.Index,
			Resource: gputypes.BufferBinding{Buffer: scratch.NativeHandle(), Offset: 0, Size: 0},
		}, nil
	}

	buf := bind.Buffer.(*buffer)
	if bind.Offset%bindingOffsetAlignment != 0 {
		return gputypes.BindGroupEntry{}, fmt.Errorf("wgpu: %w: offset %d at index %d is not a multiple of %d",
			gpucore.ErrUnsupported, bind.Offset, bind.Index, bindingOffsetAlignment)
	}
	return gputypes.BindGroupEntry{
		Binding:  bind.Index,
		Resource: gputypes.BufferBinding{Buffer: buf.buf.NativeHandle(), Offset: bind.Offset, Size: 0},
	}, nil
}

func (q *queue) submitAndWait(res *batchResources) error {
	d := q.dev
	fence, err := d.gpu.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	res.fence = fence

	d.submitMu.Lock()
	defer d.submitMu.Unlock()
	if err := d.queue.Submit([]hal.CommandBuffer{res.cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	ok, err := d.gpu.Wait(fence, 1, d.opts.fenceTimeout)
	if err != nil {
		return fmt.Errorf("wgpu: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("wgpu: GPU timeout after %v", d.opts.fenceTimeout)
	}
	return nil
}
