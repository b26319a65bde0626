package geometry

import (
	"errors"
	"unsafe"

	"voxelcore/internal/gpu"
)

// fakeDevice is an in-process stand-in for a real GPU device: buffers
// are plain byte slices, and command recording just replays operations
// synchronously against them. Good enough to exercise the geometry
// package's allocation and batching logic without a real driver.
type fakeDevice struct {
	failCreate bool
	lastRec    *fakeRecorder
}

func (d *fakeDevice) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if d.failCreate {
		return nil, errors.New("fakeDevice: forced CreateBuffer failure")
	}
	return &fakeBuffer{data: make([]byte, desc.Size)}, nil
}

func (d *fakeDevice) DestroyBuffer(b gpu.Buffer) {}

func (d *fakeDevice) BeginSingleTimeCommands() gpu.CommandRecorder {
	d.lastRec = &fakeRecorder{}
	return d.lastRec
}

func (d *fakeDevice) EndSingleTimeCommands(rec gpu.CommandRecorder) error {
	r := rec.(*fakeRecorder)
	for _, op := range r.copies {
		src := op.src.(*fakeBuffer)
		dst := op.dst.(*fakeBuffer)
		copy(dst.data[op.dstOffset:op.dstOffset+op.size], src.data[op.srcOffset:op.srcOffset+op.size])
	}
	return nil
}

func (d *fakeDevice) WaitIdle() error { return nil }

type fakeBuffer struct {
	data   []byte
	mapped bool
}

func (b *fakeBuffer) Handle() uintptr { return uintptr(unsafe.Pointer(b)) }
func (b *fakeBuffer) Size() uint64    { return uint64(len(b.data)) }

func (b *fakeBuffer) Map() (unsafe.Pointer, error) {
	b.mapped = true
	if len(b.data) == 0 {
		return nil, nil
	}
	return unsafe.Pointer(&b.data[0]), nil
}

func (b *fakeBuffer) Unmap() { b.mapped = false }

func (b *fakeBuffer) Flush(offset, size uint64) error { return nil }

type copyOp struct {
	src, dst             gpu.Buffer
	srcOffset, dstOffset uint64
	size                 uint64
}

type fakeRecorder struct {
	copies   []copyOp
	barriers int
}

func (r *fakeRecorder) CopyBuffer(src, dst gpu.Buffer, srcOffset, dstOffset, size uint64) {
	r.copies = append(r.copies, copyOp{src, dst, srcOffset, dstOffset, size})
}

func (r *fakeRecorder) BufferBarrier(buf gpu.Buffer, offset, size uint64, kind gpu.BarrierKind) {
	r.barriers++
}

func (r *fakeRecorder) BindVertexBuffer(buf gpu.Buffer, offset uint64) {}
func (r *fakeRecorder) BindIndexBuffer(buf gpu.Buffer, offset uint64)  {}
func (r *fakeRecorder) PushConstants(stageMask, offset uint32, data []byte) {}
func (r *fakeRecorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
}
