package scene

import (
	"errors"
	"unsafe"

	"voxelcore/internal/gpu"
)

// fakeDevice backs a scene.Manager with plain byte-slice buffers so the
// renderer's submit/rebuild/render cycle can be exercised without a
// real graphics driver.
type fakeDevice struct{}

func (d *fakeDevice) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	return &fakeBuffer{data: make([]byte, desc.Size)}, nil
}

func (d *fakeDevice) DestroyBuffer(b gpu.Buffer) {}

func (d *fakeDevice) BeginSingleTimeCommands() gpu.CommandRecorder { return &fakeRecorder{} }

func (d *fakeDevice) EndSingleTimeCommands(rec gpu.CommandRecorder) error {
	r, ok := rec.(*fakeRecorder)
	if !ok {
		return errors.New("scene: unexpected recorder type")
	}
	for _, op := range r.copies {
		src := op.src.(*fakeBuffer)
		dst := op.dst.(*fakeBuffer)
		copy(dst.data[op.dstOffset:op.dstOffset+op.size], src.data[op.srcOffset:op.srcOffset+op.size])
	}
	return nil
}

func (d *fakeDevice) WaitIdle() error { return nil }

type fakeBuffer struct{ data []byte }

func (b *fakeBuffer) Handle() uintptr { return uintptr(unsafe.Pointer(b)) }
func (b *fakeBuffer) Size() uint64    { return uint64(len(b.data)) }

func (b *fakeBuffer) Map() (unsafe.Pointer, error) {
	if len(b.data) == 0 {
		return nil, nil
	}
	return unsafe.Pointer(&b.data[0]), nil
}

func (b *fakeBuffer) Unmap()                                {}
func (b *fakeBuffer) Flush(offset, size uint64) error       { return nil }

type copyOp struct {
	src, dst             gpu.Buffer
	srcOffset, dstOffset uint64
	size                 uint64
}

type fakeRecorder struct {
	copies      []copyOp
	drawCalls   int
	boundBuffer gpu.Buffer
}

func (r *fakeRecorder) CopyBuffer(src, dst gpu.Buffer, srcOffset, dstOffset, size uint64) {
	r.copies = append(r.copies, copyOp{src, dst, srcOffset, dstOffset, size})
}

func (r *fakeRecorder) BufferBarrier(buf gpu.Buffer, offset, size uint64, kind gpu.BarrierKind) {}

func (r *fakeRecorder) BindVertexBuffer(buf gpu.Buffer, offset uint64) { r.boundBuffer = buf }
func (r *fakeRecorder) BindIndexBuffer(buf gpu.Buffer, offset uint64)  {}
func (r *fakeRecorder) PushConstants(stageMask, offset uint32, data []byte) {}

func (r *fakeRecorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	r.drawCalls++
}
