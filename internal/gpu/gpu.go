// Package gpu narrows the host/device boundary the engine core needs:
// buffer creation, mapped upload, one-shot command recording, and
// barrier insertion. The core never imports a graphics API directly;
// cmd/voxeldemo implements this against real Vulkan handles.
package gpu

import "unsafe"

// UsageFlags mirror Vulkan buffer usage bits closely enough for a host
// implementation to translate directly.
type UsageFlags uint32

const (
	UsageVertex UsageFlags = 1 << iota
	UsageIndex
	UsageStorage
	UsageTransferSrc
	UsageTransferDst
	UsageShaderDeviceAddress
)

// MemoryUsage selects the memory type class a buffer is allocated
// from, matching VMA's usage enum closely.
type MemoryUsage int

const (
	MemoryGPUOnly MemoryUsage = iota
	MemoryCPUToGPU
	MemoryCPUOnly
)

// BufferDesc parameterizes buffer creation.
type BufferDesc struct {
	Size        uint64
	Usage       UsageFlags
	MemoryUsage MemoryUsage
}

// Buffer is a host-owned GPU buffer handle.
type Buffer interface {
	Handle() uintptr
	Size() uint64
	Map() (unsafe.Pointer, error)
	Unmap()
	Flush(offset, size uint64) error
}

// BarrierKind distinguishes the two consumer stages the geometry
// manager ever transitions into after a transfer write.
type BarrierKind int

const (
	BarrierVertexInput BarrierKind = iota
	BarrierIndexInput
)

// CommandRecorder accumulates commands for a single-time submission.
type CommandRecorder interface {
	CopyBuffer(src, dst Buffer, srcOffset, dstOffset, size uint64)
	BufferBarrier(buf Buffer, offset, size uint64, kind BarrierKind)
	BindVertexBuffer(buf Buffer, offset uint64)
	BindIndexBuffer(buf Buffer, offset uint64)
	PushConstants(stageMask uint32, offset uint32, data []byte)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

// Device creates buffers and brackets single-time command submissions.
// Implementations must serialize concurrent BeginSingleTimeCommands
// calls internally if the underlying API requires it; the engine core
// only ever has one batched upload in flight per RebuildDirtyChunks
// call, but Render may run concurrently with the next frame's upload
// preparation.
type Device interface {
	CreateBuffer(desc BufferDesc) (Buffer, error)
	DestroyBuffer(b Buffer)
	BeginSingleTimeCommands() CommandRecorder
	EndSingleTimeCommands(rec CommandRecorder) error
	WaitIdle() error
}
