package main

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"voxelcore/internal/gpu"
)

// vkDevice adapts a raw Vulkan logical device to internal/gpu.Device.
// Swapchain, render pass, and pipeline setup are out of scope for the
// engine core (see SPEC_FULL §1) — this only wires the buffer and
// one-shot command primitives the core actually calls.
type vkDevice struct {
	physical vk.PhysicalDevice
	device   vk.Device
	queue    vk.Queue
	pool     vk.CommandPool
	layout   vk.PipelineLayout
	memProps vk.PhysicalDeviceMemoryProperties
}

func newVkDevice(physical vk.PhysicalDevice, device vk.Device, queue vk.Queue, pool vk.CommandPool, layout vk.PipelineLayout) *vkDevice {
	d := &vkDevice{physical: physical, device: device, queue: queue, pool: pool, layout: layout}
	vk.GetPhysicalDeviceMemoryProperties(physical, &d.memProps)
	return d
}

func translateUsage(u gpu.UsageFlags) vk.BufferUsageFlags {
	var f vk.BufferUsageFlagBits
	if u&gpu.UsageVertex != 0 {
		f |= vk.BufferUsageVertexBufferBit
	}
	if u&gpu.UsageIndex != 0 {
		f |= vk.BufferUsageIndexBufferBit
	}
	if u&gpu.UsageStorage != 0 {
		f |= vk.BufferUsageStorageBufferBit
	}
	if u&gpu.UsageTransferSrc != 0 {
		f |= vk.BufferUsageTransferSrcBit
	}
	if u&gpu.UsageTransferDst != 0 {
		f |= vk.BufferUsageTransferDstBit
	}
	if u&gpu.UsageShaderDeviceAddress != 0 {
		f |= vk.BufferUsageShaderDeviceAddressBit
	}
	return vk.BufferUsageFlags(f)
}

func (d *vkDevice) memoryTypeIndex(typeBits uint32, wantCPUVisible bool) (uint32, error) {
	want := vk.MemoryPropertyDeviceLocalBit
	if wantCPUVisible {
		want = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	d.memProps.Deref()
	for i := uint32(0); i < d.memProps.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		d.memProps.MemoryTypes[i].Deref()
		if vk.MemoryPropertyFlagBits(d.memProps.MemoryTypes[i].PropertyFlags)&want == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("voxeldemo: no matching memory type for bits=%x", typeBits)
}

// CreateBuffer allocates a buffer and binds dedicated device memory to it.
func (d *vkDevice) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  vk.DeviceSize(desc.Size),
		Usage: translateUsage(desc.Usage),
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(d.device, &info, nil, &buf); res != vk.Success {
		return nil, fmt.Errorf("voxeldemo: vkCreateBuffer failed: %d", res)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buf, &req)
	req.Deref()

	hostVisible := desc.MemoryUsage != gpu.MemoryGPUOnly
	typeIdx, err := d.memoryTypeIndex(req.MemoryTypeBits, hostVisible)
	if err != nil {
		vk.DestroyBuffer(d.device, buf, nil)
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIdx,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(d.device, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyBuffer(d.device, buf, nil)
		return nil, fmt.Errorf("voxeldemo: vkAllocateMemory failed: %d", res)
	}
	if res := vk.BindBufferMemory(d.device, buf, mem, 0); res != vk.Success {
		vk.FreeMemory(d.device, mem, nil)
		vk.DestroyBuffer(d.device, buf, nil)
		return nil, fmt.Errorf("voxeldemo: vkBindBufferMemory failed: %d", res)
	}

	return &vkBuffer{device: d.device, buffer: buf, memory: mem, size: desc.Size}, nil
}

func (d *vkDevice) DestroyBuffer(b gpu.Buffer) {
	vb, ok := b.(*vkBuffer)
	if !ok {
		return
	}
	vk.DestroyBuffer(d.device, vb.buffer, nil)
	vk.FreeMemory(d.device, vb.memory, nil)
}

func (d *vkDevice) BeginSingleTimeCommands() gpu.CommandRecorder {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cmdBufs := make([]vk.CommandBuffer, 1)
	vk.AllocateCommandBuffers(d.device, &allocInfo, cmdBufs)
	cmd := cmdBufs[0]

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	vk.BeginCommandBuffer(cmd, &beginInfo)

	return &vkRecorder{cmd: cmd, layout: d.layout}
}

func (d *vkDevice) EndSingleTimeCommands(recIface gpu.CommandRecorder) error {
	rec, ok := recIface.(*vkRecorder)
	if !ok {
		return fmt.Errorf("voxeldemo: unexpected recorder type")
	}
	rec.flushBarriers()
	vk.EndCommandBuffer(rec.cmd)

	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{rec.cmd},
	}
	if res := vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{submit}, vk.NullFence); res != vk.Success {
		return fmt.Errorf("voxeldemo: vkQueueSubmit failed: %d", res)
	}
	vk.QueueWaitIdle(d.queue)
	vk.FreeCommandBuffers(d.device, d.pool, 1, []vk.CommandBuffer{rec.cmd})
	return nil
}

func (d *vkDevice) WaitIdle() error {
	if res := vk.DeviceWaitIdle(d.device); res != vk.Success {
		return fmt.Errorf("voxeldemo: vkDeviceWaitIdle failed: %d", res)
	}
	return nil
}

// vkBuffer adapts a Vulkan buffer + its bound memory to gpu.Buffer.
type vkBuffer struct {
	device vk.Device
	buffer vk.Buffer
	memory vk.DeviceMemory
	size   uint64
	mapped unsafe.Pointer
}

func (b *vkBuffer) Handle() uintptr { return uintptr(unsafe.Pointer(&b.buffer)) }
func (b *vkBuffer) Size() uint64    { return b.size }

func (b *vkBuffer) Map() (unsafe.Pointer, error) {
	if res := vk.MapMemory(b.device, b.memory, 0, vk.DeviceSize(b.size), 0, &b.mapped); res != vk.Success {
		return nil, fmt.Errorf("voxeldemo: vkMapMemory failed: %d", res)
	}
	return b.mapped, nil
}

func (b *vkBuffer) Unmap() {
	vk.UnmapMemory(b.device, b.memory)
	b.mapped = nil
}

func (b *vkBuffer) Flush(offset, size uint64) error {
	ranges := []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: b.memory,
		Offset: vk.DeviceSize(offset),
		Size:   vk.DeviceSize(size),
	}}
	if res := vk.FlushMappedMemoryRanges(b.device, 1, ranges); res != vk.Success {
		return fmt.Errorf("voxeldemo: vkFlushMappedMemoryRanges failed: %d", res)
	}
	return nil
}

// vkRecorder buffers copy/barrier/draw commands against one command
// buffer. Buffer barriers are accumulated and flushed as a single
// vkCmdPipelineBarrier call in flushBarriers, matching the engine
// core's "one combined barrier per batch" contract.
type vkRecorder struct {
	cmd      vk.CommandBuffer
	layout   vk.PipelineLayout
	barriers []vk.BufferMemoryBarrier
}

func (r *vkRecorder) CopyBuffer(src, dst gpu.Buffer, srcOffset, dstOffset, size uint64) {
	sb := src.(*vkBuffer)
	db := dst.(*vkBuffer)
	regions := []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}}
	vk.CmdCopyBuffer(r.cmd, sb.buffer, db.buffer, 1, regions)
}

func (r *vkRecorder) BufferBarrier(buf gpu.Buffer, offset, size uint64, kind gpu.BarrierKind) {
	vb := buf.(*vkBuffer)
	dstAccess := vk.AccessFlagBits(vk.AccessVertexAttributeReadBit)
	if kind == gpu.BarrierIndexInput {
		dstAccess = vk.AccessIndexReadBit
	}
	r.barriers = append(r.barriers, vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:       vk.AccessFlags(dstAccess),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              vb.buffer,
		Offset:              vk.DeviceSize(offset),
		Size:                vk.DeviceSize(size),
	})
}

// flushBarriers issues every accumulated buffer barrier as one
// vkCmdPipelineBarrier call before the command buffer is submitted,
// so a whole batch's worth of newly copied geometry crosses exactly
// one barrier.
func (r *vkRecorder) flushBarriers() {
	if len(r.barriers) == 0 {
		return
	}
	vk.CmdPipelineBarrier(r.cmd,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageVertexInputBit)|vk.PipelineStageFlags(vk.PipelineStageVertexInputBit),
		0, 0, nil, uint32(len(r.barriers)), r.barriers, 0, nil)
	r.barriers = nil
}

func (r *vkRecorder) BindVertexBuffer(buf gpu.Buffer, offset uint64) {
	vb := buf.(*vkBuffer)
	vk.CmdBindVertexBuffers(r.cmd, 0, 1, []vk.Buffer{vb.buffer}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (r *vkRecorder) BindIndexBuffer(buf gpu.Buffer, offset uint64) {
	vb := buf.(*vkBuffer)
	vk.CmdBindIndexBuffer(r.cmd, vb.buffer, vk.DeviceSize(offset), vk.IndexTypeUint32)
}

func (r *vkRecorder) PushConstants(stageMask uint32, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(r.cmd, r.layout, vk.ShaderStageFlags(stageMask), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (r *vkRecorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(r.cmd, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}
