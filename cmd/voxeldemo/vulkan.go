package main

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
	"github.com/xlab/closer"
)

// bootstrap owns the Vulkan instance/device chain and the window it was
// created against. Swapchain and presentation are left to a fuller
// integration; this only stands up enough of the device to back
// internal/gpu against real buffers and command submission.
type bootstrap struct {
	window         *glfw.Window
	instance       vk.Instance
	physical       vk.PhysicalDevice
	device         vk.Device
	queue          vk.Queue
	pool           vk.CommandPool
	pipelineLayout vk.PipelineLayout
}

func newBootstrap(width, height int, title string) (*bootstrap, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("voxeldemo: glfw.Init: %w", err)
	}
	closer.Bind(glfw.Terminate)

	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, fmt.Errorf("voxeldemo: vulkan proc loader: %w", err)
	}
	vk.Init()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("voxeldemo: glfw.CreateWindow: %w", err)
	}

	b := &bootstrap{window: window}
	if err := b.createInstance(title); err != nil {
		return nil, err
	}
	if err := b.pickPhysicalDevice(); err != nil {
		return nil, err
	}
	if err := b.createLogicalDevice(); err != nil {
		return nil, err
	}
	if err := b.createCommandPool(); err != nil {
		return nil, err
	}
	if err := b.createPipelineLayout(); err != nil {
		return nil, err
	}
	closer.Bind(b.destroy)
	return b, nil
}

// pushConstantRangeSize covers the {origin, fade_progress} block the
// renderer writes at offset 128 (see internal/scene/renderer.go).
const pushConstantRangeSize = 128 + 16

// createPipelineLayout builds the layout the per-chunk push constants
// are recorded against. No descriptor sets are bound yet; a fuller
// integration would add the camera/material set here too.
func (b *bootstrap) createPipelineLayout() error {
	ranges := []vk.PushConstantRange{{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		Offset:     0,
		Size:       pushConstantRangeSize,
	}}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(b.device, &info, nil, &layout); res != vk.Success {
		return fmt.Errorf("voxeldemo: vkCreatePipelineLayout failed: %d", res)
	}
	b.pipelineLayout = layout
	return nil
}

func (b *bootstrap) createInstance(title string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   title + "\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "voxelcore\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.ApiVersion11,
	}
	extensions := glfw.GetRequiredInstanceExtensions()
	info := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	var instance vk.Instance
	if res := vk.CreateInstance(&info, nil, &instance); res != vk.Success {
		return fmt.Errorf("voxeldemo: vkCreateInstance failed: %d", res)
	}
	b.instance = instance
	vk.InitInstance(instance)
	return nil
}

func (b *bootstrap) pickPhysicalDevice() error {
	var count uint32
	vk.EnumeratePhysicalDevices(b.instance, &count, nil)
	if count == 0 {
		return fmt.Errorf("voxeldemo: no Vulkan-capable physical device found")
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(b.instance, &count, devices)
	b.physical = devices[0]
	return nil
}

func (b *bootstrap) graphicsQueueFamily() uint32 {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(b.physical, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(b.physical, &count, families)
	for i, f := range families {
		f.Deref()
		if vk.QueueFlagBits(f.QueueFlags)&vk.QueueGraphicsBit != 0 {
			return uint32(i)
		}
	}
	return 0
}

func (b *bootstrap) createLogicalDevice() error {
	family := b.graphicsQueueFamily()
	priorities := []float32{1.0}
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: family,
		QueueCount:       1,
		PQueuePriorities: priorities,
	}
	info := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueInfo},
	}
	var device vk.Device
	if res := vk.CreateDevice(b.physical, &info, nil, &device); res != vk.Success {
		return fmt.Errorf("voxeldemo: vkCreateDevice failed: %d", res)
	}
	b.device = device

	var queue vk.Queue
	vk.GetDeviceQueue(device, family, 0, &queue)
	b.queue = queue
	return nil
}

func (b *bootstrap) createCommandPool() error {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: b.graphicsQueueFamily(),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(b.device, &info, nil, &pool); res != vk.Success {
		return fmt.Errorf("voxeldemo: vkCreateCommandPool failed: %d", res)
	}
	b.pool = pool
	return nil
}

func (b *bootstrap) destroy() {
	if b.device != vk.NullDevice {
		vk.DeviceWaitIdle(b.device)
	}
	if b.pipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(b.device, b.pipelineLayout, nil)
	}
	if b.pool != vk.NullCommandPool {
		vk.DestroyCommandPool(b.device, b.pool, nil)
	}
	if b.device != vk.NullDevice {
		vk.DestroyDevice(b.device, nil)
	}
	if b.instance != vk.NullInstance {
		vk.DestroyInstance(b.instance, nil)
	}
	if b.window != nil {
		b.window.Destroy()
	}
}
