// Command voxeldemo is a thin host that stands up a Vulkan device and
// drives one instance of the voxel engine core through a real frame
// loop: generate a world, walk the camera forward, remesh dirty chunks
// and draw the visible set, every frame, until the window closes.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"

	"voxelcore/internal/config"
	"voxelcore/internal/culling"
	"voxelcore/internal/picking"
	"voxelcore/internal/scene"
	"voxelcore/internal/voxel"
)

func main() {
	radius := flag.Int("radius", 4, "chunk grid radius on each axis")
	seed := flag.Int64("seed", 1, "world generation seed")
	flag.Parse()

	logger := log.New(os.Stdout, "voxeldemo: ", log.LstdFlags)

	boot, err := newBootstrap(1280, 720, "voxelcore demo")
	if err != nil {
		logger.Fatalf("bootstrap failed: %v", err)
	}
	defer closer.Close()

	dev := newVkDevice(boot.physical, boot.device, boot.queue, boot.pool, boot.pipelineLayout)

	cfg := config.Default()
	mgr, err := scene.NewManager(cfg, dev, *radius, *radius, *radius, *seed)
	if err != nil {
		logger.Fatalf("scene manager init failed: %v", err)
	}
	defer mgr.Close()

	logger.Println("generating world...")
	start := time.Now()
	mgr.GenerateWorld()
	logger.Printf("world generated in %s", time.Since(start))

	cam := &camera{
		position: mgl32.Vec3{0, float32(cfg.ChunkSize) + 8, 0},
		yaw:      -90,
		fov:      70,
		aspect:   1280.0 / 720.0,
	}

	boot.window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft || action != glfw.Press {
			return
		}
		res := picking.Raycast(cam.position, cam.forward(), 0, 20, mgr.GetVoxel)
		if !res.Hit {
			return
		}
		mgr.SetVoxel(res.HitPosition[0], res.HitPosition[1], res.HitPosition[2], voxel.Air)
	})

	frameStart := time.Now()
	var frame uint64
	for !boot.window.ShouldClose() {
		glfw.PollEvents()

		now := float32(time.Since(frameStart).Seconds())
		cam.position = cam.position.Add(cam.forward().Mul(0.05))

		mgr.UpdateCamera(cam.position)
		if err := mgr.RebuildDirtyChunks(now); err != nil {
			logger.Printf("rebuild dirty chunks: %v", err)
		}

		viewProj := cam.viewProjection()
		frustum := culling.FromViewProjection(viewProj)

		rec := dev.BeginSingleTimeCommands()
		stats := mgr.Render(rec, frustum, now)
		if err := dev.EndSingleTimeCommands(rec); err != nil {
			logger.Printf("submit frame: %v", err)
		}

		frame++
		if frame%120 == 0 {
			fmt.Printf("frame %d: visible=%d culled=%d pools=%d\n", frame, stats.Visible, stats.Culled, stats.Pools)
		}
	}
}

// camera is a minimal fly camera; input handling beyond forward drift
// is out of scope for this demonstrator.
type camera struct {
	position   mgl32.Vec3
	yaw, pitch float32
	fov        float32
	aspect     float32
}

func (c *camera) forward() mgl32.Vec3 {
	y := mgl32.DegToRad(c.yaw)
	pt := mgl32.DegToRad(c.pitch)
	fx := float32(math.Cos(float64(y)) * math.Cos(float64(pt)))
	fy := float32(math.Sin(float64(pt)))
	fz := float32(math.Sin(float64(y)) * math.Cos(float64(pt)))
	return mgl32.Vec3{fx, fy, fz}.Normalize()
}

func (c *camera) viewProjection() mgl32.Mat4 {
	target := c.position.Add(c.forward())
	view := mgl32.LookAtV(c.position, target, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(c.fov), c.aspect, 0.1, 1000)
	return proj.Mul4(view)
}
