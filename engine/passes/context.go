// package passes implements the fixed render graph: Culling, Visibility,
// ComputeInstances, PathTraceDirect, PathTraceShade, ComputePBR, Wireframe,
// Debug and UI, dispatched in that order against one command encoder per
// frame. Every pass guards its inputs and no-ops silently when any required
// input is empty.
package passes

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/binding"
	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer"
	"github.com/Carmen-Shannon/onyx-go/engine/resources"
	"github.com/Carmen-Shannon/onyx-go/engine/texture"
	"github.com/cogentcore/webgpu/wgpu"
)

// RenderTarget is one offscreen texture a pass renders into or reads from.
// Targets are registered with the atlas manager so their indices are stable
// and addressable from shaders through the textures arena.
type RenderTarget struct {
	// Id is the target's resource id in the atlas.
	Id common.Uid

	// Texture is the backing GPU texture.
	Texture *wgpu.Texture

	// View is the attachment/sampling view.
	View *wgpu.TextureView

	// Format is the texture format.
	Format wgpu.TextureFormat
}

// Release frees the target's GPU objects.
func (t *RenderTarget) Release() {
	if t.View != nil {
		t.View.Release()
		t.View = nil
	}
	if t.Texture != nil {
		t.Texture.Release()
		t.Texture = nil
	}
}

// Context carries everything a pass reads during Init and Update: the draw
// submitter, the buffer store, the atlas, the immediate-mode bus and the
// shared offscreen targets. Passes never retain buffer slices across frames;
// they re-obtain them from here each Update.
type Context struct {
	// Renderer is the draw submitter owning device, queue and pipelines.
	Renderer renderer.Renderer

	// Buffers is the global buffer store.
	Buffers *graphics.GlobalBuffers

	// Atlas is the texture atlas manager.
	Atlas texture.AtlasManager

	// DrawEvents is the immediate-mode shape bus consumed by the wireframe pass.
	DrawEvents resources.DrawEventBus

	// Width and Height are the surface dimensions in pixels.
	Width, Height uint32

	// DebugFlags is the debug pass mix mask; zero disables the pass.
	DebugFlags uint32

	// Visibility is the 24:8 meshlet:triangle id target.
	Visibility RenderTarget

	// InstanceIds is the per-pixel instance id target.
	InstanceIds RenderTarget

	// Depth is the shared depth target.
	Depth RenderTarget

	// Radiance is the RGBA8 target ComputePBR writes tone-mapped color into;
	// it holds no values above 1.
	Radiance RenderTarget

	// RayBuffer, RadianceBuffer and ThroughputBuffer are the packed float
	// path tracing data buffers, each DataBufferElementSize*W*H bytes.
	// They are GPU scratch space with no CPU mirror.
	RayBuffer, RadianceBuffer, ThroughputBuffer *wgpu.Buffer

	// Counters is the PathTracingCounters atomic buffer.
	Counters *wgpu.Buffer

	// bindings caches one binding builder per pass name.
	bindings map[string]binding.Builder
}

// NewContext creates a Context over the engine singletons. GPU targets are
// created by CreateTargets once the renderer is initialized.
//
// Parameters:
//   - r: the draw submitter
//   - buffers: the global buffer store
//   - atlas: the atlas manager
//   - drawEvents: the immediate-mode bus
//
// Returns:
//   - *Context: the new context
func NewContext(r renderer.Renderer, buffers *graphics.GlobalBuffers, atlas texture.AtlasManager, drawEvents resources.DrawEventBus) *Context {
	return &Context{
		Renderer:   r,
		Buffers:    buffers,
		Atlas:      atlas,
		DrawEvents: drawEvents,
		bindings:   make(map[string]binding.Builder),
	}
}

// Bindings returns the binding builder owned by a pass, creating it on
// first use.
//
// Parameters:
//   - passName: the owning pass
//
// Returns:
//   - binding.Builder: the pass's builder
func (c *Context) Bindings(passName string) binding.Builder {
	b, ok := c.bindings[passName]
	if !ok {
		b = binding.NewBuilder()
		c.bindings[passName] = b
	}
	return b
}

// CreateTargets (re)creates every offscreen target and data buffer at the
// given dimensions, registering color and depth targets with the atlas so
// their indices stay addressable. Existing targets are released first.
//
// Parameters:
//   - width: the surface width in pixels
//   - height: the surface height in pixels
//
// Returns:
//   - error: an error if any texture creation fails
func (c *Context) CreateTargets(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("invalid target dimensions %dx%d", width, height)
	}
	c.ReleaseTargets()
	c.Width = width
	c.Height = height

	device := c.Renderer.Device()
	targets := []struct {
		target *RenderTarget
		label  string
		format wgpu.TextureFormat
		atlas  texture.AtlasFormat
		usage  wgpu.TextureUsage
	}{
		{&c.Visibility, "visibility_target", wgpu.TextureFormatRGBA8Unorm, texture.AtlasFormatColor,
			wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding},
		{&c.InstanceIds, "instance_id_target", wgpu.TextureFormatRGBA8Unorm, texture.AtlasFormatColor,
			wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding},
		{&c.Depth, "depth_target", renderer.DepthFormat, texture.AtlasFormatDepth,
			wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding},
		{&c.Radiance, "radiance_target", wgpu.TextureFormatRGBA8Unorm, texture.AtlasFormatColor,
			wgpu.TextureUsageTextureBinding | wgpu.TextureUsageStorageBinding},
	}
	for _, t := range targets {
		t.target.Id = common.NewUid()
		t.target.Format = t.format
		if _, err := c.Atlas.Allocate(t.target.Id, t.atlas, &common.TextureStagingData{Width: width, Height: height}); err != nil {
			log.Printf("[Passes] atlas registration for %s failed: %v", t.label, err)
		}
		if device == nil {
			continue
		}
		tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         t.label,
			Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        t.format,
			Usage:         t.usage,
		})
		if err != nil {
			return fmt.Errorf("target %s creation failed: %w", t.label, err)
		}
		t.target.Texture = tex
		view, err := tex.CreateView(nil)
		if err != nil {
			return fmt.Errorf("target %s view creation failed: %w", t.label, err)
		}
		t.target.View = view
	}

	if device != nil {
		dataBufferSize := graphics.DataBufferElementSize * uint64(width) * uint64(height)
		for _, spec := range []struct {
			buffer **wgpu.Buffer
			label  string
			size   uint64
		}{
			{&c.RayBuffer, "pathtrace_rays", dataBufferSize},
			{&c.RadianceBuffer, "pathtrace_radiance", dataBufferSize},
			{&c.ThroughputBuffer, "pathtrace_throughput", dataBufferSize},
			{&c.Counters, "pathtrace_counters", 16},
		} {
			buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: spec.label,
				Size:  spec.size,
				Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
			})
			if err != nil {
				return fmt.Errorf("buffer %s creation failed: %w", spec.label, err)
			}
			*spec.buffer = buf
		}
	}
	return nil
}

// ReleaseTargets frees every offscreen target and frees their atlas layers.
func (c *Context) ReleaseTargets() {
	for _, t := range []*RenderTarget{&c.Visibility, &c.InstanceIds, &c.Depth, &c.Radiance} {
		if t.Id.IsValid() {
			c.Atlas.Free(t.Id)
			t.Id = common.InvalidUid
		}
		t.Release()
	}
	for _, buf := range []**wgpu.Buffer{&c.RayBuffer, &c.RadianceBuffer, &c.ThroughputBuffer, &c.Counters} {
		if *buf != nil {
			(*buf).Release()
			*buf = nil
		}
	}
	for _, b := range c.bindings {
		b.Release()
	}
}

// workgroups returns the dispatch count covering n items at the given
// workgroup size.
func workgroups(n, size uint32) uint32 {
	if n == 0 {
		return 0
	}
	return (n + size - 1) / size
}
