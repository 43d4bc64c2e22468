package renderer

import (
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/onyx-go/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// rendererBackend abstracts the GPU API from the Renderer so alternative
// backends can exist. The wgpu implementation lives in
// wgpu_renderer_backend.go.
type rendererBackend interface {
	// Init creates the instance, surface, adapter, device and queue for a
	// window and configures the surface.
	Init(w window.Window) error

	Device() *wgpu.Device
	Queue() *wgpu.Queue
	SurfaceFormat() wgpu.TextureFormat
	SurfaceSize() (uint32, uint32)
	HasFeature(feature wgpu.FeatureName) bool
	SetPresentMode(mode PresentMode)

	// ConfigureSurface is a wrapper for boilerplate logic required when calling ConfigureSurface on a surface.
	// This is required when the surface size changes, such as when the window is resized.
	ConfigureSurface(width, height int)

	// Reconfigure re-applies the last surface configuration, used after
	// surface loss.
	Reconfigure()

	// BeginFrame acquires the surface texture and opens the frame encoder.
	BeginFrame() (*wgpu.TextureView, *wgpu.CommandEncoder, error)

	// EndFrame finishes the encoder, submits and presents.
	EndFrame() error

	// RegisterRenderPipeline creates the GPU render pipeline for a Pipeline.
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// RegisterComputePipeline creates the GPU compute pipeline for a Pipeline.
	RegisterComputePipeline(p pipeline.Pipeline) error

	// Release frees every GPU object owned by the backend.
	Release()
}
