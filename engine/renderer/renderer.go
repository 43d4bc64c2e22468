// package renderer is the draw submitter: it owns the GPU device, the
// surface, and the pipeline cache, hands each frame's command encoder to
// the pass graph, then submits and presents. Surface loss triggers a
// reconfigure and a full invalidation of pipeline objects.
package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/onyx-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/onyx-go/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backend rendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
}

// PresentMode controls how frames are delivered to the display.
type PresentMode int

const (
	// PresentModeVSync caps presentation to the display refresh rate.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames as fast as they are produced.
	PresentModeUncapped
)

// Renderer owns the GPU context and the per-frame submission flow. The pass
// graph calls BeginFrame to acquire the surface texture and a command
// encoder, records every active pass, then EndFrame submits and presents.
type Renderer interface {
	// Init creates the GPU instance, surface, adapter, device and queue for
	// a window, then configures the surface at the window's size.
	//
	// Parameters:
	//   - w: the window providing the surface descriptor and dimensions
	//
	// Returns:
	//   - error: an error if any GPU object creation fails
	Init(w window.Window) error

	// Device returns the wgpu device.
	//
	// Returns:
	//   - *wgpu.Device: the device, or nil before Init
	Device() *wgpu.Device

	// Queue returns the wgpu queue.
	//
	// Returns:
	//   - *wgpu.Queue: the queue, or nil before Init
	Queue() *wgpu.Queue

	// SurfaceFormat returns the configured surface texture format.
	//
	// Returns:
	//   - wgpu.TextureFormat: the surface format
	SurfaceFormat() wgpu.TextureFormat

	// SurfaceSize returns the configured surface dimensions in pixels.
	//
	// Returns:
	//   - uint32: the width
	//   - uint32: the height
	SurfaceSize() (uint32, uint32)

	// HasFeature reports whether the adapter exposes a GPU feature.
	//
	// Parameters:
	//   - feature: the feature to query
	//
	// Returns:
	//   - bool: true when available
	HasFeature(feature wgpu.FeatureName) bool

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// RegisterPipelines registers one or more pipelines by creating the
	// corresponding GPU pipeline objects (render or compute), then caching
	// them by PipelineKey. Pipelines whose keys are already registered are
	// skipped to avoid duplicate GPU resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// Resize reconfigures the surface for a new size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// BeginFrame acquires the next surface texture and creates the frame's
	// command encoder. On surface loss the surface is reconfigured, every
	// pipeline is invalidated, and the frame is dropped with an error; the
	// next tick retries.
	//
	// Returns:
	//   - *wgpu.TextureView: the surface view to render into
	//   - *wgpu.CommandEncoder: the frame's command encoder
	//   - error: an error when the frame must be dropped
	BeginFrame() (*wgpu.TextureView, *wgpu.CommandEncoder, error)

	// EndFrame finishes the frame's encoder, submits the command buffer and
	// presents the surface texture.
	//
	// Returns:
	//   - error: an error if submission fails
	EndFrame() error

	// Invalidate releases every cached pipeline's GPU objects. Callers
	// re-register pipelines afterwards; used on surface or device loss.
	Invalidate()

	// Release frees all GPU resources owned by the renderer.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer with all specified options applied.
// Init must be called with a window before the first frame.
//
// Parameters:
//   - opts: a variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: the new renderer
func NewRenderer(opts ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
	}
	for _, opt := range opts {
		opt(r)
	}
	backend := newWgpuRendererBackend(r.forceFallbackAdapter)
	if r.pendingPresentMode != nil {
		backend.SetPresentMode(*r.pendingPresentMode)
	}
	r.backend = backend
	return r
}

func (r *renderer) Init(w window.Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.Init(w)
}

func (r *renderer) Device() *wgpu.Device {
	return r.backend.Device()
}

func (r *renderer) Queue() *wgpu.Queue {
	return r.backend.Queue()
}

func (r *renderer) SurfaceFormat() wgpu.TextureFormat {
	return r.backend.SurfaceFormat()
}

func (r *renderer) SurfaceSize() (uint32, uint32) {
	return r.backend.SurfaceSize()
}

func (r *renderer) HasFeature(feature wgpu.FeatureName) bool {
	return r.backend.HasFeature(feature)
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		if cached, ok := r.pipelineCache[p.PipelineKey()]; ok {
			// Pipeline() wraps a typed pointer, so test the pointer itself:
			// a pipeline released by Invalidate is registered again
			switch gp := cached.Pipeline().(type) {
			case *wgpu.RenderPipeline:
				if gp != nil {
					continue
				}
			case *wgpu.ComputePipeline:
				if gp != nil {
					continue
				}
			}
		}
		var err error
		switch p.Type() {
		case pipeline.PipelineTypeRender:
			err = r.backend.RegisterRenderPipeline(p)
		case pipeline.PipelineTypeCompute:
			err = r.backend.RegisterComputePipeline(p)
		default:
			err = fmt.Errorf("unknown pipeline type %d", p.Type())
		}
		if err != nil {
			return fmt.Errorf("pipeline %s: %w", p.PipelineKey(), err)
		}
		r.pipelineCache[p.PipelineKey()] = p
	}
	return nil
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) BeginFrame() (*wgpu.TextureView, *wgpu.CommandEncoder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, encoder, err := r.backend.BeginFrame()
	if err != nil {
		// surface loss: reconfigure and invalidate; the frame is dropped
		r.backend.Reconfigure()
		r.invalidateLocked()
		return nil, nil, err
	}
	return view, encoder, nil
}

func (r *renderer) EndFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.EndFrame()
}

func (r *renderer) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidateLocked()
}

func (r *renderer) invalidateLocked() {
	for _, p := range r.pipelineCache {
		p.Release()
	}
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidateLocked()
	r.pipelineCache = make(map[string]pipeline.Pipeline)
	r.backend.Release()
}
