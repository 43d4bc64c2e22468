package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/onyx-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/onyx-go/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// DepthFormat is the depth format used by every depth attachment in the
// pass graph.
const DepthFormat = wgpu.TextureFormatDepth32Float

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat *wgpu.TextureFormat
	surfaceWidth  uint32
	surfaceHeight uint32

	presentMode          wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	forceFallbackAdapter bool

	features map[wgpu.FeatureName]bool

	// Frame state shared by the pass graph across one BeginFrame/EndFrame pair
	frameEncoder *wgpu.CommandEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ rendererBackend = &wgpuRendererBackendImpl{}

func newWgpuRendererBackend(forceFallbackAdapter bool) rendererBackend {
	return &wgpuRendererBackendImpl{
		mu:                   &sync.Mutex{},
		presentMode:          wgpu.PresentModeImmediate,
		forceFallbackAdapter: forceFallbackAdapter,
		features:             make(map[wgpu.FeatureName]bool),
	}
}

func (b *wgpuRendererBackendImpl) Init(w window.Window) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	runtime.LockOSThread()

	b.instance = wgpu.CreateInstance(nil)
	descriptor := w.SurfaceDescriptor()
	if descriptor == nil {
		return errors.New("window has no surface descriptor")
	}
	b.surface = b.instance.CreateSurface(descriptor)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return fmt.Errorf("adapter request failed: %w", err)
	}
	b.adapter = adapter
	for _, feature := range adapter.EnumerateFeatures() {
		b.features[feature] = true
	}

	// Indirect draws and the per-pass storage buffers need raised limits over
	// the WebGPU defaults.
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8
	limits.MaxStorageBuffersPerShaderStage = 12

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return fmt.Errorf("device request failed: %w", err)
	}
	b.device = device
	b.queue = device.GetQueue()

	width, height := w.Size()
	b.configureSurfaceLocked(width, height)
	return nil
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) SurfaceFormat() wgpu.TextureFormat {
	if b.surfaceFormat == nil {
		return wgpu.TextureFormatUndefined
	}
	return *b.surfaceFormat
}

func (b *wgpuRendererBackendImpl) SurfaceSize() (uint32, uint32) {
	return b.surfaceWidth, b.surfaceHeight
}

func (b *wgpuRendererBackendImpl) HasFeature(feature wgpu.FeatureName) bool {
	return b.features[feature]
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configureSurfaceLocked(width, height)
}

func (b *wgpuRendererBackendImpl) configureSurfaceLocked(width, height int) {
	if width <= 0 || height <= 0 || b.surface == nil {
		return
	}
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.surfaceWidth = uint32(width)
	b.surfaceHeight = uint32(height)
}

func (b *wgpuRendererBackendImpl) Reconfigure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configureSurfaceLocked(int(b.surfaceWidth), int(b.surfaceHeight))
}

func (b *wgpuRendererBackendImpl) BeginFrame() (*wgpu.TextureView, *wgpu.CommandEncoder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Defensive: if a previous frame's surface texture is still held, avoid
	// attempting to acquire another one. This prevents wgpu-native validation
	// errors like "Surface image is already acquired" when frames overlap.
	if b.frameSurface != nil {
		return nil, nil, fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, nil, fmt.Errorf("surface acquisition failed: %w", err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, nil, err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, nil, err
	}

	b.frameEncoder = encoder
	b.frameSurface = surfaceTexture
	b.frameView = view
	return view, encoder, nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return nil
	}
	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err == nil {
		b.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}
	b.frameEncoder.Release()
	b.frameEncoder = nil

	b.surface.Present()
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
	return err
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	if p.Shader(shader.ShaderTypeVertex) == nil || p.Shader(shader.ShaderTypeFragment) == nil {
		return errors.New("both vertex and fragment shaders must be set to create a render pipeline")
	}

	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)

	vs, err := b.device.CreateShaderModule(vertexShader.Module())
	if err != nil {
		return err
	}
	fs, err := b.device.CreateShaderModule(fragmentShader.Module())
	if err != nil {
		return err
	}

	var layout *wgpu.PipelineLayout
	if groupLayouts := p.BindGroupLayouts(); len(groupLayouts) > 0 {
		layout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
			Label:            p.PipelineKey(),
			BindGroupLayouts: groupLayouts,
		})
		if err != nil {
			return err
		}
	}

	// geometry is vertex-pulled from storage buffers, so render pipelines
	// declare no vertex buffers
	formats := p.ColorFormats()
	if len(formats) == 0 {
		formats = []wgpu.TextureFormat{*b.surfaceFormat}
	}
	targets := make([]wgpu.ColorTargetState, 0, len(formats))
	for _, format := range formats {
		state := wgpu.ColorTargetState{
			Format:    format,
			WriteMask: p.WriteMask(),
		}
		if p.BlendEnabled() {
			state.Blend = p.BlendState()
		}
		targets = append(targets, state)
	}

	descriptor := &wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if p.DepthTestEnabled() || p.DepthWriteEnabled() {
		depthCompare := wgpu.CompareFunctionLess
		if !p.DepthTestEnabled() {
			depthCompare = wgpu.CompareFunctionAlways
		}
		descriptor.DepthStencil = &wgpu.DepthStencilState{
			Format:              DepthFormat,
			DepthWriteEnabled:   p.DepthWriteEnabled(),
			DepthCompare:        depthCompare,
			DepthBias:           p.DepthBias(),
			DepthBiasSlopeScale: p.DepthBiasSlopeScale(),
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(descriptor)
	if err != nil {
		return fmt.Errorf("render pipeline creation failed: %w\nshader source:\n%s", err, fragmentShader.Source())
	}
	p.SetRenderPipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	if p.Shader(shader.ShaderTypeCompute) == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}

	computeShader := p.Shader(shader.ShaderTypeCompute)
	module, err := b.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return err
	}

	var layout *wgpu.PipelineLayout
	if groupLayouts := p.BindGroupLayouts(); len(groupLayouts) > 0 {
		layout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
			Label:            p.PipelineKey(),
			BindGroupLayouts: groupLayouts,
		})
		if err != nil {
			return err
		}
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return fmt.Errorf("compute pipeline creation failed: %w\nshader source:\n%s", err, computeShader.Source())
	}
	p.SetComputePipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
