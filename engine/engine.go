// package engine wires the data plane together: the window, the draw
// submitter, the global buffer store, the render buffer coordinator, the
// atlas manager and the pass graph, driven by a fixed-rate reconcile loop
// and an uncapped (or frame-limited) render loop.
package engine

import (
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/passes"
	"github.com/Carmen-Shannon/onyx-go/engine/profiler"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer"
	"github.com/Carmen-Shannon/onyx-go/engine/resources"
	"github.com/Carmen-Shannon/onyx-go/engine/texture"
	"github.com/Carmen-Shannon/onyx-go/engine/window"
)

// engine implements the Engine interface.
// Coordinates the reconcile, render, and window threads.
type engine struct {
	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	renderer renderer.Renderer

	buffers     *graphics.GlobalBuffers
	coordinator graphics.Coordinator
	events      resources.EventStream
	drawEvents  resources.DrawEventBus
	atlas       texture.AtlasManager
	graph       passes.Graph
	ctx         *passes.Context

	profiler         *profiler.Profiler
	profilingEnabled bool

	tickRate       time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	frameMu sync.Mutex
}

// Engine is the main entry point: it owns every data plane singleton and
// runs the frame pipeline: reconcile buffers, upload dirty regions, rebuild
// dirty bindings, dispatch passes in graph order, present.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the draw submitter.
	//
	// Returns:
	//   - renderer.Renderer: the renderer instance
	Renderer() renderer.Renderer

	// Buffers returns the global buffer store.
	//
	// Returns:
	//   - *graphics.GlobalBuffers: the buffer store
	Buffers() *graphics.GlobalBuffers

	// Events returns the resource event stream producers push into.
	//
	// Returns:
	//   - resources.EventStream: the event stream
	Events() resources.EventStream

	// DrawEvents returns the immediate-mode shape bus.
	//
	// Returns:
	//   - resources.DrawEventBus: the bus
	DrawEvents() resources.DrawEventBus

	// Init creates the GPU context for the window, the offscreen targets
	// and the pass graph pipelines, and registers the blob deserializers.
	//
	// Returns:
	//   - error: an error if GPU initialization fails
	Init() error

	// LoadScene reads a compiled scene blob and pushes Created events for
	// every referenced resource in dependency order.
	//
	// Parameters:
	//   - path: the .scene_data blob path
	//
	// Returns:
	//   - error: an error if the scene blob cannot be read
	LoadScene(path string) error

	// Run starts the reconcile and render goroutines, then blocks on the
	// window message loop until the window closes.
	Run()

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// Safe to call multiple times.
	Quit()

	// SetTickCallback registers the function called each reconcile tick,
	// before the event stream is drained.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))
}

var _ Engine = &engine{}

// NewEngine creates an Engine with all specified options applied.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the configured engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		quitChannel: make(chan struct{}),
		tickRate:    time.Second / 60,
		profiler:    profiler.NewProfiler(),
		events:      resources.NewEventStream(),
		drawEvents:  resources.NewDrawEventBus(),
		graph:       passes.NewGraph(),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.window == nil {
		e.window = window.NewWindow()
	}
	if e.renderer == nil {
		e.renderer = renderer.NewRenderer()
	}
	if e.buffers == nil {
		e.buffers = graphics.NewGlobalBuffers(false)
	}
	e.coordinator = graphics.NewCoordinator(e.buffers, e.events)
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Buffers() *graphics.GlobalBuffers {
	return e.buffers
}

func (e *engine) Events() resources.EventStream {
	return e.events
}

func (e *engine) DrawEvents() resources.DrawEventBus {
	return e.drawEvents
}

func (e *engine) Init() error {
	if err := e.renderer.Init(e.window); err != nil {
		return err
	}
	e.atlas = texture.NewAtlasManager(
		texture.WithDevice(e.renderer.Device(), e.renderer.Queue()),
		texture.WithBindingArraySupport(false),
	)
	e.ctx = passes.NewContext(e.renderer, e.buffers, e.atlas, e.drawEvents)
	width, height := e.renderer.SurfaceSize()
	if err := e.ctx.CreateTargets(width, height); err != nil {
		return err
	}
	if err := e.graph.Init(e.ctx); err != nil {
		return err
	}
	registerDeserializers()

	e.window.SetResizeCallback(func(w, h int) {
		e.frameMu.Lock()
		defer e.frameMu.Unlock()
		e.renderer.Resize(w, h)
		if err := e.ctx.CreateTargets(uint32(w), uint32(h)); err != nil {
			log.Printf("[Engine] target recreation failed: %v", err)
		}
		e.graph.Invalidate()
	})
	return nil
}

// registerDeserializers installs the blob decoders for every compiled asset
// type into the process-wide registry.
func registerDeserializers() {
	if err := resources.InitRegistry(); err != nil {
		// already initialized by the host; nothing to do
		return
	}
	decoders := map[string]resources.Deserializer{
		graphics.MeshDataExtension:     func(data []byte) (any, error) { return graphics.UnmarshalMeshData(data) },
		graphics.MaterialDataExtension: func(data []byte) (any, error) { return graphics.UnmarshalMaterialData(data) },
		graphics.ObjectDataExtension:   func(data []byte) (any, error) { return graphics.UnmarshalObjectData(data) },
		graphics.SceneDataExtension:    func(data []byte) (any, error) { return graphics.UnmarshalSceneData(data) },
		graphics.CameraDataExtension:   func(data []byte) (any, error) { return graphics.UnmarshalCameraData(data) },
		graphics.LightDataExtension:    func(data []byte) (any, error) { return graphics.UnmarshalLightAssetData(data) },
		graphics.PipelineDataExtension: func(data []byte) (any, error) { return graphics.UnmarshalPipelineData(data) },
	}
	for extension, decoder := range decoders {
		if err := resources.RegisterDeserializer(extension, decoder); err != nil {
			log.Printf("[Engine] deserializer registration failed: %v", err)
		}
	}
}

func (e *engine) Run() {
	e.running = true
	e.wg.Add(2)
	go e.handleReconcile()
	go e.handleRender()
	e.window.ProcessMessages()
	e.Quit()
	e.wg.Wait()
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// handleReconcile runs the fixed-rate reconcile loop: the tick callback
// first, then the event stream drained into the arenas.
func (e *engine) handleReconcile() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
			e.frameMu.Lock()
			e.coordinator.Reconcile()
			e.frameMu.Unlock()
		}
	}
}

// handleRender runs the render loop: rebuild dirty command lists for each
// active pass, upload dirty arenas, then record and submit the pass graph.
// Recovers from panics to avoid crashing the process.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("render goroutine recovered from panic: %v", r)
			e.Quit()
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			e.renderFrame()

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}
			if e.profilingEnabled {
				e.profiler.Tick()
			}
			if e.renderFrameLimit > 0 {
				if remaining := e.renderFrameLimit - time.Since(lastRender); remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// renderFrame runs one frame of the pipeline. The coordinator's write lease
// covers command rebuild and upload only; passes observe the arenas in the
// state reconciliation left them.
func (e *engine) renderFrame() {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	for _, p := range e.graph.Passes() {
		e.coordinator.RebuildCommands(p.MeshFlags(), p.DrawCommandsType())
	}
	width, height := e.renderer.SurfaceSize()
	e.buffers.Constant.ScreenSize = [2]float32{float32(width), float32(height)}
	e.buffers.Constant.Frame++
	e.ctx.DebugFlags = e.buffers.Constant.DebugFlags
	e.buffers.ConstantGpu.MarkDirty()
	e.buffers.SendToGPU(e.renderer.Device(), e.renderer.Queue())

	if e.profilingEnabled {
		opaque := e.buffers.CommandsFor(graphics.MeshFlagsVisible|graphics.MeshFlagsOpaque, graphics.DrawCommandPerMeshlet)
		e.profiler.SetFrameCounts(len(e.buffers.Instances), len(opaque.Commands))
	}

	surfaceView, encoder, err := e.renderer.BeginFrame()
	if err != nil {
		// the frame is dropped; the next tick retries with a fresh surface
		e.graph.Invalidate()
		return
	}
	e.graph.RecordFrame(e.ctx, surfaceView, encoder)
	if err := e.renderer.EndFrame(); err != nil {
		log.Printf("[Engine] frame submission failed: %v", err)
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}
