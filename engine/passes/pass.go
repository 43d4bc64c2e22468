package passes

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/cogentcore/webgpu/wgpu"
)

// Pass is one stage of the render graph. Init runs once after the GPU
// context exists (and again after invalidation); Update records the pass
// into the frame's command encoder.
type Pass interface {
	// Name returns the pass identifier used for pipelines and bindings.
	//
	// Returns:
	//   - string: the pass name
	Name() string

	// MeshFlags returns the DrawMesh subset this pass draws.
	//
	// Returns:
	//   - graphics.MeshFlags: the static flag filter
	MeshFlags() graphics.MeshFlags

	// DrawCommandsType returns the indirect command granularity the pass
	// consumes.
	//
	// Returns:
	//   - graphics.DrawCommandType: the granularity
	DrawCommandsType() graphics.DrawCommandType

	// IsActive reports whether the pass should run this frame. Inactive
	// passes are skipped entirely.
	//
	// Parameters:
	//   - ctx: the frame context
	//
	// Returns:
	//   - bool: true when the pass should run
	IsActive(ctx *Context) bool

	// Init compiles the pass's shaders. GPU pipelines are registered lazily
	// on first Update, once the pass's binding layouts exist.
	//
	// Parameters:
	//   - ctx: the engine context
	//
	// Returns:
	//   - error: an error if shader compilation fails
	Init(ctx *Context) error

	// Update records the pass into the frame encoder. A pass with any
	// required input empty records nothing and returns nil.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - surfaceView: the surface view, for passes drawing to the surface
	//   - encoder: the frame's command encoder
	//
	// Returns:
	//   - error: an error if recording fails
	Update(ctx *Context, surfaceView *wgpu.TextureView, encoder *wgpu.CommandEncoder) error
}

// graph is the implementation of the Graph interface.
type graph struct {
	passes      []Pass
	initialized bool
}

// Graph holds the fixed ordered pass list and drives one frame of
// recording. The order never changes at runtime; passes opt out per frame
// through IsActive and their empty-input guards.
type Graph interface {
	// Passes returns the ordered pass list.
	//
	// Returns:
	//   - []Pass: the passes in dispatch order
	Passes() []Pass

	// Init initializes every pass. Called once after the GPU context
	// exists and again after invalidation.
	//
	// Parameters:
	//   - ctx: the engine context
	//
	// Returns:
	//   - error: the first pass initialization error
	Init(ctx *Context) error

	// Invalidate marks the graph uninitialized so the next frame re-runs
	// Init; used after surface or device loss.
	Invalidate()

	// RecordFrame runs every active pass in order against the frame
	// encoder. Pass errors are logged and do not stop later passes.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - surfaceView: the surface view
	//   - encoder: the frame's command encoder
	RecordFrame(ctx *Context, surfaceView *wgpu.TextureView, encoder *wgpu.CommandEncoder)
}

var _ Graph = &graph{}

// NewGraph creates the fixed render graph in its canonical order:
// Culling, Visibility, ComputeInstances, PathTraceDirect, PathTraceShade,
// ComputePBR, Wireframe, Debug, UI.
//
// Returns:
//   - Graph: the new graph
func NewGraph() Graph {
	return &graph{
		passes: []Pass{
			NewCullingPass(),
			NewVisibilityPass(),
			NewComputeInstancesPass(),
			NewPathTraceDirectPass(),
			NewPathTraceShadePass(),
			NewComputePBRPass(),
			NewWireframePass(),
			NewDebugPass(),
			NewUIPass(),
		},
	}
}

func (g *graph) Passes() []Pass {
	return g.passes
}

func (g *graph) Init(ctx *Context) error {
	for _, p := range g.passes {
		if err := p.Init(ctx); err != nil {
			return fmt.Errorf("pass %s init failed: %w", p.Name(), err)
		}
	}
	g.initialized = true
	return nil
}

func (g *graph) Invalidate() {
	g.initialized = false
}

func (g *graph) RecordFrame(ctx *Context, surfaceView *wgpu.TextureView, encoder *wgpu.CommandEncoder) {
	if !g.initialized {
		if err := g.Init(ctx); err != nil {
			log.Printf("[Passes] graph re-initialization failed: %v", err)
			return
		}
	}
	for _, p := range g.passes {
		if !p.IsActive(ctx) {
			continue
		}
		if err := p.Update(ctx, surfaceView, encoder); err != nil {
			log.Printf("[Passes] %s update failed: %v", p.Name(), err)
		}
	}
}
