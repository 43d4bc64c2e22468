package engine

import (
	"time"

	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer"
	"github.com/Carmen-Shannon/onyx-go/engine/window"
)

// EngineBuilderOption is a functional option applied to an engine during construction via NewEngine.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables periodic frame statistics logging.
//
// Parameters:
//   - enabled: true to log profiler output
//
// Returns:
//   - EngineBuilderOption: a function that applies the profiling option
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the reconcile tick rate in ticks per second.
//
// Parameters:
//   - fps: target ticks per second (defaults to 60 if <= 0)
//
// Returns:
//   - EngineBuilderOption: a function that applies the tick rate option
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60
		}
		e.tickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow supplies a pre-built window instead of the default.
//
// Parameters:
//   - w: the window to use
//
// Returns:
//   - EngineBuilderOption: a function that applies the window option
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer supplies a pre-built renderer instead of the default.
//
// Parameters:
//   - r: the renderer to use
//
// Returns:
//   - EngineBuilderOption: a function that applies the renderer option
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithBuffers supplies a pre-built buffer store, letting the host enable
// readback support.
//
// Parameters:
//   - buffers: the buffer store to use
//
// Returns:
//   - EngineBuilderOption: a function that applies the buffers option
func WithBuffers(buffers *graphics.GlobalBuffers) EngineBuilderOption {
	return func(e *engine) {
		e.buffers = buffers
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: a function that applies the frame limit option
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
