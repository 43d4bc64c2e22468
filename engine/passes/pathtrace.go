package passes

import (
	_ "embed"

	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/pathtrace_direct.wgsl
var pathTraceDirectSource string

//go:embed assets/pathtrace_shade.wgsl
var pathTraceShadeSource string

// Pass names for the two path tracing stages.
const (
	PathTraceDirectPassName = "pathtrace_direct"
	PathTraceShadePassName  = "pathtrace_shade"
)

// pathTraceDirectPass reconstructs hits from the visibility and depth
// targets and seeds the ray, radiance and throughput data buffers.
type pathTraceDirectPass struct {
	computeShader shader.Shader
}

var _ Pass = &pathTraceDirectPass{}

// NewPathTraceDirectPass creates the direct lighting pass.
//
// Returns:
//   - Pass: the pass
func NewPathTraceDirectPass() Pass {
	return &pathTraceDirectPass{}
}

func (p *pathTraceDirectPass) Name() string {
	return PathTraceDirectPassName
}

func (p *pathTraceDirectPass) MeshFlags() graphics.MeshFlags {
	return graphics.MeshFlagsVisible | graphics.MeshFlagsOpaque
}

func (p *pathTraceDirectPass) DrawCommandsType() graphics.DrawCommandType {
	return graphics.DrawCommandPerTriangle
}

func (p *pathTraceDirectPass) IsActive(ctx *Context) bool {
	return ctx.Buffers.Meshlets.ItemCount() > 0 && ctx.Width > 0 && ctx.Height > 0
}

func (p *pathTraceDirectPass) Init(ctx *Context) error {
	var err error
	p.computeShader, err = shader.NewShader(PathTraceDirectPassName, shader.ShaderTypeCompute, pathTraceDirectSource, "")
	return err
}

func (p *pathTraceDirectPass) Update(ctx *Context, _ *wgpu.TextureView, encoder *wgpu.CommandEncoder) error {
	if ctx.RayBuffer == nil || ctx.RadianceBuffer == nil || ctx.ThroughputBuffer == nil {
		return nil
	}
	if ctx.Visibility.View == nil || ctx.Depth.View == nil {
		return nil
	}

	b := ctx.Bindings(PathTraceDirectPassName)
	stage := wgpu.ShaderStageCompute
	if err := uniformEntry(b, 0, 0, ctx.Buffers.ConstantGpu.Buffer(), stage); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 1, ctx.Buffers.LightsGpu.Buffer(), stage, true); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 2, ctx.RayBuffer, stage, false); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 3, ctx.RadianceBuffer, stage, false); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 4, ctx.ThroughputBuffer, stage, false); err != nil {
		return err
	}
	if err := b.AddTexture(1, 0, ctx.Visibility.View, false, stage); err != nil {
		return err
	}
	if err := b.AddTexture(1, 1, ctx.Depth.View, true, stage); err != nil {
		return err
	}

	pass, err := beginComputePass(ctx, encoder, PathTraceDirectPassName, p.computeShader)
	if err != nil || pass == nil {
		return err
	}
	pass.DispatchWorkgroups(workgroups(ctx.Width, 8), workgroups(ctx.Height, 8), 1)
	pass.End()
	return nil
}

// pathTraceShadePass consumes the seeded data buffers plus the atomic
// counter block and produces next-bounce rays.
type pathTraceShadePass struct {
	computeShader shader.Shader
}

var _ Pass = &pathTraceShadePass{}

// NewPathTraceShadePass creates the shade pass.
//
// Returns:
//   - Pass: the pass
func NewPathTraceShadePass() Pass {
	return &pathTraceShadePass{}
}

func (p *pathTraceShadePass) Name() string {
	return PathTraceShadePassName
}

func (p *pathTraceShadePass) MeshFlags() graphics.MeshFlags {
	return graphics.MeshFlagsVisible | graphics.MeshFlagsOpaque
}

func (p *pathTraceShadePass) DrawCommandsType() graphics.DrawCommandType {
	return graphics.DrawCommandPerTriangle
}

func (p *pathTraceShadePass) IsActive(ctx *Context) bool {
	return ctx.Buffers.Meshlets.ItemCount() > 0 && ctx.Width > 0 && ctx.Height > 0
}

func (p *pathTraceShadePass) Init(ctx *Context) error {
	var err error
	p.computeShader, err = shader.NewShader(PathTraceShadePassName, shader.ShaderTypeCompute, pathTraceShadeSource, "")
	return err
}

func (p *pathTraceShadePass) Update(ctx *Context, _ *wgpu.TextureView, encoder *wgpu.CommandEncoder) error {
	if ctx.RayBuffer == nil || ctx.RadianceBuffer == nil || ctx.ThroughputBuffer == nil || ctx.Counters == nil {
		return nil
	}

	b := ctx.Bindings(PathTraceShadePassName)
	stage := wgpu.ShaderStageCompute
	if err := uniformEntry(b, 0, 0, ctx.Buffers.ConstantGpu.Buffer(), stage); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 1, ctx.Counters, stage, false); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 2, ctx.RayBuffer, stage, false); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 3, ctx.RadianceBuffer, stage, false); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 4, ctx.ThroughputBuffer, stage, false); err != nil {
		return err
	}

	pass, err := beginComputePass(ctx, encoder, PathTraceShadePassName, p.computeShader)
	if err != nil || pass == nil {
		return err
	}
	pass.DispatchWorkgroups(workgroups(ctx.Width, 8), workgroups(ctx.Height, 8), 1)
	pass.End()
	return nil
}
