package passes

import (
	_ "embed"

	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/debug.wgsl
var debugSource string

// DebugPassName keys the debug pipeline and bindings.
const DebugPassName = "debug"

// Debug flag bits selecting which intermediate targets the debug pass mixes.
const (
	// DebugFlagVisibility blends the visibility id target.
	DebugFlagVisibility uint32 = 1 << iota

	// DebugFlagRadiance blends the tone-mapped radiance target.
	DebugFlagRadiance

	// DebugFlagDepth blends the depth target.
	DebugFlagDepth
)

// debugPass draws a fullscreen triangle mixing any subset of the
// intermediate targets per the flag mask; a zero mask disables the pass.
type debugPass struct {
	vertexShader, fragmentShader shader.Shader
}

var _ Pass = &debugPass{}

// NewDebugPass creates the debug visualization pass.
//
// Returns:
//   - Pass: the pass
func NewDebugPass() Pass {
	return &debugPass{}
}

func (p *debugPass) Name() string {
	return DebugPassName
}

func (p *debugPass) MeshFlags() graphics.MeshFlags {
	return graphics.MeshFlagsDebug
}

func (p *debugPass) DrawCommandsType() graphics.DrawCommandType {
	return graphics.DrawCommandPerMeshlet
}

func (p *debugPass) IsActive(ctx *Context) bool {
	return ctx.DebugFlags != 0
}

func (p *debugPass) Init(ctx *Context) error {
	var err error
	p.vertexShader, err = shader.NewShader(DebugPassName+"_vs", shader.ShaderTypeVertex, debugSource, "")
	if err != nil {
		return err
	}
	p.fragmentShader, err = shader.NewShader(DebugPassName+"_fs", shader.ShaderTypeFragment, debugSource, "")
	return err
}

func (p *debugPass) Update(ctx *Context, surfaceView *wgpu.TextureView, encoder *wgpu.CommandEncoder) error {
	if surfaceView == nil {
		return nil
	}
	if ctx.Visibility.View == nil || ctx.Radiance.View == nil || ctx.Depth.View == nil {
		return nil
	}

	b := ctx.Bindings(DebugPassName)
	if err := uniformEntry(b, 0, 0, ctx.Buffers.ConstantGpu.Buffer(), wgpu.ShaderStageFragment); err != nil {
		return err
	}
	if err := b.AddTexture(1, 0, ctx.Visibility.View, false, wgpu.ShaderStageFragment); err != nil {
		return err
	}
	if err := b.AddTexture(1, 1, ctx.Radiance.View, false, wgpu.ShaderStageFragment); err != nil {
		return err
	}
	if err := b.AddTexture(1, 2, ctx.Depth.View, true, wgpu.ShaderStageFragment); err != nil {
		return err
	}
	renderPipeline, err := ensureRenderPipeline(ctx, DebugPassName, b,
		pipeline.WithVertexShader(p.vertexShader),
		pipeline.WithFragmentShader(p.fragmentShader),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
	)
	if err != nil || renderPipeline == nil {
		return err
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: DebugPassName,
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    surfaceView,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	pass.SetPipeline(renderPipeline)
	for i, group := range b.BindGroups() {
		pass.SetBindGroup(uint32(i), group, nil)
	}
	pass.Draw(3, 1, 0, 0)
	pass.End()
	return nil
}
