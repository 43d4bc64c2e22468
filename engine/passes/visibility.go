package passes

import (
	_ "embed"

	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/visibility.wgsl
var visibilitySource string

// VisibilityPassName keys the visibility pipeline and bindings.
const VisibilityPassName = "visibility"

// drawIndexedCommandStride is the byte stride of one wire-level indirect
// indexed draw command.
const drawIndexedCommandStride = 20

// visibilityPass rasterizes opaque meshlets into the visibility id and
// instance id targets plus depth, deferring all shading to compute.
type visibilityPass struct {
	vertexShader, fragmentShader shader.Shader
}

var _ Pass = &visibilityPass{}

// NewVisibilityPass creates the visibility pass.
//
// Returns:
//   - Pass: the pass
func NewVisibilityPass() Pass {
	return &visibilityPass{}
}

func (p *visibilityPass) Name() string {
	return VisibilityPassName
}

func (p *visibilityPass) MeshFlags() graphics.MeshFlags {
	return graphics.MeshFlagsVisible | graphics.MeshFlagsOpaque
}

func (p *visibilityPass) DrawCommandsType() graphics.DrawCommandType {
	return graphics.DrawCommandPerMeshlet
}

func (p *visibilityPass) IsActive(ctx *Context) bool {
	return ctx.Buffers.Meshlets.ItemCount() > 0
}

func (p *visibilityPass) Init(ctx *Context) error {
	var err error
	p.vertexShader, err = shader.NewShader(VisibilityPassName+"_vs", shader.ShaderTypeVertex, visibilitySource, "")
	if err != nil {
		return err
	}
	p.fragmentShader, err = shader.NewShader(VisibilityPassName+"_fs", shader.ShaderTypeFragment, visibilitySource, "")
	return err
}

func (p *visibilityPass) Update(ctx *Context, _ *wgpu.TextureView, encoder *wgpu.CommandEncoder) error {
	commands := ctx.Buffers.CommandsFor(p.MeshFlags(), p.DrawCommandsType())
	if len(commands.Commands) == 0 || commands.Gpu.Buffer() == nil {
		return nil
	}
	if ctx.Visibility.View == nil || ctx.InstanceIds.View == nil || ctx.Depth.View == nil {
		return nil
	}
	indexBuffer := ctx.Buffers.IndicesGpu.Buffer()
	if indexBuffer == nil {
		return nil
	}

	b := ctx.Bindings(VisibilityPassName)
	stage := wgpu.ShaderStageVertex
	if err := uniformEntry(b, 0, 0, ctx.Buffers.ConstantGpu.Buffer(), stage); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 1, ctx.Buffers.PositionsGpu.Buffer(), stage, true); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 2, ctx.Buffers.VerticesGpu.Buffer(), stage, true); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 3, ctx.Buffers.MeshesGpu.Buffer(), stage, true); err != nil {
		return err
	}
	renderPipeline, err := ensureRenderPipeline(ctx, VisibilityPassName, b,
		pipeline.WithVertexShader(p.vertexShader),
		pipeline.WithFragmentShader(p.fragmentShader),
		pipeline.WithCullMode(wgpu.CullModeBack),
		pipeline.WithColorFormats(wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8Unorm),
	)
	if err != nil || renderPipeline == nil {
		return err
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: VisibilityPassName,
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       ctx.Visibility.View,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{},
			},
			{
				View:       ctx.InstanceIds.View,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            ctx.Depth.View,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	pass.SetPipeline(renderPipeline)
	for i, group := range b.BindGroups() {
		pass.SetBindGroup(uint32(i), group, nil)
	}
	pass.SetIndexBuffer(indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	for i := range commands.Commands {
		pass.DrawIndexedIndirect(commands.Gpu.Buffer(), uint64(i)*drawIndexedCommandStride)
	}
	pass.End()
	return nil
}
