package passes

import (
	_ "embed"

	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/ui.wgsl
var uiSource string

// UIPassName keys the UI pipeline and bindings.
const UIPassName = "ui"

// uiPass draws tessellated immediate-mode geometry submitted as UI-flagged
// meshes through the same buffered store as everything else, with clip
// rectangles applied per mesh.
type uiPass struct {
	vertexShader, fragmentShader shader.Shader
}

var _ Pass = &uiPass{}

// NewUIPass creates the UI pass.
//
// Returns:
//   - Pass: the pass
func NewUIPass() Pass {
	return &uiPass{}
}

func (p *uiPass) Name() string {
	return UIPassName
}

func (p *uiPass) MeshFlags() graphics.MeshFlags {
	return graphics.MeshFlagsUI
}

func (p *uiPass) DrawCommandsType() graphics.DrawCommandType {
	return graphics.DrawCommandPerMeshlet
}

func (p *uiPass) IsActive(ctx *Context) bool {
	active := false
	ctx.Buffers.Meshes.ForEachEntry(func(_ int, mesh *graphics.DrawMesh) {
		if graphics.MeshFlags(mesh.Flags).Has(graphics.MeshFlagsUI) {
			active = true
		}
	})
	return active
}

func (p *uiPass) Init(ctx *Context) error {
	var err error
	p.vertexShader, err = shader.NewShader(UIPassName+"_vs", shader.ShaderTypeVertex, uiSource, "")
	if err != nil {
		return err
	}
	p.fragmentShader, err = shader.NewShader(UIPassName+"_fs", shader.ShaderTypeFragment, uiSource, "")
	return err
}

func (p *uiPass) Update(ctx *Context, surfaceView *wgpu.TextureView, encoder *wgpu.CommandEncoder) error {
	commands := ctx.Buffers.CommandsFor(p.MeshFlags(), p.DrawCommandsType())
	if len(commands.Commands) == 0 || commands.Gpu.Buffer() == nil {
		return nil
	}
	if surfaceView == nil {
		return nil
	}
	indexBuffer := ctx.Buffers.IndicesGpu.Buffer()
	if indexBuffer == nil {
		return nil
	}

	b := ctx.Bindings(UIPassName)
	stage := wgpu.ShaderStageVertex
	if err := uniformEntry(b, 0, 0, ctx.Buffers.ConstantGpu.Buffer(), stage); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 1, ctx.Buffers.PositionsGpu.Buffer(), stage, true); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 2, ctx.Buffers.ColorsGpu.Buffer(), stage, true); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 3, ctx.Buffers.VerticesGpu.Buffer(), stage, true); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 4, ctx.Buffers.MeshesGpu.Buffer(), stage, true); err != nil {
		return err
	}
	renderPipeline, err := ensureRenderPipeline(ctx, UIPassName, b,
		pipeline.WithVertexShader(p.vertexShader),
		pipeline.WithFragmentShader(p.fragmentShader),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
		pipeline.WithBlendEnabled(true),
	)
	if err != nil || renderPipeline == nil {
		return err
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: UIPassName,
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
	pass.SetIndexBuffer(indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	for i := range commands.Commands {
		pass.DrawIndexedIndirect(commands.Gpu.Buffer(), uint64(i)*drawIndexedCommandStride)
	}
	pass.End()
	return nil
}
