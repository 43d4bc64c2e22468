package passes

import (
	_ "embed"

	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/culling.wgsl
var cullingSource string

// CullingPassName keys the culling pipeline and bindings.
const CullingPassName = "culling"

// cullingPass runs frustum plus backface-cone culling over every meshlet,
// writing a compacted instance list the visibility pass consumes.
type cullingPass struct {
	computeShader shader.Shader
}

var _ Pass = &cullingPass{}

// NewCullingPass creates the culling pass.
//
// Returns:
//   - Pass: the pass
func NewCullingPass() Pass {
	return &cullingPass{}
}

func (p *cullingPass) Name() string {
	return CullingPassName
}

func (p *cullingPass) MeshFlags() graphics.MeshFlags {
	return graphics.MeshFlagsVisible
}

func (p *cullingPass) DrawCommandsType() graphics.DrawCommandType {
	return graphics.DrawCommandPerMeshlet
}

func (p *cullingPass) IsActive(ctx *Context) bool {
	return ctx.Buffers.Meshlets.ItemCount() > 0
}

func (p *cullingPass) Init(ctx *Context) error {
	var err error
	p.computeShader, err = shader.NewShader(CullingPassName, shader.ShaderTypeCompute, cullingSource, "")
	return err
}

func (p *cullingPass) Update(ctx *Context, _ *wgpu.TextureView, encoder *wgpu.CommandEncoder) error {
	meshletCount := uint32(ctx.Buffers.Meshlets.TotalLen())
	if meshletCount == 0 {
		return nil
	}

	b := ctx.Bindings(CullingPassName)
	stage := wgpu.ShaderStageCompute
	if err := uniformEntry(b, 0, 0, ctx.Buffers.ConstantGpu.Buffer(), stage); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 1, ctx.Buffers.MeshesGpu.Buffer(), stage, true); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 2, ctx.Buffers.MeshletsGpu.Buffer(), stage, true); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 3, ctx.Buffers.InstancesGpu.Buffer(), stage, false); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 4, ctx.Counters, stage, false); err != nil {
		return err
	}

	pass, err := beginComputePass(ctx, encoder, CullingPassName, p.computeShader)
	if err != nil || pass == nil {
		return err
	}
	pass.DispatchWorkgroups(workgroups(meshletCount, 32), 1, 1)
	pass.End()
	return nil
}
