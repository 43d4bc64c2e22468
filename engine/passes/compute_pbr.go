package passes

import (
	_ "embed"

	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/compute_pbr.wgsl
var computePBRSource string

// ComputePBRPassName keys the PBR aggregation pipeline and bindings.
const ComputePBRPassName = "compute_pbr"

// computePBRPass aggregates the direct and indirect radiance buffers,
// tone-maps the result and stores it in the RGBA8 radiance target; no
// high-dynamic-range copy of the result is kept.
type computePBRPass struct {
	computeShader shader.Shader
}

var _ Pass = &computePBRPass{}

// NewComputePBRPass creates the PBR aggregation pass.
//
// Returns:
//   - Pass: the pass
func NewComputePBRPass() Pass {
	return &computePBRPass{}
}

func (p *computePBRPass) Name() string {
	return ComputePBRPassName
}

func (p *computePBRPass) MeshFlags() graphics.MeshFlags {
	return graphics.MeshFlagsVisible | graphics.MeshFlagsOpaque
}

func (p *computePBRPass) DrawCommandsType() graphics.DrawCommandType {
	return graphics.DrawCommandPerMeshlet
}

func (p *computePBRPass) IsActive(ctx *Context) bool {
	return ctx.Width > 0 && ctx.Height > 0 && ctx.Buffers.Meshlets.ItemCount() > 0
}

func (p *computePBRPass) Init(ctx *Context) error {
	var err error
	p.computeShader, err = shader.NewShader(ComputePBRPassName, shader.ShaderTypeCompute, computePBRSource, "")
	return err
}

// DispatchSize returns the ComputePBR dispatch dimensions for a surface
// size: 32-pixel clusters, each workgroup covering 32x16 pixels.
//
// Parameters:
//   - width: the surface width in pixels
//   - height: the surface height in pixels
//
// Returns:
//   - uint32: the x dispatch count
//   - uint32: the y dispatch count
func (p *computePBRPass) DispatchSize(width, height uint32) (uint32, uint32) {
	const maxClusterSize = 32
	const xPixelsManagedInShader = 4 * 8
	const yPixelsManagedInShader = 4 * 4
	x := maxClusterSize * ((width + maxClusterSize - 1) / maxClusterSize) / xPixelsManagedInShader
	y := maxClusterSize * ((height + maxClusterSize - 1) / maxClusterSize) / yPixelsManagedInShader
	if x == 0 {
		x = 1
	}
	if y == 0 {
		y = 1
	}
	return x, y
}

func (p *computePBRPass) Update(ctx *Context, _ *wgpu.TextureView, encoder *wgpu.CommandEncoder) error {
	if ctx.RadianceBuffer == nil || ctx.ThroughputBuffer == nil || ctx.Radiance.View == nil {
		return nil
	}

	b := ctx.Bindings(ComputePBRPassName)
	stage := wgpu.ShaderStageCompute
	if err := uniformEntry(b, 0, 0, ctx.Buffers.ConstantGpu.Buffer(), stage); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 1, ctx.RadianceBuffer, stage, true); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 2, ctx.ThroughputBuffer, stage, true); err != nil {
		return err
	}
	if err := b.AddStorageTexture(0, 3, ctx.Radiance.View, wgpu.TextureFormatRGBA8Unorm, stage); err != nil {
		return err
	}

	pass, err := beginComputePass(ctx, encoder, ComputePBRPassName, p.computeShader)
	if err != nil || pass == nil {
		return err
	}
	x, y := p.DispatchSize(ctx.Width, ctx.Height)
	pass.DispatchWorkgroups(x, y, 1)
	pass.End()
	return nil
}
