package passes

import (
	_ "embed"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/compute_instances.wgsl
var computeInstancesSource string

// ComputeInstancesPassName keys the compute instances pipeline and bindings.
const ComputeInstancesPassName = "compute_instances"

// computeInstancesPass rebuilds the per-frame GPUInstance list, one entry
// per (mesh, meshlet), resizes the command vector to the instance count and
// dispatches the transform resolution shader.
type computeInstancesPass struct {
	computeShader shader.Shader
}

var _ Pass = &computeInstancesPass{}

// NewComputeInstancesPass creates the compute instances pass.
//
// Returns:
//   - Pass: the pass
func NewComputeInstancesPass() Pass {
	return &computeInstancesPass{}
}

func (p *computeInstancesPass) Name() string {
	return ComputeInstancesPassName
}

func (p *computeInstancesPass) MeshFlags() graphics.MeshFlags {
	return graphics.MeshFlagsVisible
}

func (p *computeInstancesPass) DrawCommandsType() graphics.DrawCommandType {
	return graphics.DrawCommandPerMeshlet
}

func (p *computeInstancesPass) IsActive(ctx *Context) bool {
	return ctx.Buffers.Meshes.Count() > 0
}

func (p *computeInstancesPass) Init(ctx *Context) error {
	var err error
	p.computeShader, err = shader.NewShader(ComputeInstancesPassName, shader.ShaderTypeCompute, computeInstancesSource, "")
	return err
}

// BuildInstances expands the mesh set into one GPUInstance per
// (mesh, meshlet) pair and resizes the matching command list to the same
// length, maintaining the invariant instances.len() == commands.len().
// When a frustum is supplied, meshes whose world AABB lies fully outside it
// are skipped before the per-meshlet GPU culling ever sees them.
//
// Parameters:
//   - buffers: the buffer store to rebuild into
//   - flags: the mesh flag subset expanded
//   - frustum: the view frustum for coarse CPU culling; nil disables it
//
// Returns:
//   - int: the instance count
func BuildInstances(buffers *graphics.GlobalBuffers, flags graphics.MeshFlags, frustum *common.Frustum) int {
	buffers.Instances = buffers.Instances[:0]
	buffers.Meshes.ForEachEntry(func(meshIndex int, mesh *graphics.DrawMesh) {
		if !graphics.MeshFlags(mesh.Flags).Has(flags) {
			return
		}
		if frustum != nil {
			// the stored AABB is mesh-local: bound it in world space first
			m := &mesh.Matrix
			var worldMin, worldMax [3]float32
			for row := 0; row < 3; row++ {
				worldMin[row], worldMax[row] = m[12+row], m[12+row]
				for col := 0; col < 3; col++ {
					a, b := m[col*4+row]*mesh.AabbMin[col], m[col*4+row]*mesh.AabbMax[col]
					worldMin[row] += min(a, b)
					worldMax[row] += max(a, b)
				}
			}
			if !frustum.IntersectsAABB(worldMin, worldMax) {
				return
			}
		}
		for meshletIndex := mesh.MeshletOffset; meshletIndex < mesh.MeshletOffset+mesh.MeshletCount; meshletIndex++ {
			buffers.Instances = append(buffers.Instances, graphics.GPUInstance{
				TransformID: uint32(meshIndex),
				MeshID:      uint32(meshIndex),
				MeshletID:   meshletIndex,
				CommandID:   -1,
			})
		}
	})

	commands := buffers.CommandsFor(flags, graphics.DrawCommandPerMeshlet)
	if len(commands.Commands) != len(buffers.Instances) {
		resized := make([]graphics.DrawIndexedCommand, len(buffers.Instances))
		copy(resized, commands.Commands)
		commands.Commands = resized
		commands.Gpu.MarkDirty()
	}
	buffers.InstancesGpu.MarkDirty()
	return len(buffers.Instances)
}

func (p *computeInstancesPass) Update(ctx *Context, _ *wgpu.TextureView, encoder *wgpu.CommandEncoder) error {
	frustum := common.ExtractFrustumFromMatrix(ctx.Buffers.Constant.ViewProj[:])
	num := BuildInstances(ctx.Buffers, p.MeshFlags(), &frustum)
	if num == 0 {
		return nil
	}
	commands := ctx.Buffers.CommandsFor(p.MeshFlags(), p.DrawCommandsType())

	b := ctx.Bindings(ComputeInstancesPassName)
	stage := wgpu.ShaderStageCompute
	if err := storageEntry(b, 0, 0, ctx.Buffers.InstancesGpu.Buffer(), stage, false); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 1, ctx.Buffers.TransformsGpu.Buffer(), stage, true); err != nil {
		return err
	}
	if err := storageEntry(b, 0, 2, commands.Gpu.Buffer(), stage, false); err != nil {
		return err
	}

	pass, err := beginComputePass(ctx, encoder, ComputeInstancesPassName, p.computeShader)
	if err != nil || pass == nil {
		return err
	}
	pass.DispatchWorkgroups(workgroups(uint32(num), 32), 1, 1)
	pass.End()
	return nil
}
