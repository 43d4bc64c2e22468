package graphics

import (
	"log"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/arena"
	"github.com/cogentcore/webgpu/wgpu"
)

// GpuBuffer pairs a CPU-side arena with its GPU mirror. The dirty flag is
// set by any CPU mutation and cleared by upload; when the CPU size exceeds
// the GPU capacity the buffer is reallocated and re-uploaded in whole,
// otherwise the whole region is rewritten. Partial-range upload is declined
// on purpose to keep correctness obvious.
type GpuBuffer struct {
	// Label names the buffer in GPU debuggers.
	Label string

	// Usage is the wgpu usage bitset applied at (re)allocation.
	Usage wgpu.BufferUsage

	buffer   *wgpu.Buffer
	capacity uint64
	dirty    bool
}

// Buffer returns the underlying wgpu buffer, or nil before the first upload.
//
// Returns:
//   - *wgpu.Buffer: the GPU buffer
func (g *GpuBuffer) Buffer() *wgpu.Buffer {
	return g.buffer
}

// IsDirty reports whether the CPU side changed since the last upload.
//
// Returns:
//   - bool: the dirty flag
func (g *GpuBuffer) IsDirty() bool {
	return g.dirty
}

// MarkDirty flags the buffer for upload on the next SendToGPU.
func (g *GpuBuffer) MarkDirty() {
	g.dirty = true
}

// Upload mirrors data into the GPU buffer per the whole-region policy.
// A clean buffer is a no-op; a dirty one whose CPU size exceeds the GPU
// capacity is reallocated and re-uploaded in whole, otherwise the whole
// region is rewritten.
//
// Parameters:
//   - device: the wgpu device owning the buffer
//   - queue: the queue used for the write
//   - data: the CPU bytes to mirror
//
// Returns:
//   - bool: true when the GPU buffer was reallocated, requiring binding rebuild
func (g *GpuBuffer) Upload(device *wgpu.Device, queue *wgpu.Queue, data []byte) bool {
	if !g.dirty || device == nil || queue == nil {
		return false
	}
	g.dirty = false
	if len(data) == 0 {
		return false
	}
	size := uint64(len(data))
	// wgpu requires buffer sizes in 4-byte multiples
	padded := (size + 3) &^ 3
	reallocated := false
	if g.buffer == nil || padded > g.capacity {
		if g.buffer != nil {
			g.buffer.Release()
		}
		buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: g.Label,
			Size:  padded,
			Usage: g.Usage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			log.Printf("[Buffers] failed to allocate %s (%d bytes): %v", g.Label, padded, err)
			g.dirty = true
			return false
		}
		g.buffer = buf
		g.capacity = padded
		reallocated = true
	}
	queue.WriteBuffer(g.buffer, 0, data)
	return reallocated
}

// Release frees the GPU buffer. The CPU side is untouched; the next upload
// reallocates.
func (g *GpuBuffer) Release() {
	if g.buffer != nil {
		g.buffer.Release()
		g.buffer = nil
		g.capacity = 0
	}
	g.dirty = true
}

// CommandBuffer is one per-(flags, granularity) indirect command list with
// its GPU mirror.
type CommandBuffer struct {
	// Commands is the CPU-side list, rebuilt when the owning flag set is dirty.
	Commands []DrawIndexedCommand

	// Gpu is the GPU mirror, usable as both storage and indirect buffer.
	Gpu GpuBuffer
}

// GlobalBuffers owns every GPU-backed arena of the data plane: the split
// vertex attribute streams, indices, meshlets, meshes, materials, textures,
// lights, transforms, per-frame instances, the per-flag command lists and
// the per-frame constant block. It is single-writer (the coordinator during
// reconciliation) and many-reader (the passes during dispatch).
type GlobalBuffers struct {
	// Vertices is the per-vertex stream offset records.
	Vertices arena.Arena[DrawVertex]

	// Positions is the packed position stream.
	Positions arena.Arena[uint32]

	// Colors is the packed color stream.
	Colors arena.Arena[uint32]

	// Normals is the packed normal stream.
	Normals arena.Arena[uint32]

	// Tangents is the packed tangent stream.
	Tangents arena.Arena[uint32]

	// Uvs is the packed uv stream.
	Uvs arena.Arena[uint32]

	// Indices is the index stream.
	Indices arena.Arena[uint32]

	// Meshlets is the GPU meshlet records for every live mesh.
	Meshlets arena.Arena[DrawMeshlet]

	// MeshletChildren is the flattened LOD DAG: each meshlet's span of child indices.
	MeshletChildren arena.Arena[uint32]

	// Meshes maps mesh ids to DrawMesh slots.
	Meshes arena.HashArena[DrawMesh]

	// Materials maps material ids to DrawMaterial slots.
	Materials arena.HashArena[DrawMaterial]

	// Textures maps texture ids to TextureInfo slots.
	Textures arena.HashArena[TextureInfo]

	// Lights maps light ids to LightData slots.
	Lights arena.HashArena[LightData]

	// Transforms maps object ids to transform slots referenced by instances.
	Transforms arena.HashArena[[16]float32]

	// Instances is the per-frame (object, meshlet) expansion, rebuilt by the
	// ComputeInstances pass and never preserved across frames.
	Instances []GPUInstance

	// Constant is the per-frame uniform block, overwritten wholesale.
	Constant ConstantData

	// commands holds the per-(flags, granularity) indirect lists.
	commands map[MeshFlags]map[DrawCommandType]*CommandBuffer

	// commandsDirty marks flag sets whose lists must be rebuilt, one bit per
	// command granularity.
	commandsDirty map[MeshFlags]uint8

	// GPU mirrors, one per arena.
	VerticesGpu, PositionsGpu, ColorsGpu, NormalsGpu, TangentsGpu, UvsGpu GpuBuffer
	IndicesGpu, MeshletsGpu, MeshletChildrenGpu                           GpuBuffer
	MeshesGpu, MaterialsGpu, TexturesGpu, LightsGpu, TransformsGpu        GpuBuffer
	InstancesGpu, ConstantGpu                                             GpuBuffer
}

// NewGlobalBuffers creates an empty GlobalBuffers with every arena in
// grow-on-demand mode and GPU usage flags primed for the pass graph.
//
// Parameters:
//   - enableReadback: when true, storage buffers also carry COPY_SRC so the
//     host can read them back for capture tooling
//
// Returns:
//   - *GlobalBuffers: the new store
func NewGlobalBuffers(enableReadback bool) *GlobalBuffers {
	storage := wgpu.BufferUsageStorage
	if enableReadback {
		storage |= wgpu.BufferUsageCopySrc
	}
	g := &GlobalBuffers{
		Vertices:        arena.NewArena[DrawVertex](),
		Positions:       arena.NewArena[uint32](),
		Colors:          arena.NewArena[uint32](),
		Normals:         arena.NewArena[uint32](),
		Tangents:        arena.NewArena[uint32](),
		Uvs:             arena.NewArena[uint32](),
		Indices:         arena.NewArena[uint32](),
		Meshlets:        arena.NewArena[DrawMeshlet](),
		MeshletChildren: arena.NewArena[uint32](),
		Meshes:          arena.NewHashArena[DrawMesh](),
		Materials:       arena.NewHashArena[DrawMaterial](),
		Textures:        arena.NewHashArena[TextureInfo](),
		Lights:          arena.NewHashArena[LightData](),
		Transforms:      arena.NewHashArena[[16]float32](),
		commands:        make(map[MeshFlags]map[DrawCommandType]*CommandBuffer),
		commandsDirty:   make(map[MeshFlags]uint8),
	}
	g.VerticesGpu = GpuBuffer{Label: "vertices", Usage: storage}
	g.PositionsGpu = GpuBuffer{Label: "vertex_positions", Usage: storage}
	g.ColorsGpu = GpuBuffer{Label: "vertex_colors", Usage: storage}
	g.NormalsGpu = GpuBuffer{Label: "vertex_normals", Usage: storage}
	g.TangentsGpu = GpuBuffer{Label: "vertex_tangents", Usage: storage}
	g.UvsGpu = GpuBuffer{Label: "vertex_uvs", Usage: storage}
	g.IndicesGpu = GpuBuffer{Label: "indices", Usage: storage | wgpu.BufferUsageIndex}
	g.MeshletsGpu = GpuBuffer{Label: "meshlets", Usage: storage}
	g.MeshletChildrenGpu = GpuBuffer{Label: "meshlet_children", Usage: storage}
	g.MeshesGpu = GpuBuffer{Label: "meshes", Usage: storage}
	g.MaterialsGpu = GpuBuffer{Label: "materials", Usage: storage}
	g.TexturesGpu = GpuBuffer{Label: "texture_infos", Usage: storage}
	g.LightsGpu = GpuBuffer{Label: "lights", Usage: storage}
	g.TransformsGpu = GpuBuffer{Label: "transforms", Usage: storage}
	g.InstancesGpu = GpuBuffer{Label: "instances", Usage: storage}
	g.ConstantGpu = GpuBuffer{Label: "constant_data", Usage: wgpu.BufferUsageUniform}
	return g
}

// CommandsFor returns the command buffer for a flag set and granularity,
// creating it empty on first use.
//
// Parameters:
//   - flags: the mesh flag subset the commands draw
//   - commandType: the command granularity
//
// Returns:
//   - *CommandBuffer: the command buffer
func (g *GlobalBuffers) CommandsFor(flags MeshFlags, commandType DrawCommandType) *CommandBuffer {
	byType, ok := g.commands[flags]
	if !ok {
		byType = make(map[DrawCommandType]*CommandBuffer)
		g.commands[flags] = byType
	}
	cb, ok := byType[commandType]
	if !ok {
		usage := wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect | wgpu.BufferUsageCopyDst
		cb = &CommandBuffer{Gpu: GpuBuffer{Label: "draw_commands", Usage: usage}}
		byType[commandType] = cb
	}
	return cb
}

// MarkCommandsDirty flags a mesh flag set for command rebuild at every
// granularity.
//
// Parameters:
//   - flags: the flag set to rebuild
func (g *GlobalBuffers) MarkCommandsDirty(flags MeshFlags) {
	g.commandsDirty[flags] = 1<<uint(DrawCommandPerMeshlet) | 1<<uint(DrawCommandPerTriangle)
}

// TakeCommandsDirty reports and clears the dirty state of one flag set and
// granularity; the other granularity's bit survives until its own rebuild.
//
// Parameters:
//   - flags: the flag set to query
//   - commandType: the command granularity
//
// Returns:
//   - bool: true when a rebuild is due
func (g *GlobalBuffers) TakeCommandsDirty(flags MeshFlags, commandType DrawCommandType) bool {
	bit := uint8(1) << uint(commandType)
	dirty := g.commandsDirty[flags]&bit != 0
	g.commandsDirty[flags] = g.commandsDirty[flags] &^ bit
	return dirty
}

// MarkGeometryDirty flags every geometry stream mirror for upload. Called by
// the coordinator after mesh arena mutations.
func (g *GlobalBuffers) MarkGeometryDirty() {
	g.VerticesGpu.MarkDirty()
	g.PositionsGpu.MarkDirty()
	g.ColorsGpu.MarkDirty()
	g.NormalsGpu.MarkDirty()
	g.TangentsGpu.MarkDirty()
	g.UvsGpu.MarkDirty()
	g.IndicesGpu.MarkDirty()
	g.MeshletsGpu.MarkDirty()
	g.MeshletChildrenGpu.MarkDirty()
}

// SendToGPU mirrors every dirty arena into its GPU buffer.
//
// Parameters:
//   - device: the wgpu device owning the buffers
//   - queue: the queue used for writes
//
// Returns:
//   - bool: true if any buffer was reallocated, requiring binding rebuild
func (g *GlobalBuffers) SendToGPU(device *wgpu.Device, queue *wgpu.Queue) bool {
	reallocated := false

	upload := func(buf *GpuBuffer, data []byte) {
		if buf.Upload(device, queue, data) {
			reallocated = true
		}
	}

	upload(&g.VerticesGpu, common.SliceToBytes(g.Vertices.Data()))
	upload(&g.PositionsGpu, common.SliceToBytes(g.Positions.Data()))
	upload(&g.ColorsGpu, common.SliceToBytes(g.Colors.Data()))
	upload(&g.NormalsGpu, common.SliceToBytes(g.Normals.Data()))
	upload(&g.TangentsGpu, common.SliceToBytes(g.Tangents.Data()))
	upload(&g.UvsGpu, common.SliceToBytes(g.Uvs.Data()))
	upload(&g.IndicesGpu, common.SliceToBytes(g.Indices.Data()))
	upload(&g.MeshletsGpu, common.SliceToBytes(g.Meshlets.Data()))
	upload(&g.MeshletChildrenGpu, common.SliceToBytes(g.MeshletChildren.Data()))

	if g.Meshes.IsDirty() {
		g.MeshesGpu.MarkDirty()
		g.Meshes.SetDirty(false)
	}
	if g.Materials.IsDirty() {
		g.MaterialsGpu.MarkDirty()
		g.Materials.SetDirty(false)
	}
	if g.Textures.IsDirty() {
		g.TexturesGpu.MarkDirty()
		g.Textures.SetDirty(false)
	}
	if g.Lights.IsDirty() {
		g.LightsGpu.MarkDirty()
		g.Lights.SetDirty(false)
	}
	if g.Transforms.IsDirty() {
		g.TransformsGpu.MarkDirty()
		g.Transforms.SetDirty(false)
	}
	upload(&g.MeshesGpu, common.SliceToBytes(g.Meshes.Data()))
	upload(&g.MaterialsGpu, common.SliceToBytes(g.Materials.Data()))
	upload(&g.TexturesGpu, common.SliceToBytes(g.Textures.Data()))
	upload(&g.LightsGpu, common.SliceToBytes(g.Lights.Data()))
	upload(&g.TransformsGpu, common.SliceToBytes(g.Transforms.Data()))

	upload(&g.InstancesGpu, common.SliceToBytes(g.Instances))
	upload(&g.ConstantGpu, common.StructToBytes(&g.Constant))

	for _, byType := range g.commands {
		for _, cb := range byType {
			upload(&cb.Gpu, common.SliceToBytes(cb.Commands))
		}
	}
	return reallocated
}

// Release frees every GPU mirror. CPU arenas survive; a later SendToGPU
// reallocates. Used on device loss.
func (g *GlobalBuffers) Release() {
	buffers := []*GpuBuffer{
		&g.VerticesGpu, &g.PositionsGpu, &g.ColorsGpu, &g.NormalsGpu,
		&g.TangentsGpu, &g.UvsGpu, &g.IndicesGpu, &g.MeshletsGpu,
		&g.MeshletChildrenGpu, &g.MeshesGpu, &g.MaterialsGpu, &g.TexturesGpu,
		&g.LightsGpu, &g.TransformsGpu, &g.InstancesGpu, &g.ConstantGpu,
	}
	for _, b := range buffers {
		b.Release()
	}
	for _, byType := range g.commands {
		for _, cb := range byType {
			cb.Gpu.Release()
		}
	}
}

// RemoveMeshRanges releases every geometry range owned by a mesh id.
//
// Parameters:
//   - id: the mesh id to release
func (g *GlobalBuffers) RemoveMeshRanges(id common.Uid) {
	g.Vertices.Remove(id)
	g.Positions.Remove(id)
	g.Colors.Remove(id)
	g.Normals.Remove(id)
	g.Tangents.Remove(id)
	g.Uvs.Remove(id)
	g.Indices.Remove(id)
	g.Meshlets.Remove(id)
	g.MeshletChildren.Remove(id)
}
