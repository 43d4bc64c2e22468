package graphics

import (
	"log"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/resources"
)

// MeshPayload is the event payload carried by mesh Created events.
type MeshPayload struct {
	// Data is the compiled mesh.
	Data *MeshData

	// MaterialId is the id of the mesh's material, or InvalidUid.
	MaterialId common.Uid

	// Matrix is the initial object-to-world transform, column-major.
	Matrix [16]float32

	// Flags is the initial mesh flag set.
	Flags MeshFlags

	// DrawIndex pins the mesh to an explicit slot in the meshes arena when
	// non-negative; -1 takes the next free slot.
	DrawIndex int
}

// MeshChangePayload is the event payload carried by mesh Changed events.
type MeshChangePayload struct {
	// Matrix is the new object-to-world transform.
	Matrix [16]float32

	// Flags is the new mesh flag set.
	Flags MeshFlags
}

// MaterialPayload is the event payload carried by material Created and
// Changed events.
type MaterialPayload struct {
	// Data is the compiled material.
	Data *MaterialData

	// TextureIds holds the texture id per slot; InvalidUid when unset.
	TextureIds [TextureTypeCount]common.Uid
}

// TexturePayload is the event payload carried by texture Created events.
// The atlas manager fills Info before the event is pushed.
type TexturePayload struct {
	// Info is the texture's atlas placement record.
	Info TextureInfo
}

// LightPayload is the event payload carried by light Created and Changed events.
type LightPayload struct {
	// Data is the flat light record.
	Data LightData
}

// coordinator is the implementation of the Coordinator interface.
type coordinator struct {
	buffers *GlobalBuffers
	stream  resources.EventStream
}

// Coordinator translates the ordered resource event stream into arena
// mutations on the GlobalBuffers and rebuilds per-flag indirect command
// lists. It is the single writer of the buffer store; passes only read.
type Coordinator interface {
	// Reconcile drains the event stream and applies every event in order.
	// Unknown ids referenced by Destroyed events, and by Changed events for
	// meshes, are dropped with a debug log. A Changed event for an unknown
	// material, texture, light or object id is not dropped: it inserts the
	// record as a Created event would.
	Reconcile()

	// AddMesh allocates geometry ranges for a compiled mesh and inserts its
	// DrawMesh record. Empty meshes are rejected and produce no meshlets.
	//
	// Parameters:
	//   - id: the mesh id
	//   - payload: the compiled mesh and its initial state
	AddMesh(id common.Uid, payload *MeshPayload)

	// ChangeMesh updates a live mesh's transform and flags in place. When the
	// mesh's material forces blending, Opaque is swapped for Transparent.
	//
	// Parameters:
	//   - id: the mesh id
	//   - payload: the new transform and flags
	ChangeMesh(id common.Uid, payload *MeshChangePayload)

	// RemoveMesh releases every arena range owned by a mesh.
	//
	// Parameters:
	//   - id: the mesh id
	RemoveMesh(id common.Uid)

	// AddMaterial inserts or overwrites a material record.
	//
	// Parameters:
	//   - id: the material id
	//   - payload: the compiled material and its texture ids
	AddMaterial(id common.Uid, payload *MaterialPayload)

	// RemoveMaterial tombstones a material slot. Meshes still referencing it
	// keep their index; the slot is not reused while referenced.
	//
	// Parameters:
	//   - id: the material id
	RemoveMaterial(id common.Uid)

	// AddLight inserts or overwrites a light record.
	//
	// Parameters:
	//   - id: the light id
	//   - payload: the light record
	AddLight(id common.Uid, payload *LightPayload)

	// RemoveLight tombstones a light slot.
	//
	// Parameters:
	//   - id: the light id
	RemoveLight(id common.Uid)

	// AddTexture inserts a texture's atlas placement record.
	//
	// Parameters:
	//   - id: the texture id
	//   - payload: the atlas placement
	//
	// Returns:
	//   - int: the texture's stable GPU index
	AddTexture(id common.Uid, payload *TexturePayload) int

	// RemoveTexture tombstones a texture slot.
	//
	// Parameters:
	//   - id: the texture id
	RemoveTexture(id common.Uid)

	// RebuildCommands regenerates the indirect command list for a flag set
	// and granularity. A rebuild happens only when the flag set was marked
	// dirty since the last rebuild.
	//
	// Parameters:
	//   - flags: the mesh flag subset to draw
	//   - commandType: the command granularity
	RebuildCommands(flags MeshFlags, commandType DrawCommandType)
}

var _ Coordinator = &coordinator{}

// NewCoordinator creates a Coordinator over a buffer store and event stream.
//
// Parameters:
//   - buffers: the buffer store to mutate
//   - stream: the event stream to drain each tick
//
// Returns:
//   - Coordinator: the new coordinator
func NewCoordinator(buffers *GlobalBuffers, stream resources.EventStream) Coordinator {
	return &coordinator{buffers: buffers, stream: stream}
}

func (c *coordinator) Reconcile() {
	for _, e := range c.stream.DrainAll() {
		switch e.Kind {
		case resources.ResourceKindMesh:
			c.applyMeshEvent(e)
		case resources.ResourceKindMaterial:
			c.applyMaterialEvent(e)
		case resources.ResourceKindTexture:
			c.applyTextureEvent(e)
		case resources.ResourceKindLight:
			c.applyLightEvent(e)
		case resources.ResourceKindObject:
			c.applyObjectEvent(e)
		}
	}
}

func (c *coordinator) applyMeshEvent(e resources.Event) {
	switch e.Type {
	case resources.EventCreated:
		payload, ok := e.Payload.(*MeshPayload)
		if !ok {
			log.Printf("[Coordinator] mesh %s created without payload, dropped", e.Id)
			return
		}
		c.AddMesh(e.Id, payload)
	case resources.EventChanged:
		payload, ok := e.Payload.(*MeshChangePayload)
		if !ok {
			log.Printf("[Coordinator] mesh %s changed without payload, dropped", e.Id)
			return
		}
		c.ChangeMesh(e.Id, payload)
	case resources.EventDestroyed:
		if c.buffers.Meshes.Get(e.Id) == nil {
			log.Printf("[Coordinator] destroy for unknown mesh %s dropped", e.Id)
			return
		}
		c.RemoveMesh(e.Id)
	}
}

func (c *coordinator) applyMaterialEvent(e resources.Event) {
	switch e.Type {
	case resources.EventCreated, resources.EventChanged:
		payload, ok := e.Payload.(*MaterialPayload)
		if !ok {
			log.Printf("[Coordinator] material %s event without payload, dropped", e.Id)
			return
		}
		c.AddMaterial(e.Id, payload)
	case resources.EventDestroyed:
		c.RemoveMaterial(e.Id)
	}
}

func (c *coordinator) applyTextureEvent(e resources.Event) {
	switch e.Type {
	case resources.EventCreated, resources.EventChanged:
		payload, ok := e.Payload.(*TexturePayload)
		if !ok {
			log.Printf("[Coordinator] texture %s event without payload, dropped", e.Id)
			return
		}
		c.AddTexture(e.Id, payload)
	case resources.EventDestroyed:
		c.RemoveTexture(e.Id)
	}
}

func (c *coordinator) applyLightEvent(e resources.Event) {
	switch e.Type {
	case resources.EventCreated, resources.EventChanged:
		payload, ok := e.Payload.(*LightPayload)
		if !ok {
			log.Printf("[Coordinator] light %s event without payload, dropped", e.Id)
			return
		}
		c.AddLight(e.Id, payload)
	case resources.EventDestroyed:
		c.RemoveLight(e.Id)
	}
}

func (c *coordinator) applyObjectEvent(e resources.Event) {
	switch e.Type {
	case resources.EventCreated, resources.EventChanged:
		payload, ok := e.Payload.(*[16]float32)
		if !ok {
			log.Printf("[Coordinator] object %s event without transform, dropped", e.Id)
			return
		}
		c.buffers.Transforms.Insert(e.Id, *payload)
	case resources.EventDestroyed:
		if !c.buffers.Transforms.Remove(e.Id) {
			log.Printf("[Coordinator] destroy for unknown object %s dropped", e.Id)
		}
	}
}

// addVertexData allocates the attribute streams for a mesh and returns the
// vertex and index arena offsets. Colors default to opaque white when absent
// since position and color share an offset.
func (c *coordinator) addVertexData(id common.Uid, data *MeshData, meshIndex uint32) (uint32, uint32) {
	b := c.buffers

	_, posRange := b.Positions.Allocate(id, data.Positions)
	if len(data.Colors) == 0 {
		colors := make([]uint32, len(data.Positions))
		for i := range colors {
			colors[i] = 0xFFFFFFFF
		}
		b.Colors.Allocate(id, colors)
	} else {
		b.Colors.Allocate(id, data.Colors)
	}

	var normalStart int32
	if len(data.Normals) > 0 {
		_, r := b.Normals.Allocate(id, data.Normals)
		normalStart = int32(r.Start)
	}
	var tangentStart int32
	if len(data.Tangents) > 0 {
		_, r := b.Tangents.Allocate(id, data.Tangents)
		tangentStart = int32(r.Start)
	}
	var uvStart int32
	if len(data.Uvs) > 0 {
		_, r := b.Uvs.Allocate(id, data.Uvs)
		uvStart = int32(r.Start)
	}

	vertices := make([]DrawVertex, len(data.Vertices))
	copy(vertices, data.Vertices)
	for i := range vertices {
		v := &vertices[i]
		v.PositionAndColorOffset += uint32(posRange.Start)
		if v.NormalOffset >= 0 {
			v.NormalOffset += normalStart
		}
		if v.TangentOffset >= 0 {
			v.TangentOffset += tangentStart
		}
		for j := range v.UvOffset {
			if v.UvOffset[j] >= 0 {
				v.UvOffset[j] += uvStart
			}
		}
		v.MeshIndex = meshIndex
	}
	_, vertexRange := b.Vertices.Allocate(id, vertices)
	_, indexRange := b.Indices.Allocate(id, data.Indices)
	return uint32(vertexRange.Start), uint32(indexRange.Start)
}

// extractMeshlets converts asset meshlets into GPU records and flattens the
// LOD child lists into the children arena.
func (c *coordinator) extractMeshlets(id common.Uid, data *MeshData, meshIndex, vertexOffset uint32) []DrawMeshlet {
	meshlets := make([]DrawMeshlet, 0, len(data.Meshlets))
	var children []uint32
	for i := range data.Meshlets {
		md := &data.Meshlets[i]
		meshlets = append(meshlets, DrawMeshlet{
			MeshIndex:     meshIndex,
			VertexOffset:  vertexOffset + md.VerticesOffset,
			IndicesOffset: md.IndicesOffset,
			IndicesCount:  md.IndicesCount,
			CenterRadius:  [4]float32{md.Center[0], md.Center[1], md.Center[2], md.Radius},
			ConeAxisCutoff: [4]float32{
				md.ConeAxis[0], md.ConeAxis[1], md.ConeAxis[2], md.ConeCutoff,
			},
		})
		children = append(children, md.ChildMeshlets...)
	}
	if len(children) > 0 {
		c.buffers.MeshletChildren.Allocate(id, children)
	}
	return meshlets
}

func (c *coordinator) AddMesh(id common.Uid, payload *MeshPayload) {
	if payload.Data == nil || payload.Data.IsEmpty() {
		log.Printf("[Coordinator] mesh %s has no drawable geometry, rejected", id)
		return
	}
	b := c.buffers
	c.RemoveMesh(id)

	meshIndex := b.Meshes.Insert(id, DrawMesh{MaterialIndex: InvalidIndex})
	if payload.DrawIndex >= 0 && payload.DrawIndex != meshIndex {
		displacedId, displaced := b.Meshes.IdAt(payload.DrawIndex)
		b.Meshes.MoveTo(id, payload.DrawIndex)
		if displaced {
			// the displaced mesh landed in our vacated slot; repoint its
			// per-vertex and per-meshlet back references
			c.repointMeshIndex(displacedId, uint32(meshIndex))
		}
		meshIndex = payload.DrawIndex
	}

	vertexOffset, indicesOffset := c.addVertexData(id, payload.Data, uint32(meshIndex))

	mesh := b.Meshes.Get(id)
	mesh.VertexOffset = vertexOffset
	mesh.IndicesOffset = indicesOffset
	mesh.Matrix = payload.Matrix
	mesh.AabbMin = payload.Data.AabbMin
	mesh.AabbMax = payload.Data.AabbMax

	flags := payload.Flags
	if flags == MeshFlagsNone {
		flags = MeshFlagsVisible | MeshFlagsOpaque
	}
	if payload.MaterialId.IsValid() {
		if index := b.Materials.IndexOf(payload.MaterialId); index >= 0 {
			mesh.MaterialIndex = int32(index)
			if mat := b.Materials.Get(payload.MaterialId); mat != nil {
				if mat.AlphaMode == AlphaModeBlend || mat.BaseColor[3] < 1 {
					flags = (flags &^ MeshFlagsOpaque) | MeshFlagsTransparent
				}
			}
		} else {
			log.Printf("[Coordinator] mesh %s references unknown material %s", id, payload.MaterialId)
		}
	}
	mesh.Flags = uint32(flags)

	meshlets := c.extractMeshlets(id, payload.Data, uint32(meshIndex), vertexOffset)
	if len(meshlets) == 0 {
		log.Printf("[Coordinator] mesh %s carries no meshlets", id)
		return
	}
	_, meshletRange := b.Meshlets.Allocate(id, meshlets)
	mesh.MeshletOffset = uint32(meshletRange.Start)
	mesh.MeshletCount = uint32(len(meshlets))

	b.Meshes.SetDirty(true)
	b.MarkGeometryDirty()
	b.MarkCommandsDirty(flags)
}

// repointMeshIndex rewrites the MeshIndex carried by a mesh's vertex and
// meshlet records after the mesh moved to a different arena slot.
func (c *coordinator) repointMeshIndex(id common.Uid, newIndex uint32) {
	b := c.buffers
	vertices := b.Vertices.Get(id)
	for i := range vertices {
		vertices[i].MeshIndex = newIndex
	}
	meshlets := b.Meshlets.Get(id)
	for i := range meshlets {
		meshlets[i].MeshIndex = newIndex
	}
	b.MarkGeometryDirty()
}

func (c *coordinator) ChangeMesh(id common.Uid, payload *MeshChangePayload) {
	b := c.buffers
	mesh := b.Meshes.Get(id)
	if mesh == nil {
		log.Printf("[Coordinator] change for unknown mesh %s dropped", id)
		return
	}
	flags := payload.Flags
	if mesh.MaterialIndex != InvalidIndex && int(mesh.MaterialIndex) < b.Materials.TotalLen() {
		mat := &b.Materials.Data()[mesh.MaterialIndex]
		if mat.AlphaMode == AlphaModeBlend || mat.BaseColor[3] < 1 {
			flags = (flags &^ MeshFlagsOpaque) | MeshFlagsTransparent
		}
	}
	oldFlags := MeshFlags(mesh.Flags)
	mesh.Matrix = payload.Matrix
	mesh.Flags = uint32(flags)
	b.Meshes.SetDirty(true)
	if oldFlags != flags {
		b.MarkCommandsDirty(oldFlags)
		b.MarkCommandsDirty(flags)
	}
}

func (c *coordinator) RemoveMesh(id common.Uid) {
	b := c.buffers
	mesh := b.Meshes.Get(id)
	if mesh == nil {
		return
	}
	flags := MeshFlags(mesh.Flags)
	b.Meshes.Remove(id)
	b.RemoveMeshRanges(id)
	b.MarkGeometryDirty()
	b.MarkCommandsDirty(flags)
}

func (c *coordinator) AddMaterial(id common.Uid, payload *MaterialPayload) {
	b := c.buffers
	material := DrawMaterial{}
	for i := range material.TexturesIndices {
		material.TexturesIndices[i] = InvalidIndex
	}
	if payload.Data != nil {
		d := payload.Data
		material.BaseColor = d.BaseColor
		material.EmissiveColor = d.EmissiveColor
		material.DiffuseColor = d.DiffuseColor
		material.SpecularColor = d.SpecularColor
		material.RoughnessFactor = d.RoughnessFactor
		material.MetallicFactor = d.MetallicFactor
		material.AlphaCutoff = d.AlphaCutoff
		material.OcclusionStrength = d.OcclusionStrength
		material.AlphaMode = d.AlphaMode
		material.TexturesCoordSet = d.TexcoordsSet
	}
	for i, textureId := range payload.TextureIds {
		if !textureId.IsValid() {
			continue
		}
		if index := b.Textures.IndexOf(textureId); index >= 0 {
			material.TexturesIndices[i] = int32(index)
		} else {
			log.Printf("[Coordinator] material %s references unknown texture %s", id, textureId)
		}
	}
	b.Materials.Insert(id, material)
}

func (c *coordinator) RemoveMaterial(id common.Uid) {
	if !c.buffers.Materials.Remove(id) {
		log.Printf("[Coordinator] remove of unknown material %s dropped", id)
	}
}

func (c *coordinator) AddLight(id common.Uid, payload *LightPayload) {
	c.buffers.Lights.Insert(id, payload.Data)
	c.buffers.Constant.LightCount = uint32(c.buffers.Lights.Count())
	c.buffers.ConstantGpu.MarkDirty()
}

func (c *coordinator) RemoveLight(id common.Uid) {
	if !c.buffers.Lights.Remove(id) {
		log.Printf("[Coordinator] remove of unknown light %s dropped", id)
		return
	}
	c.buffers.Constant.LightCount = uint32(c.buffers.Lights.Count())
	c.buffers.ConstantGpu.MarkDirty()
}

func (c *coordinator) AddTexture(id common.Uid, payload *TexturePayload) int {
	return c.buffers.Textures.Insert(id, payload.Info)
}

func (c *coordinator) RemoveTexture(id common.Uid) {
	if !c.buffers.Textures.Remove(id) {
		log.Printf("[Coordinator] remove of unknown texture %s dropped", id)
	}
}

func (c *coordinator) RebuildCommands(flags MeshFlags, commandType DrawCommandType) {
	b := c.buffers
	if !b.TakeCommandsDirty(flags, commandType) {
		return
	}
	cb := b.CommandsFor(flags, commandType)
	cb.Commands = cb.Commands[:0]
	meshletData := b.Meshlets.Data()

	b.Meshes.ForEachEntry(func(_ int, mesh *DrawMesh) {
		if !MeshFlags(mesh.Flags).Has(flags) {
			return
		}
		for meshletIndex := mesh.MeshletOffset; meshletIndex < mesh.MeshletOffset+mesh.MeshletCount; meshletIndex++ {
			meshlet := &meshletData[meshletIndex]
			switch commandType {
			case DrawCommandPerMeshlet:
				cb.Commands = append(cb.Commands, DrawIndexedCommand{
					VertexCount:   meshlet.IndicesCount,
					InstanceCount: 1,
					BaseIndex:     mesh.IndicesOffset + meshlet.IndicesOffset,
					VertexOffset:  int32(mesh.VertexOffset),
					BaseInstance:  meshletIndex,
				})
			case DrawCommandPerTriangle:
				total := mesh.IndicesOffset + meshlet.IndicesOffset + meshlet.IndicesCount
				i := mesh.IndicesOffset + meshlet.IndicesOffset
				triangleIndex := uint32(0)
				for ; i < total; i += 3 {
					cb.Commands = append(cb.Commands, DrawIndexedCommand{
						VertexCount:   3,
						InstanceCount: 1,
						BaseIndex:     i,
						VertexOffset:  int32(mesh.VertexOffset),
						BaseInstance:  triangleIndex<<24 | meshletIndex,
					})
					triangleIndex++
				}
			}
		}
	})
	cb.Gpu.MarkDirty()
}
