package graphics

import (
	"testing"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/resources"
)

// triangleMeshData builds the single-triangle mesh used across scenarios:
// vertices (0,0,0) (1,0,0) (0,1,0), indices 0 1 2, one meshlet.
func triangleMeshData() *MeshData {
	m := &MeshData{
		VertexLayout: VertexAttributeHasPosition,
		AabbMin:      [3]float32{0, 0, 0},
		AabbMax:      [3]float32{1, 1, 0},
		Indices:      []uint32{0, 1, 2},
	}
	positions := [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	for i, p := range positions {
		local := common.NormalizeToAabb(p, m.AabbMin, m.AabbMax)
		m.Positions = append(m.Positions, common.PackSnorm10(local[0], local[1], local[2]))
		v := DrawVertex{PositionAndColorOffset: uint32(i), NormalOffset: -1, TangentOffset: -1}
		for j := range v.UvOffset {
			v.UvOffset[j] = -1
		}
		m.Vertices = append(m.Vertices, v)
	}
	m.Meshlets = []MeshletData{{
		IndicesOffset: 0,
		IndicesCount:  3,
		AabbMin:       m.AabbMin,
		AabbMax:       m.AabbMax,
		Center:        [3]float32{0.5, 0.5, 0},
		Radius:        1,
		ConeAxis:      [3]float32{0, 0, 1},
		ConeCutoff:    1,
	}}
	return m
}

// meshWithIndices builds a mesh whose index stream has the given length
// (must be a multiple of 3), with one meshlet spanning all triangles.
func meshWithIndices(indexCount int) *MeshData {
	m := triangleMeshData()
	m.Indices = make([]uint32, indexCount)
	for i := range m.Indices {
		m.Indices[i] = uint32(i % 3)
	}
	m.Meshlets[0].IndicesCount = uint32(indexCount)
	return m
}

func newTestCoordinator() (Coordinator, *GlobalBuffers, resources.EventStream) {
	buffers := NewGlobalBuffers(false)
	stream := resources.NewEventStream()
	return NewCoordinator(buffers, stream), buffers, stream
}

func identity() [16]float32 {
	var m [16]float32
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

func TestSingleTriangleMeshProducesOneCommand(t *testing.T) {
	c, buffers, _ := newTestCoordinator()
	id := common.NewUid()

	c.AddMesh(id, &MeshPayload{Data: triangleMeshData(), Matrix: identity(), DrawIndex: -1})

	mesh := buffers.Meshes.Get(id)
	if mesh == nil {
		t.Fatalf("mesh not inserted")
	}
	if mesh.MeshletCount != 1 {
		t.Fatalf("MeshletCount = %d, want 1", mesh.MeshletCount)
	}
	if buffers.Meshlets.ItemCount() != 1 {
		t.Fatalf("meshlets arena holds %d, want 1", buffers.Meshlets.ItemCount())
	}
	meshlet := buffers.Meshlets.Get(id)[0]
	if meshlet.IndicesCount != 3 {
		t.Fatalf("meshlet IndicesCount = %d, want 3", meshlet.IndicesCount)
	}

	flags := MeshFlagsVisible | MeshFlagsOpaque
	c.RebuildCommands(flags, DrawCommandPerMeshlet)
	commands := buffers.CommandsFor(flags, DrawCommandPerMeshlet).Commands
	if len(commands) != 1 {
		t.Fatalf("command count = %d, want 1", len(commands))
	}
	want := DrawIndexedCommand{VertexCount: 3, InstanceCount: 1, BaseIndex: 0, VertexOffset: 0, BaseInstance: 0}
	if commands[0] != want {
		t.Fatalf("command = %+v, want %+v", commands[0], want)
	}
}

func TestEmptyMeshRejected(t *testing.T) {
	c, buffers, _ := newTestCoordinator()
	id := common.NewUid()

	c.AddMesh(id, &MeshPayload{Data: &MeshData{}, DrawIndex: -1})
	if buffers.Meshes.Get(id) != nil {
		t.Fatalf("empty mesh was inserted")
	}
	if buffers.Meshlets.ItemCount() != 0 {
		t.Fatalf("empty mesh produced meshlets")
	}
}

func TestTwoMeshesShareMaterial(t *testing.T) {
	c, buffers, _ := newTestCoordinator()
	matId := common.NewUid()
	m1 := common.NewUid()
	m2 := common.NewUid()

	c.AddMaterial(matId, &MaterialPayload{Data: &MaterialData{BaseColor: [4]float32{1, 1, 1, 1}}})
	c.AddMesh(m1, &MeshPayload{Data: meshWithIndices(12), MaterialId: matId, Matrix: identity(), DrawIndex: -1})
	c.AddMesh(m2, &MeshPayload{Data: meshWithIndices(6), MaterialId: matId, Matrix: identity(), DrawIndex: -1})

	if buffers.Materials.Count() != 1 {
		t.Fatalf("materials count = %d, want 1", buffers.Materials.Count())
	}
	c.RemoveMesh(m1)
	if buffers.Materials.Count() != 1 {
		t.Fatalf("removing a referencing mesh freed the material")
	}
	c.RemoveMesh(m2)
	if buffers.Materials.Count() != 1 {
		t.Fatalf("material auto-freed on last mesh removal; lifetime belongs to the holder")
	}
}

func TestExplicitDrawIndexPlacement(t *testing.T) {
	c, buffers, _ := newTestCoordinator()
	first := common.NewUid()
	pinned := common.NewUid()

	c.AddMesh(first, &MeshPayload{Data: triangleMeshData(), Matrix: identity(), DrawIndex: -1})
	c.AddMesh(pinned, &MeshPayload{Data: triangleMeshData(), Matrix: identity(), DrawIndex: 5})

	if idx := buffers.Meshes.IndexOf(pinned); idx != 5 {
		t.Fatalf("pinned mesh at slot %d, want 5", idx)
	}
	// back references must agree with the occupied slot
	for _, v := range buffers.Vertices.Get(pinned) {
		if v.MeshIndex != 5 {
			t.Fatalf("vertex MeshIndex = %d, want 5", v.MeshIndex)
		}
	}
	for _, ml := range buffers.Meshlets.Get(pinned) {
		if ml.MeshIndex != 5 {
			t.Fatalf("meshlet MeshIndex = %d, want 5", ml.MeshIndex)
		}
	}
	firstIdx := buffers.Meshes.IndexOf(first)
	for _, ml := range buffers.Meshlets.Get(first) {
		if int(ml.MeshIndex) != firstIdx {
			t.Fatalf("first mesh meshlet MeshIndex = %d, want %d", ml.MeshIndex, firstIdx)
		}
	}
}

func TestTransparencyToggleByMaterialAlpha(t *testing.T) {
	c, buffers, _ := newTestCoordinator()
	matId := common.NewUid()
	meshId := common.NewUid()

	c.AddMaterial(matId, &MaterialPayload{Data: &MaterialData{BaseColor: [4]float32{1, 1, 1, 0.5}}})
	c.AddMesh(meshId, &MeshPayload{
		Data:       triangleMeshData(),
		MaterialId: matId,
		Flags:      MeshFlagsVisible | MeshFlagsOpaque,
		Matrix:     identity(),
		DrawIndex:  -1,
	})

	mesh := buffers.Meshes.Get(meshId)
	if MeshFlags(mesh.Flags).Has(MeshFlagsOpaque) {
		t.Fatalf("mesh with alpha 0.5 material kept Opaque")
	}
	if !MeshFlags(mesh.Flags).Has(MeshFlagsTransparent) {
		t.Fatalf("mesh with alpha 0.5 material not Transparent")
	}

	opaque := MeshFlagsVisible | MeshFlagsOpaque
	transparent := MeshFlagsVisible | MeshFlagsTransparent
	c.RebuildCommands(opaque, DrawCommandPerMeshlet)
	c.RebuildCommands(transparent, DrawCommandPerMeshlet)
	if n := len(buffers.CommandsFor(opaque, DrawCommandPerMeshlet).Commands); n != 0 {
		t.Fatalf("opaque command list holds %d commands, want 0", n)
	}
	if n := len(buffers.CommandsFor(transparent, DrawCommandPerMeshlet).Commands); n != 1 {
		t.Fatalf("transparent command list holds %d commands, want 1", n)
	}
}

func TestCommandCountMatchesMeshletCount(t *testing.T) {
	c, buffers, _ := newTestCoordinator()
	flags := MeshFlagsVisible | MeshFlagsOpaque

	total := 0
	for _, indexCount := range []int{12, 6, 24} {
		id := common.NewUid()
		c.AddMesh(id, &MeshPayload{Data: meshWithIndices(indexCount), Matrix: identity(), DrawIndex: -1})
		total++
	}
	c.RebuildCommands(flags, DrawCommandPerMeshlet)
	commands := buffers.CommandsFor(flags, DrawCommandPerMeshlet).Commands

	meshletSum := uint32(0)
	buffers.Meshes.ForEachEntry(func(_ int, mesh *DrawMesh) {
		if MeshFlags(mesh.Flags).Has(flags) {
			meshletSum += mesh.MeshletCount
		}
	})
	if uint32(len(commands)) != meshletSum {
		t.Fatalf("command count %d != meshlet sum %d", len(commands), meshletSum)
	}
	_ = total
}

func TestPerTriangleCommandsCoverAllIndices(t *testing.T) {
	c, buffers, _ := newTestCoordinator()
	flags := MeshFlagsVisible | MeshFlagsOpaque
	id := common.NewUid()
	c.AddMesh(id, &MeshPayload{Data: meshWithIndices(12), Matrix: identity(), DrawIndex: -1})

	c.RebuildCommands(flags, DrawCommandPerTriangle)
	commands := buffers.CommandsFor(flags, DrawCommandPerTriangle).Commands

	vertexSum := uint32(0)
	for _, cmd := range commands {
		if cmd.VertexCount != 3 {
			t.Fatalf("per-triangle command VertexCount = %d, want 3", cmd.VertexCount)
		}
		vertexSum += cmd.VertexCount
	}
	indicesSum := uint32(0)
	for _, ml := range buffers.Meshlets.Get(id) {
		indicesSum += ml.IndicesCount
	}
	if vertexSum != indicesSum {
		t.Fatalf("per-triangle vertex sum %d != meshlet indices sum %d", vertexSum, indicesSum)
	}
	// triangle index rides the top 8 bits of base_instance
	if commands[1].BaseInstance>>24 != 1 {
		t.Fatalf("second triangle BaseInstance top bits = %d, want 1", commands[1].BaseInstance>>24)
	}
}

func TestRebuildSkippedWhenNotDirty(t *testing.T) {
	c, buffers, _ := newTestCoordinator()
	flags := MeshFlagsVisible | MeshFlagsOpaque
	id := common.NewUid()
	c.AddMesh(id, &MeshPayload{Data: triangleMeshData(), Matrix: identity(), DrawIndex: -1})

	c.RebuildCommands(flags, DrawCommandPerMeshlet)
	cb := buffers.CommandsFor(flags, DrawCommandPerMeshlet)
	cb.Commands = append(cb.Commands, DrawIndexedCommand{}) // sentinel: rebuild would clear it

	c.RebuildCommands(flags, DrawCommandPerMeshlet)
	if len(cb.Commands) != 2 {
		t.Fatalf("clean flag set was rebuilt")
	}
}

func TestRemoveMeshReclaimsAllRanges(t *testing.T) {
	c, buffers, _ := newTestCoordinator()
	id := common.NewUid()
	c.AddMesh(id, &MeshPayload{Data: meshWithIndices(12), Matrix: identity(), DrawIndex: -1})
	c.RemoveMesh(id)

	if buffers.Meshes.Get(id) != nil {
		t.Fatalf("mesh record survived removal")
	}
	if buffers.Vertices.Get(id) != nil || buffers.Indices.Get(id) != nil || buffers.Meshlets.Get(id) != nil ||
		buffers.Positions.Get(id) != nil || buffers.Colors.Get(id) != nil {
		t.Fatalf("geometry ranges survived removal")
	}
}

func TestReconcileAppliesEventStreamInOrder(t *testing.T) {
	c, buffers, stream := newTestCoordinator()
	matId := common.NewUid()
	meshId := common.NewUid()

	// mesh pushed before material, but kind ordering resolves the reference
	stream.Push(resources.Event{
		Kind: resources.ResourceKindMesh, Type: resources.EventCreated, Id: meshId,
		Payload: &MeshPayload{Data: triangleMeshData(), MaterialId: matId, Matrix: identity(), DrawIndex: -1},
	})
	stream.Push(resources.Event{
		Kind: resources.ResourceKindMaterial, Type: resources.EventCreated, Id: matId,
		Payload: &MaterialPayload{Data: &MaterialData{BaseColor: [4]float32{1, 1, 1, 1}}},
	})
	c.Reconcile()

	mesh := buffers.Meshes.Get(meshId)
	if mesh == nil {
		t.Fatalf("mesh not created by reconcile")
	}
	if mesh.MaterialIndex == InvalidIndex {
		t.Fatalf("mesh did not resolve its material")
	}

	stream.Push(resources.Event{Kind: resources.ResourceKindMesh, Type: resources.EventDestroyed, Id: meshId})
	c.Reconcile()
	if buffers.Meshes.Get(meshId) != nil {
		t.Fatalf("mesh survived destroy event")
	}
}

func TestMeshIndicesInvariants(t *testing.T) {
	c, buffers, _ := newTestCoordinator()
	for _, indexCount := range []int{3, 12, 24} {
		id := common.NewUid()
		c.AddMesh(id, &MeshPayload{Data: meshWithIndices(indexCount), Matrix: identity(), DrawIndex: -1})

		indices := buffers.Indices.Get(id)
		if len(indices)%3 != 0 {
			t.Fatalf("index count %d not divisible by 3", len(indices))
		}
		for _, ml := range buffers.Meshlets.Get(id) {
			if int(ml.IndicesOffset+ml.IndicesCount) > len(indices) {
				t.Fatalf("meshlet spans past the mesh index range: %d+%d > %d",
					ml.IndicesOffset, ml.IndicesCount, len(indices))
			}
		}
		mesh := buffers.Meshes.Get(id)
		if int(mesh.MeshletOffset+mesh.MeshletCount) > buffers.Meshlets.TotalLen() {
			t.Fatalf("mesh meshlet span exceeds arena length")
		}
	}
}
