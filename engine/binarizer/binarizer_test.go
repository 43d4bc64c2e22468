package binarizer

import (
	"testing"

	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/loader"
)

// gridMesh builds an n x n vertex plane triangulated into 2*(n-1)^2
// triangles, a well-behaved manifold with a locked outer border.
func gridMesh(n int) ([]Vertex, []uint32) {
	vertices := make([]Vertex, 0, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			vertices = append(vertices, Vertex{
				Position: [3]float32{float32(x), float32(y), 0},
				Color:    [4]float32{1, 1, 1, 1},
				Normal:   [3]float32{0, 0, 1},
			})
		}
	}
	var indices []uint32
	for y := 0; y < n-1; y++ {
		for x := 0; x < n-1; x++ {
			i := uint32(y*n + x)
			indices = append(indices, i, i+1, i+uint32(n))
			indices = append(indices, i+1, i+uint32(n)+1, i+uint32(n))
		}
	}
	return vertices, indices
}

func TestVertexRemapDeduplicates(t *testing.T) {
	vertices := []Vertex{
		{Position: [3]float32{0, 0, 0}},
		{Position: [3]float32{1, 0, 0}},
		{Position: [3]float32{0, 0, 0}}, // duplicate of vertex 0
	}
	indices := []uint32{0, 1, 2}

	count, remap := GenerateVertexRemap(vertices)
	if count != 2 {
		t.Fatalf("deduplicated count = %d, want 2", count)
	}
	remapped := RemapIndexBuffer(indices, remap)
	if remapped[0] != remapped[2] {
		t.Fatalf("duplicate vertices map to different slots: %v", remapped)
	}
}

func TestOptimizeMeshPreservesTriangles(t *testing.T) {
	vertices, indices := gridMesh(8)
	optVertices, optIndices := OptimizeMesh(vertices, indices)

	if len(optIndices) != len(indices) {
		t.Fatalf("optimization changed index count: %d -> %d", len(indices), len(optIndices))
	}
	if len(optIndices)%3 != 0 {
		t.Fatalf("index count %d not divisible by 3", len(optIndices))
	}
	for _, idx := range optIndices {
		if int(idx) >= len(optVertices) {
			t.Fatalf("index %d out of range for %d vertices", idx, len(optVertices))
		}
	}

	// the triangle set survives reordering: compare position multisets
	key := func(vs []Vertex, a, b, c uint32) [9]float32 {
		tri := [][3]float32{vs[a].Position, vs[b].Position, vs[c].Position}
		// canonicalize by rotating the smallest corner first
		smallest := 0
		for i := 1; i < 3; i++ {
			if tri[i][0] < tri[smallest][0] || (tri[i][0] == tri[smallest][0] && tri[i][1] < tri[smallest][1]) {
				smallest = i
			}
		}
		var out [9]float32
		for i := 0; i < 3; i++ {
			p := tri[(smallest+i)%3]
			out[i*3], out[i*3+1], out[i*3+2] = p[0], p[1], p[2]
		}
		return out
	}
	before := make(map[[9]float32]int)
	for i := 0; i < len(indices); i += 3 {
		before[key(vertices, indices[i], indices[i+1], indices[i+2])]++
	}
	for i := 0; i < len(optIndices); i += 3 {
		before[key(optVertices, optIndices[i], optIndices[i+1], optIndices[i+2])]--
	}
	for k, v := range before {
		if v != 0 {
			t.Fatalf("triangle multiset changed at %v (delta %d)", k, v)
		}
	}
}

func TestBuildMeshletsHonorsLimits(t *testing.T) {
	vertices, indices := gridMesh(32)
	optVertices, optIndices := OptimizeMesh(vertices, indices)
	meshlets, meshletIndices := BuildMeshlets(optVertices, optIndices)

	if len(meshlets) < 2 {
		t.Fatalf("expected multiple meshlets for %d triangles, got %d", len(optIndices)/3, len(meshlets))
	}
	if len(meshletIndices) != len(optIndices) {
		t.Fatalf("meshlet index stream length %d, want %d", len(meshletIndices), len(optIndices))
	}

	covered := uint32(0)
	for i, m := range meshlets {
		if m.IndicesCount%3 != 0 {
			t.Fatalf("meshlet %d IndicesCount %d not divisible by 3", i, m.IndicesCount)
		}
		if m.IndicesCount/3 > MaxMeshletTriangles {
			t.Fatalf("meshlet %d holds %d triangles, cap is %d", i, m.IndicesCount/3, MaxMeshletTriangles)
		}
		unique := make(map[uint32]struct{})
		for j := m.IndicesOffset; j < m.IndicesOffset+m.IndicesCount; j++ {
			unique[meshletIndices[j]] = struct{}{}
		}
		if len(unique) > MaxMeshletVertices {
			t.Fatalf("meshlet %d uses %d vertices, cap is %d", i, len(unique), MaxMeshletVertices)
		}
		if m.IndicesOffset != covered {
			t.Fatalf("meshlet %d not contiguous: offset %d, want %d", i, m.IndicesOffset, covered)
		}
		covered += m.IndicesCount

		// bounds must contain every referenced vertex
		for v := range unique {
			p := optVertices[v].Position
			for axis := 0; axis < 3; axis++ {
				if p[axis] < m.AabbMin[axis]-1e-4 || p[axis] > m.AabbMax[axis]+1e-4 {
					t.Fatalf("meshlet %d vertex outside AABB on axis %d", i, axis)
				}
			}
		}
	}
}

func TestAdjacencySymmetry(t *testing.T) {
	vertices, indices := gridMesh(24)
	optVertices, optIndices := OptimizeMesh(vertices, indices)
	meshlets, meshletIndices := BuildMeshlets(optVertices, optIndices)
	info := BuildMeshletsAdjacency(meshlets, optVertices, meshletIndices)

	if len(info) != len(meshlets) {
		t.Fatalf("adjacency records %d, want %d", len(info), len(meshlets))
	}
	for _, record := range info {
		for _, adj := range record.AdjacentMeshlets {
			other := info[adj.MeshletIndex]
			found := false
			for _, back := range other.AdjacentMeshlets {
				if back.MeshletIndex == record.MeshletIndex {
					if back.SharedEdges != adj.SharedEdges {
						t.Fatalf("asymmetric weights: %d-%d is %d, %d-%d is %d",
							record.MeshletIndex, adj.MeshletIndex, adj.SharedEdges,
							adj.MeshletIndex, record.MeshletIndex, back.SharedEdges)
					}
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("adjacency %d -> %d has no mirror", record.MeshletIndex, adj.MeshletIndex)
			}
		}
	}
}

func TestGroupingCoversEveryMeshletOnce(t *testing.T) {
	vertices, indices := gridMesh(24)
	optVertices, optIndices := OptimizeMesh(vertices, indices)
	meshlets, meshletIndices := BuildMeshlets(optVertices, optIndices)
	info := BuildMeshletsAdjacency(meshlets, optVertices, meshletIndices)
	groups := GroupMeshlets(info)

	seen := make(map[uint32]int)
	for _, group := range groups {
		if len(group) == 0 {
			t.Fatalf("empty group emitted")
		}
		for _, m := range group {
			seen[m]++
		}
	}
	if len(seen) != len(meshlets) {
		t.Fatalf("grouping covered %d of %d meshlets", len(seen), len(meshlets))
	}
	for m, count := range seen {
		if count != 1 {
			t.Fatalf("meshlet %d appears %d times", m, count)
		}
	}
}

func TestIsolatedMeshletKeptAsSingleton(t *testing.T) {
	// two disconnected triangles: no shared edges, no adjacency
	vertices := []Vertex{
		{Position: [3]float32{0, 0, 0}}, {Position: [3]float32{1, 0, 0}}, {Position: [3]float32{0, 1, 0}},
		{Position: [3]float32{10, 0, 0}}, {Position: [3]float32{11, 0, 0}}, {Position: [3]float32{10, 1, 0}},
	}
	indices := []uint32{0, 1, 2, 3, 4, 5}
	meshlets := []graphics.MeshletData{
		{IndicesOffset: 0, IndicesCount: 3},
		{IndicesOffset: 3, IndicesCount: 3},
	}
	info := BuildMeshletsAdjacency(meshlets, vertices, indices)
	groups := GroupMeshlets(info)

	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if total != 2 {
		t.Fatalf("singleton meshlets dropped or duplicated: %d placed", total)
	}
}

func TestSimplifyReducesInteriorGeometry(t *testing.T) {
	vertices, indices := gridMesh(16)
	target := len(indices) / MeshletsGroupSize / 3 * 3
	simplified := Simplify(indices, vertices, target, 0.5)

	if len(simplified) >= len(indices) {
		t.Fatalf("simplification did not reduce: %d -> %d", len(indices), len(simplified))
	}
	if len(simplified)%3 != 0 {
		t.Fatalf("simplified index count %d not divisible by 3", len(simplified))
	}
	// border vertices are locked: the corner vertex 0 must survive in the stream
	corners := map[uint32]bool{0: false}
	for _, idx := range simplified {
		if _, ok := corners[idx]; ok {
			corners[idx] = true
		}
	}
	if !corners[0] {
		t.Fatalf("locked border corner collapsed away")
	}
}

func TestLodDagLinksChildren(t *testing.T) {
	vertices, indices := gridMesh(32)
	optVertices, optIndices := OptimizeMesh(vertices, indices)
	meshlets, meshletIndices := BuildMeshlets(optVertices, optIndices)
	finest := len(meshlets)
	if finest <= MeshletsGroupSize {
		t.Skipf("grid too small for a LOD chain: %d meshlets", finest)
	}

	allMeshlets, allIndices := BuildLodDag(optVertices, meshlets, meshletIndices)
	if len(allMeshlets) <= finest {
		t.Fatalf("LOD chain added no meshlets")
	}
	if len(allIndices) <= len(meshletIndices) {
		t.Fatalf("LOD chain added no indices")
	}

	linked := 0
	for i := 0; i < finest; i++ {
		for _, child := range allMeshlets[i].ChildMeshlets {
			if int(child) < finest || int(child) >= len(allMeshlets) {
				t.Fatalf("meshlet %d child %d outside the coarser levels", i, child)
			}
			linked++
		}
	}
	if linked == 0 {
		t.Fatalf("no finest-level meshlet links a coarser child")
	}

	// every meshlet must address valid indices
	for i, m := range allMeshlets {
		if int(m.IndicesOffset+m.IndicesCount) > len(allIndices) {
			t.Fatalf("meshlet %d spans past the index stream", i)
		}
	}
}

func TestPackMeshDataRoundTrips(t *testing.T) {
	vertices, indices := gridMesh(8)
	optVertices, optIndices := OptimizeMesh(vertices, indices)
	meshlets, meshletIndices := BuildMeshlets(optVertices, optIndices)

	prim := testPrimitive(vertices)
	packed := PackMeshData(prim, optVertices, meshlets, meshletIndices)
	packed.Material = "materials/default.material_data"
	packed.MeshCategoryIdentifier = 7

	blob := packed.Marshal()
	decoded, err := graphics.UnmarshalMeshData(blob)
	if err != nil {
		t.Fatalf("UnmarshalMeshData: %v", err)
	}
	if decoded.VertexLayout != packed.VertexLayout {
		t.Errorf("layout = %b, want %b", decoded.VertexLayout, packed.VertexLayout)
	}
	if len(decoded.Vertices) != len(packed.Vertices) || len(decoded.Indices) != len(packed.Indices) {
		t.Fatalf("stream lengths changed across marshal")
	}
	if len(decoded.Meshlets) != len(packed.Meshlets) {
		t.Fatalf("meshlet count changed across marshal")
	}
	if decoded.Material != packed.Material || decoded.MeshCategoryIdentifier != 7 {
		t.Errorf("metadata changed across marshal")
	}

	// blob writing is deterministic: a second marshal is byte-identical
	again := packed.Marshal()
	if len(blob) != len(again) {
		t.Fatalf("marshal length differs across calls")
	}
	for i := range blob {
		if blob[i] != again[i] {
			t.Fatalf("marshal output differs at byte %d", i)
		}
	}
}

func TestPositionPackingStaysWithinError(t *testing.T) {
	vertices, _ := gridMesh(4)
	prim := testPrimitive(vertices)

	packed := PackMeshData(prim, vertices, nil, nil)
	for i, v := range vertices {
		decoded := packed.PositionOf(i)
		for axis := 0; axis < 3; axis++ {
			extent := prim.AabbMax[axis] - prim.AabbMin[axis]
			if extent == 0 {
				continue
			}
			if diff := decoded[axis] - v.Position[axis]; diff > extent/255 || diff < -extent/255 {
				t.Fatalf("packing error %f exceeds tolerance on axis %d", diff, axis)
			}
		}
	}
}

// testPrimitive wraps raw vertices into the loader shape PackMeshData reads.
func testPrimitive(vertices []Vertex) *loader.ImportedPrimitive {
	min := vertices[0].Position
	max := vertices[0].Position
	positions := make([][3]float32, len(vertices))
	normals := make([][3]float32, len(vertices))
	for i, v := range vertices {
		positions[i] = v.Position
		normals[i] = v.Normal
		for axis := 0; axis < 3; axis++ {
			if v.Position[axis] < min[axis] {
				min[axis] = v.Position[axis]
			}
			if v.Position[axis] > max[axis] {
				max[axis] = v.Position[axis]
			}
		}
	}
	return &loader.ImportedPrimitive{
		Name:      "test",
		Positions: positions,
		Normals:   normals,
		AabbMin:   min,
		AabbMax:   max,
	}
}
