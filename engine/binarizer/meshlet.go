package binarizer

import (
	"math"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
)

const (
	// MaxMeshletVertices is the unique-vertex capacity of one meshlet.
	MaxMeshletVertices = 64

	// MaxMeshletTriangles is the triangle capacity of one meshlet.
	MaxMeshletTriangles = 124

	// ConeWeight balances spatial against normal coherence when scoring
	// triangles for meshlet admission.
	ConeWeight = 0.7

	// MeshletsGroupSize is the meshlet count targeted per LOD group.
	MeshletsGroupSize = 4

	// HalfMeshletsGroupSize bounds how many meshlets stealing may pull from
	// over-full groups.
	HalfMeshletsGroupSize = MeshletsGroupSize / 2
)

// BuildMeshlets partitions a triangle stream into meshlets of at most
// MaxMeshletVertices unique vertices and MaxMeshletTriangles triangles.
// Triangles are consumed in stream order, which the cache optimizer has
// already made spatially coherent; a triangle whose normal fights the
// meshlet's accumulated cone is deferred to the next meshlet when the
// cone-weighted score says so. The returned index stream is the input
// reordered so each meshlet is one contiguous run, with IndicesOffset
// addressing into it.
//
// Parameters:
//   - vertices: the vertex stream
//   - indices: the optimized index stream; length must be a multiple of 3
//
// Returns:
//   - []graphics.MeshletData: the meshlets, with bounds and cones filled
//   - []uint32: the index stream reordered meshlet by meshlet
func BuildMeshlets(vertices []Vertex, indices []uint32) ([]graphics.MeshletData, []uint32) {
	triangleCount := len(indices) / 3
	if triangleCount == 0 {
		return nil, nil
	}

	var meshlets []graphics.MeshletData
	outIndices := make([]uint32, 0, len(indices))

	used := make(map[uint32]struct{}, MaxMeshletVertices)
	var meshletTriangles [][3]uint32
	var coneAccum [3]float32

	flush := func() {
		if len(meshletTriangles) == 0 {
			return
		}
		meshlet := graphics.MeshletData{
			IndicesOffset: uint32(len(outIndices)),
			IndicesCount:  uint32(len(meshletTriangles) * 3),
		}
		for _, tri := range meshletTriangles {
			outIndices = append(outIndices, tri[0], tri[1], tri[2])
		}
		fillMeshletBounds(&meshlet, vertices, meshletTriangles)
		meshlets = append(meshlets, meshlet)

		used = make(map[uint32]struct{}, MaxMeshletVertices)
		meshletTriangles = meshletTriangles[:0]
		coneAccum = [3]float32{}
	}

	for t := 0; t < triangleCount; t++ {
		tri := [3]uint32{indices[t*3], indices[t*3+1], indices[t*3+2]}
		newVertices := 0
		for _, v := range tri {
			if _, ok := used[v]; !ok {
				newVertices++
			}
		}
		if len(used)+newVertices > MaxMeshletVertices || len(meshletTriangles)+1 > MaxMeshletTriangles {
			flush()
		} else if len(meshletTriangles) > 0 {
			// cone-weighted admission: a triangle facing away from the
			// accumulated cone axis costs more than the vertices it reuses save
			n := triangleNormal(vertices, tri)
			axis := common.Vec3Normalize(coneAccum)
			alignment := common.Vec3Dot(axis, n)
			reuse := float32(3-newVertices) / 3
			if ConeWeight*alignment+(1-ConeWeight)*reuse < -0.5 {
				flush()
			}
		}
		for _, v := range tri {
			used[v] = struct{}{}
		}
		meshletTriangles = append(meshletTriangles, tri)
		coneAccum = common.Vec3Add(coneAccum, triangleNormal(vertices, tri))
	}
	flush()
	return meshlets, outIndices
}

// triangleNormal returns the unit normal of a triangle, or zero for
// degenerate input.
func triangleNormal(vertices []Vertex, tri [3]uint32) [3]float32 {
	a := vertices[tri[0]].Position
	b := vertices[tri[1]].Position
	c := vertices[tri[2]].Position
	return common.Vec3Normalize(common.Vec3Cross(common.Vec3Sub(b, a), common.Vec3Sub(c, a)))
}

// fillMeshletBounds computes the AABB, bounding sphere and backface cone of
// a meshlet from its triangles.
func fillMeshletBounds(meshlet *graphics.MeshletData, vertices []Vertex, triangles [][3]uint32) {
	min := [3]float32{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
	max := [3]float32{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))}
	seen := make(map[uint32]struct{})
	for _, tri := range triangles {
		for _, v := range tri {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			min = common.Vec3Min(min, vertices[v].Position)
			max = common.Vec3Max(max, vertices[v].Position)
		}
	}
	meshlet.AabbMin = min
	meshlet.AabbMax = max

	center := common.Vec3Scale(common.Vec3Add(min, max), 0.5)
	radius := float32(0)
	for v := range seen {
		if d := common.Vec3Length(common.Vec3Sub(vertices[v].Position, center)); d > radius {
			radius = d
		}
	}
	meshlet.Center = center
	meshlet.Radius = radius

	var axis [3]float32
	for _, tri := range triangles {
		axis = common.Vec3Add(axis, triangleNormal(vertices, tri))
	}
	axis = common.Vec3Normalize(axis)
	cutoff := float32(1)
	for _, tri := range triangles {
		if d := common.Vec3Dot(axis, triangleNormal(vertices, tri)); d < cutoff {
			cutoff = d
		}
	}
	meshlet.ConeAxis = axis
	meshlet.ConeCutoff = cutoff
}
