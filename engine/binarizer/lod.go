package binarizer

import (
	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
)

// localVertex pairs a group-local vertex with the mesh-global index it came
// from, deduplicating by position so group seams weld before simplification.
type localVertex struct {
	vertex      Vertex
	globalIndex uint32
}

// ComputeClusters simplifies each meshlet group into a coarser cluster:
// the group's triangles are concatenated and reoptimized, simplified to
// 1/MeshletsGroupSize of their index count at target error 0.01 with locked
// borders, and rebuilt into meshlets. Every source meshlet of a group links
// the new meshlets as its children. A group whose simplification fails to
// drop at least one triangle terminates its chain and emits nothing.
//
// Parameters:
//   - groups: the meshlet groups from GroupMeshlets
//   - levelMeshlets: the meshlets of the current LOD level; child links are
//     written into it
//   - meshIndicesOffset: the length of the mesh index stream so far; new
//     meshlet IndicesOffsets start there
//   - baseMeshletIndex: the global index the first new meshlet will get
//   - vertices: the mesh vertex stream
//   - indices: the mesh index stream the level meshlets address
//
// Returns:
//   - []uint32: the new indices to append to the mesh index stream
//   - []graphics.MeshletData: the new coarser meshlets
func ComputeClusters(
	groups [][]uint32,
	levelMeshlets []graphics.MeshletData,
	meshIndicesOffset int,
	baseMeshletIndex int,
	vertices []Vertex,
	indices []uint32,
) ([]uint32, []graphics.MeshletData) {
	indicesOffset := meshIndicesOffset
	var clusterIndices []uint32
	var clusterMeshlets []graphics.MeshletData

	for _, meshletIndices := range groups {
		var groupLocals []localVertex
		var groupIndices []uint32

		for _, meshletIndex := range meshletIndices {
			meshlet := &levelMeshlets[meshletIndex]
			for i := uint32(0); i < meshlet.IndicesCount; i++ {
				globalIndex := indices[meshlet.IndicesOffset+i]
				local := -1
				for j := range groupLocals {
					if groupLocals[j].globalIndex == globalIndex ||
						groupLocals[j].vertex.Position == vertices[globalIndex].Position {
						local = j
						break
					}
				}
				if local < 0 {
					groupLocals = append(groupLocals, localVertex{
						vertex:      vertices[globalIndex],
						globalIndex: globalIndex,
					})
					local = len(groupLocals) - 1
				}
				groupIndices = append(groupIndices, uint32(local))
			}
		}

		groupVertices := make([]Vertex, len(groupLocals))
		for i := range groupLocals {
			groupVertices[i] = groupLocals[i].vertex
		}

		// reoptimize the concatenated group before simplifying; the fetch
		// remap must be mirrored onto the global-index table
		vertexCount, remap := GenerateVertexRemap(groupVertices)
		remappedVertices := RemapVertexBuffer(groupVertices, vertexCount, remap)
		remappedLocals := make([]localVertex, vertexCount)
		for i, slot := range remap {
			remappedLocals[slot] = groupLocals[i]
		}
		remappedIndices := RemapIndexBuffer(groupIndices, remap)
		optimizedIndices := OptimizeVertexCache(remappedIndices, vertexCount)

		targetCount := len(optimizedIndices) / MeshletsGroupSize / 3 * 3
		simplified := Simplify(optimizedIndices, remappedVertices, targetCount, 0.01)
		if len(simplified) >= len(optimizedIndices) {
			// no reduction; the chain ends here for this group
			continue
		}

		newMeshlets, meshletIndicesStream := BuildMeshlets(remappedVertices, simplified)
		if len(newMeshlets) == 0 {
			continue
		}

		globalStream := make([]uint32, len(meshletIndicesStream))
		for i, local := range meshletIndicesStream {
			globalStream[i] = remappedLocals[local].globalIndex
		}
		for i := range newMeshlets {
			newMeshlets[i].IndicesOffset += uint32(indicesOffset)
		}
		indicesOffset += len(globalStream)

		firstChild := uint32(baseMeshletIndex + len(clusterMeshlets))
		for _, meshletIndex := range meshletIndices {
			meshlet := &levelMeshlets[meshletIndex]
			for i := range newMeshlets {
				meshlet.ChildMeshlets = append(meshlet.ChildMeshlets, firstChild+uint32(i))
			}
		}
		clusterIndices = append(clusterIndices, globalStream...)
		clusterMeshlets = append(clusterMeshlets, newMeshlets...)
	}
	return clusterIndices, clusterMeshlets
}

// BuildLodDag runs the full LOD chain over a primitive: starting from the
// finest meshlets, it groups, simplifies and rebuilds until a level holds at
// most MeshletsGroupSize meshlets or a step stops reducing. The returned
// meshlet list holds every level, finest first, with child links pointing
// at the coarser levels; the index stream accumulates every level's
// triangles.
//
// Parameters:
//   - vertices: the optimized vertex stream
//   - meshlets: the finest-level meshlets
//   - indices: the meshlet-ordered index stream of the finest level
//
// Returns:
//   - []graphics.MeshletData: every LOD level's meshlets
//   - []uint32: the accumulated index stream
func BuildLodDag(vertices []Vertex, meshlets []graphics.MeshletData, indices []uint32) ([]graphics.MeshletData, []uint32) {
	allMeshlets := meshlets
	allIndices := indices
	levelStart := 0

	for len(allMeshlets)-levelStart > MeshletsGroupSize {
		level := allMeshlets[levelStart:]
		info := BuildMeshletsAdjacency(level, vertices, allIndices)
		groups := GroupMeshlets(info)

		newIndices, newMeshlets := ComputeClusters(
			groups, level, len(allIndices), len(allMeshlets), vertices, allIndices)
		if len(newMeshlets) == 0 {
			break
		}
		reduced := len(newMeshlets) < len(level)
		levelStart = len(allMeshlets)
		allMeshlets = append(allMeshlets, newMeshlets...)
		allIndices = append(allIndices, newIndices...)
		if !reduced {
			// the level stopped shrinking; child links stay valid but the
			// chain ends to avoid spinning on an irreducible mesh
			break
		}
	}
	return allMeshlets, allIndices
}
