package binarizer

import (
	"log"
	"sort"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
)

// edgeKey identifies an undirected edge by the position hashes of its
// endpoints, so physically coincident vertices with different indices still
// produce the same edge.
type edgeKey struct {
	v1, v2 uint32
}

func makeEdgeKey(h1, h2 uint32) edgeKey {
	if h1 > h2 {
		h1, h2 = h2, h1
	}
	return edgeKey{v1: h1, v2: h2}
}

// MeshletAdjacency is the per-meshlet border topology used by grouping.
type MeshletAdjacency struct {
	// MeshletIndex is the meshlet this record describes.
	MeshletIndex uint32

	// BorderEdges holds the edges hit exactly once inside the meshlet.
	BorderEdges []edgeKey

	// AdjacentMeshlets pairs each neighboring meshlet with the number of
	// shared edges, sorted by weight descending.
	AdjacentMeshlets []AdjacentMeshlet
}

// AdjacentMeshlet is one weighted adjacency edge of the meshlet graph.
type AdjacentMeshlet struct {
	// MeshletIndex is the neighboring meshlet.
	MeshletIndex uint32

	// SharedEdges is the number of edges the two meshlets share.
	SharedEdges int
}

// BuildMeshletsAdjacency hashes every triangle edge across a primitive's
// meshlets. Edges hit exactly once inside a meshlet are its borders; edges
// seen by two meshlets contribute to their adjacency weight. Mirrored
// adjacency weights are verified and logged with both indices when they
// disagree, without aborting.
//
// Parameters:
//   - meshlets: the primitive's meshlets
//   - vertices: the vertex stream
//   - indices: the meshlet-ordered index stream
//
// Returns:
//   - []MeshletAdjacency: one record per meshlet, neighbors sorted by weight
func BuildMeshletsAdjacency(meshlets []graphics.MeshletData, vertices []Vertex, indices []uint32) []MeshletAdjacency {
	info := make([]MeshletAdjacency, 0, len(meshlets))
	edgeMeshlets := make(map[edgeKey][]int)

	for meshletIndex, meshlet := range meshlets {
		triangleCount := meshlet.IndicesCount / 3
		edgeHits := make(map[edgeKey]int)
		for t := uint32(0); t < triangleCount; t++ {
			base := meshlet.IndicesOffset + t*3
			h1 := common.HashPosition(vertices[indices[base]].Position)
			h2 := common.HashPosition(vertices[indices[base+1]].Position)
			h3 := common.HashPosition(vertices[indices[base+2]].Position)
			for _, e := range [3]edgeKey{makeEdgeKey(h1, h2), makeEdgeKey(h2, h3), makeEdgeKey(h3, h1)} {
				edgeHits[e]++
				list := edgeMeshlets[e]
				if len(list) == 0 || list[len(list)-1] != meshletIndex {
					if !containsInt(list, meshletIndex) {
						edgeMeshlets[e] = append(list, meshletIndex)
					}
				}
			}
		}
		record := MeshletAdjacency{MeshletIndex: uint32(meshletIndex)}
		for e, hits := range edgeHits {
			if hits == 1 {
				record.BorderEdges = append(record.BorderEdges, e)
			}
		}
		sort.Slice(record.BorderEdges, func(i, j int) bool {
			a, b := record.BorderEdges[i], record.BorderEdges[j]
			if a.v1 != b.v1 {
				return a.v1 < b.v1
			}
			return a.v2 < b.v2
		})
		info = append(info, record)
	}

	for _, meshletIndices := range edgeMeshlets {
		if len(meshletIndices) < 2 {
			continue
		}
		for _, i := range meshletIndices {
			for _, j := range meshletIndices {
				if i == j {
					continue
				}
				addAdjacency(&info[i], uint32(j))
			}
		}
	}

	for i := range info {
		if len(meshlets) > 1 && len(info[i].AdjacentMeshlets) == 0 {
			log.Printf("[Binarizer] meshlet %d has no adjacency", info[i].MeshletIndex)
		}
		// weight descending; lower meshlet index wins ties for stability
		sort.SliceStable(info[i].AdjacentMeshlets, func(a, b int) bool {
			am, bm := info[i].AdjacentMeshlets[a], info[i].AdjacentMeshlets[b]
			if am.SharedEdges != bm.SharedEdges {
				return am.SharedEdges > bm.SharedEdges
			}
			return am.MeshletIndex < bm.MeshletIndex
		})
	}

	// adjacency symmetry check: (i, j, n) must mirror as (j, i, n)
	for i := range info {
		for _, adj := range info[i].AdjacentMeshlets {
			other := &info[adj.MeshletIndex]
			mirrored := 0
			for _, back := range other.AdjacentMeshlets {
				if back.MeshletIndex == info[i].MeshletIndex {
					mirrored = back.SharedEdges
					break
				}
			}
			if mirrored != adj.SharedEdges {
				log.Printf("[Binarizer] meshlet %d-%d is %d while meshlet %d-%d is %d",
					info[i].MeshletIndex, adj.MeshletIndex, adj.SharedEdges,
					adj.MeshletIndex, info[i].MeshletIndex, mirrored)
			}
		}
	}
	return info
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func addAdjacency(record *MeshletAdjacency, neighbor uint32) {
	for i := range record.AdjacentMeshlets {
		if record.AdjacentMeshlets[i].MeshletIndex == neighbor {
			record.AdjacentMeshlets[i].SharedEdges++
			return
		}
	}
	record.AdjacentMeshlets = append(record.AdjacentMeshlets, AdjacentMeshlet{MeshletIndex: neighbor, SharedEdges: 1})
}

// GroupMeshlets partitions meshlets into groups of MeshletsGroupSize by
// greedy maximum-adjacency selection. A group stuck at one meshlet while
// plenty remain steals up to HalfMeshletsGroupSize members from over-full
// groups already formed; a singleton whose source adjacency is empty is
// logged and kept as its own group, never duplicated or dropped.
//
// Parameters:
//   - meshletsInfo: the adjacency records from BuildMeshletsAdjacency
//
// Returns:
//   - [][]uint32: the groups, each listing its meshlet indices
func GroupMeshlets(meshletsInfo []MeshletAdjacency) [][]uint32 {
	available := make([]MeshletAdjacency, len(meshletsInfo))
	for i, m := range meshletsInfo {
		available[i] = cloneAdjacency(m)
	}

	var groups [][]MeshletAdjacency
	for len(available) > 0 {
		group := []MeshletAdjacency{available[0]}
		available = available[1:]

		for len(group) < MeshletsGroupSize {
			// highest adjacency weight across the group; ties resolve to the
			// lower meshlet index through the pre-sorted neighbor lists
			bestWeight := -1
			bestMember, bestNeighbor := -1, -1
			for memberIndex := range group {
				for neighborIndex, adj := range group[memberIndex].AdjacentMeshlets {
					if adj.SharedEdges > bestWeight {
						bestWeight = adj.SharedEdges
						bestMember = memberIndex
						bestNeighbor = neighborIndex
					}
				}
			}
			if bestWeight < 0 {
				break
			}
			neighbor := group[bestMember].AdjacentMeshlets[bestNeighbor].MeshletIndex
			group[bestMember].AdjacentMeshlets = removeAdjacencyAt(group[bestMember].AdjacentMeshlets, bestNeighbor)

			found := -1
			for i := range available {
				if available[i].MeshletIndex == neighbor {
					found = i
					break
				}
			}
			if found < 0 {
				continue
			}
			member := available[found]
			available = append(available[:found], available[found+1:]...)
			for i := range member.AdjacentMeshlets {
				if member.AdjacentMeshlets[i].MeshletIndex == group[bestMember].MeshletIndex {
					member.AdjacentMeshlets = removeAdjacencyAt(member.AdjacentMeshlets, i)
					break
				}
			}
			group = append(group, member)
		}

		retry := len(group) == 1 && len(available) > MeshletsGroupSize
		allIsolated := true
		for _, m := range group {
			if len(meshletsInfo[m.MeshletIndex].AdjacentMeshlets) != 0 {
				allIsolated = false
				break
			}
		}
		if allIsolated {
			retry = false
			if len(meshletsInfo) > 1 {
				log.Printf("[Binarizer] meshlet %d grouped alone: no adjacency", group[0].MeshletIndex)
			}
		}

		if !retry || len(available) == 0 {
			groups = append(groups, group)
			continue
		}

		// steal from over-full groups already formed, walking the singleton's
		// original neighbors from the weakest link backwards
		original := meshletsInfo[group[0].MeshletIndex]
		var stolen []MeshletAdjacency
		for a := len(original.AdjacentMeshlets) - 1; a >= 0 && len(stolen) < HalfMeshletsGroupSize; a-- {
			want := original.AdjacentMeshlets[a].MeshletIndex
			for j := len(groups) - 1; j >= 0; j-- {
				if len(groups[j]) <= HalfMeshletsGroupSize {
					continue
				}
				for i := range groups[j] {
					if groups[j][i].MeshletIndex == want {
						stolen = append(stolen, groups[j][i])
						groups[j] = append(groups[j][:i], groups[j][i+1:]...)
						break
					}
				}
				if len(stolen) > 0 && stolen[len(stolen)-1].MeshletIndex == want {
					break
				}
			}
		}
		group = append(group, stolen...)
		groups = append(groups, group)
	}

	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if total != len(meshletsInfo) {
		log.Printf("[Binarizer] grouping placed %d of %d meshlets across %d groups",
			total, len(meshletsInfo), len(groups))
	}

	out := make([][]uint32, 0, len(groups))
	for _, g := range groups {
		indices := make([]uint32, 0, len(g))
		for _, m := range g {
			indices = append(indices, m.MeshletIndex)
		}
		out = append(out, indices)
	}
	return out
}

func cloneAdjacency(m MeshletAdjacency) MeshletAdjacency {
	return MeshletAdjacency{
		MeshletIndex:     m.MeshletIndex,
		BorderEdges:      append([]edgeKey(nil), m.BorderEdges...),
		AdjacentMeshlets: append([]AdjacentMeshlet(nil), m.AdjacentMeshlets...),
	}
}

func removeAdjacencyAt(list []AdjacentMeshlet, i int) []AdjacentMeshlet {
	return append(list[:i], list[i+1:]...)
}
