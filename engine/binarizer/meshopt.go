// package binarizer compiles glTF assets into the engine's typed binary
// blobs: geometry is deduplicated and reordered for the GPU caches, split
// into meshlets, grouped by adjacency and simplified into a LOD DAG, then
// written next to the other compiled resources. Compilation is incremental:
// a blob whose source is older than the binary is skipped.
package binarizer

import (
	"math"

	"github.com/Carmen-Shannon/onyx-go/common"
)

// Vertex is the binarizer's working vertex. Attribute presence is tracked
// per primitive in its VertexAttributeLayout, not per vertex.
type Vertex struct {
	// Position is the vertex position in mesh-local space.
	Position [3]float32

	// Color is the vertex color.
	Color [4]float32

	// Normal is the vertex normal.
	Normal [3]float32

	// Tangent is the vertex tangent, w carrying handedness.
	Tangent [4]float32

	// Uv holds up to four texture coordinate sets.
	Uv [4][2]float32
}

// GenerateVertexRemap builds a remap table collapsing vertices that are
// bit-identical, in first-seen order. The returned table maps each original
// vertex to its deduplicated slot.
//
// Parameters:
//   - vertices: the vertex stream
//
// Returns:
//   - int: the deduplicated vertex count
//   - []uint32: the remap table, one entry per original vertex
func GenerateVertexRemap(vertices []Vertex) (int, []uint32) {
	remap := make([]uint32, len(vertices))
	seen := make(map[Vertex]uint32, len(vertices))
	next := uint32(0)
	for i, v := range vertices {
		if slot, ok := seen[v]; ok {
			remap[i] = slot
			continue
		}
		seen[v] = next
		remap[i] = next
		next++
	}
	return int(next), remap
}

// RemapVertexBuffer applies a remap table to the vertex stream.
//
// Parameters:
//   - vertices: the original vertex stream
//   - vertexCount: the deduplicated vertex count
//   - remap: the table from GenerateVertexRemap
//
// Returns:
//   - []Vertex: the deduplicated vertex stream
func RemapVertexBuffer(vertices []Vertex, vertexCount int, remap []uint32) []Vertex {
	out := make([]Vertex, vertexCount)
	for i, slot := range remap {
		out[slot] = vertices[i]
	}
	return out
}

// RemapIndexBuffer applies a remap table to the index stream.
//
// Parameters:
//   - indices: the original index stream
//   - remap: the table from GenerateVertexRemap
//
// Returns:
//   - []uint32: the remapped index stream
func RemapIndexBuffer(indices, remap []uint32) []uint32 {
	out := make([]uint32, len(indices))
	for i, idx := range indices {
		out[i] = remap[idx]
	}
	return out
}

// vertex scoring constants for the cache optimizer, after Forsyth's
// linear-speed vertex cache optimization.
const (
	cacheSize           = 32
	cacheDecayPower     = 1.5
	lastTriangleScore   = 0.75
	valenceBoostScale   = 2.0
	valenceBoostPower   = 0.5
	scoreEpsilonInvalid = -1.0
)

// OptimizeVertexCache reorders triangles to maximize post-transform vertex
// cache reuse. The index count and the triangle set are preserved.
//
// Parameters:
//   - indices: the index stream; length must be a multiple of 3
//   - vertexCount: the vertex stream length
//
// Returns:
//   - []uint32: the reordered index stream
func OptimizeVertexCache(indices []uint32, vertexCount int) []uint32 {
	triangleCount := len(indices) / 3
	if triangleCount == 0 {
		return nil
	}

	// per-vertex valence and triangle adjacency
	valence := make([]int, vertexCount)
	for _, idx := range indices {
		valence[idx]++
	}
	adjacencyOffsets := make([]int, vertexCount+1)
	for i := 0; i < vertexCount; i++ {
		adjacencyOffsets[i+1] = adjacencyOffsets[i] + valence[i]
	}
	adjacency := make([]int, len(indices))
	fill := make([]int, vertexCount)
	for t := 0; t < triangleCount; t++ {
		for k := 0; k < 3; k++ {
			v := indices[t*3+k]
			adjacency[adjacencyOffsets[v]+fill[v]] = t
			fill[v]++
		}
	}

	remaining := make([]int, vertexCount)
	copy(remaining, valence)

	cachePosition := make([]int, vertexCount)
	for i := range cachePosition {
		cachePosition[i] = -1
	}

	vertexScore := func(v uint32) float32 {
		if remaining[v] == 0 {
			return scoreEpsilonInvalid
		}
		var score float32
		pos := cachePosition[v]
		switch {
		case pos < 0:
			score = 0
		case pos < 3:
			score = lastTriangleScore
		default:
			scaled := 1 - float32(pos-3)/float32(cacheSize-3)
			score = float32(math.Pow(float64(scaled), cacheDecayPower))
		}
		boost := float32(math.Pow(float64(remaining[v]), -valenceBoostPower))
		return score + valenceBoostScale*boost
	}

	triangleScore := func(t int) float32 {
		return vertexScore(indices[t*3]) + vertexScore(indices[t*3+1]) + vertexScore(indices[t*3+2])
	}

	emitted := make([]bool, triangleCount)
	cache := make([]uint32, 0, cacheSize+3)
	out := make([]uint32, 0, len(indices))

	pickBest := func() int {
		best := -1
		bestScore := float32(scoreEpsilonInvalid)
		// prefer triangles touching the cache; fall back to a full scan
		for _, v := range cache {
			for _, t := range adjacency[adjacencyOffsets[v]:adjacencyOffsets[v+1]] {
				if !emitted[t] {
					if s := triangleScore(t); s > bestScore {
						best = t
						bestScore = s
					}
				}
			}
		}
		if best >= 0 {
			return best
		}
		for t := 0; t < triangleCount; t++ {
			if !emitted[t] {
				if s := triangleScore(t); s > bestScore {
					best = t
					bestScore = s
				}
			}
		}
		return best
	}

	for len(out) < len(indices) {
		t := pickBest()
		if t < 0 {
			break
		}
		emitted[t] = true
		for k := 0; k < 3; k++ {
			v := indices[t*3+k]
			remaining[v]--
			out = append(out, v)

			// move v to the cache front
			found := -1
			for i, c := range cache {
				if c == v {
					found = i
					break
				}
			}
			if found >= 0 {
				cache = append(cache[:found], cache[found+1:]...)
			}
			cache = append([]uint32{v}, cache...)
			if len(cache) > cacheSize {
				cache = cache[:cacheSize]
			}
		}
		for i, c := range cache {
			cachePosition[c] = i
		}
	}
	return out
}

// overdrawClusterSize is the triangle run length treated as one occlusion
// cluster by the overdraw pass.
const overdrawClusterSize = 16

// OptimizeOverdraw reorders cache-optimized triangle clusters front-to-back
// by their average view-independent occluder potential. Clusters are runs of
// consecutive triangles from the cache-optimized order, so triangle order
// inside each cluster is kept. The threshold only gates the pass: at or below
// 1 the stream is returned unchanged; cache efficiency is not measured.
//
// Parameters:
//   - indices: the cache-optimized index stream
//   - vertices: the vertex stream the indices refer to
//   - threshold: the allowed cache-efficiency regression (1.05 = 5%)
//
// Returns:
//   - []uint32: the reordered index stream
func OptimizeOverdraw(indices []uint32, vertices []Vertex, threshold float32) []uint32 {
	triangleCount := len(indices) / 3
	if triangleCount <= overdrawClusterSize || threshold <= 1 {
		return indices
	}

	type cluster struct {
		first int
		count int
		key   float32
	}
	var clusters []cluster
	for first := 0; first < triangleCount; first += overdrawClusterSize {
		count := overdrawClusterSize
		if first+count > triangleCount {
			count = triangleCount - first
		}
		// occluder potential: projected area sum weighted by centroid depth
		var area float32
		var depth float32
		for t := first; t < first+count; t++ {
			a := vertices[indices[t*3]].Position
			b := vertices[indices[t*3+1]].Position
			c := vertices[indices[t*3+2]].Position
			n := common.Vec3Cross(common.Vec3Sub(b, a), common.Vec3Sub(c, a))
			area += common.Vec3Length(n) * 0.5
			depth += (a[2] + b[2] + c[2]) / 3
		}
		clusters = append(clusters, cluster{first: first, count: count, key: depth/float32(count) - area})
	}

	// stable insertion sort keeps runs deterministic across compiles
	for i := 1; i < len(clusters); i++ {
		for j := i; j > 0 && clusters[j-1].key > clusters[j].key; j-- {
			clusters[j-1], clusters[j] = clusters[j], clusters[j-1]
		}
	}

	out := make([]uint32, 0, len(indices))
	for _, c := range clusters {
		out = append(out, indices[c.first*3:(c.first+c.count)*3]...)
	}
	return out
}

// OptimizeVertexFetch reorders the vertex stream by first use in the index
// stream so fetches walk memory forward, and rewrites the indices to match.
//
// Parameters:
//   - indices: the index stream; rewritten in place
//   - vertices: the vertex stream
//
// Returns:
//   - []Vertex: the reordered vertex stream
func OptimizeVertexFetch(indices []uint32, vertices []Vertex) []Vertex {
	remap := make([]int32, len(vertices))
	for i := range remap {
		remap[i] = -1
	}
	out := make([]Vertex, 0, len(vertices))
	for i, idx := range indices {
		if remap[idx] < 0 {
			remap[idx] = int32(len(out))
			out = append(out, vertices[idx])
		}
		indices[i] = uint32(remap[idx])
	}
	return out
}

// Simplify reduces the index stream toward a target count by greedy
// cheapest-edge collapse, bounded by targetError relative to the mesh
// extent. Border edges (used by exactly one triangle) are locked so that
// meshlet group seams stay watertight across LOD levels. When no further
// collapse is possible the current stream is returned; callers detect a
// stalled LOD chain by comparing lengths.
//
// Parameters:
//   - indices: the index stream; length must be a multiple of 3
//   - vertices: the vertex stream
//   - targetIndexCount: the desired index count; clamped to a multiple of 3
//   - targetError: the allowed positional error as a fraction of the extent
//
// Returns:
//   - []uint32: the simplified index stream
func Simplify(indices []uint32, vertices []Vertex, targetIndexCount int, targetError float32) []uint32 {
	targetIndexCount = targetIndexCount / 3 * 3
	if len(indices) <= targetIndexCount || len(indices) < 12 {
		return append([]uint32(nil), indices...)
	}

	extent := meshExtent(vertices)
	maxError := targetError * extent

	// collapse target map: vertex -> vertex it merged into
	collapsed := make([]int32, len(vertices))
	for i := range collapsed {
		collapsed[i] = -1
	}
	moved := make([]float32, len(vertices))

	resolve := func(v uint32) uint32 {
		for collapsed[v] >= 0 {
			v = uint32(collapsed[v])
		}
		return v
	}

	current := append([]uint32(nil), indices...)
	for len(current) > targetIndexCount {
		locked := lockedVertices(current, len(vertices))
		normals := vertexNormals(current, vertices)

		// pick the cheapest collapsible edge; the cost is the edge length
		// scaled by local curvature, so coplanar regions collapse freely
		bestFrom, bestTo := -1, -1
		bestCost := float32(math.Inf(1))
		for t := 0; t < len(current); t += 3 {
			for k := 0; k < 3; k++ {
				a := current[t+k]
				b := current[t+(k+1)%3]
				if locked[a] {
					continue
				}
				length := common.Vec3Length(common.Vec3Sub(vertices[a].Position, vertices[b].Position))
				curvature := 1 - common.Vec3Dot(normals[a], normals[b])
				if curvature < 0 {
					curvature = 0
				}
				cost := length * curvature
				if cost < bestCost && moved[b]+cost <= maxError {
					bestCost = cost
					bestFrom = int(a)
					bestTo = int(b)
				}
			}
		}
		if bestFrom < 0 {
			break
		}
		collapsed[bestFrom] = int32(bestTo)
		moved[bestTo] += bestCost

		// rewrite indices and drop degenerate triangles
		next := current[:0]
		for t := 0; t < len(current); t += 3 {
			a := resolve(current[t])
			b := resolve(current[t+1])
			c := resolve(current[t+2])
			if a == b || b == c || c == a {
				continue
			}
			next = append(next, a, b, c)
		}
		if len(next) == len(current) {
			// the collapse removed no triangle; avoid spinning
			break
		}
		current = next
	}
	return current
}

// vertexNormals averages triangle normals per vertex over the current
// index stream, as the curvature proxy for collapse costing.
func vertexNormals(indices []uint32, vertices []Vertex) [][3]float32 {
	normals := make([][3]float32, len(vertices))
	for t := 0; t < len(indices); t += 3 {
		a := vertices[indices[t]].Position
		b := vertices[indices[t+1]].Position
		c := vertices[indices[t+2]].Position
		n := common.Vec3Cross(common.Vec3Sub(b, a), common.Vec3Sub(c, a))
		for k := 0; k < 3; k++ {
			normals[indices[t+k]] = common.Vec3Add(normals[indices[t+k]], n)
		}
	}
	for i := range normals {
		normals[i] = common.Vec3Normalize(normals[i])
	}
	return normals
}

// lockedVertices marks every vertex on a border edge (an edge used by
// exactly one triangle).
func lockedVertices(indices []uint32, vertexCount int) []bool {
	type edge struct{ a, b uint32 }
	edgeUse := make(map[edge]int)
	for t := 0; t < len(indices); t += 3 {
		for k := 0; k < 3; k++ {
			a := indices[t+k]
			b := indices[t+(k+1)%3]
			if a > b {
				a, b = b, a
			}
			edgeUse[edge{a, b}]++
		}
	}
	locked := make([]bool, vertexCount)
	for e, count := range edgeUse {
		if count == 1 {
			locked[e.a] = true
			locked[e.b] = true
		}
	}
	return locked
}

// meshExtent returns the diagonal length of the vertex AABB.
func meshExtent(vertices []Vertex) float32 {
	if len(vertices) == 0 {
		return 0
	}
	min := vertices[0].Position
	max := vertices[0].Position
	for _, v := range vertices[1:] {
		min = common.Vec3Min(min, v.Position)
		max = common.Vec3Max(max, v.Position)
	}
	return common.Vec3Length(common.Vec3Sub(max, min))
}

// OptimizeMesh runs the full optimization chain on a primitive: vertex
// remap, cache optimization, overdraw optimization at threshold 1.05, and
// vertex fetch optimization.
//
// Parameters:
//   - vertices: the raw vertex stream
//   - indices: the raw index stream
//
// Returns:
//   - []Vertex: the optimized vertex stream
//   - []uint32: the optimized index stream
func OptimizeMesh(vertices []Vertex, indices []uint32) ([]Vertex, []uint32) {
	vertexCount, remap := GenerateVertexRemap(vertices)
	newVertices := RemapVertexBuffer(vertices, vertexCount, remap)
	newIndices := RemapIndexBuffer(indices, remap)

	newIndices = OptimizeVertexCache(newIndices, vertexCount)
	newIndices = OptimizeOverdraw(newIndices, newVertices, 1.05)
	newVertices = OptimizeVertexFetch(newIndices, newVertices)
	return newVertices, newIndices
}
