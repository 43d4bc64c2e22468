package passes

import (
	"math"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/resources"
)

// DebugVertex is one vertex of the wireframe pass's pulled vertex stream.
// Size: 16 bytes (std430 aligned).
type DebugVertex struct {
	Position [3]float32 // offset  0: vertex position (12 bytes)
	Color    uint32     // offset 12: packed rgba8 color (4 bytes)
}

// DebugInstance is one wireframe shape instance.
// Size: 80 bytes (std430 aligned).
type DebugInstance struct {
	Matrix [16]float32 // offset  0: instance transform (64 bytes)
	Color  [4]float32  // offset 64: instance tint (16 bytes)
}

// circleSegments is the tessellation of circles and sphere rings.
const circleSegments = 32

// TessellateDrawEvent appends the line geometry of one immediate-mode shape
// to the vertex and index streams and returns the instance covering it.
// Index values are relative to the stream before the call; the wireframe
// pass draws each instance with its own index range.
//
// Parameters:
//   - e: the shape to tessellate
//   - vertices: the vertex stream to append to
//   - indices: the index stream to append to
//
// Returns:
//   - []DebugVertex: the grown vertex stream
//   - []uint32: the grown index stream
//   - DebugInstance: the instance record
//   - int: the number of indices appended
func TessellateDrawEvent(e resources.DrawEvent, vertices []DebugVertex, indices []uint32) ([]DebugVertex, []uint32, DebugInstance, int) {
	base := uint32(len(vertices))
	startIndexCount := len(indices)
	color := common.PackRgba8(e.Color)

	push := func(p [3]float32) uint32 {
		vertices = append(vertices, DebugVertex{Position: p, Color: color})
		return uint32(len(vertices)) - 1
	}
	line := func(a, b uint32) {
		indices = append(indices, a, b)
	}

	switch e.Type {
	case resources.DrawEventLine:
		line(push(e.Start), push(e.End))

	case resources.DrawEventBoundingBox:
		min, max := e.Start, e.End
		corners := [8][3]float32{
			{min[0], min[1], min[2]}, {max[0], min[1], min[2]},
			{max[0], max[1], min[2]}, {min[0], max[1], min[2]},
			{min[0], min[1], max[2]}, {max[0], min[1], max[2]},
			{max[0], max[1], max[2]}, {min[0], max[1], max[2]},
		}
		for _, c := range corners {
			push(c)
		}
		edges := [12][2]uint32{
			{0, 1}, {1, 2}, {2, 3}, {3, 0},
			{4, 5}, {5, 6}, {6, 7}, {7, 4},
			{0, 4}, {1, 5}, {2, 6}, {3, 7},
		}
		for _, edge := range edges {
			line(base+edge[0], base+edge[1])
		}

	case resources.DrawEventQuad:
		z := e.Start[2]
		a := push([3]float32{e.Start[0], e.Start[1], z})
		b := push([3]float32{e.End[0], e.Start[1], z})
		c := push([3]float32{e.End[0], e.End[1], z})
		d := push([3]float32{e.Start[0], e.End[1], z})
		line(a, b)
		line(b, c)
		line(c, d)
		line(d, a)

	case resources.DrawEventArrow:
		a := push(e.Start)
		b := push(e.End)
		line(a, b)
		direction := common.Vec3Normalize(common.Vec3Sub(e.End, e.Start))
		length := common.Vec3Length(common.Vec3Sub(e.End, e.Start))
		headSize := length * 0.1
		side := common.Vec3Cross(direction, [3]float32{0, 1, 0})
		if common.Vec3Length(side) < 1e-4 {
			side = common.Vec3Cross(direction, [3]float32{1, 0, 0})
		}
		side = common.Vec3Normalize(side)
		back := common.Vec3Sub(e.End, common.Vec3Scale(direction, headSize))
		left := push(common.Vec3Add(back, common.Vec3Scale(side, headSize*0.5)))
		right := push(common.Vec3Sub(back, common.Vec3Scale(side, headSize*0.5)))
		line(b, left)
		line(b, right)

	case resources.DrawEventSphere:
		// three orthogonal rings
		for axis := 0; axis < 3; axis++ {
			ringBase := uint32(len(vertices))
			for i := 0; i < circleSegments; i++ {
				angle := float64(i) / circleSegments * 2 * math.Pi
				sin, cos := float32(math.Sin(angle)), float32(math.Cos(angle))
				var p [3]float32
				switch axis {
				case 0:
					p = [3]float32{0, cos, sin}
				case 1:
					p = [3]float32{cos, 0, sin}
				default:
					p = [3]float32{cos, sin, 0}
				}
				push(common.Vec3Add(e.Start, common.Vec3Scale(p, e.Radius)))
			}
			for i := 0; i < circleSegments; i++ {
				line(ringBase+uint32(i), ringBase+uint32((i+1)%circleSegments))
			}
		}

	case resources.DrawEventCircle:
		ringBase := uint32(len(vertices))
		for i := 0; i < circleSegments; i++ {
			angle := float64(i) / circleSegments * 2 * math.Pi
			p := [3]float32{
				float32(math.Cos(angle)) * e.Radius,
				float32(math.Sin(angle)) * e.Radius,
				0,
			}
			push(common.Vec3Add(e.Start, p))
		}
		for i := 0; i < circleSegments; i++ {
			line(ringBase+uint32(i), ringBase+uint32((i+1)%circleSegments))
		}
	}

	instance := DebugInstance{Color: [4]float32{1, 1, 1, 1}}
	instance.Matrix[0], instance.Matrix[5], instance.Matrix[10], instance.Matrix[15] = 1, 1, 1, 1
	return vertices, indices, instance, len(indices) - startIndexCount
}
