package passes

import (
	"testing"

	"github.com/Carmen-Shannon/onyx-go/common"
	"github.com/Carmen-Shannon/onyx-go/engine/graphics"
	"github.com/Carmen-Shannon/onyx-go/engine/resources"
	"github.com/Carmen-Shannon/onyx-go/engine/texture"
)

// newTestContext builds a Context with no GPU device behind it; guard tests
// must no-op before ever touching the encoder.
func newTestContext() *Context {
	buffers := graphics.NewGlobalBuffers(false)
	return NewContext(nil, buffers, texture.NewAtlasManager(), resources.NewDrawEventBus())
}

// addTestMesh inserts a single-meshlet mesh directly into the buffer store.
func addTestMesh(buffers *graphics.GlobalBuffers, flags graphics.MeshFlags) common.Uid {
	id := common.NewUid()
	buffers.Indices.Allocate(id, []uint32{0, 1, 2})
	_, meshletRange := buffers.Meshlets.Allocate(id, []graphics.DrawMeshlet{{IndicesCount: 3}})
	index := buffers.Meshes.Insert(id, graphics.DrawMesh{
		Flags:         uint32(flags),
		MeshletOffset: uint32(meshletRange.Start),
		MeshletCount:  1,
		MaterialIndex: graphics.InvalidIndex,
	})
	meshlets := buffers.Meshlets.Get(id)
	meshlets[0].MeshIndex = uint32(index)
	return id
}

func TestGraphOrderIsFixed(t *testing.T) {
	g := NewGraph()
	want := []string{
		CullingPassName, VisibilityPassName, ComputeInstancesPassName,
		PathTraceDirectPassName, PathTraceShadePassName, ComputePBRPassName,
		WireframePassName, DebugPassName, UIPassName,
	}
	passes := g.Passes()
	if len(passes) != len(want) {
		t.Fatalf("graph holds %d passes, want %d", len(passes), len(want))
	}
	for i, p := range passes {
		if p.Name() != want[i] {
			t.Fatalf("pass %d = %s, want %s", i, p.Name(), want[i])
		}
	}
}

func TestCullingGuardsEmptyMeshlets(t *testing.T) {
	ctx := newTestContext()
	p := NewCullingPass()
	if p.IsActive(ctx) {
		t.Fatalf("culling active with no meshlets")
	}
	// a guarded update must not touch the nil encoder
	if err := p.Update(ctx, nil, nil); err != nil {
		t.Fatalf("guarded update errored: %v", err)
	}
}

func TestVisibilityGuardsEmptyCommands(t *testing.T) {
	ctx := newTestContext()
	addTestMesh(ctx.Buffers, graphics.MeshFlagsVisible|graphics.MeshFlagsOpaque)
	p := NewVisibilityPass()
	if !p.IsActive(ctx) {
		t.Fatalf("visibility inactive with meshlets present")
	}
	// command list never built: update must no-op on the nil encoder
	if err := p.Update(ctx, nil, nil); err != nil {
		t.Fatalf("guarded update errored: %v", err)
	}
}

func TestPathTraceGuardsMissingBuffers(t *testing.T) {
	ctx := newTestContext()
	addTestMesh(ctx.Buffers, graphics.MeshFlagsVisible|graphics.MeshFlagsOpaque)
	ctx.Width, ctx.Height = 640, 480

	direct := NewPathTraceDirectPass()
	if !direct.IsActive(ctx) {
		t.Fatalf("direct pass inactive with meshlets and dimensions set")
	}
	if err := direct.Update(ctx, nil, nil); err != nil {
		t.Fatalf("guarded direct update errored: %v", err)
	}
	shade := NewPathTraceShadePass()
	if err := shade.Update(ctx, nil, nil); err != nil {
		t.Fatalf("guarded shade update errored: %v", err)
	}
}

func TestBuildInstancesMatchesCommandLength(t *testing.T) {
	ctx := newTestContext()
	flags := graphics.MeshFlagsVisible | graphics.MeshFlagsOpaque
	addTestMesh(ctx.Buffers, flags)
	addTestMesh(ctx.Buffers, flags)
	addTestMesh(ctx.Buffers, graphics.MeshFlagsUI) // filtered out

	num := BuildInstances(ctx.Buffers, graphics.MeshFlagsVisible, nil)
	if num != 2 {
		t.Fatalf("instance count = %d, want 2", num)
	}
	commands := ctx.Buffers.CommandsFor(graphics.MeshFlagsVisible, graphics.DrawCommandPerMeshlet)
	if len(commands.Commands) != len(ctx.Buffers.Instances) {
		t.Fatalf("post-pass invariant broken: %d commands, %d instances",
			len(commands.Commands), len(ctx.Buffers.Instances))
	}
}

func TestComputeInstancesGuardsEmptyMeshes(t *testing.T) {
	ctx := newTestContext()
	p := NewComputeInstancesPass()
	if p.IsActive(ctx) {
		t.Fatalf("compute instances active with no meshes")
	}
	if err := p.Update(ctx, nil, nil); err != nil {
		t.Fatalf("guarded update errored: %v", err)
	}
}

func TestComputePBRDispatchShape(t *testing.T) {
	p := NewComputePBRPass().(*computePBRPass)
	x, y := p.DispatchSize(1920, 1080)
	// 32 * ceil(1920/32) / 32 = 60; 32 * ceil(1080/32) / 16 = 68
	if x != 60 || y != 68 {
		t.Fatalf("dispatch = (%d, %d), want (60, 68)", x, y)
	}
	x, y = p.DispatchSize(8, 8)
	if x == 0 || y == 0 {
		t.Fatalf("tiny surface dispatch collapsed to zero")
	}
}

func TestWireframeFrameLifecycle(t *testing.T) {
	ctx := newTestContext()
	p := NewWireframePass().(*wireframePass)

	ctx.DrawEvents.Submit(resources.DrawEvent{
		Type:  resources.DrawEventLine,
		Start: [3]float32{0, 0, 0},
		End:   [3]float32{1, 1, 1},
		Color: [4]float32{1, 1, 1, 1},
	})
	ctx.DrawEvents.Submit(resources.DrawEvent{
		Type:   resources.DrawEventSphere,
		Start:  [3]float32{0, 0, 0},
		Radius: 1,
		Color:  [4]float32{1, 0, 0, 1},
	})

	count := p.BuildFrame(ctx.DrawEvents.DrainFrame())
	if count != 2 {
		t.Fatalf("instance count = %d, want 2", count)
	}
	if len(p.vertices) == 0 || len(p.indices) == 0 {
		t.Fatalf("vertex/index buffers empty after tessellation")
	}

	// next frame starts with zero instances
	if next := p.BuildFrame(ctx.DrawEvents.DrainFrame()); next != 0 {
		t.Fatalf("next frame instance count = %d, want 0", next)
	}
	if p.InstanceCount() != 0 {
		t.Fatalf("instances persisted across frames")
	}
}

func TestDebugPassInactiveOnZeroMask(t *testing.T) {
	ctx := newTestContext()
	p := NewDebugPass()
	if p.IsActive(ctx) {
		t.Fatalf("debug pass active with zero mask")
	}
	ctx.DebugFlags = DebugFlagRadiance
	if !p.IsActive(ctx) {
		t.Fatalf("debug pass inactive with mask set")
	}
	// guarded update: targets are nil without a device
	if err := p.Update(ctx, nil, nil); err != nil {
		t.Fatalf("guarded update errored: %v", err)
	}
}

func TestUIPassInactiveWithoutUIMeshes(t *testing.T) {
	ctx := newTestContext()
	addTestMesh(ctx.Buffers, graphics.MeshFlagsVisible|graphics.MeshFlagsOpaque)
	p := NewUIPass()
	if p.IsActive(ctx) {
		t.Fatalf("ui pass active without UI meshes")
	}
	addTestMesh(ctx.Buffers, graphics.MeshFlagsVisible|graphics.MeshFlagsUI)
	if !p.IsActive(ctx) {
		t.Fatalf("ui pass inactive with a UI mesh present")
	}
	if err := p.Update(ctx, nil, nil); err != nil {
		t.Fatalf("guarded update errored: %v", err)
	}
}

func TestTessellationShapes(t *testing.T) {
	cases := []struct {
		event     resources.DrawEvent
		wantLines int
	}{
		{resources.DrawEvent{Type: resources.DrawEventLine}, 1},
		{resources.DrawEvent{Type: resources.DrawEventBoundingBox, End: [3]float32{1, 1, 1}}, 12},
		{resources.DrawEvent{Type: resources.DrawEventQuad, End: [3]float32{1, 1, 0}}, 4},
		{resources.DrawEvent{Type: resources.DrawEventArrow, End: [3]float32{0, 0, 1}}, 3},
		{resources.DrawEvent{Type: resources.DrawEventCircle, Radius: 1}, circleSegments},
		{resources.DrawEvent{Type: resources.DrawEventSphere, Radius: 1}, 3 * circleSegments},
	}
	for _, c := range cases {
		_, indices, _, count := TessellateDrawEvent(c.event, nil, nil)
		if count != c.wantLines*2 {
			t.Errorf("shape %d appended %d indices, want %d", c.event.Type, count, c.wantLines*2)
		}
		if len(indices)%2 != 0 {
			t.Errorf("shape %d produced an odd index count", c.event.Type)
		}
	}
}
