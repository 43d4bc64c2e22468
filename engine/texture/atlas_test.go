package texture

import (
	"testing"

	"github.com/Carmen-Shannon/onyx-go/common"
)

func stagingData(w, h uint32) *common.TextureStagingData {
	return &common.TextureStagingData{Width: w, Height: h}
}

func TestAllocateAssignsStableLayer(t *testing.T) {
	m := NewAtlasManager()
	id := common.NewUid()

	info, err := m.Allocate(id, AtlasFormatColor, stagingData(256, 256))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if info.TextureIndex != 0 || info.LayerIndex != 0 {
		t.Fatalf("placement = (%d, %d), want (0, 0)", info.TextureIndex, info.LayerIndex)
	}

	// re-allocation of a live id keeps its placement
	again, err := m.Allocate(id, AtlasFormatColor, stagingData(256, 256))
	if err != nil {
		t.Fatalf("second Allocate: %v", err)
	}
	if again != info {
		t.Fatalf("placement changed across allocations: %+v vs %+v", info, again)
	}
}

func TestLayersAssignedInOrderAndReleased(t *testing.T) {
	m := NewAtlasManager()
	ids := make([]common.Uid, 3)
	for i := range ids {
		ids[i] = common.NewUid()
		info, err := m.Allocate(ids[i], AtlasFormatColor, stagingData(128, 128))
		if err != nil {
			t.Fatalf("Allocate %d: %v", i, err)
		}
		if info.LayerIndex != uint32(i) {
			t.Fatalf("layer %d assigned %d", i, info.LayerIndex)
		}
	}

	if !m.Free(ids[1]) {
		t.Fatalf("Free of live id returned false")
	}
	if _, ok := m.Info(ids[1]); ok {
		t.Fatalf("freed id still resolves")
	}
	// the freed layer is the first free layer again
	next := common.NewUid()
	info, err := m.Allocate(next, AtlasFormatColor, stagingData(128, 128))
	if err != nil {
		t.Fatalf("Allocate after free: %v", err)
	}
	if info.LayerIndex != 1 {
		t.Fatalf("freed layer not reused: got %d, want 1", info.LayerIndex)
	}
	// other placements were untouched
	if got, _ := m.Info(ids[2]); got.LayerIndex != 2 {
		t.Fatalf("unrelated placement moved to layer %d", got.LayerIndex)
	}
}

func TestFormatsKeepSeparateAtlases(t *testing.T) {
	m := NewAtlasManager()
	colorId := common.NewUid()
	depthId := common.NewUid()

	colorInfo, err := m.Allocate(colorId, AtlasFormatColor, stagingData(64, 64))
	if err != nil {
		t.Fatalf("color Allocate: %v", err)
	}
	depthInfo, err := m.Allocate(depthId, AtlasFormatDepth, stagingData(64, 64))
	if err != nil {
		t.Fatalf("depth Allocate: %v", err)
	}
	if colorInfo.TextureIndex == depthInfo.TextureIndex {
		t.Fatalf("color and depth textures share atlas %d", colorInfo.TextureIndex)
	}
}

func TestAtlasCapacityRejectsWithoutOverwrite(t *testing.T) {
	m := NewAtlasManager()
	total := MaxTextureAtlasCount * AtlasLayerCount
	ids := make([]common.Uid, total)
	for i := 0; i < total; i++ {
		ids[i] = common.NewUid()
		if _, err := m.Allocate(ids[i], AtlasFormatColor, stagingData(32, 32)); err != nil {
			t.Fatalf("Allocate %d/%d failed early: %v", i, total, err)
		}
	}

	overflow := common.NewUid()
	if _, err := m.Allocate(overflow, AtlasFormatColor, stagingData(32, 32)); err == nil {
		t.Fatalf("allocation past capacity succeeded")
	}
	// existing placements survive the rejection
	for i, id := range ids {
		if _, ok := m.Info(id); !ok {
			t.Fatalf("placement %d lost after capacity rejection", i)
		}
	}
}

func TestFreeUnknownIdIsNoOp(t *testing.T) {
	m := NewAtlasManager()
	if m.Free(common.NewUid()) {
		t.Fatalf("Free of unknown id returned true")
	}
}
