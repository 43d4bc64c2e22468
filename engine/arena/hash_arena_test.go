package arena

import (
	"testing"

	"github.com/Carmen-Shannon/onyx-go/common"
)

func TestInsertReturnsStableIndex(t *testing.T) {
	h := NewHashArena[string]()
	id := common.NewUid()

	idx := h.Insert(id, "a")
	if idx != 0 {
		t.Fatalf("first insert index = %d, want 0", idx)
	}
	// overwrite in place
	if again := h.Insert(id, "b"); again != idx {
		t.Fatalf("reinsert moved slot: %d -> %d", idx, again)
	}
	if got := h.Get(id); got == nil || *got != "b" {
		t.Fatalf("Get after overwrite = %v, want b", got)
	}
	if h.Count() != 1 {
		t.Errorf("Count = %d, want 1", h.Count())
	}
}

func TestRemoveTombstonesAndReusesSlot(t *testing.T) {
	h := NewHashArena[int]()
	id1 := common.NewUid()
	id2 := common.NewUid()
	id3 := common.NewUid()

	h.Insert(id1, 1)
	h.Insert(id2, 2)
	if !h.Remove(id1) {
		t.Fatalf("Remove of live id returned false")
	}
	if h.IndexOf(id1) != -1 {
		t.Fatalf("removed id still resolves")
	}
	// tombstoned slot 0 is reused before the vector grows
	if idx := h.Insert(id3, 3); idx != 0 {
		t.Fatalf("insert after remove index = %d, want reused slot 0", idx)
	}
	if h.TotalLen() != 2 {
		t.Errorf("TotalLen = %d, want 2", h.TotalLen())
	}
	_ = id2
}

func TestMoveToHonorsExplicitIndex(t *testing.T) {
	h := NewHashArena[string]()
	idA := common.NewUid()
	h.Insert(idA, "mesh")

	if !h.MoveTo(idA, 5) {
		t.Fatalf("MoveTo failed for live id")
	}
	if idx := h.IndexOf(idA); idx != 5 {
		t.Fatalf("IndexOf after MoveTo = %d, want 5", idx)
	}
	if h.TotalLen() < 6 {
		t.Fatalf("TotalLen = %d, want at least 6", h.TotalLen())
	}
}

func TestMoveToDisplacesOccupant(t *testing.T) {
	h := NewHashArena[string]()
	idA := common.NewUid()
	idB := common.NewUid()
	h.Insert(idA, "a") // slot 0
	h.Insert(idB, "b") // slot 1

	h.MoveTo(idA, 1)
	if h.IndexOf(idA) != 1 {
		t.Fatalf("moved id not at target: %d", h.IndexOf(idA))
	}
	if h.IndexOf(idB) != 0 {
		t.Fatalf("displaced id not at vacated slot: %d", h.IndexOf(idB))
	}
}

func TestMoveToUnknownIdFails(t *testing.T) {
	h := NewHashArena[int]()
	if h.MoveTo(common.NewUid(), 3) {
		t.Fatalf("MoveTo of unknown id returned true")
	}
}

func TestForEachEntrySkipsTombstones(t *testing.T) {
	h := NewHashArena[int]()
	id1 := common.NewUid()
	id2 := common.NewUid()
	h.Insert(id1, 10)
	h.Insert(id2, 20)
	h.Remove(id1)

	var indices []int
	h.ForEachEntry(func(i int, v *int) {
		indices = append(indices, i)
		if *v != 20 {
			t.Errorf("unexpected value %d at slot %d", *v, i)
		}
	})
	if len(indices) != 1 || indices[0] != 1 {
		t.Fatalf("visited slots = %v, want [1]", indices)
	}
}

func TestDirtyFlagTracksMutation(t *testing.T) {
	h := NewHashArena[int]()
	if h.IsDirty() {
		t.Fatalf("new arena is dirty")
	}
	id := common.NewUid()
	h.Insert(id, 1)
	if !h.IsDirty() {
		t.Fatalf("insert did not set dirty")
	}
	h.SetDirty(false)
	h.Remove(id)
	if !h.IsDirty() {
		t.Fatalf("remove did not set dirty")
	}
}
