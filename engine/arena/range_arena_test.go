package arena

import (
	"testing"

	"github.com/Carmen-Shannon/onyx-go/common"
)

func TestAllocateThenGetReturnsSameItems(t *testing.T) {
	a := NewArena[int]()
	id := common.NewUid()
	items := []int{3, 1, 4, 1, 5, 9}

	grew, r := a.Allocate(id, items)
	if !grew {
		t.Fatalf("expected first allocation to grow the backing vector")
	}
	if r.Count() != len(items) {
		t.Fatalf("range count = %d, want %d", r.Count(), len(items))
	}

	got := a.Get(id)
	if len(got) != len(items) {
		t.Fatalf("Get returned %d items, want %d", len(got), len(items))
	}
	for i := range items {
		if got[i] != items[i] {
			t.Errorf("item %d = %d, want %d", i, got[i], items[i])
		}
	}
}

func TestRemoveUnknownIdIsNoOp(t *testing.T) {
	a := NewArena[int]()
	if a.Remove(common.NewUid()) {
		t.Fatalf("Remove of unknown id returned true")
	}
}

func TestFreeSpaceReusedWithoutGrowth(t *testing.T) {
	a := NewArena[int]()
	id1 := common.NewUid()
	id2 := common.NewUid()

	a.Allocate(id1, make([]int, 8))
	a.Remove(id1)
	a.CollapseFree()

	grew, r := a.Allocate(id2, make([]int, 6))
	if grew {
		t.Fatalf("allocation into sufficient free space grew the vector")
	}
	if r.Start != 0 {
		t.Errorf("expected first-fit placement at 0, got %d", r.Start)
	}
	if a.TotalLen() != 8 {
		t.Errorf("TotalLen = %d, want 8", a.TotalLen())
	}
}

func TestReallocateSameIdKeepsLength(t *testing.T) {
	a := NewArena[int]()
	id := common.NewUid()
	items := []int{1, 2, 3, 4}

	_, r1 := a.Allocate(id, items)
	a.Remove(id)
	_, r2 := a.Allocate(id, items)

	if r1.Count() != r2.Count() {
		t.Fatalf("reallocation changed range length: %d vs %d", r1.Count(), r2.Count())
	}
	if a.TotalLen() != len(items) {
		t.Errorf("TotalLen = %d, want %d", a.TotalLen(), len(items))
	}
}

func TestCollapseFreeMergesAdjacentRuns(t *testing.T) {
	a := NewArena[int]()
	ids := []common.Uid{common.NewUid(), common.NewUid(), common.NewUid()}
	for _, id := range ids {
		a.Allocate(id, make([]int, 4))
	}
	for _, id := range ids {
		a.Remove(id)
	}
	a.CollapseFree()

	runs := 0
	total := 0
	a.ForEachFree(func(r Range) {
		runs++
		total += r.Count()
	})
	if runs != 1 {
		t.Fatalf("free runs after collapse = %d, want 1", runs)
	}
	if total != 12 {
		t.Errorf("free items = %d, want 12", total)
	}

	// a full-width allocation must now fit without growth
	grew, _ := a.Allocate(common.NewUid(), make([]int, 12))
	if grew {
		t.Errorf("allocation into collapsed free space grew the vector")
	}
}

func TestDefragCompactsOccupiedRanges(t *testing.T) {
	a := NewArena[int]()
	idA := common.NewUid()
	idB := common.NewUid()
	idC := common.NewUid()

	fill := func(v int) []int {
		out := make([]int, 10)
		for i := range out {
			out[i] = v
		}
		return out
	}
	a.Allocate(idA, fill(1))
	a.Allocate(idB, fill(2))
	a.Allocate(idC, fill(3))
	a.Remove(idB)
	a.Defrag()

	if a.TotalLen() != 20 {
		t.Fatalf("TotalLen after defrag = %d, want 20", a.TotalLen())
	}
	rA, ok := a.RangeOf(idA)
	if !ok || rA.Start != 0 || rA.End != 10 {
		t.Errorf("range of A = %+v (ok=%v), want 0..10", rA, ok)
	}
	rC, ok := a.RangeOf(idC)
	if !ok || rC.Start != 10 || rC.End != 20 {
		t.Errorf("range of C = %+v (ok=%v), want 10..20", rC, ok)
	}
	if got := a.Get(idB); got != nil {
		t.Errorf("removed id still resolves after defrag")
	}
	for i, v := range a.Get(idC) {
		if v != 3 {
			t.Fatalf("C item %d = %d after defrag, want 3", i, v)
		}
	}
}

func TestDefragOnEmptyArenaDropsFreeSpace(t *testing.T) {
	a := NewArena[int]()
	id := common.NewUid()
	a.Allocate(id, make([]int, 4))
	a.Remove(id)
	a.Defrag()

	if a.TotalLen() != 0 {
		t.Errorf("TotalLen = %d, want 0", a.TotalLen())
	}
	if !a.IsEmpty() {
		t.Errorf("arena not empty after defrag")
	}
}

func TestAllocateEmptySliceRemovesEntry(t *testing.T) {
	a := NewArena[int]()
	id := common.NewUid()
	a.Allocate(id, []int{1, 2, 3})

	grew, r := a.Allocate(id, nil)
	if grew || !r.IsEmpty() {
		t.Fatalf("empty allocation grew=%v range=%+v, want no growth and empty range", grew, r)
	}
	if a.Get(id) != nil {
		t.Errorf("id still owns a range after empty allocation")
	}
}

func TestPreallocArenaAllocatesWithoutGrowth(t *testing.T) {
	a := NewPreallocArena[int](16)
	if a.TotalLen() != 16 {
		t.Fatalf("TotalLen = %d, want 16", a.TotalLen())
	}
	grew, r := a.Allocate(common.NewUid(), make([]int, 10))
	if grew {
		t.Fatalf("preallocated arena reported growth")
	}
	if r.Start != 0 || r.End != 10 {
		t.Errorf("range = %+v, want 0..10", r)
	}
}

func TestPreallocArenaOverflowPanics(t *testing.T) {
	a := NewPreallocArena[int](4)
	defer func() {
		if recover() == nil {
			t.Fatalf("overflow of fixed-capacity arena did not panic")
		}
	}()
	a.Allocate(common.NewUid(), make([]int, 8))
}

func TestOccupiedOrderFollowsPlacement(t *testing.T) {
	a := NewArena[int]()
	idA := common.NewUid()
	idB := common.NewUid()
	a.Allocate(idA, make([]int, 4))
	a.Allocate(idB, make([]int, 4))
	a.Remove(idA)
	a.CollapseFree()

	// reuse of the front hole must keep the occupied list ordered by start
	idC := common.NewUid()
	a.Allocate(idC, make([]int, 2))

	var starts []int
	a.ForEachOccupied(func(_ common.Uid, r Range) {
		starts = append(starts, r.Start)
	})
	for i := 1; i < len(starts); i++ {
		if starts[i] < starts[i-1] {
			t.Fatalf("occupied list out of order: %v", starts)
		}
	}
}
