// package arena provides the CPU-side bookkeeping for the engine's buffered
// resource stores: contiguous typed vectors partitioned into occupied and free
// ranges keyed by stable resource ids. Every GPU-backed stream (vertices,
// indices, meshlets, materials, commands) is fronted by one of these.
package arena

import (
	"fmt"

	"github.com/Carmen-Shannon/onyx-go/common"
)

// Range is a half-open [Start, End) span of items inside an arena's backing vector.
type Range struct {
	// Start is the index of the first item in the span.
	Start int
	// End is the index one past the last item in the span.
	End int
}

// Count returns the number of items covered by the range.
//
// Returns:
//   - int: End - Start
func (r Range) Count() int {
	return r.End - r.Start
}

// IsEmpty reports whether the range covers no items.
//
// Returns:
//   - bool: true if the range is empty
func (r Range) IsEmpty() bool {
	return r.End <= r.Start
}

// entry ties a range to the resource id that owns it. Free entries carry
// a placeholder id which is never surfaced to callers.
type entry struct {
	id common.Uid
	r  Range
}

// isAdjacent reports whether two entries touch so they can be merged.
func (e *entry) isAdjacent(other *entry) bool {
	return e.r.End == other.r.Start || other.r.End == e.r.Start
}

// combine merges other into e when adjacent. Returns whether a merge happened.
func (e *entry) combine(other *entry) bool {
	if e.r.End == other.r.Start {
		e.r.End = other.r.End
		return true
	}
	if other.r.End == e.r.Start {
		e.r.Start = other.r.Start
		return true
	}
	return false
}

// arena is the implementation of the Arena interface.
type arena[T any] struct {
	occupied []entry
	free     []entry
	data     []T

	// maxSize is non-zero in fixed-capacity mode; growth past it is fatal.
	maxSize int
}

// Arena is a slab allocator over a homogeneous typed vector. It tracks which
// spans of the backing vector are occupied (keyed by resource id) and which are
// free, reusing freed space first-fit and growing the vector when nothing fits.
// Callers that mirror the backing vector into a GPU buffer use the grew result
// of Allocate to know when the GPU buffer must be reallocated.
//
// An Arena is not safe for concurrent use; the render buffer coordinator is
// the single writer and holds its lease for the reconciliation step only.
type Arena[T any] interface {
	// Allocate places items into the arena under the given id. Any prior range
	// under the same id is removed first. Free space is searched first-fit; if
	// no free range is large enough the backing vector grows, unless the arena
	// was preallocated in which case overflow is a fatal error.
	// Allocating an empty slice removes the prior entry and returns an empty range.
	//
	// Parameters:
	//   - id: the resource id that will own the range
	//   - items: the items to copy into the arena
	//
	// Returns:
	//   - bool: true if the backing vector grew (GPU reallocation required)
	//   - Range: the span now owned by id
	Allocate(id common.Uid, items []T) (bool, Range)

	// Remove releases the range owned by id back to the free list.
	// Removing an unknown id is a no-op.
	//
	// Parameters:
	//   - id: the resource id to release
	//
	// Returns:
	//   - bool: true if a range was released
	Remove(id common.Uid) bool

	// Get returns the slice owned by id, or nil when the id holds no range.
	// The slice aliases the backing vector and is invalidated by any
	// subsequent Allocate or Defrag.
	//
	// Parameters:
	//   - id: the resource id to look up
	//
	// Returns:
	//   - []T: the owned items, or nil
	Get(id common.Uid) []T

	// Update overwrites items starting at the given index of the backing vector.
	//
	// Parameters:
	//   - start: the index of the first item to overwrite
	//   - items: the replacement items
	Update(start int, items []T)

	// RangeOf returns the range owned by id.
	//
	// Parameters:
	//   - id: the resource id to look up
	//
	// Returns:
	//   - Range: the owned span
	//   - bool: false when the id holds no range
	RangeOf(id common.Uid) (Range, bool)

	// Last returns the occupied entry that starts furthest into the backing vector.
	//
	// Returns:
	//   - common.Uid: the id of the last occupied entry
	//   - Range: its span
	//   - bool: false when the arena has no occupied entries
	Last() (common.Uid, Range, bool)

	// ForEachOccupied calls f for every occupied range in order of start index.
	//
	// Parameters:
	//   - f: the visitor, receiving the owning id and its span
	ForEachOccupied(f func(id common.Uid, r Range))

	// ForEachFree calls f for every free range.
	//
	// Parameters:
	//   - f: the visitor, receiving each free span
	ForEachFree(f func(r Range))

	// CollapseFree merges adjacent free ranges until a pass yields no merges.
	CollapseFree()

	// Defrag compacts all occupied ranges to the front of the backing vector,
	// rewriting their spans and dropping all free space. A fixed-capacity arena
	// keeps its full length, with the space after the compacted ranges left as
	// one free run. Every range returned before the call is invalid afterwards.
	Defrag()

	// Clear drops all occupied and free ranges and empties the backing vector.
	Clear()

	// ItemCount returns the total number of occupied items.
	//
	// Returns:
	//   - int: the occupied item count
	ItemCount() int

	// TotalLen returns the length of the backing vector, occupied or not.
	//
	// Returns:
	//   - int: the backing vector length
	TotalLen() int

	// IsEmpty reports whether no ranges are occupied.
	//
	// Returns:
	//   - bool: true when nothing is allocated
	IsEmpty() bool

	// Data returns the whole backing vector for GPU upload. The slice aliases
	// internal storage and must not be retained across frames.
	//
	// Returns:
	//   - []T: the backing vector
	Data() []T
}

var _ Arena[int] = &arena[int]{}

// NewArena creates an empty grow-on-demand Arena.
//
// Returns:
//   - Arena[T]: the new arena
func NewArena[T any]() Arena[T] {
	return &arena[T]{}
}

// NewPreallocArena creates an Arena primed with n default-valued items, all
// free. In this mode the backing vector never grows: allocating beyond
// capacity is a fatal error, per the engine's capacity error policy.
//
// Parameters:
//   - n: the fixed capacity in items
//
// Returns:
//   - Arena[T]: the new fixed-capacity arena
func NewPreallocArena[T any](n int) Arena[T] {
	a := &arena[T]{
		data:    make([]T, n),
		maxSize: n,
	}
	a.free = []entry{{id: common.NewUid(), r: Range{Start: 0, End: n}}}
	return a
}

func (a *arena[T]) Allocate(id common.Uid, items []T) (bool, Range) {
	a.Remove(id)
	a.CollapseFree()
	if len(items) == 0 {
		return false, Range{}
	}
	size := len(items)
	for i := range a.free {
		if a.free[i].r.Count() >= size {
			freeEntry := a.free[i]
			a.free = append(a.free[:i], a.free[i+1:]...)
			if freeEntry.r.Count() > size {
				a.free = append(a.free, entry{
					id: common.NewUid(),
					r:  Range{Start: freeEntry.r.Start + size, End: freeEntry.r.End},
				})
			}
			return false, a.insertAt(id, freeEntry.r.Start, items)
		}
	}
	return true, a.insert(id, items)
}

// insert appends items at the end of the backing vector, growing it.
func (a *arena[T]) insert(id common.Uid, items []T) Range {
	if a.maxSize != 0 {
		panic(fmt.Sprintf("arena: allocation of %d items overflows preallocated capacity %d", len(items), a.maxSize))
	}
	start := len(a.data)
	a.data = append(a.data, items...)
	r := Range{Start: start, End: start + len(items)}
	a.occupied = append(a.occupied, entry{id: id, r: r})
	return r
}

// insertAt copies items over an existing span of the backing vector and
// records the occupied entry, keeping the occupied list ordered by start.
func (a *arena[T]) insertAt(id common.Uid, start int, items []T) Range {
	end := start + len(items)
	copy(a.data[start:end], items)
	e := entry{id: id, r: Range{Start: start, End: end}}

	inserted := false
	for i := range a.occupied {
		if a.occupied[i].r.End == start {
			a.occupied = append(a.occupied[:i+1], append([]entry{e}, a.occupied[i+1:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		for i := range a.occupied {
			if a.occupied[i].r.Start >= end {
				a.occupied = append(a.occupied[:i], append([]entry{e}, a.occupied[i:]...)...)
				inserted = true
				break
			}
		}
	}
	if !inserted {
		a.occupied = append(a.occupied, e)
	}
	return e.r
}

func (a *arena[T]) Remove(id common.Uid) bool {
	for i := range a.occupied {
		if a.occupied[i].id == id {
			freed := a.occupied[i]
			a.occupied = append(a.occupied[:i], a.occupied[i+1:]...)
			a.free = append(a.free, freed)
			return true
		}
	}
	return false
}

func (a *arena[T]) Get(id common.Uid) []T {
	for i := range a.occupied {
		if a.occupied[i].id == id {
			r := a.occupied[i].r
			return a.data[r.Start:r.End]
		}
	}
	return nil
}

func (a *arena[T]) Update(start int, items []T) {
	copy(a.data[start:start+len(items)], items)
}

func (a *arena[T]) RangeOf(id common.Uid) (Range, bool) {
	for i := range a.occupied {
		if a.occupied[i].id == id {
			return a.occupied[i].r, true
		}
	}
	return Range{}, false
}

func (a *arena[T]) Last() (common.Uid, Range, bool) {
	if len(a.occupied) == 0 {
		return common.InvalidUid, Range{}, false
	}
	last := a.occupied[len(a.occupied)-1]
	return last.id, last.r, true
}

func (a *arena[T]) ForEachOccupied(f func(id common.Uid, r Range)) {
	for i := range a.occupied {
		f(a.occupied[i].id, a.occupied[i].r)
	}
}

func (a *arena[T]) ForEachFree(f func(r Range)) {
	for i := range a.free {
		f(a.free[i].r)
	}
}

func (a *arena[T]) CollapseFree() {
	if len(a.free) <= 1 {
		return
	}
	for {
		merged := 0
		for i := 0; i < len(a.free); i++ {
			for j := i + 1; j < len(a.free); j++ {
				if a.free[i].isAdjacent(&a.free[j]) {
					a.free[i].combine(&a.free[j])
					a.free = append(a.free[:j], a.free[j+1:]...)
					merged++
					j--
				}
			}
		}
		if merged == 0 {
			break
		}
	}
}

func (a *arena[T]) Defrag() {
	if len(a.free) == 0 {
		return
	}
	a.free = a.free[:0]
	newData := make([]T, 0, a.ItemCount())
	for i := range a.occupied {
		r := a.occupied[i].r
		start := len(newData)
		newData = append(newData, a.data[r.Start:r.End]...)
		a.occupied[i].r = Range{Start: start, End: len(newData)}
	}
	a.data = newData
	if a.maxSize != 0 {
		// fixed-capacity arenas keep their full span; the tail becomes one free run
		if len(a.data) < a.maxSize {
			pad := make([]T, a.maxSize-len(a.data))
			a.free = append(a.free, entry{id: common.NewUid(), r: Range{Start: len(a.data), End: a.maxSize}})
			a.data = append(a.data, pad...)
		}
	}
}

func (a *arena[T]) Clear() {
	a.occupied = a.occupied[:0]
	a.free = a.free[:0]
	a.data = a.data[:0]
}

func (a *arena[T]) ItemCount() int {
	count := 0
	for i := range a.occupied {
		count += a.occupied[i].r.Count()
	}
	return count
}

func (a *arena[T]) TotalLen() int {
	return len(a.data)
}

func (a *arena[T]) IsEmpty() bool {
	return len(a.occupied) == 0
}

func (a *arena[T]) Data() []T {
	return a.data
}
