package arena

import (
	"github.com/Carmen-Shannon/onyx-go/common"
)

// hashArena is the implementation of the HashArena interface.
type hashArena[T any] struct {
	ids   []common.Uid
	data  []T
	live  []bool
	dirty bool
}

// HashArena is an id-keyed arena holding at most one slot per resource id.
// Slots are stable dense indices into a backing vector mirrored to the GPU,
// so shaders can address entries by the index returned from Insert. Freed
// slots are tombstoned and reused by later inserts. Meshes, materials,
// textures and lights live in arenas of this kind.
type HashArena[T any] interface {
	// Insert places a value under the given id and returns its slot index.
	// If the id already owns a slot, the value is overwritten in place and the
	// existing index returned.
	//
	// Parameters:
	//   - id: the resource id
	//   - value: the value to store
	//
	// Returns:
	//   - int: the slot index now holding the value
	Insert(id common.Uid, value T) int

	// MoveTo relocates the slot owned by id to a caller-chosen index,
	// honoring explicit draw ordering. The vector grows as needed; an entry
	// already at the target index is displaced to the vacated slot.
	//
	// Parameters:
	//   - id: the resource id to relocate
	//   - target: the desired slot index
	//
	// Returns:
	//   - bool: false when the id owns no slot
	MoveTo(id common.Uid, target int) bool

	// IdAt returns the id owning a slot index.
	//
	// Parameters:
	//   - index: the slot index to look up
	//
	// Returns:
	//   - common.Uid: the owning id
	//   - bool: false when the slot is out of range or tombstoned
	IdAt(index int) (common.Uid, bool)

	// IndexOf returns the slot index owned by id.
	//
	// Parameters:
	//   - id: the resource id to look up
	//
	// Returns:
	//   - int: the slot index, or -1
	IndexOf(id common.Uid) int

	// Get returns a pointer to the value owned by id, or nil.
	// The pointer aliases internal storage and must not be retained across frames.
	//
	// Parameters:
	//   - id: the resource id to look up
	//
	// Returns:
	//   - *T: the stored value, or nil
	Get(id common.Uid) *T

	// Remove tombstones the slot owned by id.
	//
	// Parameters:
	//   - id: the resource id to remove
	//
	// Returns:
	//   - bool: true if a slot was removed
	Remove(id common.Uid) bool

	// ForEachEntry calls f for every live slot in index order.
	//
	// Parameters:
	//   - f: the visitor, receiving the slot index and a pointer to its value
	ForEachEntry(f func(index int, value *T))

	// Count returns the number of live slots.
	//
	// Returns:
	//   - int: the live slot count
	Count() int

	// TotalLen returns the backing vector length including tombstones.
	//
	// Returns:
	//   - int: the backing vector length
	TotalLen() int

	// Data returns the whole backing vector, tombstones included, for GPU upload.
	//
	// Returns:
	//   - []T: the backing vector
	Data() []T

	// IsDirty reports whether the arena changed since the dirty flag was last cleared.
	//
	// Returns:
	//   - bool: the dirty flag
	IsDirty() bool

	// SetDirty sets or clears the dirty flag. The upload path clears it after
	// mirroring the backing vector to the GPU.
	//
	// Parameters:
	//   - dirty: the new flag value
	SetDirty(dirty bool)
}

var _ HashArena[int] = &hashArena[int]{}

// NewHashArena creates an empty HashArena.
//
// Returns:
//   - HashArena[T]: the new arena
func NewHashArena[T any]() HashArena[T] {
	return &hashArena[T]{}
}

func (h *hashArena[T]) Insert(id common.Uid, value T) int {
	if idx := h.IndexOf(id); idx >= 0 {
		h.data[idx] = value
		h.dirty = true
		return idx
	}
	for i := range h.live {
		if !h.live[i] {
			h.ids[i] = id
			h.data[i] = value
			h.live[i] = true
			h.dirty = true
			return i
		}
	}
	h.ids = append(h.ids, id)
	h.data = append(h.data, value)
	h.live = append(h.live, true)
	h.dirty = true
	return len(h.data) - 1
}

func (h *hashArena[T]) MoveTo(id common.Uid, target int) bool {
	src := h.IndexOf(id)
	if src < 0 {
		return false
	}
	if src == target {
		return true
	}
	for len(h.data) <= target {
		var zero T
		h.ids = append(h.ids, common.InvalidUid)
		h.data = append(h.data, zero)
		h.live = append(h.live, false)
	}
	h.ids[src], h.ids[target] = h.ids[target], h.ids[src]
	h.data[src], h.data[target] = h.data[target], h.data[src]
	h.live[src], h.live[target] = h.live[target], h.live[src]
	h.dirty = true
	return true
}

func (h *hashArena[T]) IdAt(index int) (common.Uid, bool) {
	if index < 0 || index >= len(h.ids) || !h.live[index] {
		return common.InvalidUid, false
	}
	return h.ids[index], true
}

func (h *hashArena[T]) IndexOf(id common.Uid) int {
	for i := range h.ids {
		if h.live[i] && h.ids[i] == id {
			return i
		}
	}
	return -1
}

func (h *hashArena[T]) Get(id common.Uid) *T {
	if idx := h.IndexOf(id); idx >= 0 {
		return &h.data[idx]
	}
	return nil
}

func (h *hashArena[T]) Remove(id common.Uid) bool {
	idx := h.IndexOf(id)
	if idx < 0 {
		return false
	}
	var zero T
	h.ids[idx] = common.InvalidUid
	h.data[idx] = zero
	h.live[idx] = false
	h.dirty = true
	return true
}

func (h *hashArena[T]) ForEachEntry(f func(index int, value *T)) {
	for i := range h.data {
		if h.live[i] {
			f(i, &h.data[i])
		}
	}
}

func (h *hashArena[T]) Count() int {
	count := 0
	for i := range h.live {
		if h.live[i] {
			count++
		}
	}
	return count
}

func (h *hashArena[T]) TotalLen() int {
	return len(h.data)
}

func (h *hashArena[T]) Data() []T {
	return h.data
}

func (h *hashArena[T]) IsDirty() bool {
	return h.dirty
}

func (h *hashArena[T]) SetDirty(dirty bool) {
	h.dirty = dirty
}
