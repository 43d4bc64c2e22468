// package resources provides the type-erased resource event stream that
// decouples asset producers (the binarizer output loader, the UI integration)
// from the render buffer coordinator, plus the process-wide registry of blob
// deserializers and the immediate-mode draw event bus.
package resources

import (
	"sync"

	"github.com/Carmen-Shannon/onyx-go/common"
)

// ResourceKind identifies the resource type an event refers to.
type ResourceKind int

const (
	// ResourceKindMesh identifies mesh resources.
	ResourceKindMesh ResourceKind = iota

	// ResourceKindMaterial identifies material resources.
	ResourceKindMaterial

	// ResourceKindTexture identifies texture resources.
	ResourceKindTexture

	// ResourceKindLight identifies light resources.
	ResourceKindLight

	// ResourceKindObject identifies scene object resources.
	ResourceKindObject

	// resourceKindCount is the number of resource kinds; used to size per-kind queues.
	resourceKindCount
)

// EventType identifies the lifecycle transition an event describes.
type EventType int

const (
	// EventCreated signals a resource coming into existence.
	EventCreated EventType = iota

	// EventChanged signals an in-place mutation of a live resource.
	EventChanged

	// EventDestroyed signals a resource leaving existence; its id is never reused.
	EventDestroyed
)

// Event is a single lifecycle notification. Payload carries the kind-specific
// data (mesh data, material data, ...) and is nil for Destroyed events.
type Event struct {
	// Kind is the resource type this event refers to.
	Kind ResourceKind

	// Type is the lifecycle transition.
	Type EventType

	// Id is the stable 128-bit id of the resource.
	Id common.Uid

	// Payload is the kind-specific resource data; nil for Destroyed events.
	Payload any
}

// eventStream is the implementation of the EventStream interface.
type eventStream struct {
	mu     sync.Mutex
	queues [resourceKindCount][]Event
}

// EventStream is a FIFO-per-kind queue of resource lifecycle events. Producers
// push from any goroutine; the render buffer coordinator drains once per tick
// on the render thread. Ordering is guaranteed within a resource kind only.
type EventStream interface {
	// Push appends an event to its kind's queue.
	//
	// Parameters:
	//   - e: the event to enqueue
	Push(e Event)

	// Drain removes and returns all pending events for a kind, in FIFO order.
	//
	// Parameters:
	//   - kind: the resource kind to drain
	//
	// Returns:
	//   - []Event: the drained events, oldest first; nil when empty
	Drain(kind ResourceKind) []Event

	// DrainAll removes and returns all pending events grouped kind by kind,
	// in the fixed kind order textures, materials, meshes, lights, objects so
	// that references created late (mesh -> material -> texture) resolve.
	//
	// Returns:
	//   - []Event: the drained events; nil when empty
	DrainAll() []Event

	// Pending returns the number of queued events across all kinds.
	//
	// Returns:
	//   - int: the pending event count
	Pending() int
}

var _ EventStream = &eventStream{}

// NewEventStream creates an empty EventStream.
//
// Returns:
//   - EventStream: the new stream
func NewEventStream() EventStream {
	return &eventStream{}
}

func (s *eventStream) Push(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[e.Kind] = append(s.queues[e.Kind], e)
}

func (s *eventStream) Drain(kind ResourceKind) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queues[kind]
	s.queues[kind] = nil
	return out
}

// drainOrder resolves dependencies: a mesh created in the same tick as its
// material must see the material already inserted.
var drainOrder = []ResourceKind{
	ResourceKindTexture,
	ResourceKindMaterial,
	ResourceKindMesh,
	ResourceKindLight,
	ResourceKindObject,
}

func (s *eventStream) DrainAll() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, kind := range drainOrder {
		out = append(out, s.queues[kind]...)
		s.queues[kind] = nil
	}
	return out
}

func (s *eventStream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i := range s.queues {
		count += len(s.queues[i])
	}
	return count
}
