package resources

import (
	"testing"

	"github.com/Carmen-Shannon/onyx-go/common"
)

func TestEventStreamFifoPerKind(t *testing.T) {
	s := NewEventStream()
	ids := []common.Uid{common.NewUid(), common.NewUid(), common.NewUid()}
	for _, id := range ids {
		s.Push(Event{Kind: ResourceKindMesh, Type: EventCreated, Id: id})
	}
	s.Push(Event{Kind: ResourceKindLight, Type: EventCreated, Id: common.NewUid()})

	drained := s.Drain(ResourceKindMesh)
	if len(drained) != 3 {
		t.Fatalf("drained %d mesh events, want 3", len(drained))
	}
	for i, e := range drained {
		if e.Id != ids[i] {
			t.Fatalf("event %d out of order", i)
		}
	}
	if s.Pending() != 1 {
		t.Errorf("Pending = %d, want 1 remaining light event", s.Pending())
	}
}

func TestDrainAllOrdersTexturesBeforeMeshes(t *testing.T) {
	s := NewEventStream()
	s.Push(Event{Kind: ResourceKindMesh, Type: EventCreated, Id: common.NewUid()})
	s.Push(Event{Kind: ResourceKindTexture, Type: EventCreated, Id: common.NewUid()})
	s.Push(Event{Kind: ResourceKindMaterial, Type: EventCreated, Id: common.NewUid()})

	all := s.DrainAll()
	if len(all) != 3 {
		t.Fatalf("drained %d events, want 3", len(all))
	}
	if all[0].Kind != ResourceKindTexture || all[1].Kind != ResourceKindMaterial || all[2].Kind != ResourceKindMesh {
		t.Fatalf("drain order = %v %v %v, want texture, material, mesh", all[0].Kind, all[1].Kind, all[2].Kind)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending after DrainAll = %d, want 0", s.Pending())
	}
}

func TestRegistryLifecycle(t *testing.T) {
	TeardownRegistry()
	if err := RegisterDeserializer(".mesh_data", func([]byte) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("registration before init succeeded")
	}
	if err := InitRegistry(); err != nil {
		t.Fatalf("InitRegistry: %v", err)
	}
	defer TeardownRegistry()
	if err := InitRegistry(); err == nil {
		t.Fatalf("double init succeeded")
	}

	if err := RegisterDeserializer(".mesh_data", func(data []byte) (any, error) { return len(data), nil }); err != nil {
		t.Fatalf("RegisterDeserializer: %v", err)
	}
	if err := RegisterDeserializer(".mesh_data", func([]byte) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("duplicate registration succeeded")
	}

	v, err := Deserialize(".mesh_data", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if v.(int) != 3 {
		t.Errorf("Deserialize = %v, want 3", v)
	}
	if _, err := Deserialize(".unknown", nil); err == nil {
		t.Errorf("Deserialize with unknown extension succeeded")
	}
}

func TestDrawEventBusResetsEachFrame(t *testing.T) {
	b := NewDrawEventBus()
	b.Submit(DrawEvent{Type: DrawEventLine, Start: [3]float32{0, 0, 0}, End: [3]float32{1, 1, 1}, Color: [4]float32{1, 1, 1, 1}})
	b.Submit(DrawEvent{Type: DrawEventSphere, Start: [3]float32{0, 0, 0}, Radius: 1, Color: [4]float32{1, 0, 0, 1}})

	frame := b.DrainFrame()
	if len(frame) != 2 {
		t.Fatalf("drained %d events, want 2", len(frame))
	}
	if frame[0].Type != DrawEventLine || frame[1].Type != DrawEventSphere {
		t.Errorf("events out of submission order")
	}
	// next frame starts empty
	if next := b.DrainFrame(); len(next) != 0 {
		t.Fatalf("second drain returned %d events, want 0", len(next))
	}
}
