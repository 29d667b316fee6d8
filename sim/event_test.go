package sim

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestNewEventStampsIdentity(t *testing.T) {
	e := NewEvent(10.5, KindMarkerCreated, map[string]any{"label": "start"}, nil)
	if e.ID == uuid.Nil {
		t.Fatalf("NewEvent did not assign an ID")
	}
	if e.SimulationTime != 10.5 {
		t.Fatalf("SimulationTime = %v, want 10.5", e.SimulationTime)
	}
	if e.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt was not stamped")
	}
}

func TestEventEqualComparesIdentityOnly(t *testing.T) {
	a := NewEvent(0, KindMarkerCreated, map[string]any{"label": "a"}, nil)
	b := a
	b.Data = map[string]any{"label": "different"}
	if !a.Equal(b) {
		t.Fatalf("events sharing an ID should be Equal regardless of Data")
	}

	c := NewEvent(0, KindMarkerCreated, map[string]any{"label": "a"}, nil)
	if a.Equal(c) {
		t.Fatalf("events with distinct IDs should not be Equal even with identical Data")
	}
}

func TestWithCausationAndCorrelationDoNotMutateReceiver(t *testing.T) {
	base := NewEvent(0, KindMarkerCreated, nil, nil)
	causeID := uuid.New()
	withCause := base.WithCausation(causeID)

	if base.CausationID != nil {
		t.Fatalf("WithCausation mutated the receiver")
	}
	if withCause.CausationID == nil || *withCause.CausationID != causeID {
		t.Fatalf("WithCausation did not set CausationID correctly")
	}

	corrID := uuid.New()
	withCorr := base.WithCorrelation(corrID)
	if base.CorrelationID != nil {
		t.Fatalf("WithCorrelation mutated the receiver")
	}
	if withCorr.CorrelationID == nil || *withCorr.CorrelationID != corrID {
		t.Fatalf("WithCorrelation did not set CorrelationID correctly")
	}
}

func TestDataJSONRoundTrips(t *testing.T) {
	e := NewEvent(0, KindEntityCreated, map[string]any{"entity_id": "abc", "max_speed": 5.0}, nil)
	raw, err := e.DataJSON()
	if err != nil {
		t.Fatalf("DataJSON: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("DataJSON returned empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("DataJSON output does not decode: %v", err)
	}
	if decoded["entity_id"] != "abc" || decoded["max_speed"] != 5.0 {
		t.Fatalf("DataJSON round trip = %v, want entity_id=abc max_speed=5", decoded)
	}
}
