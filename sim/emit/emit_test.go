package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNullEmitterDiscardsEverything(t *testing.T) {
	n := NewNullEmitter()
	n.Emit(Event{SimID: "a", Msg: "tick"})
	if err := n.EmitBatch(context.Background(), []Event{{SimID: "a"}}); err != nil {
		t.Fatalf("EmitBatch returned error: %v", err)
	}
	if err := n.Flush(context.Background()); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
}

func TestLogEmitterTextMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)
	l.Emit(Event{SimID: "run-1", SimTime: 12.5, Component: "clock", Msg: "tick"})

	got := buf.String()
	if !strings.Contains(got, "[tick]") || !strings.Contains(got, "simID=run-1") {
		t.Fatalf("unexpected text output: %q", got)
	}
}

func TestLogEmitterJSONMode(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, true)
	l.Emit(Event{SimID: "run-1", SimTime: 1, Component: "orchestrator", Msg: "entity_created"})

	var decoded map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, line)
	}
	if decoded["simID"] != "run-1" {
		t.Fatalf("simID = %v, want run-1", decoded["simID"])
	}
}

func TestBufferedEmitterHistoryAndFilter(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{SimID: "run-1", SimTime: 1, Component: "clock", Msg: "tick"})
	b.Emit(Event{SimID: "run-1", SimTime: 2, Component: "orchestrator", Msg: "entity_created"})
	b.Emit(Event{SimID: "run-2", SimTime: 1, Component: "clock", Msg: "tick"})

	all := b.GetHistory("run-1")
	if len(all) != 2 {
		t.Fatalf("GetHistory(run-1) = %d events, want 2", len(all))
	}

	filtered := b.GetHistoryWithFilter("run-1", HistoryFilter{Component: "orchestrator"})
	if len(filtered) != 1 || filtered[0].Msg != "entity_created" {
		t.Fatalf("unexpected filtered result: %+v", filtered)
	}

	b.Clear("run-1")
	if len(b.GetHistory("run-1")) != 0 {
		t.Fatalf("Clear(run-1) did not remove events")
	}
	if len(b.GetHistory("run-2")) != 1 {
		t.Fatalf("Clear(run-1) should not affect run-2")
	}
}
