package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/pretty"
)

// LogEmitter writes structured event output to an io.Writer, either as
// human-readable key=value text or as JSON Lines.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter returns a LogEmitter writing to writer (os.Stdout if nil)
// in JSON mode when jsonMode is true, text mode otherwise.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		SimID     string                 `json:"simID"`
		SimTime   float64                `json:"simTime"`
		Component string                 `json:"component"`
		Msg       string                 `json:"msg"`
		Meta      map[string]interface{} `json:"meta,omitempty"`
	}{event.SimID, event.SimTime, event.Component, event.Msg, event.Meta})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] simID=%s simTime=%.3f component=%s",
		event.Msg, event.SimID, event.SimTime, event.Component)
	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", pretty.Color(metaJSON, nil))
		} else {
			_, _ = fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

// EmitBatch writes every event in order using the configured mode.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes synchronously with no internal buffer.
func (l *LogEmitter) Flush(_ context.Context) error { return nil }
