package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes events to a writer in one of two modes:
//   - Text mode (default): human-readable key=value lines
//   - JSON mode: one JSON object per line (JSONL)
//
// Example text output:
//
//	[stage_start] topic="quantum computing" step=1 stage=literature_survey
//
// Example JSON output:
//
//	{"topic":"quantum computing","step":1,"stage":"literature_survey","msg":"stage_start","meta":null}
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter writing to writer (os.Stdout when nil).
// jsonMode selects JSONL output instead of text.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes one line describing the event.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		Topic string                 `json:"topic"`
		Step  int                    `json:"step"`
		Stage string                 `json:"stage"`
		Msg   string                 `json:"msg"`
		Meta  map[string]interface{} `json:"meta"`
	}{
		Topic: event.Topic,
		Step:  event.Step,
		Stage: event.Stage,
		Msg:   event.Msg,
		Meta:  event.Meta,
	})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] topic=%q step=%d stage=%s",
		event.Msg, event.Topic, event.Step, event.Stage)

	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}
	fmt.Fprint(l.writer, "\n")
}
