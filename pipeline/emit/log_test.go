package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitter_Text(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)

	e.Emit(Event{
		Topic: "quantum computing",
		Stage: "literature_survey",
		Step:  1,
		Msg:   "stage_start",
	})

	got := buf.String()
	want := "[stage_start] topic=\"quantum computing\" step=1 stage=literature_survey\n"
	if got != want {
		t.Errorf("text line = %q, want %q", got, want)
	}
}

func TestLogEmitter_TextWithMeta(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)

	e.Emit(Event{
		Topic: "t",
		Stage: "note_taking",
		Step:  2,
		Msg:   "stage_complete",
		Meta:  map[string]interface{}{"papers": 12},
	})

	got := buf.String()
	if !strings.Contains(got, `meta={"papers":12}`) {
		t.Errorf("text line = %q, missing meta", got)
	}
}

func TestLogEmitter_JSON(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, true)

	e.Emit(Event{
		Topic: "t",
		Stage: "citations",
		Step:  4,
		Msg:   "stage_start",
		Meta:  map[string]interface{}{"attempt": 1},
	})

	var decoded struct {
		Topic string                 `json:"topic"`
		Step  int                    `json:"step"`
		Stage string                 `json:"stage"`
		Msg   string                 `json:"msg"`
		Meta  map[string]interface{} `json:"meta"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, buf.String())
	}
	if decoded.Stage != "citations" || decoded.Step != 4 || decoded.Msg != "stage_start" {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Meta["attempt"] != float64(1) {
		t.Errorf("meta = %v", decoded.Meta)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("JSONL line missing trailing newline")
	}
}

func TestNullEmitter(t *testing.T) {
	// Must accept any event without effect.
	NewNullEmitter().Emit(Event{Topic: "t", Msg: "stage_start"})
}
