package checkpoint

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type payload struct {
	Names []string `json:"names"`
	Count int      `json:"count"`
}

func newTestStore(t *testing.T, freshness time.Duration) *Store {
	t.Helper()
	s, err := New(t.TempDir(), freshness)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t, DefaultFreshness)

	in := payload{Names: []string{"a", "b"}, Count: 2}
	if err := s.Save("vision_transformers", "literature_survey", in); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	var out payload
	hit, err := s.Load("vision_transformers", "literature_survey", &out)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !hit {
		t.Fatal("Load() miss, want hit")
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := newTestStore(t, DefaultFreshness)
	var out payload
	hit, err := s.Load("nope", "literature_survey", &out)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if hit {
		t.Error("Load() hit for missing checkpoint")
	}
}

func TestStore_StaleCheckpointIgnored(t *testing.T) {
	s := newTestStore(t, 50*time.Millisecond)

	if err := s.Save("topic", "note_taking", payload{Count: 1}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	time.Sleep(80 * time.Millisecond)

	var out payload
	hit, err := s.Load("topic", "note_taking", &out)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if hit {
		t.Error("Load() hit for stale checkpoint, want miss")
	}
}

func TestStore_CorruptTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, DefaultFreshness)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	path := filepath.Join(dir, "checkpoint_topic_citations.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var out payload
	hit, err := s.Load("topic", "citations", &out)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if hit {
		t.Error("Load() hit for corrupt checkpoint, want miss")
	}
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t, DefaultFreshness)

	stages := []string{"literature_survey", "note_taking"}
	for _, stage := range stages {
		if err := s.Save("topic", stage, payload{Count: 1}); err != nil {
			t.Fatalf("Save(%s) error: %v", stage, err)
		}
	}
	if err := s.Clear("topic"); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	status := s.Status("topic", stages)
	for _, stage := range stages {
		if status[stage].Completed {
			t.Errorf("stage %s still completed after Clear()", stage)
		}
	}
}

func TestStore_Status(t *testing.T) {
	s := newTestStore(t, DefaultFreshness)

	if err := s.Save("topic", "literature_survey", payload{Count: 3}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	status := s.Status("topic", []string{"literature_survey", "note_taking"})
	if !status["literature_survey"].Completed {
		t.Error("literature_survey not completed in status")
	}
	if status["literature_survey"].DataSize == 0 {
		t.Error("literature_survey DataSize = 0, want > 0")
	}
	if status["note_taking"].Completed {
		t.Error("note_taking completed in status, want pending")
	}
}
