// Package checkpoint persists per-stage workflow outputs so that an
// interrupted run can resume without repeating completed stages.
//
// Each checkpoint is one JSON file named checkpoint_<slug>_<stage>.json under
// the configured cache directory. Writes are atomic (temp file + rename).
// Checkpoints older than the freshness window are ignored on load and removed
// opportunistically.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultFreshness is the window inside which a checkpoint is considered
// resumable.
const DefaultFreshness = 24 * time.Hour

// ErrCorrupt indicates a checkpoint file that could not be decoded. Callers
// treat it like an absent checkpoint; Load never returns it, but it is
// recorded on the envelope for observability.
var ErrCorrupt = errors.New("checkpoint corrupt")

// Envelope is the on-disk checkpoint payload.
type Envelope struct {
	// Timestamp is the save time in RFC 3339.
	Timestamp time.Time `json:"timestamp"`

	// Step is the stage name that produced the payload.
	Step string `json:"step"`

	// Topic is the topic slug the checkpoint belongs to.
	Topic string `json:"topic"`

	// Data is the stage output.
	Data json.RawMessage `json:"data"`
}

// Info summarizes one stored checkpoint for status reporting.
type Info struct {
	Completed bool      `json:"completed"`
	Timestamp time.Time `json:"timestamp"`
	DataSize  int       `json:"data_size"`
}

// Store is a file-backed checkpoint store rooted at a cache directory.
type Store struct {
	dir       string
	freshness time.Duration
	clock     func() time.Time
}

// New creates a Store rooted at dir, creating the directory if needed.
// A zero freshness uses DefaultFreshness.
func New(dir string, freshness time.Duration) (*Store, error) {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{dir: dir, freshness: freshness, clock: time.Now}, nil
}

// Save atomically persists the stage payload for (slug, stage).
// The payload must be JSON-serializable.
func (s *Store) Save(slug, stage string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal checkpoint payload: %w", err)
	}
	env := Envelope{
		Timestamp: s.clock().UTC(),
		Step:      stage,
		Topic:     slug,
		Data:      data,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal checkpoint envelope: %w", err)
	}

	final := s.path(slug, stage)
	tmp, err := os.CreateTemp(s.dir, "checkpoint_*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// Load decodes the checkpoint for (slug, stage) into out and reports whether
// a fresh checkpoint was found. Stale or corrupt checkpoints are treated as
// absent; stale files are garbage-collected on the way out.
func (s *Store) Load(slug, stage string, out any) (bool, error) {
	raw, err := os.ReadFile(s.path(slug, stage))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read checkpoint: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Corrupt checkpoints behave like missing ones.
		return false, nil
	}
	if s.clock().Sub(env.Timestamp) > s.freshness {
		os.Remove(s.path(slug, stage))
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return false, nil
		}
	}
	return true, nil
}

// Clear removes every checkpoint stored for the topic slug.
func (s *Store) Clear(slug string) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}
	prefix := "checkpoint_" + slug + "_"
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".json") {
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove checkpoint %s: %w", name, err)
			}
		}
	}
	return nil
}

// Status reports, for each named stage, whether a fresh checkpoint exists
// along with its timestamp and payload size.
func (s *Store) Status(slug string, stages []string) map[string]Info {
	status := make(map[string]Info, len(stages))
	for _, stage := range stages {
		info := Info{}
		if raw, err := os.ReadFile(s.path(slug, stage)); err == nil {
			var env Envelope
			if err := json.Unmarshal(raw, &env); err == nil &&
				s.clock().Sub(env.Timestamp) <= s.freshness {
				info = Info{
					Completed: true,
					Timestamp: env.Timestamp,
					DataSize:  len(env.Data),
				}
			}
		}
		status[stage] = info
	}
	return status
}

func (s *Store) path(slug, stage string) string {
	return filepath.Join(s.dir, fmt.Sprintf("checkpoint_%s_%s.json", slug, stage))
}
