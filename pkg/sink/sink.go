// Package sink implements the append-only JSONL writer puzzle and
// non-puzzle records are flushed to: one JSON object per line, parent
// directories created on demand, files touched empty before the first
// wave so downstream tooling can tail them from run start.
package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/herohde/puzzleminer/pkg/analysis"
)

// Sink serializes every Append call from this process behind a single
// mutex: simpler than a per-path lock table, and sufficient since spec
// only requires single-writer discipline within the process, not across
// processes sharing a path.
type Sink struct {
	mu sync.Mutex
}

func New() *Sink {
	return &Sink{}
}

// Ensure creates path's parent directory if needed and touches path if it
// does not already exist, without truncating existing content.
func (s *Sink) Ensure(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ensure(path)
}

func ensure(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("sink: create directory %v: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("sink: touch %v: %w", path, err)
	}
	return f.Close()
}

// Append writes one JSON object per record, each newline-terminated, to
// path in a single write call so appends from other writers on the same
// path cannot interleave with this one mid-record.
func (s *Sink) Append(path string, records []analysis.Record) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("sink: marshal record: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ensure(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("sink: open %v: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("sink: append %v: %w", path, err)
	}
	return nil
}
