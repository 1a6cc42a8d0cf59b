package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/herohde/puzzleminer/pkg/board"
	"github.com/herohde/puzzleminer/pkg/board/fen"
	"github.com/seekerror/stdlib/pkg/lang"
)

// Record is the unit of work: a position awaiting or having received
// engine analysis. Parent and Analysis start absent and are set later (a
// seed has no parent; every record has no analysis until the pool
// processes it), modeled with lang.Optional rather than bare
// pointers/zero values so "not yet set" can never be confused with a
// legitimate zero analysis.
type Record struct {
	Position *board.Position
	Parent   lang.Optional[*board.Position] // the position this one was reached from, diagnostic only.
	Analysis lang.Optional[Analysis]
}

// NewRecord constructs a Record with no parent and no analysis yet, e.g.
// for a freshly generated seed.
func NewRecord(pos *board.Position) Record {
	return Record{Position: pos}
}

// NewChildRecord constructs a Record reached from parent, e.g. during
// frontier expansion.
func NewChildRecord(pos, parent *board.Position) Record {
	return Record{Position: pos, Parent: lang.Some(parent)}
}

type recordJSON struct {
	Position string    `json:"position"`
	Parent   *string   `json:"parent"`
	Analysis *Analysis `json:"analysis,omitempty"`
}

// MarshalJSON renders Position and Parent as their canonical text form and
// omits Analysis entirely when it has not been set yet.
func (r Record) MarshalJSON() ([]byte, error) {
	raw := recordJSON{Position: fen.Canonical(r.Position)}

	if parent, ok := r.Parent.V(); ok {
		s := fen.Canonical(parent)
		raw.Parent = &s
	}
	if a, ok := r.Analysis.V(); ok {
		raw.Analysis = &a
	}
	return json.Marshal(raw)
}

// UnmarshalJSON parses Position/Parent from their canonical text form. The
// halfmove clock and fullmove number, which Canonical omits, are reset to
// 0/1: the canonical form is a deduplication key, not a full position
// snapshot, so a decoded Record is position-equal but not counter-equal to
// whatever produced the line.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	pos, err := fen.DecodeCanonical(raw.Position)
	if err != nil {
		return fmt.Errorf("record: position: %w", err)
	}
	r.Position = pos

	if raw.Parent != nil {
		parent, err := fen.DecodeCanonical(*raw.Parent)
		if err != nil {
			return fmt.Errorf("record: parent: %w", err)
		}
		r.Parent = lang.Some(parent)
	}
	if raw.Analysis != nil {
		r.Analysis = lang.Some(*raw.Analysis)
	}
	return nil
}
