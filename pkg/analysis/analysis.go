package analysis

import (
	"encoding/json"

	"github.com/herohde/puzzleminer/pkg/board"
)

// Bound indicates whether a PV's score is exact or a search bound.
type Bound string

const (
	Exact Bound = "exact"
	Lower Bound = "lower"
	Upper Bound = "upper"
)

// TerminatedBy records why an analysis finished.
type TerminatedBy string

const (
	BestMove TerminatedBy = "bestmove"
	NodeCap  TerminatedBy = "node-cap"
	TimeCap  TerminatedBy = "time-cap"
	Failed   TerminatedBy = "error"
)

// nullMove is the UCI "no move" sentinel, used for terminal positions.
const nullMove = "0000"

// Analysis is a value object: the result of running one engine session
// against one position. Equality is structural.
type Analysis struct {
	BestMove     *board.Move // nil if the engine reported no move (terminal position) or no move is known, as in an error analysis.
	Bound        Bound
	TerminatedBy TerminatedBy
	PV           []PV
}

type analysisJSON struct {
	BestMove     string       `json:"bestMove"`
	Bound        Bound        `json:"bound"`
	TerminatedBy TerminatedBy `json:"terminatedBy"`
	PV           []PV         `json:"pv,omitempty"`
}

// MarshalJSON emits the null move sentinel "0000" when BestMove is nil.
func (a Analysis) MarshalJSON() ([]byte, error) {
	bm := nullMove
	if a.BestMove != nil {
		bm = a.BestMove.String()
	}
	return json.Marshal(analysisJSON{
		BestMove:     bm,
		Bound:        a.Bound,
		TerminatedBy: a.TerminatedBy,
		PV:           a.PV,
	})
}

// UnmarshalJSON parses the null move sentinel "0000" back into a nil BestMove.
func (a *Analysis) UnmarshalJSON(data []byte) error {
	var raw analysisJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.Bound = raw.Bound
	a.TerminatedBy = raw.TerminatedBy
	a.PV = raw.PV

	if raw.BestMove == nullMove || raw.BestMove == "" {
		a.BestMove = nil
		return nil
	}
	m, err := board.ParseMove(raw.BestMove)
	if err != nil {
		return err
	}
	a.BestMove = &m
	return nil
}

// Error returns an error analysis: no PVs, no best move, terminatedBy="error".
// Error analyses are still emitted to the non-puzzle sink so callers can audit failures.
func Error() Analysis {
	return Analysis{Bound: Exact, TerminatedBy: Failed}
}

// BestPV returns the highest-priority (multipv index 0) PV, if any.
func (a Analysis) BestPV() (PV, bool) {
	if len(a.PV) == 0 {
		return PV{}, false
	}
	return a.PV[0], true
}
