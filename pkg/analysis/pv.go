package analysis

import (
	"encoding/json"
	"strings"

	"github.com/herohde/puzzleminer/pkg/board"
)

// PV is one principal variation returned by an engine analysis.
type PV struct {
	MultiPV    int           // 0-indexed rank among the returned PVs.
	Moves      []board.Move  // the move sequence, Moves[0] is the PV's first move.
	Score      Score         // from the perspective of the side to move.
	Depth      int           // plies searched to reach this PV.
	Nodes      uint64        // nodes searched for this PV.
	MoveScores []Score       // optional per-move scored breakdown; nil if not tracked.
}

type pvJSON struct {
	Moves      string  `json:"moves"`
	Score      Score   `json:"score"`
	Depth      int     `json:"depth"`
	Nodes      uint64  `json:"nodes"`
	MoveScores []Score `json:"moveScores,omitempty"`
}

// MarshalJSON renders the move sequence as one space-delimited compact string.
func (pv PV) MarshalJSON() ([]byte, error) {
	return json.Marshal(pvJSON{
		Moves:      FormatMoves(pv.Moves),
		Score:      pv.Score,
		Depth:      pv.Depth,
		Nodes:      pv.Nodes,
		MoveScores: pv.MoveScores,
	})
}

// UnmarshalJSON parses the space-delimited compact move sequence back into board.Move values.
func (pv *PV) UnmarshalJSON(data []byte) error {
	var raw pvJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	moves, err := ParseMoves(raw.Moves)
	if err != nil {
		return err
	}

	pv.Moves = moves
	pv.Score = raw.Score
	pv.Depth = raw.Depth
	pv.Nodes = raw.Nodes
	pv.MoveScores = raw.MoveScores
	return nil
}

// FormatMoves renders a move sequence as a space-delimited compact string, e.g. "e2e4 e7e5".
func FormatMoves(moves []board.Move) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}

// ParseMoves parses a space-delimited compact move sequence.
func ParseMoves(str string) ([]board.Move, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return nil, nil
	}

	fields := strings.Fields(str)
	moves := make([]board.Move, 0, len(fields))
	for _, f := range fields {
		m, err := board.ParseMove(f)
		if err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return moves, nil
}
