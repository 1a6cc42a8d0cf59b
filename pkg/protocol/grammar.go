package protocol

import (
	"strconv"
	"strings"
)

// TokenKind names a recognized info-line token: a scalar to extract, or the
// "pv" marker after which the remainder of the line is the move sequence.
type TokenKind string

const (
	TokenDepth     TokenKind = "depth"
	TokenNodes     TokenKind = "nodes"
	TokenTime      TokenKind = "time"
	TokenMultiPV   TokenKind = "multipv"
	TokenScoreCP   TokenKind = "score cp"
	TokenScoreMate TokenKind = "score mate"
	TokenBound     TokenKind = "bound"
	TokenPV        TokenKind = "pv"
)

// Grammar is a declarative, table-driven description of how to extract
// depth/nodes/score/bound/pv/multipv from one whitespace-split info line.
// Tokens are matched positionally: each entry's Key is one or more
// consecutive fields to match literally, consuming Width value fields that
// follow (0 for flag tokens such as "lowerbound"). The "pv" marker's value
// is every remaining field, whatever its Width.
type Grammar struct {
	Tokens []TokenSpec `yaml:"tokens"`
}

// TokenSpec is one recognized token in the grammar.
type TokenSpec struct {
	Kind  TokenKind `yaml:"kind"`
	Key   string    `yaml:"key"`   // e.g. "depth", "score cp", "score mate", "pv"
	Width int       `yaml:"width"` // number of value fields following Key; ignored for the "pv" kind
}

// DefaultGrammar is the standard UCI info-line shape:
//
//	info depth 12 seldepth 18 multipv 1 score cp 34 nodes 123456 nps 800000 time 150 pv e2e4 e7e5
func DefaultGrammar() Grammar {
	return Grammar{Tokens: []TokenSpec{
		{Kind: TokenDepth, Key: "depth", Width: 1},
		{Kind: TokenMultiPV, Key: "multipv", Width: 1},
		{Kind: TokenScoreCP, Key: "score cp", Width: 1},
		{Kind: TokenScoreMate, Key: "score mate", Width: 1},
		{Kind: TokenNodes, Key: "nodes", Width: 1},
		{Kind: TokenTime, Key: "time", Width: 1},
		{Kind: TokenBound, Key: "lowerbound", Width: 0},
		{Kind: TokenBound, Key: "upperbound", Width: 0},
		{Kind: TokenPV, Key: "pv", Width: -1},
	}}
}

// InfoFields holds the values extracted from one info line. Zero value
// fields mean "not present on this line"; the Has* flags track which were seen.
type InfoFields struct {
	Depth      int
	Nodes      uint64
	Time       int
	MultiPV    int
	ScoreCP    int
	ScoreMate  int
	Bound      string // "lower", "upper", "" (exact/unspecified)
	PV         []string
	HasDepth   bool
	HasNodes   bool
	HasScoreCP bool
	HasMate    bool
	HasMultiPV bool
}

// Scan extracts recognized tokens from one info line's fields (the line
// already split on whitespace, with the leading "info" prefix stripped).
// Unrecognized fields are skipped; this never errors, matching the engine
// session's tolerance for a locally recoverable malformed info line.
func (g Grammar) Scan(fields []string) InfoFields {
	var out InfoFields

	for i := 0; i < len(fields); {
		matched := false
		for _, spec := range g.Tokens {
			keyFields := strings.Fields(spec.Key)
			if !matchesAt(fields, i, keyFields) {
				continue
			}
			start := i + len(keyFields)

			switch spec.Kind {
			case TokenDepth:
				if v, ok := intAt(fields, start); ok {
					out.Depth, out.HasDepth = v, true
				}
			case TokenNodes:
				if v, ok := uintAt(fields, start); ok {
					out.Nodes, out.HasNodes = v, true
				}
			case TokenTime:
				if v, ok := intAt(fields, start); ok {
					out.Time = v
				}
			case TokenMultiPV:
				if v, ok := intAt(fields, start); ok {
					out.MultiPV, out.HasMultiPV = v, true
				}
			case TokenScoreCP:
				if v, ok := intAt(fields, start); ok {
					out.ScoreCP, out.HasScoreCP = v, true
				}
			case TokenScoreMate:
				if v, ok := intAt(fields, start); ok {
					out.ScoreMate, out.HasMate = v, true
				}
			case TokenBound:
				out.Bound = strings.TrimSuffix(spec.Key, "bound")
			case TokenPV:
				out.PV = append([]string{}, fields[start:]...)
			}

			i = start + maxInt(spec.Width, 0)
			matched = true
			break
		}
		if !matched {
			i++
		}
	}

	return out
}

func matchesAt(fields []string, i int, key []string) bool {
	if i+len(key) > len(fields) {
		return false
	}
	for j, k := range key {
		if fields[i+j] != k {
			return false
		}
	}
	return true
}

func intAt(fields []string, i int) (int, bool) {
	if i >= len(fields) {
		return 0, false
	}
	v, err := strconv.Atoi(fields[i])
	return v, err == nil
}

func uintAt(fields []string, i int) (uint64, bool) {
	if i >= len(fields) {
		return 0, false
	}
	v, err := strconv.ParseUint(fields[i], 10, 64)
	return v, err == nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
