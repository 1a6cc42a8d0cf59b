package seed

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/herohde/puzzleminer/pkg/analysis"
	"github.com/herohde/puzzleminer/pkg/board"
	"github.com/herohde/puzzleminer/pkg/board/fen"
	"github.com/seekerror/logw"
)

var (
	pgnTagRegex     = regexp.MustCompile(`(?m)^\[[^\]]*\]\s*$`)
	pgnCommentRegex = regexp.MustCompile(`\{[^}]*\}`)
	pgnNAGRegex     = regexp.MustCompile(`\$\d+`)
	pgnMoveNumRegex = regexp.MustCompile(`\d+\.(\.\.)?`)
	pgnResultRegex  = regexp.MustCompile(`^(1-0|0-1|1/2-1/2|\*)$`)
)

// FromPGNFile parses every game in path, walking the mainline and all
// variations of each via an explicit stack, and returns one record per ply
// visited. A SAN token that does not resolve to a legal move aborts the rest
// of the line it occurs on (mainline or variation) but not sibling
// variations or later games.
func FromPGNFile(ctx context.Context, path string) ([]analysis.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: open %v: %w", path, err)
	}

	var records []analysis.Record
	for i, game := range splitGames(string(data)) {
		start, err := fen.Decode(fen.Initial)
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}

		n, err := walkGame(game, start)
		if err != nil {
			logw.Warningf(ctx, "Seed: %v: game %v: %v", path, i+1, err)
		}
		records = append(records, n...)
	}

	logw.Infof(ctx, "Seed: extracted %v ply record(s) from %v", len(records), path)
	return records, nil
}

// splitGames separates a PGN file into per-game movetext, dropping tag
// pairs.
func splitGames(data string) []string {
	var games []string
	for _, block := range strings.Split(data, "\n\n") {
		movetext := pgnTagRegex.ReplaceAllString(block, "")
		movetext = strings.TrimSpace(movetext)
		if movetext != "" {
			games = append(games, movetext)
		}
	}
	return games
}

func tokenizePGN(movetext string) []string {
	movetext = pgnCommentRegex.ReplaceAllString(movetext, " ")
	movetext = pgnNAGRegex.ReplaceAllString(movetext, " ")
	movetext = strings.ReplaceAll(movetext, "(", " ( ")
	movetext = strings.ReplaceAll(movetext, ")", " ) ")

	var tokens []string
	for _, f := range strings.Fields(movetext) {
		f = pgnMoveNumRegex.ReplaceAllString(f, "")
		if f == "" || pgnResultRegex.MatchString(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// pgnFrame is the stack entry pushed on entering a variation: the state
// needed to resume the parent line once the variation closes.
type pgnFrame struct {
	resumeCur       *board.Position
	resumeLastStart *board.Position
	resumeDead      bool
}

// walkGame walks movetext depth-first over the mainline and every
// variation, using an explicit stack rather than recursion. cur is always
// the position the next move token is applied to. lastStart is the
// position the most recently attempted move (successful or not) was played
// from, which is where a "(" branches from: a variation is an alternative
// to the ply that was just attempted, whether or not that attempt
// succeeded. dead marks that the current line has already hit an illegal
// SAN token and stops consuming further moves at this depth; entering a new
// variation always starts undead, since it is an alternative to a move, not
// a continuation of whatever came after it.
func walkGame(movetext string, start *board.Position) ([]analysis.Record, error) {
	var records []analysis.Record
	var stack []pgnFrame

	cur, lastStart := start, start
	dead := false

	var firstErr error

	for _, tok := range tokenizePGN(movetext) {
		switch tok {
		case "(":
			stack = append(stack, pgnFrame{resumeCur: cur, resumeLastStart: lastStart, resumeDead: dead})
			cur = lastStart
			lastStart = cur
			dead = false

		case ")":
			if len(stack) == 0 {
				continue // unbalanced input; ignore rather than abort the game.
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cur, lastStart, dead = top.resumeCur, top.resumeLastStart, top.resumeDead

		default:
			if dead {
				continue
			}
			lastStart = cur

			m, err := resolveSAN(cur, tok)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("illegal move %q: %w", tok, err)
				}
				dead = true
				continue
			}

			next := cur.ApplyMove(m)
			records = append(records, analysis.NewChildRecord(next, cur))
			cur = next
		}
	}

	return records, firstErr
}
