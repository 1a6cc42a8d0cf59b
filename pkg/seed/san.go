package seed

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/herohde/puzzleminer/pkg/board"
)

var sanRegex = regexp.MustCompile(`^([KQRBN])?([a-h])?([1-8])?(x)?([a-h][1-8])(=([QRBN]))?[+#]?$`)

// resolveSAN resolves a single SAN token against cur's legal moves. It does
// not itself validate check/checkmate annotations; those are stripped and
// ignored, since legality already implies them.
func resolveSAN(cur *board.Position, tok string) (board.Move, error) {
	tok = strings.TrimRight(tok, "!?")

	switch strings.TrimRight(tok, "+#") {
	case "O-O", "0-0":
		return findCastle(cur, board.KingSideCastle)
	case "O-O-O", "0-0-0":
		return findCastle(cur, board.QueenSideCastle)
	}

	groups := sanRegex.FindStringSubmatch(tok)
	if groups == nil {
		return board.Move{}, fmt.Errorf("unrecognized SAN token %q", tok)
	}

	pieceLetter, disFile, disRank, dest, promoLetter := groups[1], groups[2], groups[3], groups[5], groups[7]

	wantPiece := board.Pawn
	if pieceLetter != "" {
		p, ok := board.ParsePiece(rune(pieceLetter[0]))
		if !ok {
			return board.Move{}, fmt.Errorf("invalid piece letter in %q", tok)
		}
		wantPiece = p
	}

	to, err := board.ParseSquareStr(dest)
	if err != nil {
		return board.Move{}, fmt.Errorf("invalid destination in %q: %w", tok, err)
	}

	var wantPromo board.Piece
	if promoLetter != "" {
		p, ok := board.ParsePiece(rune(promoLetter[0]))
		if !ok {
			return board.Move{}, fmt.Errorf("invalid promotion letter in %q", tok)
		}
		wantPromo = p
	}

	var candidates []board.Move
	for _, m := range cur.LegalMoves() {
		if m.To != to {
			continue
		}
		if _, piece, ok := cur.Square(m.From); !ok || piece != wantPiece {
			continue
		}
		if disFile != "" {
			f, _ := board.ParseFile(rune(disFile[0]))
			if m.From.File() != f {
				continue
			}
		}
		if disRank != "" {
			r, _ := board.ParseRank(rune(disRank[0]))
			if m.From.Rank() != r {
				continue
			}
		}
		if wantPromo != board.NoPiece && m.Promotion != wantPromo {
			continue
		}
		candidates = append(candidates, m)
	}

	switch {
	case len(candidates) == 1:
		return candidates[0], nil
	case len(candidates) == 0:
		return board.Move{}, fmt.Errorf("no legal move matches %q", tok)
	default:
		// Ambiguous only because the promotion piece was left unspecified;
		// default to the strongest piece, matching conventional shorthand.
		for _, m := range candidates {
			if m.Promotion == board.Queen {
				return m, nil
			}
		}
		return board.Move{}, fmt.Errorf("ambiguous SAN token %q", tok)
	}
}

func findCastle(cur *board.Position, side board.MoveType) (board.Move, error) {
	for _, m := range cur.LegalMoves() {
		if m.Type == side {
			return m, nil
		}
	}
	return board.Move{}, fmt.Errorf("castling move not legal in current position")
}
