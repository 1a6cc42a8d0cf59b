package seed

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/herohde/puzzleminer/pkg/analysis"
	"github.com/herohde/puzzleminer/pkg/board"
	"github.com/herohde/puzzleminer/pkg/board/fen"
	"github.com/seekerror/logw"
)

// Variant selects the starting-position family a Random seed source draws
// from.
type Variant int

const (
	Standard Variant = iota
	Chess960
)

func (v Variant) String() string {
	if v == Chess960 {
		return "chess960"
	}
	return "standard"
}

// maxRandomPlies bounds how far a seed position is played out from its
// starting arrangement, keeping generated seeds recognizably opening-like
// rather than arbitrary middlegames.
const maxRandomPlies = 8

// Random generates count seed records with no parent, drawn from variant.
// Each is produced by playing a small number of random legal plies from a
// starting arrangement (the standard back rank, or a freshly shuffled
// Chess960 one per draw), so repeated calls diversify rather than repeat
// the same handful of lines.
func Random(ctx context.Context, variant Variant, count int, rng *rand.Rand) ([]analysis.Record, error) {
	if count <= 0 {
		return nil, nil
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	records := make([]analysis.Record, 0, count)
	for i := 0; i < count; i++ {
		start, err := startingPosition(variant, rng)
		if err != nil {
			return nil, fmt.Errorf("seed: random: %w", err)
		}

		pos := playRandomPlies(start, rng)
		records = append(records, analysis.NewRecord(pos))
	}

	logw.Infof(ctx, "Seed: generated %v random %v seed(s)", count, variant)
	return records, nil
}

func startingPosition(variant Variant, rng *rand.Rand) (*board.Position, error) {
	if variant == Standard {
		return fen.Decode(fen.Initial)
	}
	return chess960Position(rng)
}

// playRandomPlies applies between 0 and maxRandomPlies random legal moves,
// stopping early if the position runs out of legal moves (checkmate or
// stalemate) or the random draw comes up empty.
func playRandomPlies(pos *board.Position, rng *rand.Rand) *board.Position {
	plies := rng.Intn(maxRandomPlies + 1)

	cur := pos
	for i := 0; i < plies; i++ {
		moves := cur.LegalMoves()
		if len(moves) == 0 {
			break
		}
		cur = cur.ApplyMove(moves[rng.Intn(len(moves))])
	}
	return cur
}

// chess960Back is a valid Chess960 back-rank arrangement: bishops on
// opposite-color squares, king strictly between the two rooks.
func chess960Back(rng *rand.Rand) [8]board.Piece {
	var rank [8]board.Piece

	// Bishops first, one on an odd square and one on an even square.
	odds := []int{1, 3, 5, 7}
	evens := []int{0, 2, 4, 6}
	rank[odds[rng.Intn(len(odds))]] = board.Bishop
	rank[evens[rng.Intn(len(evens))]] = board.Bishop

	free := freeSquares(rank[:])
	placeRandom(&rank, free, board.Queen, rng)

	free = freeSquares(rank[:])
	placeRandom(&rank, free, board.Knight, rng)
	free = freeSquares(rank[:])
	placeRandom(&rank, free, board.Knight, rng)

	// The three remaining empty files, left to right, always get R, K, R:
	// this guarantees the king ends up strictly between the rooks.
	free = freeSquares(rank[:])
	rank[free[0]] = board.Rook
	rank[free[1]] = board.King
	rank[free[2]] = board.Rook

	return rank
}

func freeSquares(rank []board.Piece) []int {
	var free []int
	for i, p := range rank {
		if p == board.NoPiece {
			free = append(free, i)
		}
	}
	return free
}

func placeRandom(rank *[8]board.Piece, free []int, piece board.Piece, rng *rand.Rand) {
	sq := free[rng.Intn(len(free))]
	rank[sq] = piece
}

// chess960Position builds a Chess960 starting position with a freshly
// shuffled back rank, standard pawn ranks, and no castling rights.
//
// The board package's castling move generator assumes the king starts on
// e1/e8 and the rooks on a1/h1/a8/h8; a shuffled back rank generally puts
// them elsewhere, so castling is inexpressible here and is left disabled
// rather than pretending the rights still apply.
func chess960Position(rng *rand.Rand) (*board.Position, error) {
	back := chess960Back(rng)

	var placements []board.Placement
	for file := 0; file < 8; file++ {
		placements = append(placements,
			board.Placement{Square: board.NewSquare(board.File(file), board.Rank1), Color: board.White, Piece: back[file]},
			board.Placement{Square: board.NewSquare(board.File(file), board.Rank2), Color: board.White, Piece: board.Pawn},
			board.Placement{Square: board.NewSquare(board.File(file), board.Rank7), Color: board.Black, Piece: board.Pawn},
			board.Placement{Square: board.NewSquare(board.File(file), board.Rank8), Color: board.Black, Piece: back[file]},
		)
	}

	return board.NewPosition(placements, board.White, 0, board.ZeroSquare, 0, 1)
}
