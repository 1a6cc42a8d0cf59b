package board_test

import (
	"testing"

	"github.com/herohde/puzzleminer/pkg/board"
	"github.com/herohde/puzzleminer/pkg/board/fen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegalMovesFromInitialPosition(t *testing.T) {
	pos, err := fen.Decode(fen.Initial)
	require.NoError(t, err)

	moves := pos.LegalMoves()
	assert.Len(t, moves, 20) // 16 pawn moves + 4 knight moves
}

func TestApplyMoveUpdatesSideToMoveAndCounters(t *testing.T) {
	pos, err := fen.Decode(fen.Initial)
	require.NoError(t, err)

	e4 := board.Move{Type: board.Jump, From: board.E2, To: board.E4}
	next := pos.ApplyMove(e4)

	assert.Equal(t, board.Black, next.Turn())
	assert.Equal(t, 0, next.HalfmoveClock())
	assert.Equal(t, 1, next.FullMoveNumber())

	ep, ok := next.EnPassant()
	require.True(t, ok)
	assert.Equal(t, board.E3, ep)
}

func TestApplyMoveFullMoveIncrementsAfterBlack(t *testing.T) {
	pos, err := fen.Decode(fen.Initial)
	require.NoError(t, err)

	afterWhite := pos.ApplyMove(board.Move{Type: board.Jump, From: board.E2, To: board.E4})
	afterBlack := afterWhite.ApplyMove(board.Move{Type: board.Jump, From: board.E7, To: board.E5})

	assert.Equal(t, board.White, afterBlack.Turn())
	assert.Equal(t, 2, afterBlack.FullMoveNumber())
}

func TestMateInOnePositionHasNoLegalMovesForLoser(t *testing.T) {
	// Fool's mate final position: white to move, checkmated.
	pos, err := fen.Decode("rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	require.NoError(t, err)

	assert.True(t, pos.IsChecked(board.White))
	assert.Empty(t, pos.LegalMoves())
	assert.True(t, pos.IsTerminal())
}

func TestEnPassantCapture(t *testing.T) {
	pos, err := fen.Decode("rnbqkbnr/ppp1pppp/8/8/3pP3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 3")
	require.NoError(t, err)

	var found bool
	for _, m := range pos.LegalMoves() {
		if m.Type == board.EnPassant {
			found = true
			assert.Equal(t, board.E3, m.To)
		}
	}
	assert.True(t, found, "expected an en passant capture to be available")
}

func TestCastlingRightsLostAfterKingMove(t *testing.T) {
	pos, err := fen.Decode("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	require.NoError(t, err)

	next := pos.ApplyMove(board.Move{Type: board.Normal, From: board.E1, To: board.E2})
	assert.False(t, next.Castling().IsAllowed(board.WhiteKingSideCastle))
	assert.False(t, next.Castling().IsAllowed(board.WhiteQueenSideCastle))
	assert.True(t, next.Castling().IsAllowed(board.BlackKingSideCastle))
}
