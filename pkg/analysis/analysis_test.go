package analysis_test

import (
	"encoding/json"
	"testing"

	"github.com/herohde/puzzleminer/pkg/analysis"
	"github.com/herohde/puzzleminer/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreCompareMateBeatsAnyCP(t *testing.T) {
	assert.Equal(t, 1, analysis.Compare(analysis.Mate(3), analysis.CP(30000)))
	assert.Equal(t, -1, analysis.Compare(analysis.Mate(-3), analysis.CP(-30000)))
}

func TestScoreCompareFasterMateWins(t *testing.T) {
	assert.Equal(t, 1, analysis.Compare(analysis.Mate(1), analysis.Mate(5)))
	assert.Equal(t, -1, analysis.Compare(analysis.Mate(-1), analysis.Mate(-5)))
}

func TestScoreJSONRoundTrip(t *testing.T) {
	for _, s := range []analysis.Score{analysis.CP(123), analysis.CP(-45), analysis.Mate(3), analysis.Mate(-7)} {
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var got analysis.Score
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, s, got)
	}
}

func TestScoreMateStringFormat(t *testing.T) {
	assert.Equal(t, "#+3", analysis.Mate(3).String())
	assert.Equal(t, "#-3", analysis.Mate(-3).String())
}

func TestAnalysisJSONRoundTripWithBestMove(t *testing.T) {
	m := board.Move{Type: board.Normal, From: board.E2, To: board.E4}
	a := analysis.Analysis{
		BestMove:     &m,
		Bound:        analysis.Exact,
		TerminatedBy: analysis.BestMove,
		PV: []PVAlias{
			{Moves: []board.Move{m}, Score: analysis.CP(35), Depth: 20, Nodes: 123456},
		},
	}

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"bestMove":"e2e4"`)

	var got analysis.Analysis
	require.NoError(t, json.Unmarshal(data, &got))
	require.NotNil(t, got.BestMove)
	assert.True(t, got.BestMove.Equals(m))
	assert.Equal(t, analysis.CP(35), got.PV[0].Score)
}

func TestAnalysisJSONNullMoveSentinel(t *testing.T) {
	a := analysis.Error()

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"bestMove":"0000"`)

	var got analysis.Analysis
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Nil(t, got.BestMove)
}

// PVAlias avoids importing analysis.PV twice under two names in this file.
type PVAlias = analysis.PV
