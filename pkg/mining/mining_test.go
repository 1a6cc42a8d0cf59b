package mining_test

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/herohde/puzzleminer/pkg/analysis"
	"github.com/herohde/puzzleminer/pkg/board/fen"
	"github.com/herohde/puzzleminer/pkg/filter"
	"github.com/herohde/puzzleminer/pkg/mining"
	"github.com/herohde/puzzleminer/pkg/pool"
	"github.com/herohde/puzzleminer/pkg/protocol"
	"github.com/herohde/puzzleminer/pkg/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alwaysE2E4Engine = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    uci) echo "id name fake"; echo "uciok" ;;
    position*) ;;
    go*) echo "info depth 2 score cp 300 nodes 100 pv e2e4 e7e5"; echo "bestmove e2e4" ;;
    stop) ;;
    quit) exit 0 ;;
  esac
done
`

func writeFakeEngine(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-engine.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func testDescriptor(path string) protocol.Descriptor {
	return protocol.Descriptor{
		Path:           path,
		Init:           []string{"uci"},
		ReadyMarker:    "uciok",
		GoCommand:      "go nodes {nodes} movetime {movetime_ms}",
		StopCommand:    "stop",
		QuitCommand:    "quit",
		InfoPrefix:     "info",
		BestmovePrefix: "bestmove",
		InfoGrammar:    protocol.DefaultGrammar(),
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if scanner.Text() != "" {
			n++
		}
	}
	return n
}

func TestRunOneWaveEveryRecordClassifiedAsPuzzle(t *testing.T) {
	ctx := context.Background()
	enginePath := writeFakeEngine(t, alwaysE2E4Engine)

	p, err := pool.New(ctx, testDescriptor(enginePath), 2)
	require.NoError(t, err)
	defer p.Close(ctx)

	pos1, err := fen.Decode(fen.Initial)
	require.NoError(t, err)
	pos2, err := fen.Decode("rnbqkbnr/pppp1ppp/8/4p3/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 2")
	require.NoError(t, err)

	seeds := []analysis.Record{analysis.NewRecord(pos1), analysis.NewRecord(pos2)}

	quality, err := filter.Parse("TRUE")
	require.NoError(t, err)
	winning, err := filter.Parse("TRUE")
	require.NoError(t, err)
	drawing, err := filter.Parse("FALSE")
	require.NoError(t, err)

	dir := t.TempDir()
	puzzlePath := filepath.Join(dir, "puzzles.jsonl")
	nonPuzzlePath := filepath.Join(dir, "nonpuzzles.jsonl")

	cfg := mining.Config{
		MaxWaves:    1,
		MaxFrontier: mining.DefaultMaxFrontier,
		MaxTotal:    mining.Unbounded,
		NodeCap:     100000,
		TimeMs:      2000,
	}
	sinks := mining.Sinks{
		Puzzles:       sink.New(),
		PuzzlePath:    puzzlePath,
		NonPuzzles:    sink.New(),
		NonPuzzlePath: nonPuzzlePath,
	}

	stats, err := mining.Run(ctx, p, seeds, mining.Filters{Quality: quality, Winning: winning, Drawing: drawing}, cfg, sinks, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Waves)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 2, stats.Puzzles)
	assert.Equal(t, 0, stats.NonPuzzles)

	assert.Equal(t, 2, countLines(t, puzzlePath))
	assert.Equal(t, 0, countLines(t, nonPuzzlePath))
}

func TestRunStopsAtMaxTotal(t *testing.T) {
	ctx := context.Background()
	enginePath := writeFakeEngine(t, alwaysE2E4Engine)

	p, err := pool.New(ctx, testDescriptor(enginePath), 1)
	require.NoError(t, err)
	defer p.Close(ctx)

	pos, err := fen.Decode(fen.Initial)
	require.NoError(t, err)
	seeds := []analysis.Record{analysis.NewRecord(pos)}

	quality, _ := filter.Parse("TRUE")
	winning, _ := filter.Parse("TRUE")
	drawing, _ := filter.Parse("FALSE")

	dir := t.TempDir()
	cfg := mining.Config{
		MaxWaves:    mining.Unbounded,
		MaxFrontier: mining.DefaultMaxFrontier,
		MaxTotal:    1,
		NodeCap:     100000,
		TimeMs:      2000,
	}
	sinks := mining.Sinks{
		Puzzles:       sink.New(),
		PuzzlePath:    filepath.Join(dir, "puzzles.jsonl"),
		NonPuzzles:    sink.New(),
		NonPuzzlePath: filepath.Join(dir, "nonpuzzles.jsonl"),
	}

	stats, err := mining.Run(ctx, p, seeds, mining.Filters{Quality: quality, Winning: winning, Drawing: drawing}, cfg, sinks, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
}
