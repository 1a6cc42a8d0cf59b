package uciclient_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/herohde/puzzleminer/pkg/board/fen"
	"github.com/herohde/puzzleminer/pkg/protocol"
	"github.com/herohde/puzzleminer/pkg/uciclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

const cooperativeEngine = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    uci) echo "id name fake"; echo "uciok" ;;
    position*) ;;
    go*) echo "info depth 5 score cp 120 nodes 1000 pv e2e4 e7e5"; echo "bestmove e2e4" ;;
    stop) ;;
    quit) exit 0 ;;
  esac
done
`

func TestAnalyzeReturnsBestMoveAndStaysIdle(t *testing.T) {
	ctx := context.Background()
	path := writeFakeEngine(t, cooperativeEngine)

	s, err := uciclient.Spawn(ctx, testDescriptor(path))
	require.NoError(t, err)
	defer s.Close(ctx)

	require.Equal(t, uciclient.Idle, s.State())

	pos, err := fen.Decode(fen.Initial)
	require.NoError(t, err)

	a, err := s.Analyze(ctx, pos, nil, 100000, 2000)
	require.NoError(t, err)

	require.NotNil(t, a.BestMove)
	assert.Equal(t, "e2e4", a.BestMove.String())
	assert.Equal(t, uciclient.Idle, s.State())
	require.Len(t, a.PV, 1)
	assert.Equal(t, 5, a.PV[0].Depth)
	assert.Equal(t, 120, a.PV[0].Score.CP)
}

const slowEngine = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    uci) echo "id name fake"; echo "uciok" ;;
    position*) ;;
    go*) echo "info depth 1 score cp 10 nodes 10 pv d2d4"; sleep 5 ;;
    stop) echo "bestmove d2d4" ;;
    quit) exit 0 ;;
  esac
done
`

func TestAnalyzeTimeCapSynthesizesBestMove(t *testing.T) {
	ctx := context.Background()
	path := writeFakeEngine(t, slowEngine)

	s, err := uciclient.Spawn(ctx, testDescriptor(path))
	require.NoError(t, err)
	defer s.Close(ctx)

	pos, err := fen.Decode(fen.Initial)
	require.NoError(t, err)

	a, err := s.Analyze(ctx, pos, nil, 100000, 50)
	require.NoError(t, err)

	require.NotNil(t, a.BestMove)
	assert.Equal(t, "d2d4", a.BestMove.String())
	assert.Equal(t, "time-cap", string(a.TerminatedBy))
}

const diesOnGoEngine = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    uci) echo "id name fake"; echo "uciok" ;;
    position*) ;;
    go*) exit 1 ;;
    quit) exit 0 ;;
  esac
done
`

func TestAnalyzeEngineCrashReturnsErrorAndFailsSession(t *testing.T) {
	ctx := context.Background()
	path := writeFakeEngine(t, diesOnGoEngine)

	s, err := uciclient.Spawn(ctx, testDescriptor(path))
	require.NoError(t, err)
	defer s.Close(ctx)

	pos, err := fen.Decode(fen.Initial)
	require.NoError(t, err)

	_, err = s.Analyze(ctx, pos, nil, 100000, 2000)
	require.Error(t, err)
	assert.Equal(t, uciclient.Failed, s.State())
}

func TestSpawnFailsOnMissingReadyMarker(t *testing.T) {
	ctx := context.Background()
	path := writeFakeEngine(t, "#!/bin/sh\nexit 0\n")

	_, err := uciclient.Spawn(ctx, testDescriptor(path))
	require.Error(t, err)
}
