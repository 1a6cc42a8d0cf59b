package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/herohde/puzzleminer/pkg/board/fen"
	"github.com/herohde/puzzleminer/pkg/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePGN(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "game.pgn")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFromPGNFileMainlineOnly(t *testing.T) {
	path := writePGN(t, `[Event "Test"]
[Result "1-0"]

1. e4 e5 2. Nf3 Nc6 1-0
`)

	records, err := seed.FromPGNFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 4)

	last := records[len(records)-1]
	assert.NotEqual(t, fen.Initial, fen.Encode(last.Position))
}

func TestFromPGNFileWalksVariations(t *testing.T) {
	path := writePGN(t, `[Event "Test"]

1. e4 e5 (1... c5 2. Nf3) 2. Nf3 Nc6 *
`)

	records, err := seed.FromPGNFile(context.Background(), path)
	require.NoError(t, err)
	// mainline: e4, e5, Nf3, Nc6 (4); variation: c5, Nf3 (2).
	assert.Len(t, records, 6)
}

func TestFromPGNFileIllegalSANAbortsLineOnly(t *testing.T) {
	path := writePGN(t, `[Event "Test"]

1. e4 Qh4 (1... e5 2. Nf3) 2. Nf3 *
`)

	records, err := seed.FromPGNFile(context.Background(), path)
	require.NoError(t, err)
	// e4 succeeds, Qh4 is illegal and aborts the mainline continuation
	// (2. Nf3 on the mainline is never reached), but the sibling variation
	// (e5, Nf3) still produces its two records.
	assert.Len(t, records, 3)
}
