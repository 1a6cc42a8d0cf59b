package seed

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/herohde/puzzleminer/pkg/analysis"
	"github.com/herohde/puzzleminer/pkg/board/fen"
	"github.com/seekerror/logw"
)

// FromFENFile reads one FEN per line from path. Blank lines and lines
// starting with '#' are skipped. A malformed line is logged as a warning
// and skipped; it does not abort the rest of the file.
func FromFENFile(ctx context.Context, path string) ([]analysis.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: open %v: %w", path, err)
	}
	defer f.Close()

	var records []analysis.Record
	scanner := bufio.NewScanner(f)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pos, err := fen.Decode(line)
		if err != nil {
			logw.Warningf(ctx, "Seed: %v:%v: skipping malformed FEN: %v", path, lineno, err)
			continue
		}
		records = append(records, analysis.NewRecord(pos))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("seed: read %v: %w", path, err)
	}

	logw.Infof(ctx, "Seed: loaded %v position(s) from %v", len(records), path)
	return records, nil
}
