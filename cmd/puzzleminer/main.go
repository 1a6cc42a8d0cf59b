// puzzleminer mines tactical puzzles: it drives a pool of UCI-like engine
// subprocesses over a growing frontier of positions, classifies each
// analyzed position with the filter DSL, and streams puzzles and
// non-puzzles to JSONL files.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/herohde/puzzleminer/pkg/analysis"
	"github.com/herohde/puzzleminer/pkg/filter"
	"github.com/herohde/puzzleminer/pkg/mining"
	"github.com/herohde/puzzleminer/pkg/pool"
	"github.com/herohde/puzzleminer/pkg/protocol"
	"github.com/herohde/puzzleminer/pkg/seed"
	"github.com/herohde/puzzleminer/pkg/sink"
	"github.com/seekerror/build"
	"github.com/seekerror/logw"
)

var version = build.NewVersion(0, 1, 0)

// Exit codes, per the core's error taxonomy.
const (
	exitOK            = 0
	exitMiningFailure = 1
	exitConfigError   = 2
	exitArgError      = 3
)

var (
	chess960 = flag.Bool("chess960", false, "Generate/interpret random seeds as Chess960")

	input  = flag.String("input", "", "Seed file: .txt (FEN list) or .pgn; empty uses random seeds")
	output = flag.String("output", ".", "Output path: a .json/.jsonl file (siblings derived) or a directory")

	protocolPath = flag.String("protocol-path", "", "Path to the engine protocol descriptor YAML")

	engineInstances = flag.Int("engine-instances", 1, "Number of concurrent engine sessions")
	maxNodes        = flag.Int("max-nodes", 1000000, "Per-job node cap")
	maxDuration     = flag.String("max-duration", "5s", "Per-job wall-clock cap (e.g. 1000, 60s, 2m, 1h)")

	puzzleQuality    = flag.String("puzzle-quality", "TRUE", "Filter DSL: quality predicate")
	puzzleWinning    = flag.String("puzzle-winning", "TRUE", "Filter DSL: winning predicate")
	puzzleDrawing    = flag.String("puzzle-drawing", "FALSE", "Filter DSL: drawing predicate")
	puzzleAccelerate = flag.String("puzzle-accelerate", "", "Filter DSL: early-termination predicate (depth/nodes/score only)")

	randomCount    = flag.Int("random-count", 100, "Number of random seeds to generate when -input is unset")
	randomInfinite = flag.Bool("random-infinite", false, "Refill the frontier with random seeds instead of stopping when it runs dry")

	maxWaves    = flag.Int("max-waves", mining.DefaultMaxWaves, "Maximum number of waves (< 0 for unbounded)")
	maxFrontier = flag.Int("max-frontier", mining.DefaultMaxFrontier, "Maximum records analyzed per wave")
	maxTotal    = flag.Int("max-total", mining.DefaultMaxTotal, "Maximum total records processed (< 0 for unbounded)")

	verbose      = flag.Bool("verbose", false, "Log wave-by-wave progress")
	printVersion = flag.Bool("version", false, "Print version and exit")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: puzzleminer [options]

puzzleminer mines tactical puzzles by analyzing positions with a pool of
UCI-like engine subprocesses.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx := context.Background()

	if *printVersion {
		fmt.Printf("puzzleminer %v\n", version)
		os.Exit(exitOK)
	}

	duration, err := parseDuration(*maxDuration)
	if err != nil {
		logw.Errorf(ctx, "Invalid -max-duration %q: %v", *maxDuration, err)
		os.Exit(exitArgError)
	}
	if *engineInstances < 1 {
		logw.Errorf(ctx, "-engine-instances must be >= 1")
		os.Exit(exitArgError)
	}

	filters, err := parseFilters()
	if err != nil {
		logw.Errorf(ctx, "%v", err)
		os.Exit(exitArgError)
	}

	if *protocolPath == "" {
		logw.Errorf(ctx, "-protocol-path is required")
		os.Exit(exitConfigError)
	}
	desc, err := protocol.Load(*protocolPath)
	if err != nil {
		logw.Errorf(ctx, "%v", err)
		os.Exit(exitConfigError)
	}
	if err := desc.Validate(true); err != nil {
		logw.Errorf(ctx, "%v", err)
		os.Exit(exitConfigError)
	}

	seeds, err := loadSeeds(ctx)
	if err != nil {
		logw.Errorf(ctx, "%v", err)
		os.Exit(exitConfigError)
	}

	puzzlePath, nonPuzzlePath := outputPaths()

	p, err := pool.New(ctx, desc, *engineInstances)
	if err != nil {
		logw.Errorf(ctx, "%v", err)
		os.Exit(exitConfigError)
	}
	defer p.Close(ctx)

	cfg := mining.Config{
		MaxWaves:    unboundedIfNegative(*maxWaves),
		MaxFrontier: *maxFrontier,
		MaxTotal:    unboundedIfNegative(*maxTotal),
		NodeCap:     *maxNodes,
		TimeMs:      int(duration.Milliseconds()),
		Verbose:     *verbose,
	}
	if *randomInfinite {
		variant := seed.Standard
		if *chess960 {
			variant = seed.Chess960
		}
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		cfg.RandomRefill = func(ctx context.Context, count int) ([]analysis.Record, error) {
			return seed.Random(ctx, variant, count, rng)
		}
		cfg.RandomPerRun = *randomCount

		// Infinite mode means infinite: a wave/total cap would silently
		// truncate the run with no cancel signal involved, contradicting
		// -random-infinite's contract that only an external stop ends it.
		cfg.MaxWaves = mining.Unbounded
		cfg.MaxTotal = mining.Unbounded
	}

	sinks := mining.Sinks{
		Puzzles:       sink.New(),
		PuzzlePath:    puzzlePath,
		NonPuzzles:    sink.New(),
		NonPuzzlePath: nonPuzzlePath,
	}

	stats, err := mining.Run(ctx, p, seeds, filters, cfg, sinks, nil)
	if err != nil {
		logw.Errorf(ctx, "Mining failed: %v", err)
		os.Exit(exitMiningFailure)
	}

	logw.Infof(ctx, "Done: %v wave(s), %v processed, %v puzzle(s), %v non-puzzle(s)",
		stats.Waves, stats.Processed, stats.Puzzles, stats.NonPuzzles)
}

func unboundedIfNegative(n int) int {
	if n < 0 {
		return mining.Unbounded
	}
	return n
}

func parseFilters() (mining.Filters, error) {
	quality, err := filter.Parse(*puzzleQuality)
	if err != nil {
		return mining.Filters{}, fmt.Errorf("invalid -puzzle-quality: %w", err)
	}
	winning, err := filter.Parse(*puzzleWinning)
	if err != nil {
		return mining.Filters{}, fmt.Errorf("invalid -puzzle-winning: %w", err)
	}
	drawing, err := filter.Parse(*puzzleDrawing)
	if err != nil {
		return mining.Filters{}, fmt.Errorf("invalid -puzzle-drawing: %w", err)
	}

	var accel filter.Expr
	if *puzzleAccelerate != "" {
		accel, err = filter.Parse(*puzzleAccelerate)
		if err != nil {
			return mining.Filters{}, fmt.Errorf("invalid -puzzle-accelerate: %w", err)
		}
		if err := filter.ValidateAccelerate(accel); err != nil {
			return mining.Filters{}, fmt.Errorf("invalid -puzzle-accelerate: %w", err)
		}
	}

	return mining.Filters{Quality: quality, Winning: winning, Drawing: drawing, Accelerate: accel}, nil
}

func loadSeeds(ctx context.Context) ([]analysis.Record, error) {
	if *input == "" {
		variant := seed.Standard
		if *chess960 {
			variant = seed.Chess960
		}
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		return seed.Random(ctx, variant, *randomCount, rng)
	}

	switch strings.ToLower(filepath.Ext(*input)) {
	case ".pgn":
		return seed.FromPGNFile(ctx, *input)
	case ".txt":
		return seed.FromFENFile(ctx, *input)
	default:
		return nil, fmt.Errorf("unrecognized -input extension for %v (want .txt or .pgn)", *input)
	}
}

// outputPaths derives the puzzle/non-puzzle sink paths from -output. If it
// ends in .json or .jsonl, siblings are derived in the same directory;
// otherwise -output is a directory and the files are timestamped.
func outputPaths() (puzzlePath, nonPuzzlePath string) {
	variant := "standard"
	if *chess960 {
		variant = "chess960"
	}

	ext := strings.ToLower(filepath.Ext(*output))
	if ext == ".json" || ext == ".jsonl" {
		stem := strings.TrimSuffix(*output, filepath.Ext(*output))
		return stem + ".puzzles.jsonl", stem + ".nonpuzzles.jsonl"
	}

	stamp := time.Now().UnixMilli()
	base := fmt.Sprintf("%v-%v", variant, stamp)
	return filepath.Join(*output, base+".puzzles.jsonl"), filepath.Join(*output, base+".nonpuzzles.jsonl")
}

// parseDuration accepts a bare millisecond integer ("1000") or a Go
// duration string ("60s", "2m", "1h").
func parseDuration(s string) (time.Duration, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer or a duration: %v", s)
	}
	return d, nil
}
