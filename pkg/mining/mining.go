// Package mining implements the frontier scheduler: the wave loop that
// drives an engine pool over a growing set of positions, classifies each
// analyzed position with the filter DSL, expands puzzles by playing the
// engine's best move and enumerating the opponent's replies, and flushes
// per-wave results to JSONL sinks.
package mining

import (
	"context"
	"fmt"

	"github.com/herohde/puzzleminer/pkg/analysis"
	"github.com/herohde/puzzleminer/pkg/board"
	"github.com/herohde/puzzleminer/pkg/board/fen"
	"github.com/herohde/puzzleminer/pkg/filter"
	"github.com/herohde/puzzleminer/pkg/pool"
	"github.com/herohde/puzzleminer/pkg/sink"
	"github.com/seekerror/logw"
)

// Unbounded marks MaxWaves/MaxTotal as infinite; infinite mode additionally
// requires RandomRefill to be non-nil so the frontier can be topped up once
// it runs dry.
const Unbounded = -1

const (
	DefaultMaxWaves          = 100
	DefaultMaxFrontier       = 5000
	DefaultMaxTotal          = 500000
	DefaultRandomSeedsPerRun = 100
)

// Filters bundles the four DSL expressions the scheduler consumes: quality,
// winning and drawing classify a completed analysis into a puzzle verdict;
// accelerate is handed to the engine pool as an early-termination predicate
// and plays no role in classification.
type Filters struct {
	Quality    filter.Expr
	Winning    filter.Expr
	Drawing    filter.Expr
	Accelerate filter.Expr
}

// Config bounds a mining run.
type Config struct {
	MaxWaves    int // Unbounded for infinite mode.
	MaxFrontier int
	MaxTotal    int // Unbounded for infinite mode.

	NodeCap int
	TimeMs  int

	// RandomRefill, if set, is invoked with the number of seeds requested
	// whenever the frontier runs dry in infinite mode.
	RandomRefill func(ctx context.Context, count int) ([]analysis.Record, error)
	RandomPerRun int

	Verbose bool
}

// Sinks is where classified records are flushed, once per wave.
type Sinks struct {
	Puzzles    *sink.Sink
	PuzzlePath string

	NonPuzzles    *sink.Sink
	NonPuzzlePath string
}

// Stats summarizes a completed run.
type Stats struct {
	Waves      int
	Processed  int
	Puzzles    int
	NonPuzzles int
}

// Run drives the wave loop to completion: it mutates nothing outside of
// seeds (which it does not mutate) and the sink files it writes to. The
// pool is owned by the caller and is not closed here.
func Run(ctx context.Context, p *pool.Pool, seeds []analysis.Record, filters Filters, cfg Config, sinks Sinks, cancel <-chan struct{}) (Stats, error) {
	if err := sinks.Puzzles.Ensure(sinks.PuzzlePath); err != nil {
		return Stats{}, fmt.Errorf("mining: %w", err)
	}
	if err := sinks.NonPuzzles.Ensure(sinks.NonPuzzlePath); err != nil {
		return Stats{}, fmt.Errorf("mining: %w", err)
	}

	seen := map[string]bool{}
	analyzed := map[string]bool{}

	frontier := dedupeInitial(seeds, seen)

	var stats Stats
	wave := 0

	for {
		if len(frontier) == 0 && cfg.RandomRefill != nil {
			refilled, err := refill(ctx, cfg, seen)
			if err != nil {
				return stats, fmt.Errorf("mining: refill: %w", err)
			}
			frontier = refilled
		}

		if len(frontier) == 0 {
			break
		}
		if cfg.MaxWaves != Unbounded && wave >= cfg.MaxWaves {
			break
		}
		if cfg.MaxTotal != Unbounded && stats.Processed >= cfg.MaxTotal {
			break
		}

		if len(frontier) > cfg.MaxFrontier {
			logw.Debugf(ctx, "Mining: wave %v: capping frontier %v -> %v", wave, len(frontier), cfg.MaxFrontier)
			frontier = frontier[:cfg.MaxFrontier]
		}

		refs := make([]*analysis.Record, len(frontier))
		for i := range frontier {
			refs[i] = &frontier[i]
		}
		p.AnalyseAll(ctx, refs, filters.Accelerate, cfg.NodeCap, cfg.TimeMs, cancel)

		var wavePuzzles, waveNonPuzzles []analysis.Record
		var next []analysis.Record

		for _, r := range frontier {
			stats.Processed++
			analyzed[fen.Canonical(r.Position)] = true

			a, _ := r.Analysis.V()
			if filter.Verify(filters.Quality, filters.Winning, filters.Drawing, filter.Context{Position: r.Position, Analysis: a}) {
				wavePuzzles = append(wavePuzzles, r)

				// The engine reports a bare from/to move; resolve it against the
				// legal moves so ApplyMove sees its capture/castling/en passant type.
				var best *board.Move
				if a.BestMove != nil {
					for _, m := range r.Position.LegalMoves() {
						if m.Equals(*a.BestMove) {
							best = &m
							break
						}
					}
				}
				if best != nil {
					replyFrom := r.Position.ApplyMove(*best)
					for _, child := range replyFrom.LegalMoves() {
						childPos := replyFrom.ApplyMove(child)
						key := fen.Canonical(childPos)
						if analyzed[key] || seen[key] {
							continue
						}
						seen[key] = true
						next = append(next, analysis.NewChildRecord(childPos, replyFrom))

						if cfg.MaxTotal != Unbounded && stats.Processed+len(next) >= cfg.MaxTotal {
							break
						}
					}
				}
			} else {
				waveNonPuzzles = append(waveNonPuzzles, r)
			}

			if cfg.MaxTotal != Unbounded && stats.Processed >= cfg.MaxTotal {
				break
			}
		}

		if err := sinks.Puzzles.Append(sinks.PuzzlePath, wavePuzzles); err != nil {
			return stats, fmt.Errorf("mining: flush puzzles: %w", err)
		}
		if err := sinks.NonPuzzles.Append(sinks.NonPuzzlePath, waveNonPuzzles); err != nil {
			return stats, fmt.Errorf("mining: flush non-puzzles: %w", err)
		}

		stats.Puzzles += len(wavePuzzles)
		stats.NonPuzzles += len(waveNonPuzzles)
		stats.Waves++

		if cfg.Verbose {
			logw.Infof(ctx, "Mining: wave %v done: processed=%v puzzles=%v non-puzzles=%v frontier(next)=%v",
				wave, stats.Processed, stats.Puzzles, stats.NonPuzzles, len(next))
		} else {
			logw.Debugf(ctx, "Mining: wave %v done: processed=%v puzzles=%v non-puzzles=%v frontier(next)=%v",
				wave, stats.Processed, stats.Puzzles, stats.NonPuzzles, len(next))
		}

		frontier = next
		wave++

		select {
		case <-cancel:
			return stats, nil
		default:
		}
	}

	return stats, nil
}

func dedupeInitial(seeds []analysis.Record, seen map[string]bool) []analysis.Record {
	var out []analysis.Record
	for _, r := range seeds {
		key := fen.Canonical(r.Position)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func refill(ctx context.Context, cfg Config, seen map[string]bool) ([]analysis.Record, error) {
	n := cfg.RandomPerRun
	if n <= 0 {
		n = DefaultRandomSeedsPerRun
	}

	generated, err := cfg.RandomRefill(ctx, n)
	if err != nil {
		return nil, err
	}
	return dedupeInitial(generated, seen), nil
}
