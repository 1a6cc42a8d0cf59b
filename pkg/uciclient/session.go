package uciclient

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/herohde/puzzleminer/pkg/analysis"
	"github.com/herohde/puzzleminer/pkg/board"
	"github.com/herohde/puzzleminer/pkg/board/fen"
	"github.com/herohde/puzzleminer/pkg/filter"
	"github.com/herohde/puzzleminer/pkg/protocol"
	"github.com/seekerror/logw"
)

// handshakeTimeout bounds how long Spawn waits for the readyMarker before
// treating the engine as unresponsive.
const handshakeTimeout = 10 * time.Second

// gracePeriod is how long Analyze waits for a trailing bestmove line after
// sending the stop command, to absorb the engine's own shutdown latency.
const gracePeriod = 250 * time.Millisecond

// closeGrace bounds how long Close waits for the subprocess to exit after
// the quit command before escalating to a forced kill.
const closeGrace = 500 * time.Millisecond

// Session owns exactly one spawned engine subprocess. Its exported API is a
// synchronous Analyze plus lifecycle management; only one Analyze may be
// in flight at a time (enforced here as a second line of defense, in
// addition to the pool's exclusive free-list).
type Session struct {
	desc protocol.Descriptor
	tag  string

	cmd   *exec.Cmd
	in    io.WriteCloser
	lines <-chan string

	state int32 // State, accessed atomically so State() can be read without blocking an in-flight Analyze.

	mu sync.Mutex
}

// Spawn starts the engine subprocess described by desc and runs the initial
// handshake (init lines, wait for readyMarker, option-set lines). On any
// failure the subprocess is reaped and the returned error describes the
// failure; no Session is returned in that case.
func Spawn(ctx context.Context, desc protocol.Descriptor) (*Session, error) {
	if err := desc.Validate(true); err != nil {
		return nil, fmt.Errorf("spawn: invalid protocol descriptor: %w", err)
	}

	cmd := exec.Command(desc.Path)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("spawn: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("spawn: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("spawn: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn: start %v: %w", desc.Path, err)
	}

	s := &Session{
		desc:  desc,
		tag:   desc.Path,
		cmd:   cmd,
		in:    stdin,
		lines: readLines(ctx, desc.Path, stdout),
		state: int32(Spawning),
	}
	go drainStderr(ctx, desc.Path, stderr)

	if err := s.handshake(ctx); err != nil {
		_ = s.kill()
		return nil, err
	}
	return s, nil
}

func drainStderr(ctx context.Context, tag string, r io.Reader) {
	for line := range readLines(ctx, tag+" stderr", r) {
		logw.Warningf(ctx, "%v stderr: %v", tag, line)
	}
}

func (s *Session) handshake(ctx context.Context) error {
	s.setState(Handshaking)

	for _, line := range s.desc.Init {
		if err := writeLine(ctx, s.tag, s.in, line); err != nil {
			s.setState(Failed)
			return fmt.Errorf("handshake: write %q: %w", line, err)
		}
	}

	timeout := time.NewTimer(handshakeTimeout)
	defer timeout.Stop()

	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				s.setState(Failed)
				return fmt.Errorf("handshake: engine exited before %q", s.desc.ReadyMarker)
			}
			if strings.TrimSpace(line) == s.desc.ReadyMarker {
				for _, opt := range s.desc.OptionCommands() {
					if err := writeLine(ctx, s.tag, s.in, opt); err != nil {
						s.setState(Failed)
						return fmt.Errorf("handshake: write option %q: %w", opt, err)
					}
				}
				s.setState(Idle)
				return nil
			}
		case <-timeout.C:
			s.setState(Failed)
			return fmt.Errorf("handshake: timed out waiting for %q", s.desc.ReadyMarker)
		}
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Session) setState(st State) {
	atomic.StoreInt32(&s.state, int32(st))
}

// Analyze runs one bounded analysis of pos. On return the session is Idle
// again and ready for the next job, unless the engine misbehaved (broken
// pipe, unexpected exit), in which case the session transitions to Failed
// and the error is returned alongside an error Analysis.
//
// accel, if non-nil, is evaluated against the partial analysis after every
// info line; once it turns true the session requests early termination the
// same way a wall-clock deadline would, absorbing the engine's reply within
// gracePeriod.
func (s *Session) Analyze(ctx context.Context, pos *board.Position, accel filter.Expr, nodeCap, timeMs int) (analysis.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != Idle {
		return analysis.Error(), fmt.Errorf("analyze: session not idle: %v", st)
	}
	s.setState(Analyzing)

	if err := writeLine(ctx, s.tag, s.in, fmt.Sprintf("position fen %v", fen.Encode(pos))); err != nil {
		s.setState(Failed)
		return analysis.Error(), fmt.Errorf("analyze: write position: %w", err)
	}
	if err := writeLine(ctx, s.tag, s.in, s.desc.FormatGoCommand(nodeCap, timeMs)); err != nil {
		s.setState(Failed)
		return analysis.Error(), fmt.Errorf("analyze: write go: %w", err)
	}

	builders := map[int]*pvBuilder{}
	bound := analysis.Exact

	deadline := time.NewTimer(time.Duration(timeMs) * time.Millisecond)
	defer deadline.Stop()

	var grace *time.Timer
	defer func() {
		if grace != nil {
			grace.Stop()
		}
	}()
	stopped := false

	for {
		var graceCh <-chan time.Time
		if grace != nil {
			graceCh = grace.C
		}

		select {
		case line, ok := <-s.lines:
			if !ok {
				s.setState(Failed)
				return analysis.Error(), fmt.Errorf("analyze: engine exited mid-job")
			}

			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}

			switch fields[0] {
			case s.desc.BestmovePrefix:
				a := s.finish(fields, builders, bound, nodeCap)
				s.setState(Idle)
				return a, nil

			case s.desc.InfoPrefix:
				info := s.desc.InfoGrammar.Scan(fields[1:])
				updateBuilders(builders, info)
				switch info.Bound {
				case "lower":
					bound = analysis.Lower
				case "upper":
					bound = analysis.Upper
				}

				if !stopped && accel != nil {
					partial := assemble(builders, bound, analysis.TimeCap)
					if filter.Eval(accel, filter.Context{Position: pos, Analysis: partial}) {
						logw.Debugf(ctx, "%v accelerate predicate satisfied; requesting stop", s.tag)
						stopped = true
						_ = writeLine(ctx, s.tag, s.in, s.desc.StopCommand)
						grace = time.NewTimer(gracePeriod)
					}
				}
			}

		case <-deadline.C:
			if !stopped {
				stopped = true
				_ = writeLine(ctx, s.tag, s.in, s.desc.StopCommand)
				grace = time.NewTimer(gracePeriod)
			}

		case <-graceCh:
			a := assemble(builders, bound, analysis.TimeCap)
			s.setState(Idle)
			return a, nil
		}
	}
}

// finish assembles the final Analysis once a bestmove line has arrived.
// terminatedBy is "bestmove" unless the best PV's node count already met
// nodeCap, in which case the node cap is the more informative cap to report
// (the session cannot otherwise distinguish "engine finished naturally"
// from "engine stopped itself because it hit its node budget").
func (s *Session) finish(fields []string, builders map[int]*pvBuilder, bound analysis.Bound, nodeCap int) analysis.Analysis {
	a := assemble(builders, bound, analysis.BestMove)

	move := "0000"
	if len(fields) > 1 {
		move = fields[1]
	}

	if move == "0000" || move == "(none)" {
		a.BestMove = nil
	} else if m, err := board.ParseMove(move); err == nil {
		a.BestMove = &m
		if len(a.PV) == 0 || len(a.PV[0].Moves) == 0 || !a.PV[0].Moves[0].Equals(m) {
			a.PV = append([]analysis.PV{{MultiPV: 0, Moves: []board.Move{m}}}, a.PV...)
		}
	}

	if best, ok := a.BestPV(); ok && nodeCap > 0 && best.Nodes >= uint64(nodeCap) {
		a.TerminatedBy = analysis.NodeCap
	}
	return a
}

// pvBuilder accumulates the last-seen fields for one multipv index; each
// field present on a later info line for that index overwrites the earlier
// value, and fields absent from it keep their earlier value.
type pvBuilder struct {
	score analysis.Score
	depth int
	nodes uint64
	moves []board.Move
}

func updateBuilders(builders map[int]*pvBuilder, info protocol.InfoFields) {
	idx := 0
	if info.HasMultiPV {
		idx = info.MultiPV - 1
		if idx < 0 {
			idx = 0
		}
	}

	b, ok := builders[idx]
	if !ok {
		b = &pvBuilder{}
		builders[idx] = b
	}

	if info.HasDepth {
		b.depth = info.Depth
	}
	if info.HasNodes {
		b.nodes = info.Nodes
	}
	if info.HasScoreCP {
		b.score = analysis.CP(info.ScoreCP)
	}
	if info.HasMate {
		b.score = analysis.Mate(info.ScoreMate)
	}
	if len(info.PV) > 0 {
		if moves, err := parsePVMoves(info.PV); err == nil {
			// A malformed pv token is a protocol glitch: keep the previous
			// moves for this index rather than aborting the job.
			b.moves = moves
		}
	}
}

func parsePVMoves(tokens []string) ([]board.Move, error) {
	moves := make([]board.Move, 0, len(tokens))
	for _, t := range tokens {
		m, err := board.ParseMove(t)
		if err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return moves, nil
}

// assemble renders the builders accumulated so far into an Analysis, sorted
// by multipv index with index 0 first.
func assemble(builders map[int]*pvBuilder, bound analysis.Bound, terminatedBy analysis.TerminatedBy) analysis.Analysis {
	idxs := make([]int, 0, len(builders))
	for idx := range builders {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)

	pv := make([]analysis.PV, 0, len(idxs))
	for rank, idx := range idxs {
		b := builders[idx]
		pv = append(pv, analysis.PV{
			MultiPV: rank,
			Moves:   b.moves,
			Score:   b.score,
			Depth:   b.depth,
			Nodes:   b.nodes,
		})
	}

	var bestMove *board.Move
	if len(pv) > 0 && len(pv[0].Moves) > 0 {
		m := pv[0].Moves[0]
		bestMove = &m
	}

	return analysis.Analysis{BestMove: bestMove, Bound: bound, TerminatedBy: terminatedBy, PV: pv}
}

// Close requests a clean shutdown (quitCommand), waiting up to closeGrace
// for the subprocess to exit before forcibly killing it. Idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st == Closed || st == Closing {
		return nil
	}
	s.setState(Closing)

	_ = writeLine(ctx, s.tag, s.in, s.desc.QuitCommand)

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(closeGrace):
		logw.Warningf(ctx, "%v did not exit within %v of quit; killing", s.tag, closeGrace)
		_ = s.cmd.Process.Kill()
		<-done
	}

	s.setState(Closed)
	return nil
}

func (s *Session) kill() error {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.setState(Failed)
	return s.cmd.Wait()
}
