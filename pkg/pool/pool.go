// Package pool maintains a fixed-size set of uciclient.Session instances and
// distributes a batch of analysis jobs across them under per-job resource
// limits, replacing sessions that fail without dropping their jobs.
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/herohde/puzzleminer/pkg/analysis"
	"github.com/herohde/puzzleminer/pkg/filter"
	"github.com/herohde/puzzleminer/pkg/protocol"
	"github.com/herohde/puzzleminer/pkg/uciclient"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/lang"
)

// Pool owns N engine sessions and runs AnalyseAll batches against them. The
// free-list (free) is the only contended resource; it is a buffered channel
// so acquiring/releasing a session is a short, lock-free operation.
type Pool struct {
	desc protocol.Descriptor
	size int

	free chan *uciclient.Session

	mu     sync.Mutex
	all    []*uciclient.Session // every session ever spawned, for Close.
	closed bool
}

// New spawns size engine sessions per desc. If any spawn fails, every
// session spawned so far is closed and the error is returned; no partial
// pool is handed back to the caller.
func New(ctx context.Context, desc protocol.Descriptor, size int) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool: size must be >= 1, got %v", size)
	}

	p := &Pool{desc: desc, size: size, free: make(chan *uciclient.Session, size)}
	for i := 0; i < size; i++ {
		s, err := uciclient.Spawn(ctx, desc)
		if err != nil {
			p.Close(ctx)
			return nil, fmt.Errorf("pool: spawn session %v/%v: %w", i+1, size, err)
		}
		p.track(s)
		p.free <- s
	}

	logw.Infof(ctx, "Pool: spawned %v engine session(s) from %v", size, desc.Path)
	return p, nil
}

func (p *Pool) track(s *uciclient.Session) {
	p.mu.Lock()
	p.all = append(p.all, s)
	p.mu.Unlock()
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// AnalyseAll mutates each record's Analysis in place and returns only once
// every record has either a populated analysis or an error analysis
// (terminatedBy="error"). Ordering of completions is unspecified; callers
// that need input order preserved rely on writing back into the same
// record slots, which AnalyseAll does.
//
// cancel, if non-nil, is a single cooperative cancel token: once closed,
// workers stop launching new searches and tag all remaining records with
// an error analysis.
func (p *Pool) AnalyseAll(ctx context.Context, records []*analysis.Record, accel filter.Expr, nodeCap, timeMs int, cancel <-chan struct{}) {
	if len(records) == 0 {
		return
	}

	jobs := make(chan int, len(records))
	for i := range records {
		jobs <- i
	}
	close(jobs)

	workers := p.size
	if workers > len(records) {
		workers = len(records)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, records, jobs, accel, nodeCap, timeMs, cancel)
		}()
	}
	wg.Wait()
}

func (p *Pool) worker(ctx context.Context, records []*analysis.Record, jobs <-chan int, accel filter.Expr, nodeCap, timeMs int, cancel <-chan struct{}) {
	for idx := range jobs {
		select {
		case <-cancel:
			records[idx].Analysis = lang.Some(analysis.Error())
			continue
		default:
		}

		sess := p.acquire(cancel)
		if sess == nil {
			records[idx].Analysis = lang.Some(analysis.Error())
			continue
		}

		a, err := sess.Analyze(ctx, records[idx].Position, accel, nodeCap, timeMs)
		if err != nil {
			logw.Warningf(ctx, "Pool: analysis failed, replacing session: %v", err)
			a = analysis.Error()
			p.replace(ctx, sess)
		} else {
			p.release(sess)
		}
		records[idx].Analysis = lang.Some(a)
	}
}

func (p *Pool) acquire(cancel <-chan struct{}) *uciclient.Session {
	select {
	case s := <-p.free:
		return s
	case <-cancel:
		return nil
	}
}

func (p *Pool) release(s *uciclient.Session) {
	p.free <- s
}

// replace spawns a replacement for a failed session in the background,
// without blocking the caller whose job just failed. If the pool has
// already been closed, no replacement is spawned.
func (p *Pool) replace(ctx context.Context, failed *uciclient.Session) {
	go func() {
		_ = failed.Close(ctx)

		if p.isClosed() {
			return
		}

		s, err := uciclient.Spawn(ctx, p.desc)
		if err != nil {
			logw.Errorf(ctx, "Pool: failed to spawn replacement session: %v", err)
			return
		}
		p.track(s)

		if p.isClosed() {
			_ = s.Close(ctx)
			return
		}
		p.free <- s
	}()
}

// Close sends the quit command to every session ever spawned by this pool
// (waiting up to 500ms per session before forcibly terminating it, per
// Session.Close) and returns once all are down. Idempotent.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	sessions := append([]*uciclient.Session(nil), p.all...)
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *uciclient.Session) {
			defer wg.Done()
			_ = s.Close(ctx)
		}(s)
	}
	wg.Wait()

	logw.Infof(ctx, "Pool: closed (%v session(s))", len(sessions))
}
