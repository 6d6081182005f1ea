// Package scheduler evaluates dependency graphs: it discovers every node
// reachable from the requested roots, then runs a worker pool that builds
// stale targets children-first, skipping whatever an upstream failure makes
// unbuildable.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/girderbuild/girder/internal/ctxlog"
	"github.com/girderbuild/girder/internal/graph"
)

// Options configures a Scheduler.
type Options struct {
	// Workers is the size of the worker pool. Zero or less means one per
	// CPU.
	Workers int

	// KeepGoing keeps independent subgraphs building after a failure
	// instead of cancelling the whole run.
	KeepGoing bool

	// LogLevel and LogFormat shape the pass logger when LogOutput is
	// set: "debug" through "error", and "json" or "text".
	LogLevel  string
	LogFormat string

	// LogOutput is where the pass logger writes. Nil means Run logs
	// through whatever logger the context already carries.
	LogOutput io.Writer
}

// Scheduler runs evaluation passes over a graph. It holds no per-run
// state, so one Scheduler can serve successive passes.
type Scheduler struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Scheduler from opts, building its own isolated logger
// when opts asks for one.
func New(opts Options) *Scheduler {
	s := &Scheduler{opts: opts}
	if opts.LogOutput != nil {
		s.logger = ctxlog.New(opts.LogLevel, opts.LogFormat, opts.LogOutput)
	}
	return s
}

// runState is the bookkeeping of one evaluation pass.
type runState struct {
	ready   chan *graph.Node
	pending map[*graph.Node]*atomic.Int32
	skips   map[*graph.Node]*sync.Once
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu   sync.Mutex
	errs map[*graph.Node]error
}

// setErr records the first error for a node.
func (st *runState) setErr(n *graph.Node, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.errs[n]; !ok {
		st.errs[n] = err
	}
}

func (st *runState) err(n *graph.Node) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.errs[n]
}

// Run evaluates roots and everything they depend on, building what is
// stale. It returns nil when every requested target ended up current.
func (s *Scheduler) Run(ctx context.Context, roots ...*graph.Node) error {
	if s.logger != nil {
		ctx = ctxlog.WithLogger(ctx, s.logger)
	}
	logger := ctxlog.FromContext(ctx)

	// First pass: walk children-first from every root, scanning each node
	// on the way down so implicit dependencies join the traversal, and
	// rejecting cycles.
	var order []*graph.Node
	seen := make(map[*graph.Node]struct{})
	var cycleErr, scanErr error
	for _, root := range roots {
		root.SetTopLevel(true)
		w := graph.NewWalker(root, graph.WalkerOptions{
			Kids: func(n, _ *graph.Node) []*graph.Node {
				if err := n.Scan(ctx); err != nil && scanErr == nil {
					scanErr = err
				}
				return n.Children()
			},
			Cycle: func(n *graph.Node, stack []*graph.Node) {
				if cycleErr == nil {
					cycleErr = fmt.Errorf("cycle detected involving '%s': %s", n, graph.NodeList(stack))
				}
			},
		})
		for n := w.Next(); n != nil; n = w.Next() {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			order = append(order, n)
		}
	}
	if cycleErr != nil {
		return cycleErr
	}
	if scanErr != nil {
		return fmt.Errorf("scanning for implicit dependencies: %w", scanErr)
	}

	// Second pass: reset per-pass node state left over from an earlier
	// run of the same graph.
	for _, n := range order {
		n.SetState(graph.NoState)
		n.Postprocess()
		if e, err := n.Executor(false); err == nil {
			e.Reset()
		}
	}

	// Third pass: count unfinished children and register each node with
	// the children it waits on.
	st := &runState{
		ready:   make(chan *graph.Node, len(order)),
		pending: make(map[*graph.Node]*atomic.Int32, len(order)),
		skips:   make(map[*graph.Node]*sync.Once, len(order)),
		errs:    make(map[*graph.Node]error),
	}
	for _, n := range order {
		st.pending[n] = &atomic.Int32{}
		st.skips[n] = &sync.Once{}
	}
	for _, n := range order {
		for _, kid := range n.Children() {
			if kid.AddToWaitingParents(n) {
				st.pending[n].Add(1)
			}
		}
	}

	st.wg.Add(len(order))
	for _, n := range order {
		if st.pending[n].Load() == 0 {
			n.SetState(graph.Pending)
			st.ready <- n
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	st.cancel = cancel

	workers := s.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger.Info("▶️ Starting evaluation pass.", "roots", len(roots), "nodes", len(order), "workers", workers)

	g, workerCtx := errgroup.WithContext(runCtx)
	for i := 0; i < workers; i++ {
		workerID := i
		g.Go(func() error {
			s.worker(workerCtx, st, workerID)
			return nil
		})
	}

	st.wg.Wait()
	close(st.ready)
	if err := g.Wait(); err != nil {
		return err
	}

	return s.summarize(ctx, st, order)
}

// worker consumes ready nodes until the channel closes.
func (s *Scheduler) worker(ctx context.Context, st *runState, workerID int) {
	logger := ctxlog.FromContext(ctx).With("workerID", workerID)
	logger.Debug("Worker started.")
	for n := range st.ready {
		if ctx.Err() != nil {
			s.skipNode(ctx, st, n, ctx.Err())
			continue
		}
		nodeLogger := logger.With("node", n.Name())
		nodeLogger.Debug("Worker picked up node for evaluation.")
		n.SetState(graph.Executing)
		if err := s.evaluate(ctx, n); err != nil {
			nodeLogger.Error("Node evaluation failed.", "error", err)
			n.SetState(graph.Failed)
			st.setErr(n, err)
			if !s.opts.KeepGoing {
				st.cancel()
			}
			s.skipWaiting(ctx, st, n)
			n.Postprocess()
			st.wg.Done()
			continue
		}
		nodeLogger.Debug("Node evaluation succeeded.", "state", n.State())
		for _, parent := range n.WaitingParents() {
			if st.pending[parent].Add(-1) == 0 {
				nodeLogger.Debug("Unlocking waiting parent.", "parent", parent.Name())
				parent.SetState(graph.Pending)
				st.ready <- parent
			}
		}
		n.Postprocess()
		st.wg.Done()
	}
	logger.Debug("Worker finished.")
}

// skipNode marks one node skipped exactly once and propagates to its
// waiting parents.
func (s *Scheduler) skipNode(ctx context.Context, st *runState, n *graph.Node, cause error) {
	st.skips[n].Do(func() {
		ctxlog.FromContext(ctx).Warn("Skipping node.", "node", n.Name(), "error", cause)
		n.SetState(graph.Failed)
		st.setErr(n, cause)
		s.skipWaiting(ctx, st, n)
		st.wg.Done()
	})
}

// skipWaiting marks every parent waiting on n as failed, recursively, so
// nothing downstream of a failure is left pending.
func (s *Scheduler) skipWaiting(ctx context.Context, st *runState, n *graph.Node) {
	for _, parent := range n.WaitingParents() {
		p := parent
		st.skips[p].Do(func() {
			ctxlog.FromContext(ctx).Warn("Skipping dependent target due to upstream failure.", "node", p.Name(), "dependency", n.Name())
			p.SetState(graph.Failed)
			st.setErr(p, fmt.Errorf("skipped due to upstream failure of '%s'", n))
			st.wg.Done()
			s.skipWaiting(ctx, st, p)
		})
	}
}

// evaluate brings one node up to date: visits current nodes, and prepares,
// builds or retrieves, and records stale ones.
func (s *Scheduler) evaluate(ctx context.Context, n *graph.Node) error {
	logger := ctxlog.FromContext(ctx).With("node", n.Name())

	if !n.IsDerived() {
		// Leaf artifact: nothing to build, just refresh and persist its
		// record. A missing source surfaces here as a stat error.
		if err := n.Visited(); err != nil {
			return err
		}
		n.SetState(graph.UpToDate)
		return nil
	}

	if n.ChildrenAreUpToDate() && n.IsUpToDate() {
		logger.Info("✅ Target is up to date.")
		if err := n.Visited(); err != nil {
			return err
		}
		n.SetState(graph.UpToDate)
		return nil
	}

	if reason := n.Explain(); reason != "" {
		logger.Debug("Rebuild reason.", "reason", strings.TrimSuffix(reason, "\n"))
	}

	if err := n.Prepare(); err != nil {
		return err
	}

	if n.RetrieveFromCache() {
		logger.Info("✅ Retrieved target from cache.")
		if err := n.Built(); err != nil {
			return err
		}
		n.SetState(graph.Executed)
		return n.StoreInfo()
	}

	logger.Info("▶️ Building target.")
	if err := n.Build(ctx, nil); err != nil {
		return err
	}
	if err := n.Built(); err != nil {
		return err
	}
	n.SetState(graph.Executed)
	if err := n.PushToCache(); err != nil {
		logger.Warn("Could not push target to cache.", "error", err)
	}
	if err := n.StoreInfo(); err != nil {
		return err
	}
	logger.Info("✅ Built target.")
	return nil
}

// summarize aggregates per-node failures into the pass result, filtering
// symptoms down to root causes.
func (s *Scheduler) summarize(ctx context.Context, st *runState, order []*graph.Node) error {
	logger := ctxlog.FromContext(ctx)
	var failed []string
	var rootCause error
	for _, n := range order {
		if n.State() != graph.Failed {
			continue
		}
		err := st.err(n)
		logger.Error("Target failed.", "node", n.Name(), "error", err)
		// A skipped target is a symptom, not a cause.
		if err != nil && !strings.HasPrefix(err.Error(), "skipped") && !errors.Is(err, context.Canceled) {
			failed = append(failed, n.Name())
			if rootCause == nil {
				rootCause = err
			}
		}
	}
	if rootCause != nil {
		return fmt.Errorf("evaluation failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Info("✅ Finished evaluation pass.", "nodes", len(order))
	return nil
}
