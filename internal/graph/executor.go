package graph

import (
	"bytes"
	"context"
	"sync"

	"github.com/girderbuild/girder/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// Executor binds one action list to a group of targets built together from
// a shared source list. Single-target nodes get one implicitly; explicitly
// sharing one executor across several targets is how multi-output builders
// are modeled.
//
// Execution is at-most-once per cycle: the first Execute runs the actions
// and every later call, including concurrent ones from sibling targets,
// returns the cached outcome. Reset starts a new cycle.
type Executor struct {
	env       Context
	overrides map[string]cty.Value
	actions   []Action
	targets   []*Node
	sources   []*Node
	sourceSet map[*Node]struct{}

	// mu guards the once-per-cycle execution state; cmu guards the
	// contents memo separately so signature queries never contend with a
	// running action.
	mu   sync.Mutex
	done bool
	err  error

	cmu          sync.Mutex
	contents     []byte
	haveContents bool
}

// NewExecutor creates an executor over the given context, actions, and
// builder overrides, bound to targets and seeded with sources.
func NewExecutor(env Context, actions []Action, overrides map[string]cty.Value, targets, sources []*Node) *Executor {
	e := &Executor{
		env:       env,
		overrides: overrides,
		actions:   actions,
		targets:   targets,
		sourceSet: make(map[*Node]struct{}),
	}
	e.AddSources(sources)
	return e
}

// BuildEnv returns the context the actions run in, before overrides.
func (e *Executor) BuildEnv() Context { return e.env }

// AllTargets returns every target covered by this executor.
func (e *Executor) AllTargets() []*Node { return e.targets }

// AllSources returns the deduplicated source list.
func (e *Executor) AllSources() []*Node { return e.sources }

// AddSources appends sources, dropping duplicates while preserving order.
func (e *Executor) AddSources(nodes []*Node) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if _, ok := e.sourceSet[n]; ok {
			continue
		}
		e.sourceSet[n] = struct{}{}
		e.sources = append(e.sources, n)
	}
}

// Execute runs the action list once for the whole target group. The first
// caller executes; everyone else, including racing goroutines, gets the
// cached result. Per-call overrides layer on top of the builder's.
func (e *Executor) Execute(ctx context.Context, overrides map[string]cty.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return e.err
	}
	e.done = true

	env := e.env
	if env != nil && len(e.overrides) > 0 {
		env = env.Override(e.overrides)
	}
	if env != nil && len(overrides) > 0 {
		env = env.Override(overrides)
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running actions for target group.", "targets", NodeList(e.targets).String())
	for _, act := range e.actions {
		if err := act.Execute(ctx, e.targets, e.sources, env); err != nil {
			e.err = err
			break
		}
	}
	return e.err
}

// Contents returns the concatenated fingerprints of the action list, used
// for action signatures. The result is memoized until Cleanup.
func (e *Executor) Contents() []byte {
	e.cmu.Lock()
	defer e.cmu.Unlock()
	if e.haveContents {
		return e.contents
	}
	env := e.env
	if env != nil && len(e.overrides) > 0 {
		env = env.Override(e.overrides)
	}
	var buf bytes.Buffer
	for _, act := range e.actions {
		buf.Write(act.Contents(e.targets, e.sources, env))
	}
	e.contents = buf.Bytes()
	e.haveContents = true
	return e.contents
}

// String renders the action fingerprints; build records store it as the
// action's text.
func (e *Executor) String() string { return string(e.Contents()) }

// ScanTargets runs the scanner over every covered target and fans the
// discovered dependencies into all of them.
func (e *Executor) ScanTargets(ctx context.Context, s Scanner) error {
	return e.scan(ctx, s, e.targets)
}

// ScanSources runs the scanner over the shared source list, if any, and
// fans the discovered dependencies into every target.
func (e *Executor) ScanSources(ctx context.Context, s Scanner) error {
	if len(e.sources) == 0 {
		return nil
	}
	return e.scan(ctx, s, e.sources)
}

func (e *Executor) scan(ctx context.Context, s Scanner, nodes []*Node) error {
	env := e.env
	var deps []*Node
	for _, node := range nodes {
		deps = append(deps, node.ImplicitDeps(env, s)...)
	}
	if len(deps) == 0 {
		return nil
	}
	ctxlog.FromContext(ctx).Debug("Scan discovered implicit dependencies.",
		"count", len(deps), "targets", NodeList(e.targets).String())
	for _, tgt := range e.targets {
		if err := tgt.AddImplicit(deps...); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup releases cached signature information. The once-per-cycle
// execution state survives so sibling targets still see the cached
// outcome; use Reset to start a new cycle.
func (e *Executor) Cleanup() {
	e.cmu.Lock()
	defer e.cmu.Unlock()
	e.contents = nil
	e.haveContents = false
}

// Reset starts a new execution cycle, forgetting the previous outcome and
// cached signatures.
func (e *Executor) Reset() {
	e.mu.Lock()
	e.done = false
	e.err = nil
	e.mu.Unlock()
	e.Cleanup()
}
