// Package builder wires actions, an environment, and scanners into a
// reusable recipe that can be bound to target nodes.
package builder

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/girderbuild/girder/internal/graph"
)

// ActionFunc is a single build step. Fingerprint identifies the step's
// behavior for change detection; two actions with the same fingerprint are
// considered equivalent when deciding whether a target must rebuild.
type ActionFunc struct {
	Fingerprint string
	Run         func(ctx context.Context, targets, sources []*graph.Node, env graph.Context) error
}

// Execute runs the step. A nil Run is a no-op, which lets fingerprint-only
// actions stand in for externally produced files.
func (a ActionFunc) Execute(ctx context.Context, targets, sources []*graph.Node, env graph.Context) error {
	if a.Run == nil {
		return nil
	}
	return a.Run(ctx, targets, sources, env)
}

// Contents returns the action's contribution to build signatures.
func (a ActionFunc) Contents(targets, sources []*graph.Node, env graph.Context) []byte {
	return []byte(a.Fingerprint)
}

// Options configures a Builder.
type Options struct {
	Actions       []graph.Action
	Env           graph.Context
	Overrides     map[string]cty.Value
	TargetScanner graph.Scanner
	SourceScanner graph.Scanner
}

// Builder is a bindable recipe. Binding it to a node marks the node derived
// and supplies the actions and environment its executor will run with.
type Builder struct {
	opts Options
}

// New creates a Builder from opts.
func New(opts Options) *Builder { return &Builder{opts: opts} }

// Actions returns the build steps in execution order.
func (b *Builder) Actions() []graph.Action { return b.opts.Actions }

// Env returns the construction environment, which may be nil.
func (b *Builder) Env() graph.Context { return b.opts.Env }

// Overrides returns variables layered over the environment at execution.
func (b *Builder) Overrides() map[string]cty.Value { return b.opts.Overrides }

// TargetScanner returns the scanner applied to targets built by this
// builder, or nil.
func (b *Builder) TargetScanner() graph.Scanner { return b.opts.TargetScanner }

// SourceScanner returns the scanner selector applied to this builder's
// sources, or nil.
func (b *Builder) SourceScanner() graph.Scanner { return b.opts.SourceScanner }

// Bind attaches b to target as its explicit builder and records sources as
// the target's explicit sources.
func Bind(b *Builder, target *graph.Node, sources ...*graph.Node) error {
	if target == nil {
		return fmt.Errorf("binding builder: %w", graph.ErrNilChild)
	}
	target.SetBuilder(b)
	target.SetExplicit(true)
	target.ResetExecutor()
	if len(sources) == 0 {
		return nil
	}
	return target.AddSource(sources...)
}

// BindGroup attaches b to every target and gives the whole group one shared
// executor, so the action list fires once no matter how many of the targets
// are requested. All sources feed the group.
func BindGroup(b *Builder, targets []*graph.Node, sources ...*graph.Node) (*graph.Executor, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("binding builder group: no targets")
	}
	for _, target := range targets {
		if err := Bind(b, target, sources...); err != nil {
			return nil, err
		}
	}
	ex := graph.NewExecutor(b.Env(), b.Actions(), b.Overrides(), targets, sources)
	for _, target := range targets {
		target.SetExecutor(ex)
	}
	return ex, nil
}
