package graph

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	"github.com/zclconf/go-cty/cty"
)

// Node is one vertex of the dependency graph. Its artifact-specific
// behavior comes from the injected Artifact; everything else (edges, state,
// signatures, executor binding) is kind-agnostic.
//
// A node's edge lists and caches are owned by the construction and scanning
// passes and are not safe for concurrent mutation. The state and the
// waiting-parents set are the exception: a scheduler reads and writes them
// from worker goroutines, so they are synchronized here.
type Node struct {
	name     string
	artifact Artifact
	builder  Builder
	explicit bool
	env      Context

	state atomic.Int32

	sources   []*Node
	sourceSet map[*Node]struct{}

	depends   []*Node
	dependSet map[*Node]struct{}

	// implicit stays uninitialized until the first scan (or until stored
	// implicit deps are applied); implicitSet non-nil marks initialized.
	implicit    []*Node
	implicitSet map[*Node]struct{}

	ignore    []*Node
	ignoreSet map[*Node]struct{}

	childrenCache []*Node

	wpMu           sync.Mutex
	waitingParents map[*Node]struct{}

	ninfo    *NodeInfo
	binfo    *BuildInfo
	cacheSig digest.Digest
	includes []*Node
	hasIncl  bool

	executor *Executor

	scanPolicy ScanPolicy

	sideEffect   bool
	alwaysBuild  bool
	precious     bool
	noClean      bool
	pseudo       bool
	linked       bool
	cached       bool
	topLevel     bool
	forceDerived bool

	tags map[string]any
}

// NewNode creates a node with the given display name. A nil artifact gets
// the neutral BaseArtifact behavior.
func NewNode(name string, artifact Artifact) *Node {
	if artifact == nil {
		artifact = BaseArtifact{}
	}
	return &Node{
		name:           name,
		artifact:       artifact,
		waitingParents: make(map[*Node]struct{}),
	}
}

// Name returns the node's display name.
func (n *Node) Name() string { return n.name }

// String implements fmt.Stringer.
func (n *Node) String() string { return n.name }

// Artifact returns the node's injected artifact strategy.
func (n *Node) Artifact() Artifact { return n.artifact }

// State returns the node's current evaluation state.
func (n *Node) State() State { return State(n.state.Load()) }

// SetState moves the node to the given evaluation state.
func (n *Node) SetState(s State) { n.state.Store(int32(s)) }

// Env returns the node's build context: its own when set, else the
// builder's, else nil.
func (n *Node) Env() Context {
	if n.env != nil {
		return n.env
	}
	if n.builder != nil {
		return n.builder.Env()
	}
	return nil
}

// SetEnv binds an explicit build context, taking precedence over the
// builder's.
func (n *Node) SetEnv(env Context) { n.env = env }

// HasBuilder reports whether any builder is bound.
func (n *Node) HasBuilder() bool { return n.builder != nil }

// Builder returns the bound builder, or nil.
func (n *Node) Builder() Builder { return n.builder }

// SetBuilder binds a builder. Whether the binding counts as explicit is
// tracked separately via SetExplicit.
func (n *Node) SetBuilder(b Builder) { n.builder = b }

// HasExplicitBuilder reports whether the bound builder was user-assigned,
// as opposed to inferred machinery that an explicit builder may override.
func (n *Node) HasExplicitBuilder() bool { return n.builder != nil && n.explicit }

// SetExplicit marks the builder binding as explicit or inferred.
func (n *Node) SetExplicit(explicit bool) { n.explicit = explicit }

// IsDerived reports whether the node is produced by the build: it has a
// builder, is a declared side effect of one, or its kind marked it derived.
func (n *Node) IsDerived() bool {
	return n.builder != nil || n.sideEffect || n.forceDerived
}

// MarkDerived forces IsDerived true for kinds that are buildable without a
// bound builder, such as aliases.
func (n *Node) MarkDerived() { n.forceDerived = true }

// SideEffect reports whether the node is a side effect of another build.
func (n *Node) SideEffect() bool { return n.sideEffect }

// SetSideEffect marks the node as a side effect of another build.
func (n *Node) SetSideEffect(v bool) { n.sideEffect = v }

// AlwaysBuild reports whether the node rebuilds unconditionally.
func (n *Node) AlwaysBuild() bool { return n.alwaysBuild }

// SetAlwaysBuild marks the node to rebuild unconditionally.
func (n *Node) SetAlwaysBuild(v bool) { n.alwaysBuild = v }

// Precious reports whether the artifact survives cleanup before rebuild.
func (n *Node) Precious() bool { return n.precious }

// SetPrecious marks the artifact to survive cleanup before rebuild.
func (n *Node) SetPrecious(v bool) { n.precious = v }

// NoClean reports whether clean operations skip the artifact.
func (n *Node) NoClean() bool { return n.noClean }

// SetNoClean marks the artifact to be skipped by clean operations.
func (n *Node) SetNoClean(v bool) { n.noClean = v }

// Pseudo reports whether the node must never exist on disk.
func (n *Node) Pseudo() bool { return n.pseudo }

// SetPseudo marks the node as one that must never exist on disk.
func (n *Node) SetPseudo(v bool) { n.pseudo = v }

// Linked reports whether the artifact is a link into a variant tree.
func (n *Node) Linked() bool { return n.linked }

// SetLinked marks the artifact as a link into a variant tree.
func (n *Node) SetLinked(v bool) { n.linked = v }

// Cached reports whether the artifact was materialized from the cache in
// this cycle.
func (n *Node) Cached() bool { return n.cached }

// SetCached records whether the artifact came from the cache.
func (n *Node) SetCached(v bool) { n.cached = v }

// TopLevel reports whether the node is a designated root of the build.
func (n *Node) TopLevel() bool { return n.topLevel }

// SetTopLevel designates the node as a root of the build.
func (n *Node) SetTopLevel(v bool) { n.topLevel = v }

// ScanPolicy returns the node's implicit-scan cache policy.
func (n *Node) ScanPolicy() ScanPolicy { return n.scanPolicy }

// SetScanPolicy sets the node's implicit-scan cache policy.
func (n *Node) SetScanPolicy(p ScanPolicy) { n.scanPolicy = p }

// Tag attaches arbitrary metadata under a key without touching any of the
// node's build-relevant fields.
func (n *Node) Tag(key string, value any) {
	if n.tags == nil {
		n.tags = make(map[string]any)
	}
	n.tags[key] = value
}

// GetTag returns the metadata stored under key, or nil.
func (n *Node) GetTag(key string) any {
	return n.tags[key]
}

// Exists reports whether the artifact is present locally.
func (n *Node) Exists() bool { return n.artifact.Exists(n) }

// Rexists reports whether the artifact is present locally or in a
// repository.
func (n *Node) Rexists() bool { return n.artifact.Rexists(n) }

// Contents returns the bytes content signatures are computed from.
func (n *Node) Contents() ([]byte, error) { return n.artifact.Contents(n) }

// IsUpToDate reports whether the artifact needs no rebuild.
func (n *Node) IsUpToDate() bool { return n.artifact.IsUpToDate(n) }

// Includes returns the memoized scan result for this node, if one is set.
func (n *Node) Includes() ([]*Node, bool) { return n.includes, n.hasIncl }

// SetIncludes memoizes a scan result; Clear drops it.
func (n *Node) SetIncludes(nodes []*Node) {
	n.includes = nodes
	n.hasIncl = true
}

// AddToWaitingParents registers a parent waiting for this node to finish.
// It reports whether the parent was newly added, so ref-counting callers
// can avoid double counting.
func (n *Node) AddToWaitingParents(parent *Node) bool {
	n.wpMu.Lock()
	defer n.wpMu.Unlock()
	if _, ok := n.waitingParents[parent]; ok {
		return false
	}
	n.waitingParents[parent] = struct{}{}
	return true
}

// WaitingParents returns the parents currently waiting on this node.
func (n *Node) WaitingParents() []*Node {
	n.wpMu.Lock()
	defer n.wpMu.Unlock()
	parents := make([]*Node, 0, len(n.waitingParents))
	for p := range n.waitingParents {
		parents = append(parents, p)
	}
	return parents
}

// Postprocess runs after the scheduler is completely done with the node in
// this cycle; it releases the waiting-parents set.
func (n *Node) Postprocess() {
	n.wpMu.Lock()
	defer n.wpMu.Unlock()
	n.waitingParents = make(map[*Node]struct{})
}

// Executor returns the executor bound to this node, creating one on demand
// when create is true. Creation binds the builder's actions over the node's
// context (falling back to the builder's); a node without a builder gets an
// empty executor so signature queries still work. With create false and no
// executor bound, it fails with ErrNoExecutor.
func (n *Node) Executor(create bool) (*Executor, error) {
	if n.executor != nil {
		return n.executor, nil
	}
	if !create {
		return nil, fmt.Errorf("node '%s': %w", n.name, ErrNoExecutor)
	}
	var actions []Action
	var overrides map[string]cty.Value
	env := n.env
	if n.builder != nil {
		actions = n.builder.Actions()
		overrides = n.builder.Overrides()
		if env == nil {
			env = n.builder.Env()
		}
	}
	n.executor = NewExecutor(env, actions, overrides, []*Node{n}, n.sources)
	return n.executor, nil
}

// SetExecutor binds a (possibly shared) executor to the node.
func (n *Node) SetExecutor(e *Executor) { n.executor = e }

// ResetExecutor drops the bound executor so the next request rebinds one.
func (n *Node) ResetExecutor() { n.executor = nil }

// ExecutorCleanup releases the bound executor's cached information, if any.
func (n *Node) ExecutorCleanup() {
	if n.executor != nil {
		n.executor.Cleanup()
	}
}

// Build runs the node's builder through its executor. Nodes without a
// builder accept the call as a no-op so source files can be driven through
// the same path. Failures come back as a *BuildError naming this node.
func (n *Node) Build(ctx context.Context, overrides map[string]cty.Value) error {
	if n.builder == nil {
		return nil
	}
	e, err := n.Executor(true)
	if err != nil {
		return err
	}
	if err := e.Execute(ctx, overrides); err != nil {
		return &BuildError{Node: n, Err: err}
	}
	return nil
}
