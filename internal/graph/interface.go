package graph

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// Context is the build environment a node is evaluated in. It supplies
// variable values to actions and scanners and can be layered with
// overrides without mutating the original.
type Context interface {
	// Value reports the value bound to key and whether it is set.
	Value(key string) (cty.Value, bool)
	// Lookup returns the value bound to key, or def when unset.
	Lookup(key string, def cty.Value) cty.Value
	// Override returns a copy of the context with vars layered on top.
	Override(vars map[string]cty.Value) Context
	// Scanners returns the context's scanner collection, most preferred
	// first.
	Scanners() []Scanner
}

// Action is one executable step of a builder. Contents must be a stable
// fingerprint of what Execute would do, so action changes invalidate
// previously built targets.
type Action interface {
	Execute(ctx context.Context, targets, sources []*Node, env Context) error
	Contents(targets, sources []*Node, env Context) []byte
}

// Builder describes how a derived node is produced.
type Builder interface {
	// Actions returns the steps run to build the target group.
	Actions() []Action
	// Env returns the builder's own build context, used when the node
	// carries none.
	Env() Context
	// Overrides returns variable overrides applied on top of the build
	// context for this builder's actions.
	Overrides() map[string]cty.Value
	// TargetScanner returns the scanner applied to targets, or nil.
	TargetScanner() Scanner
	// SourceScanner returns the scanner applied to sources, or nil.
	SourceScanner() Scanner
}

// Scanner discovers implicit dependencies of a node.
type Scanner interface {
	// Scan returns the nodes directly included by n.
	Scan(n *Node, env Context) []*Node
	// RecurseNodes filters which discovered nodes should themselves be
	// scanned. Returning nil stops recursion.
	RecurseNodes(nodes []*Node) []*Node
	// Select returns the scanner to use for a particular node, or nil
	// when the scanner does not apply to it.
	Select(n *Node) Scanner
}

// Artifact supplies the kind-specific behavior of a node: how to check its
// existence, read its contents, decide whether it is current, and talk to
// the signature database and artifact cache. BaseArtifact provides neutral
// defaults; concrete kinds embed it and override what they need.
type Artifact interface {
	// Exists reports whether the artifact is present locally.
	Exists(n *Node) bool
	// Rexists reports whether the artifact is present locally or in a
	// repository.
	Rexists(n *Node) bool
	// Contents returns the bytes that content signatures are computed
	// from.
	Contents(n *Node) ([]byte, error)
	// IsUpToDate reports whether the artifact needs no rebuild.
	IsUpToDate(n *Node) bool
	// DepChanged reports whether a child changed relative to its
	// previously recorded info.
	DepChanged(child *Node, prev *NodeInfo) bool

	// NewNodeInfo and NewBuildInfo create the kind's signature records.
	NewNodeInfo(n *Node) *NodeInfo
	NewBuildInfo(n *Node) *BuildInfo
	// UpdateNodeInfo refreshes info from the artifact's observable state.
	UpdateNodeInfo(n *Node, info *NodeInfo) error

	// FoundIncludes returns the direct includes a scanner discovers in n.
	FoundIncludes(n *Node, env Context, s Scanner) []*Node

	// StoredInfo fetches the record from the previous build, if any.
	// Absence is reported, never an error.
	StoredInfo(n *Node) (*StoredInfo, bool)
	// StoreInfo persists the node's current records for the next build.
	StoreInfo(n *Node) error
	// StoredImplicit returns the implicit dependency list recorded by the
	// previous build, or nil.
	StoredImplicit(n *Node) []*Node

	// PushToCache offers the built artifact to the cache.
	PushToCache(n *Node) error
	// RetrieveFromCache reports whether the artifact was materialized
	// from the cache instead of building.
	RetrieveFromCache(n *Node) bool
}
