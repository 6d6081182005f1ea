// Package alias implements phony named targets that aggregate other
// nodes. An alias never exists on disk; requesting one evaluates its
// children, and its signature is derived from theirs.
package alias

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/girderbuild/girder/internal/graph"
)

// Registry owns the alias nodes of one build, one per name.
type Registry struct {
	mu    sync.Mutex
	nodes map[string]*graph.Node
	art   *artifact
}

// NewRegistry creates an empty alias registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*graph.Node), art: &artifact{}}
}

// Alias returns the alias node for name, creating it on first use. Aliases
// are always derived, so an evaluation pass descends into their children
// even when no builder is attached.
func (r *Registry) Alias(name string) *graph.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[name]; ok {
		return n
	}
	n := graph.NewNode(name, r.art)
	n.MarkDerived()
	r.nodes[name] = n
	return n
}

// Lookup returns the alias node for name only if it was already created.
func (r *Registry) Lookup(name string) (*graph.Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[name]
	return n, ok
}

// artifact implements graph.Artifact for aliases.
type artifact struct {
	graph.BaseArtifact
}

// Exists reports false; an alias has no on-disk presence.
func (artifact) Exists(*graph.Node) bool { return false }

// Rexists mirrors Exists.
func (artifact) Rexists(*graph.Node) bool { return false }

// Contents concatenates the children's content signatures, so an alias
// signs differently exactly when a child's contents change.
func (artifact) Contents(n *graph.Node) ([]byte, error) {
	var buf bytes.Buffer
	for _, kid := range n.Children() {
		sig, err := kid.CSig()
		if err != nil {
			return nil, fmt.Errorf("contents of alias '%s': %w", n, err)
		}
		buf.WriteString(sig.String())
	}
	return buf.Bytes(), nil
}

// IsUpToDate reports whether every child is current; the alias itself has
// nothing else to check.
func (artifact) IsUpToDate(n *graph.Node) bool {
	return n.ChildrenAreUpToDate()
}
