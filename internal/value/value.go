// Package value implements literal in-graph values: nodes whose contents
// are the value itself, so anything built from one rebuilds when the value
// changes even though no file is involved.
package value

import (
	"bytes"
	"fmt"

	"github.com/girderbuild/girder/internal/graph"
)

// New creates a node carrying literal. The name is only a label; two value
// nodes with the same name are distinct nodes.
func New(name string, literal []byte) *graph.Node {
	return graph.NewNode(name, &artifact{literal: literal})
}

// Write replaces the literal on a value node, typically from a builder's
// action that computes it.
func Write(n *graph.Node, data []byte) error {
	a, ok := n.Artifact().(*artifact)
	if !ok {
		return fmt.Errorf("'%s' is not a value node", n)
	}
	a.literal = data
	return nil
}

// Read returns a value node's literal.
func Read(n *graph.Node) ([]byte, error) {
	a, ok := n.Artifact().(*artifact)
	if !ok {
		return nil, fmt.Errorf("'%s' is not a value node", n)
	}
	return a.literal, nil
}

// artifact implements graph.Artifact for values.
type artifact struct {
	graph.BaseArtifact
	literal []byte
}

// Contents returns the literal followed by the contents of the node's
// children, so a value composed from other nodes signs over all of them.
func (a *artifact) Contents(n *graph.Node) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(a.literal)
	for _, kid := range n.Children() {
		data, err := kid.Contents()
		if err != nil {
			return nil, fmt.Errorf("contents of value '%s': %w", n, err)
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// IsUpToDate reports whether the value needs rebuilding. A plain literal
// is always current; a derived value is rebuilt once per session because
// nothing persists it.
func (a *artifact) IsUpToDate(n *graph.Node) bool {
	return !n.IsDerived()
}
