package graph

import "strings"

// NodeList is an ordered collection of nodes that displays element-wise,
// so diagnostics show the nodes rather than an opaque slice header.
type NodeList []*Node

// String implements fmt.Stringer.
func (l NodeList) String() string {
	names := make([]string, len(l))
	for i, n := range l {
		names[i] = n.String()
	}
	return "[" + strings.Join(names, ", ") + "]"
}
