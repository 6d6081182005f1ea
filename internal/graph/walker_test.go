package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(w *Walker) []*Node {
	var out []*Node
	for n := w.Next(); n != nil; n = w.Next() {
		out = append(out, n)
	}
	return out
}

func TestWalkerPostOrder(t *testing.T) {
	// n1 -> n2 -> n4, n5
	//    -> n3 -> n6, n7
	n1 := NewNode("n1", nil)
	n2 := NewNode("n2", nil)
	n3 := NewNode("n3", nil)
	n4 := NewNode("n4", nil)
	n5 := NewNode("n5", nil)
	n6 := NewNode("n6", nil)
	n7 := NewNode("n7", nil)
	require.NoError(t, n1.AddSource(n2, n3))
	require.NoError(t, n2.AddSource(n4, n5))
	require.NoError(t, n3.AddDependency(n6, n7))

	w := NewWalker(n1, WalkerOptions{})
	assert.False(t, w.Done())
	assert.Equal(t, []*Node{n4, n5, n2, n6, n7, n3, n1}, collect(w))
	assert.True(t, w.Done())
	assert.Nil(t, w.Next())
}

func TestWalkerSingleNode(t *testing.T) {
	n := NewNode("n", nil)
	w := NewWalker(n, WalkerOptions{})
	assert.Equal(t, []*Node{n}, collect(w))
}

func TestWalkerDiamond(t *testing.T) {
	// n1 -> n2 -> n4
	//    -> n3 -> n4
	n1 := NewNode("n1", nil)
	n2 := NewNode("n2", nil)
	n3 := NewNode("n3", nil)
	n4 := NewNode("n4", nil)
	require.NoError(t, n1.AddSource(n2, n3))
	require.NoError(t, n2.AddSource(n4))
	require.NoError(t, n3.AddSource(n4))

	var cycles int
	w := NewWalker(n1, WalkerOptions{
		Cycle: func(*Node, []*Node) { cycles++ },
	})

	// The shared node is emitted exactly once and is not a cycle.
	assert.Equal(t, []*Node{n4, n2, n3, n1}, collect(w))
	assert.Zero(t, cycles)
}

func TestWalkerCycle(t *testing.T) {
	// n1 -> n2 -> n3 -> n1
	n1 := NewNode("n1", nil)
	n2 := NewNode("n2", nil)
	n3 := NewNode("n3", nil)
	require.NoError(t, n1.AddSource(n2))
	require.NoError(t, n2.AddSource(n3))
	require.NoError(t, n3.AddSource(n1))

	var seen *Node
	var stack []*Node
	var calls int
	w := NewWalker(n1, WalkerOptions{
		Cycle: func(n *Node, s []*Node) {
			seen = n
			stack = s
			calls++
		},
	})

	// The back edge is reported once, then treated as satisfied.
	assert.Equal(t, []*Node{n3, n2, n1}, collect(w))
	assert.Equal(t, 1, calls)
	assert.Same(t, n1, seen)
	assert.Equal(t, []*Node{n1, n2, n3}, stack)
}

func TestWalkerKidsFunc(t *testing.T) {
	n1 := NewNode("n1", nil)
	n2 := NewNode("n2", nil)
	hidden := NewNode("hidden", nil)
	require.NoError(t, n1.AddSource(n2, hidden))

	var parents []*Node
	w := NewWalker(n1, WalkerOptions{
		Kids: func(n, parent *Node) []*Node {
			parents = append(parents, parent)
			var keep []*Node
			for _, k := range n.Children() {
				if k.Name() != "hidden" {
					keep = append(keep, k)
				}
			}
			return keep
		},
	})

	assert.Equal(t, []*Node{n2, n1}, collect(w))
	assert.Equal(t, []*Node{nil, n1}, parents) // root has no parent
}

func TestWalkerEval(t *testing.T) {
	n1 := NewNode("n1", nil)
	n2 := NewNode("n2", nil)
	require.NoError(t, n1.AddSource(n2))

	var evaled []*Node
	w := NewWalker(n1, WalkerOptions{
		Eval: func(n *Node) { evaled = append(evaled, n) },
	})

	assert.Equal(t, []*Node{n2, n1}, collect(w))
	assert.Equal(t, []*Node{n2, n1}, evaled)
}
