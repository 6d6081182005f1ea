package graph

// WalkerOptions customizes a traversal. Zero-value fields get defaults:
// children via (*Node).Children, cycles ignored, no evaluation callback.
type WalkerOptions struct {
	// Kids returns the children to descend into from n; parent is the
	// node n was reached from, or nil at the root.
	Kids func(n, parent *Node) []*Node
	// Cycle is called once per back edge: node is already on the active
	// descent stack (deepest last) when reached again. The edge is then
	// treated as satisfied and the walk continues.
	Cycle func(n *Node, stack []*Node)
	// Eval is called on every node as it is emitted.
	Eval func(n *Node)
}

type walkerFrame struct {
	node *Node
	kids []*Node
	next int
}

// Walker iterates a node tree depth-first, emitting children before
// parents. The traversal is intentionally iterative, not recursive, so
// deep graphs cannot exhaust the goroutine stack. Each node reachable
// without following a cycle edge is emitted exactly once; diamonds
// converge rather than re-emit. A Walker is single-use.
type Walker struct {
	kids    func(n, parent *Node) []*Node
	cycle   func(n *Node, stack []*Node)
	eval    func(n *Node)
	stack   []walkerFrame
	history map[*Node]struct{}
	onStack map[*Node]struct{}
}

// NewWalker starts a traversal at root.
func NewWalker(root *Node, opts WalkerOptions) *Walker {
	w := &Walker{
		kids:    opts.Kids,
		cycle:   opts.Cycle,
		eval:    opts.Eval,
		history: make(map[*Node]struct{}),
		onStack: make(map[*Node]struct{}),
	}
	if w.kids == nil {
		w.kids = func(n, _ *Node) []*Node { return n.Children() }
	}
	if w.cycle == nil {
		w.cycle = func(*Node, []*Node) {}
	}
	if w.eval == nil {
		w.eval = func(*Node) {}
	}
	w.push(root, nil)
	return w
}

func (w *Walker) push(n, parent *Node) {
	w.stack = append(w.stack, walkerFrame{node: n, kids: w.kids(n, parent)})
	w.onStack[n] = struct{}{}
}

// Next returns the next node of the walk, or nil when the walk is done. A
// node is emitted only after all of its children have been emitted.
func (w *Walker) Next() *Node {
	for len(w.stack) > 0 {
		top := &w.stack[len(w.stack)-1]
		if top.next < len(top.kids) {
			kid := top.kids[top.next]
			top.next++
			if _, ok := w.history[kid]; ok {
				continue
			}
			if _, ok := w.onStack[kid]; ok {
				w.cycle(kid, w.stackNodes())
				continue
			}
			w.push(kid, top.node)
			continue
		}
		node := top.node
		w.stack = w.stack[:len(w.stack)-1]
		delete(w.onStack, node)
		w.history[node] = struct{}{}
		w.eval(node)
		return node
	}
	return nil
}

// Done reports whether the walk has emitted every reachable node.
func (w *Walker) Done() bool { return len(w.stack) == 0 }

func (w *Walker) stackNodes() []*Node {
	nodes := make([]*Node, len(w.stack))
	for i, f := range w.stack {
		nodes[i] = f.node
	}
	return nodes
}
