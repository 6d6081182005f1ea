package graph

import "fmt"

// missing reports whether the node can satisfy a parent's dependency: it is
// missing when it cannot be derived, is not linked in from elsewhere, and
// does not exist locally or in a repository.
func (n *Node) missing() bool {
	return !(n.IsDerived() || n.linked || n.Rexists())
}

// Prepare checks that the node can actually be built and captures its build
// record, immediately before the build runs. A dependency that neither
// exists nor can be produced fails with a *StopError before any action
// runs.
func (n *Node) Prepare() error {
	for _, d := range n.depends {
		if d.missing() {
			return &StopError{Target: n, Missing: d}
		}
	}
	for _, i := range n.implicit {
		if i.missing() {
			return &StopError{Target: n, Missing: i, Implicit: true}
		}
	}
	n.BuildInfo()
	return nil
}

// Built runs just after the node was successfully built. Parents waiting on
// this node get their implicit lists invalidated, since a fresh build can
// change what their scans would find; then the node's volatile caches are
// dropped and its info record refreshed from the newly observable state.
// A pseudo node that exists after building is an error.
func (n *Node) Built() error {
	for _, parent := range n.WaitingParents() {
		parent.InvalidateImplicit()
	}
	n.Clear()
	if n.pseudo {
		if n.Exists() {
			return fmt.Errorf("pseudo target `%s' must not exist", n)
		}
		return nil
	}
	return n.artifact.UpdateNodeInfo(n, n.NodeInfo())
}

// Clear resets the node's volatile caches for re-evaluation: the build
// record, the info record, the cache signature, memoized includes and
// children, the cached flag, and the executor's cached information. Edge
// lists and state survive.
func (n *Node) Clear() {
	n.ExecutorCleanup()
	n.binfo = nil
	n.ninfo = n.artifact.NewNodeInfo(n)
	n.cacheSig = ""
	n.includes = nil
	n.hasIncl = false
	n.cached = false
	n.childrenReset()
}

// Visited runs when an evaluation pass decides the node needs no build. It
// refreshes the info record and persists it so signatures stay current even
// on up-to-date paths.
func (n *Node) Visited() error {
	if err := n.artifact.UpdateNodeInfo(n, n.NodeInfo()); err != nil {
		return err
	}
	return n.StoreInfo()
}
