package graph

import "fmt"

// addChild appends kids to one edge list with exactly-once semantics. The
// whole batch is validated before any mutation so a bad element leaves the
// list untouched.
func (n *Node) addChild(list *[]*Node, set *map[*Node]struct{}, kids []*Node) error {
	for _, k := range kids {
		if k == nil {
			return ErrNilChild
		}
	}
	if *set == nil {
		*set = make(map[*Node]struct{}, len(kids))
	}
	added := false
	for _, k := range kids {
		if _, ok := (*set)[k]; ok {
			continue
		}
		(*set)[k] = struct{}{}
		*list = append(*list, k)
		added = true
	}
	if added {
		n.childrenReset()
	}
	return nil
}

// AddSource appends nodes to the explicit source list, preserving first
// insertion order and dropping duplicates.
func (n *Node) AddSource(nodes ...*Node) error {
	if err := n.addChild(&n.sources, &n.sourceSet, nodes); err != nil {
		return fmt.Errorf("adding sources to '%s': %w", n.name, err)
	}
	return nil
}

// AddDependency appends nodes to the explicit dependency list, preserving
// first insertion order and dropping duplicates.
func (n *Node) AddDependency(nodes ...*Node) error {
	if err := n.addChild(&n.depends, &n.dependSet, nodes); err != nil {
		return fmt.Errorf("adding dependencies to '%s': %w", n.name, err)
	}
	return nil
}

// AddIgnore appends nodes to the ignore list; ignored nodes are subtracted
// from Children regardless of which category they appear in.
func (n *Node) AddIgnore(nodes ...*Node) error {
	if err := n.addChild(&n.ignore, &n.ignoreSet, nodes); err != nil {
		return fmt.Errorf("adding ignores to '%s': %w", n.name, err)
	}
	return nil
}

// AddImplicit appends nodes to the implicit dependency list, initializing
// it if no scan has run yet. Scanners and executors fan discovered
// dependencies in through here.
func (n *Node) AddImplicit(nodes ...*Node) error {
	if n.implicitSet == nil {
		n.initImplicit()
	}
	if err := n.addChild(&n.implicit, &n.implicitSet, nodes); err != nil {
		return fmt.Errorf("adding implicit dependencies to '%s': %w", n.name, err)
	}
	return nil
}

// initImplicit marks the implicit list initialized; until this happens the
// list is considered never scanned.
func (n *Node) initImplicit() {
	n.implicit = []*Node{}
	n.implicitSet = make(map[*Node]struct{})
	n.childrenReset()
}

// implicitInitialized reports whether a scan (or stored-implicit merge) has
// populated the implicit list.
func (n *Node) implicitInitialized() bool { return n.implicitSet != nil }

// InvalidateImplicit discards the implicit dependency list so the next scan
// rediscovers it. Built nodes call this on their waiting parents because a
// fresh build can change what a parent's scan would find.
func (n *Node) InvalidateImplicit() {
	n.implicit = nil
	n.implicitSet = nil
	n.childrenReset()
}

// Sources returns the explicit source list in insertion order.
func (n *Node) Sources() []*Node { return n.sources }

// Depends returns the explicit dependency list in insertion order.
func (n *Node) Depends() []*Node { return n.depends }

// Implicit returns the implicit dependency list in discovery order; it is
// nil before the first scan.
func (n *Node) Implicit() []*Node { return n.implicit }

// Ignored returns the ignore list in insertion order.
func (n *Node) Ignored() []*Node { return n.ignore }

// Children returns sources, dependencies, and implicit dependencies in
// that order, deduplicated, minus anything on the ignore list. The result
// is cached until an edge list changes.
func (n *Node) Children() []*Node {
	if n.childrenCache != nil {
		return n.childrenCache
	}
	kids := n.concatChildren(true)
	n.childrenCache = kids
	return kids
}

// AllChildren is Children without the ignore subtraction.
func (n *Node) AllChildren() []*Node {
	return n.concatChildren(false)
}

func (n *Node) concatChildren(applyIgnore bool) []*Node {
	kids := make([]*Node, 0, len(n.sources)+len(n.depends)+len(n.implicit))
	seen := make(map[*Node]struct{}, cap(kids))
	appendKids := func(list []*Node) {
		for _, k := range list {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			if applyIgnore {
				if _, ok := n.ignoreSet[k]; ok {
					continue
				}
			}
			kids = append(kids, k)
		}
	}
	appendKids(n.sources)
	appendKids(n.depends)
	appendKids(n.implicit)
	return kids
}

// childrenReset drops the cached Children result.
func (n *Node) childrenReset() { n.childrenCache = nil }

// ChildrenAreUpToDate reports whether every child is in a state that needs
// no further work (untouched or verified current). A node marked
// always-build is never satisfied by its children.
func (n *Node) ChildrenAreUpToDate() bool {
	if n.alwaysBuild {
		return false
	}
	for _, kid := range n.Children() {
		switch kid.State() {
		case NoState, UpToDate:
		default:
			return false
		}
	}
	return true
}
