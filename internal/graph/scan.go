package graph

import (
	"context"

	"github.com/girderbuild/girder/internal/ctxlog"
)

// ScanPolicy controls how Scan uses implicit dependencies recorded by a
// previous build instead of rescanning from scratch.
type ScanPolicy struct {
	// UseStored consults the stored implicit list before scanning.
	UseStored bool
	// AssumeUnchanged trusts the stored list without verifying the node,
	// trading accuracy for speed.
	AssumeUnchanged bool
	// ForceRescan ignores the stored list even when UseStored is set.
	ForceRescan bool
}

// NullScanner is the no-op fallback used when no scanner applies to a
// node; scanning with it discovers nothing.
type NullScanner struct{}

// Scan discovers nothing.
func (NullScanner) Scan(*Node, Context) []*Node { return nil }

// RecurseNodes stops recursion.
func (NullScanner) RecurseNodes([]*Node) []*Node { return nil }

// Select applies to every node.
func (NullScanner) Select(*Node) Scanner { return NullScanner{} }

// EnvScanner returns the context's preferred scanner, or nil when the
// context has none.
func EnvScanner(env Context) Scanner {
	if env == nil {
		return nil
	}
	scanners := env.Scanners()
	if len(scanners) == 0 {
		return nil
	}
	return scanners[0]
}

// TargetScanner returns the builder's target scanner, or nil.
func (n *Node) TargetScanner() Scanner {
	if n.builder == nil {
		return nil
	}
	return n.builder.TargetScanner()
}

// SourceScanner resolves the scanner to apply to one of this node's
// sources: the builder's source scanner when declared, else the build
// context's, narrowed by Select for the source in question. When nothing
// applies the NullScanner keeps scanning a no-op rather than an error.
func (n *Node) SourceScanner(src *Node) Scanner {
	var s Scanner
	if n.builder != nil {
		s = n.builder.SourceScanner()
	}
	if s == nil {
		s = EnvScanner(n.Env())
	}
	if s != nil {
		if sel := s.Select(src); sel != nil {
			return sel
		}
	}
	return NullScanner{}
}

// resolveScanner picks the scanner for one node during implicit-dependency
// discovery: an explicit initial scanner narrowed by Select, else the
// context's scanner narrowed by Select, else the root node's scanner.
func (n *Node) resolveScanner(env Context, initial, root Scanner) Scanner {
	var s Scanner
	if initial != nil {
		s = initial.Select(n)
	} else if es := EnvScanner(env); es != nil {
		s = es.Select(n)
	}
	if s == nil {
		s = root
	}
	return s
}

// FoundIncludes returns the direct includes the scanner discovers in this
// node, through the artifact kind so kinds can memoize or opt out.
func (n *Node) FoundIncludes(env Context, s Scanner) []*Node {
	return n.artifact.FoundIncludes(n, env, s)
}

// ImplicitDeps discovers the node's implicit dependencies, recursing into
// discovered nodes only as far as the scanner's RecurseNodes allows. The
// node itself is the traversal seed and never appears in the result;
// every other node appears once, in first-discovery order, so repeated
// scans of an unchanged tree are deterministic.
func (n *Node) ImplicitDeps(env Context, initial Scanner) []*Node {
	queue := []*Node{n}
	seen := map[*Node]struct{}{n: {}}
	var deps []*Node

	root := n.resolveScanner(env, initial, nil)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		s := node.resolveScanner(env, initial, root)
		if s == nil {
			continue
		}

		var fresh []*Node
		for _, d := range node.FoundIncludes(env, s) {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			fresh = append(fresh, d)
		}
		if len(fresh) > 0 {
			deps = append(deps, fresh...)
			queue = append(queue, s.RecurseNodes(fresh)...)
		}
	}
	return deps
}

// Scan populates the node's implicit dependency list, once per cycle. When
// the policy allows it, implicit dependencies recorded by the previous
// build are reused and fanned out to the whole target group; a stale or
// distrusted record falls through to a fresh scan with the builder's
// source and target scanners.
func (n *Node) Scan(ctx context.Context) error {
	if n.implicitInitialized() {
		return nil
	}
	n.initImplicit()
	if n.builder == nil {
		return nil
	}

	logger := ctxlog.FromContext(ctx)
	e, err := n.Executor(true)
	if err != nil {
		return err
	}

	if n.scanPolicy.UseStored && !n.scanPolicy.ForceRescan {
		if stored := n.artifact.StoredImplicit(n); stored != nil {
			logger.Debug("Reusing stored implicit dependencies.", "node", n.name, "count", len(stored))
			for _, tgt := range e.AllTargets() {
				if err := tgt.AddImplicit(stored...); err != nil {
					return err
				}
			}
			if n.scanPolicy.AssumeUnchanged || n.IsUpToDate() {
				return nil
			}
			// The stored list can no longer be trusted; rescan the
			// whole group from scratch.
			for _, tgt := range e.AllTargets() {
				tgt.initImplicit()
			}
		}
	}

	if err := e.ScanSources(ctx, n.builder.SourceScanner()); err != nil {
		return err
	}
	if ts := n.TargetScanner(); ts != nil {
		if err := e.ScanTargets(ctx, ts); err != nil {
			return err
		}
	}
	return nil
}
