package graph

import (
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

// NodeInfo returns the node's current signature record, creating a fresh
// one from the artifact kind on first use.
func (n *Node) NodeInfo() *NodeInfo {
	if n.ninfo == nil {
		n.ninfo = n.artifact.NewNodeInfo(n)
	}
	return n.ninfo
}

// CSig returns the node's content signature, computing and memoizing it on
// the current NodeInfo the first time.
func (n *Node) CSig() (digest.Digest, error) {
	info := n.NodeInfo()
	if d, ok := info.CSig(); ok {
		return d, nil
	}
	contents, err := n.Contents()
	if err != nil {
		return "", fmt.Errorf("signing contents of '%s': %w", n.name, err)
	}
	d := digest.FromBytes(contents)
	info.SetCSig(d)
	return d, nil
}

// CacheDirCSig returns the content signature used to name entries in the
// artifact cache. It is memoized separately from CSig because cache naming
// may consult a not-yet-materialized artifact.
func (n *Node) CacheDirCSig() (digest.Digest, error) {
	if n.cacheSig != "" {
		return n.cacheSig, nil
	}
	contents, err := n.Contents()
	if err != nil {
		return "", fmt.Errorf("signing cache contents of '%s': %w", n.name, err)
	}
	n.cacheSig = digest.FromBytes(contents)
	return n.cacheSig, nil
}

// BuildInfo returns the record of what a build of this node consumes right
// now: the current dependency lists minus ignores, each entry paired with
// the dependency's NodeInfo, plus the bound action's text and fingerprint.
// The record is memoized until Clear.
func (n *Node) BuildInfo() *BuildInfo {
	if n.binfo != nil {
		return n.binfo
	}
	b := n.artifact.NewBuildInfo(n)
	n.binfo = b

	sources := n.sources
	if n.HasBuilder() {
		e, _ := n.Executor(true)
		b.Action = e.String()
		b.ActionSig = digest.FromBytes(e.Contents())
		// A shared executor aggregates the whole group's sources; a
		// single-target executor defers to the node's live list.
		if len(e.AllTargets()) > 1 {
			sources = e.AllSources()
		}
	}

	b.Sources, b.SourceSigs = n.pairChildren(sources)
	b.Depends, b.DependSigs = n.pairChildren(n.depends)
	b.Implicit, b.ImplicitSigs = n.pairChildren(n.implicit)
	return b
}

// pairChildren filters ignored nodes and duplicates out of kids and pairs
// every survivor with its current NodeInfo.
func (n *Node) pairChildren(kids []*Node) ([]*Node, []*NodeInfo) {
	nodes := make([]*Node, 0, len(kids))
	sigs := make([]*NodeInfo, 0, len(kids))
	seen := make(map[*Node]struct{}, len(kids))
	for _, kid := range kids {
		if _, ok := n.ignoreSet[kid]; ok {
			continue
		}
		if _, ok := seen[kid]; ok {
			continue
		}
		seen[kid] = struct{}{}
		nodes = append(nodes, kid)
		sigs = append(sigs, kid.NodeInfo())
	}
	return nodes, sigs
}

// StoredInfo fetches the signature-database record from the previous
// build. Absence is reported, never an error.
func (n *Node) StoredInfo() (*StoredInfo, bool) {
	return n.artifact.StoredInfo(n)
}

// StoreInfo persists the node's current records for the next build.
func (n *Node) StoreInfo() error {
	return n.artifact.StoreInfo(n)
}

// PushToCache offers the built artifact to the cache; failures are the
// caller's to report.
func (n *Node) PushToCache() error {
	return n.artifact.PushToCache(n)
}

// RetrieveFromCache reports whether the artifact was materialized from the
// cache instead of building. A miss is a normal outcome.
func (n *Node) RetrieveFromCache() bool {
	return n.artifact.RetrieveFromCache(n)
}

// Explain produces a human-readable reason why this node is about to be
// rebuilt, with a trailing newline. It returns the empty string when there
// is nothing to say: the node is a designated top-level root, or no
// previous record exists to compare against.
func (n *Node) Explain() string {
	if !n.Exists() {
		return fmt.Sprintf("building `%s' because it doesn't exist\n", n)
	}
	if n.alwaysBuild {
		return fmt.Sprintf("rebuilding `%s' because AlwaysBuild() is specified\n", n)
	}
	if n.topLevel {
		return ""
	}
	stored, ok := n.StoredInfo()
	if !ok || stored == nil {
		return ""
	}
	if stored.BuildInfo == nil {
		return fmt.Sprintf("Cannot explain why `%s' is being rebuilt: No previous build information found\n", n)
	}
	old := stored.BuildInfo

	oldNames := make([]string, 0, len(old.Sources)+len(old.Depends)+len(old.Implicit))
	oldNames = append(oldNames, old.Sources...)
	oldNames = append(oldNames, old.Depends...)
	oldNames = append(oldNames, old.Implicit...)
	oldSigs := make([]*NodeInfo, 0, len(oldNames))
	oldSigs = append(oldSigs, old.SourceSigs...)
	oldSigs = append(oldSigs, old.DependSigs...)
	oldSigs = append(oldSigs, old.ImplicitSigs...)

	cur := n.BuildInfo()
	newKids := make([]*Node, 0, len(cur.Sources)+len(cur.Depends)+len(cur.Implicit))
	newKids = append(newKids, cur.Sources...)
	newKids = append(newKids, cur.Depends...)
	newKids = append(newKids, cur.Implicit...)

	osig := make(map[string]*NodeInfo, len(oldNames))
	for i, name := range oldNames {
		if i < len(oldSigs) {
			osig[name] = oldSigs[i]
		} else {
			osig[name] = nil
		}
	}
	newSet := make(map[string]struct{}, len(newKids))
	for _, k := range newKids {
		newSet[k.Name()] = struct{}{}
	}

	var lines []string
	for _, name := range oldNames {
		if _, ok := newSet[name]; !ok {
			lines = append(lines, fmt.Sprintf("`%s' is no longer a dependency\n", name))
		}
	}
	for _, k := range newKids {
		prev, wasKnown := osig[k.Name()]
		switch {
		case !wasKnown:
			lines = append(lines, fmt.Sprintf("`%s' is a new dependency\n", k))
		case n.artifact.DepChanged(k, prev):
			lines = append(lines, fmt.Sprintf("`%s' changed\n", k))
		}
	}
	if len(lines) == 0 && !sameOrder(oldNames, newKids) {
		lines = append(lines, fmt.Sprintf("the dependency order changed:\n    old: %s\n    new: %s\n",
			strings.Join(oldNames, " "), strings.Join(nodeNames(newKids), " ")))
	}
	if len(lines) == 0 && old.Action != cur.Action {
		lines = append(lines, fmt.Sprintf("the build action changed:\n    old: %s\n    new: %s\n",
			old.Action, cur.Action))
	}
	if len(lines) == 0 {
		return fmt.Sprintf("rebuilding `%s' for unknown reasons\n", n)
	}

	if len(lines) == 1 {
		return fmt.Sprintf("rebuilding `%s' because %s", n, lines[0])
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "rebuilding `%s' because:\n", n)
	for _, line := range lines {
		sb.WriteString("    ")
		sb.WriteString(line)
	}
	return sb.String()
}

func sameOrder(oldNames []string, newKids []*Node) bool {
	if len(oldNames) != len(newKids) {
		return false
	}
	for i, name := range oldNames {
		if newKids[i].Name() != name {
			return false
		}
	}
	return true
}
