package graph

// BaseArtifact is the neutral Artifact implementation. On its own it
// describes an abstract node that always exists, has empty contents, and is
// never current; concrete kinds embed it and override the hooks they care
// about. Hooks that depend on other hooks dispatch back through the node so
// overrides take effect.
type BaseArtifact struct{}

// Exists reports true; abstract nodes have no on-disk presence to miss.
func (BaseArtifact) Exists(*Node) bool { return true }

// Rexists falls back to the node's own existence check.
func (BaseArtifact) Rexists(n *Node) bool { return n.Exists() }

// Contents returns empty contents.
func (BaseArtifact) Contents(*Node) ([]byte, error) { return nil, nil }

// IsUpToDate is conservatively false: an abstract node is never current.
func (BaseArtifact) IsUpToDate(*Node) bool { return false }

// DepChanged compares the child's current content signature against the
// recorded one. A missing recorded signature counts as changed.
func (BaseArtifact) DepChanged(child *Node, prev *NodeInfo) bool {
	if prev == nil {
		return true
	}
	old, ok := prev.CSig()
	if !ok {
		return true
	}
	cur, err := child.CSig()
	if err != nil {
		return true
	}
	return cur != old
}

// NewNodeInfo returns a record declaring only the content signature field.
func (BaseArtifact) NewNodeInfo(*Node) *NodeInfo {
	return NewNodeInfo(FieldCSig)
}

// NewBuildInfo returns an empty build record.
func (BaseArtifact) NewBuildInfo(*Node) *BuildInfo {
	return &BuildInfo{}
}

// UpdateNodeInfo is a no-op; abstract nodes have no observable state.
func (BaseArtifact) UpdateNodeInfo(*Node, *NodeInfo) error { return nil }

// FoundIncludes reports no includes; kinds that can be scanned override it.
func (BaseArtifact) FoundIncludes(*Node, Context, Scanner) []*Node { return nil }

// StoredInfo reports that nothing was recorded.
func (BaseArtifact) StoredInfo(*Node) (*StoredInfo, bool) { return nil, false }

// StoreInfo is a no-op.
func (BaseArtifact) StoreInfo(*Node) error { return nil }

// StoredImplicit reports no recorded implicit dependencies.
func (BaseArtifact) StoredImplicit(*Node) []*Node { return nil }

// PushToCache is a no-op.
func (BaseArtifact) PushToCache(*Node) error { return nil }

// RetrieveFromCache always misses.
func (BaseArtifact) RetrieveFromCache(*Node) bool { return false }
