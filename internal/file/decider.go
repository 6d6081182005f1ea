package file

import "github.com/girderbuild/girder/internal/graph"

// Decider reports whether child must be treated as changed relative to
// prev, the record taken of it by the previous build. A nil prev means no
// record exists, which always counts as changed.
type Decider func(child *graph.Node, prev *graph.NodeInfo) bool

// ContentDecider compares content signatures. A child whose current
// contents hash to the recorded signature is unchanged no matter what its
// timestamp says.
func ContentDecider(child *graph.Node, prev *graph.NodeInfo) bool {
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

// TimestampDecider compares modification time and size, never reading
// contents. The child's live record is filled from a stat on first use.
func TimestampDecider(child *graph.Node, prev *graph.NodeInfo) bool {
	if prev == nil {
		return true
	}
	oldTS, okTS := prev.Timestamp()
	oldSize, okSize := prev.Size()
	if !okTS && !okSize {
		return true
	}
	info := child.NodeInfo()
	if _, ok := info.Timestamp(); !ok {
		if err := child.Artifact().UpdateNodeInfo(child, info); err != nil {
			return true
		}
	}
	if curTS, _ := info.Timestamp(); okTS && curTS != oldTS {
		return true
	}
	if curSize, _ := info.Size(); okSize && curSize != oldSize {
		return true
	}
	return false
}
