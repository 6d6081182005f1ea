package graph

import (
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// Field names usable in a NodeInfo record. Artifact kinds declare the
// subset they maintain; Format renders them in declared order.
const (
	FieldCSig      = "csig"
	FieldTimestamp = "timestamp"
	FieldSize      = "size"
)

const (
	presCSig = 1 << iota
	presTimestamp
	presSize
)

// NodeInfo is the signature record of a single node: the fields an artifact
// kind declares, with per-field presence so records can be merged without
// clobbering fields the incoming record does not carry.
type NodeInfo struct {
	csig      digest.Digest
	timestamp int64
	size      int64
	present   uint8
	fields    []string
}

// NewNodeInfo returns an empty record declaring the given fields.
func NewNodeInfo(fields ...string) *NodeInfo {
	return &NodeInfo{fields: fields}
}

// Fields returns the record's declared field list.
func (ni *NodeInfo) Fields() []string { return ni.fields }

// CSig reports the recorded content signature and whether it is set.
func (ni *NodeInfo) CSig() (digest.Digest, bool) {
	return ni.csig, ni.present&presCSig != 0
}

// SetCSig records a content signature.
func (ni *NodeInfo) SetCSig(d digest.Digest) {
	ni.csig = d
	ni.present |= presCSig
}

// Timestamp reports the recorded modification time in nanoseconds.
func (ni *NodeInfo) Timestamp() (int64, bool) {
	return ni.timestamp, ni.present&presTimestamp != 0
}

// SetTimestamp records a modification time in nanoseconds.
func (ni *NodeInfo) SetTimestamp(t int64) {
	ni.timestamp = t
	ni.present |= presTimestamp
}

// Size reports the recorded artifact size in bytes.
func (ni *NodeInfo) Size() (int64, bool) {
	return ni.size, ni.present&presSize != 0
}

// SetSize records an artifact size in bytes.
func (ni *NodeInfo) SetSize(s int64) {
	ni.size = s
	ni.present |= presSize
}

// Merge overwrites only the fields present on the incoming record, leaving
// the rest of the receiver untouched.
func (ni *NodeInfo) Merge(other *NodeInfo) {
	if other == nil {
		return
	}
	if d, ok := other.CSig(); ok {
		ni.SetCSig(d)
	}
	if t, ok := other.Timestamp(); ok {
		ni.SetTimestamp(t)
	}
	if s, ok := other.Size(); ok {
		ni.SetSize(s)
	}
}

// Format renders the named fields in order, substituting "None" for any
// field that is not set. With no arguments it renders the declared list.
func (ni *NodeInfo) Format(names ...string) []string {
	if len(names) == 0 {
		names = ni.fields
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, ni.formatField(name))
	}
	return out
}

func (ni *NodeInfo) formatField(name string) string {
	switch name {
	case FieldCSig:
		if d, ok := ni.CSig(); ok {
			return d.String()
		}
	case FieldTimestamp:
		if t, ok := ni.Timestamp(); ok {
			return fmt.Sprintf("%d", t)
		}
	case FieldSize:
		if s, ok := ni.Size(); ok {
			return fmt.Sprintf("%d", s)
		}
	}
	return "None"
}

// nodeInfoJSON is the wire form of a NodeInfo; absent fields are omitted so
// a stored record round-trips its presence mask.
type nodeInfoJSON struct {
	CSig      *digest.Digest `json:"csig,omitempty"`
	Timestamp *int64         `json:"timestamp,omitempty"`
	Size      *int64         `json:"size,omitempty"`
	Fields    []string       `json:"fields,omitempty"`
}

// MarshalJSON encodes only the fields that are set.
func (ni *NodeInfo) MarshalJSON() ([]byte, error) {
	var w nodeInfoJSON
	if d, ok := ni.CSig(); ok {
		w.CSig = &d
	}
	if t, ok := ni.Timestamp(); ok {
		w.Timestamp = &t
	}
	if s, ok := ni.Size(); ok {
		w.Size = &s
	}
	w.Fields = ni.fields
	return json.Marshal(&w)
}

// UnmarshalJSON decodes a record, marking only the encoded fields present.
func (ni *NodeInfo) UnmarshalJSON(data []byte) error {
	var w nodeInfoJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*ni = NodeInfo{fields: w.Fields}
	if w.CSig != nil {
		ni.SetCSig(*w.CSig)
	}
	if w.Timestamp != nil {
		ni.SetTimestamp(*w.Timestamp)
	}
	if w.Size != nil {
		ni.SetSize(*w.Size)
	}
	return nil
}

// BuildInfo records what one build of a node consumed: the dependency lists
// in category order and, parallel to each, the dependencies' signature
// records at build time, plus the action's text and fingerprint.
type BuildInfo struct {
	Sources    []*Node
	SourceSigs []*NodeInfo

	Depends    []*Node
	DependSigs []*NodeInfo

	Implicit     []*Node
	ImplicitSigs []*NodeInfo

	Action    string
	ActionSig digest.Digest
}

// Merge overwrites only the dependency categories and action fields that
// the incoming record carries. A category is carried when its node list is
// non-nil; the signature list travels with it.
func (b *BuildInfo) Merge(other *BuildInfo) {
	if other == nil {
		return
	}
	if other.Sources != nil {
		b.Sources = other.Sources
		b.SourceSigs = other.SourceSigs
	}
	if other.Depends != nil {
		b.Depends = other.Depends
		b.DependSigs = other.DependSigs
	}
	if other.Implicit != nil {
		b.Implicit = other.Implicit
		b.ImplicitSigs = other.ImplicitSigs
	}
	if other.Action != "" {
		b.Action = other.Action
	}
	if other.ActionSig != "" {
		b.ActionSig = other.ActionSig
	}
}

// Snapshot converts the record to its name-keyed persistent form.
func (b *BuildInfo) Snapshot() *StoredBuildInfo {
	return &StoredBuildInfo{
		Sources:      nodeNames(b.Sources),
		SourceSigs:   b.SourceSigs,
		Depends:      nodeNames(b.Depends),
		DependSigs:   b.DependSigs,
		Implicit:     nodeNames(b.Implicit),
		ImplicitSigs: b.ImplicitSigs,
		Action:       b.Action,
		ActionSig:    b.ActionSig,
	}
}

func nodeNames(nodes []*Node) []string {
	if nodes == nil {
		return nil
	}
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name()
	}
	return names
}

// StoredBuildInfo is the persisted form of a BuildInfo: dependencies are
// recorded by name because node identity does not survive a process.
type StoredBuildInfo struct {
	Sources    []string    `json:"sources,omitempty"`
	SourceSigs []*NodeInfo `json:"sourcesigs,omitempty"`

	Depends    []string    `json:"depends,omitempty"`
	DependSigs []*NodeInfo `json:"dependsigs,omitempty"`

	Implicit     []string    `json:"implicit,omitempty"`
	ImplicitSigs []*NodeInfo `json:"implicitsigs,omitempty"`

	Action    string        `json:"action,omitempty"`
	ActionSig digest.Digest `json:"actionsig,omitempty"`
}

// StoredInfo is one signature-database entry: the node's own record plus
// the record of its last build.
type StoredInfo struct {
	NodeInfo  *NodeInfo        `json:"ninfo,omitempty"`
	BuildInfo *StoredBuildInfo `json:"binfo,omitempty"`
}
