package file

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"

	"github.com/girderbuild/girder/internal/graph"
)

// artifact implements graph.Artifact for files. One instance serves every
// node in its System.
type artifact struct {
	graph.BaseArtifact
	sys *System
}

// Exists reports whether the file is present locally.
func (a *artifact) Exists(n *graph.Node) bool {
	ok, err := afero.Exists(a.sys.fs, n.Name())
	return err == nil && ok
}

// Rexists reports whether the file is present locally or in a repository.
func (a *artifact) Rexists(n *graph.Node) bool {
	_, ok := a.rpath(n.Name())
	return ok
}

// rpath resolves a file name to where it can actually be read: the local
// path when present, otherwise the first repository that has it. The name
// itself comes back when nothing does.
func (a *artifact) rpath(name string) (string, bool) {
	if ok, err := afero.Exists(a.sys.fs, name); err == nil && ok {
		return name, true
	}
	if !filepath.IsAbs(name) {
		for _, repo := range a.sys.repos {
			candidate := filepath.Join(repo, name)
			if ok, err := afero.Exists(a.sys.fs, candidate); err == nil && ok {
				return candidate, true
			}
		}
	}
	return name, false
}

// Contents reads the file's bytes, following repository resolution.
func (a *artifact) Contents(n *graph.Node) ([]byte, error) {
	path, _ := a.rpath(n.Name())
	data, err := afero.ReadFile(a.sys.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading '%s': %w", n, err)
	}
	return data, nil
}

// DepChanged defers to the System's decider.
func (a *artifact) DepChanged(child *graph.Node, prev *graph.NodeInfo) bool {
	return a.sys.decider(child, prev)
}

// NewNodeInfo declares the fields a file record carries.
func (a *artifact) NewNodeInfo(*graph.Node) *graph.NodeInfo {
	return graph.NewNodeInfo(graph.FieldCSig, graph.FieldTimestamp, graph.FieldSize)
}

// UpdateNodeInfo refreshes timestamp and size from a stat. The content
// signature is left to be computed lazily, so merely visiting a file never
// forces a read.
func (a *artifact) UpdateNodeInfo(n *graph.Node, info *graph.NodeInfo) error {
	path, _ := a.rpath(n.Name())
	fi, err := a.sys.fs.Stat(path)
	if err != nil {
		return fmt.Errorf("stat '%s': %w", n, err)
	}
	info.SetTimestamp(fi.ModTime().UnixNano())
	info.SetSize(fi.Size())
	return nil
}

// IsUpToDate decides whether a file needs rebuilding. Source files are
// current exactly when they can be found. Derived files are current when
// they exist, the recorded action still matches, and every dependency
// category matches its record with no child the decider flags as changed.
func (a *artifact) IsUpToDate(n *graph.Node) bool {
	if n.AlwaysBuild() {
		return false
	}
	if !n.IsDerived() {
		return a.Rexists(n)
	}
	if !a.Exists(n) {
		return false
	}
	stored, ok := a.StoredInfo(n)
	if !ok || stored.BuildInfo == nil {
		return false
	}
	old := stored.BuildInfo
	cur := n.BuildInfo()
	if old.Action != cur.Action || old.ActionSig != cur.ActionSig {
		return false
	}
	return a.categoryCurrent(old.Sources, old.SourceSigs, cur.Sources) &&
		a.categoryCurrent(old.Depends, old.DependSigs, cur.Depends) &&
		a.categoryCurrent(old.Implicit, old.ImplicitSigs, cur.Implicit)
}

// categoryCurrent matches one dependency category against its record: the
// same names in the same order, and no child the decider considers
// changed.
func (a *artifact) categoryCurrent(oldNames []string, oldSigs []*graph.NodeInfo, kids []*graph.Node) bool {
	if len(oldNames) != len(kids) {
		return false
	}
	for i, kid := range kids {
		if oldNames[i] != kid.Name() {
			return false
		}
		var prev *graph.NodeInfo
		if i < len(oldSigs) {
			prev = oldSigs[i]
		}
		if a.sys.decider(kid, prev) {
			return false
		}
	}
	return true
}

// FoundIncludes scans the file for includes, memoizing the result on the
// node so repeated scans of a shared header cost one read.
func (a *artifact) FoundIncludes(n *graph.Node, env graph.Context, s graph.Scanner) []*graph.Node {
	if incl, ok := n.Includes(); ok {
		return incl
	}
	var incl []*graph.Node
	if s != nil {
		incl = s.Scan(n, env)
	}
	n.SetIncludes(incl)
	return incl
}

// StoredInfo fetches the record written by the previous build.
func (a *artifact) StoredInfo(n *graph.Node) (*graph.StoredInfo, bool) {
	if a.sys.db == nil {
		return nil, false
	}
	info, ok, err := a.sys.db.Record(n.Name())
	if err != nil || !ok {
		return nil, false
	}
	return info, true
}

// StoreInfo persists the node's records. Content signatures of the node
// and, for derived files, of everything the build consumed are computed
// first so the stored record is complete enough to decide the next build.
func (a *artifact) StoreInfo(n *graph.Node) error {
	if a.sys.db == nil {
		return nil
	}
	_, _ = n.CSig()
	info := &graph.StoredInfo{NodeInfo: n.NodeInfo()}
	if n.IsDerived() {
		bi := n.BuildInfo()
		for _, kids := range [][]*graph.Node{bi.Sources, bi.Depends, bi.Implicit} {
			for _, kid := range kids {
				_, _ = kid.CSig()
			}
		}
		info.BuildInfo = bi.Snapshot()
	}
	if err := a.sys.db.SetRecord(n.Name(), info); err != nil {
		return fmt.Errorf("storing record for '%s': %w", n, err)
	}
	return nil
}

// StoredImplicit resolves the implicit dependency names recorded by the
// previous build back into nodes.
func (a *artifact) StoredImplicit(n *graph.Node) []*graph.Node {
	stored, ok := a.StoredInfo(n)
	if !ok || stored.BuildInfo == nil || stored.BuildInfo.Implicit == nil {
		return nil
	}
	nodes := make([]*graph.Node, 0, len(stored.BuildInfo.Implicit))
	for _, name := range stored.BuildInfo.Implicit {
		nodes = append(nodes, a.sys.File(name))
	}
	return nodes
}

// cacheKey derives the cache signature of a derived file: the cache
// signatures of everything the build consumes, the bound action, and the
// target name.
func (a *artifact) cacheKey(n *graph.Node) (digest.Digest, error) {
	var buf bytes.Buffer
	for _, kid := range n.Children() {
		sig, err := kid.CacheDirCSig()
		if err != nil {
			return "", err
		}
		buf.WriteString(sig.String())
	}
	if n.HasBuilder() {
		e, err := n.Executor(true)
		if err != nil {
			return "", err
		}
		buf.Write(e.Contents())
	}
	buf.WriteString(n.Name())
	return digest.FromBytes(buf.Bytes()), nil
}

// PushToCache offers a derived file's contents to the cache.
func (a *artifact) PushToCache(n *graph.Node) error {
	if a.sys.cache == nil || !n.IsDerived() {
		return nil
	}
	key, err := a.cacheKey(n)
	if err != nil {
		return fmt.Errorf("pushing '%s' to cache: %w", n, err)
	}
	data, err := a.Contents(n)
	if err != nil {
		return fmt.Errorf("pushing '%s' to cache: %w", n, err)
	}
	return a.sys.cache.Push(key, data)
}

// RetrieveFromCache materializes a derived file from the cache when its
// cache signature is present. A miss or any error just means building.
func (a *artifact) RetrieveFromCache(n *graph.Node) bool {
	if a.sys.cache == nil || !n.IsDerived() {
		return false
	}
	key, err := a.cacheKey(n)
	if err != nil {
		return false
	}
	data, ok, err := a.sys.cache.Retrieve(key)
	if err != nil || !ok {
		return false
	}
	if dir := filepath.Dir(n.Name()); dir != "." {
		if err := a.sys.fs.MkdirAll(dir, 0o755); err != nil {
			return false
		}
	}
	if err := afero.WriteFile(a.sys.fs, n.Name(), data, 0o644); err != nil {
		return false
	}
	n.SetCached(true)
	return true
}
