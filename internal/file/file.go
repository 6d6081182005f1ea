// Package file implements the on-disk artifact kind: nodes that stand for
// files, with stat-backed info records, repository search for sources,
// persistent signature records, and a content-addressed cache of derived
// files.
package file

import (
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/girderbuild/girder/internal/cas"
	"github.com/girderbuild/girder/internal/graph"
	"github.com/girderbuild/girder/internal/sigdb"
)

// Options configures a file System.
type Options struct {
	// Fs is the filesystem nodes resolve against. Defaults to the real
	// one.
	Fs afero.Fs

	// DB persists signature records between sessions. With no DB every
	// derived file is rebuilt every session.
	DB *sigdb.DB

	// Cache, when set, lets derived files be materialized from prior
	// builds instead of rebuilding.
	Cache *cas.Cache

	// Repos are directories searched for source files that do not exist
	// locally.
	Repos []string

	// Decider judges whether a dependency changed since the last build.
	// Defaults to ContentDecider.
	Decider Decider
}

// System owns the file nodes of one build. It guarantees one node per
// cleaned path, so every reference to "main.c" lands on the same node.
type System struct {
	fs      afero.Fs
	db      *sigdb.DB
	cache   *cas.Cache
	repos   []string
	decider Decider
	art     *artifact

	mu    sync.Mutex
	nodes map[string]*graph.Node
}

// NewSystem creates a file System from opts.
func NewSystem(opts Options) *System {
	s := &System{
		fs:      opts.Fs,
		db:      opts.DB,
		cache:   opts.Cache,
		repos:   opts.Repos,
		decider: opts.Decider,
		nodes:   make(map[string]*graph.Node),
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.decider == nil {
		s.decider = ContentDecider
	}
	s.art = &artifact{sys: s}
	return s
}

// File returns the node for path, creating it on first use. Paths are
// cleaned first, so "./main.c" and "main.c" name the same node.
func (s *System) File(path string) *graph.Node {
	path = filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[path]; ok {
		return n
	}
	n := graph.NewNode(path, s.art)
	s.nodes[path] = n
	return n
}

// Lookup returns the node for path only if it was already created.
func (s *System) Lookup(path string) (*graph.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[filepath.Clean(path)]
	return n, ok
}
