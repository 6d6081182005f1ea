// Package cas implements a content-addressable cache of built target
// contents, keyed by build signature. A target whose signature is already
// in the cache can be materialized instead of rebuilt.
package cas

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

// Cache stores blobs under root, fanned out by the first two characters of
// the encoded signature so no single directory grows unbounded.
type Cache struct {
	fs   afero.Fs
	root string
}

// New creates a cache rooted at root on fsys.
func New(fsys afero.Fs, root string) *Cache {
	return &Cache{fs: fsys, root: root}
}

// Path returns where sig's blob lives in the cache.
func (c *Cache) Path(sig digest.Digest) string {
	enc := sig.Encoded()
	return filepath.Join(c.root, enc[:2], enc)
}

// Push stores data under sig, overwriting any previous blob.
func (c *Cache) Push(sig digest.Digest, data []byte) error {
	path := c.Path(sig)
	if err := c.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory for '%s': %w", sig, err)
	}
	if err := afero.WriteFile(c.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry for '%s': %w", sig, err)
	}
	return nil
}

// Retrieve returns the blob stored under sig, or ok=false on a miss.
func (c *Cache) Retrieve(sig digest.Digest) ([]byte, bool, error) {
	data, err := afero.ReadFile(c.fs, c.Path(sig))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry for '%s': %w", sig, err)
	}
	return data, true, nil
}

// Contains reports whether a blob is stored under sig.
func (c *Cache) Contains(sig digest.Digest) bool {
	ok, err := afero.Exists(c.fs, c.Path(sig))
	return err == nil && ok
}
