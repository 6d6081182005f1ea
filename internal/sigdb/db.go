package sigdb

import (
	"encoding/json"
	"fmt"

	"github.com/girderbuild/girder/internal/graph"
)

// DB encodes node records to and from a Store. Keys are node names, so a
// record written in one session is found by the node of the same name in
// the next.
type DB struct {
	store Store
}

// New wraps store in a record codec.
func New(store Store) *DB { return &DB{store: store} }

// Record returns the stored record for name, or ok=false when none exists.
func (d *DB) Record(name string) (*graph.StoredInfo, bool, error) {
	raw, ok, err := d.store.Get([]byte(name))
	if err != nil || !ok {
		return nil, false, err
	}
	var info graph.StoredInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, false, fmt.Errorf("decoding record for '%s': %w", name, err)
	}
	return &info, true, nil
}

// SetRecord stores info under name. The record is encoded at call time, so
// later mutation of info does not change what was written.
func (d *DB) SetRecord(name string, info *graph.StoredInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding record for '%s': %w", name, err)
	}
	return d.store.Set([]byte(name), raw)
}

// DeleteRecord removes the record for name.
func (d *DB) DeleteRecord(name string) error {
	return d.store.Delete([]byte(name))
}

// Close closes the underlying store.
func (d *DB) Close() error { return d.store.Close() }
