// Package env provides the variable environment build actions and scanners
// run against.
package env

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/girderbuild/girder/internal/graph"
)

// Env is a set of named values plus the scanners that apply when nodes
// evaluated in it are searched for implicit dependencies. Override layers a
// copy; the original is never mutated through the layered view.
type Env struct {
	vals     map[string]cty.Value
	scanners []graph.Scanner
}

// New creates an environment with a copy of vals.
func New(vals map[string]cty.Value) *Env {
	e := &Env{vals: make(map[string]cty.Value, len(vals))}
	for k, v := range vals {
		e.vals[k] = v
	}
	return e
}

// Set stores a value under key.
func (e *Env) Set(key string, v cty.Value) { e.vals[key] = v }

// SetScanners replaces the scanner collection, most preferred first.
func (e *Env) SetScanners(scanners ...graph.Scanner) { e.scanners = scanners }

// Value reports the value bound to key and whether it is set.
func (e *Env) Value(key string) (cty.Value, bool) {
	v, ok := e.vals[key]
	return v, ok
}

// Lookup returns the value bound to key, or def when unset.
func (e *Env) Lookup(key string, def cty.Value) cty.Value {
	if v, ok := e.vals[key]; ok {
		return v
	}
	return def
}

// String returns the value bound to key rendered as a string, or "" when
// the key is unset or the value cannot be converted.
func (e *Env) String(key string) string {
	v, ok := e.vals[key]
	if !ok || v.IsNull() {
		return ""
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil || s.IsNull() {
		return ""
	}
	return s.AsString()
}

// Override returns a copy of the environment with vars layered on top. The
// scanner collection is shared with the original.
func (e *Env) Override(vars map[string]cty.Value) graph.Context {
	merged := make(map[string]cty.Value, len(e.vals)+len(vars))
	for k, v := range e.vals {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	return &Env{vals: merged, scanners: e.scanners}
}

// Scanners returns the environment's scanner collection.
func (e *Env) Scanners() []graph.Scanner { return e.scanners }
