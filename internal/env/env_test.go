package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/girderbuild/girder/internal/graph"
)

func TestEnvValues(t *testing.T) {
	e := New(map[string]cty.Value{
		"CC":    cty.StringVal("gcc"),
		"LEVEL": cty.NumberIntVal(2),
	})

	t.Run("value reports presence", func(t *testing.T) {
		v, ok := e.Value("CC")
		require.True(t, ok)
		assert.Equal(t, "gcc", v.AsString())

		_, ok = e.Value("CXX")
		assert.False(t, ok)
	})

	t.Run("lookup falls back to the default", func(t *testing.T) {
		assert.Equal(t, "gcc", e.Lookup("CC", cty.StringVal("cc")).AsString())
		assert.Equal(t, "cc", e.Lookup("CXX", cty.StringVal("cc")).AsString())
	})

	t.Run("set overwrites in place", func(t *testing.T) {
		e := New(nil)
		e.Set("CC", cty.StringVal("clang"))
		assert.Equal(t, "clang", e.Lookup("CC", cty.NilVal).AsString())
	})
}

func TestEnvString(t *testing.T) {
	e := New(map[string]cty.Value{
		"CC":    cty.StringVal("gcc"),
		"LEVEL": cty.NumberIntVal(2),
		"NONE":  cty.NullVal(cty.String),
	})

	assert.Equal(t, "gcc", e.String("CC"))
	assert.Equal(t, "2", e.String("LEVEL"), "numbers convert to their decimal form")
	assert.Equal(t, "", e.String("NONE"))
	assert.Equal(t, "", e.String("MISSING"))
}

func TestEnvOverride(t *testing.T) {
	base := New(map[string]cty.Value{
		"CC":     cty.StringVal("gcc"),
		"CFLAGS": cty.StringVal("-O2"),
	})

	layered := base.Override(map[string]cty.Value{
		"CFLAGS": cty.StringVal("-O0 -g"),
		"DEBUG":  cty.True,
	})

	t.Run("layered view merges on top", func(t *testing.T) {
		assert.Equal(t, "gcc", layered.Lookup("CC", cty.NilVal).AsString())
		assert.Equal(t, "-O0 -g", layered.Lookup("CFLAGS", cty.NilVal).AsString())
		v, ok := layered.Value("DEBUG")
		require.True(t, ok)
		assert.True(t, v.True())
	})

	t.Run("original is untouched", func(t *testing.T) {
		assert.Equal(t, "-O2", base.Lookup("CFLAGS", cty.NilVal).AsString())
		_, ok := base.Value("DEBUG")
		assert.False(t, ok)
	})

	t.Run("nil override still copies", func(t *testing.T) {
		copied := base.Override(nil)
		copied.(*Env).Set("CC", cty.StringVal("clang"))
		assert.Equal(t, "gcc", base.Lookup("CC", cty.NilVal).AsString())
	})
}

func TestEnvScanners(t *testing.T) {
	s := graph.NullScanner{}
	e := New(nil)
	require.Empty(t, e.Scanners())

	e.SetScanners(s)
	require.Len(t, e.Scanners(), 1)

	layered := e.Override(map[string]cty.Value{"X": cty.True})
	assert.Len(t, layered.Scanners(), 1, "override keeps the scanner collection")
}
