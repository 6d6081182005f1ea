package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingArtifact() *testArtifact {
	return &testArtifact{existsFn: func() bool { return false }}
}

func TestPrepare(t *testing.T) {
	t.Run("captures the build record when all is well", func(t *testing.T) {
		n := NewNode("n", &testArtifact{})
		d := NewNode("d", &testArtifact{})
		require.NoError(t, n.AddDependency(d))

		require.NoError(t, n.Prepare())
		assert.NotNil(t, n.binfo)
	})

	t.Run("missing explicit dependency stops the target", func(t *testing.T) {
		n := NewNode("top", &testArtifact{})
		d := NewNode("dep", missingArtifact())
		require.NoError(t, n.AddDependency(d))

		err := n.Prepare()
		require.Error(t, err)

		var stop *StopError
		require.ErrorAs(t, err, &stop)
		assert.Same(t, n, stop.Target)
		assert.Same(t, d, stop.Missing)
		assert.False(t, stop.Implicit)
		assert.EqualError(t, err, "Explicit dependency `dep' not found, needed by target `top'.")
	})

	t.Run("missing implicit dependency stops the target", func(t *testing.T) {
		n := NewNode("top", &testArtifact{})
		i := NewNode("inc", missingArtifact())
		require.NoError(t, n.AddImplicit(i))

		err := n.Prepare()
		require.Error(t, err)

		var stop *StopError
		require.ErrorAs(t, err, &stop)
		assert.True(t, stop.Implicit)
		assert.EqualError(t, err, "Implicit dependency `inc' not found, needed by target `top'.")
	})

	t.Run("a derivable dependency may be absent", func(t *testing.T) {
		n := NewNode("top", &testArtifact{})
		d := NewNode("dep", missingArtifact())
		d.SetBuilder(&testBuilder{}) // will be produced by the build
		require.NoError(t, n.AddDependency(d))

		assert.NoError(t, n.Prepare())
	})

	t.Run("a linked dependency may be absent", func(t *testing.T) {
		n := NewNode("top", &testArtifact{})
		d := NewNode("dep", missingArtifact())
		d.SetLinked(true)
		require.NoError(t, n.AddDependency(d))

		assert.NoError(t, n.Prepare())
	})

	t.Run("sources are not checked here", func(t *testing.T) {
		n := NewNode("top", &testArtifact{})
		s := NewNode("src", missingArtifact())
		require.NoError(t, n.AddSource(s))

		assert.NoError(t, n.Prepare())
	})
}

func TestBuilt(t *testing.T) {
	t.Run("invalidates waiting parents and refreshes info", func(t *testing.T) {
		a := &testArtifact{}
		n := NewNode("n", a)
		p := NewNode("p", &testArtifact{})
		x := NewNode("x", nil)
		require.NoError(t, p.AddImplicit(x))
		require.True(t, n.AddToWaitingParents(p))

		n.BuildInfo() // populate the caches Built should drop
		require.NoError(t, n.Built())

		assert.Nil(t, p.Implicit()) // parent must rescan
		assert.Nil(t, n.binfo)
		assert.Equal(t, 1, a.updateCalls)
	})

	t.Run("pseudo target that appeared is an error", func(t *testing.T) {
		n := NewNode("n", &testArtifact{})
		n.SetPseudo(true)

		err := n.Built()
		require.Error(t, err)
		assert.EqualError(t, err, "pseudo target `n' must not exist")
	})

	t.Run("pseudo target that stayed absent is fine", func(t *testing.T) {
		a := missingArtifact()
		n := NewNode("n", a)
		n.SetPseudo(true)

		require.NoError(t, n.Built())
		assert.Equal(t, 0, a.updateCalls) // nothing observable to record
	})
}

func TestClear(t *testing.T) {
	a := &testArtifact{contents: []byte("data")}
	n := NewNode("n", a)
	s := NewNode("s", nil)
	require.NoError(t, n.AddSource(s))
	n.SetState(Executed)

	_, err := n.CSig()
	require.NoError(t, err)
	_, err = n.CacheDirCSig()
	require.NoError(t, err)
	n.BuildInfo()
	n.SetIncludes([]*Node{s})
	n.SetCached(true)

	n.Clear()

	assert.Nil(t, n.binfo)
	_, ok := n.NodeInfo().CSig()
	assert.False(t, ok)
	assert.Empty(t, n.cacheSig)
	_, ok = n.Includes()
	assert.False(t, ok)
	assert.False(t, n.Cached())

	// State and edges survive.
	assert.Equal(t, Executed, n.State())
	assert.Equal(t, []*Node{s}, n.Sources())
}

func TestVisited(t *testing.T) {
	a := &testArtifact{}
	n := NewNode("n", a)

	require.NoError(t, n.Visited())
	assert.Equal(t, 1, a.updateCalls)
	assert.Equal(t, 1, a.storeCalls)
}
