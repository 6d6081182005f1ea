package file

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemFile(t *testing.T) {
	sys := NewSystem(Options{Fs: afero.NewMemMapFs()})

	t.Run("one node per cleaned path", func(t *testing.T) {
		n := sys.File("src/main.c")
		assert.Equal(t, "src/main.c", n.Name())
		assert.Same(t, n, sys.File("src/main.c"))
		assert.Same(t, n, sys.File("./src/main.c"))
		assert.Same(t, n, sys.File("src/../src/main.c"))
	})

	t.Run("lookup never creates", func(t *testing.T) {
		_, ok := sys.Lookup("main.o")
		assert.False(t, ok)
		sys.File("main.o")
		n, ok := sys.Lookup("./main.o")
		require.True(t, ok)
		assert.Equal(t, "main.o", n.Name())
	})
}

func TestSystemDefaults(t *testing.T) {
	sys := NewSystem(Options{Fs: afero.NewMemMapFs()})
	require.NotNil(t, sys.decider)
	assert.NotNil(t, sys.fs)
}
