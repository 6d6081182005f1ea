package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/girderbuild/girder/internal/alias"
	"github.com/girderbuild/girder/internal/builder"
	"github.com/girderbuild/girder/internal/file"
	"github.com/girderbuild/girder/internal/graph"
	"github.com/girderbuild/girder/internal/sigdb"
	"github.com/girderbuild/girder/internal/testutil"
	"github.com/girderbuild/girder/internal/value"
)

// step returns a builder with a single action that records name when run.
func step(rec *testutil.Recorder, name string) *builder.Builder {
	return builder.New(builder.Options{Actions: []graph.Action{builder.ActionFunc{
		Fingerprint: name,
		Run: func(ctx context.Context, targets, sources []*graph.Node, env graph.Context) error {
			rec.Record(name)
			return nil
		},
	}}})
}

// failing returns a builder whose single action always fails with err.
func failing(err error) *builder.Builder {
	return builder.New(builder.Options{Actions: []graph.Action{builder.ActionFunc{
		Fingerprint: "fail",
		Run: func(ctx context.Context, targets, sources []*graph.Node, env graph.Context) error {
			return err
		},
	}}})
}

func TestRunBuildsChildrenFirst(t *testing.T) {
	rec := &testutil.Recorder{}
	src := value.New("src", []byte("v"))
	mid := graph.NewNode("mid", nil)
	out := graph.NewNode("out", nil)
	require.NoError(t, builder.Bind(step(rec, "mid"), mid, src))
	require.NoError(t, builder.Bind(step(rec, "out"), out, mid))

	s := New(Options{Workers: 4})
	require.NoError(t, s.Run(context.Background(), out))

	assert.Equal(t, []string{"mid", "out"}, rec.Events())
	assert.Equal(t, graph.UpToDate, src.State())
	assert.Equal(t, graph.Executed, mid.State())
	assert.Equal(t, graph.Executed, out.State())
}

func TestRunNoRoots(t *testing.T) {
	s := New(Options{})
	assert.NoError(t, s.Run(context.Background()))
}

func TestRunSharedGroupBuildsOnce(t *testing.T) {
	rec := &testutil.Recorder{}
	h := graph.NewNode("gen.h", nil)
	c := graph.NewNode("gen.c", nil)
	src := value.New("gen.y", []byte("grammar"))
	_, err := builder.BindGroup(step(rec, "codegen"), []*graph.Node{h, c}, src)
	require.NoError(t, err)

	s := New(Options{Workers: 4})
	require.NoError(t, s.Run(context.Background(), h, c))

	assert.Equal(t, 1, rec.Len(), "the group's actions fire once")
	assert.Equal(t, graph.Executed, h.State())
	assert.Equal(t, graph.Executed, c.State())
}

func TestRunFailureSkipsDependents(t *testing.T) {
	boom := errors.New("boom")
	rec := &testutil.Recorder{}
	src := value.New("src", []byte("v"))
	bad := graph.NewNode("bad", nil)
	out := graph.NewNode("out", nil)
	require.NoError(t, builder.Bind(failing(boom), bad, src))
	require.NoError(t, builder.Bind(step(rec, "out"), out, bad))

	s := New(Options{Workers: 2})
	err := s.Run(context.Background(), out)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "evaluation failed for bad")
	assert.Equal(t, graph.Failed, bad.State())
	assert.Equal(t, graph.Failed, out.State())
	assert.Zero(t, rec.Len(), "dependents of a failure never run")
}

func TestRunKeepGoing(t *testing.T) {
	t.Run("independent work continues", func(t *testing.T) {
		boom := errors.New("boom")
		rec := &testutil.Recorder{}
		bad := graph.NewNode("bad", nil)
		good := graph.NewNode("good", nil)
		require.NoError(t, builder.Bind(failing(boom), bad))
		require.NoError(t, builder.Bind(step(rec, "good"), good))

		s := New(Options{Workers: 1, KeepGoing: true})
		err := s.Run(context.Background(), bad, good)

		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"good"}, rec.Events())
		assert.Equal(t, graph.Executed, good.State())
	})

	t.Run("without it the rest is cancelled", func(t *testing.T) {
		boom := errors.New("boom")
		rec := &testutil.Recorder{}
		bad := graph.NewNode("bad", nil)
		good := graph.NewNode("good", nil)
		require.NoError(t, builder.Bind(failing(boom), bad))
		require.NoError(t, builder.Bind(step(rec, "good"), good))

		s := New(Options{Workers: 1})
		err := s.Run(context.Background(), bad, good)

		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, rec.Len())
		assert.Equal(t, graph.Failed, good.State())
	})
}

func TestRunCycleDetected(t *testing.T) {
	a := graph.NewNode("a", nil)
	b := graph.NewNode("b", nil)
	require.NoError(t, a.AddSource(b))
	require.NoError(t, b.AddSource(a))

	s := New(Options{Workers: 2})
	err := s.Run(context.Background(), a)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle detected involving 'a'")
	assert.Equal(t, graph.NoState, a.State(), "nothing runs on a cyclic graph")
}

func TestRunRecoversAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	rec := &testutil.Recorder{}
	src := value.New("src", []byte("v"))
	out := graph.NewNode("out", nil)
	require.NoError(t, builder.Bind(failing(boom), out, src))

	s := New(Options{Workers: 2})
	require.Error(t, s.Run(context.Background(), out))
	require.Equal(t, graph.Failed, out.State())

	require.NoError(t, builder.Bind(step(rec, "out"), out, src))
	require.NoError(t, s.Run(context.Background(), out))
	assert.Equal(t, graph.Executed, out.State())
	assert.Equal(t, []string{"out"}, rec.Events())
}

func TestRunAliasTarget(t *testing.T) {
	rec := &testutil.Recorder{}
	reg := alias.NewRegistry()
	all := reg.Alias("all")
	one := graph.NewNode("one", nil)
	two := graph.NewNode("two", nil)
	require.NoError(t, builder.Bind(step(rec, "one"), one))
	require.NoError(t, builder.Bind(step(rec, "two"), two))
	require.NoError(t, all.AddSource(one, two))

	s := New(Options{Workers: 2})
	require.NoError(t, s.Run(context.Background(), all))

	assert.ElementsMatch(t, []string{"one", "two"}, rec.Events())
	assert.Equal(t, graph.Executed, all.State())
}

func TestRunRebuildsOnlyStaleTargets(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := sigdb.New(sigdb.NewMemStore())
	sys := file.NewSystem(file.Options{Fs: fs, DB: db})
	require.NoError(t, afero.WriteFile(fs, "main.c", []byte("v1"), 0o644))

	rec := &testutil.Recorder{}
	src := sys.File("main.c")
	out := sys.File("main.o")
	b := builder.New(builder.Options{Actions: []graph.Action{builder.ActionFunc{
		Fingerprint: "cc -c",
		Run: func(ctx context.Context, targets, sources []*graph.Node, env graph.Context) error {
			rec.Record("cc")
			data, err := sources[0].Contents()
			if err != nil {
				return err
			}
			return afero.WriteFile(fs, targets[0].Name(), append([]byte("obj:"), data...), 0o644)
		},
	}}})
	require.NoError(t, builder.Bind(b, out, src))

	s := New(Options{Workers: 2})

	t.Run("first pass builds", func(t *testing.T) {
		require.NoError(t, s.Run(context.Background(), out))
		assert.Equal(t, []string{"cc"}, rec.Events())
		assert.Equal(t, graph.Executed, out.State())
		data, err := afero.ReadFile(fs, "main.o")
		require.NoError(t, err)
		assert.Equal(t, []byte("obj:v1"), data)
	})

	t.Run("second pass is a no-op", func(t *testing.T) {
		require.NoError(t, s.Run(context.Background(), out))
		assert.Equal(t, []string{"cc"}, rec.Events())
		assert.Equal(t, graph.UpToDate, out.State())
	})

	t.Run("a changed source rebuilds", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "main.c", []byte("v2"), 0o644))
		// A fresh session starts without memoized signatures.
		src.Clear()
		out.Clear()
		require.NoError(t, s.Run(context.Background(), out))
		assert.Equal(t, []string{"cc", "cc"}, rec.Events())
		data, err := afero.ReadFile(fs, "main.o")
		require.NoError(t, err)
		assert.Equal(t, []byte("obj:v2"), data)
	})
}

func TestRunMissingSourceFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	sys := file.NewSystem(file.Options{Fs: fs})

	rec := &testutil.Recorder{}
	out := sys.File("main.o")
	require.NoError(t, builder.Bind(step(rec, "cc"), out, sys.File("missing.c")))

	s := New(Options{Workers: 2})
	err := s.Run(context.Background(), out)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluation failed for missing.c")
	assert.Contains(t, err.Error(), "stat 'missing.c'")
	assert.Equal(t, graph.Failed, out.State())
	assert.Zero(t, rec.Len())
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &testutil.Recorder{}
	out := graph.NewNode("out", nil)
	require.NoError(t, builder.Bind(step(rec, "out"), out))

	s := New(Options{Workers: 1})
	err := s.Run(ctx, out)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, rec.Len())
}

func TestRunLogOutput(t *testing.T) {
	run := func(t *testing.T, opts Options) *testutil.SafeBuffer {
		t.Helper()
		rec := &testutil.Recorder{}
		out := graph.NewNode("out", nil)
		require.NoError(t, builder.Bind(step(rec, "out"), out))
		buf := &testutil.SafeBuffer{}
		opts.LogOutput = buf
		require.NoError(t, New(opts).Run(context.Background(), out))
		return buf
	}

	t.Run("the pass logs through the configured output", func(t *testing.T) {
		buf := run(t, Options{Workers: 2, LogLevel: "debug", LogFormat: "text"})
		logs := buf.String()
		assert.Contains(t, logs, "Starting evaluation pass.")
		assert.Contains(t, logs, "Worker picked up node for evaluation.")
		assert.Contains(t, logs, "Building target.")
		assert.Contains(t, logs, "Finished evaluation pass.")
	})

	t.Run("level filters records below the threshold", func(t *testing.T) {
		buf := run(t, Options{Workers: 1, LogLevel: "error"})
		assert.Empty(t, buf.String(), "a clean pass emits nothing at error level")
	})

	t.Run("json format emits structured records", func(t *testing.T) {
		buf := run(t, Options{Workers: 1, LogLevel: "debug", LogFormat: "json"})
		assert.Contains(t, buf.String(), `"msg":"Worker started."`)
	})
}
