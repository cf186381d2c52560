package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bidsflow/bidsflow/internal/cache"
	"github.com/bidsflow/bidsflow/internal/cli/config"
	"github.com/bidsflow/bidsflow/internal/index"
	"github.com/bidsflow/bidsflow/pkg/bids"
	"github.com/bidsflow/bidsflow/pkg/plugin"
	"github.com/bidsflow/bidsflow/pkg/ziplist"
)

type mapSource struct {
	components map[string]bids.Component
	calls      int
}

func (s *mapSource) Get(_ context.Context, name string) (bids.Component, error) {
	s.calls++
	c, ok := s.components[name]
	if !ok {
		return bids.Component{}, fmt.Errorf("%w: %s", index.ErrNotFound, name)
	}
	return c, nil
}

var _ RevisionedSource = (*index.Store)(nil)

// revisionedSource bumps a component's revision whenever it is replaced
type revisionedSource struct {
	*mapSource
	revisions map[string]int
}

func (s *revisionedSource) Revisions(_ context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, name := range names {
		if _, ok := s.components[name]; ok {
			out[name] = fmt.Sprint(s.revisions[name])
		}
	}
	return out, nil
}

func (s *revisionedSource) replace(c bids.Component) {
	s.components[c.Name] = c
	s.revisions[c.Name]++
}

func newSource(t *testing.T) *mapSource {
	t.Helper()
	t1w, err := bids.NewComponent("t1w", "sub-{subject}/anat/sub-{subject}_acq-{acq}_T1w.nii.gz", map[string][]string{
		"subject": {"001", "001", "002", "003"},
		"acq":     {"mprage", "spc", "mprage", "mprage"},
	})
	require.NoError(t, err)
	return &mapSource{components: map[string]bids.Component{"t1w": t1w}}
}

func newConfig(t *testing.T, inputs ...string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	for _, name := range inputs {
		cfg.Inputs[name] = config.InputConfig{Wildcards: []string{"subject"}}
	}
	return cfg
}

func subjects(t *testing.T, a *App, name string) []string {
	t.Helper()
	require.NotNil(t, a.Dataset)
	c, ok := a.Dataset.Component(name)
	require.True(t, ok)
	return c.ZipList.Values("subject")
}

func TestExecute_FullRun(t *testing.T) {
	var out bytes.Buffer
	a, err := New(newConfig(t, "t1w"), WithSource(newSource(t)), WithOutput(&out), WithNoColor(true))
	require.NoError(t, err)

	require.NoError(t, a.Execute(context.Background(), nil))

	assert.Equal(t, []string{"001", "001", "002", "003"}, subjects(t, a, "t1w"))
	assert.NotEqual(t, uuid.Nil, a.RunID)
	assert.Contains(t, out.String(), "bidsflow inputs")
	assert.Contains(t, out.String(), "t1w        4        acq,subject")
}

func TestExecute_StagesInOrder(t *testing.T) {
	a, err := New(newConfig(t))
	require.NoError(t, err)
	assert.Equal(t, []string{
		StageAddArguments, StageParseArgs, StageFinalizeConfig, StageGenerateInputs, StageRun,
	}, a.Registry().Stages())
}

func TestExecute_ParticipantLabel(t *testing.T) {
	a, err := New(newConfig(t, "t1w"), WithSource(newSource(t)), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	require.NoError(t, a.Execute(context.Background(), []string{"--participant-label", "001,003"}))

	assert.Equal(t, []string{"001", "001", "003"}, subjects(t, a, "t1w"))
	assert.False(t, a.SubjectRegex)
}

func TestExecute_ExcludeParticipantLabel(t *testing.T) {
	a, err := New(newConfig(t, "t1w"), WithSource(newSource(t)), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	require.NoError(t, a.Execute(context.Background(), []string{"--exclude-participant-label", "001"}))

	assert.Equal(t, []string{"002", "003"}, subjects(t, a, "t1w"))
	assert.True(t, a.SubjectRegex)
	assert.Equal(t, []string{ziplist.ExcludePattern("001")}, a.SubjectFilter)
}

func TestExecute_ConflictingParticipantFilters(t *testing.T) {
	a, err := New(newConfig(t, "t1w"), WithSource(newSource(t)), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	err = a.Execute(context.Background(), []string{
		"--participant-label", "001",
		"--exclude-participant-label", "002",
	})
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, ziplist.ErrConflictingFilters)
	assert.Nil(t, a.Dataset)
}

func TestExecute_InputFilterOverride(t *testing.T) {
	cfg := newConfig(t, "t1w")
	cfg.Inputs["t1w"] = config.InputConfig{Filters: ziplist.Filters{"acq": {"spc"}}}

	a, err := New(cfg, WithSource(newSource(t)), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	require.NoError(t, a.Execute(context.Background(), []string{"--filter-t1w", "acq=mprage", "--filter-t1w", "subject=002"}))

	c, ok := a.Dataset.Component("t1w")
	require.True(t, ok)
	assert.Equal(t, []string{"002"}, c.ZipList.Values("subject"))
	assert.Equal(t, []string{"mprage"}, c.ZipList.Values("acq"))
}

func TestExecute_BadFilterFlag(t *testing.T) {
	a, err := New(newConfig(t, "t1w"), WithSource(newSource(t)), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	err = a.Execute(context.Background(), []string{"--filter-t1w", "acq"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected entity=value")
}

func TestExecute_PositionalArguments(t *testing.T) {
	out := t.TempDir()
	a, err := New(newConfig(t, "t1w"), WithSource(newSource(t)), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	require.NoError(t, a.Execute(context.Background(), []string{"/data/bids", out, "group"}))

	assert.Equal(t, "/data/bids", a.Config.BIDSDir)
	assert.Equal(t, out, a.Config.OutputDir)
	assert.Equal(t, config.LevelGroup, a.Config.AnalysisLevel)

	a, err = New(newConfig(t), WithSource(newSource(t)))
	require.NoError(t, err)
	err = a.Execute(context.Background(), []string{"a", "b", "participant", "extra"})
	assert.ErrorContains(t, err, "unexpected arguments: extra")
}

func TestExecute_MissingComponentIsSkipped(t *testing.T) {
	a, err := New(newConfig(t, "t1w", "bold"), WithSource(newSource(t)), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	require.NoError(t, a.Execute(context.Background(), nil))

	assert.Equal(t, []string{"t1w"}, a.Dataset.Names())
}

func TestExecute_NoSource(t *testing.T) {
	a, err := New(newConfig(t, "t1w"), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	err = a.Execute(context.Background(), nil)
	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, StageGenerateInputs, runErr.Stage)
}

func TestExecute_UsesCache(t *testing.T) {
	source := &revisionedSource{mapSource: newSource(t), revisions: map[string]int{}}
	datasets := cache.NewDatasetCache(cache.NewMemoryCache(), 0, nil)

	for i := 0; i < 2; i++ {
		a, err := New(newConfig(t, "t1w"), WithSource(source), WithCache(datasets), WithOutput(&bytes.Buffer{}))
		require.NoError(t, err)
		require.NoError(t, a.Execute(context.Background(), []string{"--participant-label", "002"}))
		assert.Equal(t, []string{"002"}, subjects(t, a, "t1w"))
	}
	assert.Equal(t, 1, source.calls)
}

func TestExecute_CacheFollowsReplacedComponent(t *testing.T) {
	source := &revisionedSource{mapSource: newSource(t), revisions: map[string]int{}}
	datasets := cache.NewDatasetCache(cache.NewMemoryCache(), 0, nil)

	execute := func() []string {
		a, err := New(newConfig(t, "t1w"), WithSource(source), WithCache(datasets), WithOutput(&bytes.Buffer{}))
		require.NoError(t, err)
		require.NoError(t, a.Execute(context.Background(), nil))
		return subjects(t, a, "t1w")
	}

	assert.Equal(t, []string{"001", "001", "002", "003"}, execute())

	t1w, err := bids.NewComponent("t1w", "sub-{subject}/anat/sub-{subject}_T1w.nii.gz", map[string][]string{
		"subject": {"001", "002", "003", "004"},
	})
	require.NoError(t, err)
	source.replace(t1w)

	assert.Equal(t, []string{"001", "002", "003", "004"}, execute())
	assert.Equal(t, 2, source.calls)
}

func TestExecute_UnrevisionedSourceIsNotCached(t *testing.T) {
	source := newSource(t)
	datasets := cache.NewDatasetCache(cache.NewMemoryCache(), 0, nil)

	for i := 0; i < 2; i++ {
		a, err := New(newConfig(t, "t1w"), WithSource(source), WithCache(datasets), WithOutput(&bytes.Buffer{}))
		require.NoError(t, err)
		require.NoError(t, a.Execute(context.Background(), nil))
	}
	assert.Equal(t, 2, source.calls)
}

func TestExecute_IndexReimportInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	store, err := index.Open(ctx, index.Config{Driver: index.DriverSQLite, DSN: t.TempDir() + "/index.db"}, nil)
	require.NoError(t, err)
	defer store.Close()
	datasets := cache.NewDatasetCache(cache.NewMemoryCache(), 0, nil)

	execute := func() []string {
		a, err := New(newConfig(t, "t1w"), WithSource(store), WithCache(datasets), WithOutput(&bytes.Buffer{}))
		require.NoError(t, err)
		require.NoError(t, a.Execute(ctx, nil))
		return subjects(t, a, "t1w")
	}

	require.NoError(t, store.Put(ctx, newSource(t).components["t1w"]))
	assert.Equal(t, []string{"001", "001", "002", "003"}, execute())

	t1w, err := bids.NewComponent("t1w", "sub-{subject}/anat/sub-{subject}_T1w.nii.gz", map[string][]string{
		"subject": {"001", "002", "003", "004"},
	})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, t1w))
	assert.Equal(t, []string{"001", "002", "003", "004"}, execute())

	require.NoError(t, store.Delete(ctx, "t1w"))
	a, err := New(newConfig(t, "t1w"), WithSource(store), WithCache(datasets), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	require.NoError(t, a.Execute(ctx, nil))
	assert.Empty(t, a.Dataset.Names())
}

func TestExecute_SecondCallFails(t *testing.T) {
	a, err := New(newConfig(t, "t1w"), WithSource(newSource(t)), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	require.NoError(t, a.Execute(context.Background(), nil))
	assert.NotPanics(t, func() {
		err = a.Execute(context.Background(), []string{"--participant-label", "001"})
	})
	assert.ErrorIs(t, err, ErrAlreadyExecuted)
	assert.Equal(t, []string{"001", "001", "002", "003"}, subjects(t, a, "t1w"))
}

func TestFinalizeConfig_TagsRunIDOnce(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	a, err := New(newConfig(t, "t1w"), WithSource(newSource(t)), WithOutput(&bytes.Buffer{}), WithLogger(zap.New(core)))
	require.NoError(t, err)
	require.NoError(t, a.Execute(context.Background(), nil))

	a, err = a.Registry().Run(StageFinalizeConfig, a)
	require.NoError(t, err)
	a.Logger.Info("after rerun")

	entries := logs.FilterMessage("after rerun").All()
	require.Len(t, entries, 1)
	count := 0
	for _, f := range entries[0].Context {
		if f.Key == "run_id" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestNew_BareMutatorRunsAfterFinalizeConfig(t *testing.T) {
	var seen uuid.UUID
	bare := func(a *App) (*App, error) {
		seen = a.RunID
		assert.Nil(t, a.Dataset)
		return a, plugin.Keep
	}

	a, err := New(newConfig(t, "t1w"), WithSource(newSource(t)), WithOutput(&bytes.Buffer{}), WithPlugins(bare))
	require.NoError(t, err)
	assert.Equal(t, 1, a.Registry().Count(StageFinalizeConfig, plugin.Post))

	require.NoError(t, a.Execute(context.Background(), nil))
	assert.Equal(t, a.RunID, seen)
}

type exitPlugin struct{}

func (p exitPlugin) Mutators() []plugin.AnnotatedMutator[*App] {
	return plugin.BindAll(p, plugin.PostMutator(StageParseArgs, "exit", func(_ exitPlugin, a *App) (*App, error) {
		a.Exit = true
		return a, nil
	}))
}

func TestExecute_ExitSkipsRemainingStages(t *testing.T) {
	var out bytes.Buffer
	source := newSource(t)
	a, err := New(newConfig(t, "t1w"), WithSource(source), WithOutput(&out), WithPlugins(exitPlugin{}))
	require.NoError(t, err)

	require.NoError(t, a.Execute(context.Background(), nil))

	assert.True(t, a.Exit)
	assert.Equal(t, uuid.Nil, a.RunID)
	assert.Nil(t, a.Dataset)
	assert.Equal(t, 0, source.calls)
	assert.Empty(t, out.String())
}

func TestNew_UnacceptablePlugin(t *testing.T) {
	_, err := New(newConfig(t), WithPlugins(42))
	require.Error(t, err)

	var unacceptable *plugin.UnacceptablePluginError
	require.True(t, errors.As(err, &unacceptable))
	assert.Equal(t, 42, unacceptable.Value)
}

func TestExecute_IndexStoreSource(t *testing.T) {
	ctx := context.Background()
	store, err := index.Open(ctx, index.Config{Driver: index.DriverSQLite, DSN: t.TempDir() + "/index.db"}, nil)
	require.NoError(t, err)
	defer store.Close()

	t1w := newSource(t).components["t1w"]
	require.NoError(t, store.Put(ctx, t1w))

	a, err := New(newConfig(t, "t1w"), WithSource(store), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	require.NoError(t, a.Execute(ctx, []string{"--participant-label", "003"}))

	assert.Equal(t, []string{"003"}, subjects(t, a, "t1w"))
}
