package snapshot

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidsflow/bidsflow/internal/app"
	"github.com/bidsflow/bidsflow/internal/cli/config"
	"github.com/bidsflow/bidsflow/pkg/plugin"
)

func TestSnapshot_WritesFinalizedConfig(t *testing.T) {
	outDir := t.TempDir()
	cfg := config.Default()

	stop := func(a *app.App) (*app.App, error) {
		a.Exit = true
		return a, nil
	}

	a, err := app.New(cfg,
		app.WithOutput(&bytes.Buffer{}),
		app.WithPlugins(Snapshot{FileName: "snapshot.yml"}, stop),
	)
	require.NoError(t, err)

	require.NoError(t, a.Execute(context.Background(), []string{
		"/data/bids", outDir, "participant", "--participant-label", "001",
	}))

	path := filepath.Join(outDir, "code", "snapshot.yml")
	assert.Equal(t, path, Snapshot{FileName: "snapshot.yml"}.Path(a))

	got, err := config.ReadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/bids", got.BIDSDir)
	assert.Equal(t, outDir, got.OutputDir)
	assert.Equal(t, []string{"001"}, got.ParticipantLabel)
}

func TestSnapshot_DefaultFileName(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "/out"
	a, err := app.New(cfg)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/out", "code", DefaultFileName), Snapshot{}.Path(a))
}

func TestSnapshot_WriteFailureStopsRun(t *testing.T) {
	outDir := t.TempDir()
	// A file where the code directory should be
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "code"), nil, 0o644))

	cfg := config.Default()
	cfg.OutputDir = outDir
	a, err := app.New(cfg, app.WithOutput(&bytes.Buffer{}), app.WithPlugins(Snapshot{}))
	require.NoError(t, err)

	err = a.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage finalize_config: post mutator 0 failed")
	assert.False(t, errors.Is(err, plugin.Keep))
	assert.Nil(t, a.Dataset)
}
