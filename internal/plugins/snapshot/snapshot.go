// Package snapshot records the finalized configuration of each run in the
// output directory.
package snapshot

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/bidsflow/bidsflow/internal/app"
	"github.com/bidsflow/bidsflow/pkg/plugin"
)

// DefaultFileName is used when Snapshot.FileName is empty
const DefaultFileName = "config.yml"

// Snapshot writes the configuration as YAML to <output_dir>/code/<FileName>
// once finalize_config has run
type Snapshot struct {
	FileName string
}

// Mutators implements plugin.Plugin
func (s Snapshot) Mutators() []plugin.AnnotatedMutator[*app.App] {
	return plugin.BindAll(s,
		plugin.PostMutator(app.StageFinalizeConfig, "write_config", Snapshot.write),
	)
}

// Path returns where the snapshot of a run is written
func (s Snapshot) Path(a *app.App) string {
	name := s.FileName
	if name == "" {
		name = DefaultFileName
	}
	return filepath.Join(a.Config.OutputDir, "code", name)
}

func (s Snapshot) write(a *app.App) (*app.App, error) {
	path := s.Path(a)
	if err := a.Config.WriteYAML(path); err != nil {
		return a, err
	}
	a.Logger.Info("wrote config snapshot", zap.String("path", path))
	return a, plugin.Keep
}
