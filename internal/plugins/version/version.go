// Package version adds a --version flag to a bidsflow app.
package version

import (
	"fmt"

	"github.com/bidsflow/bidsflow/internal/app"
	"github.com/bidsflow/bidsflow/pkg/plugin"
)

const flagName = "version"

// Version prints "<SoftwareName> - v<Version>" and stops the app when
// --version is given
type Version struct {
	SoftwareName string
	Version      string
}

var mutators = []plugin.BoundMutator[Version, *app.App]{
	plugin.PreMutator(app.StageAddArguments, "add_version_arg", Version.addVersionArg),
	plugin.PostMutator(app.StageParseArgs, "print_version", Version.printVersion),
}

// Mutators implements plugin.Plugin
func (v Version) Mutators() []plugin.AnnotatedMutator[*app.App] {
	return plugin.BindAll(v, mutators...)
}

func (v Version) addVersionArg(a *app.App) (*app.App, error) {
	a.Command.Flags().BoolP(flagName, "v", false, "print the version and exit")
	return a, plugin.Keep
}

func (v Version) printVersion(a *app.App) (*app.App, error) {
	show, err := a.Command.Flags().GetBool(flagName)
	if err != nil || !show {
		return a, plugin.Keep
	}
	fmt.Fprintf(a.Out, "%s - v%s\n", v.SoftwareName, v.Version)
	a.Exit = true
	return a, nil
}
