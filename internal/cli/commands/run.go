package commands

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bidsflow/bidsflow/internal/app"
	"github.com/bidsflow/bidsflow/internal/plugins/snapshot"
	"github.com/bidsflow/bidsflow/internal/plugins/version"
	"github.com/bidsflow/bidsflow/pkg/plugin"
)

// NewRunCommand creates the run command. Its flags depend on the configured
// inputs, so flag parsing is left to the app's parse_args stage.
func NewRunCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "run [bids_dir] [output_dir] [participant|group] [flags]",
		Short: "Generate the inputs of a workflow run",
		Long: `Run every stage of the app: define arguments, parse them, finalize the
configuration, generate inputs from the component index and print them.

Each configured input adds --filter-<input> entity=value and
--wildcards-<input> flags.

Examples:
  bidsflow run /data/bids /data/out participant
  bidsflow run --participant-label 001,002
  bidsflow run --exclude-participant-label 003 --filter-bold task=rest
  bidsflow run --version`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, g, args)
		},
	}
}

// scanGlobals reads the persistent flags out of unparsed run arguments
func scanGlobals(g *globals, args []string) error {
	fs := pflag.NewFlagSet("globals", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	g.bind(fs)
	fs.BoolP("help", "h", false, "")
	return fs.Parse(args)
}

func runApp(cmd *cobra.Command, g *globals, args []string) error {
	if err := scanGlobals(g, args); err != nil {
		return err
	}

	e, err := g.open(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.Close()

	a, err := app.New(e.cfg,
		app.WithCommand(cmd),
		app.WithSource(e.store),
		app.WithCache(e.cache),
		app.WithOutput(cmd.OutOrStdout()),
		app.WithNoColor(g.noColor),
		app.WithLogger(e.logger),
		app.WithPlugins(
			helpFlag{},
			version.Version{SoftwareName: "bidsflow", Version: Version},
			snapshot.Snapshot{},
		),
	)
	if err != nil {
		return err
	}
	return a.Execute(cmd.Context(), args)
}

// helpFlag prints usage, including the flags added during add_arguments,
// when --help is given
type helpFlag struct{}

func (h helpFlag) Mutators() []plugin.AnnotatedMutator[*app.App] {
	return plugin.BindAll(h, plugin.PostMutator(app.StageParseArgs, "print_help", helpFlag.printHelp))
}

func (helpFlag) printHelp(a *app.App) (*app.App, error) {
	show, err := a.Command.Flags().GetBool("help")
	if err != nil || !show {
		return a, plugin.Keep
	}
	a.Exit = true
	return a, a.Command.Help()
}
