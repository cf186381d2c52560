// Package app assembles a bidsflow application: a fixed sequence of stages
// extended by plugins, operating on a shared *App state.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bidsflow/bidsflow/internal/cache"
	"github.com/bidsflow/bidsflow/internal/cli/config"
	"github.com/bidsflow/bidsflow/pkg/bids"
	"github.com/bidsflow/bidsflow/pkg/plugin"
)

// Stage names, in execution order
const (
	StageAddArguments   = "add_arguments"
	StageParseArgs      = "parse_args"
	StageFinalizeConfig = "finalize_config"
	StageGenerateInputs = "generate_inputs"
	StageRun            = "run"
)

// Source looks up stored components by name
type Source interface {
	Get(ctx context.Context, name string) (bids.Component, error)
}

// RevisionedSource is a Source that reports when its components change.
// Generated datasets are only cached for revisioned sources.
type RevisionedSource interface {
	Source
	Revisions(ctx context.Context, names []string) (map[string]string, error)
}

// ErrAlreadyExecuted is returned by a second call to Execute. Flags are
// defined on the App's command during its first execution, so an App runs
// once.
var ErrAlreadyExecuted = errors.New("app: already executed")

// App is the state threaded through every stage
type App struct {
	// Name is used in help output and the config snapshot
	Name string
	// Config is the working configuration; parse_args applies command line
	// overrides to it
	Config *config.Config
	// Command holds the flags defined during add_arguments
	Command *cobra.Command
	// Args are the raw command line arguments
	Args []string
	// Dataset is set by generate_inputs
	Dataset *bids.Dataset
	// RunID identifies this execution
	RunID uuid.UUID
	// SubjectFilter and SubjectRegex hold the resolved participant filter
	SubjectFilter []string
	SubjectRegex  bool
	// Exit stops the remaining stages once the current one completes
	Exit bool

	Out     io.Writer
	NoColor bool
	Logger  *zap.Logger

	source     Source
	cache      *cache.DatasetCache
	registry   *plugin.Registry[*App]
	baseLogger *zap.Logger
	executed   bool
}

// Option configures an App
type Option func(*options)

type options struct {
	name    string
	plugins []any
	source  Source
	cache   *cache.DatasetCache
	out     io.Writer
	noColor bool
	logger  *zap.Logger
	command *cobra.Command
}

// WithName sets the application name
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithPlugins adds plugins: plugin.Plugin values or bare mutators, which
// DefaultTemplate places
func WithPlugins(plugins ...any) Option {
	return func(o *options) { o.plugins = append(o.plugins, plugins...) }
}

// WithSource sets where generate_inputs loads components from
func WithSource(source Source) Option {
	return func(o *options) { o.source = source }
}

// WithCache caches generated datasets
func WithCache(c *cache.DatasetCache) Option {
	return func(o *options) { o.cache = c }
}

// WithOutput sets the writer for user-facing output
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) Option {
	return func(o *options) { o.noColor = noColor }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCommand supplies the command flags are defined on
func WithCommand(cmd *cobra.Command) Option {
	return func(o *options) { o.command = cmd }
}

// DefaultTemplate places bare mutators after finalize_config
func DefaultTemplate(m plugin.Mutator[*App]) plugin.AnnotatedMutator[*App] {
	return plugin.Annotate(StageFinalizeConfig, plugin.Post, m)
}

// New assembles an application from a configuration
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{
		name:   "bidsflow",
		out:    os.Stdout,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if o.command == nil {
		o.command = &cobra.Command{Use: o.name, SilenceUsage: true, SilenceErrors: true}
	}

	b := plugin.NewBuilder[*App](plugin.WithLogger(o.logger))
	if err := b.Declare(
		plugin.Stage[*App]{Name: StageAddArguments, Main: addArguments},
		plugin.Stage[*App]{Name: StageParseArgs, Main: parseArgs},
		plugin.Stage[*App]{Name: StageFinalizeConfig, Main: finalizeConfig},
		plugin.Stage[*App]{Name: StageGenerateInputs, Main: generateInputs},
		plugin.Stage[*App]{Name: StageRun, Main: run},
	); err != nil {
		return nil, err
	}
	if err := plugin.RegisterPlugins(b, o.plugins, DefaultTemplate); err != nil {
		return nil, fmt.Errorf("failed to register plugins: %w", err)
	}

	return &App{
		Name:     o.name,
		Config:   cfg,
		Command:  o.command,
		Out:      o.out,
		NoColor:  o.noColor,
		Logger:     o.logger,
		source:     o.source,
		cache:      o.cache,
		registry:   b.Build(),
		baseLogger: o.logger,
	}, nil
}

// Registry returns the assembled stages
func (a *App) Registry() *plugin.Registry[*App] {
	return a.registry
}

// Context returns the context of the current execution
func (a *App) Context() context.Context {
	if ctx := a.Command.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// Execute runs every stage on args. Setting Exit during a stage skips the
// stages after it. An App executes once; later calls return
// ErrAlreadyExecuted.
func (a *App) Execute(ctx context.Context, args []string) error {
	if a.executed {
		return ErrAlreadyExecuted
	}
	a.executed = true
	a.Args = args
	a.Command.SetContext(ctx)

	names := a.registry.Stages()
	stages := make([]plugin.StageRun[*App], 0, len(names))
	for _, name := range names {
		stages = append(stages, a.unlessExited(name))
	}

	_, err := plugin.Pipe(stages...)(a)
	return err
}

func (a *App) unlessExited(name string) plugin.StageRun[*App] {
	stage := a.registry.Stage(name)
	return func(state *App) (*App, error) {
		if state.Exit {
			state.Logger.Debug("skipping stage after exit", zap.String("stage", name))
			return state, nil
		}
		return stage(state)
	}
}
