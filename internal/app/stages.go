package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bidsflow/bidsflow/internal/cache"
	"github.com/bidsflow/bidsflow/internal/cli/config"
	"github.com/bidsflow/bidsflow/internal/cli/ui"
	"github.com/bidsflow/bidsflow/internal/index"
	"github.com/bidsflow/bidsflow/pkg/bids"
	"github.com/bidsflow/bidsflow/pkg/ziplist"
)

const (
	flagParticipantLabel        = "participant-label"
	flagExcludeParticipantLabel = "exclude-participant-label"
	flagFilterPrefix            = "filter-"
	flagWildcardsPrefix         = "wildcards-"
)

// inputNames returns the configured input names, sorted
func (a *App) inputNames() []string {
	names := make([]string, 0, len(a.Config.Inputs))
	for name := range a.Config.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func addArguments(a *App) (*App, error) {
	flags := a.Command.Flags()

	if flags.Lookup("config") == nil {
		flags.String("config", "", "config file")
	}
	flags.StringSlice(flagParticipantLabel, nil, "only include these participants")
	flags.StringSlice(flagExcludeParticipantLabel, nil, "exclude these participants")

	for _, name := range a.inputNames() {
		flags.StringArray(flagFilterPrefix+name, nil, fmt.Sprintf("entity=value filters for %s", name))
		flags.StringSlice(flagWildcardsPrefix+name, nil, fmt.Sprintf("wildcards for %s", name))
	}
	return a, nil
}

func parseArgs(a *App) (*App, error) {
	if err := a.Command.Flags().Parse(a.Args); err != nil {
		return a, &ConfigError{Msg: "invalid arguments", Err: err}
	}
	flags := a.Command.Flags()
	cfg := a.Config

	positional := flags.Args()
	if len(positional) > 3 {
		return a, &ConfigError{Msg: fmt.Sprintf("unexpected arguments: %s", strings.Join(positional[3:], " "))}
	}
	for i, value := range positional {
		switch i {
		case 0:
			cfg.BIDSDir = value
		case 1:
			cfg.OutputDir = value
		case 2:
			cfg.AnalysisLevel = value
		}
	}

	if flags.Changed(flagParticipantLabel) {
		cfg.ParticipantLabel, _ = flags.GetStringSlice(flagParticipantLabel)
	}
	if flags.Changed(flagExcludeParticipantLabel) {
		cfg.ExcludeParticipantLabel, _ = flags.GetStringSlice(flagExcludeParticipantLabel)
	}

	for _, name := range a.inputNames() {
		input := cfg.Inputs[name]
		if flags.Changed(flagFilterPrefix + name) {
			pairs, _ := flags.GetStringArray(flagFilterPrefix + name)
			filters, err := ziplist.ParseFilters(pairs)
			if err != nil {
				return a, &ConfigError{Msg: "--" + flagFilterPrefix + name, Err: err}
			}
			input.Filters = ziplist.Merge(input.Filters, filters)
		}
		if flags.Changed(flagWildcardsPrefix + name) {
			input.Wildcards, _ = flags.GetStringSlice(flagWildcardsPrefix + name)
		}
		cfg.Inputs[name] = input
	}
	return a, nil
}

func finalizeConfig(a *App) (*App, error) {
	cfg := a.Config
	if err := cfg.Validate(); err != nil {
		return a, &ConfigError{Msg: "invalid configuration", Err: err}
	}

	values, regex, err := ziplist.ParticipantFilter(nonEmpty(cfg.ParticipantLabel), nonEmpty(cfg.ExcludeParticipantLabel))
	if err != nil {
		return a, &ConfigError{Msg: "participant filter", Err: err}
	}
	a.SubjectFilter, a.SubjectRegex = values, regex

	if cfg.OutputDir != "" {
		abs, err := filepath.Abs(cfg.OutputDir)
		if err != nil {
			return a, &ConfigError{Msg: "output_dir", Err: err}
		}
		cfg.OutputDir = abs
	}

	if a.RunID == uuid.Nil {
		a.RunID = uuid.New()
	}
	a.Logger = a.baseLogger.With(zap.String("run_id", a.RunID.String()))
	return a, nil
}

func nonEmpty(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values
}

func (a *App) query() cache.Query {
	names := a.inputNames()
	filters := make(map[string]ziplist.Filters, len(names))
	for _, name := range names {
		filters[name] = a.Config.Inputs[name].Filters
	}
	return cache.Query{
		Components: names,
		Filters:    filters,
		Subject:    a.SubjectFilter,
		Regex:      a.SubjectRegex,
	}
}

// cacheable reports whether generated inputs can be cached, filling in the
// index revisions of the query. Without revisions a cached dataset could
// outlive the components it was built from.
func (a *App) cacheable(ctx context.Context, q *cache.Query) bool {
	if a.cache == nil {
		return false
	}
	source, ok := a.source.(RevisionedSource)
	if !ok {
		a.Logger.Debug("source has no revisions, not caching inputs")
		return false
	}
	revisions, err := source.Revisions(ctx, q.Components)
	if err != nil {
		a.Logger.Warn("failed to read index revisions, not caching inputs", zap.Error(err))
		return false
	}
	q.Revisions = revisions
	return true
}

func generateInputs(a *App) (*App, error) {
	if a.source == nil {
		return a, &RunError{Stage: StageGenerateInputs, Err: errors.New("no component index configured")}
	}

	ctx := a.Context()
	q := a.query()
	useCache := a.cacheable(ctx, &q)

	if useCache {
		d, err := a.cache.Get(ctx, q)
		switch {
		case err == nil:
			a.Logger.Info("using cached inputs", zap.Int("components", d.Len()))
			a.Dataset = d
			return a, nil
		case !cache.IsCacheMiss(err):
			a.Logger.Warn("dataset cache unavailable", zap.Error(err))
		}
	}

	components := make([]bids.Component, 0, len(q.Components))
	for _, name := range q.Components {
		c, err := a.source.Get(ctx, name)
		if errors.Is(err, index.ErrNotFound) {
			a.Logger.Warn("input not found in index, skipping", zap.String("component", name))
			continue
		}
		if err != nil {
			return a, &RunError{Stage: StageGenerateInputs, Err: err}
		}

		c, err = a.filterComponent(c, a.Config.Inputs[name])
		if err != nil {
			return a, &RunError{Stage: StageGenerateInputs, Err: err}
		}
		components = append(components, c)
	}

	d, err := bids.NewDataset(components...)
	if err != nil {
		return a, &RunError{Stage: StageGenerateInputs, Err: err}
	}
	a.Dataset = d

	if useCache {
		if err := a.cache.Put(ctx, q, d); err != nil {
			a.Logger.Warn("failed to cache inputs", zap.Error(err))
		}
	}
	return a, nil
}

// filterComponent applies the input's literal filters, then the participant
// filter when the component carries subjects
func (a *App) filterComponent(c bids.Component, input config.InputConfig) (bids.Component, error) {
	c, err := c.Filter(input.Filters)
	if err != nil {
		return c, err
	}

	if a.SubjectFilter != nil && c.ZipList.Has("subject") {
		c, err = c.Filter(ziplist.Filters{"subject": a.SubjectFilter}, ziplist.WithRegexMode(a.SubjectRegex))
		if err != nil {
			return c, err
		}
	}

	for _, w := range input.Wildcards {
		if !c.ZipList.Has(w) {
			a.Logger.Warn("component lacks wildcard",
				zap.String("component", c.Name),
				zap.String("wildcard", w),
			)
		}
	}
	return c, nil
}

func run(a *App) (*App, error) {
	if a.Dataset == nil {
		return a, &RunError{Stage: StageRun, Err: errors.New("no inputs generated")}
	}

	ui.Header(a.Out, a.Name+" inputs", a.NoColor)
	table := ui.NewTable(a.Out, []string{"component", "entries", "wildcards", "path"}, &ui.TableOptions{NoColor: a.NoColor})
	for _, c := range a.Dataset.Components() {
		table.AddRow(c.Name, strconv.Itoa(c.Len()), strings.Join(c.ZipList.Entities(), ","), c.Path)
	}
	table.Render()

	a.Logger.Info("inputs ready",
		zap.Int("components", a.Dataset.Len()),
		zap.Strings("subjects", a.Dataset.Subjects()),
	)
	return a, nil
}
