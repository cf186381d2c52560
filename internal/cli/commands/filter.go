package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bidsflow/bidsflow/internal/cli/ui"
	"github.com/bidsflow/bidsflow/internal/index"
	"github.com/bidsflow/bidsflow/pkg/bids"
	"github.com/bidsflow/bidsflow/pkg/ziplist"
)

type filterOptions struct {
	filters []string
	regex   bool
	include []string
	exclude []string
	indexOf []string
	expand  bool
}

// NewFilterCommand creates the filter command
func NewFilterCommand(g *globals) *cobra.Command {
	opts := &filterOptions{}

	cmd := &cobra.Command{
		Use:   "filter <component>",
		Short: "Filter the entries of an indexed component",
		Long: `Load a component from the index and print the entries matching every
filter. Values of one entity are alternatives; filters on different
entities must all match. Filters on entities the component lacks are
ignored.

Examples:
  bidsflow filter bold --filter task=rest --filter task=motor
  bidsflow filter bold --filter 'acq=mb.*' --regex
  bidsflow filter t1w --exclude-participant-label 003
  bidsflow filter t1w --index-of subject=002 --index-of acq=mprage`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(cmd, g, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "entity=value filter; repeat for more values")
	cmd.Flags().BoolVar(&opts.regex, "regex", false, "match filter values as regular expressions")
	cmd.Flags().StringSliceVar(&opts.include, "participant-label", nil, "only include these participants")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude-participant-label", nil, "exclude these participants")
	cmd.Flags().StringArrayVar(&opts.indexOf, "index-of", nil, "entity=value; print the entry index matching these wildcards")
	cmd.Flags().BoolVar(&opts.expand, "expand", false, "print the expanded path of each entry")

	return cmd
}

func runFilter(cmd *cobra.Command, g *globals, opts *filterOptions, name string) error {
	if len(opts.include) > 0 && len(opts.exclude) > 0 {
		return ziplist.ErrConflictingFilters
	}

	e, err := g.open(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	c, err := getComponent(cmd, e.store, g.noColor, name)
	if err != nil {
		return err
	}

	filters, err := ziplist.ParseFilters(opts.filters)
	if err != nil {
		return fmt.Errorf("--filter: %w", err)
	}
	if c, err = c.Filter(filters, ziplist.WithRegexMode(opts.regex)); err != nil {
		return err
	}

	subjects, regex, err := ziplist.ParticipantFilter(nonEmpty(opts.include), nonEmpty(opts.exclude))
	if err != nil {
		return err
	}
	if subjects != nil {
		if c, err = c.Filter(ziplist.Filters{"subject": subjects}, ziplist.WithRegexMode(regex)); err != nil {
			return err
		}
	}

	if len(opts.indexOf) > 0 {
		return printIndex(cmd.OutOrStdout(), c, opts.indexOf)
	}
	return renderComponent(cmd.OutOrStdout(), c, opts.expand, g.noColor)
}

func nonEmpty(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values
}

func printIndex(w io.Writer, c bids.Component, pairs []string) error {
	wildcards := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		f, err := ziplist.ParseFilters([]string{pair})
		if err != nil {
			return fmt.Errorf("--index-of: %w", err)
		}
		for entity, values := range f {
			wildcards[entity] = values[0]
		}
	}

	d, err := bids.NewDataset(c)
	if err != nil {
		return err
	}
	m, err := ziplist.Index(c.ZipList, wildcards, d.SubjWildcards())
	if err != nil {
		return err
	}
	fmt.Fprintln(w, m.String())
	return nil
}

// getComponent loads a component, suggesting close names when it is missing
func getComponent(cmd *cobra.Command, store *index.Store, noColor bool, name string) (bids.Component, error) {
	c, err := store.Get(cmd.Context(), name)
	if !errors.Is(err, index.ErrNotFound) {
		return c, err
	}
	names, namesErr := store.Names(cmd.Context())
	if namesErr != nil {
		return c, err
	}
	ui.NotFound(cmd.ErrOrStderr(), "component", name, names, noColor)
	return c, err
}
