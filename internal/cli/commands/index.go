package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bidsflow/bidsflow/internal/cli/ui"
	"github.com/bidsflow/bidsflow/pkg/bids"
	"github.com/bidsflow/bidsflow/pkg/ziplist"
)

// NewIndexCommand creates the index command and its subcommands
func NewIndexCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the component index",
		Long: `Manage the index of matched files for each input component.

Subcommands:
  import  Store a component from a zip list or a list of BIDS paths
  list    List indexed components
  show    Print the entries of a component
  rm      Remove a component`,
	}

	cmd.AddCommand(newIndexImportCommand(g))
	cmd.AddCommand(newIndexListCommand(g))
	cmd.AddCommand(newIndexShowCommand(g))
	cmd.AddCommand(newIndexRemoveCommand(g))

	return cmd
}

func newIndexImportCommand(g *globals) *cobra.Command {
	var (
		path      string
		fromPaths bool
		wildcards []string
	)

	cmd := &cobra.Command{
		Use:   "import <name> <file>",
		Short: "Store a component in the index",
		Long: `Store a component, replacing any component with the same name.

By default <file> holds a JSON object mapping each entity to its values, and
--path gives the component's path template. With --from-paths, <file> lists
one BIDS path per line; the values of the --wildcards entities are read from
each path and the path template is derived from them.

Examples:
  bidsflow index import t1w t1w.json --path 'sub-{subject}/anat/sub-{subject}_T1w.nii.gz'
  bidsflow index import bold bold.txt --from-paths --wildcards subject,task`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, file := args[0], args[1]

			var (
				c   bids.Component
				err error
			)
			if fromPaths {
				c, err = componentFromPaths(name, file, wildcards)
			} else {
				c, err = componentFromZipList(name, file, path)
			}
			if err != nil {
				return err
			}

			e, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.Put(cmd.Context(), c); err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), fmt.Sprintf("Imported %s (%d entries)", c.Name, c.Len()), g.noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "path template of the component")
	cmd.Flags().BoolVar(&fromPaths, "from-paths", false, "read BIDS paths instead of a zip list")
	cmd.Flags().StringSliceVar(&wildcards, "wildcards", []string{"subject"}, "entities read from each path with --from-paths")

	return cmd
}

func componentFromZipList(name, file, path string) (bids.Component, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return bids.Component{}, err
	}
	var z ziplist.ZipList
	if err := json.Unmarshal(data, &z); err != nil {
		return bids.Component{}, fmt.Errorf("failed to read zip list from %s: %w", file, err)
	}
	return bids.Component{Name: name, Path: path, ZipList: z}, nil
}

// componentFromPaths builds a component from BIDS paths sharing one
// template. Blank lines are skipped.
func componentFromPaths(name, file string, wildcards []string) (bids.Component, error) {
	f, err := os.Open(file)
	if err != nil {
		return bids.Component{}, err
	}
	defer f.Close()

	var template string
	columns := make(map[string][]string, len(wildcards))

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		p := strings.TrimSpace(scanner.Text())
		if p == "" {
			continue
		}
		tmpl, values := bids.ParseBIDSPath(p, wildcards)
		if template == "" {
			template = tmpl
		} else if tmpl != template {
			return bids.Component{}, fmt.Errorf("%s:%d: path %s does not match template %s", file, line, p, template)
		}
		for entity, value := range values {
			if value == "" {
				return bids.Component{}, fmt.Errorf("%s:%d: path %s has no %s", file, line, p, entity)
			}
			columns[entity] = append(columns[entity], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return bids.Component{}, err
	}
	return bids.NewComponent(name, template, columns)
}

func newIndexListCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed components",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			d, err := e.store.Load(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if d.Len() == 0 {
				ui.Warning(w, "No components indexed", g.noColor)
				return nil
			}

			table := ui.NewTable(w, []string{"component", "entries", "entities", "path"}, &ui.TableOptions{NoColor: g.noColor})
			for _, c := range d.Components() {
				table.AddRow(c.Name, strconv.Itoa(c.Len()), strings.Join(c.ZipList.Entities(), ","), c.Path)
			}
			table.Render()
			return nil
		},
	}
}

func newIndexShowCommand(g *globals) *cobra.Command {
	var expand bool

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print the entries of a component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			c, err := getComponent(cmd, e.store, g.noColor, args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			kv := ui.NewKeyValueTable(w, g.noColor)
			kv.AddRow("Name", c.Name)
			kv.AddRow("Path", c.Path)
			kv.AddRow("Entries", strconv.Itoa(c.Len()))
			lists := c.InputLists()
			for _, entity := range c.ZipList.Entities() {
				kv.AddRow(entity, strings.Join(lists[entity], ", "))
			}
			kv.Render()
			fmt.Fprintln(w)

			return renderComponent(w, c, expand, g.noColor)
		},
	}

	cmd.Flags().BoolVar(&expand, "expand", false, "print the expanded path of each entry")
	return cmd
}

func newIndexRemoveCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Remove a component from the index",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := getComponent(cmd, e.store, g.noColor, args[0]); err != nil {
				return err
			}
			if err := e.store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), "Removed "+args[0], g.noColor)
			return nil
		},
	}
}

// renderComponent prints one row per entry, with the expanded path when
// expand is set
func renderComponent(w io.Writer, c bids.Component, expand, noColor bool) error {
	headers := append([]string{"#"}, c.ZipList.Entities()...)
	var paths []string
	if expand {
		var err error
		if paths, err = c.Expand(); err != nil {
			return err
		}
		headers = append(headers, "path")
	}

	table := ui.NewTable(w, headers, &ui.TableOptions{NoColor: noColor})
	for i, row := range c.ZipList.Rows() {
		cells := []string{strconv.Itoa(i)}
		for _, entity := range c.ZipList.Entities() {
			cells = append(cells, row[entity])
		}
		if expand {
			cells = append(cells, paths[i])
		}
		table.AddRow(cells...)
	}
	table.Render()
	return nil
}
