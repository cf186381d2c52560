package commands

import (
	"context"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globals holds the persistent flags shared by every command
type globals struct {
	configPath string
	logLevel   string
	noColor    bool
}

func (g *globals) bind(fs *pflag.FlagSet) {
	fs.StringVar(&g.configPath, "config", "", "config file (default ./bidsflow.yml)")
	fs.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVar(&g.noColor, "no-color", false, "disable colored output")
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "bidsflow",
		Short: "Input generation for BIDS workflows",
		Long: color.CyanString(`bidsflow - BIDS workflow inputs

bidsflow keeps an index of the files matched for each input component of a
BIDS dataset, filters them by entity values and participants, and hands the
result to a workflow.

Features:
  • Pluggable stage pipeline with pre and post mutators
  • Literal and regex entity filters
  • SQLite or Postgres component index
  • Memory or Redis dataset cache`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}
	g.bind(rootCmd.PersistentFlags())

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewRunCommand(g))
	rootCmd.AddCommand(NewFilterCommand(g))
	rootCmd.AddCommand(NewIndexCommand(g))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the bidsflow version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			w := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)

			titleColor.Fprint(w, "bidsflow version: ")
			fmt.Fprintln(w, Version)

			titleColor.Fprint(w, "Git commit: ")
			fmt.Fprintln(w, GitCommit)

			titleColor.Fprint(w, "Build date: ")
			fmt.Fprintln(w, BuildDate)

			titleColor.Fprint(w, "Go version: ")
			fmt.Fprintln(w, goVer)
		},
	}
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
