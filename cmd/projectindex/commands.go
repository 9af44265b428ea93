package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/projectindex/internal/app"
	"github.com/dshills/projectindex/internal/config"
	"github.com/dshills/projectindex/internal/indexer"
	"github.com/dshills/projectindex/internal/storage"
)

type options struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "projectindex",
		Short:         "Secondary index over hierarchical project configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (default "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newReindexCmd(opts),
		newCheckCmd(opts),
		newIndexCmd(opts),
		newSearchCmd(opts),
		newActivateCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads the configuration and wires the application. Logs go to
// stderr; stdout carries command output or the MCP protocol.
func setup(ctx context.Context, opts *options) (*app.App, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	return app.New(ctx, cfg, logger)
}

func newReindexCmd(opts *options) *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild an index version from every project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			result, err := a.Reindex(cmd.Context(), version)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			if !result.Success {
				return fmt.Errorf("reindex of v%d incomplete: %d failed", result.Version, result.Failed)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "schema version to rebuild (default: the search version)")
	return cmd
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <project>...",
		Short: "Report whether indexed projects are stale",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := cmd.OutOrStdout()
			for _, name := range args {
				result, err := a.Checker.Check(cmd.Context(), name)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				fmt.Fprintf(out, "%s: %s\n", name, result)
				if diff := result.Diff(); diff != "" {
					fmt.Fprintln(out, diff)
				}
			}
			return nil
		},
	}
}

func newIndexCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "index <project>...",
		Short: "Reload projects from disk and write them to every write index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			for _, name := range args {
				if err := a.Cache.Refresh(cmd.Context(), name); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				if err := a.Indexer.Index(cmd.Context(), name); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %s\n", name)
			}
			return nil
		},
	}
}

func newSearchCmd(opts *options) *cobra.Command {
	var (
		start  int
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed projects",
		Long: `Search indexed projects with operator terms:

  name:, parent:, ancestor:, prefix:, substring:, inname:, description:, state:

Bare words match name substrings or description words. Adjacent terms are
ANDed, OR separates alternatives, and '-' negates.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			results, err := a.Search(cmd.Context(), strings.Join(args, " "), start, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				rows := make([]map[string]string, 0, len(results))
				for _, pd := range results {
					p := pd.Project()
					rows = append(rows, map[string]string{
						"name":        p.Name,
						"parent":      p.Parent,
						"state":       string(p.State),
						"description": p.Description,
					})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			for _, pd := range results {
				p := pd.Project()
				fmt.Fprintf(out, "%s\t%s\t%s\n", p.Name, p.State, p.Description)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "number of results to skip")
	cmd.Flags().IntVar(&limit, "limit", 25, "maximum number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newActivateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <version>",
		Short: "Build a schema version and switch searches to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			a, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			result, err := a.Activate(cmd.Context(), version)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			if !result.Success {
				return fmt.Errorf("v%d not activated: %d failed", version, result.Failed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "searches now use v%d\n", version)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "projectindex\n")
			fmt.Fprintf(out, "Version: %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
		},
	}
}

func printResult(w io.Writer, r indexer.Result) {
	fmt.Fprintf(w, "run %s: v%d done=%d failed=%d success=%t elapsed=%s\n",
		r.RunID, r.Version, r.Done, r.Failed, r.Success, r.Elapsed.Round(time.Millisecond))
}
