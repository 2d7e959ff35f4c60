package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/taxorank/checkpoint"
	"github.com/c360studio/taxorank/config"
	"github.com/c360studio/taxorank/engine"
	"github.com/c360studio/taxorank/export"
	"github.com/c360studio/taxorank/llm"
	"github.com/c360studio/taxorank/taxonomy"
)

// shutdownTimeout bounds the metrics server drain on exit.
const shutdownTimeout = 5 * time.Second

// cliOptions holds the persistent flags and the test seam for the model
// client.
type cliOptions struct {
	configPath string
	logLevel   string

	completer llm.Completer
}

// source selects a saved taxonomy.
type source struct {
	from       string
	taxonomyID string
}

func (s *source) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.from, "from", "", "Checkpoint location to load (<backend>://<key>)")
	cmd.Flags().StringVar(&s.taxonomyID, "taxonomy", "", "Taxonomy id; loads its newest save from the configured backend")
}

func rootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Taxonomy construction with a language model",
		Long: `Taxorank builds a taxonomy from a single concept name.

It resolves the concept to an acceptable root, derives the criteria and
rank sequences that partition it, then expands the hierarchy level by
level. Every step is checkpointed, so an interrupted build continues
with "taxorank expand --from <location>".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")

	cmd.AddCommand(
		buildCmd(opts),
		resolveCmd(opts),
		discoverCmd(opts),
		expandCmd(opts),
		exportCmd(opts),
		infoCmd(opts),
		configCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

// setup loads the layered config and builds the logger.
func (o *cliOptions) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.NewLoader(slog.New(slog.NewTextHandler(io.Discard, nil))).Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// withApp runs fn against a started App and always shuts it down. A --from
// location overrides the configured checkpoint backend.
func (o *cliOptions) withApp(cmd *cobra.Command, from string, fn func(ctx context.Context, app *App) error) error {
	cfg, logger, err := o.setup(cmd)
	if err != nil {
		return err
	}
	if from != "" {
		loc, err := checkpoint.ParseLocation(from)
		if err != nil {
			return err
		}
		cfg.Checkpoint.Backend = loc.Backend
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var appOpts []AppOption
	if o.completer != nil {
		appOpts = append(appOpts, WithCompleter(o.completer))
	}
	app, err := NewApp(ctx, cfg, logger, appOpts...)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Shutdown(sctx); err != nil {
			logger.Warn("Shutdown failed", "error", err)
		}
	}()

	if err := app.Start(); err != nil {
		return err
	}
	return fn(ctx, app)
}

func buildCmd(opts *cliOptions) *cobra.Command {
	var levels, workers int
	cmd := &cobra.Command{
		Use:   "build <concept>",
		Short: "Resolve a concept and grow its taxonomy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, "", func(ctx context.Context, app *App) error {
				err := app.Configure(func(e *config.EngineConfig) {
					if cmd.Flags().Changed("levels") {
						e.MaxLevels = levels
					}
					if cmd.Flags().Changed("workers") {
						e.Workers = workers
					}
				})
				if err != nil {
					return err
				}

				t, reports, err := app.Build(ctx, strings.Join(args, " "))
				printReports(cmd.OutOrStdout(), reports)
				return report(cmd.OutOrStdout(), t, err)
			})
		},
	}
	cmd.Flags().IntVar(&levels, "levels", 0, "Maximum expansion rounds (0 = until exhausted)")
	cmd.Flags().IntVar(&workers, "workers", 1, "Frontier concepts expanded concurrently")
	return cmd
}

func resolveCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <concept>",
		Short: "Find an acceptable root for a concept and save it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, "", func(ctx context.Context, app *App) error {
				t, err := app.Resolve(ctx, strings.Join(args, " "))
				return report(cmd.OutOrStdout(), t, err)
			})
		},
	}
}

func discoverCmd(opts *cliOptions) *cobra.Command {
	var src source
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Derive the criteria and rank sequences of a resolved taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, src.from, func(ctx context.Context, app *App) error {
				t, err := app.Load(ctx, src.from, src.taxonomyID)
				if err != nil {
					return err
				}
				err = app.Discover(ctx, t)
				return report(cmd.OutOrStdout(), t, err)
			})
		},
	}
	src.register(cmd)
	return cmd
}

func expandCmd(opts *cliOptions) *cobra.Command {
	var (
		src       source
		dimension int
		levels    int
	)
	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Expand a saved taxonomy by one or more levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, src.from, func(ctx context.Context, app *App) error {
				if cmd.Flags().Changed("levels") {
					if err := app.Configure(func(e *config.EngineConfig) { e.MaxLevels = levels }); err != nil {
						return err
					}
				}

				t, err := app.Load(ctx, src.from, src.taxonomyID)
				if err != nil {
					return err
				}
				reports, err := app.Expand(ctx, t, dimension)
				printReports(cmd.OutOrStdout(), reports)
				return report(cmd.OutOrStdout(), t, err)
			})
		},
	}
	src.register(cmd)
	cmd.Flags().IntVar(&dimension, "dimension", -1, "Expand only this dimension by one rank (-1 = every dimension)")
	cmd.Flags().IntVar(&levels, "levels", 0, "Maximum expansion rounds (0 = until exhausted)")
	return cmd
}

func exportCmd(opts *cliOptions) *cobra.Command {
	var (
		src       source
		format    string
		namespace string
		out       string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the class hierarchy of a saved taxonomy as RDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, src.from, func(ctx context.Context, app *App) error {
				if format == "" {
					format = app.cfg.Export.Format
				}
				f, err := export.ParseFormat(format)
				if err != nil {
					return err
				}
				if namespace == "" {
					namespace = app.cfg.Export.Namespace
				}

				t, err := app.Load(ctx, src.from, src.taxonomyID)
				if err != nil {
					return err
				}

				if out == "" || out == "-" {
					_, err := app.Export(t, f, namespace, cmd.OutOrStdout())
					return err
				}

				file, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				info, err := app.Export(t, f, namespace, file)
				if cerr := file.Close(); err == nil && cerr != nil {
					err = fmt.Errorf("close output file: %w", cerr)
				}
				if err != nil {
					return err
				}
				app.logger.Info("Hierarchy exported",
					"taxonomy", t.ID(),
					"format", info.Name,
					"path", out)
				return nil
			})
		},
	}
	src.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (rdfxml, turtle, ntriples, jsonld)")
	cmd.Flags().StringVar(&namespace, "namespace", "", "Namespace for class IRIs")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func infoCmd(opts *cliOptions) *cobra.Command {
	var (
		src    source
		cotopy string
	)
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Summarize a saved taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, src.from, func(ctx context.Context, app *App) error {
				t, err := app.Load(ctx, src.from, src.taxonomyID)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if cotopy == "" {
					fmt.Fprint(w, t.Summary())
					return nil
				}
				id, ok := t.Lookup(cotopy)
				if !ok {
					return fmt.Errorf("concept %q is not in taxonomy %s", cotopy, t.ID())
				}
				for _, name := range t.SemanticCotopy(id) {
					fmt.Fprintln(w, name)
				}
				return nil
			})
		},
	}
	src.register(cmd)
	cmd.Flags().StringVar(&cotopy, "cotopy", "", "Print the ancestors and descendants of this concept instead")
	return cmd
}

func configCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create the user config file with defaults",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := config.NewLoader(nil).EnsureUserConfig()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := opts.setup(cmd)
				if err != nil {
					return err
				}
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("marshal config: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
	)
	return cmd
}

// report prints the summary and the newest checkpoint of t. An interrupted
// run still prints both, then returns the error.
func report(w io.Writer, t *taxonomy.Taxonomy, err error) error {
	if t != nil {
		fmt.Fprint(w, t.Summary())
		if saves := t.Saves(); len(saves) > 0 {
			fmt.Fprintf(w, "checkpoint: %s\n", saves[len(saves)-1])
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("interrupted, progress was saved: %w", err)
	}
	return err
}

func printReports(w io.Writer, reports []engine.LevelReport) {
	for _, r := range reports {
		rank := r.Rank
		if rank == "" {
			rank = "(done)"
		}
		fmt.Fprintf(w, "dimension %d rank %q: processed %d, skipped %d, created %d, unknown %d, deferred %d\n",
			r.Dimension, rank, r.Processed, r.Skipped, r.Created, r.Unknown, r.Deferred)
	}
}
