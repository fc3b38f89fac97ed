// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/migrate"
	"github.com/localmart/localmart/internal/schema"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	databaseURL string
	verbose     bool
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply database migrations and inspect the logical schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "overrides database.url from config")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		upCmd(opts),
		downCmd(opts),
		stepsCmd(opts),
		versionCmd(opts),
		forceCmd(opts),
		filesCmd(),
		schemaCmd(),
	)
	return cmd
}

func (o *options) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withRunner opens the database named by config, hands a runner to fn and
// closes both afterwards.
func (o *options) withRunner(ctx context.Context, fn func(*migrate.Runner) error) error {
	url := o.databaseURL
	if url == "" {
		cfg, err := config.Parse(o.configPath)
		if err != nil {
			return err
		}
		url = cfg.Database.URL
	}
	if url == "" {
		return fmt.Errorf("database url is required (--database-url or DATABASE_URL)")
	}

	db, err := core.NewDatabase(ctx, config.DatabaseConfig{URL: url, MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		return err
	}

	runner, err := migrate.New(db.DB.DB, o.logger())
	if err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return err
	}
	defer func() {
		if cerr := runner.Close(); cerr != nil {
			o.logger().Warn("close migrator", "error", cerr)
		}
	}()

	return fn(runner)
}

func upCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRunner(cmd.Context(), func(r *migrate.Runner) error {
				return r.Up()
			})
		},
	}
}

func downCmd(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Revert every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("down drops every table; pass --yes to confirm")
			}
			return opts.withRunner(cmd.Context(), func(r *migrate.Runner) error {
				return r.Down()
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm dropping all tables")
	return cmd
}

func stepsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or revert -N",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("steps: %w", err)
			}
			return opts.withRunner(cmd.Context(), func(r *migrate.Runner) error {
				return r.Steps(n)
			})
		},
	}
}

func versionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRunner(cmd.Context(), func(r *migrate.Runner) error {
				v, dirty, err := r.Version()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if dirty {
					fmt.Fprintf(out, "%d (dirty)\n", v)
					return nil
				}
				fmt.Fprintln(out, v)
				return nil
			})
		},
	}
}

func forceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Record VERSION as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("force: %w", err)
			}
			return opts.withRunner(cmd.Context(), func(r *migrate.Runner) error {
				return r.Force(v)
			})
		},
	}
}

func filesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List the embedded SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := migrate.Files()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tDIRECTION\tBYTES")
			for _, f := range files {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", f.Version, f.Name, f.Direction, len(f.SQL))
			}
			return tw.Flush()
		},
	}
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the logical collection schema",
	}
	cmd.AddCommand(schemaHistoryCmd(), schemaDumpCmd(), schemaVerifyCmd())
	return cmd
}

func schemaHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List schema migrations in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME")
			for _, m := range schema.Default().Migrations() {
				fmt.Fprintf(tw, "%d\t%s\n", m.Version, m.Name)
			}
			return tw.Flush()
		},
	}
}

func schemaDumpCmd() *cobra.Command {
	var (
		at         int64
		collection string
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the schema as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := stateAt(at)
			if err != nil {
				return err
			}
			if collection == "" {
				return writeYAML(cmd.OutOrStdout(), st)
			}
			c, err := st.Find(collection)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), c)
		},
	}
	cmd.Flags().Int64Var(&at, "at", 0, "stop after this migration version (default: latest)")
	cmd.Flags().StringVar(&collection, "collection", "", "dump a single collection by id or name")
	return cmd
}

func schemaVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Apply the full history, check the result and revert it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set := schema.Default()
			st := schema.NewState()
			if err := set.Apply(st); err != nil {
				return err
			}
			if err := schema.Verify(st); err != nil {
				return err
			}
			if err := set.RevertAll(st); err != nil {
				return err
			}
			if !st.Equal(schema.NewState()) {
				return fmt.Errorf("reverting the full history left %d collections", len(st.Collections))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d migrations, latest %d\n",
				len(set.Migrations()), set.Latest())
			return nil
		},
	}
}

func stateAt(version int64) (*schema.State, error) {
	set := schema.Default()
	if version == 0 {
		version = set.Latest()
	}
	st := schema.NewState()
	if err := set.ApplyUntil(st, version); err != nil {
		return nil, err
	}
	return st, nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
