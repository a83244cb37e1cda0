package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/spf13/cobra"

	"github.com/dan-strohschein/syndrdb-aggregates/migration"
)

var (
	MigrationsDir string
	MigrateDryRun bool
	MigrateTo     string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create and apply schema migrations",
	Long: `Migrations are YAML files in the migrations directory (--dir or
AGGREGATES_MIGRATIONS). Applied migrations are recorded in the
schema_migrations table of the configured database.`,
}

var migrateNewCmd = &cobra.Command{
	Use:   "new <entity>",
	Short: "Write a migration creating the tables of an aggregate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfiguration(ctx)
		if err != nil {
			return err
		}
		reg, err := loadShapes(cfg.Shapes)
		if err != nil {
			return err
		}
		shape, err := lookupShape(reg, args[0])
		if err != nil {
			return err
		}

		m, err := migration.FromShape(shape, time.Now())
		if err != nil {
			return err
		}
		path, err := migration.WriteFile(m, migrationsDir(ctx))
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "created "+path)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd.Context(), func(ctx context.Context, r *migration.Runner, migrations []*migration.Migration) error {
			var rows [][]string
			for _, e := range r.Status(migrations) {
				appliedAt := ""
				if !e.AppliedAt.IsZero() {
					appliedAt = e.AppliedAt.Format(time.RFC3339)
				}
				rows = append(rows, []string{e.ID, e.Name, string(e.Status), appliedAt})
			}
			printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "STATUS", "APPLIED AT"}, rows)
			return nil
		})
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd.Context(), func(ctx context.Context, r *migration.Runner, migrations []*migration.Migration) error {
			plan, err := r.Plan(migrations)
			if err != nil {
				return err
			}
			return runPlan(ctx, cmd.OutOrStdout(), r, plan)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration, or every migration down to --to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd.Context(), func(ctx context.Context, r *migration.Runner, migrations []*migration.Migration) error {
			plan, err := r.RollbackPlan(migrations, MigrateTo)
			if err != nil {
				return err
			}
			return runPlan(ctx, cmd.OutOrStdout(), r, plan)
		})
	},
}

func runPlan(ctx context.Context, out io.Writer, r *migration.Runner, plan *migration.Plan) error {
	if len(plan.Migrations) == 0 {
		printSuccess(out, "nothing to do")
		return nil
	}

	plan.DryRun = MigrateDryRun
	printHeader(out, fmt.Sprintf("Migrations (%s)", plan.Direction))
	for _, m := range plan.Migrations {
		fmt.Fprintf(out, "  %s  %s\n", m.ID, m.Name)
	}

	n, err := r.Apply(ctx, plan)
	if err != nil {
		return err
	}
	if plan.DryRun {
		printSuccess(out, "dry run, nothing executed")
		return nil
	}
	verb := "applied"
	if plan.Direction == migration.Down {
		verb = "rolled back"
	}
	printSuccess(out, fmt.Sprintf("%d migration(s) %s", n, verb))
	return nil
}

func migrationsDir(ctx context.Context) string {
	if MigrationsDir != "" {
		return MigrationsDir
	}
	return env.GetVariableOrDefault(ctx, "AGGREGATES_MIGRATIONS", "migrations")
}

// withRunner connects, loads history and migration files and calls fn.
func withRunner(ctx context.Context, fn func(ctx context.Context, r *migration.Runner, migrations []*migration.Migration) error) error {
	cfg, err := loadConfiguration(ctx)
	if err != nil {
		return err
	}

	dir := migrationsDir(ctx)
	migrations, err := migration.ListFiles(dir)
	if err != nil {
		return err
	}

	staleTimeout, err := time.ParseDuration(env.GetVariableOrDefault(ctx, "AGGREGATES_LOCK_TIMEOUT", "1h"))
	if err != nil {
		return fmt.Errorf("AGGREGATES_LOCK_TIMEOUT: %w", err)
	}

	c, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Disconnect(ctx)

	r := migration.NewRunner(c,
		migration.WithLock(migration.NewLock(dir, staleTimeout, log)),
		migration.WithLogger(log),
	)
	if err := r.Load(ctx); err != nil {
		return err
	}
	return fn(ctx, r, migrations)
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&MigrationsDir, "dir", "", "migrations directory")
	migrateUpCmd.Flags().BoolVar(&MigrateDryRun, "dry-run", false, "print the plan without executing it")
	migrateDownCmd.Flags().BoolVar(&MigrateDryRun, "dry-run", false, "print the plan without executing it")
	migrateDownCmd.Flags().StringVar(&MigrateTo, "to", "", "roll back every migration down to and including this id")

	migrateCmd.AddCommand(migrateNewCmd, migrateStatusCmd, migrateUpCmd, migrateDownCmd)
}
