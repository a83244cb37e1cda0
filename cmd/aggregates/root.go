package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/spf13/cobra"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dan-strohschein/syndrdb-aggregates/client"
	"github.com/dan-strohschein/syndrdb-aggregates/dialect"
	"github.com/dan-strohschein/syndrdb-aggregates/schema"
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
	"github.com/dan-strohschein/syndrdb-aggregates/transport/postgres"
	"github.com/dan-strohschein/syndrdb-aggregates/transport/sqldb"
)

var (
	ConfigPath string
	Driver     string
	DSN        string
	ShapesPath string
	NoJoins    bool

	log = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "aggregates",
	Short: "Load relational aggregates as documents",
	Long: `aggregates reads aggregate roots and everything they own from a relational
database, using one joined query per read where the shape allows it.

Settings come from a YAML configuration file (--config or AGGREGATES_CONFIG),
environment variables (AGGREGATES_DRIVER, AGGREGATES_DSN, AGGREGATES_SHAPES,
AGGREGATES_MIGRATIONS)
and flags, flags taking precedence.

Examples:
  aggregates shapes list --shapes shapes.yaml
  aggregates shapes ddl Order --apply --driver duckdb --dsn orders.db
  aggregates find Order 1 --driver duckdb --dsn orders.db
  aggregates find Order --where "t0.customer = :customer" --param customer=ada
  aggregates migrate new Order --dir migrations
  aggregates migrate up --driver duckdb --dsn orders.db`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ConfigPath, "config", "c", "", "configuration file")
	flags.StringVar(&Driver, "driver", "", "driver: duckdb, pgx (database/sql) or pgxpool (native)")
	flags.StringVar(&DSN, "dsn", "", "data source name")
	flags.StringVar(&ShapesPath, "shapes", "", "shape definitions file")
	flags.BoolVar(&NoJoins, "no-joins", false, "fetch every relation with its own query")

	rootCmd.AddCommand(shapesCmd, findCmd, execCmd, migrateCmd, versionCmd)
}

// loadConfiguration merges the configuration file, the environment and the
// command line flags.
func loadConfiguration(ctx context.Context) (*client.Configuration, error) {
	path := ConfigPath
	if path == "" {
		path = env.GetVariableOrDefault(ctx, "AGGREGATES_CONFIG", "")
	}

	cfg := &client.Configuration{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		cfg, err = client.LoadConfiguration(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if Driver != "" && Driver != cfg.Driver {
		cfg.Driver, cfg.Dialect = Driver, ""
	}
	if cfg.Driver == "" {
		cfg.Driver = env.GetVariableOrDefault(ctx, "AGGREGATES_DRIVER", "duckdb")
	}
	if cfg.Dialect == "" {
		cfg.Dialect = cfg.Driver
	}

	if DSN != "" {
		cfg.DSN = DSN
	} else if cfg.DSN == "" {
		cfg.DSN = env.GetVariableOrDefault(ctx, "AGGREGATES_DSN", "")
	}

	if ShapesPath != "" {
		cfg.Shapes = ShapesPath
	} else if cfg.Shapes == "" {
		cfg.Shapes = env.GetVariableOrDefault(ctx, "AGGREGATES_SHAPES", "shapes.yaml")
	}

	if NoJoins {
		singleQuery := false
		cfg.SingleQuery = &singleQuery
	}

	return cfg, nil
}

func loadShapes(path string) (*schema.Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reg, err := schema.LoadShapes(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

func lookupShape(reg *schema.Registry, name string) (*schema.Entity, error) {
	shape, ok := reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("no shape named %q, known shapes are %v", name, reg.Names())
	}
	return shape, nil
}

// transportFactory opens the transport named by cfg.Driver.
func transportFactory(cfg *client.Configuration) transport.Factory {
	return func(ctx context.Context) (transport.Transport, error) {
		if cfg.Driver == "pgxpool" {
			tr, err := postgres.Connect(ctx, cfg.DSN)
			if err != nil {
				return nil, err
			}
			return tr, nil
		}

		d, err := dialect.ByName(cfg.Dialect)
		if err != nil {
			return nil, err
		}

		opts := []sqldb.Option{sqldb.WithPlaceholder(d.Placeholder())}
		if d.ArrayColumns().IsSupported() {
			opts = append(opts, sqldb.WithReturning())
		}

		tr, err := sqldb.Open(ctx, cfg.Driver, cfg.DSN, opts...)
		if err != nil {
			return nil, err
		}
		return tr, nil
	}
}

// connect returns a connected client. The caller disconnects it.
func connect(ctx context.Context, cfg *client.Configuration) (*client.Client, error) {
	opts := cfg.Options()
	opts.Logger = client.NewSlogLogger(log)

	c := client.NewClient(&opts)
	c.RegisterHook(client.NewLoggingHook(opts.Logger, true, true, true))
	c.RegisterHook(client.NewTracingHook(cfg.Dialect, nil))

	if err := c.Connect(ctx, transportFactory(cfg)); err != nil {
		return nil, err
	}
	return c, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (client %s)\n", appName, appVersion, client.Version)
	},
}
