package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

var (
	ExecParams []string
	ExecRows   string
	ExecKeys   []string
)

var execCmd = &cobra.Command{
	Use:   "exec <sql>",
	Short: "Run an insert or update statement",
	Long: `Run a statement with named parameters.

Without --rows the statement runs once with the --param values. With --rows it
runs once per parameter set of a YAML or JSON list, and the outcome of every
set is printed. --key names the generated key columns to report.

Examples:
  aggregates exec "INSERT INTO purchase_order (id, customer) VALUES (:id, :customer)" --param id=7 --param customer=ada
  aggregates exec "INSERT INTO line_item (order_id, sku) VALUES (:order_id, :sku)" --rows items.yaml --key id`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfiguration(ctx)
		if err != nil {
			return err
		}

		params, err := parseParams(ExecParams)
		if err != nil {
			return err
		}

		var batch []transport.Params
		if ExecRows != "" {
			f, err := os.Open(ExecRows)
			if err != nil {
				return err
			}
			batch, err = readBatch(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", ExecRows, err)
			}
		}

		c, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Disconnect(ctx)

		out := cmd.OutOrStdout()
		if ExecRows == "" {
			key, ok, err := c.Execute(ctx, args[0], params, ExecKeys...)
			if err != nil {
				return err
			}
			if ok {
				printSuccess(out, fmt.Sprintf("generated key %v", key))
			} else {
				printSuccess(out, "done")
			}
			return nil
		}

		holder := transport.NewKeyHolder()
		outcomes, err := c.BatchExecute(ctx, args[0], batch, holder, ExecKeys...)

		var batchErr *dataaccess.BatchError
		if err != nil && !errors.As(err, &batchErr) {
			return err
		}

		printTable(out, []string{"ROW", "OUTCOME"}, outcomeRows(outcomes))
		if keys := holder.KeyList(); len(ExecKeys) > 0 && len(keys) > 0 {
			fmt.Fprintln(out)
			if err := printJSON(out, keys); err != nil {
				return err
			}
		}
		return err
	},
}

func outcomeRows(outcomes []transport.Outcome) [][]string {
	rows := make([][]string, len(outcomes))
	for i, o := range outcomes {
		rows[i] = []string{strconv.Itoa(i), o.String()}
	}
	return rows
}

func init() {
	execCmd.Flags().StringArrayVar(&ExecParams, "param", nil, "named parameter, name=value")
	execCmd.Flags().StringVar(&ExecRows, "rows", "", "YAML or JSON file with a list of parameter sets")
	execCmd.Flags().StringSliceVar(&ExecKeys, "key", nil, "generated key column")
}
