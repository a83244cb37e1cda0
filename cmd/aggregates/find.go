package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dan-strohschein/syndrdb-aggregates/aggregate"
)

var (
	FindWhere  string
	FindParams []string
	FindOne    bool
	FindExists bool
)

var findCmd = &cobra.Command{
	Use:   "find <entity> [id...]",
	Short: "Read aggregates and print them as JSON",
	Long: `Read aggregates of the named root entity and print them as JSON.

With one id the aggregate with that id is printed, with several ids all of
them are. --where filters the roots with an SQL predicate over the root table
(alias t0) and named parameters given by --param.

Examples:
  aggregates find Order 1
  aggregates find Order 1 2 3
  aggregates find Order 1 --exists
  aggregates find Order --where "t0.customer = :customer" --param customer=ada --one`,
	Args: cobra.MinimumNArgs(1),
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

		params, err := parseParams(FindParams)
		if err != nil {
			return err
		}

		ids := parseIDs(args[1:])
		if FindWhere != "" && len(ids) > 0 {
			return fmt.Errorf("ids and --where cannot be combined")
		}
		if FindExists && len(ids) != 1 {
			return fmt.Errorf("--exists needs exactly one id")
		}

		c, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Disconnect(ctx)

		out := cmd.OutOrStdout()
		query := aggregate.Where(FindWhere, params)

		switch {
		case FindExists:
			found, err := c.ExistsByID(ctx, ids[0], shape)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, found)
			return nil

		case len(ids) == 1 || (FindOne && FindWhere != ""):
			var result any
			var found bool
			if len(ids) == 1 {
				result, found, err = c.FindByID(ctx, ids[0], shape)
			} else {
				result, found, err = c.FindOne(ctx, query, shape)
			}
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no %s found", shape.Name)
			}
			return printJSON(out, result)

		case len(ids) > 1:
			results, err := c.FindAllByID(ctx, ids, shape)
			if err != nil {
				return err
			}
			return printJSON(out, results)

		case FindWhere != "":
			results, err := c.FindAllByQuery(ctx, query, shape)
			if err != nil {
				return err
			}
			return printJSON(out, results)

		default:
			results, err := c.FindAll(ctx, shape)
			if err != nil {
				return err
			}
			return printJSON(out, results)
		}
	},
}

func init() {
	findCmd.Flags().StringVar(&FindWhere, "where", "", "predicate over the root table, alias t0")
	findCmd.Flags().StringArrayVar(&FindParams, "param", nil, "named parameter, name=value")
	findCmd.Flags().BoolVar(&FindOne, "one", false, "expect at most one aggregate matching --where")
	findCmd.Flags().BoolVar(&FindExists, "exists", false, "only report whether the aggregate exists")
}
