package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dan-strohschein/syndrdb-aggregates/codegen"
	"github.com/dan-strohschein/syndrdb-aggregates/schema"
	"github.com/dan-strohschein/syndrdb-aggregates/sqlgen"
)

var (
	DDLDrop      bool
	DDLApply     bool
	SchemaStrict bool
)

var shapesCmd = &cobra.Command{
	Use:   "shapes",
	Short: "Inspect shape definitions",
}

var shapesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entities and the relations of every aggregate root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration(cmd.Context())
		if err != nil {
			return err
		}
		reg, err := loadShapes(cfg.Shapes)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printHeader(out, "Entities")
		var rows [][]string
		for _, name := range reg.Names() {
			e, _ := reg.Get(name)
			rows = append(rows, []string{e.Name, e.Table, e.ID.ColumnName(), strconv.Itoa(len(e.Properties)), strconv.Itoa(len(e.Relations))})
		}
		printTable(out, []string{"ENTITY", "TABLE", "ID", "PROPERTIES", "RELATIONS"}, rows)

		for _, root := range reg.Roots() {
			fmt.Fprintln(out)
			printHeader(out, "Aggregate "+root.Name)
			printTable(out, []string{"PATH", "KIND", "ENTITY", "FETCH", "BACK REFERENCE", "KEY"}, relationRows(root))
		}
		return nil
	},
}

func relationRows(root *schema.Entity) [][]string {
	var rows [][]string
	root.Walk(func(path schema.Path, rel *schema.Relation) {
		rows = append(rows, []string{
			path.String(),
			string(rel.Kind),
			rel.Target.Name,
			string(rel.FetchMode()),
			rel.BackReference,
			rel.KeyColumn,
		})
	})
	return rows
}

var shapesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that every shape can be read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration(cmd.Context())
		if err != nil {
			return err
		}
		reg, err := loadShapes(cfg.Shapes)
		if err != nil {
			return err
		}

		printSuccess(cmd.OutOrStdout(), fmt.Sprintf("%s: %d entities, %d aggregate roots", cfg.Shapes, len(reg.Names()), len(reg.Roots())))
		return nil
	},
}

var shapesSQLCmd = &cobra.Command{
	Use:   "sql <entity>",
	Short: "Print the SELECT statement used to read an aggregate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration(cmd.Context())
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

		joins := cfg.Options().SingleQuery
		stmt := sqlgen.New(joins).SelectAll(shape)
		fmt.Fprintln(cmd.OutOrStdout(), stmt.SQL)
		return nil
	},
}

var shapesJSONSchemaCmd = &cobra.Command{
	Use:   "jsonschema <entity>",
	Short: "Print the JSON Schema of the documents read for an aggregate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration(cmd.Context())
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

		gen := codegen.NewJSONSchemaGenerator()
		gen.Strict = SchemaStrict
		out, err := gen.Generate(shape)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var shapesDDLCmd = &cobra.Command{
	Use:   "ddl <entity>",
	Short: "Print or apply the tables of an aggregate",
	Long: `Print CREATE TABLE statements for an aggregate root and every entity it owns.
With --drop the DROP TABLE statements are printed instead. With --apply the
statements are run against the configured database.`,
	Args: cobra.ExactArgs(1),
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

		statements := schema.SerializeCreateTables(shape)
		if DDLDrop {
			statements = schema.SerializeDropTables(shape)
		}

		out := cmd.OutOrStdout()
		if !DDLApply {
			for _, stmt := range statements {
				fmt.Fprintln(out, stmt)
			}
			return nil
		}

		c, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Disconnect(ctx)

		for _, stmt := range statements {
			if _, _, err := c.Execute(ctx, stmt, nil); err != nil {
				return err
			}
		}
		printSuccess(out, fmt.Sprintf("applied %d statement(s)", len(statements)))
		return nil
	},
}

func init() {
	shapesDDLCmd.Flags().BoolVar(&DDLDrop, "drop", false, "drop the tables instead of creating them")
	shapesDDLCmd.Flags().BoolVar(&DDLApply, "apply", false, "run the statements against the database")

	shapesJSONSchemaCmd.Flags().BoolVar(&SchemaStrict, "strict", false, "require every property")

	shapesCmd.AddCommand(shapesListCmd, shapesValidateCmd, shapesSQLCmd, shapesJSONSchemaCmd, shapesDDLCmd)
}
