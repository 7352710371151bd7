package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/chadostore/internal/schema"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		customFiles []string
		printDDL    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the Chado tables of the configured schema version",
		Long: "Creates every table of the configured Chado version that does not exist\n" +
			"yet. Custom tables can be added from YAML table definitions.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			for _, path := range customFiles {
				def, err := readTableDef(path)
				if err != nil {
					return err
				}
				if err := sess.catalog.RegisterCustomTable(def); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			defs, err := initTables(sess)
			if err != nil {
				return err
			}

			if printDDL {
				stmts, err := sess.db.TableDDL(defs)
				if err != nil {
					return err
				}
				for _, s := range stmts {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", s)
				}
				return nil
			}

			if err := sess.db.CreateTables(ctx, defs); err != nil {
				return asSysError(err)
			}
			a.logger.Info("schema initialized", "version", sess.version.Version(), "tables", len(defs))
			if a.flags.jsonMode {
				return writeJSON(cmd, map[string]any{
					"version": sess.version.Version(),
					"driver":  sess.db.Driver(),
					"tables":  len(defs),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized Chado %s schema (%d tables, %s)\n",
				sess.version.Version(), len(defs), sess.db.Driver())
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&customFiles, "custom", nil, "YAML file defining a custom table (repeatable)")
	cmd.Flags().BoolVar(&printDDL, "ddl", false, "print the CREATE TABLE statements instead of running them")
	return cmd
}

// initTables returns the versioned and custom table definitions, sorted by
// name.
func initTables(sess *session) ([]*schema.TableDef, error) {
	var defs []*schema.TableDef
	for _, def := range sess.version.Tables() {
		defs = append(defs, def)
	}
	for _, name := range sess.catalog.CustomTables() {
		def, err := sess.catalog.CustomTableSchema(name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

func readTableDef(path string) (*schema.TableDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table definition: %w", err)
	}
	var def schema.TableDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &def, nil
}
