package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chadostore/internal/export"
	"github.com/mesh-intelligence/chadostore/internal/schema"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		dir   string
		check bool
	)
	cmd := &cobra.Command{
		Use:   "export [table...]",
		Short: "Write table rows to JSONL files",
		Long:  "Writes the rows of the named tables, or of every table, to <dir>/<table>.jsonl.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			var defs []*schema.TableDef
			if len(args) == 0 {
				defs, err = initTables(sess)
				if err != nil {
					return err
				}
			}
			for _, name := range args {
				def, err := sess.version.TableDef(name)
				if err != nil {
					return err
				}
				defs = append(defs, def)
			}

			counts, err := export.Tables(ctx, sess.db, defs, dir)
			if err != nil {
				return asSysError(err)
			}
			if check {
				if err := export.Check(dir, counts); err != nil {
					return asSysError(err)
				}
				a.logger.Debug("export checked", "dir", dir, "tables", len(counts))
			}
			if a.flags.jsonMode {
				return writeJSON(cmd, counts)
			}
			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, fmt.Sprintf("%s\t%d", name, counts[name]))
			}
			return writeTable(cmd.OutOrStdout(), "TABLE\tROWS", rows)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "export", "output directory")
	cmd.Flags().BoolVar(&check, "check", false, "read the files back and compare row counts")
	return cmd
}
