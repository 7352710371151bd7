package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

type tableSummary struct {
	Name        string `json:"name"`
	Base        bool   `json:"base"`
	Columns     int    `json:"columns"`
	Description string `json:"description,omitempty"`
}

func newTablesCmd(a *app) *cobra.Command {
	var baseOnly bool
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the configured schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, vc, err := a.catalog()
			if err != nil {
				return err
			}
			var out []tableSummary
			for name, def := range vc.Tables() {
				base := vc.IsBaseTable(name)
				if baseOnly && !base {
					continue
				}
				out = append(out, tableSummary{
					Name:        name,
					Base:        base,
					Columns:     len(def.Fields),
					Description: firstLine(def.Description),
				})
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

			if a.flags.jsonMode {
				return writeJSON(cmd, out)
			}
			rows := make([]string, 0, len(out))
			for _, t := range out {
				base := ""
				if t.Base {
					base = "yes"
				}
				rows = append(rows, fmt.Sprintf("%s\t%s\t%d\t%s", t.Name, base, t.Columns, t.Description))
			}
			return writeTable(cmd.OutOrStdout(), "TABLE\tBASE\tCOLUMNS\tDESCRIPTION", rows)
		},
	}
	cmd.Flags().BoolVar(&baseOnly, "base", false, "list only base tables")
	return cmd
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
