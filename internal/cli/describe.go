package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chadostore/internal/schema"
)

func newDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table>",
		Short: "Show the columns and keys of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, vc, err := a.catalog()
			if err != nil {
				return err
			}
			def, err := vc.TableDef(args[0])
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(cmd, def)
			}
			return describeTable(cmd.OutOrStdout(), def)
		},
	}
}

func describeTable(w io.Writer, def *schema.TableDef) error {
	fmt.Fprintf(w, "Table: %s\n", def.Name)
	if def.Description != "" {
		fmt.Fprintf(w, "%s\n", firstLine(def.Description))
	}
	fmt.Fprintln(w)

	rows := make([]string, 0, len(def.Fields))
	for _, c := range def.Fields {
		typ := c.Type
		if c.Length > 0 {
			typ = fmt.Sprintf("%s(%d)", c.Type, c.Length)
		}
		null := ""
		if c.NotNull {
			null = "not null"
		}
		rows = append(rows, fmt.Sprintf("%s\t%s\t%s\t%s", c.Name, typ, null, c.Default))
	}
	if err := writeTable(w, "COLUMN\tTYPE\tNULL\tDEFAULT", rows); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if len(def.PrimaryKey) > 0 {
		fmt.Fprintf(w, "Primary key: %s\n", strings.Join(def.PrimaryKey, ", "))
	}
	names := make([]string, 0, len(def.UniqueKeys))
	for name := range def.UniqueKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "Unique %s: %s\n", name, strings.Join(def.UniqueKeys[name], ", "))
	}
	for _, fk := range def.ForeignKeys {
		cols := make([]string, 0, len(fk.Columns))
		for local, ref := range fk.Columns {
			cols = append(cols, fmt.Sprintf("%s > %s.%s", local, fk.Table, ref))
		}
		sort.Strings(cols)
		fmt.Fprintf(w, "Foreign key: %s\n", strings.Join(cols, ", "))
	}
	return nil
}
