package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chadostore/internal/mapping"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

const (
	opInsert = "insert"
	opUpdate = "update"
	opLoad   = "load"
)

// ErrRegisterTypes is returned when the property types of a mapping
// document cannot all be registered.
var ErrRegisterTypes = errors.New("cannot register property types")

var valuesShort = map[string]string{
	opInsert: "Insert field values as new Chado records",
	opUpdate: "Update the Chado records of field values",
	opLoad:   "Load field values from Chado records",
}

func newValuesCmd(a *app, op string) *cobra.Command {
	var mappingFile string
	cmd := &cobra.Command{
		Use:   op + " --mapping <file> field[delta].key=value...",
		Short: valuesShort[op],
		Long: valuesShort[op] + ".\n\n" +
			"Fields and their property types come from a mapping document. Each\n" +
			"argument assigns one property value; the delta defaults to 0. After\n" +
			"the operation every non-empty property value is printed.",
		Example: "  chadostore " + op + " --mapping fields.yaml organism.record_id=1",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := mapping.Load(mappingFile)
			if err != nil {
				return err
			}
			assigns, err := mapping.ParseAssignments(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			resolved, err := doc.Resolve(sess.builder, sess.version.Version())
			if err != nil {
				return err
			}
			for _, r := range resolved {
				if !sess.storage.AddTypes(r.Types...) {
					return fmt.Errorf("%w: field %s", ErrRegisterTypes, r.Definition.Name)
				}
			}
			values, err := mapping.BuildValues(resolved, assigns)
			if err != nil {
				return err
			}

			switch op {
			case opInsert, opUpdate:
				if errs := sess.storage.ValidateValues(values); len(errs) > 0 {
					return errors.Join(errs...)
				}
			}
			switch op {
			case opInsert:
				err = sess.storage.InsertValues(ctx, values)
			case opUpdate:
				err = sess.storage.UpdateValues(ctx, values)
			case opLoad:
				err = sess.storage.LoadValues(ctx, values)
			}
			if err != nil {
				return err
			}
			return printValues(cmd, a.flags.jsonMode, values)
		},
	}
	cmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "field mapping document (YAML)")
	_ = cmd.MarkFlagRequired("mapping")
	return cmd
}

func printValues(cmd *cobra.Command, jsonMode bool, values types.Values) error {
	flat := mapping.Flatten(values)
	if jsonMode {
		return writeJSON(cmd, flat)
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", k, flat[k])
	}
	return nil
}
