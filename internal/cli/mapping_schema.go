package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chadostore/internal/fields"
	"github.com/mesh-intelligence/chadostore/internal/mapping"
)

func newMappingSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "mapping-schema",
		Short:       "Print the JSON Schema of field mapping documents",
		Long:        "Prints the JSON Schema of field mapping documents. Known field shapes: " + fmt.Sprint(fields.Shapes()),
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := mapping.JSONSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
