package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chadostore/internal/seed"
	"github.com/mesh-intelligence/chadostore/internal/terms"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the vocabulary rows of the core term mapping",
		Long: "Creates a db and cv per term id space and a dbxref and cvterm per term\n" +
			"of the core term mapping. Existing rows are kept.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			core, err := terms.Core()
			if err != nil {
				return asSysError(err)
			}
			res, err := seed.Terms(ctx, sess.db, seed.TermIDs(core))
			if err != nil {
				return asSysError(err)
			}
			a.logger.Info("terms seeded", "terms", res.Terms, "created", res.CVTerms)
			if a.flags.jsonMode {
				return writeJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d terms (%d new cvterms, %d new dbs, %d new cvs)\n",
				res.Terms, res.CVTerms, res.DBs, res.CVs)
			return nil
		},
	}
}

func newTermCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "term <IDSPACE:ACCESSION>",
		Short: "Print the cvterm_id of a seeded term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			id, err := seed.Lookup(ctx, sess.db, args[0])
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(cmd, map[string]any{"term": args[0], "cvterm_id": id})
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
