package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/fillswap/cmd/fillswap/opts"
)

func NewLayersCmd(o *opts.RootOpts) *cobra.Command {
	var (
		doc    docFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "layers",
		Short: "List the layers that can receive an image fill",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, err := doc.open(ctx)
			if err != nil {
				return err
			}

			set, err := doc.snapshot(ctx, o, d)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), set)
			}
			o.Logger.Candidates(ctx, set)
			return nil
		},
	}

	doc.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the candidate snapshot as json")

	return cmd
}
