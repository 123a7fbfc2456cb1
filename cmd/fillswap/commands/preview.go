package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/fillswap/cmd/fillswap/opts"
	"github.com/walteh/fillswap/pkg/preview"
)

func NewPreviewCmd(o *opts.RootOpts) *cobra.Command {
	var (
		doc    docFlags
		images string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show which images would go on which layers",
		Long: `Preview matches every image in --images against the layers in scope and
prints the pairing without changing the document. Images with no layer and
image-filled layers with no image are listed separately.`,
		Args: cobra.NoArgs,
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

			sources, err := loadSources(ctx, o, images)
			if err != nil {
				return err
			}

			result := preview.BuildWith(o.Config.Matcher(), sources, set.Items)

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			o.Logger.Preview(ctx, result)
			return nil
		},
	}

	doc.register(cmd)
	cmd.Flags().StringVarP(&images, "images", "i", ".", "folder of images to match")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the preview as json")

	return cmd
}
