package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/fillswap/cmd/fillswap/opts"
	"github.com/walteh/fillswap/pkg/assign"
	"github.com/walteh/fillswap/pkg/log"
	"github.com/walteh/fillswap/pkg/preview"
	"github.com/walteh/fillswap/pkg/replace"
	"gitlab.com/tozd/go/errors"
)

func NewApplyCmd(o *opts.RootOpts) *cobra.Command {
	var (
		doc    docFlags
		images string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Replace image fills on matched layers",
		Long: `Apply matches images to layers the same way preview does, then puts each
image on its layer. A layer with an image fill keeps the fill's settings and
only has its image swapped; a layer without one gets a new image fill.

The document is written back to --doc unless --out is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := zerolog.Ctx(ctx)

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

			res, err := assign.Resolve(ctx, assign.FromPreview(result), set.Items, sources)
			for _, drop := range res.Dropped {
				logger.Debug().Str("layer_id", drop.Assignment.CandidateID).Str("reason", string(drop.Reason)).Msg("assignment dropped")
			}
			if errors.Is(err, assign.ErrNothingToApply) {
				o.Logger.Warningf("nothing to apply: none of %d images matched a layer in %s", len(sources), set.Scope)
				return nil
			}
			if err != nil {
				return errors.Errorf("resolving assignments: %w", err)
			}

			exec, err := replace.New(d, replace.WithImageCacheSize(o.Config.Replace.ImageCacheSize))
			if err != nil {
				return errors.Errorf("creating executor: %w", err)
			}

			o.Logger.StartBatch(ctx, log.Batch{Document: doc.path, Scope: set.Scope, Total: len(res.Valid)})

			onProgress, stop := o.Logger.Progress(len(res.Valid))
			outcomes := exec.Execute(ctx, sources, res.Valid, onProgress)
			stop()

			for _, outcome := range outcomes {
				o.Logger.LogOutcome(ctx, outcome)
			}
			summary := o.Logger.EndBatch(ctx)

			if summary.Replaced > 0 {
				dest := out
				if dest == "" {
					dest = doc.path
				}
				if err := d.Save(ctx, dest); err != nil {
					return errors.Errorf("saving document: %w", err)
				}
				o.Logger.Successf("saved %s", dest)
			}

			if summary.Errored > 0 {
				return errors.Errorf("%d of %d replacements failed", summary.Errored, summary.Total)
			}
			return nil
		},
	}

	doc.register(cmd)
	cmd.Flags().StringVarP(&images, "images", "i", ".", "folder of images to match")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the modified document here instead of over --doc")

	return cmd
}
