package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/walteh/fillswap/cmd/fillswap/opts"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

func NewConfigCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration after defaults are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			source := o.Config.Location()
			if source == "" {
				source = "defaults"
			}
			fmt.Fprintf(w, "# %s\n", source)

			out, err := yaml.Marshal(o.Config)
			if err != nil {
				return errors.Errorf("encoding config: %w", err)
			}
			_, err = w.Write(out)
			return err
		},
	})

	return cmd
}
