package commands

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/walteh/fillswap/cmd/fillswap/opts"
	"github.com/walteh/fillswap/pkg/bridge"
)

func NewServeCmd(o *opts.RootOpts) *cobra.Command {
	var (
		doc  docFlags
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a websocket bridge over a document",
		Long: `Serve opens the document and accepts websocket sessions on /ws. Each session
walks get-candidates, preview-matches and execute-replacement; the document is
saved after every replacement that changed something.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			d, err := doc.open(ctx)
			if err != nil {
				return err
			}

			if addr == "" {
				addr = o.Config.Server.Addr
			}

			srv := bridge.NewServer(d, bridge.Options{
				Session: o.Config.SessionOptions(),
				OnComplete: func(ctx context.Context) error {
					return d.Save(ctx, doc.path)
				},
			})

			o.Logger.Infof("serving %s on ws://%s%s", doc.path, addr, bridge.Path)

			return srv.ListenAndServe(ctx, addr)
		},
	}

	doc.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}
