// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/fillswap/cmd/fillswap/commands"
	"github.com/walteh/fillswap/cmd/fillswap/opts"
	"github.com/walteh/fillswap/pkg/log"
)

func newRootCmd(o *opts.RootOpts) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fillswap",
		Short: "Replace layer image fills with images matched by filename",
		Long: `fillswap matches image files to layers by name and swaps each matched
layer's image fill, keeping the fill's other properties.

A folder of images is compared against the layers in the selection, the current
page or the whole document. Preview the pairing first, then apply it, or serve
a websocket bridge that drives the same flow from an editor plugin.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := loadRootOpts(cmd.Context(), o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(ctx)
			return nil
		},
	}

	addRootFlags(rootCmd)

	rootCmd.AddCommand(
		commands.NewLayersCmd(o),
		commands.NewPreviewCmd(o),
		commands.NewApplyCmd(o),
		commands.NewServeCmd(o),
		commands.NewConfigCmd(o),
		newVersionCmd(),
	)

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := &opts.RootOpts{}
	rootCmd := newRootCmd(o)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger := o.Logger
		if logger == nil {
			logger = log.New(os.Stderr, zerolog.Nop(), false)
		}
		logger.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}
