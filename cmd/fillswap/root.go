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
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/fillswap/cmd/fillswap/opts"
	"github.com/walteh/fillswap/pkg/config"
	"github.com/walteh/fillswap/pkg/log"
	"gitlab.com/tozd/go/errors"
)

var (
	// Flags
	configFile string
	debug      bool
)

func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: discovered .fillswap.{yaml,yml,hcl,json})")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

// loadRootOpts resolves the config file and fills in o. Called once flags are parsed.
func loadRootOpts(ctx context.Context, o *opts.RootOpts, console io.Writer) (context.Context, error) {
	path := configFile
	if path == "" {
		if found, ok := config.Discover("."); ok {
			path = found
		}
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		return ctx, errors.Errorf("loading config: %w", err)
	}

	zlog := setupLogging(cfg.LogLevel())
	ctx = zlog.WithContext(ctx)

	o.Config = cfg
	o.Logger = log.New(console, zlog, !color.NoColor)

	zlog.Debug().Str("config", cfg.Location()).Str("settings", cfg.String()).Msg("configuration loaded")

	return log.NewContext(ctx, o.Logger), nil
}

func setupLogging(level zerolog.Level) zerolog.Logger {
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: color.NoColor}).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	return logger
}
