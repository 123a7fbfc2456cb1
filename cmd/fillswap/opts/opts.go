package opts

import (
	"github.com/walteh/fillswap/pkg/config"
	"github.com/walteh/fillswap/pkg/log"
)

// RootOpts is shared by every subcommand. It is filled in once flags are parsed.
type RootOpts struct {
	Config *config.Config
	Logger *log.Logger
}
