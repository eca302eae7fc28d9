// Package cli implements the entcache operator command.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/config"
	zlog "github.com/unkn0wn-root/entcache/log/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "yaml" | "json"

	// OpenStore builds the cache for cache commands. Defaults to the
	// environment-driven config.
	OpenStore func(log entcache.Logger) (entcache.Store, error)

	log *zap.Logger
}

var ValidFormats = []string{"yaml", "json"}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "entcache",
		Short:         "Inspect legacy entities and the entity cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.log = newLogger(opts.Verbose, cmd)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "yaml", "output format (yaml|json)")

	cmd.AddCommand(newDecodeCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newDelCommand(opts))
	cmd.AddCommand(newIncrCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	return cmd
}

func newLogger(verbose bool, cmd *cobra.Command) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(enc, zapcore.AddSync(cmd.ErrOrStderr()), level)
	return zap.New(core)
}

func (o *RootOptions) logger() entcache.Logger { return zlog.New(o.log) }

func (o *RootOptions) openStore() (entcache.Store, error) {
	if o.OpenStore != nil {
		return o.OpenStore(o.logger())
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return config.Open(cfg, o.logger())
}
