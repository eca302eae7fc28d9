package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/entcache"
)

// withStore opens the cache, runs fn and closes it.
func withStore(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, st entcache.Store) error) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer st.Close(ctx)
	return fn(ctx, st)
}

func newGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>...",
		Short: "Print cached values; misses are omitted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st entcache.Store) error {
				vals, err := st.GetMulti(ctx, args)
				if err != nil {
					return err
				}
				out := make(map[string]any, len(vals))
				for k, v := range vals {
					x, err := st.Encoder().Interface(v)
					if err != nil {
						opts.logger().Warn("cannot decode blob", entcache.Fields{"key": k, "err": err})
						x = v.String()
					}
					out[k] = map[string]any{"type": v.Tag().String(), "value": printable(x)}
				}
				return write(cmd.OutOrStdout(), opts.Format, out)
			})
		},
	}
}

func newDelCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>...",
		Short: "Delete cache keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st entcache.Store) error {
				if err := st.DeleteMulti(ctx, args); err != nil {
					return err
				}
				return write(cmd.OutOrStdout(), opts.Format, map[string]any{"deleted": args})
			})
		},
	}
}

func newIncrCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "incr <key> [delta]",
		Short: "Add delta (default 1, may be negative) to a counter",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta := int64(1)
			if len(args) == 2 {
				d, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("delta: %w", err)
				}
				delta = d
			}
			return withStore(opts, cmd, func(ctx context.Context, st entcache.Store) error {
				n, ok, err := st.Incr(ctx, args[0], delta)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s: not a counter (or no cache configured)", args[0])
				}
				return write(cmd.OutOrStdout(), opts.Format, map[string]any{"key": args[0], "value": n})
			})
		},
	}
}

func newStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print cache hit/miss counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st entcache.Store) error {
				s, ok := st.Stats(ctx)
				if !ok {
					return write(cmd.OutOrStdout(), opts.Format, map[string]any{"available": false})
				}
				return write(cmd.OutOrStdout(), opts.Format, map[string]any{
					"available": true,
					"hits":      s.Hits,
					"misses":    s.Misses,
				})
			})
		},
	}
}
