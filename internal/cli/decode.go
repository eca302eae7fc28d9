package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/legacy"
)

func newDecodeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <file|->",
		Short: "Decode a legacy EntityProto and print its properties",
		Long: `Decode a legacy EntityProto read from a file (or stdin with "-").

No schema is applied: every property is printed under its stored name,
dotted names included.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			e, err := legacy.Decode(b, nil)
			if err != nil {
				return err
			}
			opts.logger().Debug("decoded entity", entcache.Fields{"bytes": len(b), "properties": len(e.Props)})

			out := map[string]any{
				"kind":       e.Kind(),
				"properties": printable(e.Props),
			}
			if e.Key != nil {
				out["key"] = e.Key.PathString()
			}
			return write(cmd.OutOrStdout(), opts.Format, out)
		},
	}
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}
