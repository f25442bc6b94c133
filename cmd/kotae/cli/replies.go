package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRepliesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replies",
		Short: "Inspect reply packs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate a replies.yaml pack against the schema",
		Long: `Validate dir/replies.yaml, or the built-in pack when dir is omitted.
Every reply key must be present and non-empty; unknown keys are rejected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			pack, err := loadPack(dir)
			if err != nil {
				return err
			}
			source := dir
			if source == "" {
				source = "built-in"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %s pack has %d reply keys\n", source, len(pack.Keys()))
			return err
		},
	})
	return cmd
}
