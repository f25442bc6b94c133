// Package cli implements the kotae command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdobrica/kotae/common/version"
)

// NewRootCmd builds the kotae command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kotae",
		Short: "Rule-based chat auto-responder",
		Long: `Kotae answers inbound chat messages (WhatsApp via a Matrix bridge or an
HTTP gateway) with canned replies chosen by keyword rules and a small
per-sender conversation memory.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newRepliesCmd(),
		newJournalCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Current())
			return err
		},
	}
}
