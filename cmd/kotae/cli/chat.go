package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bdobrica/kotae/internal/kotae/observability"
	"github.com/bdobrica/kotae/internal/kotae/replies"
	"github.com/bdobrica/kotae/internal/kotae/responder"
)

func newChatCmd() *cobra.Command {
	var (
		sender     string
		repliesDir string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the responder on stdin/stdout",
		Long: `Read one message per line from stdin and print the reply Kotae would
send. Memory lives only for the session, so repeated questions show the
follow-up replies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pack, err := loadPack(repliesDir)
			if err != nil {
				return err
			}
			r := responder.New(responder.Config{
				Replies: pack,
				Logger:  observability.NewLogger(cmd.ErrOrStderr(), "warn", "text"),
			})
			return chat(cmd, r, sender, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "local", "sender ID the conversation memory is keyed by")
	cmd.Flags().StringVar(&repliesDir, "replies-dir", "", "directory holding replies.yaml (default: built-in pack)")
	return cmd
}

// chat answers one message per input line. Lines have no length limit: a
// pasted paragraph is one message, as it would be from the gateway.
func chat(cmd *cobra.Command, r *responder.Responder, sender string, in io.Reader, out io.Writer) error {
	br := bufio.NewReader(in)
	for {
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		text := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		reply := r.Handle(cmd.Context(), sender, text)
		if _, werr := fmt.Fprintf(out, "%s\n\n", reply); werr != nil {
			return werr
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// loadPack returns the built-in reply pack, or the one in dir when set.
func loadPack(dir string) (*replies.Registry, error) {
	if dir == "" {
		return replies.Default(), nil
	}
	pack, err := replies.Load(os.DirFS(dir), replies.FileName)
	if err != nil {
		return nil, fmt.Errorf("load replies from %s: %w", dir, err)
	}
	return pack, nil
}
