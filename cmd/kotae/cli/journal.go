package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bdobrica/kotae/common/environment"
	"github.com/bdobrica/kotae/internal/kotae/app"
	"github.com/bdobrica/kotae/internal/kotae/store"
)

func newJournalCmd() *cobra.Command {
	var (
		database string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent exchanges and per-intent totals",
		Long: `Print the most recent journaled exchanges, newest first, followed by the
number of exchanges per intent. Sender IDs are stored masked and message
bodies are never stored, so the output is safe to share.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("database") {
				database = environment.New("KOTAE_").String("DATABASE_PATH", app.DefaultDatabasePath)
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			return showJournal(cmd, database, limit)
		},
	}

	f := cmd.Flags()
	f.StringVar(&database, "database", "", "SQLite journal path (default: KOTAE_DATABASE_PATH or "+app.DefaultDatabasePath+")")
	f.IntVar(&limit, "limit", 20, "number of recent exchanges to print")
	return cmd
}

func showJournal(cmd *cobra.Command, path string, limit int) error {
	// store.New would create an empty database; a typo should be an error.
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("no journal at %s", path)
	}
	st, err := store.New(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	recent, err := st.RecentExchanges(ctx, limit)
	if err != nil {
		return err
	}
	counts, err := st.IntentCounts(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := writeExchanges(out, recent); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return writeIntentCounts(out, counts)
}

func writeExchanges(w io.Writer, exchanges []store.Exchange) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCHANNEL\tSENDER\tINTENT\tREPLY\tLEN\tTRACE")
	for _, ex := range exchanges {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			ex.CreatedAt.Format(time.RFC3339), ex.Channel, ex.SenderID,
			ex.Intent, ex.ReplyKey, ex.InboundLen, ex.TraceID)
	}
	return tw.Flush()
}

func writeIntentCounts(w io.Writer, counts map[string]int) error {
	intents := make([]string, 0, len(counts))
	total := 0
	for in, n := range counts {
		intents = append(intents, in)
		total += n
	}
	// Busiest first, ties by name.
	sort.Slice(intents, func(i, j int) bool {
		if counts[intents[i]] != counts[intents[j]] {
			return counts[intents[i]] > counts[intents[j]]
		}
		return intents[i] < intents[j]
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INTENT\tCOUNT")
	for _, in := range intents {
		fmt.Fprintf(tw, "%s\t%d\n", in, counts[in])
	}
	fmt.Fprintf(tw, "total\t%d\n", total)
	return tw.Flush()
}
