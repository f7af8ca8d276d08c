package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List downloads recorded in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := a.repo.GetDownloads()
			if err != nil {
				return fmt.Errorf("failed to list downloads: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STATUS\tSIZE\tWHEN\tPATH\tSOURCE")

			for _, r := range records {
				when := r.DownloadedAt
				if t, err := time.Parse(time.RFC3339, r.DownloadedAt); err == nil {
					when = humanize.Time(t)
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.Status, humanize.Bytes(uint64(r.Size)), when, r.FilePath, r.Source)
			}

			return w.Flush()
		},
	}
}
