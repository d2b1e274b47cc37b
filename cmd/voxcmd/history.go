package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/normanking/voxcmd/internal/metrics"
)

// ═══════════════════════════════════════════════════════════════════════════════
// HISTORY COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func (a *app) historyCmd() *cobra.Command {
	var (
		limit   int
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently resolved commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.History.Enabled {
				return errors.New("command history is disabled (history.enabled: false)")
			}
			store, err := metrics.OpenStore(a.cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if summary {
				counts, err := store.CountByKind()
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "KIND\tCOUNT")
				for _, c := range counts {
					fmt.Fprintf(w, "%s\t%d\n", c.Kind, c.Count)
				}
				return nil
			}

			entries, err := store.Recent(limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "TIME\tKIND\tUTTERANCE\tRESPONSE\tCONFIDENCE\tDELAY")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					e.Kind, e.Utterance, e.Response, e.Confidence, e.Delay)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.Flags().BoolVar(&summary, "summary", false, "show counts per match kind")
	return cmd
}
