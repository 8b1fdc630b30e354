package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/scout/internal/store"
)

// openStore opens the configured database for read-mostly commands that need
// no gateway or session manager.
func openStore(flags *globalFlags) (store.Store, error) {
	cfg, err := resolve(flags)
	if err != nil {
		return nil, err
	}
	st, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	var (
		vacuum bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show what the session database holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(flags)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			if vacuum {
				if err := st.Vacuum(ctx); err != nil {
					return fmt.Errorf("vacuum: %w", err)
				}
			}
			stats, err := st.Stats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]int64{
					"sessions":   stats.SessionCount,
					"insights":   stats.InsightCount,
					"snapshots":  stats.SnapshotCount,
					"events":     stats.EventCount,
					"size_bytes": stats.DBSizeBytes,
				})
			}
			fmt.Fprintf(out, "sessions:  %d\n", stats.SessionCount)
			fmt.Fprintf(out, "insights:  %d\n", stats.InsightCount)
			fmt.Fprintf(out, "snapshots: %d\n", stats.SnapshotCount)
			fmt.Fprintf(out, "events:    %d\n", stats.EventCount)
			fmt.Fprintf(out, "size:      %.1f KB\n", float64(stats.DBSizeBytes)/1024)
			if vacuum {
				fmt.Fprintln(out, "vacuumed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "Compact the database before reporting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
