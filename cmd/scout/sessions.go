package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSessionsCmd(flags *globalFlags) *cobra.Command {
	var (
		events string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions, or the event log of one",
		Example: `  scout sessions
  scout sessions --limit 5
  scout sessions --events 3f2c9a1e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(flags)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if events != "" {
				list, err := st.ListEvents(ctx, events, limit)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					return fmt.Errorf("no events for session %s", events)
				}
				fmt.Fprintln(w, "TIME\tEVENT\tPAYLOAD")
				for _, e := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.EventType, e.Payload)
				}
				return nil
			}

			recs, err := st.ListSessions(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "ID\tROUND\tTHEME\tCOMPLETE\tUPDATED")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%d\t%s\t%v\t%s\n", r.ID, r.Round, r.Theme, r.Complete, r.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&events, "events", "", "Show the event log of this session id")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (default: all events, 100 sessions)")
	return cmd
}
