package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/scout/internal/patterns"
)

func newPatternsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the component categories and known products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := patterns.Default().Describe()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			for _, c := range infos {
				fmt.Fprintf(out, "%s [%s]\n", c.ID, c.Kind)
				if d := c.Metadata["description"]; d != "" {
					fmt.Fprintf(out, "  %s\n", d)
				}
				fmt.Fprintf(out, "  %s\n\n", strings.Join(c.Implementations, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
