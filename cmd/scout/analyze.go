package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurttlocker/scout/internal/graph"
)

func newAnalyzeCmd(flags *globalFlags) *cobra.Command {
	var asGraph bool
	cmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Extract the components mentioned in a text",
		Long: `Prints the network update for the given text. With no argument, or "-",
the text is read from stdin.

Example:
  scout analyze "We run SAP S/4HANA and want Claude to read Confluence"
  cat notes.txt | scout analyze --graph`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(flags, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			update, source := a.manager.Analyze(cmd.Context(), text)
			a.logger.Debug("analyzed text", zap.String("source", string(source)), zap.Int("components", update.Len()))

			var out any = update
			if asGraph {
				lib := a.manager.Library()
				out = graph.Export(graph.MergeWith(lib, graph.SkeletonFor(lib), update))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&asGraph, "graph", false, "Print the merged graph instead of the update")
	return cmd
}

func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return strings.Join(args, " "), nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(b), nil
}
