package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hurttlocker/scout/internal/graph"
	"github.com/hurttlocker/scout/internal/session"
)

func newChatCmd(flags *globalFlags) *cobra.Command {
	var (
		sessionID string
		noStore   bool
		showGraph bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run an interactive qualification conversation in the terminal",
		Long: `Starts (or resumes with --session) a conversation. Each line you type is
one visitor message. Commands:
  /graph   show the components found so far
  /state   show insights and dialogue state
  /reset   start over
  /quit    leave`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, appOptions{withStore: !noStore})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runChat(ctx, a.manager, sessionID, showGraph, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Resume a stored session")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Keep the conversation in memory only")
	cmd.Flags().BoolVar(&showGraph, "graph", false, "Print new components after every turn")
	return cmd
}

func runChat(ctx context.Context, m *session.Manager, sessionID string, showGraph bool, in io.Reader, out io.Writer) error {
	var (
		s   *session.Session
		err error
	)
	if sessionID != "" {
		s, err = m.Get(ctx, sessionID)
	} else {
		s, err = m.Create(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "session %s\n\n", s.ID)
	view := s.View()
	if view.Round == 1 && len(view.Insights) == 0 {
		fmt.Fprintf(out, "scout> %s\n", s.Opening())
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/graph":
			printGraph(out, s.Graph())
			continue
		case "/state":
			printState(out, s.View())
			continue
		case "/reset":
			if s, err = m.Reset(ctx, s.ID); err != nil {
				return err
			}
			fmt.Fprintf(out, "scout> %s\n", s.Opening())
			continue
		}

		turn := s.Respond(ctx, line)
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintf(out, "scout> %s\n", turn.SystemResponse)
		if showGraph && turn.Update.Len() > 0 {
			fmt.Fprintf(out, "  found: %s\n", strings.Join(turn.Update.IDs(), ", "))
		}
		if turn.Complete {
			fmt.Fprintln(out, "\n(conversation complete; /graph to review, /reset to start over)")
		}
	}
}

func printGraph(out io.Writer, g graph.Graph) {
	for _, cat := range g.Nodes {
		if cat.Height != graph.CategoryHeight {
			continue
		}
		leaves := g.Leaves(cat.ID)
		mark := ""
		if cat.Mentioned() {
			mark = " *"
		}
		fmt.Fprintf(out, "  %s (%d)%s\n", cat.ID, len(leaves), mark)
		for _, leaf := range leaves {
			fmt.Fprintf(out, "    - %s\n", leaf.ID)
		}
	}
}

func printState(out io.Writer, v session.View) {
	fmt.Fprintf(out, "  round %d, theme %s, complete %v\n", v.Round, v.Theme, v.Complete)
	st := v.State
	fmt.Fprintf(out, "  understanding %.2f  potential %.2f  readiness %.2f  investment %.2f\n",
		st.Understanding, st.Potential, st.Readiness, st.Investment)
	for _, in := range v.Insights {
		fmt.Fprintf(out, "  [%s r%d] %s\n", in.Topic, in.Round, in.Details)
	}
}
