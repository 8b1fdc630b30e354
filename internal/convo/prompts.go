package convo

import (
	"fmt"
	"strings"
)

// persona seeds every transcript.
const persona = `You are Scout, a solutions consultant for a team that connects AI assistants to company systems through the Model Context Protocol (MCP).

You are talking with a visitor who may become a customer. Your job is to understand:
- which AI tools and models their team already uses
- which company systems hold the data those tools need
- where time and money are lost today
- any compliance or governance constraints
- who on their side has the skills to run an integration

STYLE:
- Warm, concise, and concrete. Two to four sentences per reply.
- Acknowledge what the visitor said before asking anything new.
- Ask exactly one question per reply.
- Never invent facts about the visitor's company.`

// script holds the question for each round, indexed by round-1. The reply in
// round r steers toward script[r], so entry 0 is only used as the opening.
var script = [5]string{
	"Which AI tools or assistants does your team use today, and what do you rely on them for?",
	"Which company systems hold the data those tools would need, for example your ERP, CRM or document stores?",
	"Roughly how much time does your team spend moving information between those systems each week?",
	"Are there compliance or data-governance requirements an integration would have to respect?",
	"Who on your team would own an integration like this, and what budget or timeline are you working with?",
}

// Fixed replies used when the gateway fails.
const (
	fallbackReply = "Thanks, that's helpful. I've noted what you shared. Could you tell me a bit more about the systems your team relies on day to day?"
	fallbackFinal = "Thank you for walking me through your setup. I've captured the key points from our conversation, and a specialist will reach out to schedule a short follow-up meeting."
)

// Question returns the scripted question for round, clamped to the script.
func Question(round int) string {
	switch {
	case round < 1:
		round = 1
	case round > len(script):
		round = len(script)
	}
	return script[round-1]
}

// Opening is the first question shown to a visitor.
func Opening() string {
	return script[0]
}

func guidancePrompt(round int, theme string, snippets []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Round %d of the conversation.", round)
	if theme != "" {
		fmt.Fprintf(&sb, " Current focus: %s.", theme)
	}
	fmt.Fprintf(&sb, "\nRespond to the visitor's last message, then ask: %q", Question(round+1))
	writeSnippets(&sb, snippets)
	return sb.String()
}

func synthesisPrompt(insights []Insight, snippets []string) string {
	var sb strings.Builder
	sb.WriteString("This is the final round. Summarize what you learned about the visitor's situation in a few sentences, ")
	sb.WriteString("name the most promising integration opportunity, and invite them to a short follow-up meeting with a specialist. Do not ask further discovery questions.")
	if len(insights) > 0 {
		sb.WriteString("\n\nINSIGHTS GATHERED:\n")
		for _, in := range insights {
			fmt.Fprintf(&sb, "- %s (round %d): %s\n", in.Topic, in.Round, in.Details)
		}
	}
	writeSnippets(&sb, snippets)
	return sb.String()
}

func writeSnippets(sb *strings.Builder, snippets []string) {
	if len(snippets) == 0 {
		return
	}
	sb.WriteString("\n\nEARLIER IN THIS CONVERSATION:\n")
	for _, s := range snippets {
		fmt.Fprintf(sb, "- %s\n", s)
	}
}
