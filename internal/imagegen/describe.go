package imagegen

import (
	"fmt"
	"strings"

	"github.com/hurttlocker/scout/internal/convo"
)

// Describe renders a profile description from what a conversation revealed.
func Describe(insights []convo.Insight, components []string) string {
	var sb strings.Builder
	sb.WriteString("An abstract, friendly illustration of a company connecting AI assistants to its systems.")

	if len(components) > 0 {
		fmt.Fprintf(&sb, " Its stack includes %s.", strings.Join(components, ", "))
	}

	seen := make(map[convo.Topic]bool)
	var topics []string
	for _, in := range insights {
		if seen[in.Topic] {
			continue
		}
		seen[in.Topic] = true
		topics = append(topics, strings.ReplaceAll(string(in.Topic), "_", " "))
	}
	if len(topics) > 0 {
		fmt.Fprintf(&sb, " Themes: %s.", strings.Join(topics, ", "))
	}
	return sb.String()
}
