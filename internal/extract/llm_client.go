package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/hurttlocker/scout/internal/llm"
	"github.com/hurttlocker/scout/internal/patterns"
)

// System prompt for structured component extraction (v1). The list of known
// identifiers is appended from the pattern library at request time.
const systemPromptV1 = `You are a component extraction system. Identify the technical components mentioned in a conversation about connecting AI to company systems.

RULES:
1. Extract ONLY components that are explicitly mentioned - never infer or assume
2. Use ONLY identifiers from the KNOWN IDENTIFIERS list, spelled exactly as listed
3. Use a category identifier only when the text mentions the category without naming a specific product
4. Return ONLY the JSON object, no additional text

JSON SCHEMA:
{
  "llm_clients": [{"id": "...", "size": 16, "height": 2, "description": "optional"}],
  "ai_models": [{"id": "...", "size": 16, "height": 2}],
  "company_resources": [{"id": "...", "size": 16, "height": 2}]
}

size is a number from 12 to 32. height is 1 for a category identifier and 2 for a specific product.

EXAMPLE:
Input: "We run Salesforce and want Claude to answer questions from our wiki."
Output:
{
  "llm_clients": [],
  "ai_models": [{"id": "Claude", "size": 16, "height": 2}],
  "company_resources": [
    {"id": "Salesforce", "size": 16, "height": 2},
    {"id": "Company Resources", "size": 24, "height": 1}
  ]
}`

// extractionTemperature keeps extraction close to deterministic.
const extractionTemperature = 0.1

// buildExtractionRequest renders the gateway request for text.
func buildExtractionRequest(lib *patterns.Library, model, text string) llm.Request {
	var sb strings.Builder
	sb.WriteString(systemPromptV1)
	sb.WriteString("\n\nKNOWN IDENTIFIERS:\n")
	for _, cat := range lib.Categories() {
		ids := make([]string, 0, len(cat.Implementations))
		for _, impl := range cat.Implementations {
			ids = append(ids, impl.ID)
		}
		fmt.Fprintf(&sb, "- %s (category %q): %s\n", cat.Kind, cat.ID, strings.Join(ids, ", "))
	}

	return llm.Request{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: sb.String()},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Extract components from this conversation:\n\n---\n%s\n---\n\nReturn JSON matching the schema.", text)},
		},
		Temperature: llm.Temperature(extractionTemperature),
		JSON:        true,
	}
}

// extractWithGateway asks the gateway for a structured update and keeps only
// components whose id is known to the library, filed under the kind that owns
// the id whatever array the model put it in. Any error means the caller
// should fall back to pattern matching.
func extractWithGateway(ctx context.Context, gw llm.Gateway, lib *patterns.Library, model, text string) (NetworkUpdate, int, error) {
	resp, err := gw.Complete(ctx, buildExtractionRequest(lib, model, text))
	if err != nil {
		return NetworkUpdate{}, 0, fmt.Errorf("extraction request: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return NetworkUpdate{}, 0, fmt.Errorf("extraction request: %w", llm.ErrEmptyResponse)
	}

	parsed, err := ParseUpdate(resp.Content)
	if err != nil {
		return NetworkUpdate{}, 0, fmt.Errorf("parsing extraction response: %w", err)
	}

	out := NewNetworkUpdate()
	dropped := 0
	seen := make(map[string]bool)
	for _, kind := range patterns.Kinds {
		for _, c := range parsed.Components(kind) {
			if !lib.IsKnown(c.ID) || seen[c.ID] {
				dropped++
				continue
			}
			seen[c.ID] = true
			owner, _ := lib.KindOf(c.ID)
			out.Add(owner, c)
		}
	}
	return out, dropped, nil
}
