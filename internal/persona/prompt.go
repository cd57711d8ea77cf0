package persona

import (
	"fmt"
	"strings"

	"github.com/dwhitley/personabench/internal/domain"
)

// systemPrompt renders the persona's standing instructions. It never mentions
// the market; the same system prompt is reused for every snapshot the persona
// sees.
func systemPrompt(p Persona) string {
	var sb strings.Builder
	sb.WriteString("You are ")
	if p.Name != "" {
		sb.WriteString(p.Name)
	} else {
		sb.WriteString(p.ID)
	}
	sb.WriteString(", a trader on a binary prediction market.\n")
	if len(p.Traits) > 0 {
		sb.WriteString("Your traits: ")
		sb.WriteString(strings.Join(p.Traits, ", "))
		sb.WriteString(".\n")
	}
	sb.WriteString("Your decision style: ")
	sb.WriteString(p.Style)
	sb.WriteString("\n\n")
	sb.WriteString("You will be shown one market with its current YES and NO prices in cents.\n")
	sb.WriteString("A contract pays $1 if your side wins and $0 otherwise; buying at p cents costs p/100 dollars per contract.\n")
	if p.MaxStake > 0 {
		fmt.Fprintf(&sb, "Never stake more than $%.2f on a single market.\n", p.MaxStake)
	}
	sb.WriteString("\nReply with a single JSON object and nothing else:\n")
	sb.WriteString(`{"action": "BUY_YES" | "BUY_NO" | "SKIP", "stake_usd": <number, 0 when skipping>, "rationale": "<1-3 sentences>"}`)
	return sb.String()
}

// userPrompt renders one snapshot for the model. Every field here comes from
// the outcome-free view; nothing else may be added.
func userPrompt(snap domain.MarketSnapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Market: %s\n", snap.Title)
	fmt.Fprintf(&sb, "Question: %s\n", snap.Question)
	if snap.Description != "" {
		fmt.Fprintf(&sb, "Details: %s\n", snap.Description)
	}
	if snap.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", snap.Category)
	}
	fmt.Fprintf(&sb, "Snapshot taken: %s (%s before resolution)\n",
		snap.SampledAt.UTC().Format("2006-01-02 15:04 MST"), snap.Window)
	fmt.Fprintf(&sb, "Current prices: YES %d cents, NO %d cents\n", snap.YesCents, snap.NoCents)
	sb.WriteString("\nDecide: BUY_YES, BUY_NO, or SKIP.")
	return sb.String()
}
