package insights

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Prompt renders the payload as the instruction text for the summarizer
func Prompt(p Payload) string {
	var b strings.Builder

	b.WriteString("Analyze this portfolio data and provide actionable insights:\n\n")
	fmt.Fprintf(&b, "Portfolio Value: $%s\n", money(p.TotalValue))
	fmt.Fprintf(&b, "Unrealized Gain: %s\n", p.UnrealizedGain)
	if !p.AsOf.IsZero() {
		fmt.Fprintf(&b, "As Of: %s\n", p.AsOf.Format("2006-01-02"))
	}

	b.WriteString("\nAsset Allocation:\n")
	if len(p.Allocation) == 0 {
		b.WriteString("- no valued holdings\n")
	}
	for _, a := range p.Allocation {
		fmt.Fprintf(&b, "- %s: %.1f%%\n", a.Asset, a.WeightPct)
	}

	b.WriteString("\nRisk Metrics:\n")
	for _, line := range riskLines {
		fmt.Fprintf(&b, "- %s: %s\n", line.label, p.Risk[line.key])
	}
	fmt.Fprintf(&b, "- Diversification: %.0f%%\n", p.Diversification)
	fmt.Fprintf(&b, "- Largest Position: %.1f%%\n", p.Concentration)

	if len(p.Signals) > 0 {
		b.WriteString("\nTechnical Signals:\n")
		for _, s := range p.Signals {
			fmt.Fprintf(&b, "- %s: %s (%.0f%% confidence)\n", s.Asset, s.Direction, s.Confidence)
		}
	}

	if len(p.CorrelatedPairs) > 0 {
		b.WriteString("\nHighly Correlated Holdings:\n")
		for _, c := range p.CorrelatedPairs {
			fmt.Fprintf(&b, "- %s / %s: %.2f\n", c.A, c.B, c.Correlation)
		}
	}

	if p.Warnings > 0 {
		fmt.Fprintf(&b, "\nNote: %d metrics could not be computed and are shown as %s.\n", p.Warnings, NotAvailable)
	}

	b.WriteString(`
Provide detailed analysis on:
1. Portfolio Health Assessment
2. Risk Management Recommendations
3. Diversification Opportunities
4. Rebalancing Suggestions

Keep recommendations specific and actionable.
`)
	return b.String()
}

// money formats v with thousands separators and two decimals
func money(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}
