package notify

import (
	"context"
	"fmt"
	"strings"

	"dealflow/pkg/core/utils"
	"dealflow/pkg/models"
)

// Notifier is the outbound collaborator contract: the engine hands off a
// scored deal and its matched investors; delivery mechanics (email/SMS
// formatting, retries) live entirely on the other side.
type Notifier interface {
	NotifyMatches(ctx context.Context, deal *models.Deal, score *models.DealScore, investors []models.Investor) error
}

// LogNotifier is the default development implementation: it renders the
// report and prints the handoff instead of delivering anything.
type LogNotifier struct{}

var _ Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) NotifyMatches(ctx context.Context, deal *models.Deal, score *models.DealScore, investors []models.Investor) error {
	if len(investors) == 0 {
		return nil
	}
	body, err := RenderReport(deal, score)
	if err != nil {
		return fmt.Errorf("failed to render match report: %w", err)
	}
	names := make([]string, 0, len(investors))
	for _, inv := range investors {
		names = append(names, fmt.Sprintf("%s (%s)", inv.Name, inv.PreferredContact))
	}
	fmt.Printf("[MATCH] Deal %s scored %.0f, notifying %d investor(s): %s\n", deal.ID, score.OverallScore, len(investors), strings.Join(names, ", "))
	fmt.Printf("[MATCH] Report body: %d bytes of HTML\n", len(body))
	return nil
}

// RenderReport builds the HTML report body handed to the delivery side.
func RenderReport(deal *models.Deal, score *models.DealScore) (string, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# Deal Alert: %s\n\n", deal.Address)
	fmt.Fprintf(&md, "**Strategy:** %s  \n", deal.Type)
	fmt.Fprintf(&md, "**Price:** $%.0f | **ARV:** $%.0f | **Repairs:** $%.0f\n\n", deal.PurchasePrice, deal.AfterRepairValue, deal.RepairCosts)
	fmt.Fprintf(&md, "**Overall score: %.0f/100**", score.OverallScore)
	if score.Source == models.ScoreSourceAI {
		fmt.Fprintf(&md, " (AI-assisted, confidence %.0f)", score.Confidence)
	}
	md.WriteString("\n\n")
	for _, f := range score.Factors {
		fmt.Fprintf(&md, "- %s: %.0f (%s)\n", f.Name, f.Score, f.Explanation)
	}
	if score.Reasoning != "" {
		fmt.Fprintf(&md, "\n%s\n", score.Reasoning)
	}
	if len(score.Recommendations) > 0 {
		md.WriteString("\n## Recommended next steps\n\n")
		for _, rec := range score.Recommendations {
			fmt.Fprintf(&md, "1. %s\n", rec)
		}
	}
	return utils.RenderHTML(md.String())
}
