package analyst

import (
	"fmt"
	"strings"

	"dealflow/pkg/models"
)

// System prompt for the full analysis tier. The schema is spelled out inline;
// the response is still validated strictly after parsing.
const analysisSystemPrompt = `You are an experienced real estate investment analyst.
You evaluate a single candidate deal and return a structured assessment.

You must strictly adhere to the following JSON schema for your output:
{
  "overall_score": number (0-100),
  "financial_score": number (0-100),
  "market_score": number (0-100),
  "risk_score": number (0-100, higher means lower risk),
  "time_sensitivity_score": number (0-100, higher means act sooner),
  "confidence": number (0-100, your certainty in this assessment),
  "recommendations": ["string", ...] (2-4 concrete next actions),
  "reasoning": "string (markdown, 2-5 sentences explaining the scores)"
}

Rules:
1. Base your assessment only on the data provided.
2. Scores must be consistent with the computed metrics.
3. Return ONLY valid JSON, no surrounding prose.`

// System prompt for the cheap quick-score tier.
const quickScoreSystemPrompt = `You are a real estate deal screener.
Given a deal summary, respond with a single number from 0 to 100 representing
investment quality. Respond with the number only, no words, no JSON.`

// buildAnalysisPrompt embeds the raw inputs and the calculator outputs so
// the model grades the same numbers the deterministic scorer saw.
func buildAnalysisPrompt(deal *models.Deal) string {
	var sb strings.Builder
	sb.WriteString("Evaluate this real estate investment deal:\n\n")
	fmt.Fprintf(&sb, "Address: %s", deal.Address)
	if deal.City != "" {
		fmt.Fprintf(&sb, ", %s", deal.City)
	}
	if deal.State != "" {
		fmt.Fprintf(&sb, ", %s", deal.State)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Strategy: %s\n", deal.Type)
	fmt.Fprintf(&sb, "Purchase Price: $%.0f\n", deal.PurchasePrice)
	fmt.Fprintf(&sb, "After Repair Value: $%.0f\n", deal.AfterRepairValue)
	fmt.Fprintf(&sb, "Repair Costs: $%.0f\n", deal.RepairCosts)
	if deal.Type.IsIncomeProducing() {
		fmt.Fprintf(&sb, "Monthly Rent: $%.0f\n", deal.MonthlyRent)
		fmt.Fprintf(&sb, "Monthly Expenses: $%.0f\n", deal.MonthlyExpenses)
	}
	sb.WriteString("\nComputed metrics:\n")
	fmt.Fprintf(&sb, "ROI: %.2f%%\n", deal.ROI)
	fmt.Fprintf(&sb, "Cap Rate: %.2f%%\n", deal.CapRate)
	fmt.Fprintf(&sb, "Cash-on-Cash Return: %.2f%%\n", deal.CashOnCashReturn)
	fmt.Fprintf(&sb, "Profit Potential: $%.0f\n", deal.ProfitPotential)
	sb.WriteString("\nReturn the JSON assessment.")
	return sb.String()
}

// buildQuickScorePrompt is the compact summary for bulk scans.
func buildQuickScorePrompt(deal *models.Deal) string {
	return fmt.Sprintf(
		"Deal: %s %s. Price $%.0f, ARV $%.0f, repairs $%.0f, rent $%.0f/mo, ROI %.1f%%, cap rate %.1f%%. Score 0-100:",
		deal.Type, deal.Address, deal.PurchasePrice, deal.AfterRepairValue,
		deal.RepairCosts, deal.MonthlyRent, deal.ROI, deal.CapRate,
	)
}
