package llm

import (
	"math"
	"testing"
)

func TestCostEstimate_KnownModel(t *testing.T) {
	// 1M prompt tokens + 1M response tokens of gemini-2.0-flash = 0.10 + 0.40
	got := CostEstimate("gemini-2.0-flash", 1_000_000, 1_000_000)
	if math.Abs(got-0.50) > 1e-9 {
		t.Errorf("Expected 0.50, got %f", got)
	}
}

func TestCostEstimate_UnknownModelUsesDefault(t *testing.T) {
	got := CostEstimate("some-future-model", 2_000_000, 0)
	if math.Abs(got-1.00) > 1e-9 {
		t.Errorf("Expected default prompt rate to apply, got %f", got)
	}
}

func TestCostEstimate_ZeroTokens(t *testing.T) {
	if got := CostEstimate("deepseek-chat", 0, 0); got != 0 {
		t.Errorf("Expected 0 cost for 0 tokens, got %f", got)
	}
}
