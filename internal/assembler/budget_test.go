package assembler

import "testing"

func TestSplitBudgetSumsExactly(t *testing.T) {
	tests := []struct {
		name      string
		available int
	}{
		{name: "Even", available: 1000},
		{name: "Remainder", available: 997},
		{name: "Tiny", available: 7},
		{name: "One", available: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := splitBudget(tt.available, true, true, true)
			if got := b.Total(); got != tt.available {
				t.Errorf("Total() = %d, want %d (agents=%d symbols=%d history=%d)",
					got, tt.available, b.Agents, b.Symbols, b.History)
			}
		})
	}
}

func TestSplitBudgetWeights(t *testing.T) {
	b := splitBudget(1000, true, true, true)
	if b.Agents != 200 || b.Symbols != 500 || b.History != 300 {
		t.Errorf("weights off: agents=%d symbols=%d history=%d", b.Agents, b.Symbols, b.History)
	}
}

func TestSplitBudgetRenormalizesOverPresentSections(t *testing.T) {
	// Symbols and history only: weights 0.5 and 0.3 renormalize to 5/8 and 3/8.
	b := splitBudget(800, false, true, true)
	if b.Agents != 0 {
		t.Errorf("empty section got budget: %d", b.Agents)
	}
	if b.Symbols != 500 || b.History != 300 {
		t.Errorf("renormalization off: symbols=%d history=%d", b.Symbols, b.History)
	}
	if b.Total() != 800 {
		t.Errorf("Total() = %d, want 800", b.Total())
	}
}

func TestSplitBudgetSingleSection(t *testing.T) {
	b := splitBudget(123, false, true, false)
	if b.Symbols != 123 || b.Agents != 0 || b.History != 0 {
		t.Errorf("single section should take everything: %+v", b)
	}
}

func TestSplitBudgetNoSections(t *testing.T) {
	b := splitBudget(100, false, false, false)
	if b.Total() != 0 {
		t.Errorf("no sections should allocate nothing: %+v", b)
	}
}

func TestSplitBudgetNonPositiveAvailable(t *testing.T) {
	for _, available := range []int{0, -5} {
		b := splitBudget(available, true, true, true)
		if b.Total() != 0 {
			t.Errorf("available=%d should allocate nothing: %+v", available, b)
		}
	}
}
