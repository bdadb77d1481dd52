package assembler

// Section weights for splitting the available token budget. Renormalized over
// whichever sections are actually populated.
const (
	agentWeight   = 0.2
	symbolWeight  = 0.5
	historyWeight = 0.3
)

// Budget is the per-section token allowance for one prompt build.
type Budget struct {
	Agents  int
	Symbols int
	History int
}

// Total returns the sum of all section allowances.
func (b Budget) Total() int {
	return b.Agents + b.Symbols + b.History
}

// splitBudget divides the available tokens across the populated sections by
// fixed relative weight. Empty sections get zero and their weight is
// redistributed. The integer-division remainder is handed out one token at a
// time in agents, symbols, history order so the allowances always sum to
// exactly the available count.
func splitBudget(available int, hasAgents, hasSymbols, hasHistory bool) Budget {
	var b Budget
	if available <= 0 {
		return b
	}

	type section struct {
		weight float64
		out    *int
	}
	var active []section
	if hasAgents {
		active = append(active, section{agentWeight, &b.Agents})
	}
	if hasSymbols {
		active = append(active, section{symbolWeight, &b.Symbols})
	}
	if hasHistory {
		active = append(active, section{historyWeight, &b.History})
	}
	if len(active) == 0 {
		return b
	}

	var totalWeight float64
	for _, s := range active {
		totalWeight += s.weight
	}

	allocated := 0
	for _, s := range active {
		share := int(float64(available) * s.weight / totalWeight)
		*s.out = share
		allocated += share
	}

	for i := 0; allocated < available; i = (i + 1) % len(active) {
		*active[i].out++
		allocated++
	}
	return b
}
