// Package assembler renders one bounded prompt from system prompts, the
// symbol working set, active agent personas, and conversation history. Each
// section gets a token allowance carved from the global budget; packing never
// emits a partial line.
package assembler

import (
	"fmt"
	"sort"
	"strings"

	"sigil/internal/logging"
	"sigil/internal/token"
	"sigil/internal/types"
)

// HistoryTurn is one (role, content) pair of conversation history.
type HistoryTurn struct {
	Role    string
	Content string
}

type scoredSymbol struct {
	sym       *types.Symbol
	relevance float64
}

// Assembler accumulates prompt inputs through pure appends and renders them
// with BuildPrompt. Not safe for concurrent use; build one per pass.
type Assembler struct {
	encoder       token.Encoder
	maxTokens     int
	systemReserve int

	systemPrompts []string
	symbols       []scoredSymbol
	agents        []*types.AgentPersona
	history       []HistoryTurn
}

// New creates an assembler with the given encoder and global token budget.
// systemReserve is the fixed allowance held back for the system block.
func New(encoder token.Encoder, maxTokens, systemReserve int) *Assembler {
	return &Assembler{
		encoder:       encoder,
		maxTokens:     maxTokens,
		systemReserve: systemReserve,
	}
}

// AddSystemPrompt appends one system prompt string.
func (a *Assembler) AddSystemPrompt(text string) {
	a.systemPrompts = append(a.systemPrompts, text)
}

// AddSymbol appends a symbol with its relevance score. Non-positive
// relevance defaults to 1.0.
func (a *Assembler) AddSymbol(sym *types.Symbol, relevance float64) {
	if sym == nil {
		return
	}
	if relevance <= 0 {
		relevance = 1.0
	}
	a.symbols = append(a.symbols, scoredSymbol{sym: sym, relevance: relevance})
}

// AddAgent appends an active agent persona.
func (a *Assembler) AddAgent(agent *types.AgentPersona) {
	if agent == nil {
		return
	}
	a.agents = append(a.agents, agent)
}

// AddHistory appends one conversation turn.
func (a *Assembler) AddHistory(role, content string) {
	a.history = append(a.history, HistoryTurn{Role: role, Content: content})
}

// BuildPrompt renders the final prompt for the given user text. The system
// reserve and the user text cost come off the top; the rest is split across
// the populated sections. Sections appear labeled even when empty.
func (a *Assembler) BuildPrompt(userText string) string {
	timer := logging.StartTimer(logging.CategoryContext, "BuildPrompt")
	defer timer.Stop()

	available := a.maxTokens - a.systemReserve - token.Count(a.encoder, userText)
	budget := splitBudget(available, len(a.agents) > 0, len(a.symbols) > 0, len(a.history) > 0)

	logging.ContextDebug("BuildPrompt: available=%d agents=%d symbols=%d history=%d",
		available, budget.Agents, budget.Symbols, budget.History)

	agentLines := a.packAgents(budget.Agents)
	symbolLines := a.packSymbols(budget.Symbols)
	historyLines := a.packHistory(budget.History)

	var out strings.Builder
	if len(a.systemPrompts) > 0 {
		out.WriteString(strings.Join(a.systemPrompts, "\n"))
		out.WriteString("\n\n")
	}

	writeSection(&out, "AGENTS", agentLines)
	writeSection(&out, "SYMBOLS", symbolLines)
	writeSection(&out, "CHAT_HISTORY", historyLines)

	out.WriteString("USER:\n")
	out.WriteString(userText)

	logging.Context("BuildPrompt: rendered %d agents, %d symbols, %d history turns",
		len(agentLines), len(symbolLines), len(historyLines))
	return out.String()
}

func writeSection(out *strings.Builder, label string, lines []string) {
	out.WriteString(label)
	out.WriteString(":\n")
	for _, line := range lines {
		out.WriteString(line)
		out.WriteString("\n")
	}
	out.WriteString("\n")
}

// packSymbols sorts by descending relevance (stable, so insertion order
// breaks ties) and emits whole lines until the first overflow.
func (a *Assembler) packSymbols(budget int) []string {
	if budget <= 0 || len(a.symbols) == 0 {
		return nil
	}

	ranked := make([]scoredSymbol, len(a.symbols))
	copy(ranked, a.symbols)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].relevance > ranked[j].relevance
	})

	var lines []string
	used := 0
	for _, entry := range ranked {
		line := symbolLine(entry.sym)
		cost := token.Count(a.encoder, line)
		if used+cost > budget {
			break
		}
		lines = append(lines, line)
		used += cost
	}
	return lines
}

// packHistory walks from the newest turn backward, keeping whole turns while
// the budget allows, then returns them in chronological order.
func (a *Assembler) packHistory(budget int) []string {
	if budget <= 0 || len(a.history) == 0 {
		return nil
	}

	var kept []string
	used := 0
	for i := len(a.history) - 1; i >= 0; i-- {
		line := fmt.Sprintf("%s: %s", a.history[i].Role, a.history[i].Content)
		cost := token.Count(a.encoder, line)
		if used+cost > budget {
			break
		}
		kept = append([]string{line}, kept...)
		used += cost
	}
	return kept
}

// packAgents emits agents oldest-first until the first overflow.
func (a *Assembler) packAgents(budget int) []string {
	if budget <= 0 || len(a.agents) == 0 {
		return nil
	}

	var lines []string
	used := 0
	for _, agent := range a.agents {
		line := agentLine(agent)
		cost := token.Count(a.encoder, line)
		if used+cost > budget {
			break
		}
		lines = append(lines, line)
		used += cost
	}
	return lines
}

// symbolLine renders one symbol in the fixed prompt format.
func symbolLine(sym *types.Symbol) string {
	parts := []string{sym.ID}
	if sym.Name != "" {
		parts = append(parts, sym.Name)
	}
	if len(sym.Triad) > 0 {
		parts = append(parts, "["+strings.Join(sym.Triad, ",")+"]")
	}
	if sym.Macro != "" {
		parts = append(parts, sym.Macro)
	}
	if len(sym.Invocations) > 0 {
		parts = append(parts, "inv:"+strings.Join(sym.Invocations, ";"))
	}
	if len(sym.Linked) > 0 {
		parts = append(parts, "lnk:"+strings.Join(sym.Linked, ","))
	}
	return strings.Join(parts, " | ")
}

func agentLine(agent *types.AgentPersona) string {
	parts := []string{agent.ID}
	if agent.Name != "" {
		parts = append(parts, agent.Name)
	}
	if agent.Description != "" {
		parts = append(parts, agent.Description)
	}
	if agent.Activation != "" {
		parts = append(parts, "activate:"+agent.Activation)
	}
	return strings.Join(parts, " | ")
}
