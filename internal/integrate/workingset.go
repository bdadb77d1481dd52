// Package integrate folds directive execution results back into the live
// working set consumed by the next assembler pass.
package integrate

import "sigil/internal/types"

// WorkingSet is the ordered, id-deduplicated collection of symbols and agent
// personas active in the current orchestration pass. It only ever grows
// within a pass; staleness against the store is accepted until the next
// retrieval.
type WorkingSet struct {
	symbols []*types.Symbol
	lookup  map[string]*types.Symbol

	agents   []*types.AgentPersona
	agentIDs map[string]bool
}

// NewWorkingSet returns an empty working set.
func NewWorkingSet() *WorkingSet {
	return &WorkingSet{
		lookup:   make(map[string]*types.Symbol),
		agentIDs: make(map[string]bool),
	}
}

// AddSymbol appends a symbol unless its id is already present. Reports
// whether the symbol was added.
func (ws *WorkingSet) AddSymbol(sym *types.Symbol) bool {
	if sym == nil || sym.ID == "" {
		return false
	}
	if _, exists := ws.lookup[sym.ID]; exists {
		return false
	}
	ws.symbols = append(ws.symbols, sym)
	ws.lookup[sym.ID] = sym
	return true
}

// AddAgent appends a persona unless already active.
func (ws *WorkingSet) AddAgent(agent *types.AgentPersona) bool {
	if agent == nil || agent.ID == "" {
		return false
	}
	if ws.agentIDs[agent.ID] {
		return false
	}
	ws.agents = append(ws.agents, agent)
	ws.agentIDs[agent.ID] = true
	return true
}

// Has reports whether a symbol id is in the set.
func (ws *WorkingSet) Has(id string) bool {
	_, ok := ws.lookup[id]
	return ok
}

// Get returns the symbol with the given id, or nil.
func (ws *WorkingSet) Get(id string) *types.Symbol {
	return ws.lookup[id]
}

// Symbols returns the symbols in insertion order.
func (ws *WorkingSet) Symbols() []*types.Symbol {
	return ws.symbols
}

// Agents returns the active personas in invocation order.
func (ws *WorkingSet) Agents() []*types.AgentPersona {
	return ws.agents
}

// Len returns the symbol count.
func (ws *WorkingSet) Len() int {
	return len(ws.symbols)
}
