package integrate

import (
	"fmt"

	"sigil/internal/command"
	"sigil/internal/logging"
	"sigil/internal/types"
)

// Source resolves linked symbol ids during graph expansion. Satisfied by the
// store's Get.
type Source interface {
	Get(id string) (*types.Symbol, error)
}

// Integrator applies directive results to a working set and produces one
// summary note per result for the session history.
type Integrator struct {
	source Source
}

// New creates an integrator that resolves linked ids through source.
func New(source Source) *Integrator {
	return &Integrator{source: source}
}

// Integrate folds each result into the working set in order. Symbol-loading
// results contribute every symbol they carry; an invoked agent joins the
// active persona list; a recurse_graph acknowledgment triggers one hop of
// link expansion. Everything else is summarized without mutation.
func (ig *Integrator) Integrate(results []command.Result, ws *WorkingSet) []string {
	timer := logging.StartTimer(logging.CategoryCommand, "Integrate")
	defer timer.Stop()

	var notes []string
	for _, res := range results {
		if res.Err != "" {
			notes = append(notes, res.Summary())
			continue
		}

		switch res.Kind {
		case command.KindLoadSymbol, command.KindQuerySymbols, command.KindLoadKit:
			added := ig.addResultSymbols(res, ws)
			if len(added) > 0 {
				notes = append(notes, fmt.Sprintf("%s: added symbols %v", res.Action, added))
			} else {
				notes = append(notes, fmt.Sprintf("%s: no new symbols added", res.Action))
			}
		case command.KindInvokeAgent:
			if res.Agent != nil && ws.AddAgent(res.Agent) {
				notes = append(notes, fmt.Sprintf("%s: activated agent %s", res.Action, res.Agent.ID))
			} else {
				notes = append(notes, res.Summary())
			}
		case command.KindRecurseGraph:
			added := ig.expandLinks(ws)
			if len(added) > 0 {
				notes = append(notes, fmt.Sprintf("%s: loaded linked symbols %v", res.Action, added))
			} else {
				notes = append(notes, fmt.Sprintf("%s: no linked symbols loaded", res.Action))
			}
		default:
			notes = append(notes, res.Summary())
		}
	}

	logging.CommandDebug("Integrate: %d results, working set now %d symbols, %d agents",
		len(results), ws.Len(), len(ws.Agents()))
	return notes
}

// addResultSymbols collects every symbol the result carries, including kit
// members, and adds the new ones.
func (ig *Integrator) addResultSymbols(res command.Result, ws *WorkingSet) []string {
	var added []string
	for _, sym := range res.Symbols {
		if ws.AddSymbol(sym) {
			added = append(added, sym.ID)
		}
	}
	if res.Kit != nil {
		for _, sym := range res.Kit.Symbols() {
			if ws.AddSymbol(sym) {
				added = append(added, sym.ID)
			}
		}
	}
	return added
}

// expandLinks performs one breadth-first hop: for every symbol currently in
// the set, fetch its linked ids from the store and add any that resolve.
// Symbols added during this hop are not themselves expanded; depth stays at
// one per integration pass.
func (ig *Integrator) expandLinks(ws *WorkingSet) []string {
	snapshot := make([]*types.Symbol, len(ws.Symbols()))
	copy(snapshot, ws.Symbols())

	var added []string
	for _, sym := range snapshot {
		for _, linkedID := range sym.Linked {
			if linkedID == "" || ws.Has(linkedID) {
				continue
			}
			linked, err := ig.source.Get(linkedID)
			if err != nil {
				logging.Get(logging.CategoryCommand).Warn("Graph expansion: %s unreadable: %v", linkedID, err)
				continue
			}
			if linked == nil {
				continue
			}
			if ws.AddSymbol(linked) {
				added = append(added, linked.ID)
			}
		}
	}
	return added
}
