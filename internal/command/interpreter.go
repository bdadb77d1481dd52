package command

import (
	"context"
	"encoding/json"
	"fmt"

	"sigil/internal/logging"
	"sigil/internal/store"
	"sigil/internal/types"
)

// Kind is the closed set of directive kinds. Unrecognized actions map to
// KindUnknown so dispatch stays exhaustive.
type Kind int

const (
	KindUnknown Kind = iota
	KindStoreSymbol
	KindUpdateSymbol
	KindDeleteSymbol
	KindLoadSymbol
	KindLoadKit
	KindInvokeAgent
	KindQuerySymbols
	KindRecurseGraph
	KindReserved
)

func kindOf(action string) Kind {
	switch action {
	case "store_symbol":
		return KindStoreSymbol
	case "update_symbol":
		return KindUpdateSymbol
	case "delete_symbol":
		return KindDeleteSymbol
	case "load_symbol":
		return KindLoadSymbol
	case "load_kit":
		return KindLoadKit
	case "invoke_agent":
		return KindInvokeAgent
	case "query_symbols":
		return KindQuerySymbols
	case "recurse_graph":
		return KindRecurseGraph
	case "emit_feedback", "dispatch_task":
		return KindReserved
	default:
		return KindUnknown
	}
}

// Payload is one parsed directive object, keyed by field name with raw JSON
// values so handlers decode only what they need.
type Payload map[string]json.RawMessage

func (p Payload) stringField(keys ...string) string {
	for _, key := range keys {
		raw, ok := p[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// Result is the outcome of executing one directive. Exactly one of the typed
// payload fields is populated depending on the kind; Err is set when the
// handler failed or the directive was malformed.
type Result struct {
	Kind   Kind
	Action string
	Status string
	Err    string

	Symbols []*types.Symbol
	Kit     *types.ResolvedKit
	Agent   *types.AgentPersona
}

// Summary renders the result for history logs.
func (r Result) Summary() string {
	if r.Err != "" {
		return fmt.Sprintf("%s: error %s", r.Action, r.Err)
	}
	switch {
	case r.Kit != nil:
		return fmt.Sprintf("%s: kit %s", r.Action, r.Kit.Kit)
	case r.Agent != nil:
		return fmt.Sprintf("%s: agent %s", r.Action, r.Agent.ID)
	case len(r.Symbols) > 0:
		ids := make([]string, len(r.Symbols))
		for i, sym := range r.Symbols {
			ids[i] = sym.ID
		}
		return fmt.Sprintf("%s: %v", r.Action, ids)
	default:
		return fmt.Sprintf("%s: %s", r.Action, r.Status)
	}
}

// Interpreter parses directive blocks and dispatches them against the store.
type Interpreter struct {
	store *store.SymbolStore
}

// New creates an interpreter bound to the given store.
func New(st *store.SymbolStore) *Interpreter {
	return &Interpreter{store: st}
}

// Parse extracts directive payloads from text, skipping any whose JSON does
// not decode to an object.
func (in *Interpreter) Parse(text string) []Payload {
	var payloads []Payload
	for _, raw := range Scan(text) {
		var p Payload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			logging.Command("Skipping malformed directive payload: %v", err)
			continue
		}
		payloads = append(payloads, p)
	}
	return payloads
}

// Execute runs each directive in order. A failing handler never aborts the
// batch; its failure becomes an error result and the rest still run.
func (in *Interpreter) Execute(ctx context.Context, payloads []Payload) []Result {
	timer := logging.StartTimer(logging.CategoryCommand, "Execute")
	defer timer.Stop()

	results := make([]Result, 0, len(payloads))
	for _, p := range payloads {
		results = append(results, in.dispatch(ctx, p))
	}
	return results
}

// Run parses and immediately executes the directives in text.
func (in *Interpreter) Run(ctx context.Context, text string) []Result {
	payloads := in.Parse(text)
	if len(payloads) == 0 {
		return nil
	}
	return in.Execute(ctx, payloads)
}

func (in *Interpreter) dispatch(ctx context.Context, p Payload) (res Result) {
	action := p.stringField("action")
	res.Action = action
	res.Kind = kindOf(action)

	if action == "" {
		res.Err = "missing action"
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryCommand).Error("Handler panic for action %s: %v", action, r)
			res.Err = fmt.Sprintf("handler panic: %v", r)
		}
	}()

	logging.CommandDebug("Dispatching action: %s", action)

	switch res.Kind {
	case KindStoreSymbol:
		return in.handleStoreSymbol(ctx, res, p)
	case KindUpdateSymbol:
		return in.handleUpdateSymbol(ctx, res, p)
	case KindDeleteSymbol:
		return in.handleDeleteSymbol(ctx, res, p)
	case KindLoadSymbol, KindQuerySymbols:
		return in.handleLoadSymbols(res, p)
	case KindLoadKit:
		return in.handleLoadKit(res, p)
	case KindInvokeAgent:
		return in.handleInvokeAgent(res, p)
	case KindRecurseGraph:
		// Traversal belongs to the integrator; the directive is only
		// acknowledged here. The depth field is reserved and unread.
		res.Status = "queued"
		return res
	case KindReserved:
		res.Status = "not_implemented"
		return res
	default:
		res.Status = "unknown_action"
		return res
	}
}

func (in *Interpreter) handleStoreSymbol(ctx context.Context, res Result, p Payload) Result {
	raw, ok := p["symbol"]
	if !ok {
		res.Err = "missing symbol"
		return res
	}
	var sym types.Symbol
	if err := json.Unmarshal(raw, &sym); err != nil || sym.ID == "" {
		res.Err = "invalid symbol"
		return res
	}
	if err := in.store.Put(ctx, &sym); err != nil {
		res.Err = err.Error()
		return res
	}
	res.Status = "stored"
	res.Symbols = []*types.Symbol{&sym}
	return res
}

// handleUpdateSymbol merges the incoming fields onto the stored entity:
// the existing symbol is the base, incoming keys override, everything else
// is preserved, including fields outside the known schema.
func (in *Interpreter) handleUpdateSymbol(ctx context.Context, res Result, p Payload) Result {
	raw, ok := p["symbol"]
	if !ok {
		res.Err = "missing symbol"
		return res
	}
	var incoming map[string]json.RawMessage
	if err := json.Unmarshal(raw, &incoming); err != nil {
		res.Err = "invalid symbol"
		return res
	}
	var id string
	if err := json.Unmarshal(incoming["id"], &id); err != nil || id == "" {
		res.Err = "invalid symbol"
		return res
	}

	base := make(map[string]json.RawMessage)
	existing, err := in.store.Get(id)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	if existing != nil {
		existingJSON, err := json.Marshal(existing)
		if err != nil {
			res.Err = err.Error()
			return res
		}
		if err := json.Unmarshal(existingJSON, &base); err != nil {
			res.Err = err.Error()
			return res
		}
	}
	for key, value := range incoming {
		base[key] = value
	}

	mergedJSON, err := json.Marshal(base)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	var merged types.Symbol
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		res.Err = "invalid symbol"
		return res
	}
	if err := in.store.Put(ctx, &merged); err != nil {
		res.Err = err.Error()
		return res
	}
	res.Status = "updated"
	res.Symbols = []*types.Symbol{&merged}
	return res
}

func (in *Interpreter) handleDeleteSymbol(ctx context.Context, res Result, p Payload) Result {
	id := p.stringField("symbol_id", "id")
	if id == "" {
		res.Err = "missing symbol_id"
		return res
	}
	removed, err := in.store.Delete(ctx, id)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	if removed {
		res.Status = "deleted"
	} else {
		res.Status = "not_found"
	}
	return res
}

func (in *Interpreter) handleLoadSymbols(res Result, p Payload) Result {
	var ids []string
	if raw, ok := p["ids"]; ok {
		if err := json.Unmarshal(raw, &ids); err != nil {
			res.Err = "invalid ids"
			return res
		}
	} else if id := p.stringField("id"); id != "" {
		ids = []string{id}
	}

	syms, err := in.store.GetMany(ids)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.Status = "loaded"
	res.Symbols = syms
	return res
}

func (in *Interpreter) handleLoadKit(res Result, p Payload) Result {
	kitID := p.stringField("kit_id", "kit")
	if kitID == "" {
		res.Err = "missing kit_id"
		return res
	}
	kit, err := in.store.GetKit(kitID)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	if kit == nil {
		res.Status = "not_found"
		return res
	}
	res.Status = "loaded"
	res.Kit = kit
	return res
}

func (in *Interpreter) handleInvokeAgent(res Result, p Payload) Result {
	agentID := p.stringField("agent_id", "id")
	if agentID == "" {
		res.Err = "missing agent_id"
		return res
	}
	agent := in.store.GetAgent(agentID)
	if agent == nil {
		res.Status = "not_found"
		return res
	}
	res.Status = "invoked"
	res.Agent = agent
	return res
}
