package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"sigil/internal/logging"
	"sigil/internal/types"
)

// LoadAgents loads the agent persona catalog from a JSON file of the shape
// {"personas": [...]}. Malformed entries are skipped with a warning; the
// returned count is the number actually loaded.
func (s *SymbolStore) LoadAgents(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read agent catalog %s: %w", path, err)
	}

	var file struct {
		Personas []json.RawMessage `json:"personas"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse agent catalog %s: %w", path, err)
	}

	loaded := make(map[string]*types.AgentPersona)
	for i, raw := range file.Personas {
		var persona types.AgentPersona
		if err := json.Unmarshal(raw, &persona); err != nil || persona.ID == "" {
			logging.Get(logging.CategoryStore).Warn("Skipping malformed persona at index %d in %s", i, path)
			continue
		}
		loaded[persona.ID] = &persona
	}

	s.catMu.Lock()
	s.agents = loaded
	s.catMu.Unlock()

	logging.Store("Loaded %d agent personas from %s", len(loaded), path)
	return len(loaded), nil
}

// LoadKits loads the kit catalog from a JSON file holding a list of kit
// definitions. A file that is not a list is an error.
func (s *SymbolStore) LoadKits(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read kit catalog %s: %w", path, err)
	}

	var defs []types.KitDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return 0, fmt.Errorf("kit catalog %s must be a JSON list: %w", path, err)
	}

	loaded := make(map[string]*types.KitDefinition)
	for i := range defs {
		def := defs[i]
		if def.Kit == "" {
			logging.Get(logging.CategoryStore).Warn("Skipping kit without a name at index %d in %s", i, path)
			continue
		}
		loaded[def.Kit] = &def
	}

	s.catMu.Lock()
	s.kits = loaded
	s.catMu.Unlock()

	logging.Store("Loaded %d kits from %s", len(loaded), path)
	return len(loaded), nil
}

// LoadSymbolCatalog bulk-loads symbols from a JSON file of the shape
// {"symbols": [...]} into the store.
func (s *SymbolStore) LoadSymbolCatalog(ctx context.Context, path string) (int, error) {
	timer := logging.StartTimer(logging.CategoryStore, "LoadSymbolCatalog")
	defer timer.Stop()

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read symbol catalog %s: %w", path, err)
	}

	var file struct {
		Symbols []json.RawMessage `json:"symbols"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse symbol catalog %s: %w", path, err)
	}

	var syms []*types.Symbol
	for i, raw := range file.Symbols {
		var sym types.Symbol
		if err := json.Unmarshal(raw, &sym); err != nil || sym.ID == "" {
			logging.Get(logging.CategoryStore).Warn("Skipping malformed symbol at index %d in %s", i, path)
			continue
		}
		syms = append(syms, &sym)
	}

	if err := s.PutBulk(ctx, syms); err != nil {
		return 0, err
	}
	return len(syms), nil
}

// GetAgent returns the persona with the given id, or nil when absent.
func (s *SymbolStore) GetAgent(id string) *types.AgentPersona {
	s.catMu.RLock()
	defer s.catMu.RUnlock()
	return s.agents[id]
}

// Agents returns every loaded persona keyed by id.
func (s *SymbolStore) Agents() map[string]*types.AgentPersona {
	s.catMu.RLock()
	defer s.catMu.RUnlock()
	out := make(map[string]*types.AgentPersona, len(s.agents))
	for id, p := range s.agents {
		out[id] = p
	}
	return out
}

// GetKit resolves a kit by name against the live store. Each member id is
// looked up; entries for absent or unreadable symbols carry a nil Symbol so
// callers can still see the id. Returns nil when the kit is unknown.
func (s *SymbolStore) GetKit(name string) (*types.ResolvedKit, error) {
	s.catMu.RLock()
	def := s.kits[name]
	s.catMu.RUnlock()
	if def == nil {
		return nil, nil
	}

	resolve := func(id string) types.KitEntry {
		entry := types.KitEntry{ID: id}
		sym, err := s.Get(id)
		if err != nil {
			logging.Get(logging.CategoryStore).Warn("Kit %s member %s unreadable: %v", name, id, err)
			return entry
		}
		entry.Symbol = sym
		return entry
	}

	resolved := &types.ResolvedKit{
		Kit:  def.Kit,
		Name: def.Name,
	}
	for _, id := range def.Triad {
		resolved.Triad = append(resolved.Triad, resolve(id))
	}
	if def.Anchor != "" {
		anchor := resolve(def.Anchor)
		resolved.Anchor = &anchor
	}
	for _, id := range def.Exec {
		resolved.Exec = append(resolved.Exec, resolve(id))
	}

	logging.StoreDebug("Resolved kit %s: triad=%d anchor=%v exec=%d",
		name, len(resolved.Triad), resolved.Anchor != nil, len(resolved.Exec))
	return resolved, nil
}

// Kits returns the names of every loaded kit.
func (s *SymbolStore) Kits() []string {
	s.catMu.RLock()
	defer s.catMu.RUnlock()
	out := make([]string, 0, len(s.kits))
	for name := range s.kits {
		out = append(out, name)
	}
	return out
}
