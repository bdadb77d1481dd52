package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"sigil/internal/types"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAgentsSkipsMalformed(t *testing.T) {
	s := newTestStore(t)

	path := writeFile(t, "agents.json", `{
		"personas": [
			{"id": "scribe", "name": "Scribe", "activation": "writing tasks"},
			{"name": "no id, skipped"},
			{"id": "auditor", "domain": "review"}
		]
	}`)

	n, err := s.LoadAgents(path)
	if err != nil {
		t.Fatalf("LoadAgents: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 personas, got %d", n)
	}
	if s.GetAgent("scribe") == nil || s.GetAgent("auditor") == nil {
		t.Error("loaded personas not retrievable")
	}
	if s.GetAgent("missing") != nil {
		t.Error("expected nil for unknown persona")
	}
}

func TestLoadKitsRequiresList(t *testing.T) {
	s := newTestStore(t)

	path := writeFile(t, "kits.json", `{"kit": "not-a-list"}`)
	if _, err := s.LoadKits(path); err == nil {
		t.Error("expected error for non-list kit catalog")
	}
}

func TestGetKitResolvesBothShapes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, &types.Symbol{ID: "sym.a", Name: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, &types.Symbol{ID: "sym.anchor", Name: "Anchor"}); err != nil {
		t.Fatal(err)
	}

	path := writeFile(t, "kits.json", `[
		{"kit": "starter", "name": "Starter", "triad": ["sym.a", "sym.missing"], "anchor": "sym.anchor", "exec": ["sym.a"]}
	]`)
	if _, err := s.LoadKits(path); err != nil {
		t.Fatalf("LoadKits: %v", err)
	}

	kit, err := s.GetKit("starter")
	if err != nil {
		t.Fatalf("GetKit: %v", err)
	}
	if kit == nil {
		t.Fatal("kit not found")
	}

	if len(kit.Triad) != 2 {
		t.Fatalf("expected 2 triad entries, got %d", len(kit.Triad))
	}
	if kit.Triad[0].Symbol == nil || kit.Triad[0].Symbol.Name != "A" {
		t.Errorf("present member not resolved: %+v", kit.Triad[0])
	}
	if kit.Triad[1].ID != "sym.missing" || kit.Triad[1].Symbol != nil {
		t.Errorf("absent member should keep id with nil symbol: %+v", kit.Triad[1])
	}
	if kit.Anchor == nil || kit.Anchor.Symbol == nil || kit.Anchor.Symbol.ID != "sym.anchor" {
		t.Errorf("anchor not resolved: %+v", kit.Anchor)
	}

	syms := kit.Symbols()
	if len(syms) != 3 {
		t.Errorf("Symbols() should skip unresolved entries, got %d", len(syms))
	}
}

func TestGetKitUnknownReturnsNil(t *testing.T) {
	s := newTestStore(t)

	kit, err := s.GetKit("nonexistent")
	if err != nil {
		t.Fatalf("GetKit: %v", err)
	}
	if kit != nil {
		t.Errorf("expected nil for unknown kit, got %+v", kit)
	}
}

func TestLoadSymbolCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	path := writeFile(t, "symbols.json", `{
		"symbols": [
			{"id": "sym.a", "symbol_domain": "core"},
			{"no_id": true},
			{"id": "sym.b", "symbol_domain": "core", "resonance_depth": 2}
		]
	}`)

	n, err := s.LoadSymbolCatalog(ctx, path)
	if err != nil {
		t.Fatalf("LoadSymbolCatalog: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 symbols loaded, got %d", n)
	}

	got, err := s.Get("sym.b")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || string(got.Extra["resonance_depth"]) != "2" {
		t.Errorf("catalog symbol lost extra fields: %+v", got)
	}
}
