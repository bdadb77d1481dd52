package index

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"sigil/internal/embedding"
	"sigil/internal/types"
)

func TestMain(m *testing.M) {
	// The genai dependency chain starts an opencensus stats worker in an
	// init; it is a process-lifetime goroutine, not a leak.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

// sliceSource serves symbols from a slice in insertion order.
type sliceSource struct {
	syms []*types.Symbol
}

func (s *sliceSource) List(domain, tag string, offset, limit int) ([]*types.Symbol, error) {
	return s.syms, nil
}

func (s *sliceSource) add(sym *types.Symbol) {
	s.syms = append(s.syms, sym)
}

func newTestIndex(src *sliceSource) *Index {
	return New(embedding.NewHashEngine(32), src)
}

func TestSearchRebuildsLazily(t *testing.T) {
	src := &sliceSource{}
	src.add(&types.Symbol{ID: "sym.a", Macro: "walk linked symbols outward"})
	src.add(&types.Symbol{ID: "sym.b", Macro: "split the context token budget"})

	ix := newTestIndex(src)
	if ix.Len() != 0 {
		t.Fatalf("index should start empty, len=%d", ix.Len())
	}

	matches, err := ix.Search(context.Background(), "walk linked symbols outward", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ix.Len() != 2 {
		t.Errorf("lazy rebuild did not run, len=%d", ix.Len())
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestSearchRanksExactMacroFirst(t *testing.T) {
	// Name and description must not dilute the vector: a query identical to
	// a symbol's macro comes back first at distance 0 regardless of the
	// other fields.
	src := &sliceSource{}
	src.add(&types.Symbol{ID: "sym.a", Name: "alpha helper", Description: "does alpha things", Macro: "alpha"})
	src.add(&types.Symbol{ID: "sym.b", Macro: "beta"})

	ix := newTestIndex(src)
	matches, err := ix.Search(context.Background(), "alpha", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %+v", matches)
	}
	if matches[0].ID != "sym.a" || matches[0].Distance != 0 {
		t.Errorf("exact macro match must rank first at distance 0, got %+v", matches)
	}
}

func TestMacrolessSymbolsAreNotIndexed(t *testing.T) {
	src := &sliceSource{}
	src.add(&types.Symbol{ID: "sym.bare"})
	src.add(&types.Symbol{ID: "sym.named", Name: "named but silent", Description: "no macro"})
	src.add(&types.Symbol{ID: "sym.real", Macro: "anchor the frame"})

	ix := newTestIndex(src)
	matches, err := ix.Search(context.Background(), "anchor the frame", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if ix.Len() != 1 {
		t.Errorf("macro-less symbols indexed, len=%d", ix.Len())
	}
	if len(matches) != 1 || matches[0].ID != "sym.real" {
		t.Errorf("expected only sym.real, got %+v", matches)
	}
}

func TestUpsertOverwritesSlot(t *testing.T) {
	src := &sliceSource{}
	src.add(&types.Symbol{ID: "sym.a", Macro: "alpha"})
	src.add(&types.Symbol{ID: "sym.b", Macro: "beta"})

	ix := newTestIndex(src)
	if err := ix.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if ix.Len() != 2 {
		t.Fatalf("len=%d", ix.Len())
	}

	// Re-upserting an indexed id must not grow the index.
	if err := ix.Upsert(context.Background(), &types.Symbol{ID: "sym.a", Macro: "alpha revised"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ix.Len() != 2 {
		t.Errorf("overwrite grew the index to %d", ix.Len())
	}

	got, err := ix.Search(context.Background(), "alpha revised", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "sym.a" || got[0].Distance != 0 {
		t.Errorf("updated vector not searchable: %+v", got)
	}

	// A new id appends a slot.
	if err := ix.Upsert(context.Background(), &types.Symbol{ID: "sym.c", Macro: "gamma"}); err != nil {
		t.Fatal(err)
	}
	if ix.Len() != 3 {
		t.Errorf("append failed, len=%d", ix.Len())
	}
}

func TestUpsertDropsSymbolWhoseMacroCleared(t *testing.T) {
	src := &sliceSource{}
	src.add(&types.Symbol{ID: "sym.a", Macro: "alpha"})
	src.add(&types.Symbol{ID: "sym.b", Macro: "beta"})
	src.add(&types.Symbol{ID: "sym.c", Macro: "gamma"})

	ix := newTestIndex(src)
	if err := ix.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if err := ix.Upsert(context.Background(), &types.Symbol{ID: "sym.b"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ix.Len() != 2 {
		t.Fatalf("cleared macro should leave the index, len=%d", ix.Len())
	}

	// Remaining slots stay addressable after the gap closes.
	got, err := ix.Search(context.Background(), "gamma", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "sym.c" || got[0].Distance != 0 {
		t.Errorf("slot renumbering broke search: %+v", got)
	}
}

func TestUpsertOnStaleIndexDefers(t *testing.T) {
	src := &sliceSource{}
	src.add(&types.Symbol{ID: "sym.a", Macro: "alpha"})

	ix := newTestIndex(src)
	// Not rebuilt yet: the upsert is a no-op and the rebuild covers it.
	if err := ix.Upsert(context.Background(), src.syms[0]); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ix.Len() != 0 {
		t.Errorf("stale upsert should defer, len=%d", ix.Len())
	}

	matches, err := ix.Search(context.Background(), "alpha", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ID != "sym.a" {
		t.Errorf("deferred symbol missing after rebuild: %+v", matches)
	}
}

func TestInvalidateForcesRebuild(t *testing.T) {
	src := &sliceSource{}
	src.add(&types.Symbol{ID: "sym.a", Macro: "alpha"})

	ix := newTestIndex(src)
	if _, err := ix.Search(context.Background(), "alpha", 5); err != nil {
		t.Fatal(err)
	}

	// Simulate a delete: source shrinks, index is stale until invalidated.
	src.syms = src.syms[:0]
	src.add(&types.Symbol{ID: "sym.b", Macro: "beta"})
	ix.Invalidate()

	matches, err := ix.Search(context.Background(), "beta", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ID != "sym.b" {
		t.Errorf("rebuild after invalidate did not track source: %+v", matches)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := newTestIndex(&sliceSource{})

	matches, err := ix.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %+v", matches)
	}
}

func TestConcurrentSearchAndUpsert(t *testing.T) {
	src := &sliceSource{}
	for i := 0; i < 8; i++ {
		src.add(&types.Symbol{ID: fmt.Sprintf("sym.%d", i), Macro: fmt.Sprintf("macro %d", i)})
	}

	ix := newTestIndex(src)
	if err := ix.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(2)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				sym := &types.Symbol{
					ID:    fmt.Sprintf("sym.%d", i%8),
					Macro: fmt.Sprintf("macro %d rev %d.%d", i%8, g, i),
				}
				if err := ix.Upsert(context.Background(), sym); err != nil {
					t.Errorf("Upsert: %v", err)
					return
				}
			}
		}(g)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := ix.Search(context.Background(), "macro 3", 4); err != nil {
					t.Errorf("Search: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if ix.Len() != 8 {
		t.Errorf("concurrent upserts changed membership, len=%d", ix.Len())
	}
}
