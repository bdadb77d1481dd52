// Package index maintains the in-memory retrieval index: one embedding
// vector per stored symbol, addressed by slot, searched by Euclidean
// distance. The store owns symbol state; the index holds derived vectors and
// is rebuilt from the store whenever it falls out of step.
package index

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"sigil/internal/embedding"
	"sigil/internal/logging"
	"sigil/internal/types"
)

// Source supplies the symbols to index. Satisfied by the store's List.
type Source interface {
	List(domain, tag string, offset, limit int) ([]*types.Symbol, error)
}

// Match is one search hit, nearest first.
type Match struct {
	ID       string
	Distance float64
}

// Index maps symbol ids to embedding vectors and answers nearest-neighbor
// queries. Vectors are derived from macro text alone; symbols without a
// macro are not indexed. Vectors live in slot order; ids[i] names the symbol
// whose vector occupies vectors[i]. A full rebuild re-derives both from the
// source.
type Index struct {
	engine embedding.Engine
	source Source

	mu      sync.RWMutex
	ids     []string
	vectors [][]float32
	slots   map[string]int
	ready   bool

	rebuildGroup singleflight.Group
}

// New creates an index over the given source. The index starts empty and not
// ready; the first Search triggers a rebuild.
func New(engine embedding.Engine, source Source) *Index {
	return &Index{
		engine: engine,
		source: source,
		slots:  make(map[string]int),
	}
}

// Len returns the number of indexed symbols.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// Invalidate marks the index stale. The next Search rebuilds it.
func (ix *Index) Invalidate() {
	ix.mu.Lock()
	ix.ready = false
	ix.mu.Unlock()
	logging.Index("Index invalidated")
}

// Upsert refreshes the vector for one symbol, overwriting its slot when the
// id is already indexed and appending a new slot otherwise. A symbol whose
// macro is empty is unretrievable: any prior vector for the id is dropped.
// On a stale index the write is skipped; the pending rebuild will pick the
// symbol up.
func (ix *Index) Upsert(ctx context.Context, sym *types.Symbol) error {
	if sym == nil || sym.ID == "" {
		return fmt.Errorf("symbol id is required")
	}

	ix.mu.RLock()
	ready := ix.ready
	ix.mu.RUnlock()
	if !ready {
		logging.IndexDebug("Upsert %s deferred to pending rebuild", sym.ID)
		return nil
	}

	if sym.Macro == "" {
		ix.mu.Lock()
		ix.removeLocked(sym.ID)
		ix.mu.Unlock()
		return nil
	}

	vec, err := ix.engine.Embed(ctx, sym.Macro)
	if err != nil {
		return fmt.Errorf("embed %s: %w", sym.ID, err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if slot, ok := ix.slots[sym.ID]; ok {
		ix.vectors[slot] = vec
		logging.IndexDebug("Upsert %s into existing slot %d", sym.ID, slot)
	} else {
		ix.slots[sym.ID] = len(ix.ids)
		ix.ids = append(ix.ids, sym.ID)
		ix.vectors = append(ix.vectors, vec)
		logging.IndexDebug("Upsert %s into new slot %d", sym.ID, len(ix.ids)-1)
	}
	return nil
}

// removeLocked drops one id from the index, closing the gap so slot order
// still follows store insertion order. Caller holds the write lock.
func (ix *Index) removeLocked(id string) {
	slot, ok := ix.slots[id]
	if !ok {
		return
	}
	ix.ids = append(ix.ids[:slot], ix.ids[slot+1:]...)
	ix.vectors = append(ix.vectors[:slot], ix.vectors[slot+1:]...)
	delete(ix.slots, id)
	for i := slot; i < len(ix.ids); i++ {
		ix.slots[ix.ids[i]] = i
	}
	logging.IndexDebug("Removed %s from index", id)
}

// Rebuild re-derives the whole index from the source. Concurrent callers
// share a single rebuild.
func (ix *Index) Rebuild(ctx context.Context) error {
	_, err, _ := ix.rebuildGroup.Do("rebuild", func() (interface{}, error) {
		return nil, ix.rebuild(ctx)
	})
	return err
}

func (ix *Index) rebuild(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryIndex, "Rebuild")
	defer timer.Stop()

	syms, err := ix.source.List("", "", 0, 0)
	if err != nil {
		return fmt.Errorf("list symbols for rebuild: %w", err)
	}

	var ids []string
	var texts []string
	for _, sym := range syms {
		if sym.Macro == "" {
			continue
		}
		ids = append(ids, sym.ID)
		texts = append(texts, sym.Macro)
	}

	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = ix.engine.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch for rebuild: %w", err)
		}
		if len(vectors) != len(ids) {
			return fmt.Errorf("embed batch returned %d vectors for %d symbols", len(vectors), len(ids))
		}
	}

	slots := make(map[string]int, len(ids))
	for i, id := range ids {
		slots[id] = i
	}

	ix.mu.Lock()
	ix.ids = ids
	ix.vectors = vectors
	ix.slots = slots
	ix.ready = true
	ix.mu.Unlock()

	logging.Index("Rebuilt index with %d symbols, %d skipped without macro (engine=%s)",
		len(ids), len(syms)-len(ids), ix.engine.Name())
	return nil
}

// Search returns up to k symbol ids ranked by ascending Euclidean distance
// to the query text. A stale index is rebuilt first. Distance ties keep slot
// order, which follows store insertion order.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "Search")
	defer timer.Stop()

	ix.mu.RLock()
	ready := ix.ready
	ix.mu.RUnlock()
	if !ready {
		if err := ix.Rebuild(ctx); err != nil {
			return nil, err
		}
	}

	qvec, err := ix.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// The lock covers the distance scan: a concurrent Upsert rewrites
	// vector slots in place.
	ix.mu.RLock()
	neighbors := embedding.NearestK(qvec, ix.vectors, k)
	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		matches = append(matches, Match{ID: ix.ids[n.Index], Distance: n.Distance})
	}
	total := len(ix.ids)
	ix.mu.RUnlock()

	logging.IndexDebug("Search %q returned %d of %d indexed symbols", query, len(matches), total)
	return matches, nil
}
