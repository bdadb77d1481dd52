package embedding

import (
	"context"
	"math/rand"

	"hash/fnv"
)

// =============================================================================
// DETERMINISTIC HASH ENGINE
// =============================================================================

// HashEngine produces pseudo-random vectors seeded from the text itself.
// The same text always maps to the same vector, which keeps nearest-neighbor
// search well-defined when no real embedding model is configured. There is
// no semantic signal in these vectors; identical texts have distance zero
// and that is the only guarantee.
type HashEngine struct {
	dimensions int
}

// NewHashEngine creates a hash engine with the given vector size.
func NewHashEngine(dimensions int) *HashEngine {
	if dimensions <= 0 {
		dimensions = 32
	}
	return &HashEngine{dimensions: dimensions}
}

// Embed generates a deterministic vector for the text.
func (e *HashEngine) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, e.dimensions)
	for i := range vec {
		vec[i] = rng.Float32()
	}
	return vec, nil
}

// EmbedBatch generates deterministic vectors for multiple texts.
func (e *HashEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Dimensions returns the configured vector size.
func (e *HashEngine) Dimensions() int {
	return e.dimensions
}

// Name returns the engine name.
func (e *HashEngine) Name() string {
	return "hash"
}
