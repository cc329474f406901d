package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/frank1beans/tender-reconciler/platform/ai/embeddings"
	"github.com/frank1beans/tender-reconciler/platform/qdrant"
)

// Vector is an L2-normalized embedding tagged with the model that produced
// it, mirroring domain.EmbeddingPayload but decoupled from persistence.
type Vector struct {
	ModelID   string
	Dimension int
	Values    []float32
}

// Service is the SentenceTransformer-equivalent embedder described in
// §4.3: a single externally-hosted model (platform/ai/embeddings.Client),
// reconfigurable in place. Reconfiguration swaps the model atomically for
// subsequent Embed calls; vectors produced under a previous model_id keep
// that tag and are invisible to callers filtering on the current model
// (see catalogidx.Build's ModelID match).
type Service struct {
	mu        sync.RWMutex
	client    *embeddings.Client
	modelID   string
	maxLength int
	batchSize int
	dimension int
}

// NewService wires the HTTP embedding client with the configured defaults
// (domain.DefaultSettings: multilingual MPNet, max_length 256, batch 32).
func NewService(client *embeddings.Client, modelID string, maxLength, batchSize int) *Service {
	return &Service{
		client:    client,
		modelID:   modelID,
		maxLength: maxLength,
		batchSize: batchSize,
	}
}

// Configure atomically swaps model_id/max_length/batch_size for subsequent
// Embed calls (§4.3 "configure(model_id?, max_length?, batch_size?)").
func (s *Service) Configure(modelID *string, maxLength, batchSize *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if modelID != nil && *modelID != s.modelID {
		s.modelID = *modelID
		s.dimension = 0 // dimension is auto-detected per model on first encode
	}
	if maxLength != nil {
		s.maxLength = *maxLength
	}
	if batchSize != nil {
		s.batchSize = *batchSize
	}
}

// ModelID returns the currently configured model identifier.
func (s *Service) ModelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelID
}

// Dimension returns the vector dimension auto-detected on first Embed call
// under the current model, or 0 if nothing has been embedded yet.
func (s *Service) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Embed encodes text under the currently configured model, truncating to
// max_length runes and L2-normalizing the result.
func (s *Service) Embed(ctx context.Context, text string) (Vector, error) {
	s.mu.RLock()
	modelID := s.modelID
	maxLength := s.maxLength
	s.mu.RUnlock()

	truncated := truncateRunes(text, maxLength)
	raw, err := s.client.Embed(ctx, truncated)
	if err != nil {
		return Vector{}, fmt.Errorf("embed text: %w", err)
	}

	normalized := l2Normalize(raw)

	s.mu.Lock()
	if s.dimension == 0 {
		s.dimension = len(normalized)
	}
	s.mu.Unlock()

	return Vector{ModelID: modelID, Dimension: len(normalized), Values: normalized}, nil
}

// EmbedBatch encodes multiple texts, at most the configured batch size at once.
// The embedding API this client wraps (platform/ai/embeddings) is
// single-text per request; batching here only bounds concurrency.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	s.mu.RLock()
	batchSize := s.batchSize
	s.mu.RUnlock()
	if batchSize < 1 {
		batchSize = 1
	}

	vectors := make([]Vector, len(texts))
	sem := make(chan struct{}, batchSize)
	var wg sync.WaitGroup
	errs := make([]error, len(texts))

	for i, text := range texts {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, text string) {
			defer wg.Done()
			defer func() { <-sem }()
			v, err := s.Embed(ctx, text)
			vectors[i] = v
			errs[i] = err
		}(i, text)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

func l2Normalize(vector []float32) []float32 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return vector
	}
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// PerCommessaCollection builds the Qdrant collection name for a commessa's
// FAISS-equivalent index, mirroring the spec's
// "commessa_{id}_price_list_index" file naming.
func PerCommessaCollection(commessaID int64) string {
	return fmt.Sprintf("commessa_%d_price_list_index", commessaID)
}

// Index wraps a Qdrant collection scoped to one commessa, providing the
// build_index/load_index/search/index_exists/delete_index surface of §4.3.
type Index struct {
	client *qdrant.Client
}

// NewIndex binds a FAISS-equivalent index to a commessa's collection.
func NewIndex(base *qdrant.Client, commessaID int64) *Index {
	return &Index{client: base.WithCollection(PerCommessaCollection(commessaID))}
}

// BuildIndex (re)creates the collection and upserts every item's vector.
// Items without a vector for the current model are expected to already have
// been filtered out by the caller (catalogidx.Build does this).
func (idx *Index) BuildIndex(ctx context.Context, entries []IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := idx.client.EnsureCollection(ctx, len(entries[0].Vector)); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	points := make([]qdrant.Point, 0, len(entries))
	for _, e := range entries {
		points = append(points, qdrant.Point{
			ID:     e.ItemID,
			Vector: e.Vector,
		})
	}
	return idx.client.Upsert(ctx, points)
}

// IndexEntry is one catalog item's id + L2-normalized vector, handed to
// BuildIndex.
type IndexEntry struct {
	ItemID int64
	Vector []float32
}

// IndexExists reports whether this commessa already has a built index.
func (idx *Index) IndexExists(ctx context.Context) (bool, error) {
	return idx.client.CollectionExists(ctx)
}

// DeleteIndex drops the commessa's index (called after a model change
// invalidates every stored vector).
func (idx *Index) DeleteIndex(ctx context.Context) error {
	return idx.client.DeleteCollection(ctx)
}

// SearchHit is one ranked result: an item id and its cosine similarity.
type SearchHit struct {
	ItemID int64
	Score  float64
}

// Search runs FAISS-equivalent top-k search. A dimension mismatch (the
// underlying client surfaces it as a 4xx from Qdrant) is treated as "no
// results" per §4.3 ("Dimension mismatch → return [] with a warning").
func (idx *Index) Search(ctx context.Context, vector []float32, k int) ([]SearchHit, error) {
	results, err := idx.client.Search(ctx, vector, k)
	if err != nil {
		return nil, nil //nolint:nilerr // spec: mismatch/missing index degrades to empty results, not an error
	}
	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		id, ok := asInt64(r.ID)
		if !ok {
			continue
		}
		hits = append(hits, SearchHit{ItemID: id, Score: r.Score})
	}
	return hits, nil
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
