// Package catalogidx builds the in-memory lexical/semantic lookup maps C2
// describes over a commessa's PriceListItem catalog: code, signature,
// description, head/tail n-gram, and an embedding bucket keyed by WBS6 code.
// Grounded on internal/matching's normalization kit (C1) and
// original_source/backend/app/services/catalog/index.py.
package catalogidx

import (
	"sync"

	"github.com/frank1beans/tender-reconciler/internal/domain"
	"github.com/frank1beans/tender-reconciler/internal/matching"
)

// EmbeddingEntry pairs a catalog item with its L2-normalized vector for the
// semantic fallback bucket (§4.2 embedding_map).
type EmbeddingEntry struct {
	Item   *domain.PriceListItem
	Vector []float32
}

// Index holds the five lexical maps plus the embedding buckets for one
// commessa's catalog, built fresh on each catalog change (§4.2).
type Index struct {
	CommessaID int64
	ModelID    string

	CodeMap        map[string]*domain.PriceListItem
	SignatureMap   map[string]*domain.PriceListItem
	DescriptionMap map[string]*domain.PriceListItem
	HeadMap        map[string][]*domain.PriceListItem
	TailMap        map[string][]*domain.PriceListItem
	EmbeddingMap   map[string][]EmbeddingEntry

	mu sync.RWMutex
}

// DefaultEmbeddingBucket is the fallback bucket key used when an item has
// no WBS6 code (§4.2, matching.Thresholds.SemanticDefaultBucket).
const DefaultEmbeddingBucket = "__all__"

// Build indexes items into all five lexical maps and the embedding buckets.
// Only items whose embedding's ModelID matches modelID are placed in
// EmbeddingMap; items without a vector are still indexed lexically.
func Build(commessaID int64, items []domain.PriceListItem, modelID string, cfg matching.Thresholds) *Index {
	idx := &Index{
		CommessaID:     commessaID,
		ModelID:        modelID,
		CodeMap:        make(map[string]*domain.PriceListItem),
		SignatureMap:   make(map[string]*domain.PriceListItem),
		DescriptionMap: make(map[string]*domain.PriceListItem),
		HeadMap:        make(map[string][]*domain.PriceListItem),
		TailMap:        make(map[string][]*domain.PriceListItem),
		EmbeddingMap:   make(map[string][]EmbeddingEntry),
	}

	for i := range items {
		item := &items[i]

		if code := matching.NormalizeCodeToken(item.ItemCode); code != "" {
			if _, exists := idx.CodeMap[code]; !exists {
				idx.CodeMap[code] = item
			}
		}

		signature := matching.DescriptionSignature(item.ItemDescription, item.UnitLabel, item.Wbs6Code)
		if signature != "" {
			if _, exists := idx.SignatureMap[signature]; !exists {
				idx.SignatureMap[signature] = item
			}
		}

		if desc := matching.NormalizeDescriptionToken(item.ItemDescription); desc != "" {
			if _, exists := idx.DescriptionMap[desc]; !exists {
				idx.DescriptionMap[desc] = item
			}
		}

		head, tail := matching.BuildHeadTailSignatures(item.ItemDescription, cfg.HeadTailWordLimit)
		if head != "" {
			idx.HeadMap[head] = append(idx.HeadMap[head], item)
		}
		if tail != "" {
			idx.TailMap[tail] = append(idx.TailMap[tail], item)
		}

		if item.Embedding != nil && item.Embedding.ModelID == modelID && len(item.Embedding.Vector) > 0 {
			bucket := DefaultEmbeddingBucket
			if item.Wbs6Code != "" {
				bucket = matching.NormalizeCodeToken(item.Wbs6Code)
			}
			idx.EmbeddingMap[bucket] = append(idx.EmbeddingMap[bucket], EmbeddingEntry{Item: item, Vector: item.Embedding.Vector})
		}
	}

	return idx
}

// ResolveCode looks up an exact item_code match.
func (idx *Index) ResolveCode(code string) (*domain.PriceListItem, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	item, ok := idx.CodeMap[matching.NormalizeCodeToken(code)]
	return item, ok
}

// ResolveSignature looks up an exact description-signature match.
func (idx *Index) ResolveSignature(description, unit, wbs6Code string) (*domain.PriceListItem, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	item, ok := idx.SignatureMap[matching.DescriptionSignature(description, unit, wbs6Code)]
	return item, ok
}

// ResolveDescription looks up the normalized-description synonym map.
func (idx *Index) ResolveDescription(description string) (*domain.PriceListItem, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	item, ok := idx.DescriptionMap[matching.NormalizeDescriptionToken(description)]
	return item, ok
}

// ResolveHead looks up the head n-gram fallback. Returns the first
// candidate when the bucket holds more than one (an ambiguous head/tail
// match is weaker evidence than code/signature and is not expected to be
// unique).
func (idx *Index) ResolveHead(description string, limit int) (*domain.PriceListItem, bool) {
	head, _ := matching.BuildHeadTailSignatures(description, limit)
	if head == "" {
		return nil, false
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	candidates := idx.HeadMap[head]
	if len(candidates) == 0 {
		return nil, false
	}
	return candidates[0], true
}

// ResolveTail looks up the tail n-gram fallback.
func (idx *Index) ResolveTail(description string, limit int) (*domain.PriceListItem, bool) {
	_, tail := matching.BuildHeadTailSignatures(description, limit)
	if tail == "" {
		return nil, false
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	candidates := idx.TailMap[tail]
	if len(candidates) == 0 {
		return nil, false
	}
	return candidates[0], true
}

// EmbeddingCandidates returns the semantic fallback bucket for a WBS6 code,
// falling back to the __all__ bucket when wbs6Code is empty.
func (idx *Index) EmbeddingCandidates(wbs6Code string) []EmbeddingEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	bucket := DefaultEmbeddingBucket
	if wbs6Code != "" {
		bucket = matching.NormalizeCodeToken(wbs6Code)
	}
	if entries, ok := idx.EmbeddingMap[bucket]; ok {
		return entries
	}
	return idx.EmbeddingMap[DefaultEmbeddingBucket]
}

// Resolve runs the full cascade (code → signature → description → head →
// tail) and reports which stage matched, without touching the semantic
// fallback (callers needing §4.3 semantic search call EmbeddingCandidates
// and rank with internal/embedding).
func (idx *Index) Resolve(code, description, unit, wbs6Code string, headTailLimit int) (item *domain.PriceListItem, stage string, ok bool) {
	if item, ok := idx.ResolveCode(code); ok {
		return item, "code", true
	}
	if item, ok := idx.ResolveSignature(description, unit, wbs6Code); ok {
		return item, "signature", true
	}
	if item, ok := idx.ResolveDescription(description); ok {
		return item, "description", true
	}
	if item, ok := idx.ResolveHead(description, headTailLimit); ok {
		return item, "head", true
	}
	if item, ok := idx.ResolveTail(description, headTailLimit); ok {
		return item, "tail", true
	}
	return nil, "", false
}
