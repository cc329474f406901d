package service

import (
	"context"

	"github.com/frank1beans/tender-reconciler/internal/embedding"
	"github.com/frank1beans/tender-reconciler/internal/search/repository"
	"github.com/frank1beans/tender-reconciler/platform/qdrant"
)

// LazyIndexProvider implements IndexProvider: build the commessa's
// FAISS-equivalent index on first use from whatever catalog items carry an
// embedding under the currently configured model (§4.9 step 4), and reuse
// it afterwards.
type LazyIndexProvider struct {
	base     *qdrant.Client
	repo     *repository.Repository
	embedder *embedding.Service
}

func NewLazyIndexProvider(base *qdrant.Client, repo *repository.Repository, embedder *embedding.Service) *LazyIndexProvider {
	return &LazyIndexProvider{base: base, repo: repo, embedder: embedder}
}

func (p *LazyIndexProvider) IndexFor(ctx context.Context, commessaID int64) (*embedding.Index, error) {
	idx := embedding.NewIndex(p.base, commessaID)

	exists, err := idx.IndexExists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return idx, nil
	}

	modelID := p.embedder.ModelID()
	items, err := p.repo.ItemsWithCurrentEmbedding(ctx, commessaID, modelID, p.embedder.Dimension())
	if err != nil {
		return nil, err
	}

	entries := make([]embedding.IndexEntry, 0, len(items))
	for _, e := range items {
		entries = append(entries, embedding.IndexEntry{ItemID: e.Item.ID, Vector: e.Vector})
	}
	if err := idx.BuildIndex(ctx, entries); err != nil {
		return nil, err
	}

	return idx, nil
}
