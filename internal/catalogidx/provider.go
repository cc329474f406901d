package catalogidx

import (
	"context"

	"github.com/frank1beans/tender-reconciler/internal/domain"
	"github.com/frank1beans/tender-reconciler/internal/matching"
)

// ItemLister resolves all catalog items for a commessa, the data Build
// indexes into the lexical lookup maps.
type ItemLister interface {
	ItemsForCommessa(ctx context.Context, commessaID int64) ([]domain.PriceListItem, error)
}

// Provider rebuilds a commessa's Index on demand, satisfying
// reconcile.CatalogProvider. Reconciliation runs once per uploaded return,
// so there is no cache to keep coherent here — every call reflects the
// catalog's current state (§4.2 "built fresh on each catalog change").
type Provider struct {
	items ItemLister
	cfg   matching.Thresholds
}

func NewProvider(items ItemLister, cfg matching.Thresholds) *Provider {
	return &Provider{items: items, cfg: cfg}
}

// IndexFor loads the commessa's catalog and builds its lexical maps. The
// embedding model id is left blank: reconcile's resolve cascade only uses
// code/signature/description/head/tail, never EmbeddingMap.
func (p *Provider) IndexFor(ctx context.Context, commessaID int64) (*Index, error) {
	items, err := p.items.ItemsForCommessa(ctx, commessaID)
	if err != nil {
		return nil, err
	}
	return Build(commessaID, items, "", p.cfg), nil
}
