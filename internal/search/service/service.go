// Package service implements C9: hybrid catalog search over FAISS-format
// semantic similarity, lexical token boosts, and attribute boosts, with a
// lexical-only fallback. Grounded on catalog_search_service.py.
package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/frank1beans/tender-reconciler/internal/domain"
	"github.com/frank1beans/tender-reconciler/internal/embedding"
	"github.com/frank1beans/tender-reconciler/internal/matching"
	"github.com/frank1beans/tender-reconciler/internal/search/repository"
	"github.com/frank1beans/tender-reconciler/internal/search/transport"
	"github.com/frank1beans/tender-reconciler/platform/apperr"
)

const (
	defaultTopK  = 10
	minScore     = 0.2
	candidateMul = 2 // FAISS top-2k (§4.9 step 5)
)

// IndexProvider resolves the per-commessa FAISS-equivalent index, building
// it lazily when absent (§4.9 step 4).
type IndexProvider interface {
	IndexFor(ctx context.Context, commessaID int64) (*embedding.Index, error)
}

type Service struct {
	repo      *repository.Repository
	embedder  *embedding.Service
	indexes   IndexProvider
}

func New(repo *repository.Repository, embedder *embedding.Service, indexes IndexProvider) *Service {
	return &Service{repo: repo, embedder: embedder, indexes: indexes}
}

// Search implements search_catalog end to end (§4.9).
func (s *Service) Search(ctx context.Context, req transport.SearchRequest) (*transport.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return &transport.SearchResponse{Items: []transport.SearchResultItem{}, Total: 0}, nil
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	// Step 1: lexical tokens (≥4 chars after stripping non-alphanumerics).
	tokens := lexicalTokens(query)

	// Step 2: query attributes for the attribute boost.
	queryAttrs := embedding.ExtractAttributes(query)

	// Step 3: embed the query.
	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		appErr := apperr.Internal("embedding unavailable").WithOp("search.Search").WithDetails(err.Error())
		appErr.Err = err
		return nil, appErr
	}

	// Step 4: lazily resolve (build if absent) the commessa's FAISS index.
	idx, err := s.indexes.IndexFor(ctx, req.CommessaID)
	if err != nil {
		appErr := apperr.Internal("catalog index unavailable").WithOp("search.Search").WithDetails(err.Error())
		appErr.Err = err
		return nil, appErr
	}

	// Step 5: FAISS top-2k.
	hits, err := idx.Search(ctx, queryVector.Values, topK*candidateMul)
	if err != nil {
		return nil, err
	}

	candidateIDs := make([]int64, 0, len(hits))
	for _, h := range hits {
		candidateIDs = append(candidateIDs, h.ItemID)
	}
	items, err := s.repo.ItemsByID(ctx, candidateIDs)
	if err != nil {
		return nil, err
	}

	// Step 6: score = faiss_cosine + lexical_boost + attribute_boost.
	scored := make([]scoredItem, 0, len(hits))
	for _, h := range hits {
		item, ok := items[h.ItemID]
		if !ok {
			continue
		}
		score := h.Score + lexicalBoost(tokens, item) + attributeBoost(queryAttrs, embedding.ExtractAttributes(item.ItemDescription))
		scored = append(scored, scoredItem{item: item, score: score, reason: "semantic"})
	}

	// Step 7: drop below min_score, sort desc, cap at top_k.
	filtered := scored[:0]
	for _, sc := range scored {
		if sc.score >= minScore {
			filtered = append(filtered, sc)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].score > filtered[j].score })
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}

	// Step 8: lexical fallback when nothing clears the bar.
	if len(filtered) == 0 && len(tokens) > 0 {
		fallbackItems, err := s.repo.LexicalFallback(ctx, req.CommessaID, tokens, candidateIDs, topK)
		if err != nil {
			return nil, err
		}
		for _, item := range fallbackItems {
			filtered = append(filtered, scoredItem{item: item, score: 0, reason: "lexical"})
		}
	}

	// Step 9: enrich with project quantity/price and offer list.
	result := make([]transport.SearchResultItem, 0, len(filtered))
	for _, sc := range filtered {
		enriched, err := s.enrich(ctx, sc)
		if err != nil {
			return nil, err
		}
		result = append(result, enriched)
	}

	return &transport.SearchResponse{Items: result, Total: len(result)}, nil
}

type scoredItem struct {
	item   domain.PriceListItem
	score  float64
	reason string
}

func (s *Service) enrich(ctx context.Context, sc scoredItem) (transport.SearchResultItem, error) {
	quantity, err := s.repo.ProjectQuantity(ctx, sc.item.ID)
	if err != nil {
		return transport.SearchResultItem{}, err
	}
	unitPrice, err := s.repo.ProjectUnitPrice(ctx, sc.item.ID)
	if err != nil {
		return transport.SearchResultItem{}, err
	}
	offers, err := s.repo.OffersForItem(ctx, sc.item.ID)
	if err != nil {
		return transport.SearchResultItem{}, err
	}

	var projectPrice *float64
	if unitPrice != nil {
		v, _ := unitPrice.Float64()
		projectPrice = &v
	}

	offerPrices := make(map[string]transport.OfferPrice, len(offers))
	for _, o := range offers {
		label := o.Label
		if o.Round != nil {
			label = fmt.Sprintf("%s (Round %d)", o.Label, *o.Round)
		}
		price, _ := o.Price.Float64()
		qty := 0.0
		if o.Quantity != nil {
			qty, _ = o.Quantity.Float64()
		}
		offerPrices[label] = transport.OfferPrice{
			Price:     price,
			Quantity:  qty,
			Round:     o.Round,
			ComputoID: o.ComputoID,
		}
	}

	qtyFloat, _ := quantity.Float64()

	return transport.SearchResultItem{
		PriceListItemID: sc.item.ID,
		ItemCode:        sc.item.ItemCode,
		Description:     sc.item.ItemDescription,
		Wbs6Code:        sc.item.Wbs6Code,
		Wbs6Description: sc.item.Wbs6Description,
		Score:           round2(sc.score),
		MatchReason:     sc.reason,
		ProjectPrice:    projectPrice,
		ProjectQuantity: round2(qtyFloat),
		OfferPrices:     offerPrices,
	}, nil
}

// lexicalTokens implements §4.9 step 1: tokens ≥4 chars after stripping
// non-alphanumerics, lowercased.
func lexicalTokens(query string) []string {
	words := matching.TokenizeWords(query)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) >= 4 {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// lexicalBoost implements §4.9 step 6's lexical_boost: description/code
// hits capped at 0.08, wbs6/7 hits capped at 0.05, total capped at 0.12.
func lexicalBoost(tokens []string, item domain.PriceListItem) float64 {
	if len(tokens) == 0 {
		return 0
	}
	descCode := strings.ToLower(item.ItemCode + " " + item.ItemDescription)
	wbs := strings.ToLower(item.Wbs6Description + " " + item.Wbs7Description)

	hitsDesc, hitsWbs := 0, 0
	for _, t := range tokens {
		if strings.Contains(descCode, t) {
			hitsDesc++
		}
		if strings.Contains(wbs, t) {
			hitsWbs++
		}
	}

	boost := math.Min(0.08, 0.02*float64(hitsDesc)) + math.Min(0.05, 0.02*float64(hitsWbs))
	return math.Min(0.12, boost)
}

// attributeBoost implements §4.9 step 6's attribute_boost.
func attributeBoost(query, item embedding.Attributes) float64 {
	var boost float64

	if query.NumLastre != nil && item.NumLastre != nil {
		if *query.NumLastre == *item.NumLastre {
			boost += 0.15
		} else {
			boost -= 0.10
		}
	}
	if query.TipoRivestimento != "" && query.TipoRivestimento == item.TipoRivestimento {
		boost += 0.10
	}
	if query.TipoLastra != "" && query.TipoLastra == item.TipoLastra {
		boost += 0.10
	}
	if query.SpessoreMM != nil && item.SpessoreMM != nil {
		diff := *query.SpessoreMM - *item.SpessoreMM
		if diff < 0 {
			diff = -diff
		}
		switch {
		case diff == 0:
			boost += 0.10
		case diff <= 5:
			boost += 0.05
		}
	}
	if query.Isolamento != "" && query.Isolamento == item.Isolamento {
		boost += 0.08
	}

	return boost
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
