package reconcile

import (
	"context"
	"errors"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/frank1beans/tender-reconciler/internal/catalogidx"
	"github.com/frank1beans/tender-reconciler/internal/domain"
	"github.com/frank1beans/tender-reconciler/internal/matching"
	"github.com/frank1beans/tender-reconciler/internal/money"
	"github.com/frank1beans/tender-reconciler/platform/apperr"
	"github.com/frank1beans/tender-reconciler/platform/logger"
	"github.com/frank1beans/tender-reconciler/platform/sanitize"
)

// ErrNotAReturn is returned by ManualPriceUpdate when the target computo is
// the project estimate, not a bidder return (§4.5 manual_price_update guard).
var ErrNotAReturn = errors.New("reconcile: computo is not a return")

// CatalogProvider resolves a commessa's current lexical/semantic index,
// owned by internal/catalogidx and rebuilt whenever the catalog changes.
type CatalogProvider interface {
	IndexFor(ctx context.Context, commessaID int64) (*catalogidx.Index, error)
}

// ParsedReturnLine is one row from a parsed bidder return file, the input
// sync_price_list_offers reconciles against the catalog (§4.5 step 1).
type ParsedReturnLine struct {
	Progressivo *int
	Code        string
	Description string
	UOM         string
	Wbs6Code    string
	UnitPrice   *decimal.Decimal
	Quantity    *decimal.Decimal
	ImpresaID   *int64
	Impresa     string
	RoundNumber *int
}

// ProjectLineProductMap resolves progressivo → PriceListItem for the
// fallback cascade step when lexical/semantic resolution fails but the
// project line already carries a known product id (§4.5 step 1 final clause).
type ProjectLineProductMap map[int]int64

// SyncResult summarizes a sync_price_list_offers run.
type SyncResult struct {
	MatchedItems  int
	UnmatchedRows int
	Conflicts     []Conflict
}

// Conflict records two distinct non-close prices targeting the same catalog
// item within one sync pass (§4.5 step 3).
type Conflict struct {
	PriceListItemID int64
	FirstPrice      decimal.Decimal
	SecondPrice     decimal.Decimal
}

// priceTolerance is the "close" threshold used for conflict detection,
// matching the progressive price registry's own tolerance (§4.4.1 step 3).
var priceTolerance = decimal.NewFromFloat(0.01)

// Service implements C5 over a Repository and the commessa's catalog index.
type Service struct {
	repo    *Repository
	catalog CatalogProvider
	log     *logger.Logger
}

func NewService(repo *Repository, catalog CatalogProvider, log *logger.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, log: log}
}

// SyncPriceListOffers implements §4.5's sync_price_list_offers: delete the
// computo's existing offers, then resolve and upsert each priced return
// line against the catalog index's lexical cascade (code, signature,
// description, head, tail), falling back to a project-line product map when
// that cascade finds no item. No semantic (embedding) stage is run here.
func (s *Service) SyncPriceListOffers(ctx context.Context, computo domain.Computo, lines []ParsedReturnLine, fallback ProjectLineProductMap, cfg matching.Thresholds) (SyncResult, error) {
	if computo.Type != domain.ComputoTypeReturn {
		return SyncResult{}, apperr.New(apperr.KindValidation, "sync_price_list_offers requires a return computo")
	}

	if err := s.repo.DeleteOffersForComputo(ctx, computo.ID); err != nil {
		return SyncResult{}, apperr.Wrap(apperr.KindInternal, "delete existing offers", err)
	}

	idx, err := s.catalog.IndexFor(ctx, computo.CommessaID)
	if err != nil {
		return SyncResult{}, apperr.Wrap(apperr.KindInternal, "load catalog index", err)
	}

	seenPrices := make(map[int64]decimal.Decimal)
	var result SyncResult

	for _, line := range lines {
		if line.UnitPrice == nil {
			continue
		}

		itemID, matched := s.resolve(idx, line, fallback)
		if !matched {
			result.UnmatchedRows++
			continue
		}

		if prior, ok := seenPrices[itemID]; ok && !money.Close(prior, *line.UnitPrice, priceTolerance) {
			result.Conflicts = append(result.Conflicts, Conflict{PriceListItemID: itemID, FirstPrice: prior, SecondPrice: *line.UnitPrice})
		}
		seenPrices[itemID] = *line.UnitPrice

		offer := domain.PriceListOffer{
			PriceListItemID: itemID,
			CommessaID:      computo.CommessaID,
			ComputoID:       computo.ID,
			ImpresaID:       line.ImpresaID,
			ImpresaLabel:    line.Impresa,
			RoundNumber:     line.RoundNumber,
			UnitPrice:       money.CeilUnitPrice(*line.UnitPrice),
			Quantity:        line.Quantity,
		}
		if _, err := s.repo.UpsertOffer(ctx, offer); err != nil {
			return SyncResult{}, apperr.Wrap(apperr.KindInternal, "upsert offer", err)
		}
		result.MatchedItems++
	}

	return result, nil
}

func (s *Service) resolve(idx *catalogidx.Index, line ParsedReturnLine, fallback ProjectLineProductMap) (int64, bool) {
	cfg := matching.DefaultThresholds()
	if item, _, ok := idx.Resolve(line.Code, line.Description, line.UOM, line.Wbs6Code, cfg.HeadTailWordLimit); ok {
		return item.ID, true
	}
	if fallback != nil && line.Progressivo != nil {
		if itemID, ok := fallback[*line.Progressivo]; ok {
			return itemID, true
		}
	}
	return 0, false
}

// GetComputo loads a computo by id, exposed for handlers that need to
// inspect it before calling RebuildComputoFromOffers.
func (s *Service) GetComputo(ctx context.Context, computoID int64) (domain.Computo, error) {
	return s.repo.GetComputo(ctx, computoID)
}

// SetComputoNote sanitizes and persists a reviewer-authored annotation on a
// computo. Free text never reaches storage unescaped.
func (s *Service) SetComputoNote(ctx context.Context, computoID int64, note string) error {
	clean := sanitize.Text(note)
	if err := s.repo.UpdateComputoNote(ctx, computoID, clean); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return apperr.Wrap(apperr.KindInternal, "update computo note", err)
	}
	return nil
}

// ManualPriceUpdate implements §4.5's manual_price_update: upsert the
// single offer row then rebuild the return's VoceComputo snapshot from
// every offer currently on record.
func (s *Service) ManualPriceUpdate(ctx context.Context, computoID, priceListItemID int64, unitPrice decimal.Decimal, quantity *decimal.Decimal) (*domain.MatchingReport, error) {
	computo, err := s.repo.GetComputo(ctx, computoID)
	if err != nil {
		return nil, err
	}
	if computo.Type != domain.ComputoTypeReturn {
		return nil, ErrNotAReturn
	}

	item, err := s.repo.GetPriceListItem(ctx, priceListItemID)
	if err != nil {
		return nil, err
	}
	if item.CommessaID != computo.CommessaID {
		return nil, apperr.New(apperr.KindValidation, "price list item does not belong to this commessa")
	}

	offer := domain.PriceListOffer{
		PriceListItemID: priceListItemID,
		CommessaID:      computo.CommessaID,
		ComputoID:       computoID,
		UnitPrice:       money.CeilUnitPrice(unitPrice),
		Quantity:        quantity,
	}
	if existing, err := s.repo.GetOffer(ctx, computoID, priceListItemID); err == nil {
		offer.ImpresaID = existing.ImpresaID
		offer.ImpresaLabel = existing.ImpresaLabel
		offer.RoundNumber = existing.RoundNumber
		if offer.Quantity == nil {
			offer.Quantity = existing.Quantity
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindInternal, "load existing offer", err)
	}

	if _, err := s.repo.UpsertOffer(ctx, offer); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "upsert manual offer", err)
	}

	report, err := s.RebuildComputoFromOffers(ctx, computo)
	if err != nil {
		return nil, err
	}

	if report != nil {
		report.RemoveMissingPriceItem(priceListItemID)
	}
	return report, nil
}

// RebuildComputoFromOffers implements §4.5's rebuild_computo_from_offers:
// reload project lines, reload all offers for this computo, rebuild the
// VoceComputo snapshot from {item_id → price} via
// build_project_snapshot_from_price_offers, bulk re-insert it, and return
// the computo's refreshed matching report.
func (s *Service) RebuildComputoFromOffers(ctx context.Context, computo domain.Computo) (*domain.MatchingReport, error) {
	projectLines, err := s.repo.ProjectLines(ctx, computo.CommessaID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load project lines", err)
	}

	offers, err := s.repo.OffersByComputo(ctx, computo.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load offers", err)
	}

	rebuilt := buildProjectSnapshotFromPriceOffers(computo.ID, computo.CommessaID, projectLines, offers)

	if err := s.repo.ReplaceVoceComputo(ctx, computo.ID, rebuilt); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "replace voce_computo", err)
	}

	return computo.MatchingReport, nil
}

// buildProjectSnapshotFromPriceOffers rebuilds a return computo's line
// items from the project's line shape plus the catalog's current offer
// prices, recomputing amount with Decimal via money.LineAmount, which
// rounds HALF_UP to the cent.
func buildProjectSnapshotFromPriceOffers(computoID, commessaID int64, projectLines []domain.VoceComputo, offers map[int64]domain.PriceListOffer) []domain.VoceComputo {
	rebuilt := make([]domain.VoceComputo, 0, len(projectLines))
	for i, project := range projectLines {
		if project.Metadata.ProductID == "" {
			continue
		}
		// ProductID on VoceComputoMetadata is read here as the resolved
		// catalog item id in decimal string form.
		itemID, err := strconv.ParseInt(project.Metadata.ProductID, 10, 64)
		if err != nil {
			continue
		}
		offer, ok := offers[itemID]
		if !ok {
			continue
		}

		quantity := project.Quantity
		if offer.Quantity != nil {
			quantity = offer.Quantity
		}
		qty, amount := money.LineAmount(quantity, &offer.UnitPrice)

		line := project
		line.ID = 0
		line.ComputoID = computoID
		line.CommessaID = commessaID
		line.OrderIndex = i
		line.Quantity = qty
		line.UnitPrice = &offer.UnitPrice
		line.Amount = amount
		rebuilt = append(rebuilt, line)
	}
	return rebuilt
}
