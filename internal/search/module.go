// Package search wires C9 (catalog search): hybrid FAISS + lexical +
// attribute-boost scoring over a commessa's price list, grounded on
// catalog_search_service.py.
package search

import (
	"github.com/frank1beans/tender-reconciler/internal/embedding"
	apphttp "github.com/frank1beans/tender-reconciler/internal/http"
	"github.com/frank1beans/tender-reconciler/internal/search/handler"
	"github.com/frank1beans/tender-reconciler/internal/search/repository"
	"github.com/frank1beans/tender-reconciler/internal/search/service"
	"github.com/frank1beans/tender-reconciler/platform/qdrant"
	"github.com/frank1beans/tender-reconciler/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, vectorClient *qdrant.Client, embedder *embedding.Service, val *validator.Validator) *Module {
	repo := repository.New(pool)
	indexes := service.NewLazyIndexProvider(vectorClient, repo, embedder)
	svc := service.New(repo, embedder, indexes)
	h := handler.New(svc, val)

	return &Module{handler: h}
}

func (m *Module) Name() string {
	return "search"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/catalog/search")
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
