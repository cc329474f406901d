// Package module wires C6/C7/C8 (analysis cache, WBS aggregation, trends &
// heatmap) into the HTTP composition root, mirroring internal/search's
// module.go.
package module

import (
	"github.com/frank1beans/tender-reconciler/internal/analysis"
	"github.com/frank1beans/tender-reconciler/internal/analysis/handler"
	apphttp "github.com/frank1beans/tender-reconciler/internal/http"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(dataset *analysis.Dataset, cache *analysis.Cache, thresholds analysis.Thresholds) *Module {
	return &Module{handler: handler.New(dataset, cache, thresholds)}
}

func (m *Module) Name() string { return "analysis" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/commesse")
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
