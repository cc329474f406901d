// Package module wires C5 (offer reconciliation & manual edits) into the
// HTTP composition root, mirroring internal/search's module.go.
package module

import (
	apphttp "github.com/frank1beans/tender-reconciler/internal/http"
	"github.com/frank1beans/tender-reconciler/internal/reconcile"
	"github.com/frank1beans/tender-reconciler/internal/reconcile/handler"
	"github.com/frank1beans/tender-reconciler/internal/scheduler"
	"github.com/frank1beans/tender-reconciler/platform/validator"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(service *reconcile.Service, sync *scheduler.Client, val *validator.Validator) *Module {
	return &Module{handler: handler.New(service, sync, val)}
}

func (m *Module) Name() string { return "reconcile" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/computi")
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
