package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/jhoicas/lot-ledger/internal/application/audit"
	"github.com/jhoicas/lot-ledger/internal/application/core"
	"github.com/jhoicas/lot-ledger/internal/application/usecase"
	"github.com/jhoicas/lot-ledger/pkg/metrics"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Service         *core.Service
	WarehouseUC     *usecase.WarehouseUseCase
	Scheduler       *audit.Scheduler
	Metrics         *metrics.Metrics
	AuditAutoRepair bool
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	api := app.Group("/api")

	// Warehouses
	warehouses := api.Group("/warehouses")
	warehouseHandler := NewWarehouseHandler(deps.WarehouseUC)
	warehouses.Post("/", warehouseHandler.Create)
	warehouses.Get("/", warehouseHandler.List)
	warehouses.Get("/:id", warehouseHandler.GetByID)

	ledger := NewLedgerHandler(deps.Service)

	// Códigos de identificación
	codes := api.Group("/codes")
	codes.Post("/", ledger.GenerateCode)
	codes.Get("/parse", ledger.ParseCode)

	// Movimientos
	movements := api.Group("/movements")
	movements.Post("/", ledger.ApplyMovement)
	movements.Post("/batch", ledger.ApplyBatch)
	movements.Get("/", ledger.ListMovements)
	movements.Put("/:id", ledger.CorrectMovement)
	movements.Delete("/:id", ledger.ReverseMovement)

	// Saldos
	balances := api.Group("/balances")
	balances.Get("/", ledger.GetBalances)
	balances.Get("/theoretical", ledger.TheoreticalBalance)

	// Tránsitos entre bodegas
	transits := api.Group("/transits")
	transits.Post("/", ledger.DepartTransit)
	transits.Get("/:id", ledger.GetTransit)
	transits.Post("/:id/arrival", ledger.ArriveTransit)
	transits.Post("/:id/complete", ledger.CompleteTransit)

	api.Put("/lots/identity", ledger.ChangeLotIdentity)

	// Auditoría de consistencia
	auditGroup := api.Group("/audit")
	auditHandler := NewAuditHandler(deps.Service, deps.Scheduler, deps.AuditAutoRepair)
	auditGroup.Post("/run", auditHandler.Run)
	auditGroup.Post("/fix-customer-names", auditHandler.FixCustomerNames)
	auditGroup.Get("/last", auditHandler.Last)
}
