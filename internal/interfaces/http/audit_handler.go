package http

import (
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lot-ledger/internal/application/audit"
	"github.com/jhoicas/lot-ledger/internal/application/core"
	"github.com/jhoicas/lot-ledger/internal/application/dto"
)

// AuditHandler ejecuta la auditoría de consistencia bajo demanda.
type AuditHandler struct {
	svc        *core.Service
	scheduler  *audit.Scheduler
	autoRepair bool

	mu   sync.Mutex
	last *audit.Report
}

// NewAuditHandler construye el handler. scheduler puede ser nil.
func NewAuditHandler(svc *core.Service, scheduler *audit.Scheduler, autoRepair bool) *AuditHandler {
	return &AuditHandler{svc: svc, scheduler: scheduler, autoRepair: autoRepair}
}

// Run godoc
// @Summary      Ejecutar auditoría completa
// @Tags         audit
// @Produce      json
// @Param        auto_repair  query  bool  false  "Reparar lo reparable (por defecto según configuración)"
// @Success      200  {object}  audit.Report
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/audit/run [post]
func (h *AuditHandler) Run(c *fiber.Ctx) error {
	repair := c.QueryBool("auto_repair", h.autoRepair)
	rep, err := h.svc.Auditor().RunFullCheck(c.UserContext(), audit.Options{AutoRepair: repair})
	if err != nil {
		return writeError(c, err)
	}
	h.mu.Lock()
	h.last = rep
	h.mu.Unlock()
	return c.JSON(rep)
}

// FixCustomerNames godoc
// @Summary      Corregir nombres de cliente que no coinciden con el código
// @Tags         audit
// @Produce      json
// @Success      200  {object}  dto.FixCustomerNamesResponse
// @Router       /api/audit/fix-customer-names [post]
func (h *AuditHandler) FixCustomerNames(c *fiber.Ctx) error {
	n, err := h.svc.FixCustomerNameIssues(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FixCustomerNamesResponse{Fixed: n})
}

// Last godoc
// @Summary      Último informe de auditoría (manual o programada)
// @Tags         audit
// @Produce      json
// @Success      200  {object}  audit.Report
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/audit/last [get]
func (h *AuditHandler) Last(c *fiber.Ctx) error {
	h.mu.Lock()
	rep := h.last
	h.mu.Unlock()
	if h.scheduler != nil {
		if s := h.scheduler.LastReport(); s != nil && (rep == nil || s.FinishedAt.After(rep.FinishedAt)) {
			rep = s
		}
	}
	if rep == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "no hay auditorías ejecutadas"})
	}
	return c.JSON(rep)
}
