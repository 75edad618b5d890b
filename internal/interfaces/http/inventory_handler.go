package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lot-ledger/internal/application/core"
	"github.com/jhoicas/lot-ledger/internal/application/dto"
	"github.com/jhoicas/lot-ledger/internal/application/inventory"
)

// LedgerHandler códigos, movimientos, saldos, tránsitos e identidad de lotes.
type LedgerHandler struct {
	svc *core.Service
}

// NewLedgerHandler construye el handler.
func NewLedgerHandler(svc *core.Service) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// GenerateCode godoc
// @Summary      Emitir código de identificación
// @Tags         codes
// @Accept       json
// @Produce      json
// @Param        body  body  dto.GenerateCodeRequest  true  "Bodega, cliente, placa, tipo y fecha de operación"
// @Success      201   {object}  dto.CodeResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/codes [post]
func (h *LedgerHandler) GenerateCode(c *fiber.Ctx) error {
	var in dto.GenerateCodeRequest
	if ok, err := bind(c, &in); !ok {
		return err
	}
	input, err := in.ToInput()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	code, err := h.svc.GenerateCode(c.UserContext(), input.WarehouseID, input.CustomerName, input.Plate, input.OpType, input.OpDate)
	if err != nil {
		return writeError(c, err)
	}
	parsed, err := h.svc.ParseCode(code)
	if err != nil {
		// El código ya quedó emitido; se devuelve sin descomponer.
		return c.Status(fiber.StatusCreated).JSON(dto.CodeResponse{Code: code})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewCodeResponse(parsed))
}

// ParseCode godoc
// @Summary      Descomponer un código
// @Tags         codes
// @Produce      json
// @Param        code  query  string  true  "Código completo"
// @Success      200   {object}  dto.CodeResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/codes/parse [get]
func (h *LedgerHandler) ParseCode(c *fiber.Ctx) error {
	parsed, err := h.svc.ParseCode(c.Query("code"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewCodeResponse(parsed))
}

// ApplyMovement godoc
// @Summary      Registrar movimiento
// @Tags         movements
// @Accept       json
// @Produce      json
// @Param        body  body  dto.MovementRequest  true  "INBOUND, OUTBOUND (externa o hacia tránsito) o RECEIVE"
// @Success      201   {object}  inventory.MovementResult
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/movements [post]
func (h *LedgerHandler) ApplyMovement(c *fiber.Ctx) error {
	var in dto.MovementRequest
	if ok, err := bind(c, &in); !ok {
		return err
	}
	res, err := h.svc.Ledger().ApplyMovement(c.UserContext(), in.ToInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// ApplyBatch godoc
// @Summary      Registrar varios movimientos en una transacción
// @Tags         movements
// @Accept       json
// @Produce      json
// @Param        body  body  dto.BatchRequest  true  "Movimientos; partial=true aplica los válidos"
// @Success      200   {object}  inventory.BatchResult
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/movements/batch [post]
func (h *LedgerHandler) ApplyBatch(c *fiber.Ctx) error {
	var in dto.BatchRequest
	if ok, err := bind(c, &in); !ok {
		return err
	}
	inputs := make([]inventory.MovementInput, 0, len(in.Items))
	for _, item := range in.Items {
		inputs = append(inputs, item.ToInput())
	}
	res, err := h.svc.Ledger().ApplyBatch(c.UserContext(), inputs, in.Partial)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// ListMovements godoc
// @Summary      Movimientos vigentes de un código
// @Tags         movements
// @Produce      json
// @Param        code    query  string  true   "Código"
// @Param        limit   query  int     false  "Límite"   default(20)
// @Param        offset  query  int     false  "Offset"   default(0)
// @Success      200     {object}  dto.MovementListResponse
// @Router       /api/movements [get]
func (h *LedgerHandler) ListMovements(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "code es requerido"})
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	if err := validate.Struct(page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	list, err := h.svc.Ledger().ListMovements(c.UserContext(), code)
	if err != nil {
		return writeError(c, err)
	}
	total := len(list)
	start := min(page.Offset, total)
	end := min(start+page.Limit, total)
	return c.JSON(dto.MovementListResponse{
		Items: list[start:end],
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	})
}

// CorrectMovement godoc
// @Summary      Corregir cantidades de un movimiento
// @Tags         movements
// @Accept       json
// @Produce      json
// @Param        id    path  string                      true  "ID del movimiento"
// @Param        body  body  dto.CorrectMovementRequest  true  "Cantidades nuevas"
// @Success      200   {object}  inventory.MovementResult
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/movements/{id} [put]
func (h *LedgerHandler) CorrectMovement(c *fiber.Ctx) error {
	var in dto.CorrectMovementRequest
	if ok, err := bind(c, &in); !ok {
		return err
	}
	res, err := h.svc.Ledger().CorrectMovement(c.UserContext(), c.Params("id"), in.Quantity.ToEntity(), in.CorrectedBy)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// ReverseMovement godoc
// @Summary      Reversar un movimiento
// @Tags         movements
// @Produce      json
// @Param        id   path   string  true   "ID del movimiento"
// @Param        by   query  string  false  "Usuario"
// @Success      200  {object}  inventory.MovementResult
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/movements/{id} [delete]
func (h *LedgerHandler) ReverseMovement(c *fiber.Ctx) error {
	res, err := h.svc.Ledger().ReverseMovement(c.UserContext(), c.Params("id"), c.Query("by"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// GetBalances godoc
// @Summary      Saldo de un código (una bodega o todas)
// @Tags         balances
// @Produce      json
// @Param        code          query  string  true   "Código"
// @Param        warehouse_id  query  string  false  "Bodega; vacío lista todas"
// @Success      200  {object}  entity.BalanceSnapshot
// @Router       /api/balances [get]
func (h *LedgerHandler) GetBalances(c *fiber.Ctx) error {
	code, wh := c.Query("code"), c.Query("warehouse_id")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "code es requerido"})
	}
	if wh != "" {
		b, err := h.svc.GetBalance(c.UserContext(), code, wh)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(b)
	}
	list, err := h.svc.Ledger().ListBalances(c.UserContext(), code)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// TheoreticalBalance godoc
// @Summary      Saldo teórico recalculado desde el historial
// @Tags         balances
// @Produce      json
// @Param        code  query  string  true  "Código"
// @Success      200   {object}  dto.TheoreticalBalanceResponse
// @Router       /api/balances/theoretical [get]
func (h *LedgerHandler) TheoreticalBalance(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "code es requerido"})
	}
	theo, err := h.svc.TheoreticalBalance(c.UserContext(), code)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.TheoreticalBalanceResponse{Code: code, Warehouses: theo})
}

// DepartTransit godoc
// @Summary      Despachar hacia otra bodega
// @Tags         transits
// @Accept       json
// @Produce      json
// @Param        body  body  dto.DepartTransitRequest  true  "Origen, destino y cantidades"
// @Success      201   {object}  inventory.MovementResult
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/transits [post]
func (h *LedgerHandler) DepartTransit(c *fiber.Ctx) error {
	var in dto.DepartTransitRequest
	if ok, err := bind(c, &in); !ok {
		return err
	}
	res, err := h.svc.Ledger().DepartTransit(c.UserContext(), in.ToInput())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// GetTransit godoc
// @Summary      Obtener tránsito
// @Tags         transits
// @Produce      json
// @Param        id   path  string  true  "ID del tránsito"
// @Success      200  {object}  entity.Transit
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/transits/{id} [get]
func (h *LedgerHandler) GetTransit(c *fiber.Ctx) error {
	t, err := h.svc.Ledger().GetTransit(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(t)
}

// ArriveTransit godoc
// @Summary      Registrar llegada del tránsito a destino
// @Tags         transits
// @Accept       json
// @Produce      json
// @Param        id    path  string                    true   "ID del tránsito"
// @Param        body  body  dto.ArriveTransitRequest  false  "Usuario"
// @Success      200   {object}  inventory.MovementResult
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/transits/{id}/arrival [post]
func (h *LedgerHandler) ArriveTransit(c *fiber.Ctx) error {
	var in dto.ArriveTransitRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	res, err := h.svc.Ledger().ArriveTransit(c.UserContext(), c.Params("id"), in.CreatedBy)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// CompleteTransit godoc
// @Summary      Cerrar un tránsito recibido
// @Tags         transits
// @Produce      json
// @Param        id   path  string  true  "ID del tránsito"
// @Success      200  {object}  entity.Transit
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/transits/{id}/complete [post]
func (h *LedgerHandler) CompleteTransit(c *fiber.Ctx) error {
	t, err := h.svc.Ledger().CompleteTransit(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(t)
}

// ChangeLotIdentity godoc
// @Summary      Cambiar cliente, placa o fecha de un lote sin salidas
// @Tags         lots
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ChangeLotIdentityRequest  true  "Código actual e identidad nueva"
// @Success      200   {object}  dto.CodeResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/lots/identity [put]
func (h *LedgerHandler) ChangeLotIdentity(c *fiber.Ctx) error {
	var in dto.ChangeLotIdentityRequest
	if ok, err := bind(c, &in); !ok {
		return err
	}
	input, err := in.ToInput()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	ic, err := h.svc.Ledger().ChangeLotIdentity(c.UserContext(), in.Code, input)
	if err != nil {
		return writeError(c, err)
	}
	parsed, err := h.svc.ParseCode(ic.String())
	if err != nil {
		return c.JSON(dto.CodeResponse{Code: ic.String()})
	}
	return c.JSON(dto.NewCodeResponse(parsed))
}
