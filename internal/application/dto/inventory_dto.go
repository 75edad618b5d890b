package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
)

// DateLayout formato de fechas de operación en el cuerpo de las peticiones.
const DateLayout = "2006-01-02"

// GenerateCodeRequest body para POST /api/codes.
type GenerateCodeRequest struct {
	WarehouseID  string `json:"warehouse_id" validate:"required"`
	CustomerName string `json:"customer_name" validate:"required"`
	Plate        string `json:"plate"`
	OpType       string `json:"op_type" validate:"required,oneof=inbound self_inbound"`
	OpDate       string `json:"op_date" validate:"required,datetime=2006-01-02"`
}

// ToInput convierte a la entrada del generador.
func (r GenerateCodeRequest) ToInput() (inventory.GenerateCodeInput, error) {
	date, err := time.Parse(DateLayout, r.OpDate)
	if err != nil {
		return inventory.GenerateCodeInput{}, fmt.Errorf("op_date: %w", err)
	}
	return inventory.GenerateCodeInput{
		WarehouseID:  r.WarehouseID,
		CustomerName: r.CustomerName,
		Plate:        r.Plate,
		OpType:       r.OpType,
		OpDate:       date,
	}, nil
}

// CodeResponse código emitido o descompuesto.
type CodeResponse struct {
	Code        string `json:"code"`
	Prefix      string `json:"prefix"`
	WarehouseID string `json:"warehouse_id,omitempty"`
	Customer    string `json:"customer"`
	Plate       string `json:"plate"`
	Date        string `json:"date"`
	Sequence    int    `json:"sequence"`
}

// NewCodeResponse arma la respuesta desde un código descompuesto.
func NewCodeResponse(p inventory.ParsedCode) CodeResponse {
	return CodeResponse{
		Code:        p.String(),
		Prefix:      p.Prefix,
		WarehouseID: p.WarehouseID,
		Customer:    p.Customer,
		Plate:       p.Plate,
		Date:        p.Date.Format(DateLayout),
		Sequence:    p.Sequence,
	}
}

// QuantityDTO cantidades de un movimiento. Peso y volumen aceptan número o texto decimal.
type QuantityDTO struct {
	Pallets  int64           `json:"pallets" validate:"min=0"`
	Packages int64           `json:"packages" validate:"min=0"`
	Weight   decimal.Decimal `json:"weight"`
	Volume   decimal.Decimal `json:"volume"`
}

// ToEntity convierte a la cantidad del dominio.
func (q QuantityDTO) ToEntity() entity.Quantity {
	return entity.Quantity{Pallets: q.Pallets, Packages: q.Packages, Weight: q.Weight, Volume: q.Volume}
}

// LotDetailsDTO campos descriptivos opcionales del lote.
type LotDetailsDTO struct {
	CustomerName string `json:"customer_name"`
	Customs      string `json:"customs"`
	ExportMode   string `json:"export_mode"`
	ServiceStaff string `json:"service_staff"`
}

// ToEntity convierte a los datos del dominio.
func (d LotDetailsDTO) ToEntity() entity.LotDetails {
	return entity.LotDetails(d)
}

// MovementRequest body para POST /api/movements y cada ítem de /api/movements/batch.
type MovementRequest struct {
	Kind                   string        `json:"kind" validate:"required,oneof=INBOUND OUTBOUND RECEIVE"`
	Code                   string        `json:"code" validate:"required"`
	WarehouseID            string        `json:"warehouse_id"`
	Quantity               QuantityDTO   `json:"quantity"`
	Counterpart            string        `json:"counterpart"`
	DestinationWarehouseID string        `json:"destination_warehouse_id"`
	TransitID              string        `json:"transit_id"`
	Details                LotDetailsDTO `json:"details"`
	OccurredAt             *time.Time    `json:"occurred_at"`
	CreatedBy              string        `json:"created_by"`
}

// ToInput convierte a la entrada tipada del libro.
func (r MovementRequest) ToInput() inventory.MovementInput {
	in := inventory.MovementInput{
		Kind:                   r.Kind,
		Code:                   r.Code,
		WarehouseID:            r.WarehouseID,
		Quantity:               r.Quantity.ToEntity(),
		Counterpart:            r.Counterpart,
		DestinationWarehouseID: r.DestinationWarehouseID,
		TransitID:              r.TransitID,
		Details:                r.Details.ToEntity(),
		CreatedBy:              r.CreatedBy,
	}
	if r.OccurredAt != nil {
		in.OccurredAt = *r.OccurredAt
	}
	return in
}

// BatchRequest body para POST /api/movements/batch.
type BatchRequest struct {
	Items   []MovementRequest `json:"items" validate:"required,min=1,dive"`
	Partial bool              `json:"partial"`
}

// CorrectMovementRequest body para PUT /api/movements/:id.
type CorrectMovementRequest struct {
	Quantity    QuantityDTO `json:"quantity"`
	CorrectedBy string      `json:"corrected_by"`
}

// DepartTransitRequest body para POST /api/transits.
type DepartTransitRequest struct {
	Code                   string        `json:"code" validate:"required"`
	WarehouseID            string        `json:"warehouse_id" validate:"required"`
	DestinationWarehouseID string        `json:"destination_warehouse_id" validate:"required,nefield=WarehouseID"`
	Quantity               QuantityDTO   `json:"quantity"`
	Details                LotDetailsDTO `json:"details"`
	CreatedBy              string        `json:"created_by"`
}

// ToInput convierte a una salida hacia tránsito.
func (r DepartTransitRequest) ToInput() inventory.MovementInput {
	return inventory.MovementInput{
		Kind:                   entity.MovementKindOutbound,
		Code:                   r.Code,
		WarehouseID:            r.WarehouseID,
		DestinationWarehouseID: r.DestinationWarehouseID,
		Quantity:               r.Quantity.ToEntity(),
		Details:                r.Details.ToEntity(),
		CreatedBy:              r.CreatedBy,
	}
}

// ArriveTransitRequest body opcional para POST /api/transits/:id/arrival.
type ArriveTransitRequest struct {
	CreatedBy string `json:"created_by"`
}

// ChangeLotIdentityRequest body para PUT /api/lots/identity.
type ChangeLotIdentityRequest struct {
	Code         string `json:"code" validate:"required"`
	CustomerName string `json:"customer_name" validate:"required"`
	Plate        string `json:"plate"`
	OpDate       string `json:"op_date" validate:"required,datetime=2006-01-02"`
	ChangedBy    string `json:"changed_by"`
}

// ToInput convierte a la entrada del cambio de identidad.
func (r ChangeLotIdentityRequest) ToInput() (inventory.LotIdentityInput, error) {
	date, err := time.Parse(DateLayout, r.OpDate)
	if err != nil {
		return inventory.LotIdentityInput{}, fmt.Errorf("op_date: %w", err)
	}
	return inventory.LotIdentityInput{
		CustomerName: r.CustomerName,
		OpDate:       date,
		Plate:        r.Plate,
		ChangedBy:    r.ChangedBy,
	}, nil
}

// TheoreticalBalanceResponse saldo teórico por bodega.
type TheoreticalBalanceResponse struct {
	Code       string                     `json:"code"`
	Warehouses map[string]entity.Quantity `json:"warehouses"`
}

// FixCustomerNamesResponse resultado de POST /api/audit/fix-customer-names.
type FixCustomerNamesResponse struct {
	Fixed int `json:"fixed"`
}

// MovementListResponse página del historial de un código.
type MovementListResponse struct {
	Items []*entity.Movement `json:"items"`
	Page  PageResponse       `json:"page"`
}
