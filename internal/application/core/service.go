// Package core fachada en proceso del libro para los colaboradores (capa web, tareas):
// generar y leer códigos, registrar movimientos, consultar saldos y auditar.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/lot-ledger/internal/application/audit"
	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
)

// Service agrupa generador, libro y auditor.
type Service struct {
	codes      *inventory.CodeGenerator
	ledger     *inventory.Ledger
	auditor    *audit.Auditor
	autoRepair bool
}

// NewService construye la fachada. autoRepair aplica a RunConsistencyCheck.
func NewService(codes *inventory.CodeGenerator, ledger *inventory.Ledger, auditor *audit.Auditor, autoRepair bool) *Service {
	return &Service{codes: codes, ledger: ledger, auditor: auditor, autoRepair: autoRepair}
}

// Ledger acceso a las operaciones completas del libro (tránsitos, reversos, lotes).
func (s *Service) Ledger() *inventory.Ledger { return s.ledger }

// Auditor acceso al auditor.
func (s *Service) Auditor() *audit.Auditor { return s.auditor }

// GenerateCode emite el siguiente código del alcance (bodega, cliente, placa, fecha).
func (s *Service) GenerateCode(ctx context.Context, warehouseID, customer, plate, opType string, date time.Time) (string, error) {
	c, err := s.codes.Generate(ctx, inventory.GenerateCodeInput{
		WarehouseID:  warehouseID,
		CustomerName: customer,
		Plate:        plate,
		OpType:       opType,
		OpDate:       date,
	})
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// ParseCode descompone un código y resuelve la bodega de su prefijo.
func (s *Service) ParseCode(code string) (inventory.ParsedCode, error) {
	return s.codes.Parse(code)
}

// ApplyMovement registra un ingreso o una salida externa y devuelve el saldo resultante.
// Las recepciones de tránsito van por Ledger().ArriveTransit, que conoce el tránsito.
func (s *Service) ApplyMovement(ctx context.Context, code, warehouseID, kind string,
	pallets, packages int64, weight, volume decimal.Decimal) (entity.BalanceSnapshot, error) {
	if kind == entity.MovementKindReceive {
		return entity.BalanceSnapshot{}, fmt.Errorf("%w: una recepción requiere el tránsito", domain.ErrInvalidInput)
	}
	res, err := s.ledger.ApplyMovement(ctx, inventory.MovementInput{
		Kind:        kind,
		Code:        code,
		WarehouseID: warehouseID,
		Quantity:    entity.Quantity{Pallets: pallets, Packages: packages, Weight: weight, Volume: volume},
	})
	if err != nil {
		return entity.BalanceSnapshot{}, err
	}
	return res.Balance, nil
}

// GetBalance saldo actual del código en la bodega.
func (s *Service) GetBalance(ctx context.Context, code, warehouseID string) (entity.BalanceSnapshot, error) {
	return s.ledger.GetBalance(ctx, code, warehouseID)
}

// TheoreticalBalance saldo por bodega recalculado desde el historial.
func (s *Service) TheoreticalBalance(ctx context.Context, code string) (map[string]entity.Quantity, error) {
	return s.ledger.TheoreticalBalance(ctx, code)
}

// RunConsistencyCheck auditoría completa con la política de reparación configurada.
func (s *Service) RunConsistencyCheck(ctx context.Context) (*audit.Report, error) {
	return s.auditor.RunFullCheck(ctx, audit.Options{AutoRepair: s.autoRepair})
}

// FixCustomerNameIssues corrige los clientes que no coinciden con el código.
func (s *Service) FixCustomerNameIssues(ctx context.Context) (int, error) {
	return s.auditor.FixCustomerNameIssues(ctx)
}
