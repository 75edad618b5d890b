package inventory

import (
	"fmt"
	"sort"

	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
)

// ApplyInbound suma qty al saldo actual (servicio de dominio, sin efectos).
// Solo falla si qty trae alguna dimensión negativa.
func ApplyInbound(current, qty entity.Quantity) (entity.Quantity, error) {
	if qty.IsNegative() {
		return current, fmt.Errorf("%w: cantidad negativa", domain.ErrInvalidInput)
	}
	return current.Add(qty), nil
}

// ApplyOutbound resta qty del saldo actual. Pallets y bultos se verifican por separado;
// si cualquiera quedaría negativo devuelve ErrInsufficientStock y el saldo original.
// Peso y volumen son medidas: se restan sin verificación.
func ApplyOutbound(current, qty entity.Quantity) (entity.Quantity, error) {
	if qty.IsNegative() {
		return current, fmt.Errorf("%w: cantidad negativa", domain.ErrInvalidInput)
	}
	next := current.Sub(qty)
	if next.Pallets < 0 {
		return current, fmt.Errorf("%w: pallets disponibles %d, solicitados %d",
			domain.ErrInsufficientStock, current.Pallets, qty.Pallets)
	}
	if next.Packages < 0 {
		return current, fmt.Errorf("%w: bultos disponibles %d, solicitados %d",
			domain.ErrInsufficientStock, current.Packages, qty.Packages)
	}
	return next, nil
}

// ApplyDelta aplica un delta con signo. Un delta que deja conteos negativos es ErrInsufficientStock.
func ApplyDelta(current, delta entity.Quantity) (entity.Quantity, error) {
	next := current.Add(delta)
	if next.Pallets < 0 || next.Packages < 0 {
		return current, fmt.Errorf("%w: el ajuste dejaría pallets=%d bultos=%d",
			domain.ErrInsufficientStock, next.Pallets, next.Packages)
	}
	return next, nil
}

// TheoreticalBalance recalcula el saldo por bodega reproduciendo el historial:
// INBOUND + RECEIVE − OUTBOUND. Ignora movimientos reversados. Función pura.
func TheoreticalBalance(movements []*entity.Movement) map[string]entity.Quantity {
	out := make(map[string]entity.Quantity)
	for _, m := range movements {
		if m == nil || m.IsDeleted() {
			continue
		}
		out[m.WarehouseID] = out[m.WarehouseID].Add(m.Effect())
	}
	return out
}

// WarehouseDiff diferencia entre saldo teórico y real en una bodega.
type WarehouseDiff struct {
	WarehouseID string
	Theoretical entity.Quantity
	Actual      entity.Quantity
}

// Diff compara teórico contra real en la unión de bodegas, ordenado por bodega.
func Diff(theoretical, actual map[string]entity.Quantity) []WarehouseDiff {
	seen := make(map[string]struct{}, len(theoretical)+len(actual))
	for wh := range theoretical {
		seen[wh] = struct{}{}
	}
	for wh := range actual {
		seen[wh] = struct{}{}
	}
	warehouses := make([]string, 0, len(seen))
	for wh := range seen {
		warehouses = append(warehouses, wh)
	}
	sort.Strings(warehouses)

	var diffs []WarehouseDiff
	for _, wh := range warehouses {
		t, a := theoretical[wh], actual[wh]
		if !t.Equal(a) {
			diffs = append(diffs, WarehouseDiff{WarehouseID: wh, Theoretical: t, Actual: a})
		}
	}
	return diffs
}

// ActualBalance agrupa filas de saldo por bodega.
func ActualBalance(balances []*entity.Balance) map[string]entity.Quantity {
	out := make(map[string]entity.Quantity, len(balances))
	for _, b := range balances {
		out[b.WarehouseID] = out[b.WarehouseID].Add(b.Quantity)
	}
	return out
}

// AuthoritativeInbound primer ingreso vigente del historial (fuente de los campos descriptivos).
// movements debe venir ordenado por fecha. Devuelve nil si no hay ingresos.
func AuthoritativeInbound(movements []*entity.Movement) *entity.Movement {
	for _, m := range movements {
		if m != nil && !m.IsDeleted() && m.Kind == entity.MovementKindInbound {
			return m
		}
	}
	return nil
}

// NegativeWarehouses bodegas cuyo saldo teórico tiene conteos negativos (deriva irrecuperable).
func NegativeWarehouses(theoretical map[string]entity.Quantity) []string {
	var out []string
	for wh, q := range theoretical {
		if q.Pallets < 0 || q.Packages < 0 {
			out = append(out, wh)
		}
	}
	sort.Strings(out)
	return out
}
