package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/domain/inventory"
)

// ReverseMovement anula un movimiento aplicando su efecto inverso en su propia bodega
// y lo marca como reversado. Una salida a tránsito cancela el tránsito; una recepción
// devuelve el tránsito a in_transit. Un tránsito completado no se puede reversar.
func (l *Ledger) ReverseMovement(ctx context.Context, movementID, reversedBy string) (*MovementResult, error) {
	m, err := l.loadMovement(ctx, movementID)
	if err != nil {
		return nil, err
	}

	var (
		res    *MovementResult
		before entity.Quantity
	)
	err = l.mutate(ctx, "reverse", []string{m.Code}, func(ctx context.Context, tx Tx) error {
		locked, err := lockedMovement(ctx, tx, m)
		if err != nil {
			return err
		}
		b, err := tx.Balances().GetForUpdate(ctx, locked.Code, locked.WarehouseID)
		if err != nil {
			return err
		}
		before = b.Quantity
		now := l.now()

		var t *entity.Transit
		if locked.TransitID != "" {
			if t, err = l.reverseTransitTx(ctx, tx, locked); err != nil {
				return err
			}
		}

		switch locked.Kind {
		case entity.MovementKindOutbound:
			next, err := inventory.ApplyInbound(b.Quantity, locked.Quantity)
			if err != nil {
				return err
			}
			b.Quantity = next
			details, err := l.originDetails(ctx, tx, locked)
			if err != nil {
				return err
			}
			settle(b, details, now)
		default:
			next, err := inventory.ApplyOutbound(b.Quantity, locked.Quantity)
			if err != nil {
				return fmt.Errorf("no se puede reversar %s: el lote ya fue despachado: %w", locked.ID, err)
			}
			b.Quantity = next
			settle(b, b.Details, now)
		}
		b.LastUpdated = now
		if err := tx.Balances().Save(ctx, b); err != nil {
			return err
		}
		if err := tx.Movements().SoftDelete(ctx, locked.ID, now); err != nil {
			return err
		}
		locked.DeletedAt = &now
		res = &MovementResult{Movement: locked, Balance: b.Snapshot(), Transit: t}
		return nil
	})
	if err != nil {
		l.log.Warn().Err(err).Str("movement_id", movementID).Msg("reverso rechazado")
		return nil, err
	}
	l.log.Info().Str("movement_id", movementID).Str("kind", res.Movement.Kind).Str("code", res.Movement.Code).
		Str("warehouse_id", res.Movement.WarehouseID).Str("before", before.String()).
		Str("after", res.Balance.Quantity.String()).Str("reversed_by", reversedBy).Msg("movimiento reversado")
	return res, nil
}

// reverseTransitTx ajusta el tránsito asociado al movimiento que se reversa.
func (l *Ledger) reverseTransitTx(ctx context.Context, tx Tx, m *entity.Movement) (*entity.Transit, error) {
	t, err := tx.Transits().GetForUpdate(ctx, m.TransitID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: tránsito %s del movimiento %s", domain.ErrNotFound, m.TransitID, m.ID)
	}
	now := l.now()
	switch m.Kind {
	case entity.MovementKindOutbound:
		if !entity.CanTransition(t.Status, entity.TransitStatusCancelled) {
			return nil, fmt.Errorf("%w: tránsito %s en estado %s no se puede cancelar", domain.ErrInvalidTransition, t.ID, t.Status)
		}
		t.Status = entity.TransitStatusCancelled
		t.CancelledAt = &now
	case entity.MovementKindReceive:
		if !entity.CanTransition(t.Status, entity.TransitStatusInTransit) {
			return nil, fmt.Errorf("%w: tránsito %s en estado %s", domain.ErrInvalidTransition, t.ID, t.Status)
		}
		t.Status = entity.TransitStatusInTransit
		t.ReceivedAt = nil
	}
	if err := tx.Transits().Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// CorrectMovement reemplaza la cantidad de un ingreso o salida externa y ajusta el saldo
// por la diferencia. Los movimientos de tránsito se corrigen reversando.
func (l *Ledger) CorrectMovement(ctx context.Context, movementID string, qty entity.Quantity, correctedBy string) (*MovementResult, error) {
	if qty.IsNegative() || qty.IsZero() {
		return nil, fmt.Errorf("%w: cantidad corregida inválida", domain.ErrInvalidInput)
	}
	m, err := l.loadMovement(ctx, movementID)
	if err != nil {
		return nil, err
	}

	var (
		res    *MovementResult
		oldQty entity.Quantity
	)
	err = l.mutate(ctx, "correct", []string{m.Code}, func(ctx context.Context, tx Tx) error {
		locked, err := lockedMovement(ctx, tx, m)
		if err != nil {
			return err
		}
		if locked.TransitID != "" || locked.Kind == entity.MovementKindReceive {
			return fmt.Errorf("%w: los movimientos de tránsito no se corrigen, se reversan", domain.ErrInvalidTransition)
		}
		oldQty = locked.Quantity
		updated := *locked
		updated.Quantity = qty
		delta := updated.Effect().Sub(locked.Effect())

		b, err := tx.Balances().GetForUpdate(ctx, locked.Code, locked.WarehouseID)
		if err != nil {
			return err
		}
		next, err := inventory.ApplyDelta(b.Quantity, delta)
		if err != nil {
			return err
		}
		now := l.now()
		b.Quantity = next
		details, err := l.originDetails(ctx, tx, locked)
		if err != nil {
			return err
		}
		settle(b, details, now)
		b.LastUpdated = now
		if err := tx.Balances().Save(ctx, b); err != nil {
			return err
		}
		if err := tx.Movements().Update(ctx, &updated); err != nil {
			return err
		}
		res = &MovementResult{Movement: &updated, Balance: b.Snapshot()}
		return nil
	})
	if err != nil {
		l.log.Warn().Err(err).Str("movement_id", movementID).Msg("corrección rechazada")
		return nil, err
	}
	l.log.Info().Str("movement_id", movementID).Str("code", res.Movement.Code).
		Str("before", oldQty.String()).Str("after", qty.String()).Str("corrected_by", correctedBy).
		Msg("movimiento corregido")
	return res, nil
}

func (l *Ledger) loadMovement(ctx context.Context, id string) (*entity.Movement, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id de movimiento obligatorio", domain.ErrInvalidInput)
	}
	m, err := l.stores.Movements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: movimiento %s", domain.ErrNotFound, id)
	}
	return m, nil
}

// lockedMovement relee el movimiento dentro de la transacción, ya con el código bloqueado.
func lockedMovement(ctx context.Context, tx Tx, seen *entity.Movement) (*entity.Movement, error) {
	m, err := tx.Movements().GetByID(ctx, seen.ID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: movimiento %s", domain.ErrNotFound, seen.ID)
	}
	if m.Code != seen.Code {
		return nil, fmt.Errorf("%w: el lote cambió de código a %s", domain.ErrInvalidTransition, m.Code)
	}
	if m.IsDeleted() {
		return nil, fmt.Errorf("%w: movimiento %s ya reversado", domain.ErrInvalidTransition, m.ID)
	}
	return m, nil
}

// originDetails campos descriptivos del ingreso original del lote (o los del propio movimiento).
func (l *Ledger) originDetails(ctx context.Context, tx Tx, m *entity.Movement) (entity.LotDetails, error) {
	movs, err := tx.Movements().ListByCode(ctx, m.Code)
	if err != nil {
		return entity.LotDetails{}, err
	}
	if origin := inventory.AuthoritativeInbound(movs); origin != nil {
		return origin.Details, nil
	}
	return m.Details, nil
}
