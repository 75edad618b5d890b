package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
)

// DepartTransit descuenta en origen y abre un tránsito hacia DestinationWarehouseID.
// El destino no suma nada hasta ArriveTransit.
func (l *Ledger) DepartTransit(ctx context.Context, in MovementInput) (*MovementResult, error) {
	if in.DestinationWarehouseID == "" {
		return nil, fmt.Errorf("%w: falta la bodega destino", domain.ErrInvalidInput)
	}
	in.Kind = entity.MovementKindOutbound
	return l.ApplyMovement(ctx, in)
}

// ArriveTransit recibe el tránsito en destino: suma la cantidad en tránsito y pasa a received.
func (l *Ledger) ArriveTransit(ctx context.Context, transitID, createdBy string) (*MovementResult, error) {
	t, err := l.GetTransit(ctx, transitID)
	if err != nil {
		return nil, err
	}
	return l.ApplyMovement(ctx, MovementInput{
		Kind:        entity.MovementKindReceive,
		Code:        t.Code,
		WarehouseID: t.DestinationWarehouseID,
		TransitID:   t.ID,
		CreatedBy:   createdBy,
	})
}

// CompleteTransit cierra un tránsito recibido. No cambia saldos.
func (l *Ledger) CompleteTransit(ctx context.Context, transitID string) (*entity.Transit, error) {
	t, err := l.GetTransit(ctx, transitID)
	if err != nil {
		return nil, err
	}
	var out *entity.Transit
	err = l.mutate(ctx, "complete_transit", []string{t.Code}, func(ctx context.Context, tx Tx) error {
		locked, err := tx.Transits().GetForUpdate(ctx, transitID)
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("%w: tránsito %s", domain.ErrNotFound, transitID)
		}
		if !entity.CanTransition(locked.Status, entity.TransitStatusCompleted) {
			return fmt.Errorf("%w: tránsito %s en estado %s", domain.ErrInvalidTransition, locked.ID, locked.Status)
		}
		now := l.now()
		locked.Status = entity.TransitStatusCompleted
		locked.CompletedAt = &now
		if err := tx.Transits().Update(ctx, locked); err != nil {
			return err
		}
		out = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("transit_id", out.ID).Str("code", out.Code).Msg("tránsito completado")
	return out, nil
}
