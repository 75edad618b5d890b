package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/domain/inventory"
)

// LotIdentityInput nueva identidad (cliente, placa, fecha) de un lote.
type LotIdentityInput struct {
	CustomerName string    `validate:"required"`
	OpDate       time.Time `validate:"required"`
	Plate        string
	ChangedBy    string
}

// ChangeLotIdentity emite un código nuevo para el lote y mueve todo su historial al nuevo código.
// Se rechaza con ErrLotHasOutbound si el lote ya tiene salidas: los despachos ya emitidos
// referencian el código anterior.
func (l *Ledger) ChangeLotIdentity(ctx context.Context, code string, in LotIdentityInput) (entity.IdentificationCode, error) {
	if _, err := l.codes.Parse(code); err != nil {
		return entity.IdentificationCode{}, err
	}
	if err := l.validate.Struct(in); err != nil {
		return entity.IdentificationCode{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	movs, err := l.stores.Movements.ListByCode(ctx, code)
	if err != nil {
		return entity.IdentificationCode{}, err
	}
	origin, err := identityOrigin(code, movs)
	if err != nil {
		return entity.IdentificationCode{}, err
	}
	base, err := l.codes.base(GenerateCodeInput{
		WarehouseID:  origin.WarehouseID,
		CustomerName: in.CustomerName,
		Plate:        in.Plate,
		OpType:       OpTypeInbound,
		OpDate:       in.OpDate,
	})
	if err != nil {
		return entity.IdentificationCode{}, err
	}

	var newCode entity.IdentificationCode
	err = l.mutate(ctx, "change_identity", []string{code, scopeLockKey(base.Scope())}, func(ctx context.Context, tx Tx) error {
		movs, err := tx.Movements().ListByCode(ctx, code)
		if err != nil {
			return err
		}
		if _, err := identityOrigin(code, movs); err != nil {
			return err
		}
		c, err := l.codes.mint(ctx, tx.Codes(), base, origin.WarehouseID)
		if errors.Is(err, domain.ErrDuplicate) {
			// Otro proceso tomó la secuencia: se reintenta la unidad completa.
			return fmt.Errorf("%w: %v", domain.ErrVersionConflict, err)
		}
		if err != nil {
			return err
		}
		if err := tx.LockCodes(ctx, c.String()); err != nil {
			return err
		}
		if err := tx.Balances().Rekey(ctx, code, c.String()); err != nil {
			return err
		}
		if err := tx.Movements().Rekey(ctx, code, c.String()); err != nil {
			return err
		}
		if err := tx.Transits().Rekey(ctx, code, c.String()); err != nil {
			return err
		}
		if _, err := l.setCustomerNameTx(ctx, tx, c.String(), c.Customer); err != nil {
			return err
		}
		newCode = c
		return nil
	})
	if err != nil {
		l.log.Warn().Err(err).Str("code", code).Msg("cambio de identidad rechazado")
		return entity.IdentificationCode{}, err
	}
	l.metrics.IncCodeGenerated(newCode.Prefix)
	l.log.Info().Str("before", code).Str("after", newCode.String()).Str("changed_by", in.ChangedBy).
		Msg("identidad de lote cambiada")
	return newCode, nil
}

// identityOrigin ingreso original del lote; falla si no hay historial o si ya hubo salidas.
func identityOrigin(code string, movs []*entity.Movement) (*entity.Movement, error) {
	for _, m := range movs {
		if m.Kind == entity.MovementKindOutbound {
			return nil, fmt.Errorf("%w: %s (movimiento %s)", domain.ErrLotHasOutbound, code, m.ID)
		}
	}
	origin := inventory.AuthoritativeInbound(movs)
	if origin == nil {
		return nil, fmt.Errorf("%w: %s no tiene ingresos vigentes", domain.ErrNotFound, code)
	}
	return origin, nil
}
