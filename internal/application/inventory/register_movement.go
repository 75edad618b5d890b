package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/domain/inventory"
)

// MovementInput entrada tipada de un movimiento, validada una sola vez en el borde.
// INBOUND: Code, WarehouseID, Quantity. OUTBOUND: además Counterpart (externo) o
// DestinationWarehouseID (salida a tránsito). RECEIVE: TransitID; la cantidad sale del tránsito.
type MovementInput struct {
	Kind                   string `validate:"required,oneof=INBOUND OUTBOUND RECEIVE"`
	Code                   string `validate:"required"`
	WarehouseID            string `validate:"required_unless=Kind RECEIVE"`
	Quantity               entity.Quantity
	Counterpart            string
	DestinationWarehouseID string
	TransitID              string `validate:"required_if=Kind RECEIVE"`
	Details                entity.LotDetails
	OccurredAt             time.Time
	CreatedBy              string
}

// MovementResult movimiento registrado y saldo resultante en su bodega.
type MovementResult struct {
	Movement *entity.Movement       `json:"movement"`
	Balance  entity.BalanceSnapshot `json:"balance"`
	Transit  *entity.Transit        `json:"transit,omitempty"`
}

// ApplyMovement registra un movimiento de forma atómica.
// Valida la entrada, toma el bloqueo del código y aplica la lógica según el tipo.
func (l *Ledger) ApplyMovement(ctx context.Context, in MovementInput) (*MovementResult, error) {
	if err := l.validateInput(in); err != nil {
		l.metrics.IncMovement(in.Kind, "invalid")
		return nil, err
	}
	if err := l.requireWarehouses(ctx, in); err != nil {
		l.metrics.IncMovement(in.Kind, "invalid")
		return nil, err
	}

	var res *MovementResult
	err := l.mutate(ctx, strings.ToLower(in.Kind), []string{in.Code}, func(ctx context.Context, tx Tx) error {
		r, err := l.applyInputTx(ctx, tx, in)
		res = r
		return err
	})
	if err != nil {
		l.metrics.IncMovement(in.Kind, domain.KindOf(err).String())
		l.log.Warn().Err(err).Str("kind", in.Kind).Str("code", in.Code).Str("warehouse_id", in.WarehouseID).
			Msg("movimiento rechazado")
		return nil, err
	}
	l.metrics.IncMovement(in.Kind, "ok")
	l.log.Info().Str("kind", in.Kind).Str("code", in.Code).Str("warehouse_id", res.Movement.WarehouseID).
		Str("movement_id", res.Movement.ID).Int64("pallets", res.Balance.Quantity.Pallets).
		Int64("packages", res.Balance.Quantity.Packages).Msg("movimiento registrado")
	return res, nil
}

// ApplyInbound ingreso desde fuera de la red.
func (l *Ledger) ApplyInbound(ctx context.Context, in MovementInput) (*MovementResult, error) {
	in.Kind = entity.MovementKindInbound
	return l.ApplyMovement(ctx, in)
}

// ApplyOutbound salida externa. Con DestinationWarehouseID se comporta como DepartTransit.
func (l *Ledger) ApplyOutbound(ctx context.Context, in MovementInput) (*MovementResult, error) {
	in.Kind = entity.MovementKindOutbound
	return l.ApplyMovement(ctx, in)
}

func (l *Ledger) validateInput(in MovementInput) error {
	if err := l.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if _, err := l.codes.Parse(in.Code); err != nil {
		return err
	}
	if in.Kind == entity.MovementKindReceive {
		return nil
	}
	if in.Quantity.IsNegative() {
		return fmt.Errorf("%w: cantidades negativas", domain.ErrInvalidInput)
	}
	if in.Quantity.IsZero() {
		return fmt.Errorf("%w: faltan cantidades", domain.ErrInvalidInput)
	}
	switch in.Kind {
	case entity.MovementKindInbound:
		if in.DestinationWarehouseID != "" || in.TransitID != "" {
			return fmt.Errorf("%w: un ingreso no lleva destino ni tránsito", domain.ErrInvalidInput)
		}
	case entity.MovementKindOutbound:
		if in.TransitID != "" {
			return fmt.Errorf("%w: una salida no referencia un tránsito existente", domain.ErrInvalidInput)
		}
		if in.DestinationWarehouseID == in.WarehouseID {
			return fmt.Errorf("%w: origen y destino iguales", domain.ErrInvalidInput)
		}
	}
	return nil
}

func (l *Ledger) requireWarehouses(ctx context.Context, in MovementInput) error {
	for _, id := range []string{in.WarehouseID, in.DestinationWarehouseID} {
		if id == "" {
			continue
		}
		if err := l.requireWarehouse(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// applyInputTx aplica un movimiento ya validado dentro de tx (sin tomar bloqueos).
func (l *Ledger) applyInputTx(ctx context.Context, tx Tx, in MovementInput) (*MovementResult, error) {
	switch in.Kind {
	case entity.MovementKindInbound:
		details := in.Details
		if details.CustomerName == "" {
			details.CustomerName = customerOf(in.Code)
		}
		m := &entity.Movement{
			Kind:        entity.MovementKindInbound,
			Code:        in.Code,
			WarehouseID: in.WarehouseID,
			Quantity:    in.Quantity,
			Counterpart: in.Counterpart,
			Details:     details,
			OccurredAt:  in.OccurredAt,
			CreatedBy:   in.CreatedBy,
		}
		b, err := l.applyTx(ctx, tx, m)
		if err != nil {
			return nil, err
		}
		return &MovementResult{Movement: m, Balance: b.Snapshot()}, nil

	case entity.MovementKindOutbound:
		m := &entity.Movement{
			Kind:        entity.MovementKindOutbound,
			Code:        in.Code,
			WarehouseID: in.WarehouseID,
			Quantity:    in.Quantity,
			Counterpart: in.Counterpart,
			Details:     in.Details,
			OccurredAt:  in.OccurredAt,
			CreatedBy:   in.CreatedBy,
		}
		var t *entity.Transit
		if in.DestinationWarehouseID != "" {
			t = &entity.Transit{
				ID:                     uuid.New().String(),
				Code:                   in.Code,
				SourceWarehouseID:      in.WarehouseID,
				DestinationWarehouseID: in.DestinationWarehouseID,
				Quantity:               in.Quantity,
				Status:                 entity.TransitStatusInTransit,
				CreatedBy:              in.CreatedBy,
			}
			m.TransitID = t.ID
			m.Counterpart = in.DestinationWarehouseID
		}
		b, err := l.applyTx(ctx, tx, m)
		if err != nil {
			return nil, err
		}
		if t != nil {
			t.Details = m.Details
			t.DepartedAt = m.OccurredAt
			if err := tx.Transits().Create(ctx, t); err != nil {
				return nil, err
			}
		}
		return &MovementResult{Movement: m, Balance: b.Snapshot(), Transit: t}, nil

	case entity.MovementKindReceive:
		t, err := tx.Transits().GetForUpdate(ctx, in.TransitID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("%w: tránsito %s", domain.ErrNotFound, in.TransitID)
		}
		if t.Code != in.Code {
			return nil, fmt.Errorf("%w: el tránsito %s pertenece a %s", domain.ErrInvalidInput, t.ID, t.Code)
		}
		if in.WarehouseID != "" && in.WarehouseID != t.DestinationWarehouseID {
			return nil, fmt.Errorf("%w: el tránsito %s va hacia %s", domain.ErrInvalidInput, t.ID, t.DestinationWarehouseID)
		}
		if !entity.CanTransition(t.Status, entity.TransitStatusReceived) {
			return nil, fmt.Errorf("%w: tránsito %s en estado %s", domain.ErrInvalidTransition, t.ID, t.Status)
		}
		m := &entity.Movement{
			Kind:        entity.MovementKindReceive,
			Code:        t.Code,
			WarehouseID: t.DestinationWarehouseID,
			Quantity:    t.Quantity,
			Counterpart: t.SourceWarehouseID,
			TransitID:   t.ID,
			Details:     t.Details,
			OccurredAt:  in.OccurredAt,
			CreatedBy:   in.CreatedBy,
		}
		b, err := l.applyTx(ctx, tx, m)
		if err != nil {
			return nil, err
		}
		now := l.now()
		t.Status = entity.TransitStatusReceived
		t.ReceivedAt = &now
		if err := tx.Transits().Update(ctx, t); err != nil {
			return nil, err
		}
		return &MovementResult{Movement: m, Balance: b.Snapshot(), Transit: t}, nil
	}
	return nil, fmt.Errorf("%w: tipo %q", domain.ErrInvalidInput, in.Kind)
}

// applyTx bloquea la fila de saldo (SELECT FOR UPDATE), aplica el efecto del movimiento,
// guarda el saldo con control de versión y registra el movimiento.
func (l *Ledger) applyTx(ctx context.Context, tx Tx, m *entity.Movement) (*entity.Balance, error) {
	b, err := tx.Balances().GetForUpdate(ctx, m.Code, m.WarehouseID)
	if err != nil {
		return nil, err
	}
	now := l.now()
	switch m.Kind {
	case entity.MovementKindOutbound:
		if b.IsNew() {
			return nil, fmt.Errorf("%w: %s no tiene saldo en %s", domain.ErrInsufficientStock, m.Code, m.WarehouseID)
		}
		next, err := inventory.ApplyOutbound(b.Quantity, m.Quantity)
		if err != nil {
			return nil, err
		}
		// Lo que la salida no informa se toma del saldo; el cliente, en último caso, del código.
		m.Details = m.Details.FillFrom(b.Details)
		if m.Details.CustomerName == "" {
			m.Details.CustomerName = customerOf(m.Code)
		}
		b.Quantity = next
	default:
		next, err := inventory.ApplyInbound(b.Quantity, m.Quantity)
		if err != nil {
			return nil, err
		}
		b.Quantity = next
	}
	settle(b, m.Details, now)
	b.LastUpdated = now
	if err := tx.Balances().Save(ctx, b); err != nil {
		return nil, err
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = now
	}
	m.CreatedAt = now
	if err := tx.Movements().Create(ctx, m); err != nil {
		return nil, err
	}
	return b, nil
}

// customerOf cliente embebido en el código (vacío si no se puede descomponer).
func customerOf(code string) string {
	ic, err := entity.ParseIdentificationCode(code)
	if err != nil {
		return ""
	}
	return ic.Customer
}
