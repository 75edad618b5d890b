package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/domain/inventory"
)

// Chequeos de consistencia; nombran también las correcciones que los reparan.
const (
	CheckCustomerName = "customer_name"
	CheckBalance      = "balance"
	CheckDetails      = "details"
	CheckTransit      = "transit"
	CheckArchive      = "archive"
)

// Objetivos de una corrección.
const (
	TargetBalance  = "balance"
	TargetMovement = "movement"
	TargetTransit  = "transit"
)

// Correction cambio aplicado por una reparación, con su valor anterior y posterior.
type Correction struct {
	Check       string    `json:"check"`
	Code        string    `json:"code"`
	WarehouseID string    `json:"warehouse_id,omitempty"`
	Target      string    `json:"target"`
	TargetID    string    `json:"target_id,omitempty"`
	Before      string    `json:"before"`
	After       string    `json:"after"`
	At          time.Time `json:"at"`
}

// CustomerMatches indica si el cliente guardado corresponde al embebido en el código.
func CustomerMatches(stored, embedded string) bool {
	return SanitizeCustomer(stored) == embedded
}

// ReconcileBalances recalcula el saldo teórico bajo bloqueo y reescribe las filas que difieren.
// Si alguna bodega queda con conteos teóricos negativos no repara nada y devuelve ErrConsistency.
func (l *Ledger) ReconcileBalances(ctx context.Context, code string) ([]Correction, error) {
	var out []Correction
	err := l.mutate(ctx, "reconcile", []string{code}, func(ctx context.Context, tx Tx) error {
		out = nil
		movs, err := tx.Movements().ListByCode(ctx, code)
		if err != nil {
			return err
		}
		theo := inventory.TheoreticalBalance(movs)
		if neg := inventory.NegativeWarehouses(theo); len(neg) > 0 {
			return fmt.Errorf("%w: %s tiene saldo teórico negativo en %v", domain.ErrConsistency, code, neg)
		}
		rows, err := tx.Balances().ListByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		byWarehouse := make(map[string]*entity.Balance, len(rows))
		for _, b := range rows {
			byWarehouse[b.WarehouseID] = b
		}
		details := entity.LotDetails{CustomerName: customerOf(code)}
		if origin := inventory.AuthoritativeInbound(movs); origin != nil {
			details = origin.Details
		}

		now := l.now()
		for _, d := range inventory.Diff(theo, inventory.ActualBalance(rows)) {
			b, ok := byWarehouse[d.WarehouseID]
			if !ok {
				if b, err = tx.Balances().GetForUpdate(ctx, code, d.WarehouseID); err != nil {
					return err
				}
			}
			b.Quantity = d.Theoretical
			settle(b, details, now)
			b.LastUpdated = now
			if err := tx.Balances().Save(ctx, b); err != nil {
				return err
			}
			out = append(out, Correction{
				Check: CheckBalance, Code: code, WarehouseID: d.WarehouseID, Target: TargetBalance,
				Before: d.Actual.String(), After: d.Theoretical.String(), At: now,
			})
		}
		return nil
	})
	l.logCorrections("reconcile", code, out, err)
	return out, err
}

// FixCustomerName iguala el cliente guardado en saldos, movimientos y tránsitos al embebido en el código.
func (l *Ledger) FixCustomerName(ctx context.Context, code string) ([]Correction, error) {
	ic, err := entity.ParseIdentificationCode(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	var out []Correction
	err = l.mutate(ctx, "fix_customer_name", []string{code}, func(ctx context.Context, tx Tx) error {
		c, err := l.setCustomerNameTx(ctx, tx, code, ic.Customer)
		out = c
		return err
	})
	l.logCorrections("fix_customer_name", code, out, err)
	return out, err
}

// setCustomerNameTx reescribe el cliente donde no coincide con name.
func (l *Ledger) setCustomerNameTx(ctx context.Context, tx Tx, code, name string) ([]Correction, error) {
	var out []Correction
	now := l.now()
	fix := func(target, id, wh, before string) {
		out = append(out, Correction{
			Check: CheckCustomerName, Code: code, WarehouseID: wh, Target: target, TargetID: id,
			Before: before, After: name, At: now,
		})
	}

	rows, err := tx.Balances().ListByCodeForUpdate(ctx, code)
	if err != nil {
		return nil, err
	}
	for _, b := range rows {
		if CustomerMatches(b.Details.CustomerName, name) {
			continue
		}
		fix(TargetBalance, "", b.WarehouseID, b.Details.CustomerName)
		b.Details.CustomerName = name
		b.LastUpdated = now
		if err := tx.Balances().Save(ctx, b); err != nil {
			return nil, err
		}
	}

	movs, err := tx.Movements().ListByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	for _, m := range movs {
		if CustomerMatches(m.Details.CustomerName, name) {
			continue
		}
		fix(TargetMovement, m.ID, m.WarehouseID, m.Details.CustomerName)
		m.Details.CustomerName = name
		if err := tx.Movements().Update(ctx, m); err != nil {
			return nil, err
		}
	}

	transits, err := tx.Transits().ListByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	for _, t := range transits {
		if CustomerMatches(t.Details.CustomerName, name) {
			continue
		}
		fix(TargetTransit, t.ID, t.SourceWarehouseID, t.Details.CustomerName)
		t.Details.CustomerName = name
		if err := tx.Transits().Update(ctx, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SyncLotDetails copia customs, export mode y service staff del ingreso original a los saldos
// vigentes, salidas, recepciones y tránsitos que difieren.
func (l *Ledger) SyncLotDetails(ctx context.Context, code string) ([]Correction, error) {
	var out []Correction
	err := l.mutate(ctx, "sync_details", []string{code}, func(ctx context.Context, tx Tx) error {
		out = nil
		movs, err := tx.Movements().ListByCode(ctx, code)
		if err != nil {
			return err
		}
		origin := inventory.AuthoritativeInbound(movs)
		if origin == nil {
			return nil
		}
		src := origin.Details
		now := l.now()
		fix := func(target, id, wh string, before entity.LotDetails) {
			out = append(out, Correction{
				Check: CheckDetails, Code: code, WarehouseID: wh, Target: target, TargetID: id,
				Before: describe(before), After: describe(src), At: now,
			})
		}

		rows, err := tx.Balances().ListByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		for _, b := range rows {
			if b.IsDeleted() || b.Details.SameDescriptive(src) {
				continue
			}
			fix(TargetBalance, "", b.WarehouseID, b.Details)
			b.Details = b.Details.WithDescriptiveFrom(src)
			b.LastUpdated = now
			if err := tx.Balances().Save(ctx, b); err != nil {
				return err
			}
		}
		for _, m := range movs {
			if m.Kind == entity.MovementKindInbound || m.Details.SameDescriptive(src) {
				continue
			}
			fix(TargetMovement, m.ID, m.WarehouseID, m.Details)
			m.Details = m.Details.WithDescriptiveFrom(src)
			if err := tx.Movements().Update(ctx, m); err != nil {
				return err
			}
		}
		transits, err := tx.Transits().ListByCode(ctx, code)
		if err != nil {
			return err
		}
		for _, t := range transits {
			if t.Details.SameDescriptive(src) {
				continue
			}
			fix(TargetTransit, t.ID, t.SourceWarehouseID, t.Details)
			t.Details = t.Details.WithDescriptiveFrom(src)
			if err := tx.Transits().Update(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
	l.logCorrections("sync_details", code, out, err)
	return out, err
}

// ArchiveEmptyBalances archiva los saldos vigentes sin pallets ni bultos.
func (l *Ledger) ArchiveEmptyBalances(ctx context.Context, code string) ([]Correction, error) {
	var out []Correction
	err := l.mutate(ctx, "archive_empty", []string{code}, func(ctx context.Context, tx Tx) error {
		out = nil
		rows, err := tx.Balances().ListByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		now := l.now()
		for _, b := range rows {
			if b.IsDeleted() || !b.Quantity.CountsZero() {
				continue
			}
			archive(b, now)
			b.LastUpdated = now
			if err := tx.Balances().Save(ctx, b); err != nil {
				return err
			}
			out = append(out, Correction{
				Check: CheckArchive, Code: code, WarehouseID: b.WarehouseID, Target: TargetBalance,
				Before: "active", After: "archived", At: now,
			})
		}
		return nil
	})
	l.logCorrections("archive_empty", code, out, err)
	return out, err
}

func (l *Ledger) logCorrections(op, code string, out []Correction, err error) {
	if err != nil {
		l.log.Error().Err(err).Str("op", op).Str("code", code).Msg("reparación fallida")
		return
	}
	for _, c := range out {
		l.log.Info().Str("op", op).Str("code", code).Str("warehouse_id", c.WarehouseID).Str("target", c.Target).
			Str("target_id", c.TargetID).Str("before", c.Before).Str("after", c.After).Msg("corrección aplicada")
	}
}

func describe(d entity.LotDetails) string {
	return fmt.Sprintf("customs=%q export_mode=%q service_staff=%q", d.Customs, d.ExportMode, d.ServiceStaff)
}
