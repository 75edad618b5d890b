package audit

import (
	"fmt"
	"strings"

	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	dominv "github.com/jhoicas/lot-ledger/internal/domain/inventory"
)

// checkLot corre los chequeos de un código en orden fijo.
func checkLot(st *lotState) []Issue {
	var out []Issue
	out = append(out, checkCustomerName(st)...)
	out = append(out, checkBalance(st)...)
	out = append(out, checkDetails(st)...)
	out = append(out, checkTransits(st)...)
	out = append(out, checkArchive(st)...)
	return out
}

// checkCustomerName el cliente embebido en el código manda sobre el guardado.
func checkCustomerName(st *lotState) []Issue {
	ic, err := entity.ParseIdentificationCode(st.code)
	if err != nil {
		return []Issue{{
			Check: inventory.CheckCustomerName, Severity: SeverityHigh, Code: st.code,
			Message: fmt.Sprintf("código no interpretable: %v", err),
		}}
	}
	var out []Issue
	mismatch := func(target, id, wh, stored string) {
		out = append(out, Issue{
			Check: inventory.CheckCustomerName, Severity: SeverityHigh, Code: st.code, WarehouseID: wh,
			Target: target, TargetID: id, Message: "cliente distinto al del código",
			Expected: ic.Customer, Actual: stored, Fixable: true,
		})
	}
	for _, b := range st.balances {
		if !inventory.CustomerMatches(b.Details.CustomerName, ic.Customer) {
			mismatch(inventory.TargetBalance, "", b.WarehouseID, b.Details.CustomerName)
		}
	}
	for _, m := range st.movements {
		if !inventory.CustomerMatches(m.Details.CustomerName, ic.Customer) {
			mismatch(inventory.TargetMovement, m.ID, m.WarehouseID, m.Details.CustomerName)
		}
	}
	for _, t := range st.transits {
		if !inventory.CustomerMatches(t.Details.CustomerName, ic.Customer) {
			mismatch(inventory.TargetTransit, t.ID, t.SourceWarehouseID, t.Details.CustomerName)
		}
	}
	return out
}

// checkBalance saldo teórico contra real por bodega. Con conteos teóricos negativos
// falta historial: nada del código se concilia automáticamente.
func checkBalance(st *lotState) []Issue {
	theo := dominv.TheoreticalBalance(st.movements)
	negative := dominv.NegativeWarehouses(theo)
	var out []Issue
	for _, wh := range negative {
		out = append(out, Issue{
			Check: inventory.CheckBalance, Severity: SeverityHigh, Code: st.code, WarehouseID: wh,
			Target: inventory.TargetBalance, Message: "saldo teórico negativo: falta historial de movimientos",
			Expected: "conteos >= 0", Actual: theo[wh].String(),
		})
	}
	blocked := len(negative) > 0
	for _, d := range dominv.Diff(theo, dominv.ActualBalance(st.balances)) {
		if d.Theoretical.Pallets < 0 || d.Theoretical.Packages < 0 {
			continue
		}
		msg := "saldo real distinto al teórico"
		if blocked {
			msg += " (conciliación bloqueada por saldo teórico negativo)"
		}
		out = append(out, Issue{
			Check: inventory.CheckBalance, Severity: SeverityHigh, Code: st.code, WarehouseID: d.WarehouseID,
			Target: inventory.TargetBalance, Message: msg,
			Expected: d.Theoretical.String(), Actual: d.Actual.String(), Fixable: !blocked,
		})
	}
	return out
}

// checkDetails customs, export mode y service staff contra el ingreso original.
func checkDetails(st *lotState) []Issue {
	origin := dominv.AuthoritativeInbound(st.movements)
	if origin == nil {
		return nil
	}
	src := origin.Details
	var out []Issue
	mismatch := func(target, id, wh string, d entity.LotDetails) {
		out = append(out, Issue{
			Check: inventory.CheckDetails, Severity: SeverityMedium, Code: st.code, WarehouseID: wh,
			Target: target, TargetID: id, Message: "datos descriptivos distintos a los del ingreso",
			Expected: describe(src), Actual: describe(d), Fixable: true,
		})
	}
	for _, b := range st.balances {
		if !b.IsDeleted() && !b.Details.SameDescriptive(src) {
			mismatch(inventory.TargetBalance, "", b.WarehouseID, b.Details)
		}
	}
	for _, m := range st.movements {
		if m.Kind != entity.MovementKindInbound && !m.Details.SameDescriptive(src) {
			mismatch(inventory.TargetMovement, m.ID, m.WarehouseID, m.Details)
		}
	}
	for _, t := range st.transits {
		if !t.Details.SameDescriptive(src) {
			mismatch(inventory.TargetTransit, t.ID, t.SourceWarehouseID, t.Details)
		}
	}
	return out
}

// checkTransits cada tránsito debe tener su salida y, según el estado, su recepción.
// Estas incidencias requieren revisión manual.
func checkTransits(st *lotState) []Issue {
	departures := make(map[string]*entity.Movement)
	receipts := make(map[string]*entity.Movement)
	for _, m := range st.movements {
		if m.TransitID == "" {
			continue
		}
		switch m.Kind {
		case entity.MovementKindOutbound:
			departures[m.TransitID] = m
		case entity.MovementKindReceive:
			receipts[m.TransitID] = m
		}
	}

	var out []Issue
	issue := func(t *entity.Transit, wh, msg, expected, actual string) {
		out = append(out, Issue{
			Check: inventory.CheckTransit, Severity: SeverityHigh, Code: st.code, WarehouseID: wh,
			Target: inventory.TargetTransit, TargetID: t.ID, Message: msg, Expected: expected, Actual: actual,
		})
	}
	for _, t := range st.transits {
		dep, rec := departures[t.ID], receipts[t.ID]
		switch t.Status {
		case entity.TransitStatusCancelled:
			if dep != nil || rec != nil {
				issue(t, t.SourceWarehouseID, "tránsito cancelado con movimientos vigentes", "sin movimientos", movementIDs(dep, rec))
			}
			continue
		case entity.TransitStatusInTransit:
			if rec != nil {
				issue(t, t.DestinationWarehouseID, "tránsito en curso con recepción registrada en destino",
					"sin recepción", rec.ID)
			}
		case entity.TransitStatusReceived, entity.TransitStatusCompleted:
			if rec == nil {
				issue(t, t.DestinationWarehouseID, "tránsito recibido sin recepción en destino",
					"recepción vigente", "ninguna")
			} else if !rec.Quantity.Equal(t.Quantity) {
				issue(t, t.DestinationWarehouseID, "recepción distinta a la cantidad en tránsito",
					t.Quantity.String(), rec.Quantity.String())
			}
		}
		if dep == nil {
			issue(t, t.SourceWarehouseID, "tránsito sin salida en origen", "salida vigente", "ninguna")
		} else if !dep.Quantity.Equal(t.Quantity) {
			issue(t, t.SourceWarehouseID, "salida distinta a la cantidad en tránsito",
				t.Quantity.String(), dep.Quantity.String())
		}
	}
	return out
}

// checkArchive saldos vigentes sin pallets ni bultos.
func checkArchive(st *lotState) []Issue {
	var out []Issue
	for _, b := range st.balances {
		if b.IsDeleted() || !b.Quantity.CountsZero() {
			continue
		}
		out = append(out, Issue{
			Check: inventory.CheckArchive, Severity: SeverityLow, Code: st.code, WarehouseID: b.WarehouseID,
			Target: inventory.TargetBalance, Message: "saldo en cero sin archivar",
			Expected: "archived", Actual: "active", Fixable: true,
		})
	}
	return out
}

func movementIDs(ms ...*entity.Movement) string {
	var ids []string
	for _, m := range ms {
		if m != nil {
			ids = append(ids, m.ID)
		}
	}
	return strings.Join(ids, ",")
}

func describe(d entity.LotDetails) string {
	return fmt.Sprintf("customs=%q export_mode=%q service_staff=%q", d.Customs, d.ExportMode, d.ServiceStaff)
}
