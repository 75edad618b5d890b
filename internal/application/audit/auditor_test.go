package audit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lot-ledger/internal/application/audit"
	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/application/lock"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/infrastructure/memory"
)

var prefixes = map[string]string{"wh-ph": "PH", "wh-bg": "BG"}

type recordingSink struct {
	mu          sync.Mutex
	corrections []inventory.Correction
}

func (s *recordingSink) Publish(_ context.Context, c []inventory.Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrections = append(s.corrections, c...)
	return nil
}

type env struct {
	store   *memory.Store
	gen     *inventory.CodeGenerator
	ledger  *inventory.Ledger
	auditor *audit.Auditor
	sink    *recordingSink
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore(0, nil)
	for id, prefix := range prefixes {
		require.NoError(t, store.Warehouses().Create(ctx, &entity.Warehouse{ID: id, Name: id, Prefix: prefix}))
	}
	locks := lock.New(lock.Config{Timeout: time.Second})
	gen := inventory.NewCodeGenerator(store.Codes(), inventory.NewPrefixTable(prefixes), locks,
		inventory.CodeGeneratorConfig{MaxAttempts: 3, Backoff: time.Millisecond}, nil, nil)
	ledger := inventory.NewLedger(memory.NewTxRunner(store), locks, store.Stores(), gen)
	sink := &recordingSink{}
	return &env{
		store:   store,
		gen:     gen,
		ledger:  ledger,
		auditor: audit.NewAuditor(store.Stores(), ledger, audit.WithSink(sink)),
		sink:    sink,
	}
}

func (e *env) code(t *testing.T, customer string) string {
	t.Helper()
	c, err := e.gen.Generate(context.Background(), inventory.GenerateCodeInput{
		WarehouseID: "wh-ph", CustomerName: customer, Plate: "AB1234", OpType: inventory.OpTypeInbound,
		OpDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return c.String()
}

func pallets(n int64) entity.Quantity {
	return entity.Quantity{Pallets: n, Packages: n, Weight: decimal.NewFromInt(n * 100), Volume: decimal.NewFromInt(n)}
}

func (e *env) inbound(t *testing.T, code string, n int64) *inventory.MovementResult {
	t.Helper()
	res, err := e.ledger.ApplyInbound(context.Background(), inventory.MovementInput{
		Code: code, WarehouseID: "wh-ph", Quantity: pallets(n),
		Details: entity.LotDetails{Customs: "DUA-77", ExportMode: "FOB", ServiceStaff: "ana"},
	})
	require.NoError(t, err)
	return res
}

// assertBalanced theoretical == actual en cada bodega de cada código.
func (e *env) assertBalanced(t *testing.T, codes ...string) {
	t.Helper()
	ctx := context.Background()
	for _, code := range codes {
		theo, err := e.ledger.TheoreticalBalance(ctx, code)
		require.NoError(t, err)
		actual, err := e.ledger.ListBalances(ctx, code)
		require.NoError(t, err)
		seen := make(map[string]bool)
		for _, b := range actual {
			seen[b.WarehouseID] = true
			assert.True(t, theo[b.WarehouseID].Equal(b.Quantity), "%s@%s: teórico %s real %s",
				code, b.WarehouseID, theo[b.WarehouseID], b.Quantity)
		}
		for wh, q := range theo {
			if !seen[wh] {
				assert.True(t, q.IsZero(), "%s@%s sin fila y teórico %s", code, wh, q)
			}
		}
	}
}

func TestAuditor_LibroLimpioSinIncidencias(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	code := e.code(t, "ACME")
	e.inbound(t, code, 10)
	_, err := e.ledger.ApplyOutbound(ctx, inventory.MovementInput{
		Code: code, WarehouseID: "wh-ph", Quantity: pallets(2), Counterpart: "cliente final",
	})
	require.NoError(t, err)
	dep, err := e.ledger.DepartTransit(ctx, inventory.MovementInput{
		Code: code, WarehouseID: "wh-ph", DestinationWarehouseID: "wh-bg", Quantity: pallets(3),
	})
	require.NoError(t, err)
	_, err = e.ledger.ArriveTransit(ctx, dep.Transit.ID, "test")
	require.NoError(t, err)
	_, err = e.ledger.CompleteTransit(ctx, dep.Transit.ID)
	require.NoError(t, err)

	report, err := e.auditor.RunFullCheck(ctx, audit.Options{AutoRepair: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Codes)
	assert.Zero(t, report.Total, "%+v", report.Issues)
	assert.Empty(t, e.sink.corrections)
}

func TestAuditor_SalidaConDetallesParcialesNoGeneraIncidencias(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	code := e.code(t, "ACME")
	e.inbound(t, code, 5)

	out, err := e.ledger.ApplyOutbound(ctx, inventory.MovementInput{
		Code: code, WarehouseID: "wh-ph", Quantity: pallets(1), Counterpart: "cliente final",
		Details: entity.LotDetails{ServiceStaff: "ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.LotDetails{CustomerName: "ACME", Customs: "DUA-77", ExportMode: "FOB", ServiceStaff: "ana"},
		out.Movement.Details)

	dep, err := e.ledger.DepartTransit(ctx, inventory.MovementInput{
		Code: code, WarehouseID: "wh-ph", DestinationWarehouseID: "wh-bg", Quantity: pallets(1),
		Details: entity.LotDetails{Customs: "DUA-77"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ACME", dep.Transit.Details.CustomerName)
	assert.Equal(t, "FOB", dep.Transit.Details.ExportMode)

	report, err := e.auditor.RunFullCheck(ctx, audit.Options{AutoRepair: true})
	require.NoError(t, err)
	assert.Zero(t, report.Total, "%+v", report.Issues)
	assert.Empty(t, e.sink.corrections)
}

func TestAuditor_DetectaYReparaDeriva(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	acme := e.code(t, "ACME")
	in := e.inbound(t, acme, 10)
	out, err := e.ledger.ApplyOutbound(ctx, inventory.MovementInput{
		Code: acme, WarehouseID: "wh-ph", Quantity: pallets(2), Counterpart: "cliente final",
	})
	require.NoError(t, err)

	// Deriva de saldo.
	b, err := e.store.Balances().Get(ctx, acme, "wh-ph")
	require.NoError(t, err)
	b.Quantity.Pallets = 7
	require.NoError(t, e.store.Balances().Save(ctx, b))
	// Cliente distinto en el ingreso.
	m := *in.Movement
	m.Details.CustomerName = "Globex"
	require.NoError(t, e.store.Movements().Update(ctx, &m))
	// Datos descriptivos distintos en la salida.
	o := *out.Movement
	o.Details.Customs = "DUA-00"
	require.NoError(t, e.store.Movements().Update(ctx, &o))

	// Saldo en cero sin archivar de otro lote.
	initech := e.code(t, "Initech")
	require.NoError(t, e.store.Balances().Save(ctx, &entity.Balance{
		Code: initech, WarehouseID: "wh-ph", Details: entity.LotDetails{CustomerName: "Initech"}, LastUpdated: time.Now(),
	}))

	report, err := e.auditor.RunFullCheck(ctx, audit.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Codes)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.High)
	assert.Equal(t, 1, report.Medium)
	assert.Equal(t, 1, report.Low)
	assert.Zero(t, report.Repaired)
	assert.Equal(t, 4, report.Unresolved)
	checks := make(map[string]int)
	for _, is := range report.Issues {
		checks[is.Check]++
		assert.True(t, is.Fixable, "%+v", is)
	}
	assert.Equal(t, map[string]int{
		inventory.CheckCustomerName: 1,
		inventory.CheckBalance:      1,
		inventory.CheckDetails:      1,
		inventory.CheckArchive:      1,
	}, checks)

	report, err = e.auditor.RunFullCheck(ctx, audit.Options{AutoRepair: true})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Repaired)
	assert.Zero(t, report.Unresolved)
	assert.Len(t, report.Corrections, 4)
	assert.Len(t, e.sink.corrections, 4)
	e.assertBalanced(t, acme, initech)

	archived, err := e.ledger.GetBalance(ctx, initech, "wh-ph")
	require.NoError(t, err)
	assert.True(t, archived.Archived)

	report, err = e.auditor.RunFullCheck(ctx, audit.Options{AutoRepair: true})
	require.NoError(t, err)
	assert.Zero(t, report.Total, "%+v", report.Issues)
}

func TestAuditor_SaldoTeoricoNegativoQuedaSinResolver(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	code := e.code(t, "Hooli")

	// Salida sin ingreso: falta historial.
	require.NoError(t, e.store.Movements().Create(ctx, &entity.Movement{
		ID: uuid.NewString(), Kind: entity.MovementKindOutbound, Code: code, WarehouseID: "wh-ph",
		Quantity: pallets(3), Details: entity.LotDetails{CustomerName: "Hooli"},
		OccurredAt: time.Now(), CreatedAt: time.Now(),
	}))
	require.NoError(t, e.store.Balances().Save(ctx, &entity.Balance{
		Code: code, WarehouseID: "wh-bg", Quantity: pallets(4), Details: entity.LotDetails{CustomerName: "Hooli"},
	}))

	report, err := e.auditor.RunFullCheck(ctx, audit.Options{AutoRepair: true})
	require.NoError(t, err)
	require.Equal(t, 2, report.Total, "%+v", report.Issues)
	assert.Equal(t, 2, report.High)
	assert.Equal(t, 2, report.Unresolved)
	assert.Zero(t, report.Repaired)
	for _, is := range report.Issues {
		assert.Equal(t, inventory.CheckBalance, is.Check)
		assert.False(t, is.Fixable)
	}

	bg, err := e.ledger.GetBalance(ctx, code, "wh-bg")
	require.NoError(t, err)
	assert.Equal(t, int64(4), bg.Quantity.Pallets, "no se concilia con historial incompleto")
}

func TestAuditor_TransitoRecibidoSinRecepcion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	code := e.code(t, "ACME")
	e.inbound(t, code, 10)
	dep, err := e.ledger.DepartTransit(ctx, inventory.MovementInput{
		Code: code, WarehouseID: "wh-ph", DestinationWarehouseID: "wh-bg", Quantity: pallets(4),
	})
	require.NoError(t, err)

	tr := *dep.Transit
	tr.Status = entity.TransitStatusReceived
	require.NoError(t, e.store.Transits().Update(ctx, &tr))

	report, err := e.auditor.RunFullCheck(ctx, audit.Options{AutoRepair: true})
	require.NoError(t, err)
	require.Equal(t, 1, report.Total, "%+v", report.Issues)
	is := report.Issues[0]
	assert.Equal(t, inventory.CheckTransit, is.Check)
	assert.Equal(t, audit.SeverityHigh, is.Severity)
	assert.Equal(t, dep.Transit.ID, is.TargetID)
	assert.False(t, is.Fixed)
	assert.Equal(t, 1, report.Unresolved)
}

func TestAuditor_FixCustomerNameIssues(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	code := e.code(t, "ACME")
	e.inbound(t, code, 10)
	dep, err := e.ledger.DepartTransit(ctx, inventory.MovementInput{
		Code: code, WarehouseID: "wh-ph", DestinationWarehouseID: "wh-bg", Quantity: pallets(4),
	})
	require.NoError(t, err)

	b, err := e.store.Balances().Get(ctx, code, "wh-ph")
	require.NoError(t, err)
	b.Details.CustomerName = "acme corp"
	require.NoError(t, e.store.Balances().Save(ctx, b))
	tr := *dep.Transit
	tr.Details.CustomerName = "Otro"
	require.NoError(t, e.store.Transits().Update(ctx, &tr))

	n, err := e.auditor.FixCustomerNameIssues(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, e.sink.corrections, 2)

	got, err := e.ledger.GetBalance(ctx, code, "wh-ph")
	require.NoError(t, err)
	assert.Equal(t, "ACME", got.CustomerName)

	n, err = e.auditor.FixCustomerNameIssues(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
