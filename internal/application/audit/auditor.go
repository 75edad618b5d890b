// Package audit detecta deriva entre el historial de movimientos y los saldos y,
// cuando se le pide, la repara a través de las operaciones correctivas del libro.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/pkg/logger"
	"github.com/jhoicas/lot-ledger/pkg/metrics"
)

// Severity gravedad de una incidencia.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Issue incidencia detectada para un código.
type Issue struct {
	Check       string   `json:"check"`
	Severity    Severity `json:"severity"`
	Code        string   `json:"code"`
	WarehouseID string   `json:"warehouse_id,omitempty"`
	Target      string   `json:"target,omitempty"`
	TargetID    string   `json:"target_id,omitempty"`
	Message     string   `json:"message"`
	Expected    string   `json:"expected,omitempty"`
	Actual      string   `json:"actual,omitempty"`
	Fixable     bool     `json:"fixable"`
	Fixed       bool     `json:"fixed"`
	Resolution  string   `json:"resolution,omitempty"`
}

// Report resultado de una auditoría completa.
type Report struct {
	Codes       int                    `json:"codes"`
	Total       int                    `json:"total"`
	High        int                    `json:"high"`
	Medium      int                    `json:"medium"`
	Low         int                    `json:"low"`
	Repaired    int                    `json:"repaired"`
	Unresolved  int                    `json:"unresolved"`
	Issues      []Issue                `json:"issues"`
	Corrections []inventory.Correction `json:"corrections,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
}

func (r *Report) add(is ...Issue) {
	for _, i := range is {
		r.Total++
		switch i.Severity {
		case SeverityHigh:
			r.High++
		case SeverityMedium:
			r.Medium++
		default:
			r.Low++
		}
		r.Issues = append(r.Issues, i)
	}
}

func (r *Report) tally() {
	r.Repaired, r.Unresolved = 0, 0
	for _, i := range r.Issues {
		if i.Fixed {
			r.Repaired++
		} else {
			r.Unresolved++
		}
	}
}

// Options opciones de una corrida.
type Options struct {
	AutoRepair bool
}

// Repairer operaciones correctivas del libro; cada una toma el bloqueo del código y
// vuelve a derivar el problema antes de escribir.
type Repairer interface {
	ReconcileBalances(ctx context.Context, code string) ([]inventory.Correction, error)
	FixCustomerName(ctx context.Context, code string) ([]inventory.Correction, error)
	SyncLotDetails(ctx context.Context, code string) ([]inventory.Correction, error)
	ArchiveEmptyBalances(ctx context.Context, code string) ([]inventory.Correction, error)
}

// CorrectionSink destino opcional de las correcciones aplicadas (ej. Kafka).
type CorrectionSink interface {
	Publish(ctx context.Context, corrections []inventory.Correction) error
}

// Auditor recorre todos los códigos y compara historial, saldos y tránsitos.
type Auditor struct {
	stores   inventory.Stores
	repairer Repairer
	sink     CorrectionSink
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configura dependencias opcionales.
type Option func(*Auditor)

// WithLogger asigna el logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Auditor) { a.log = l.Component("audit") }
}

// WithMetrics asigna las métricas.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Auditor) { a.metrics = m }
}

// WithSink publica las correcciones aplicadas.
func WithSink(s CorrectionSink) Option {
	return func(a *Auditor) { a.sink = s }
}

// NewAuditor lee desde stores y repara a través de repairer.
func NewAuditor(stores inventory.Stores, repairer Repairer, opts ...Option) *Auditor {
	a := &Auditor{
		stores:   stores,
		repairer: repairer,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// lotState lectura sin bloqueo de todo lo registrado para un código.
type lotState struct {
	code      string
	balances  []*entity.Balance
	movements []*entity.Movement
	transits  []*entity.Transit
}

// RunFullCheck ejecuta los cinco chequeos sobre cada código con movimientos o saldos.
// Con AutoRepair aplica las reparaciones seguras; lo que no puede reparar queda sin resolver.
func (a *Auditor) RunFullCheck(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{StartedAt: a.now(), Issues: []Issue{}}
	codes, err := a.codes(ctx)
	if err != nil {
		return nil, err
	}
	report.Codes = len(codes)

	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st, err := a.load(ctx, code)
		if err != nil {
			return nil, err
		}
		issues := checkLot(st)
		if opts.AutoRepair && len(issues) > 0 {
			report.Corrections = append(report.Corrections, a.repair(ctx, code, issues)...)
		}
		report.add(issues...)
	}
	report.tally()
	report.FinishedAt = a.now()

	a.metrics.SetAuditIssues(report.High, report.Medium, report.Low, report.FinishedAt.Sub(report.StartedAt))
	a.publish(ctx, report.Corrections)
	a.log.Info().Int("codes", report.Codes).Int("total", report.Total).Int("high", report.High).
		Int("medium", report.Medium).Int("low", report.Low).Int("repaired", report.Repaired).
		Int("unresolved", report.Unresolved).Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("auditoría finalizada")
	return report, nil
}

// FixCustomerNameIssues repara solo el cliente y devuelve cuántos registros se corrigieron.
func (a *Auditor) FixCustomerNameIssues(ctx context.Context) (int, error) {
	codes, err := a.codes(ctx)
	if err != nil {
		return 0, err
	}
	var applied []inventory.Correction
	for _, code := range codes {
		st, err := a.load(ctx, code)
		if err != nil {
			return len(applied), err
		}
		if !hasFixable(checkCustomerName(st)) {
			continue
		}
		c, err := a.repairer.FixCustomerName(ctx, code)
		if err != nil {
			return len(applied), fmt.Errorf("fix customer name %s: %w", code, err)
		}
		applied = append(applied, c...)
	}
	a.publish(ctx, applied)
	a.log.Info().Int("codes", len(codes)).Int("fixed", len(applied)).Msg("clientes corregidos")
	return len(applied), nil
}

func (a *Auditor) codes(ctx context.Context) ([]string, error) {
	fromBalances, err := a.stores.Balances.ListCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list balance codes: %w", err)
	}
	fromMovements, err := a.stores.Movements.ListCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list movement codes: %w", err)
	}
	set := make(map[string]struct{}, len(fromBalances)+len(fromMovements))
	for _, c := range append(fromBalances, fromMovements...) {
		set[c] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (a *Auditor) load(ctx context.Context, code string) (*lotState, error) {
	st := &lotState{code: code}
	var err error
	if st.balances, err = a.stores.Balances.ListByCode(ctx, code); err != nil {
		return nil, fmt.Errorf("load balances %s: %w", code, err)
	}
	if st.movements, err = a.stores.Movements.ListByCode(ctx, code); err != nil {
		return nil, fmt.Errorf("load movements %s: %w", code, err)
	}
	if st.transits, err = a.stores.Transits.ListByCode(ctx, code); err != nil {
		return nil, fmt.Errorf("load transits %s: %w", code, err)
	}
	return st, nil
}

// repairOrder el cliente y los datos descriptivos primero: la conciliación reactiva saldos
// con los datos del ingreso y el archivado solo queda para filas en cero.
var repairOrder = []string{
	inventory.CheckCustomerName,
	inventory.CheckDetails,
	inventory.CheckBalance,
	inventory.CheckArchive,
}

func (a *Auditor) repairFn(check string) func(ctx context.Context, code string) ([]inventory.Correction, error) {
	switch check {
	case inventory.CheckCustomerName:
		return a.repairer.FixCustomerName
	case inventory.CheckDetails:
		return a.repairer.SyncLotDetails
	case inventory.CheckBalance:
		return a.repairer.ReconcileBalances
	case inventory.CheckArchive:
		return a.repairer.ArchiveEmptyBalances
	}
	return nil
}

// repair corre una reparación por chequeo con incidencias reparables y marca el resultado.
func (a *Auditor) repair(ctx context.Context, code string, issues []Issue) []inventory.Correction {
	var applied []inventory.Correction
	for _, check := range repairOrder {
		idx := fixableIndexes(issues, check)
		if len(idx) == 0 {
			continue
		}
		corrections, err := a.repairFn(check)(ctx, code)
		for _, i := range idx {
			switch {
			case err != nil:
				issues[i].Resolution = err.Error()
			case len(corrections) == 0:
				issues[i].Fixed = true
				issues[i].Resolution = "sin cambios bajo bloqueo"
			default:
				issues[i].Fixed = true
				issues[i].Resolution = fmt.Sprintf("%d correcciones", len(corrections))
			}
		}
		if err != nil {
			ev := a.log.Error()
			if errors.Is(err, domain.ErrConsistency) {
				ev = a.log.Warn()
			}
			ev.Err(err).Str("code", code).Str("check", check).Msg("reparación no aplicada")
			continue
		}
		for range corrections {
			a.metrics.IncAuditRepair(check)
		}
		applied = append(applied, corrections...)
	}
	return applied
}

func (a *Auditor) publish(ctx context.Context, corrections []inventory.Correction) {
	if a.sink == nil || len(corrections) == 0 {
		return
	}
	if err := a.sink.Publish(ctx, corrections); err != nil {
		a.log.Error().Err(err).Int("corrections", len(corrections)).Msg("no se pudieron publicar las correcciones")
	}
}

func fixableIndexes(issues []Issue, check string) []int {
	var out []int
	for i, is := range issues {
		if is.Check == check && is.Fixable {
			out = append(out, i)
		}
	}
	return out
}

func hasFixable(issues []Issue) bool {
	for _, i := range issues {
		if i.Fixable {
			return true
		}
	}
	return false
}
