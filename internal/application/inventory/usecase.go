package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jhoicas/lot-ledger/internal/application/lock"
	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/domain/inventory"
	"github.com/jhoicas/lot-ledger/pkg/logger"
	"github.com/jhoicas/lot-ledger/pkg/metrics"
)

// Ledger casos de uso del libro de inventario. Toda mutación de saldos pasa por aquí:
// bloqueo por código → transacción → bloqueo de almacenamiento → validación contra el
// estado bloqueado → escritura → Commit → liberación. La unidad completa se reintenta
// ante contención.
type Ledger struct {
	txRunner TxRunner
	locks    Locker
	stores   Stores
	codes    *CodeGenerator
	retry    RetryPolicy
	validate *validator.Validate
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// LedgerOption configura dependencias opcionales.
type LedgerOption func(*Ledger)

// WithLogger asigna el logger.
func WithLogger(log *logger.Logger) LedgerOption {
	return func(l *Ledger) { l.log = log.Component("ledger") }
}

// WithMetrics asigna las métricas.
func WithMetrics(m *metrics.Metrics) LedgerOption {
	return func(l *Ledger) { l.metrics = m }
}

// WithRetryPolicy reemplaza la política de reintentos.
func WithRetryPolicy(p RetryPolicy) LedgerOption {
	return func(l *Ledger) { l.retry = p }
}

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// NewLedger construye el caso de uso.
func NewLedger(txRunner TxRunner, locks Locker, stores Stores, codes *CodeGenerator, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		txRunner: txRunner,
		locks:    locks,
		stores:   stores,
		codes:    codes,
		retry:    DefaultRetryPolicy(),
		validate: validator.New(),
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// mutate ejecuta fn como unidad atómica sobre codes, reintentando ante contención.
func (l *Ledger) mutate(ctx context.Context, op string, codes []string, fn func(ctx context.Context, tx Tx) error) error {
	keys := lock.SortedUnique(codes)
	err := retry(ctx, l.retry, domain.IsRetryable, domain.ErrConcurrencyExhausted,
		func(err error, wait time.Duration) {
			l.metrics.IncRetry(op, retryReason(err))
			l.log.Warn().Err(err).Str("op", op).Strs("codes", keys).Dur("wait", wait).Msg("contención, reintentando")
		},
		func() error {
			return l.locks.WithLocks(ctx, keys, func(ctx context.Context) error {
				return l.txRunner.Run(ctx, func(tx Tx) error {
					if err := tx.LockCodes(ctx, keys...); err != nil {
						return err
					}
					return fn(ctx, tx)
				})
			})
		})
	if errors.Is(err, domain.ErrConcurrencyExhausted) {
		l.log.Error().Err(err).Str("op", op).Strs("codes", keys).Msg("reintentos agotados")
	}
	return err
}

func retryReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, domain.ErrDeadlock):
		return "deadlock"
	case errors.Is(err, domain.ErrVersionConflict):
		return "version_conflict"
	}
	return "other"
}

// requireWarehouse verifica que la bodega exista.
func (l *Ledger) requireWarehouse(ctx context.Context, id string) error {
	wh, err := l.stores.Warehouses.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if wh == nil {
		return fmt.Errorf("%w: bodega %s", domain.ErrNotFound, id)
	}
	return nil
}

// GetBalance saldo actual (lectura sin bloqueo). Un saldo inexistente se devuelve en cero.
func (l *Ledger) GetBalance(ctx context.Context, code, warehouseID string) (entity.BalanceSnapshot, error) {
	if code == "" || warehouseID == "" {
		return entity.BalanceSnapshot{}, fmt.Errorf("%w: código y bodega son obligatorios", domain.ErrInvalidInput)
	}
	b, err := l.stores.Balances.Get(ctx, code, warehouseID)
	if err != nil {
		return entity.BalanceSnapshot{}, err
	}
	return b.Snapshot(), nil
}

// ListBalances saldos del código en todas las bodegas, incluidos los archivados.
func (l *Ledger) ListBalances(ctx context.Context, code string) ([]entity.BalanceSnapshot, error) {
	rows, err := l.stores.Balances.ListByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	out := make([]entity.BalanceSnapshot, 0, len(rows))
	for _, b := range rows {
		out = append(out, b.Snapshot())
	}
	return out, nil
}

// TheoreticalBalance reproduce el historial vigente del código y devuelve el saldo por bodega.
func (l *Ledger) TheoreticalBalance(ctx context.Context, code string) (map[string]entity.Quantity, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: código obligatorio", domain.ErrInvalidInput)
	}
	movs, err := l.stores.Movements.ListByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return inventory.TheoreticalBalance(movs), nil
}

// ListMovements historial vigente del código.
func (l *Ledger) ListMovements(ctx context.Context, code string) ([]*entity.Movement, error) {
	return l.stores.Movements.ListByCode(ctx, code)
}

// GetTransit devuelve el tránsito o ErrNotFound.
func (l *Ledger) GetTransit(ctx context.Context, id string) (*entity.Transit, error) {
	t, err := l.stores.Transits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: tránsito %s", domain.ErrNotFound, id)
	}
	return t, nil
}

// archive borrado lógico de un saldo sin conteos: se limpian los campos descriptivos y se conserva el cliente.
func archive(b *entity.Balance, at time.Time) {
	b.DeletedAt = &at
	b.Details = entity.LotDetails{CustomerName: b.Details.CustomerName}
}

// revive reactiva un saldo archivado o completa sus datos con los del movimiento que ingresa.
func revive(b *entity.Balance, details entity.LotDetails) {
	switch {
	case b.IsDeleted() || b.IsNew():
		b.DeletedAt = nil
		b.Details = details
	default:
		if b.Details.CustomerName == "" {
			b.Details.CustomerName = details.CustomerName
		}
		if !b.Details.HasDescriptive() {
			b.Details = b.Details.WithDescriptiveFrom(details)
		}
	}
}

// settle archiva o reactiva el saldo según sus conteos tras un cambio.
func settle(b *entity.Balance, details entity.LotDetails, at time.Time) {
	if b.Quantity.CountsZero() {
		if !b.IsDeleted() {
			archive(b, at)
		}
		return
	}
	revive(b, details)
}
