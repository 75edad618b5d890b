package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/domain/repository"
	"github.com/jhoicas/lot-ledger/pkg/logger"
	"github.com/jhoicas/lot-ledger/pkg/metrics"
)

// Ensure TxRunner implements inventory.TxRunner.
var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool        *pgxpool.Pool
	timeout     time.Duration
	lockTimeout time.Duration
	log         *logger.Logger
	metrics     *metrics.Metrics
}

// NewTxRunner construye el runner con el pool. timeout acota la transacción completa;
// lockTimeout acota cada espera por filas bloqueadas (0 = sin límite propio).
func NewTxRunner(pool *pgxpool.Pool, timeout, lockTimeout time.Duration, log *logger.Logger, m *metrics.Metrics) *TxRunner {
	if log == nil {
		log = logger.Nop()
	}
	return &TxRunner{pool: pool, timeout: timeout, lockTimeout: lockTimeout, log: log.Component("tx"), metrics: m}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(tx inventory.Tx) error) (err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	r.log.Debug().Time("start", start).Msg("tx iniciada")
	defer func() {
		d := time.Since(start)
		outcome := "commit"
		ev := r.log.Debug()
		if err != nil {
			outcome = "rollback"
			ev = r.log.Warn().Err(err)
		}
		r.metrics.ObserveTx(outcome, d)
		ev.Time("end", time.Now()).Dur("duration", d).Str("outcome", outcome).Msg("tx finalizada")
	}()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", mapError(err))
	}
	// El rollback no debe depender del ctx de la operación, que puede haber expirado.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if r.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock_timeout: %w", mapError(err))
		}
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapError(err))
	}
	return nil
}

// pgTx implementa inventory.Tx sobre pgx.Tx. Un pgx.Tx anidado es un SAVEPOINT.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Balances() repository.BalanceRepository   { return NewBalanceRepository(t.tx) }
func (t *pgTx) Movements() repository.MovementRepository { return NewMovementRepository(t.tx) }
func (t *pgTx) Transits() repository.TransitRepository   { return NewTransitRepository(t.tx) }
func (t *pgTx) Codes() repository.LotCodeRepository      { return NewLotCodeRepository(t.tx) }

// LockCodes toma un advisory lock de transacción por código; se libera con Commit/Rollback.
// Cubre también filas que todavía no existen, que SELECT FOR UPDATE no puede bloquear.
func (t *pgTx) LockCodes(ctx context.Context, codes ...string) error {
	for _, code := range codes {
		if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, code); err != nil {
			return fmt.Errorf("advisory lock %s: %w", code, mapError(err))
		}
	}
	return nil
}

// Savepoint ejecuta fn en un SAVEPOINT; si fn falla se vuelve a él y la tx externa sigue usable.
func (t *pgTx) Savepoint(ctx context.Context, fn func(tx inventory.Tx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", mapError(err))
	}
	if err := fn(&pgTx{tx: sp}); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", mapError(err))
	}
	return nil
}
