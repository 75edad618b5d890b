// Package memory almacenamiento en memoria con transacciones por instantánea.
//
// Una transacción trabaja sobre una copia del estado confirmado y la publica al confirmar.
// Las transacciones se serializan entre sí; las lecturas fuera de transacción ven siempre
// el último estado confirmado.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/domain/repository"
	"github.com/jhoicas/lot-ledger/pkg/logger"
)

type balanceKey struct {
	code        string
	warehouseID string
}

type state struct {
	balances      map[balanceKey]entity.Balance
	movements     map[string]entity.Movement
	movementOrder []string
	transits      map[string]entity.Transit
	codes         map[string]entity.LotCode
	warehouses    map[string]entity.Warehouse
}

func newState() *state {
	return &state{
		balances:   make(map[balanceKey]entity.Balance),
		movements:  make(map[string]entity.Movement),
		transits:   make(map[string]entity.Transit),
		codes:      make(map[string]entity.LotCode),
		warehouses: make(map[string]entity.Warehouse),
	}
}

// clone copia profunda: las entidades se guardan por valor y sus punteros a tiempo son inmutables.
func (s *state) clone() *state {
	c := &state{
		balances:      make(map[balanceKey]entity.Balance, len(s.balances)),
		movements:     make(map[string]entity.Movement, len(s.movements)),
		movementOrder: append([]string(nil), s.movementOrder...),
		transits:      make(map[string]entity.Transit, len(s.transits)),
		codes:         make(map[string]entity.LotCode, len(s.codes)),
		warehouses:    make(map[string]entity.Warehouse, len(s.warehouses)),
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.movements {
		c.movements[k] = v
	}
	for k, v := range s.transits {
		c.transits[k] = v
	}
	for k, v := range s.codes {
		c.codes[k] = v
	}
	for k, v := range s.warehouses {
		c.warehouses[k] = v
	}
	return c
}

// Store estado compartido del almacenamiento en memoria.
type Store struct {
	txMu      sync.Mutex
	mu        sync.RWMutex
	committed *state
	txTimeout time.Duration
	log       *logger.Logger
}

// NewStore crea un almacenamiento vacío. txTimeout 0 = sin límite.
func NewStore(txTimeout time.Duration, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{committed: newState(), txTimeout: txTimeout, log: log.Component("memory")}
}

func (s *Store) current() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

func (s *Store) publish(st *state) {
	s.mu.Lock()
	s.committed = st
	s.mu.Unlock()
}

// committedView acceso de solo lectura al último estado confirmado; las escrituras
// sueltas se confirman al instante como una transacción de una sola operación.
type committedView struct{ s *Store }

func (v committedView) read() *state { return v.s.current() }

func (v committedView) write(fn func(st *state) error) error {
	v.s.txMu.Lock()
	defer v.s.txMu.Unlock()
	work := v.s.current().clone()
	if err := fn(work); err != nil {
		return err
	}
	v.s.publish(work)
	return nil
}

// txView acceso al estado de trabajo de una transacción abierta.
type txView struct{ st *state }

func (v txView) read() *state { return v.st }

func (v txView) write(fn func(st *state) error) error { return fn(v.st) }

type view interface {
	read() *state
	write(fn func(st *state) error) error
}

// Balances repositorio de saldos sobre el estado confirmado.
func (s *Store) Balances() repository.BalanceRepository {
	return &balanceRepo{v: committedView{s}}
}

// Movements repositorio de movimientos sobre el estado confirmado.
func (s *Store) Movements() repository.MovementRepository {
	return &movementRepo{v: committedView{s}}
}

// Transits repositorio de tránsitos sobre el estado confirmado.
func (s *Store) Transits() repository.TransitRepository {
	return &transitRepo{v: committedView{s}}
}

// Codes registro de códigos sobre el estado confirmado.
func (s *Store) Codes() repository.LotCodeRepository {
	return &lotCodeRepo{v: committedView{s}}
}

// Warehouses repositorio de bodegas sobre el estado confirmado.
func (s *Store) Warehouses() repository.WarehouseRepository {
	return &warehouseRepo{v: committedView{s}}
}

// Stores repositorios de lectura para el libro.
func (s *Store) Stores() inventory.Stores {
	return inventory.Stores{
		Balances:   s.Balances(),
		Movements:  s.Movements(),
		Transits:   s.Transits(),
		Codes:      s.Codes(),
		Warehouses: s.Warehouses(),
	}
}

// TxRunner implementa inventory.TxRunner sobre el Store.
type TxRunner struct{ s *Store }

// NewTxRunner construye el runner.
func NewTxRunner(s *Store) *TxRunner { return &TxRunner{s: s} }

// Run ejecuta fn sobre una copia del estado y la publica solo si fn termina sin error
// y el contexto sigue vigente.
func (r *TxRunner) Run(ctx context.Context, fn func(tx inventory.Tx) error) (err error) {
	if r.s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.s.txTimeout)
		defer cancel()
	}

	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()

	start := time.Now()
	r.s.log.Debug().Time("start", start).Msg("tx iniciada")
	defer func() {
		ev := r.s.log.Debug()
		if err != nil {
			ev = r.s.log.Warn().Err(err)
		}
		ev.Time("end", time.Now()).Dur("duration", time.Since(start)).Bool("committed", err == nil).Msg("tx finalizada")
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := r.s.current().clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("tx abortada antes del commit: %w", err)
	}
	r.s.publish(work)
	return nil
}

type memTx struct{ st *state }

func (t *memTx) Balances() repository.BalanceRepository   { return &balanceRepo{v: txView{t.st}} }
func (t *memTx) Movements() repository.MovementRepository { return &movementRepo{v: txView{t.st}} }
func (t *memTx) Transits() repository.TransitRepository   { return &transitRepo{v: txView{t.st}} }
func (t *memTx) Codes() repository.LotCodeRepository      { return &lotCodeRepo{v: txView{t.st}} }

// LockCodes no hace nada: las transacciones en memoria ya están serializadas.
func (t *memTx) LockCodes(ctx context.Context, codes ...string) error { return ctx.Err() }

// Savepoint restaura el estado previo si fn falla.
func (t *memTx) Savepoint(ctx context.Context, fn func(tx inventory.Tx) error) error {
	snap := t.st.clone()
	if err := fn(t); err != nil {
		*t.st = *snap
		return err
	}
	return nil
}
