package inventory

import (
	"context"

	"github.com/jhoicas/lot-ledger/internal/domain/repository"
)

// Tx repositorios atados a una transacción de BD.
type Tx interface {
	Balances() repository.BalanceRepository
	Movements() repository.MovementRepository
	Transits() repository.TransitRepository
	Codes() repository.LotCodeRepository
	// LockCodes toma el bloqueo de almacenamiento de cada código (válido entre procesos).
	// Debe llamarse con los códigos ya ordenados.
	LockCodes(ctx context.Context, codes ...string) error
	// Savepoint ejecuta fn en un punto de guardado anidado: si fn falla solo se deshace lo suyo
	// y la transacción externa sigue viva.
	Savepoint(ctx context.Context, fn func(tx Tx) error) error
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Cualquier error hace Rollback; si fn termina bien hace Commit. Garantiza atomicidad para el libro.
type TxRunner interface {
	Run(ctx context.Context, fn func(tx Tx) error) error
}

// Locker serialización en proceso por clave (ver lock.Coordinator).
type Locker interface {
	WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

// Stores repositorios de lectura fuera de transacción (pueden ver valores desactualizados;
// nunca se usan para alimentar una escritura).
type Stores struct {
	Balances   repository.BalanceRepository
	Movements  repository.MovementRepository
	Transits   repository.TransitRepository
	Codes      repository.LotCodeRepository
	Warehouses repository.WarehouseRepository
}
