package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/lot-ledger/internal/application/inventory"
)

// NewStores repositorios de lectura sobre el pool (fuera de transacción).
func NewStores(pool *pgxpool.Pool) inventory.Stores {
	return inventory.Stores{
		Balances:   NewBalanceRepository(pool),
		Movements:  NewMovementRepository(pool),
		Transits:   NewTransitRepository(pool),
		Codes:      NewLotCodeRepository(pool),
		Warehouses: NewWarehouseRepository(pool),
	}
}
