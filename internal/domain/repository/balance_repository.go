package repository

import (
	"context"

	"github.com/jhoicas/lot-ledger/internal/domain/entity"
)

// BalanceRepository define el puerto para consultar/actualizar saldos por código+bodega.
// Las escrituras se hacen dentro de transacciones para garantizar consistencia.
type BalanceRepository interface {
	// Get devuelve el saldo; si no existe devuelve un saldo en cero con Version 0.
	Get(ctx context.Context, code, warehouseID string) (*entity.Balance, error)
	// GetForUpdate igual que Get pero bloquea la fila (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, code, warehouseID string) (*entity.Balance, error)
	// ListByCode devuelve todas las filas del código, incluidas las archivadas.
	ListByCode(ctx context.Context, code string) ([]*entity.Balance, error)
	// ListByCodeForUpdate igual que ListByCode bloqueando las filas.
	ListByCodeForUpdate(ctx context.Context, code string) ([]*entity.Balance, error)
	// Save inserta (Version 0) o actualiza comprobando la versión leída.
	// Una versión obsoleta devuelve domain.ErrVersionConflict. Incrementa b.Version.
	Save(ctx context.Context, b *entity.Balance) error
	// ListCodes devuelve los códigos distintos con al menos una fila.
	ListCodes(ctx context.Context) ([]string, error)
	// Rekey mueve las filas de oldCode a newCode.
	Rekey(ctx context.Context, oldCode, newCode string) error
}
