package repository

import (
	"context"
	"time"

	"github.com/jhoicas/lot-ledger/internal/domain/entity"
)

// MovementRepository define el puerto de persistencia para movimientos del libro.
type MovementRepository interface {
	Create(ctx context.Context, m *entity.Movement) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Movement, error)
	// ListByCode devuelve los movimientos vigentes (no reversados) ordenados por fecha.
	ListByCode(ctx context.Context, code string) ([]*entity.Movement, error)
	// Update persiste cantidades y campos descriptivos de un movimiento existente.
	Update(ctx context.Context, m *entity.Movement) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	ListCodes(ctx context.Context) ([]string, error)
	Rekey(ctx context.Context, oldCode, newCode string) error
}
