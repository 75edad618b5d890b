package repository

import (
	"context"

	"github.com/jhoicas/lot-ledger/internal/domain/entity"
)

// TransitRepository define el puerto de persistencia para tránsitos entre bodegas.
type TransitRepository interface {
	Create(ctx context.Context, t *entity.Transit) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Transit, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Transit, error)
	Update(ctx context.Context, t *entity.Transit) error
	ListByCode(ctx context.Context, code string) ([]*entity.Transit, error)
	Rekey(ctx context.Context, oldCode, newCode string) error
}
