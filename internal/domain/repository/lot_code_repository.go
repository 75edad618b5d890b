package repository

import (
	"context"

	"github.com/jhoicas/lot-ledger/internal/domain/entity"
)

// LotCodeRepository registro de códigos emitidos.
type LotCodeRepository interface {
	// MaxSequence devuelve la mayor secuencia registrada para el alcance (0 si no hay).
	MaxSequence(ctx context.Context, scope string) (int, error)
	// Insert registra un código; si ya existe devuelve domain.ErrDuplicate.
	Insert(ctx context.Context, c *entity.LotCode) error
	// Get devuelve nil, nil si no existe.
	Get(ctx context.Context, code string) (*entity.LotCode, error)
}
