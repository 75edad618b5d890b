package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/domain/repository"
)

var _ repository.LotCodeRepository = (*LotCodeRepo)(nil)

// LotCodeRepo registro de códigos emitidos sobre PostgreSQL.
type LotCodeRepo struct {
	q Querier
}

// NewLotCodeRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLotCodeRepository(q Querier) *LotCodeRepo {
	return &LotCodeRepo{q: q}
}

// MaxSequence mayor secuencia emitida para el alcance (consulta LIKE por prefijo).
func (r *LotCodeRepo) MaxSequence(ctx context.Context, scope string) (int, error) {
	var last int
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM lot_codes WHERE code LIKE $1 ESCAPE '\'`,
		escapeLike(scope)+"%",
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("max sequence: %w", mapError(err))
	}
	return last, nil
}

// Insert registra el código. La clave primaria decide entre escritores concurrentes.
func (r *LotCodeRepo) Insert(ctx context.Context, c *entity.LotCode) error {
	query := `
		INSERT INTO lot_codes (code, scope, warehouse_id, customer_name, plate, op_date, sequence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		c.Code, c.Scope, c.WarehouseID, c.CustomerName, c.Plate, c.OpDate, c.Sequence, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: código %s", domain.ErrDuplicate, c.Code)
		}
		return fmt.Errorf("insert lot code: %w", mapError(err))
	}
	return nil
}

// Get obtiene un código registrado; nil si no existe.
func (r *LotCodeRepo) Get(ctx context.Context, code string) (*entity.LotCode, error) {
	query := `
		SELECT code, scope, warehouse_id, customer_name, plate, op_date, sequence, created_at
		FROM lot_codes WHERE code = $1`
	var c entity.LotCode
	err := r.q.QueryRow(ctx, query, code).Scan(
		&c.Code, &c.Scope, &c.WarehouseID, &c.CustomerName, &c.Plate, &c.OpDate, &c.Sequence, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lot code: %w", mapError(err))
	}
	return &c, nil
}
