package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

const movementColumns = `id, kind, code, warehouse_id, pallets, packages, weight, volume, counterpart, transit_id,
	customer_name, customs, export_mode, service_staff, occurred_at, created_at, created_by, deleted_at`

// MovementRepo implementación de MovementRepository sobre PostgreSQL.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

func scanMovement(row pgx.Row) (*entity.Movement, error) {
	var m entity.Movement
	err := row.Scan(
		&m.ID, &m.Kind, &m.Code, &m.WarehouseID,
		&m.Quantity.Pallets, &m.Quantity.Packages, &m.Quantity.Weight, &m.Quantity.Volume,
		&m.Counterpart, &m.TransitID,
		&m.Details.CustomerName, &m.Details.Customs, &m.Details.ExportMode, &m.Details.ServiceStaff,
		&m.OccurredAt, &m.CreatedAt, &m.CreatedBy, &m.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create registra el movimiento.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	query := `INSERT INTO lot_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.Kind, m.Code, m.WarehouseID,
		m.Quantity.Pallets, m.Quantity.Packages, m.Quantity.Weight, m.Quantity.Volume,
		m.Counterpart, m.TransitID,
		m.Details.CustomerName, m.Details.Customs, m.Details.ExportMode, m.Details.ServiceStaff,
		m.OccurredAt, m.CreatedAt, m.CreatedBy, m.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", mapError(err))
	}
	return nil
}

// GetByID obtiene un movimiento (vigente o reversado); nil si no existe.
func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.Movement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, `SELECT `+movementColumns+` FROM lot_movements WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", mapError(err))
	}
	return m, nil
}

// ListByCode movimientos vigentes del código ordenados por fecha.
func (r *MovementRepo) ListByCode(ctx context.Context, code string) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM lot_movements
		WHERE code = $1 AND deleted_at IS NULL
		ORDER BY occurred_at, created_at, id`
	rows, err := r.q.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", mapError(err))
	}
	defer rows.Close()
	var out []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list movements: %w", mapError(err))
	}
	return out, nil
}

// Update persiste cantidades y campos descriptivos (flujos correctivos).
func (r *MovementRepo) Update(ctx context.Context, m *entity.Movement) error {
	query := `UPDATE lot_movements SET
			pallets = $2, packages = $3, weight = $4, volume = $5,
			customer_name = $6, customs = $7, export_mode = $8, service_staff = $9
		WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query,
		m.ID, m.Quantity.Pallets, m.Quantity.Packages, m.Quantity.Weight, m.Quantity.Volume,
		m.Details.CustomerName, m.Details.Customs, m.Details.ExportMode, m.Details.ServiceStaff,
	)
	if err != nil {
		return fmt.Errorf("update movement: %w", mapError(err))
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: movimiento %s", domain.ErrNotFound, m.ID)
	}
	return nil
}

// SoftDelete marca el movimiento como reversado.
func (r *MovementRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	cmd, err := r.q.Exec(ctx, `UPDATE lot_movements SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("soft delete movement: %w", mapError(err))
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: movimiento %s vigente", domain.ErrNotFound, id)
	}
	return nil
}

// ListCodes códigos con al menos un movimiento.
func (r *MovementRepo) ListCodes(ctx context.Context) ([]string, error) {
	return listStrings(ctx, r.q, `SELECT DISTINCT code FROM lot_movements ORDER BY code`)
}

// Rekey mueve el historial (incluidos los reversados) de oldCode a newCode.
func (r *MovementRepo) Rekey(ctx context.Context, oldCode, newCode string) error {
	if _, err := r.q.Exec(ctx, `UPDATE lot_movements SET code = $2 WHERE code = $1`, oldCode, newCode); err != nil {
		return fmt.Errorf("rekey movements: %w", mapError(err))
	}
	return nil
}
