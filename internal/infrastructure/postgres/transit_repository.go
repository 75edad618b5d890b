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

var _ repository.TransitRepository = (*TransitRepo)(nil)

const transitColumns = `id, code, source_warehouse_id, destination_warehouse_id, pallets, packages, weight, volume,
	status, customer_name, customs, export_mode, service_staff,
	departed_at, received_at, completed_at, cancelled_at, created_by`

// TransitRepo implementación de TransitRepository sobre PostgreSQL.
type TransitRepo struct {
	q Querier
}

// NewTransitRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTransitRepository(q Querier) *TransitRepo {
	return &TransitRepo{q: q}
}

func scanTransit(row pgx.Row) (*entity.Transit, error) {
	var t entity.Transit
	err := row.Scan(
		&t.ID, &t.Code, &t.SourceWarehouseID, &t.DestinationWarehouseID,
		&t.Quantity.Pallets, &t.Quantity.Packages, &t.Quantity.Weight, &t.Quantity.Volume,
		&t.Status, &t.Details.CustomerName, &t.Details.Customs, &t.Details.ExportMode, &t.Details.ServiceStaff,
		&t.DepartedAt, &t.ReceivedAt, &t.CompletedAt, &t.CancelledAt, &t.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create registra el tránsito.
func (r *TransitRepo) Create(ctx context.Context, t *entity.Transit) error {
	query := `INSERT INTO lot_transits (` + transitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.Code, t.SourceWarehouseID, t.DestinationWarehouseID,
		t.Quantity.Pallets, t.Quantity.Packages, t.Quantity.Weight, t.Quantity.Volume,
		t.Status, t.Details.CustomerName, t.Details.Customs, t.Details.ExportMode, t.Details.ServiceStaff,
		t.DepartedAt, t.ReceivedAt, t.CompletedAt, t.CancelledAt, t.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert transit: %w", mapError(err))
	}
	return nil
}

func (r *TransitRepo) get(ctx context.Context, query, id string) (*entity.Transit, error) {
	t, err := scanTransit(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transit: %w", mapError(err))
	}
	return t, nil
}

// GetByID obtiene un tránsito; nil si no existe.
func (r *TransitRepo) GetByID(ctx context.Context, id string) (*entity.Transit, error) {
	return r.get(ctx, `SELECT `+transitColumns+` FROM lot_transits WHERE id = $1`, id)
}

// GetForUpdate obtiene el tránsito bloqueando la fila.
func (r *TransitRepo) GetForUpdate(ctx context.Context, id string) (*entity.Transit, error) {
	return r.get(ctx, `SELECT `+transitColumns+` FROM lot_transits WHERE id = $1 FOR UPDATE`, id)
}

// Update persiste estado, fechas y campos descriptivos.
func (r *TransitRepo) Update(ctx context.Context, t *entity.Transit) error {
	query := `UPDATE lot_transits SET
			status = $2, customer_name = $3, customs = $4, export_mode = $5, service_staff = $6,
			received_at = $7, completed_at = $8, cancelled_at = $9
		WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query,
		t.ID, t.Status, t.Details.CustomerName, t.Details.Customs, t.Details.ExportMode, t.Details.ServiceStaff,
		t.ReceivedAt, t.CompletedAt, t.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("update transit: %w", mapError(err))
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: tránsito %s", domain.ErrNotFound, t.ID)
	}
	return nil
}

// ListByCode tránsitos del código por fecha de salida.
func (r *TransitRepo) ListByCode(ctx context.Context, code string) ([]*entity.Transit, error) {
	rows, err := r.q.Query(ctx, `SELECT `+transitColumns+` FROM lot_transits WHERE code = $1 ORDER BY departed_at, id`, code)
	if err != nil {
		return nil, fmt.Errorf("list transits: %w", mapError(err))
	}
	defer rows.Close()
	var out []*entity.Transit
	for rows.Next() {
		t, err := scanTransit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transit: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transits: %w", mapError(err))
	}
	return out, nil
}

// Rekey mueve los tránsitos de oldCode a newCode.
func (r *TransitRepo) Rekey(ctx context.Context, oldCode, newCode string) error {
	if _, err := r.q.Exec(ctx, `UPDATE lot_transits SET code = $2 WHERE code = $1`, oldCode, newCode); err != nil {
		return fmt.Errorf("rekey transits: %w", mapError(err))
	}
	return nil
}
