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

var _ repository.BalanceRepository = (*BalanceRepo)(nil)

const balanceColumns = `code, warehouse_id, pallets, packages, weight, volume,
	customer_name, customs, export_mode, service_staff, version, last_updated, deleted_at`

// BalanceRepo implementación de BalanceRepository sobre PostgreSQL (usable con pool o tx).
type BalanceRepo struct {
	q Querier
}

// NewBalanceRepository construye el adaptador de saldos. Pasar pool o tx (Querier).
func NewBalanceRepository(q Querier) *BalanceRepo {
	return &BalanceRepo{q: q}
}

func scanBalance(row pgx.Row) (*entity.Balance, error) {
	var b entity.Balance
	err := row.Scan(
		&b.Code, &b.WarehouseID, &b.Quantity.Pallets, &b.Quantity.Packages, &b.Quantity.Weight, &b.Quantity.Volume,
		&b.Details.CustomerName, &b.Details.Customs, &b.Details.ExportMode, &b.Details.ServiceStaff,
		&b.Version, &b.LastUpdated, &b.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BalanceRepo) get(ctx context.Context, query, code, warehouseID string) (*entity.Balance, error) {
	b, err := scanBalance(r.q.QueryRow(ctx, query, code, warehouseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.Balance{Code: code, WarehouseID: warehouseID}, nil
		}
		return nil, fmt.Errorf("get balance: %w", mapError(err))
	}
	return b, nil
}

// Get obtiene el saldo actual; si no existe devuelve uno en cero con Version 0.
func (r *BalanceRepo) Get(ctx context.Context, code, warehouseID string) (*entity.Balance, error) {
	return r.get(ctx, `SELECT `+balanceColumns+` FROM lot_balances WHERE code = $1 AND warehouse_id = $2`, code, warehouseID)
}

// GetForUpdate obtiene el saldo y bloquea la fila (SELECT FOR UPDATE).
// Una fila inexistente no se puede bloquear: la cubre el advisory lock del código.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, code, warehouseID string) (*entity.Balance, error) {
	return r.get(ctx, `SELECT `+balanceColumns+` FROM lot_balances WHERE code = $1 AND warehouse_id = $2 FOR UPDATE`, code, warehouseID)
}

func (r *BalanceRepo) list(ctx context.Context, query, code string) ([]*entity.Balance, error) {
	rows, err := r.q.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", mapError(err))
	}
	defer rows.Close()
	var out []*entity.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list balances: %w", mapError(err))
	}
	return out, nil
}

// ListByCode saldos del código en todas las bodegas, incluidos los archivados.
func (r *BalanceRepo) ListByCode(ctx context.Context, code string) ([]*entity.Balance, error) {
	return r.list(ctx, `SELECT `+balanceColumns+` FROM lot_balances WHERE code = $1 ORDER BY warehouse_id`, code)
}

// ListByCodeForUpdate igual que ListByCode bloqueando las filas.
func (r *BalanceRepo) ListByCodeForUpdate(ctx context.Context, code string) ([]*entity.Balance, error) {
	return r.list(ctx, `SELECT `+balanceColumns+` FROM lot_balances WHERE code = $1 ORDER BY warehouse_id FOR UPDATE`, code)
}

// Save inserta (Version 0) o actualiza condicionado a la versión leída.
func (r *BalanceRepo) Save(ctx context.Context, b *entity.Balance) error {
	var (
		query string
		args  []any
	)
	if b.IsNew() {
		query = `
			INSERT INTO lot_balances (` + balanceColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)
			ON CONFLICT (code, warehouse_id) DO NOTHING`
		args = []any{
			b.Code, b.WarehouseID, b.Quantity.Pallets, b.Quantity.Packages, b.Quantity.Weight, b.Quantity.Volume,
			b.Details.CustomerName, b.Details.Customs, b.Details.ExportMode, b.Details.ServiceStaff,
			b.LastUpdated, b.DeletedAt,
		}
	} else {
		query = `
			UPDATE lot_balances SET
				pallets = $3, packages = $4, weight = $5, volume = $6,
				customer_name = $7, customs = $8, export_mode = $9, service_staff = $10,
				last_updated = $11, deleted_at = $12, version = version + 1
			WHERE code = $1 AND warehouse_id = $2 AND version = $13`
		args = []any{
			b.Code, b.WarehouseID, b.Quantity.Pallets, b.Quantity.Packages, b.Quantity.Weight, b.Quantity.Volume,
			b.Details.CustomerName, b.Details.Customs, b.Details.ExportMode, b.Details.ServiceStaff,
			b.LastUpdated, b.DeletedAt, b.Version,
		}
	}
	cmd, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save balance: %w", mapError(err))
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: saldo %s/%s versión %d", domain.ErrVersionConflict, b.Code, b.WarehouseID, b.Version)
	}
	b.Version++
	return nil
}

// ListCodes códigos con al menos una fila de saldo.
func (r *BalanceRepo) ListCodes(ctx context.Context) ([]string, error) {
	return listStrings(ctx, r.q, `SELECT DISTINCT code FROM lot_balances ORDER BY code`)
}

// Rekey mueve las filas de oldCode a newCode.
func (r *BalanceRepo) Rekey(ctx context.Context, oldCode, newCode string) error {
	_, err := r.q.Exec(ctx, `UPDATE lot_balances SET code = $2, version = version + 1 WHERE code = $1`, oldCode, newCode)
	if err != nil {
		return fmt.Errorf("rekey balances: %w", mapError(err))
	}
	return nil
}

func listStrings(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list: %w", mapError(err))
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
