package entity

import "time"

// Balance saldo actual de un lote en una bodega (una fila por código y bodega).
// Version crece en cada escritura y permite detectar escrituras concurrentes obsoletas.
type Balance struct {
	Code        string
	WarehouseID string
	Quantity    Quantity
	Details     LotDetails
	Version     int64
	LastUpdated time.Time
	DeletedAt   *time.Time
}

// IsNew indica si la fila aún no existe en el almacenamiento.
func (b *Balance) IsNew() bool {
	return b.Version == 0
}

// IsDeleted indica si la fila está archivada (borrado lógico).
func (b *Balance) IsDeleted() bool {
	return b.DeletedAt != nil
}

// BalanceSnapshot vista de solo lectura de un saldo para los colaboradores.
type BalanceSnapshot struct {
	Code         string     `json:"code"`
	WarehouseID  string     `json:"warehouse_id"`
	Quantity     Quantity   `json:"quantity"`
	CustomerName string     `json:"customer_name"`
	Details      LotDetails `json:"details"`
	Version      int64      `json:"version"`
	LastUpdated  time.Time  `json:"last_updated"`
	Archived     bool       `json:"archived"`
}

// Snapshot copia el saldo a su vista de solo lectura.
func (b *Balance) Snapshot() BalanceSnapshot {
	return BalanceSnapshot{
		Code:         b.Code,
		WarehouseID:  b.WarehouseID,
		Quantity:     b.Quantity,
		CustomerName: b.Details.CustomerName,
		Details:      b.Details,
		Version:      b.Version,
		LastUpdated:  b.LastUpdated,
		Archived:     b.IsDeleted(),
	}
}
