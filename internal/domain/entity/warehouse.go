package entity

import "time"

// Warehouse representa una bodega de la red logística. Prefix es el prefijo que encabeza los códigos de lote.
type Warehouse struct {
	ID        string
	Name      string
	Prefix    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
