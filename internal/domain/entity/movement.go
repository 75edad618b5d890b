package entity

import "time"

// Tipos de movimiento del libro de inventario.
const (
	MovementKindInbound  = "INBOUND"  // ingreso desde fuera de la red
	MovementKindOutbound = "OUTBOUND" // salida (despacho externo o salida a tránsito)
	MovementKindReceive  = "RECEIVE"  // recepción en destino de un tránsito
)

// ValidMovementKind indica si kind es uno de los tipos conocidos.
func ValidMovementKind(kind string) bool {
	switch kind {
	case MovementKindInbound, MovementKindOutbound, MovementKindReceive:
		return true
	}
	return false
}

// Movement registro inmutable de un movimiento de un lote en una bodega.
// Solo los flujos correctivos (reverso/corrección) lo modifican, ajustando el saldo de forma simétrica.
type Movement struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Code        string     `json:"code"`
	WarehouseID string     `json:"warehouse_id"`
	Quantity    Quantity   `json:"quantity"`
	Counterpart string     `json:"counterpart,omitempty"` // OUTBOUND: bodega destino o tercero
	TransitID   string     `json:"transit_id,omitempty"`  // OUTBOUND de salida a tránsito y RECEIVE
	Details     LotDetails `json:"details"`
	OccurredAt  time.Time  `json:"occurred_at"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedBy   string     `json:"created_by,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted indica si el movimiento fue reversado.
func (m *Movement) IsDeleted() bool {
	return m.DeletedAt != nil
}

// Effect devuelve el delta con signo que el movimiento aplica al saldo de su bodega.
func (m *Movement) Effect() Quantity {
	if m.Kind == MovementKindOutbound {
		return m.Quantity.Neg()
	}
	return m.Quantity
}
