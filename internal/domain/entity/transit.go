package entity

import "time"

// Estados de un tránsito entre bodegas.
const (
	TransitStatusInTransit = "in_transit"
	TransitStatusReceived  = "received"
	TransitStatusCompleted = "completed"
	TransitStatusCancelled = "cancelled"
)

// Transit lote en movimiento entre dos bodegas.
// Mientras está in_transit el origen ya refleja el descuento y el destino no suma nada.
type Transit struct {
	ID                     string     `json:"id"`
	Code                   string     `json:"code"`
	SourceWarehouseID      string     `json:"source_warehouse_id"`
	DestinationWarehouseID string     `json:"destination_warehouse_id"`
	Quantity               Quantity   `json:"quantity"`
	Status                 string     `json:"status"`
	Details                LotDetails `json:"details"`
	DepartedAt             time.Time  `json:"departed_at"`
	ReceivedAt             *time.Time `json:"received_at,omitempty"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
	CancelledAt            *time.Time `json:"cancelled_at,omitempty"`
	CreatedBy              string     `json:"created_by,omitempty"`
}

// CanTransition indica si el paso from → to está permitido.
func CanTransition(from, to string) bool {
	switch from {
	case TransitStatusInTransit:
		return to == TransitStatusReceived || to == TransitStatusCancelled
	case TransitStatusReceived:
		// received → in_transit solo al reversar la recepción.
		return to == TransitStatusCompleted || to == TransitStatusInTransit
	}
	return false
}
