package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Quantity agrupa las dimensiones físicas de un lote: conteos (pallets, bultos) y medidas (peso, volumen).
type Quantity struct {
	Pallets  int64           `json:"pallets"`
	Packages int64           `json:"packages"`
	Weight   decimal.Decimal `json:"weight"`
	Volume   decimal.Decimal `json:"volume"`
}

// IsNegative indica si alguna dimensión es negativa.
func (q Quantity) IsNegative() bool {
	return q.Pallets < 0 || q.Packages < 0 || q.Weight.IsNegative() || q.Volume.IsNegative()
}

// IsZero indica si todas las dimensiones son cero.
func (q Quantity) IsZero() bool {
	return q.Pallets == 0 && q.Packages == 0 && q.Weight.IsZero() && q.Volume.IsZero()
}

// CountsZero indica si pallets y bultos son cero (criterio de archivo del saldo).
func (q Quantity) CountsZero() bool {
	return q.Pallets == 0 && q.Packages == 0
}

func (q Quantity) Add(o Quantity) Quantity {
	return Quantity{
		Pallets:  q.Pallets + o.Pallets,
		Packages: q.Packages + o.Packages,
		Weight:   q.Weight.Add(o.Weight),
		Volume:   q.Volume.Add(o.Volume),
	}
}

func (q Quantity) Sub(o Quantity) Quantity {
	return q.Add(o.Neg())
}

func (q Quantity) Neg() Quantity {
	return Quantity{
		Pallets:  -q.Pallets,
		Packages: -q.Packages,
		Weight:   q.Weight.Neg(),
		Volume:   q.Volume.Neg(),
	}
}

// Equal compara por valor (decimal.Equal ignora la escala).
func (q Quantity) Equal(o Quantity) bool {
	return q.Pallets == o.Pallets && q.Packages == o.Packages &&
		q.Weight.Equal(o.Weight) && q.Volume.Equal(o.Volume)
}

func (q Quantity) String() string {
	return fmt.Sprintf("pallets=%d packages=%d weight=%s volume=%s",
		q.Pallets, q.Packages, q.Weight.String(), q.Volume.String())
}
