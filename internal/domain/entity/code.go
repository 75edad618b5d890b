package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CodeDateLayout formato de la fecha embebida en el código (YYYYMMDD).
const CodeDateLayout = "20060102"

// CodeSeparator separa los segmentos del código de identificación.
const CodeSeparator = "/"

// IdentificationCode clave natural compuesta de un lote: Prefijo/Cliente/Placa/Fecha/Secuencia.
type IdentificationCode struct {
	Prefix   string
	Customer string
	Plate    string
	Date     time.Time
	Sequence int
}

// Scope devuelve el alcance de la secuencia (todo menos la secuencia), terminado en "/".
// Es el prefijo usado en la consulta LIKE del máximo existente.
func (c IdentificationCode) Scope() string {
	return CodeScope(c.Prefix, c.Customer, c.Plate, c.Date)
}

// String devuelve el código con la secuencia con relleno de ceros a 3 dígitos.
func (c IdentificationCode) String() string {
	return fmt.Sprintf("%s%03d", c.Scope(), c.Sequence)
}

// CodeScope arma el alcance "Prefijo/Cliente/Placa/YYYYMMDD/".
func CodeScope(prefix, customer, plate string, date time.Time) string {
	return strings.Join([]string{prefix, customer, plate, date.Format(CodeDateLayout)}, CodeSeparator) + CodeSeparator
}

// ParseIdentificationCode descompone un código. No valida el prefijo contra las bodegas conocidas;
// eso lo hace el generador, que conoce la tabla de prefijos.
func ParseIdentificationCode(s string) (IdentificationCode, error) {
	parts := strings.Split(s, CodeSeparator)
	if len(parts) != 5 {
		return IdentificationCode{}, fmt.Errorf("código %q: se esperaban 5 segmentos, hay %d", s, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return IdentificationCode{}, fmt.Errorf("código %q: segmento %d vacío", s, i+1)
		}
	}
	date, err := time.Parse(CodeDateLayout, parts[3])
	if err != nil {
		return IdentificationCode{}, fmt.Errorf("código %q: fecha inválida: %w", s, err)
	}
	seq, err := strconv.Atoi(parts[4])
	if err != nil || seq <= 0 || len(parts[4]) < 3 {
		return IdentificationCode{}, fmt.Errorf("código %q: secuencia inválida", s)
	}
	return IdentificationCode{
		Prefix:   parts[0],
		Customer: parts[1],
		Plate:    parts[2],
		Date:     date,
		Sequence: seq,
	}, nil
}

// LotCode fila del registro de códigos emitidos. La restricción única sobre Code es el árbitro de colisiones.
type LotCode struct {
	Code         string
	Scope        string
	WarehouseID  string
	CustomerName string
	Plate        string
	OpDate       time.Time
	Sequence     int
	CreatedAt    time.Time
}
