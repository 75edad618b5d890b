package inventory

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/lot-ledger/internal/domain"
)

// UnknownPrefix prefijo centinela para bodegas fuera de la tabla.
const UnknownPrefix = "UK"

// UnknownPlate token cuando la placa queda vacía tras sanitizar.
const UnknownPlate = "UNKNOWN"

// PrefixTable tabla bodega → prefijo (y su inversa). Se carga desde la configuración al
// arrancar; Register agrega las bodegas dadas de alta después.
type PrefixTable struct {
	mu          sync.RWMutex
	byWarehouse map[string]string
	byPrefix    map[string]string
}

// NewPrefixTable construye la tabla desde la configuración (warehouse_id → prefijo).
func NewPrefixTable(prefixes map[string]string) *PrefixTable {
	t := &PrefixTable{
		byWarehouse: make(map[string]string, len(prefixes)),
		byPrefix:    make(map[string]string, len(prefixes)),
	}
	for wh, p := range prefixes {
		p = strings.ToUpper(strings.TrimSpace(p))
		t.byWarehouse[wh] = p
		t.byPrefix[p] = wh
	}
	return t
}

// Register agrega una bodega. Un prefijo de otra bodega, o un prefijo distinto para una
// bodega ya registrada, es ErrDuplicate.
func (t *PrefixTable) Register(warehouseID, prefix string) error {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if warehouseID == "" || prefix == "" || prefix == UnknownPrefix || strings.Contains(prefix, "/") {
		return fmt.Errorf("%w: prefijo %q inválido para %q", domain.ErrInvalidInput, prefix, warehouseID)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if owner, ok := t.byPrefix[prefix]; ok && owner != warehouseID {
		return fmt.Errorf("%w: prefijo %s ya asignado a %s", domain.ErrDuplicate, prefix, owner)
	}
	if cur, ok := t.byWarehouse[warehouseID]; ok && cur != prefix {
		return fmt.Errorf("%w: la bodega %s ya usa el prefijo %s", domain.ErrDuplicate, warehouseID, cur)
	}
	t.byWarehouse[warehouseID] = prefix
	t.byPrefix[prefix] = warehouseID
	return nil
}

// Prefix devuelve el prefijo de la bodega.
func (t *PrefixTable) Prefix(warehouseID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.byWarehouse[warehouseID]
	return p, ok
}

// Warehouse devuelve la bodega dueña del prefijo.
func (t *PrefixTable) Warehouse(prefix string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	wh, ok := t.byPrefix[prefix]
	return wh, ok
}

// Entries copia de la tabla (warehouse_id → prefijo).
func (t *PrefixTable) Entries() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.byWarehouse))
	for k, v := range t.byWarehouse {
		out[k] = v
	}
	return out
}

// SanitizePlate normaliza (NFC, mayúsculas) y conserva solo letras de cualquier alfabeto y dígitos.
func SanitizePlate(plate string) string {
	s := norm.NFC.String(strings.TrimSpace(plate))
	// cases.Caser no es seguro entre goroutines: uno por llamada.
	s = cases.Upper(language.Und).String(s)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return UnknownPlate
	}
	return b.String()
}

// SanitizeCustomer normaliza el nombre del cliente para embeberlo en el código:
// NFC, mayúsculas, espacios colapsados y "/" reemplazado por "-". "acme" y "ACME" comparten ámbito.
func SanitizeCustomer(name string) string {
	s := norm.NFC.String(name)
	s = cases.Upper(language.Und).String(s)
	s = strings.ReplaceAll(s, "/", "-")
	return strings.Join(strings.Fields(s), " ")
}
