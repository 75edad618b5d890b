package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrInvalidTransition = errors.New("transición de estado inválida")
	ErrLotHasOutbound    = errors.New("el lote ya tiene salidas registradas")

	// Contención: se reintentan internamente con backoff.
	ErrLockTimeout     = errors.New("tiempo de espera agotado al adquirir el bloqueo")
	ErrDeadlock        = errors.New("deadlock detectado por el almacenamiento")
	ErrVersionConflict = errors.New("conflicto de versión en el saldo")

	// Agotamiento de reintentos.
	ErrConcurrencyExhausted    = errors.New("reintentos por concurrencia agotados")
	ErrCodeGenerationExhausted = errors.New("reintentos de generación de código agotados")

	// ErrConsistency deriva irrecuperable (ej. saldo teórico negativo). No se repara sola.
	ErrConsistency = errors.New("inconsistencia en el libro de inventario")
)

// Kind clasifica un error para que el llamador decida reintentar, abortar o mostrarlo al usuario.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindBusinessRule
	KindRetryable
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindBusinessRule:
		return "business_rule"
	case KindRetryable:
		return "retryable"
	case KindFatal:
		return "fatal"
	default:
		return "internal"
	}
}

// KindOf devuelve la categoría de err. Los errores envueltos se resuelven con errors.Is.
// ErrConcurrencyExhausted se evalúa antes que las causas reintentables que envuelve.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrConcurrencyExhausted),
		errors.Is(err, ErrCodeGenerationExhausted),
		errors.Is(err, ErrConsistency):
		return KindFatal
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrLotHasOutbound),
		errors.Is(err, ErrDuplicate):
		return KindBusinessRule
	case errors.Is(err, ErrLockTimeout),
		errors.Is(err, ErrDeadlock),
		errors.Is(err, ErrVersionConflict):
		return KindRetryable
	default:
		return KindInternal
	}
}

// IsRetryable indica si err es contención transitoria.
func IsRetryable(err error) bool {
	return KindOf(err) == KindRetryable
}
