package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/lot-ledger/internal/domain"
)

// Códigos SQLSTATE que el libro distingue.
const (
	codeUniqueViolation      = "23505"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeLockNotAvailable     = "55P03"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation
	}
	return strings.Contains(err.Error(), codeUniqueViolation)
}

// mapError traduce errores de PostgreSQL a los errores de dominio (contención reintentable, duplicados).
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %w", domain.ErrDuplicate, err)
	case codeDeadlockDetected:
		return fmt.Errorf("%w: %w", domain.ErrDeadlock, err)
	case codeSerializationFailure:
		return fmt.Errorf("%w: %w", domain.ErrVersionConflict, err)
	case codeLockNotAvailable:
		return fmt.Errorf("%w: %w", domain.ErrLockTimeout, err)
	}
	return err
}

// escapeLike escapa los comodines de LIKE para usar s como prefijo literal.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
