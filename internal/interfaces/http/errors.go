package http

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lot-ledger/internal/application/dto"
	"github.com/jhoicas/lot-ledger/internal/domain"
)

var validate = validator.New()

// bind parsea y valida el cuerpo. Devuelve false si ya respondió con error.
func bind(c *fiber.Ctx, out interface{}) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := validate.Struct(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}
	return true, nil
}

// writeError traduce la categoría del error a un estado HTTP.
func writeError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, "INTERNAL"
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status, code = fiber.StatusBadRequest, "VALIDATION"
	case domain.KindNotFound:
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case domain.KindBusinessRule:
		status, code = fiber.StatusConflict, businessCode(err)
	case domain.KindRetryable:
		status, code = fiber.StatusServiceUnavailable, "CONTENTION"
	case domain.KindFatal:
		switch {
		case errors.Is(err, domain.ErrConcurrencyExhausted):
			status, code = fiber.StatusServiceUnavailable, "CONCURRENCY_EXHAUSTED"
		case errors.Is(err, domain.ErrCodeGenerationExhausted):
			status, code = fiber.StatusServiceUnavailable, "CODE_GENERATION_EXHAUSTED"
		default:
			code = "CONSISTENCY"
		}
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func businessCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrLotHasOutbound):
		return "LOT_HAS_OUTBOUND"
	case errors.Is(err, domain.ErrDuplicate):
		return "DUPLICATE"
	}
	return "CONFLICT"
}
