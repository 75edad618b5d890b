package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"

	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/domain/repository"
	"github.com/jhoicas/lot-ledger/pkg/logger"
	"github.com/jhoicas/lot-ledger/pkg/metrics"
)

// Tipos de operación que pueden originar un código nuevo.
const (
	OpTypeInbound     = "inbound"
	OpTypeSelfInbound = "self_inbound"
)

// GenerateCodeInput datos para emitir un código de identificación.
type GenerateCodeInput struct {
	WarehouseID  string    `validate:"required"`
	CustomerName string    `validate:"required"`
	OpType       string    `validate:"required,oneof=inbound self_inbound"`
	OpDate       time.Time `validate:"required"`
	Plate        string
}

// ParsedCode código descompuesto con la bodega resuelta desde el prefijo.
type ParsedCode struct {
	entity.IdentificationCode
	// WarehouseID vacío cuando el prefijo es UnknownPrefix.
	WarehouseID string
}

// CodeGeneratorConfig reintentos ante colisión de secuencia.
type CodeGeneratorConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

// CodeGenerator emite códigos únicos por alcance Prefijo/Cliente/Placa/Fecha.
// La secuencia es max+1 bajo un bloqueo por alcance; la restricción única del registro
// decide ante escritores de otros procesos y la colisión se reintenta.
type CodeGenerator struct {
	codes    repository.LotCodeRepository
	prefixes *PrefixTable
	locks    Locker
	cfg      CodeGeneratorConfig
	validate *validator.Validate
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewCodeGenerator construye el generador.
func NewCodeGenerator(codes repository.LotCodeRepository, prefixes *PrefixTable, locks Locker,
	cfg CodeGeneratorConfig, log *logger.Logger, m *metrics.Metrics) *CodeGenerator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 20 * time.Millisecond
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CodeGenerator{
		codes:    codes,
		prefixes: prefixes,
		locks:    locks,
		cfg:      cfg,
		validate: validator.New(),
		log:      log.Component("codegen"),
		metrics:  m,
		now:      time.Now,
	}
}

// Prefixes tabla de prefijos en uso.
func (g *CodeGenerator) Prefixes() *PrefixTable { return g.prefixes }

// Generate emite y registra el siguiente código del alcance.
func (g *CodeGenerator) Generate(ctx context.Context, in GenerateCodeInput) (entity.IdentificationCode, error) {
	base, err := g.base(in)
	if err != nil {
		return entity.IdentificationCode{}, err
	}
	scope := base.Scope()

	var code entity.IdentificationCode
	b := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewConstantBackOff(g.cfg.Backoff), uint64(g.cfg.MaxAttempts-1)), ctx)
	err = backoff.RetryNotify(func() error {
		err := g.locks.WithLocks(ctx, []string{scopeLockKey(scope)}, func(ctx context.Context) error {
			c, err := g.mint(ctx, g.codes, base, in.WarehouseID)
			code = c
			return err
		})
		if err == nil || errors.Is(err, domain.ErrDuplicate) || domain.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b, func(err error, wait time.Duration) {
		g.log.Warn().Err(err).Str("scope", scope).Dur("wait", wait).Msg("colisión al generar código, reintentando")
		g.metrics.IncRetry("generate_code", "collision")
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) || domain.IsRetryable(err) {
			g.log.Error().Err(err).Str("scope", scope).Msg("no se pudo generar un código único")
			return entity.IdentificationCode{}, fmt.Errorf("%w: alcance %s: %w", domain.ErrCodeGenerationExhausted, scope, err)
		}
		return entity.IdentificationCode{}, err
	}
	g.metrics.IncCodeGenerated(code.Prefix)
	g.log.Info().Str("code", code.String()).Str("warehouse_id", in.WarehouseID).Str("op_type", in.OpType).Msg("código generado")
	return code, nil
}

// base valida la entrada y arma el código sin secuencia.
func (g *CodeGenerator) base(in GenerateCodeInput) (entity.IdentificationCode, error) {
	if err := g.validate.Struct(in); err != nil {
		return entity.IdentificationCode{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	customer := SanitizeCustomer(in.CustomerName)
	if customer == "" {
		return entity.IdentificationCode{}, fmt.Errorf("%w: nombre de cliente vacío", domain.ErrInvalidInput)
	}
	prefix, ok := g.prefixes.Prefix(in.WarehouseID)
	if !ok {
		g.log.Warn().Str("warehouse_id", in.WarehouseID).Msg("bodega sin prefijo, se usa " + UnknownPrefix)
		prefix = UnknownPrefix
	}
	y, m, d := in.OpDate.Date()
	return entity.IdentificationCode{
		Prefix:   prefix,
		Customer: customer,
		Plate:    SanitizePlate(in.Plate),
		Date:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}, nil
}

// mint un intento: lee el máximo del alcance y registra max+1. Una colisión devuelve domain.ErrDuplicate.
func (g *CodeGenerator) mint(ctx context.Context, codes repository.LotCodeRepository,
	base entity.IdentificationCode, warehouseID string) (entity.IdentificationCode, error) {
	scope := base.Scope()
	last, err := codes.MaxSequence(ctx, scope)
	if err != nil {
		return entity.IdentificationCode{}, err
	}
	code := base
	code.Sequence = last + 1
	row := &entity.LotCode{
		Code:         code.String(),
		Scope:        scope,
		WarehouseID:  warehouseID,
		CustomerName: code.Customer,
		Plate:        code.Plate,
		OpDate:       code.Date,
		Sequence:     code.Sequence,
		CreatedAt:    g.now(),
	}
	if err := codes.Insert(ctx, row); err != nil {
		return entity.IdentificationCode{}, err
	}
	return code, nil
}

// Parse descompone un código y resuelve su bodega. Un prefijo desconocido es error de validación,
// salvo UnknownPrefix que devuelve WarehouseID vacío.
func (g *CodeGenerator) Parse(code string) (ParsedCode, error) {
	ic, err := entity.ParseIdentificationCode(strings.TrimSpace(code))
	if err != nil {
		return ParsedCode{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if ic.Prefix == UnknownPrefix {
		return ParsedCode{IdentificationCode: ic}, nil
	}
	wh, ok := g.prefixes.Warehouse(ic.Prefix)
	if !ok {
		return ParsedCode{}, fmt.Errorf("%w: prefijo %q no corresponde a ninguna bodega", domain.ErrInvalidInput, ic.Prefix)
	}
	return ParsedCode{IdentificationCode: ic, WarehouseID: wh}, nil
}

func scopeLockKey(scope string) string {
	return "scope:" + scope
}
