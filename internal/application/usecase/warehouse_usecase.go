package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jhoicas/lot-ledger/internal/application/dto"
	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/domain/repository"
	"github.com/jhoicas/lot-ledger/pkg/logger"
)

// WarehouseUseCase alta y consulta de bodegas; mantiene la tabla de prefijos del generador.
type WarehouseUseCase struct {
	repo     repository.WarehouseRepository
	prefixes *inventory.PrefixTable
	validate *validator.Validate
	log      *logger.Logger
	now      func() time.Time
}

// NewWarehouseUseCase construye el caso de uso.
func NewWarehouseUseCase(repo repository.WarehouseRepository, prefixes *inventory.PrefixTable, log *logger.Logger) *WarehouseUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &WarehouseUseCase{
		repo:     repo,
		prefixes: prefixes,
		validate: validator.New(),
		log:      log.Component("warehouses"),
		now:      time.Now,
	}
}

// Sync registra en el almacenamiento las bodegas de la configuración que falten y carga
// en la tabla de prefijos las que ya estaban guardadas.
func (uc *WarehouseUseCase) Sync(ctx context.Context) error {
	for id, prefix := range uc.prefixes.Entries() {
		w, err := uc.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if w != nil {
			if w.Prefix != prefix {
				return fmt.Errorf("%w: bodega %s guardada con prefijo %s y configurada con %s",
					domain.ErrDuplicate, id, w.Prefix, prefix)
			}
			continue
		}
		now := uc.now()
		if err := uc.repo.Create(ctx, &entity.Warehouse{ID: id, Name: id, Prefix: prefix, CreatedAt: now, UpdatedAt: now}); err != nil {
			return fmt.Errorf("registrar bodega %s: %w", id, err)
		}
		uc.log.Info().Str("warehouse_id", id).Str("prefix", prefix).Msg("bodega registrada desde configuración")
	}

	stored, err := uc.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, w := range stored {
		if err := uc.prefixes.Register(w.ID, w.Prefix); err != nil {
			return err
		}
	}
	return nil
}

// Create registra una bodega y su prefijo.
func (uc *WarehouseUseCase) Create(ctx context.Context, in dto.CreateWarehouseRequest) (*dto.WarehouseResponse, error) {
	if err := uc.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	prefix := strings.ToUpper(in.Prefix)
	if prefix == inventory.UnknownPrefix {
		return nil, fmt.Errorf("%w: el prefijo %s está reservado", domain.ErrInvalidInput, prefix)
	}
	if owner, ok := uc.prefixes.Warehouse(prefix); ok && owner != in.ID {
		return nil, fmt.Errorf("%w: prefijo %s ya asignado a %s", domain.ErrDuplicate, prefix, owner)
	}
	now := uc.now()
	w := &entity.Warehouse{ID: in.ID, Name: in.Name, Prefix: prefix, CreatedAt: now, UpdatedAt: now}
	if err := uc.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	if err := uc.prefixes.Register(w.ID, w.Prefix); err != nil {
		return nil, err
	}
	return toWarehouseResponse(w), nil
}

// GetByID obtiene una bodega por ID; nil si no existe.
func (uc *WarehouseUseCase) GetByID(ctx context.Context, id string) (*dto.WarehouseResponse, error) {
	w, err := uc.repo.GetByID(ctx, id)
	if err != nil || w == nil {
		return nil, err
	}
	return toWarehouseResponse(w), nil
}

// List todas las bodegas.
func (uc *WarehouseUseCase) List(ctx context.Context) (*dto.WarehouseListResponse, error) {
	list, err := uc.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]dto.WarehouseResponse, 0, len(list))
	for _, w := range list {
		items = append(items, *toWarehouseResponse(w))
	}
	return &dto.WarehouseListResponse{Items: items}, nil
}

func toWarehouseResponse(w *entity.Warehouse) *dto.WarehouseResponse {
	return &dto.WarehouseResponse{
		ID:        w.ID,
		Name:      w.Name,
		Prefix:    w.Prefix,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}
