package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lot-ledger/internal/application/dto"
	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/application/usecase"
	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/infrastructure/memory"
)

func TestWarehouseUseCase_SyncDesdeConfiguracion(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(0, nil)
	require.NoError(t, store.Warehouses().Create(ctx, &entity.Warehouse{ID: "wh-cl", Name: "Cali", Prefix: "CL"}))
	prefixes := inventory.NewPrefixTable(map[string]string{"wh-ph": "PH"})
	uc := usecase.NewWarehouseUseCase(store.Warehouses(), prefixes, nil)

	require.NoError(t, uc.Sync(ctx))

	got, err := uc.GetByID(ctx, "wh-ph")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "PH", got.Prefix)
	wh, ok := prefixes.Warehouse("CL")
	assert.True(t, ok)
	assert.Equal(t, "wh-cl", wh)

	// Idempotente.
	require.NoError(t, uc.Sync(ctx))
	list, err := uc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
}

func TestWarehouseUseCase_Create(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(0, nil)
	prefixes := inventory.NewPrefixTable(map[string]string{"wh-ph": "PH"})
	uc := usecase.NewWarehouseUseCase(store.Warehouses(), prefixes, nil)
	require.NoError(t, uc.Sync(ctx))

	out, err := uc.Create(ctx, dto.CreateWarehouseRequest{ID: "wh-bg", Name: "Bogotá", Prefix: "bg"})
	require.NoError(t, err)
	assert.Equal(t, "BG", out.Prefix)
	p, ok := prefixes.Prefix("wh-bg")
	assert.True(t, ok)
	assert.Equal(t, "BG", p)

	_, err = uc.Create(ctx, dto.CreateWarehouseRequest{ID: "wh-otra", Name: "Otra", Prefix: "PH"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	_, err = uc.Create(ctx, dto.CreateWarehouseRequest{ID: "wh-uk", Name: "UK", Prefix: "UK"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = uc.Create(ctx, dto.CreateWarehouseRequest{ID: "wh-x", Name: "X", Prefix: "A/B"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	missing, err := uc.GetByID(ctx, "no-existe")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
