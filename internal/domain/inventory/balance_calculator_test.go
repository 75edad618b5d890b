package inventory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/internal/domain/inventory"
)

func qty(pallets, packages int64) entity.Quantity {
	return entity.Quantity{
		Pallets:  pallets,
		Packages: packages,
		Weight:   decimal.NewFromInt(pallets * 100),
		Volume:   decimal.NewFromInt(pallets),
	}
}

func TestApplyInbound_SumaTodasLasDimensiones(t *testing.T) {
	got, err := inventory.ApplyInbound(qty(2, 10), qty(3, 5))
	require.NoError(t, err)
	assert.True(t, got.Equal(entity.Quantity{
		Pallets: 5, Packages: 15,
		Weight: decimal.NewFromInt(500), Volume: decimal.NewFromInt(5),
	}))
}

func TestApplyInbound_CantidadNegativaEsValidacion(t *testing.T) {
	_, err := inventory.ApplyInbound(qty(2, 10), entity.Quantity{Pallets: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApplyOutbound_NuncaDejaConteosNegativos(t *testing.T) {
	current := qty(5, 20)
	cases := []struct {
		name    string
		out     entity.Quantity
		wantErr bool
	}{
		{"exacto", qty(5, 20), false},
		{"parcial", qty(3, 7), false},
		{"pallets de más", entity.Quantity{Pallets: 6, Packages: 1}, true},
		{"bultos de más", entity.Quantity{Pallets: 1, Packages: 21}, true},
		{"ambos de más", entity.Quantity{Pallets: 9, Packages: 99}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := inventory.ApplyOutbound(current, tc.out)
			if tc.wantErr {
				require.ErrorIs(t, err, domain.ErrInsufficientStock)
				assert.True(t, got.Equal(current), "el saldo no debe cambiar en un fallo")
				return
			}
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got.Pallets, int64(0))
			assert.GreaterOrEqual(t, got.Packages, int64(0))
		})
	}
}

func TestApplyOutbound_SeisContraCincoPallets(t *testing.T) {
	current := entity.Quantity{Pallets: 5, Packages: 5}
	got, err := inventory.ApplyOutbound(current, entity.Quantity{Pallets: 6})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(5), got.Pallets)
}

func TestApplyDelta_RechazaNegativos(t *testing.T) {
	_, err := inventory.ApplyDelta(qty(1, 1), entity.Quantity{Packages: -2})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestTheoreticalBalance_ReproduceHistorial(t *testing.T) {
	deleted := time.Now()
	movs := []*entity.Movement{
		{Kind: entity.MovementKindInbound, WarehouseID: "A", Quantity: qty(10, 50)},
		{Kind: entity.MovementKindOutbound, WarehouseID: "A", Quantity: qty(4, 20), TransitID: "t1"},
		{Kind: entity.MovementKindReceive, WarehouseID: "B", Quantity: qty(4, 20), TransitID: "t1"},
		{Kind: entity.MovementKindOutbound, WarehouseID: "B", Quantity: qty(1, 5)},
		{Kind: entity.MovementKindInbound, WarehouseID: "A", Quantity: qty(99, 99), DeletedAt: &deleted},
	}

	got := inventory.TheoreticalBalance(movs)

	require.Len(t, got, 2)
	assert.True(t, got["A"].Equal(qty(6, 30)))
	assert.True(t, got["B"].Equal(qty(3, 15)))
}

func TestDiff_SoloDevuelveBodegasDistintas(t *testing.T) {
	theoretical := map[string]entity.Quantity{"A": qty(1, 1), "B": qty(2, 2)}
	actual := map[string]entity.Quantity{"A": qty(1, 1), "C": qty(3, 3)}

	diffs := inventory.Diff(theoretical, actual)

	require.Len(t, diffs, 2)
	assert.Equal(t, "B", diffs[0].WarehouseID)
	assert.True(t, diffs[0].Actual.IsZero())
	assert.Equal(t, "C", diffs[1].WarehouseID)
	assert.True(t, diffs[1].Theoretical.IsZero())
}
