package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/lot-ledger/internal/domain/entity"
)

func TestLotDetails_FillFrom(t *testing.T) {
	src := entity.LotDetails{CustomerName: "ACME", Customs: "DUA-77", ExportMode: "FOB", ServiceStaff: "ana"}

	got := entity.LotDetails{ServiceStaff: "luis"}.FillFrom(src)
	assert.Equal(t, entity.LotDetails{CustomerName: "ACME", Customs: "DUA-77", ExportMode: "FOB", ServiceStaff: "luis"}, got)

	assert.Equal(t, src, entity.LotDetails{}.FillFrom(src))
	assert.Equal(t, entity.LotDetails{Customs: "X"}, entity.LotDetails{Customs: "X"}.FillFrom(entity.LotDetails{}))
}
