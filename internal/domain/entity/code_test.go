package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lot-ledger/internal/domain/entity"
)

func TestIdentificationCode_Formato(t *testing.T) {
	c := entity.IdentificationCode{
		Prefix:   "PH",
		Customer: "ACME",
		Plate:    "AB1234",
		Date:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Sequence: 1,
	}
	assert.Equal(t, "PH/ACME/AB1234/20250701/001", c.String())
	assert.Equal(t, "PH/ACME/AB1234/20250701/", c.Scope())

	c.Sequence = 1234
	assert.Equal(t, "PH/ACME/AB1234/20250701/1234", c.String())
}

func TestParseIdentificationCode_IdaYVuelta(t *testing.T) {
	c, err := entity.ParseIdentificationCode("HN/Cliente Uno/XY99/20240131/042")
	require.NoError(t, err)
	assert.Equal(t, "HN", c.Prefix)
	assert.Equal(t, "Cliente Uno", c.Customer)
	assert.Equal(t, "XY99", c.Plate)
	assert.Equal(t, 42, c.Sequence)
	assert.Equal(t, "HN/Cliente Uno/XY99/20240131/042", c.String())
}

func TestParseIdentificationCode_Invalidos(t *testing.T) {
	for _, s := range []string{
		"",
		"PH/ACME/AB1234/20250701",
		"PH/ACME/AB1234/2025-07-01/001",
		"PH//AB1234/20250701/001",
		"PH/ACME/AB1234/20250701/abc",
		"PH/ACME/AB1234/20250701/000",
		"PH/ACME/AB1234/20250701/7",
		"PH/A/C/ME/AB1234/20250701/001",
	} {
		_, err := entity.ParseIdentificationCode(s)
		assert.Error(t, err, s)
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, entity.CanTransition(entity.TransitStatusInTransit, entity.TransitStatusReceived))
	assert.True(t, entity.CanTransition(entity.TransitStatusReceived, entity.TransitStatusCompleted))
	assert.True(t, entity.CanTransition(entity.TransitStatusInTransit, entity.TransitStatusCancelled))
	assert.False(t, entity.CanTransition(entity.TransitStatusInTransit, entity.TransitStatusCompleted))
	assert.False(t, entity.CanTransition(entity.TransitStatusCompleted, entity.TransitStatusReceived))
	assert.False(t, entity.CanTransition(entity.TransitStatusCancelled, entity.TransitStatusInTransit))
}
