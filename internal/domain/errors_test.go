package domain_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/lot-ledger/internal/domain"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want domain.Kind
	}{
		{fmt.Errorf("x: %w", domain.ErrInvalidInput), domain.KindValidation},
		{domain.ErrNotFound, domain.KindNotFound},
		{fmt.Errorf("x: %w", domain.ErrInsufficientStock), domain.KindBusinessRule},
		{domain.ErrLotHasOutbound, domain.KindBusinessRule},
		{domain.ErrLockTimeout, domain.KindRetryable},
		{fmt.Errorf("commit: %w", domain.ErrDeadlock), domain.KindRetryable},
		{domain.ErrVersionConflict, domain.KindRetryable},
		{fmt.Errorf("%w: %w", domain.ErrConcurrencyExhausted, domain.ErrLockTimeout), domain.KindFatal},
		{domain.ErrConsistency, domain.KindFatal},
		{fmt.Errorf("boom"), domain.KindInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domain.KindOf(tc.err), tc.err.Error())
	}
}

func TestIsRetryable_AgotadoNoSeReintenta(t *testing.T) {
	exhausted := fmt.Errorf("%w: %w", domain.ErrConcurrencyExhausted, domain.ErrDeadlock)
	assert.False(t, domain.IsRetryable(exhausted))
	assert.True(t, domain.IsRetryable(domain.ErrDeadlock))
}
