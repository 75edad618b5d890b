package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lot-ledger/internal/application/audit"
)

func TestScheduler_CorrePeriodicamente(t *testing.T) {
	e := newEnv(t)
	e.inbound(t, e.code(t, "ACME"), 5)

	s := audit.NewScheduler(e.auditor, 10*time.Millisecond, audit.Options{AutoRepair: true}, nil)
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return s.LastReport() != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.LastReport().Codes)
}

func TestScheduler_Deshabilitado(t *testing.T) {
	e := newEnv(t)
	s := audit.NewScheduler(e.auditor, 0, audit.Options{}, nil)
	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	assert.Nil(t, s.LastReport())
}
