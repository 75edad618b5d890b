package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/lot-ledger/pkg/metrics"
)

func TestMetrics_NilEsSeguro(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveLockWait("code", time.Millisecond)
		m.IncLockTimeout("code")
		m.IncRetry("apply", "deadlock")
		m.IncMovement("INBOUND", "ok")
		m.SetAuditIssues(1, 2, 3, time.Second)
	})
}

func TestMetrics_Contadores(t *testing.T) {
	m := metrics.New(metrics.Config{Namespace: "ledger", Service: "test"})
	m.IncMovement("OUTBOUND", "insufficient_stock")
	m.IncMovement("OUTBOUND", "insufficient_stock")
	m.IncLockTimeout("code")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Movements.WithLabelValues("OUTBOUND", "insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockTimeouts.WithLabelValues("code")))
}
