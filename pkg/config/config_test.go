package config_test

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lot-ledger/pkg/config"
)

func TestFromViper_ValoresPorDefecto(t *testing.T) {
	cfg, err := config.FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Ledger.LockTimeout)
	assert.Equal(t, 5, cfg.Ledger.RetryMaxAttempts)
	assert.Equal(t, "postgres", cfg.App.Storage)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
	assert.Zero(t, cfg.Audit.Interval)
	assert.True(t, cfg.Audit.AutoRepair)
	assert.Empty(t, cfg.Warehouses)
}

func TestFromViper_LeeVariables(t *testing.T) {
	v := viper.New()
	v.Set("LOCK_TIMEOUT", "5s")
	v.Set("RETRY_MAX_ATTEMPTS", "3")
	v.Set("AUDIT_INTERVAL", "10m")
	v.Set("WAREHOUSE_PREFIXES", "1:ph, 2:HN")
	v.Set("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := config.FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Ledger.LockTimeout)
	assert.Equal(t, 3, cfg.Ledger.RetryMaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Audit.Interval)
	assert.Equal(t, map[string]string{"1": "PH", "2": "HN"}, cfg.Warehouses)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestParseWarehousePrefixes_Errores(t *testing.T) {
	_, err := config.ParseWarehousePrefixes("1:PH,2:PH")
	assert.Error(t, err, "un prefijo no puede apuntar a dos bodegas")

	_, err = config.ParseWarehousePrefixes("1")
	assert.Error(t, err)
}

func TestDBConfig_ConnectionString(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "x", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/x?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgres://other"
	assert.Equal(t, "postgres://other", c.ConnectionString())
}
