package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App        AppConfig
	DB         DBConfig
	HTTP       HTTPConfig
	Ledger     LedgerConfig
	Audit      AuditConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Warehouses map[string]string // warehouse_id -> prefijo del código
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
	Storage  string // postgres | memory
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL    string
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	MinConns       int
	MigrateOnStart bool
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LedgerConfig tiempos de espera y reintentos del núcleo del libro.
type LedgerConfig struct {
	LockTimeout          time.Duration
	LockShards           int
	TxTimeout            time.Duration
	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	CodegenMaxAttempts   int
	CodegenBackoff       time.Duration
}

// AuditConfig auditoría de consistencia programada.
type AuditConfig struct {
	Interval   time.Duration // 0 = deshabilitada
	AutoRepair bool
}

// RedisConfig lease distribuido opcional. Addr vacío = deshabilitado.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// Enabled indica si hay Redis configurado.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// KafkaConfig publicación opcional de correcciones de auditoría. Brokers vacío = deshabilitado.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// Enabled indica si hay brokers configurados.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, LOCK_TIMEOUT, WAREHOUSE_PREFIXES, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return FromViper(v)
}

// FromViper construye la configuración a partir de una instancia de Viper ya cargada.
func FromViper(v *viper.Viper) (*Config, error) {
	warehouses, err := ParseWarehousePrefixes(getString(v, "WAREHOUSE_PREFIXES", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "lot-ledger"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
			Storage:  getString(v, "STORAGE_DRIVER", "postgres"),
		},
		DB: DBConfig{
			DatabaseURL:    getString(v, "DATABASE_URL", ""),
			Host:           getString(v, "DB_HOST", "localhost"),
			Port:           getInt(v, "DB_PORT", 5432),
			User:           getString(v, "DB_USER", "postgres"),
			Password:       getString(v, "DB_PASSWORD", ""),
			DBName:         getString(v, "DB_NAME", "lot_ledger"),
			SSLMode:        getString(v, "DB_SSLMODE", "disable"),
			MaxConns:       getInt(v, "DB_MAX_CONNS", 25),
			MinConns:       getInt(v, "DB_MIN_CONNS", 2),
			MigrateOnStart: getBool(v, "MIGRATE_ON_START", true),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Ledger: LedgerConfig{
			LockTimeout:          getDuration(v, "LOCK_TIMEOUT", 30*time.Second),
			LockShards:           getInt(v, "LOCK_SHARDS", 64),
			TxTimeout:            getDuration(v, "TX_TIMEOUT", 15*time.Second),
			RetryMaxAttempts:     getInt(v, "RETRY_MAX_ATTEMPTS", 5),
			RetryInitialInterval: getDuration(v, "RETRY_INITIAL_INTERVAL", 50*time.Millisecond),
			RetryMaxInterval:     getDuration(v, "RETRY_MAX_INTERVAL", 2*time.Second),
			CodegenMaxAttempts:   getInt(v, "CODEGEN_MAX_ATTEMPTS", 5),
			CodegenBackoff:       getDuration(v, "CODEGEN_BACKOFF", 20*time.Millisecond),
		},
		Audit: AuditConfig{
			Interval:   getDuration(v, "AUDIT_INTERVAL", 0),
			AutoRepair: getBool(v, "AUDIT_AUTO_REPAIR", true),
		},
		Redis: RedisConfig{
			Addr:     getString(v, "REDIS_ADDR", ""),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
			LockTTL:  getDuration(v, "REDIS_LOCK_TTL", 45*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(getString(v, "KAFKA_BROKERS", "")),
			AuditTopic: getString(v, "KAFKA_AUDIT_TOPIC", "ledger.audit.corrections"),
		},
		Warehouses: warehouses,
	}

	if cfg.Ledger.RetryMaxAttempts < 1 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS debe ser >= 1")
	}
	if cfg.Ledger.CodegenMaxAttempts < 1 {
		return nil, fmt.Errorf("CODEGEN_MAX_ATTEMPTS debe ser >= 1")
	}
	return cfg, nil
}

// ParseWarehousePrefixes interpreta "id:PREFIJO,id:PREFIJO". Prefijos duplicados son error
// porque el prefijo debe identificar una única bodega.
func ParseWarehousePrefixes(raw string) (map[string]string, error) {
	out := make(map[string]string)
	seen := make(map[string]string)
	for _, item := range splitList(raw) {
		id, prefix, ok := strings.Cut(item, ":")
		id, prefix = strings.TrimSpace(id), strings.ToUpper(strings.TrimSpace(prefix))
		if !ok || id == "" || prefix == "" {
			return nil, fmt.Errorf("WAREHOUSE_PREFIXES: entrada inválida %q", item)
		}
		if other, dup := seen[prefix]; dup && other != id {
			return nil, fmt.Errorf("WAREHOUSE_PREFIXES: prefijo %s repetido (%s, %s)", prefix, other, id)
		}
		seen[prefix] = id
		out[id] = prefix
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}

func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if v.IsSet(key) {
		d := v.GetDuration(key)
		if d == 0 && v.GetString(key) != "0" && v.GetString(key) != "0s" {
			return def
		}
		return d
	}
	return def
}
