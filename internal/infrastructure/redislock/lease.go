// Package redislock lease entre instancias sobre Redis (SET NX PX + borrado condicionado al token).
// Un circuit breaker protege las llamadas: con Redis caído el lease se omite y la exclusión
// queda a cargo del bloqueo en proceso y del bloqueo del almacenamiento.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/jhoicas/lot-ledger/pkg/config"
	"github.com/jhoicas/lot-ledger/pkg/logger"
	"github.com/jhoicas/lot-ledger/pkg/metrics"
)

const keyPrefix = "lot-ledger:lock:"

// releaseScript borra la clave solo si sigue siendo nuestra.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Client subconjunto de *redis.Client que usa el lease.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Config parámetros del lease.
type Config struct {
	TTL            time.Duration // vida máxima del lease si el dueño muere
	PollInterval   time.Duration
	ReleaseTimeout time.Duration
	// Breaker
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultConfig valores por omisión con el TTL indicado.
func DefaultConfig(ttl time.Duration) Config {
	return Config{
		TTL:              ttl,
		PollInterval:     25 * time.Millisecond,
		ReleaseTimeout:   2 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Lease implementa lock.Distributed.
type Lease struct {
	client  Client
	cfg     Config
	cb      *gobreaker.CircuitBreaker
	log     *logger.Logger
	metrics *metrics.Metrics
}

// New construye el lease. log y m pueden ser nil.
func New(client Client, cfg Config, log *logger.Logger, m *metrics.Metrics) *Lease {
	if cfg.TTL <= 0 {
		cfg.TTL = 45 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 25 * time.Millisecond
	}
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = 2 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if log == nil {
		log = logger.Nop()
	}
	l := &Lease{client: client, cfg: cfg, log: log.Component("redislock"), metrics: m}
	l.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-lease",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.log.Warn().Str("name", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker cambió de estado")
			l.metrics.SetBreakerState(name, int(to))
		},
	})
	return l
}

// NewClient crea el cliente Redis y verifica la conexión.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// State estado actual del breaker.
func (l *Lease) State() gobreaker.State { return l.cb.State() }

// Lock espera el lease de key hasta que ctx expire. Si Redis no está disponible (error o
// breaker abierto) devuelve un release vacío sin error.
func (l *Lease) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	rkey := keyPrefix + key
	for {
		ok, err := l.tryAcquire(ctx, rkey, token)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.log.Warn().Err(err).Str("key", key).Msg("lease distribuido no disponible, se continúa sin él")
			return func() {}, nil
		case ok:
			return func() { l.release(rkey, token) }, nil
		}

		t := time.NewTimer(l.cfg.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("esperando lease %s: %w", key, ctx.Err())
		case <-t.C:
		}
	}
}

// tryAcquire la clave ocupada no es un fallo para el breaker.
func (l *Lease) tryAcquire(ctx context.Context, rkey, token string) (bool, error) {
	res, err := l.cb.Execute(func() (interface{}, error) {
		return l.client.SetNX(ctx, rkey, token, l.cfg.TTL).Result()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, fmt.Errorf("redis lease: %w", err)
		}
		return false, err
	}
	return res.(bool), nil
}

func (l *Lease) release(rkey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.ReleaseTimeout)
	defer cancel()
	_, err := l.cb.Execute(func() (interface{}, error) {
		return l.client.Eval(ctx, releaseScript, []string{rkey}, token).Result()
	})
	if err != nil {
		// El TTL termina liberando la clave.
		l.log.Warn().Err(err).Str("key", rkey).Msg("no se pudo liberar el lease")
	}
}
