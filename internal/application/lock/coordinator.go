// Package lock serializa mutaciones sobre una misma clave (código de lote) dentro del proceso.
//
// El bloqueo en proceso es una optimización: con más de una instancia contra el mismo
// almacenamiento la garantía la da el bloqueo de fila/advisory que la transacción toma
// dentro de la misma sección crítica. Opcionalmente se suma un lease distribuido (Redis).
package lock

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/pkg/logger"
	"github.com/jhoicas/lot-ledger/pkg/metrics"
)

// DefaultTimeout espera máxima para adquirir un bloqueo.
const DefaultTimeout = 30 * time.Second

const defaultShards = 64

// Distributed lease entre instancias. release debe ser seguro de llamar una sola vez.
type Distributed interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Config parámetros del coordinador.
type Config struct {
	Timeout time.Duration
	Shards  int
}

// Option configura dependencias opcionales.
type Option func(*Coordinator)

// WithDistributed agrega un lease entre instancias tomado después del bloqueo en proceso.
func WithDistributed(d Distributed) Option {
	return func(c *Coordinator) { c.distributed = d }
}

// WithMetrics registra esperas y timeouts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger asigna el logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// Coordinator gestor de bloqueos por clave, particionado en shards.
type Coordinator struct {
	shards      []*shard
	timeout     time.Duration
	distributed Distributed
	metrics     *metrics.Metrics
	log         *logger.Logger
}

type shard struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock mutex como canal de capacidad 1 para poder esperar con select; refs cuenta dueño + esperas.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// New construye el coordinador.
func New(cfg Config, opts ...Option) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Shards <= 0 {
		cfg.Shards = defaultShards
	}
	c := &Coordinator{
		shards:  make([]*shard, cfg.Shards),
		timeout: cfg.Timeout,
		log:     logger.Nop(),
	}
	for i := range c.shards {
		c.shards[i] = &shard{locks: make(map[string]*keyLock)}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout devuelve la espera configurada.
func (c *Coordinator) Timeout() time.Duration { return c.timeout }

// Guard representa los bloqueos tomados. Release libera en orden inverso y es idempotente.
type Guard struct {
	c        *Coordinator
	held     []held
	releases []func()
	once     sync.Once
}

type held struct {
	key string
	kl  *keyLock
}

// Keys devuelve las claves bloqueadas en el orden de adquisición.
func (g *Guard) Keys() []string {
	keys := make([]string, len(g.held))
	for i, h := range g.held {
		keys[i] = h.key
	}
	return keys
}

// Release libera los bloqueos.
func (g *Guard) Release() {
	g.once.Do(func() {
		for i := len(g.releases) - 1; i >= 0; i-- {
			g.releases[i]()
		}
		for i := len(g.held) - 1; i >= 0; i-- {
			g.c.unlock(g.held[i])
		}
	})
}

// Acquire bloquea una clave esperando como máximo el timeout configurado.
func (c *Coordinator) Acquire(ctx context.Context, key string) (*Guard, error) {
	return c.AcquireAll(ctx, []string{key})
}

// AcquireAll bloquea varias claves en orden lexicográfico (sin duplicados) para que dos
// lotes con claves cruzadas nunca formen un ciclo. Si una falla se liberan las ya tomadas.
func (c *Coordinator) AcquireAll(ctx context.Context, keys []string) (*Guard, error) {
	ordered := SortedUnique(keys)
	if len(ordered) == 0 {
		return nil, fmt.Errorf("%w: sin claves para bloquear", domain.ErrInvalidInput)
	}

	lctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	g := &Guard{c: c, held: make([]held, 0, len(ordered))}
	for _, key := range ordered {
		h, err := c.lock(lctx, ctx, key)
		if err != nil {
			g.Release()
			return nil, err
		}
		g.held = append(g.held, h)
	}

	if c.distributed != nil {
		for _, key := range ordered {
			release, err := c.distributed.Lock(lctx, key)
			if err != nil {
				g.Release()
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					return nil, fmt.Errorf("%w: lease %s", domain.ErrLockTimeout, key)
				}
				return nil, fmt.Errorf("lease distribuido %s: %w", key, err)
			}
			if release != nil {
				g.releases = append(g.releases, release)
			}
		}
	}
	return g, nil
}

// WithLock ejecuta fn con la clave bloqueada.
func (c *Coordinator) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return c.WithLocks(ctx, []string{key}, fn)
}

// WithLocks ejecuta fn con todas las claves bloqueadas en orden determinista.
func (c *Coordinator) WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	g, err := c.AcquireAll(ctx, keys)
	if err != nil {
		return err
	}
	defer g.Release()
	return fn(ctx)
}

// Active número de claves con dueño o con esperas.
func (c *Coordinator) Active() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.locks)
		s.mu.Unlock()
	}
	return n
}

func (c *Coordinator) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// lock espera la clave con lctx (timeout) y distingue timeout propio de cancelación del llamador.
func (c *Coordinator) lock(lctx, parent context.Context, key string) (held, error) {
	s := c.shardFor(key)
	s.mu.Lock()
	kl, ok := s.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		s.locks[key] = kl
	}
	kl.refs++
	s.mu.Unlock()

	start := time.Now()
	select {
	case kl.ch <- struct{}{}:
		c.metrics.ObserveLockWait("code", time.Since(start))
		return held{key: key, kl: kl}, nil
	case <-lctx.Done():
		c.release(s, key, kl)
		if parent.Err() != nil {
			return held{}, parent.Err()
		}
		c.metrics.IncLockTimeout("code")
		c.log.Warn().Str("key", key).Dur("timeout", c.timeout).Msg("timeout esperando bloqueo")
		return held{}, fmt.Errorf("%w: %s tras %s", domain.ErrLockTimeout, key, c.timeout)
	}
}

func (c *Coordinator) unlock(h held) {
	<-h.kl.ch
	c.release(c.shardFor(h.key), h.key, h.kl)
}

func (c *Coordinator) release(s *shard, key string, kl *keyLock) {
	s.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

// SortedUnique devuelve las claves ordenadas lexicográficamente y sin duplicados ni vacías.
func SortedUnique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
