package lock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lot-ledger/internal/application/lock"
	"github.com/jhoicas/lot-ledger/internal/domain"
)

func TestCoordinator_ExclusionMutuaPorClave(t *testing.T) {
	c := lock.New(lock.Config{Timeout: 5 * time.Second})

	var inside, maxInside int32
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.WithLock(context.Background(), "PH/ACME/AB1234/20250701/001", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				counter++
				time.Sleep(100 * time.Microsecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, int32(1), maxInside, "nunca debe haber dos dueños de la misma clave")
	assert.Zero(t, c.Active(), "las entradas del mapa se limpian al liberar")
}

func TestCoordinator_ClavesDistintasNoSeBloquean(t *testing.T) {
	c := lock.New(lock.Config{Timeout: time.Second})
	g1, err := c.Acquire(context.Background(), "A")
	require.NoError(t, err)
	defer g1.Release()

	g2, err := c.Acquire(context.Background(), "B")
	require.NoError(t, err)
	g2.Release()
}

func TestCoordinator_TimeoutEsReintentable(t *testing.T) {
	c := lock.New(lock.Config{Timeout: 30 * time.Millisecond})
	g, err := c.Acquire(context.Background(), "A")
	require.NoError(t, err)
	defer g.Release()

	_, err = c.Acquire(context.Background(), "A")
	require.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.True(t, domain.IsRetryable(err))
}

func TestCoordinator_CancelacionDelLlamador(t *testing.T) {
	c := lock.New(lock.Config{Timeout: time.Minute})
	g, err := c.Acquire(context.Background(), "A")
	require.NoError(t, err)
	defer g.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Acquire(ctx, "A")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrLockTimeout)
}

func TestCoordinator_ReleaseIdempotente(t *testing.T) {
	c := lock.New(lock.Config{Timeout: time.Second})
	g, err := c.Acquire(context.Background(), "A")
	require.NoError(t, err)
	g.Release()
	g.Release()

	g2, err := c.Acquire(context.Background(), "A")
	require.NoError(t, err)
	g2.Release()
}

func TestCoordinator_LotesCruzadosSinDeadlock(t *testing.T) {
	c := lock.New(lock.Config{Timeout: 2 * time.Second})
	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 100; i++ {
		keys := []string{"X", "Y", "Z"}
		if i%2 == 0 {
			keys = []string{"Z", "Y", "X", "Y"}
		}
		wg.Add(1)
		go func(keys []string) {
			defer wg.Done()
			errs <- c.WithLocks(context.Background(), keys, func(context.Context) error { return nil })
		}(keys)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestCoordinator_AcquireAllOrdenLexicografico(t *testing.T) {
	c := lock.New(lock.Config{Timeout: time.Second})
	g, err := c.AcquireAll(context.Background(), []string{"b", "a", "c", "a", ""})
	require.NoError(t, err)
	defer g.Release()
	assert.Equal(t, []string{"a", "b", "c"}, g.Keys())
}

type fakeLease struct {
	mu       sync.Mutex
	locked   []string
	released []string
	failOn   string
}

func (f *fakeLease) Lock(_ context.Context, key string) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key == f.failOn {
		return nil, errors.New("redis caído")
	}
	f.locked = append(f.locked, key)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.released = append(f.released, key)
	}, nil
}

func TestCoordinator_LeaseDistribuido(t *testing.T) {
	lease := &fakeLease{}
	c := lock.New(lock.Config{Timeout: time.Second}, lock.WithDistributed(lease))

	g, err := c.AcquireAll(context.Background(), []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lease.locked)
	g.Release()
	assert.Equal(t, []string{"b", "a"}, lease.released)
}

func TestCoordinator_FalloDelLeaseLiberaTodo(t *testing.T) {
	lease := &fakeLease{failOn: "b"}
	c := lock.New(lock.Config{Timeout: time.Second}, lock.WithDistributed(lease))

	_, err := c.AcquireAll(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, lease.released)
	assert.Zero(t, c.Active())
}
