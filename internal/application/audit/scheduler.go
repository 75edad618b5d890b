package audit

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/lot-ledger/pkg/logger"
)

// Scheduler ejecuta RunFullCheck periódicamente en segundo plano.
type Scheduler struct {
	auditor  *Auditor
	interval time.Duration
	opts     Options
	log      *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	last   *Report
}

// NewScheduler crea el programador. interval <= 0 lo deja deshabilitado.
func NewScheduler(a *Auditor, interval time.Duration, opts Options, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{auditor: a, interval: interval, opts: opts, log: log.Component("audit_scheduler")}
}

// Start arranca el ciclo. No hace nada si está deshabilitado o ya corriendo.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interval <= 0 {
		s.log.Info().Msg("auditoría programada deshabilitada")
		return
	}
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
	s.log.Info().Dur("interval", s.interval).Bool("auto_repair", s.opts.AutoRepair).Msg("auditoría programada iniciada")
}

// Stop detiene el ciclo y espera a que termine la corrida en curso.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info().Msg("auditoría programada detenida")
}

// LastReport último reporte completo (nil si aún no corrió).
func (s *Scheduler) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.auditor.RunFullCheck(ctx, s.opts)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error().Err(err).Msg("auditoría programada fallida")
		}
		return
	}
	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
}
