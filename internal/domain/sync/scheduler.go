package sync

import (
	"context"
	stdsync "sync"
	"time"

	"pet-care-sync/internal/platform/logger"
)

// Priority de un trigger: High acorta el debounce (p.ej. una
// notificación de share entrante debe reflejarse rápido).
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

const (
	defaultDebounce     = 3 * time.Second
	defaultHighDebounce = 250 * time.Millisecond
)

// Scheduler agrupa triggers por cuenta y dispara un ciclo de sync tras
// una ventana de debounce. Triggers repetidos dentro de la ventana
// colapsan en un solo ciclo; un trigger High adelanta el timer si el
// pendiente era Normal.
type Scheduler struct {
	engine *Engine
	log    logger.Logger

	debounce     time.Duration
	highDebounce time.Duration

	mu      stdsync.Mutex
	timers  map[string]*pendingTrigger
	stopped bool
	wg      stdsync.WaitGroup
}

type pendingTrigger struct {
	timer    *time.Timer
	priority Priority
}

func NewScheduler(engine *Engine, log logger.Logger) *Scheduler {
	return &Scheduler{
		engine:       engine,
		log:          log,
		debounce:     defaultDebounce,
		highDebounce: defaultHighDebounce,
		timers:       make(map[string]*pendingTrigger),
	}
}

// Trigger encola un ciclo para la cuenta. Seguro para llamar desde
// cualquier goroutine; después de Stop es un no-op.
func (s *Scheduler) Trigger(accountID string, p Priority) {
	if accountID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	delay := s.debounce
	if p == PriorityHigh {
		delay = s.highDebounce
	}

	if t, ok := s.timers[accountID]; ok {
		if p == PriorityHigh && t.priority == PriorityNormal {
			// Adelantar el timer pendiente.
			t.timer.Reset(delay)
			t.priority = PriorityHigh
		}
		return
	}

	pt := &pendingTrigger{priority: p}
	pt.timer = time.AfterFunc(delay, func() { s.fire(accountID) })
	s.timers[accountID] = pt
}

func (s *Scheduler) fire(accountID string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, accountID)
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	if _, err := s.engine.Sync(context.Background(), accountID); err != nil {
		s.log.Error("scheduled sync failed", map[string]any{
			"account_id": accountID, "error": err.Error(),
		})
	}
}

// Stop cancela los timers pendientes y espera los ciclos en vuelo.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
