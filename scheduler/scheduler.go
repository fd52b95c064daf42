// Package scheduler runs the server's recurring background work: the
// simulation tick, the spawn director, and one-shot delayed tasks. Every
// task runs panic-isolated so a bad tick cannot stop the loop.
package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is one unit of scheduled work.
type TaskFn func()

// Scheduler owns named ticker and delay tasks.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerTask
	delays  map[string]*time.Timer
	logger  *zap.Logger
	stopCh  chan struct{}
}

type tickerTask struct {
	ticker *time.Ticker
	stopCh chan struct{}
}

// New creates an empty Scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		tickers: make(map[string]*tickerTask),
		delays:  make(map[string]*time.Timer),
		stopCh:  make(chan struct{}),
		logger:  logger,
	}
}

// AddTicker runs fn at the fixed interval until the task is removed or the
// scheduler stops. Re-registering a name replaces the previous task.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tickers[name]; ok {
		close(old.stopCh)
	}
	task := &tickerTask{
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}
	s.tickers[name] = task

	go s.runTicker(name, task, fn)
	s.logger.Info("ticker registered",
		zap.String("task", name), zap.Duration("interval", interval))
}

func (s *Scheduler) runTicker(name string, task *tickerTask, fn TaskFn) {
	defer task.ticker.Stop()
	for {
		select {
		case <-task.ticker.C:
			s.invoke(name, fn)
		case <-task.stopCh:
			return
		case <-s.stopCh:
			return
		}
	}
}

// invoke runs fn with panic isolation.
func (s *Scheduler) invoke(name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked",
				zap.String("task", name), zap.Any("panic", r))
		}
	}()
	fn()
}

// AddDelay runs fn once after delay. Re-registering a name resets the
// pending timer.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.delays[name]; ok {
		old.Stop()
	}
	s.delays[name] = time.AfterFunc(delay, func() {
		defer func() {
			s.mu.Lock()
			delete(s.delays, name)
			s.mu.Unlock()
		}()
		s.invoke(name, fn)
	})
}

// Remove cancels the named ticker or pending delay.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tickers[name]; ok {
		close(task.stopCh)
		delete(s.tickers, name)
	}
	if t, ok := s.delays[name]; ok {
		t.Stop()
		delete(s.delays, name)
	}
}

// Stop ends every running ticker. Idempotent.
func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// ListTickers returns the names of the registered ticker tasks, for the
// admin metrics surface.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers))
	for name := range s.tickers {
		names = append(names, name)
	}
	return names
}
