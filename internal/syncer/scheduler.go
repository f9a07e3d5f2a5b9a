package syncer

import (
	"log"
	"sync"
	"time"
)

// Scheduler drives periodic sync passes. It owns at most one timer
// goroutine: Start is a no-op while one is live, Stop waits for it to exit,
// and Restart swaps the interval without leaking the previous timer.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	run      func()
	stop     chan struct{}
	done     chan struct{}
}

func NewScheduler(interval time.Duration, run func()) *Scheduler {
	return &Scheduler{interval: interval, run: run}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.interval, s.stop, s.done)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Restart applies a new interval, replacing any live timer.
func (s *Scheduler) Restart(interval time.Duration) {
	s.Stop()
	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()
	s.Start()
}

// Running reports whether a timer goroutine is live.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *Scheduler) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			log.Printf("[sync] periodic pass")
			s.run()
		}
	}
}
