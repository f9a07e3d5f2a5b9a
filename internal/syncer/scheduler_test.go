package syncer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_StartStop(t *testing.T) {
	var runs atomic.Int64
	s := NewScheduler(10*time.Millisecond, func() { runs.Add(1) })

	s.Start()
	if !s.Running() {
		t.Fatal("scheduler not running after Start")
	}
	time.Sleep(60 * time.Millisecond)
	s.Stop()
	if s.Running() {
		t.Fatal("scheduler still running after Stop")
	}

	after := runs.Load()
	if after == 0 {
		t.Error("scheduler never fired")
	}
	time.Sleep(40 * time.Millisecond)
	if runs.Load() != after {
		t.Error("scheduler fired after Stop")
	}
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	var runs atomic.Int64
	s := NewScheduler(10*time.Millisecond, func() { runs.Add(1) })
	s.Start()
	s.Start() // no second timer
	time.Sleep(35 * time.Millisecond)
	s.Stop()

	// One timer at 10ms over ~35ms fires roughly 3 times; a leaked second
	// timer would double that.
	if got := runs.Load(); got > 5 {
		t.Errorf("runs = %d, suggests a second timer was started", got)
	}
}

func TestScheduler_RestartSwapsInterval(t *testing.T) {
	var runs atomic.Int64
	s := NewScheduler(time.Hour, func() { runs.Add(1) })
	s.Start()
	s.Restart(10 * time.Millisecond)
	defer s.Stop()

	time.Sleep(60 * time.Millisecond)
	if runs.Load() == 0 {
		t.Error("restarted scheduler never fired at the new interval")
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := NewScheduler(time.Hour, func() {})
	s.Stop() // must not panic or block
}
