package engine

import (
	"sync"
	"time"
)

// Scheduler is the host's "next frame" primitive. A frame callback is requested once and runs
// at most once; the AnimationLoop re-arms itself from inside its callback, so frames never run in
// parallel.
type Scheduler interface {
	// RequestFrame schedules fn to run on the next frame. A second request before the frame runs
	// replaces the first.
	//
	// Parameters:
	//   - fn: the callback, receiving the frame timestamp
	RequestFrame(fn func(now time.Time))

	// Cancel drops the pending request and stops scheduling. Later requests are ignored.
	Cancel()
}

// tickerScheduler runs frame callbacks on its own goroutine at a fixed rate.
type tickerScheduler struct {
	mu       *sync.Mutex
	interval time.Duration
	pending  func(time.Time)
	started  bool
	quit     chan struct{}
	quitOnce *sync.Once
}

var _ Scheduler = &tickerScheduler{}

// NewTickerScheduler creates a scheduler that fires pending frame callbacks from a ticker
// goroutine, started on the first request.
//
// Parameters:
//   - fps: the frame rate (defaults to 60 if <= 0)
//
// Returns:
//   - Scheduler: the scheduler
func NewTickerScheduler(fps float64) Scheduler {
	if fps <= 0 {
		fps = 60
	}
	return &tickerScheduler{
		mu:       &sync.Mutex{},
		interval: time.Duration(float64(time.Second) / fps),
		quit:     make(chan struct{}),
		quitOnce: &sync.Once{},
	}
}

func (s *tickerScheduler) RequestFrame(fn func(now time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
		return
	default:
	}
	s.pending = fn
	if !s.started {
		s.started = true
		go s.run()
	}
}

func (s *tickerScheduler) Cancel() {
	s.quitOnce.Do(func() {
		s.mu.Lock()
		s.pending = nil
		close(s.quit)
		s.mu.Unlock()
	})
}

// run fires the pending callback on every tick until Cancel.
func (s *tickerScheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			fn := s.pending
			s.pending = nil
			s.mu.Unlock()
			if fn != nil {
				fn(now)
			}
		}
	}
}
