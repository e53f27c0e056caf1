package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-tiny/common"
)

// Stats is one reporting interval of frame and memory statistics.
type Stats struct {
	FPS          float64
	Frames       int
	WorstFrame   time.Duration
	HeapMB       float64
	AllocRateMB  float64
	GCCount      uint32
	LastPauseUs  uint64
	MaxPauseUs   uint64
	SysMB        float64
	IntervalTime time.Duration
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu             *sync.Mutex
	frameCount     int
	lastTime       time.Time
	lastFrame      time.Time
	worstFrame     time.Duration
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats
	silent         bool
}

// ProfilerOption configures a Profiler.
type ProfilerOption func(*Profiler)

// WithInterval sets how often statistics are computed and logged. Values <= 0 keep the default
// of one second.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithSilent computes statistics without logging them.
func WithSilent() ProfilerOption {
	return func(p *Profiler) {
		p.silent = true
	}
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Tick should be called once per frame with the frame timestamp.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, worst frame time, heap usage, allocation rate, GC count/pause times,
// total memory.
//
// Parameters:
//   - now: the frame timestamp
//
// Returns:
//   - bool: true if stats were computed this tick, false otherwise
func (p *Profiler) Tick(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastTime.IsZero() {
		p.lastTime, p.lastFrame = now, now
		return false
	}
	p.frameCount++
	if d := now.Sub(p.lastFrame); d > p.worstFrame {
		p.worstFrame = d
	}
	p.lastFrame = now

	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	s := Stats{
		FPS:          float64(p.frameCount) / elapsed.Seconds(),
		Frames:       p.frameCount,
		WorstFrame:   p.worstFrame,
		HeapMB:       float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:        float64(p.memStats.Sys) / 1024 / 1024,
		GCCount:      p.memStats.NumGC,
		IntervalTime: elapsed,
	}
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	s.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses
	if gc := s.GCCount; gc > 0 {
		s.LastPauseUs = p.memStats.PauseNs[(gc-1)%256] / 1000
		start := p.lastGCCount
		if gc-start > 256 {
			start = gc - 256
		}
		for i := start; i < gc; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > s.MaxPauseUs {
				s.MaxPauseUs = pause
			}
		}
	}

	if !p.silent {
		common.LogInfo("profiler",
			"fps", s.FPS,
			"worst_frame", s.WorstFrame,
			"heap_mb", s.HeapMB,
			"alloc_mb_s", s.AllocRateMB,
			"gc", s.GCCount,
			"gc_last_us", s.LastPauseUs,
			"gc_max_us", s.MaxPauseUs,
			"sys_mb", s.SysMB,
		)
	}

	p.last = s
	p.frameCount = 0
	p.worstFrame = 0
	p.lastTime = now
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the statistics of the most recent completed interval.
func (p *Profiler) Last() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
