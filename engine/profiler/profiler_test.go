package profiler

import (
	"testing"
	"time"
)

func TestTickReportsPerInterval(t *testing.T) {
	p := NewProfiler(WithInterval(time.Second), WithSilent())
	start := time.Unix(100, 0)

	if p.Tick(start) {
		t.Fatal("first tick reported")
	}
	reported := 0
	for i := 1; i <= 120; i++ {
		step := 16 * time.Millisecond
		if i == 30 {
			step = 50 * time.Millisecond
		}
		start = start.Add(step)
		if p.Tick(start) {
			reported++
		}
	}
	if reported != 1 {
		t.Fatalf("reported %d intervals, want 1", reported)
	}
	s := p.Last()
	if s.FPS < 50 || s.FPS > 70 {
		t.Errorf("fps = %.1f", s.FPS)
	}
	if s.WorstFrame != 50*time.Millisecond {
		t.Errorf("worst frame = %v, want 50ms", s.WorstFrame)
	}
}
