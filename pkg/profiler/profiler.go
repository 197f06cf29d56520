package profiler

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Phase names used by the filter pipeline
const (
	PhaseLoad     = "load"
	PhaseLearn    = "learn"
	PhaseClassify = "classify"
	PhaseMirror   = "mirror"
)

// Profiler records how long each phase of a run took
type Profiler struct {
	mu    sync.RWMutex
	times map[string][]time.Duration
	items map[string]int
}

// NewProfiler creates a new profiler
func NewProfiler() *Profiler {
	return &Profiler{
		times: make(map[string][]time.Duration),
		items: make(map[string]int),
	}
}

// Timer represents a timing operation
type Timer struct {
	profiler *Profiler
	name     string
	start    time.Time
}

// Start begins timing a phase
func (p *Profiler) Start(name string) *Timer {
	return &Timer{profiler: p, name: name, start: time.Now()}
}

// Stop records the elapsed time and the number of items the phase handled
func (t *Timer) Stop(items int) time.Duration {
	d := time.Since(t.start)
	t.profiler.Record(t.name, d, items)
	return d
}

// Record manually records a timing
func (p *Profiler) Record(name string, d time.Duration, items int) {
	p.mu.Lock()
	p.times[name] = append(p.times[name], d)
	p.items[name] += items
	p.mu.Unlock()
}

// Time runs fn as phase name
func (p *Profiler) Time(name string, items int, fn func() error) error {
	timer := p.Start(name)
	err := fn()
	timer.Stop(items)
	return err
}

// Stats contains timing statistics for one phase
type Stats struct {
	Name    string
	Count   int
	Items   int
	Total   time.Duration
	Average time.Duration
	Min     time.Duration
	Max     time.Duration
}

// Rate returns handled items per second
func (s *Stats) Rate() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Items) / s.Total.Seconds()
}

// GetStats returns timing statistics for a phase
func (p *Profiler) GetStats(name string) *Stats {
	p.mu.RLock()
	times := p.times[name]
	items := p.items[name]
	p.mu.RUnlock()

	if len(times) == 0 {
		return &Stats{Name: name}
	}

	stats := &Stats{Name: name, Count: len(times), Items: items, Min: times[0], Max: times[0]}
	for _, t := range times {
		stats.Total += t
		stats.Min = min(stats.Min, t)
		stats.Max = max(stats.Max, t)
	}
	stats.Average = stats.Total / time.Duration(len(times))
	return stats
}

// GetAllStats returns statistics for all phases sorted by name
func (p *Profiler) GetAllStats() []*Stats {
	p.mu.RLock()
	names := make([]string, 0, len(p.times))
	for name := range p.times {
		names = append(names, name)
	}
	p.mu.RUnlock()

	sort.Strings(names)

	stats := make([]*Stats, 0, len(names))
	for _, name := range names {
		stats = append(stats, p.GetStats(name))
	}
	return stats
}

// PrintReport prints a formatted timing report
func (p *Profiler) PrintReport(w io.Writer) {
	stats := p.GetAllStats()
	if len(stats) == 0 {
		fmt.Fprintln(w, "No timing data available")
		return
	}

	fmt.Fprintf(w, "⏱️  Phase Timings\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "%-10s %6s %8s %10s %10s %12s\n", "Phase", "Runs", "Items", "Total", "Avg", "Items/s")
	for _, s := range stats {
		fmt.Fprintf(w, "%-10s %6d %8d %10s %10s %12.0f\n",
			s.Name, s.Count, s.Items, formatDuration(s.Total), formatDuration(s.Average), s.Rate())
	}
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%.3fs", d.Seconds())
	}
}
