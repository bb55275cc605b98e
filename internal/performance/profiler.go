// Package performance times zone operations and exposes them as Prometheus metrics.
package performance

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "crismap_"

// Profiler tracks durations of named operations. A nil *Profiler is valid and records nothing.
type Profiler struct {
	mu        sync.RWMutex
	metrics   map[string]*Metric
	enabled   bool
	startTime time.Time

	durations *prometheus.HistogramVec
	zoneCount prometheus.Gauge
}

// Metric holds running statistics for one operation
type Metric struct {
	Name      string
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
	LastTime  time.Duration
	LastCall  time.Time
}

// Operation is a single timed call, finished with End
type Operation struct {
	profiler *Profiler
	name     string
	start    time.Time
}

// NewProfiler creates a profiler. When reg is non-nil the Prometheus collectors are
// registered with it.
func NewProfiler(enabled bool, reg prometheus.Registerer) (*Profiler, error) {
	p := &Profiler{
		metrics:   make(map[string]*Metric),
		enabled:   enabled,
		startTime: time.Now(),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "operation_duration_seconds",
				Help:    "Duration of zone store and render operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		zoneCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "effective_zones",
			Help: "Number of zones in the effective list",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{p.durations, p.zoneCount} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// Start begins timing an operation. It returns nil when profiling is off.
func (p *Profiler) Start(name string) *Operation {
	if p == nil || !p.IsEnabled() {
		return nil
	}
	return &Operation{profiler: p, name: name, start: time.Now()}
}

// End records the elapsed time of the operation
func (o *Operation) End() {
	if o == nil {
		return
	}
	o.profiler.Record(o.name, time.Since(o.start))
}

// Record stores a duration for name
func (p *Profiler) Record(name string, duration time.Duration) {
	if p == nil || !p.IsEnabled() {
		return
	}
	p.durations.WithLabelValues(name).Observe(duration.Seconds())

	p.mu.Lock()
	defer p.mu.Unlock()

	metric, exists := p.metrics[name]
	if !exists {
		metric = &Metric{Name: name, MinTime: duration, MaxTime: duration}
		p.metrics[name] = metric
	}
	metric.Count++
	metric.TotalTime += duration
	metric.LastTime = duration
	metric.LastCall = time.Now()
	if duration < metric.MinTime {
		metric.MinTime = duration
	}
	if duration > metric.MaxTime {
		metric.MaxTime = duration
	}
}

// SetZoneCount publishes the size of the effective zone list
func (p *Profiler) SetZoneCount(n int) {
	if p == nil {
		return
	}
	p.zoneCount.Set(float64(n))
}

// GetMetric returns a copy of the statistics for name, or nil
func (p *Profiler) GetMetric(name string) *Metric {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	metric, ok := p.metrics[name]
	if !ok {
		return nil
	}
	snapshot := *metric
	return &snapshot
}

// AverageTime returns the mean duration
func (m *Metric) AverageTime() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.TotalTime / time.Duration(m.Count)
}

// IsEnabled returns whether profiling is enabled
func (p *Profiler) IsEnabled() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// JSONReport renders all statistics, durations in milliseconds
func (p *Profiler) JSONReport() ([]byte, error) {
	type metricJSON struct {
		Count   int64     `json:"count"`
		TotalMS float64   `json:"total_ms"`
		AvgMS   float64   `json:"avg_ms"`
		MinMS   float64   `json:"min_ms"`
		MaxMS   float64   `json:"max_ms"`
		LastMS  float64   `json:"last_ms"`
		Last    time.Time `json:"last_call"`
	}
	type reportJSON struct {
		StartTime time.Time              `json:"start_time"`
		RuntimeMS float64                `json:"runtime_ms"`
		Metrics   map[string]*metricJSON `json:"metrics"`
	}

	report := reportJSON{Metrics: make(map[string]*metricJSON)}
	if p == nil {
		return json.Marshal(report)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	report.StartTime = p.startTime
	report.RuntimeMS = millis(time.Since(p.startTime))
	for name, m := range p.metrics {
		report.Metrics[name] = &metricJSON{
			Count:   m.Count,
			TotalMS: millis(m.TotalTime),
			AvgMS:   millis(m.AverageTime()),
			MinMS:   millis(m.MinTime),
			MaxMS:   millis(m.MaxTime),
			LastMS:  millis(m.LastTime),
			Last:    m.LastCall,
		}
	}
	return json.Marshal(report)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
