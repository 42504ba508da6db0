package core

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace = "loadtest"

	counterMetricName = "counter_total"
	trendMetricName   = "trend_seconds"
)

// Metrics is the sink every component writes its measurements to. Counters
// accumulate, trends keep every observation. Nothing is ever read back by the
// writers.
type Metrics interface {
	Add(name string, value float64)
	Observe(name string, value time.Duration)
}

// Sample is one trend observation.
type Sample struct {
	Timestamp time.Time
	Value     time.Duration
}

// Snapshot is a copy of the registry content at one point in time.
type Snapshot struct {
	Counters map[string]float64
	Trends   map[string][]Sample
}

// Registry is the default Metrics implementation. It keeps the raw samples
// in memory for the final summary and mirrors them into a prometheus
// registry so a running test can be scraped.
type Registry struct {
	lock     sync.Mutex
	counters map[string]float64
	trends   map[string][]Sample
	now      func() time.Time

	prom       *prometheus.Registry
	promCount  *prometheus.CounterVec
	promTrends *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	var this *Registry = &Registry{
		counters: make(map[string]float64),
		trends:   make(map[string][]Sample),
		now:      time.Now,
		prom:     prometheus.NewRegistry(),
	}

	this.promCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      counterMetricName,
		Help:      "Load test counters by series name",
	}, []string{"name"})

	this.promTrends = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      trendMetricName,
		Help:      "Load test latency trends by series name",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 16),
	}, []string{"name"})

	this.prom.MustRegister(this.promCount, this.promTrends)

	return this
}

func (this *Registry) Add(name string, value float64) {
	this.lock.Lock()
	this.counters[name] += value
	this.lock.Unlock()

	if value >= 0 {
		this.promCount.WithLabelValues(name).Add(value)
	}
}

func (this *Registry) Observe(name string, value time.Duration) {
	this.lock.Lock()
	this.trends[name] = append(this.trends[name], Sample{
		Timestamp: this.now(),
		Value:     value,
	})
	this.lock.Unlock()

	this.promTrends.WithLabelValues(name).Observe(value.Seconds())
}

// Counter returns the current value of a counter, zero if never written.
func (this *Registry) Counter(name string) float64 {
	this.lock.Lock()
	defer this.lock.Unlock()
	return this.counters[name]
}

// Snapshot copies the registry content.
func (this *Registry) Snapshot() Snapshot {
	var snap Snapshot
	var samples []Sample
	var value float64
	var name string

	this.lock.Lock()
	defer this.lock.Unlock()

	snap.Counters = make(map[string]float64, len(this.counters))
	for name, value = range this.counters {
		snap.Counters[name] = value
	}

	snap.Trends = make(map[string][]Sample, len(this.trends))
	for name, samples = range this.trends {
		snap.Trends[name] = append([]Sample(nil), samples...)
	}

	return snap
}

// Names returns every series name known to the registry, sorted.
func (this Snapshot) Names() []string {
	var names []string = make([]string, 0,
		len(this.Counters)+len(this.Trends))
	var name string
	var ok bool

	for name = range this.Counters {
		names = append(names, name)
	}

	for name = range this.Trends {
		if _, ok = this.Counters[name]; !ok {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

// Handler exposes the prometheus mirror of the registry.
func (this *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(this.prom, promhttp.HandlerOpts{})
}

// Timed runs one RPC call and records it under `series`: the call is counted
// in `<series>_requests`, its duration goes to `<series>_request_time` and a
// failure increments `<series>_errors`.
func Timed(metrics Metrics, series string, call func() error) error {
	var start time.Time = time.Now()
	var err error

	err = call()
	if err != nil {
		metrics.Add(series+"_errors", 1)
		return err
	}

	metrics.Observe(series+"_request_time", time.Since(start))
	metrics.Add(series+"_requests", 1)

	return nil
}

type noMetrics struct {
}

// NopMetrics returns a sink that discards everything.
func NopMetrics() Metrics {
	return noMetrics{}
}

func (noMetrics) Add(string, float64)           {}
func (noMetrics) Observe(string, time.Duration) {}
