// Package metrics keeps bridge counters, gauges and histograms in a
// Registry and renders them in the Prometheus text exposition format.
// All series are safe for concurrent use.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType is the exposition TYPE of a family.
type MetricType int

const (
	// TypeCounter only goes up.
	TypeCounter MetricType = iota
	// TypeGauge moves freely.
	TypeGauge
	// TypeHistogram buckets observations.
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Labels are the label pairs of one series.
type Labels map[string]string

// String renders labels in exposition order, e.g. {a="1",b="2"}.
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	return "{" + l.pairs() + "}"
}

func (l Labels) pairs() string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(l))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, k, labelEscaper.Replace(l[k])))
	}
	return strings.Join(parts, ",")
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// Counter is a uint64 series that never decreases.
type Counter struct {
	value atomic.Uint64
}

func (c *Counter) Inc() {
	c.value.Add(1)
}

func (c *Counter) Add(v uint64) {
	c.value.Add(v)
}

func (c *Counter) Value() uint64 {
	return c.value.Load()
}

// Gauge is an int64 series.
type Gauge struct {
	value atomic.Int64
}

func (g *Gauge) Set(v int64) {
	g.value.Store(v)
}

func (g *Gauge) Inc() {
	g.value.Add(1)
}

func (g *Gauge) Dec() {
	g.value.Add(-1)
}

func (g *Gauge) Value() int64 {
	return g.value.Load()
}

// Histogram counts observations per upper bound and keeps their sum.
type Histogram struct {
	buckets []float64

	mu     sync.Mutex
	counts []uint64 // per bucket, last is +Inf
	sum    float64
	count  uint64
}

// DurationBuckets suit channel round trips, in seconds.
var DurationBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

func newHistogram(buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DurationBuckets
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	return &Histogram{
		buckets: sorted,
		counts:  make([]uint64, len(sorted)+1),
	}
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	h.counts[sort.SearchFloat64s(h.buckets, v)]++
}

// ObserveDuration observes d in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// family is every series sharing a metric name.
type family struct {
	name   string
	help   string
	typ    MetricType
	series map[string]*series
}

type series struct {
	labels    Labels
	counter   *Counter
	gauge     *Gauge
	histogram *Histogram
}

// Registry owns every family exposed under one namespace.
type Registry struct {
	namespace string

	mu       sync.RWMutex
	families map[string]*family
}

// NewRegistry creates a registry whose metric names are prefixed with
// namespace.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace: namespace,
		families:  make(map[string]*family),
	}
}

func (r *Registry) fullName(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + "_" + name
}

// lookup returns the series for name and labels, creating it with create.
// It panics when name is already registered with another type.
func (r *Registry) lookup(name, help string, typ MetricType, labels Labels, create func() *series) *series {
	fullName := r.fullName(name)
	key := labels.String()

	r.mu.RLock()
	if f, ok := r.families[fullName]; ok && f.typ == typ {
		if s, ok := f.series[key]; ok {
			r.mu.RUnlock()
			return s
		}
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.families[fullName]
	if !ok {
		f = &family{name: fullName, help: help, typ: typ, series: make(map[string]*series)}
		r.families[fullName] = f
	}
	if f.typ != typ {
		panic(fmt.Sprintf("metrics: %s registered as %s, not %s", fullName, f.typ, typ))
	}
	s, ok := f.series[key]
	if !ok {
		s = create()
		s.labels = labels
		f.series[key] = s
	}
	return s
}

// Counter returns the counter for name and labels, registering it on first
// use.
func (r *Registry) Counter(name, help string, labels Labels) *Counter {
	return r.lookup(name, help, TypeCounter, labels, func() *series {
		return &series{counter: &Counter{}}
	}).counter
}

// Gauge returns the gauge for name and labels, registering it on first use.
func (r *Registry) Gauge(name, help string, labels Labels) *Gauge {
	return r.lookup(name, help, TypeGauge, labels, func() *series {
		return &series{gauge: &Gauge{}}
	}).gauge
}

// Histogram returns the histogram for name and labels, registering it on
// first use. buckets only applies to the first registration.
func (r *Registry) Histogram(name, help string, labels Labels, buckets []float64) *Histogram {
	return r.lookup(name, help, TypeHistogram, labels, func() *series {
		return &series{histogram: newHistogram(buckets)}
	}).histogram
}

// WritePrometheus writes metrics in Prometheus text format, sorted by name
// and labels.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		f := r.families[name]
		fmt.Fprintf(&b, "# HELP %s %s\n", f.name, f.help)
		fmt.Fprintf(&b, "# TYPE %s %s\n", f.name, f.typ)

		keys := make([]string, 0, len(f.series))
		for k := range f.series {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			s := f.series[k]
			switch f.typ {
			case TypeCounter:
				fmt.Fprintf(&b, "%s%s %d\n", f.name, k, s.counter.Value())
			case TypeGauge:
				fmt.Fprintf(&b, "%s%s %d\n", f.name, k, s.gauge.Value())
			case TypeHistogram:
				writeHistogram(&b, f.name, s.labels, s.histogram)
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeHistogram(b *strings.Builder, name string, labels Labels, h *Histogram) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prefix := "{"
	if len(labels) > 0 {
		prefix = "{" + labels.pairs() + ","
	}

	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += h.counts[i]
		fmt.Fprintf(b, "%s_bucket%sle=\"%g\"} %d\n", name, prefix, bound, cumulative)
	}
	cumulative += h.counts[len(h.buckets)]
	fmt.Fprintf(b, "%s_bucket%sle=\"+Inf\"} %d\n", name, prefix, cumulative)
	fmt.Fprintf(b, "%s_sum%s %g\n", name, labels.String(), h.sum)
	fmt.Fprintf(b, "%s_count%s %d\n", name, labels.String(), h.count)
}

// HTTPHandler serves WritePrometheus output.
func (r *Registry) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.WritePrometheus(w)
	})
}
