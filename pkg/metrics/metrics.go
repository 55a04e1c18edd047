// Metrics collection for the BLDC controller host
//
// Counters, gauges and histograms in Prometheus text exposition format.

package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Labels are metric label key-value pairs.
type Labels map[string]string

func labelKey(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
	}
	return sb.String()
}

func formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		v := labels[k]
		v = strings.ReplaceAll(v, "\\", "\\\\")
		v = strings.ReplaceAll(v, "\"", "\\\"")
		fmt.Fprintf(&sb, "%s=%q", k, v)
	}
	sb.WriteByte('}')
	return sb.String()
}

// Metric is implemented by all metric types.
type Metric interface {
	Name() string
	Write(sb *strings.Builder)
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name, help string

	mu     sync.Mutex
	values map[string]*counterValue
}

type counterValue struct {
	labels Labels
	value  uint64
}

// NewCounter creates a counter.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help, values: make(map[string]*counterValue)}
}

// Name returns the metric name.
func (c *Counter) Name() string { return c.name }

// Inc increments the counter by one.
func (c *Counter) Inc(labels Labels) { c.Add(labels, 1) }

// Add increments the counter by delta.
func (c *Counter) Add(labels Labels, delta uint64) {
	key := labelKey(labels)
	c.mu.Lock()
	cv, ok := c.values[key]
	if !ok {
		cv = &counterValue{labels: labels}
		c.values[key] = cv
	}
	cv.value += delta
	c.mu.Unlock()
}

// Get returns the current value for a label set.
func (c *Counter) Get(labels Labels) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cv, ok := c.values[labelKey(labels)]; ok {
		return cv.value
	}
	return 0
}

// Write appends the counter in exposition format.
func (c *Counter) Write(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s counter\n", c.name, c.help, c.name)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cv := range c.values {
		fmt.Fprintf(sb, "%s%s %d\n", c.name, formatLabels(cv.labels), cv.value)
	}
}

// Gauge is a metric that can move in both directions.
type Gauge struct {
	name, help string

	mu     sync.Mutex
	values map[string]*gaugeValue
}

type gaugeValue struct {
	labels Labels
	value  float64
}

// NewGauge creates a gauge.
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help, values: make(map[string]*gaugeValue)}
}

// Name returns the metric name.
func (g *Gauge) Name() string { return g.name }

// Set sets the gauge value.
func (g *Gauge) Set(labels Labels, value float64) {
	key := labelKey(labels)
	g.mu.Lock()
	gv, ok := g.values[key]
	if !ok {
		gv = &gaugeValue{labels: labels}
		g.values[key] = gv
	}
	gv.value = value
	g.mu.Unlock()
}

// Get returns the current value for a label set.
func (g *Gauge) Get(labels Labels) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gv, ok := g.values[labelKey(labels)]; ok {
		return gv.value
	}
	return 0
}

// Write appends the gauge in exposition format.
func (g *Gauge) Write(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s gauge\n", g.name, g.help, g.name)
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, gv := range g.values {
		fmt.Fprintf(sb, "%s%s %g\n", g.name, formatLabels(gv.labels), gv.value)
	}
}

// Histogram tracks a distribution of observations in fixed buckets.
type Histogram struct {
	name, help string
	buckets    []float64

	mu     sync.Mutex
	values map[string]*histogramValue
}

type histogramValue struct {
	labels  Labels
	count   uint64
	sum     float64
	buckets []uint64
}

// NewHistogram creates a histogram with the given bucket bounds.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)
	return &Histogram{name: name, help: help, buckets: sorted, values: make(map[string]*histogramValue)}
}

// ExponentialBuckets returns count bucket bounds starting at start, each
// multiplied by factor.
func ExponentialBuckets(start, factor float64, count int) []float64 {
	buckets := make([]float64, count)
	for i := range buckets {
		buckets[i] = start
		start *= factor
	}
	return buckets
}

// Name returns the metric name.
func (h *Histogram) Name() string { return h.name }

// Observe records one observation.
func (h *Histogram) Observe(labels Labels, value float64) {
	key := labelKey(labels)
	h.mu.Lock()
	hv, ok := h.values[key]
	if !ok {
		hv = &histogramValue{labels: labels, buckets: make([]uint64, len(h.buckets))}
		h.values[key] = hv
	}
	hv.count++
	hv.sum += value
	// Per-bucket counts; Write cumulates them for exposition.
	for i, bound := range h.buckets {
		if value <= bound {
			hv.buckets[i]++
			break
		}
	}
	h.mu.Unlock()
}

// Timer returns a function that observes the elapsed seconds when called.
func (h *Histogram) Timer(labels Labels) func() {
	start := time.Now()
	return func() {
		h.Observe(labels, time.Since(start).Seconds())
	}
}

// Write appends the histogram in exposition format.
func (h *Histogram) Write(sb *strings.Builder) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, hv := range h.values {
		cumulative := uint64(0)
		for i, bound := range h.buckets {
			cumulative += hv.buckets[i]
			l := Labels{}
			for k, v := range hv.labels {
				l[k] = v
			}
			l["le"] = fmt.Sprintf("%g", bound)
			fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, formatLabels(l), cumulative)
		}
		l := Labels{}
		for k, v := range hv.labels {
			l[k] = v
		}
		l["le"] = "+Inf"
		fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, formatLabels(l), hv.count)
		fmt.Fprintf(sb, "%s_sum%s %g\n", h.name, formatLabels(hv.labels), hv.sum)
		fmt.Fprintf(sb, "%s_count%s %d\n", h.name, formatLabels(hv.labels), hv.count)
	}
}

// Registry holds registered metrics in registration order.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// Register adds a metric; duplicate names are an error.
func (r *Registry) Register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := m.Name()
	if _, exists := r.metrics[name]; exists {
		return fmt.Errorf("metric %q already registered", name)
	}
	r.metrics[name] = m
	r.order = append(r.order, name)
	return nil
}

// MustRegister adds a metric, panicking on duplicates.
func (r *Registry) MustRegister(m Metric) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Gather renders every metric in registration order.
func (r *Registry) Gather() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sb strings.Builder
	for _, name := range r.order {
		r.metrics[name].Write(&sb)
	}
	return sb.String()
}
