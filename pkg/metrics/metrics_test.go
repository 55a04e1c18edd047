package metrics

import (
	"strings"
	"testing"

	"bldc-go/pkg/controller"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_total", "a test counter")
	labels := Labels{"motor": "m"}

	c.Inc(labels)
	c.Add(labels, 4)
	if got := c.Get(labels); got != 5 {
		t.Errorf("Get() = %d, want 5", got)
	}
	if got := c.Get(Labels{"motor": "other"}); got != 0 {
		t.Errorf("unrelated labels = %d, want 0", got)
	}

	var sb strings.Builder
	c.Write(&sb)
	out := sb.String()
	if !strings.Contains(out, "# TYPE test_total counter") {
		t.Errorf("missing TYPE line: %q", out)
	}
	if !strings.Contains(out, `test_total{motor="m"} 5`) {
		t.Errorf("missing sample: %q", out)
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("test_gauge", "a test gauge")
	labels := Labels{"motor": "m"}

	g.Set(labels, 42)
	g.Set(labels, 17.5)
	if got := g.Get(labels); got != 17.5 {
		t.Errorf("Get() = %g, want 17.5", got)
	}

	var sb strings.Builder
	g.Write(&sb)
	if !strings.Contains(sb.String(), `test_gauge{motor="m"} 17.5`) {
		t.Errorf("missing sample: %q", sb.String())
	}
}

func TestHistogram(t *testing.T) {
	h := NewHistogram("test_seconds", "a test histogram", []float64{1, 10, 100})
	labels := Labels{"motor": "m"}

	for _, v := range []float64{0.5, 5, 50, 500} {
		h.Observe(labels, v)
	}

	var sb strings.Builder
	h.Write(&sb)
	out := sb.String()
	checks := []string{
		`test_seconds_bucket{le="1",motor="m"} 1`,
		`test_seconds_bucket{le="10",motor="m"} 2`,
		`test_seconds_bucket{le="100",motor="m"} 3`,
		`test_seconds_bucket{le="+Inf",motor="m"} 4`,
		`test_seconds_count{motor="m"} 4`,
		`test_seconds_sum{motor="m"} 555.5`,
	}
	for _, want := range checks {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestHistogramBucketsStayMonotonic(t *testing.T) {
	h := NewHistogram("test_seconds", "a test histogram", []float64{1, 10, 100})
	labels := Labels{"motor": "m"}

	// Repeated small observations land in the first bucket; every wider
	// bucket must report the same cumulative count, never more than +Inf.
	for i := 0; i < 3; i++ {
		h.Observe(labels, 0.5)
	}
	h.Observe(labels, 500)

	var sb strings.Builder
	h.Write(&sb)
	out := sb.String()
	checks := []string{
		`test_seconds_bucket{le="1",motor="m"} 3`,
		`test_seconds_bucket{le="10",motor="m"} 3`,
		`test_seconds_bucket{le="100",motor="m"} 3`,
		`test_seconds_bucket{le="+Inf",motor="m"} 4`,
	}
	for _, want := range checks {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestExponentialBuckets(t *testing.T) {
	got := ExponentialBuckets(1, 10, 4)
	want := []float64{1, 10, 100, 1000}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("buckets = %v, want %v", got, want)
		}
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewCounter("dup", "")); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(NewCounter("dup", "")); err == nil {
		t.Error("duplicate Register should fail")
	}
}

func TestRegistryGatherOrder(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewCounter("first_total", ""))
	r.MustRegister(NewGauge("second", ""))

	out := r.Gather()
	if strings.Index(out, "first_total") > strings.Index(out, "second") {
		t.Errorf("metrics out of registration order: %q", out)
	}
}

func TestMotorMetricsObserveStatus(t *testing.T) {
	m := NewMotorMetrics()
	labels := Labels{"motor": "m"}

	prev := controller.Status{Name: "m", State: "rampup", Step: 3, Tick: 100}
	cur := controller.Status{
		Name: "m", State: "running", Step: 4, Tick: 250,
		CommutationPeriod: 2000, EstimatedPeriod: 1990, Duty: 512,
	}
	m.ObserveStatus(prev, cur)

	if got := m.State.Get(labels); got != 3 {
		t.Errorf("state gauge = %g, want 3 (running)", got)
	}
	if got := m.TicksTotal.Get(labels); got != 150 {
		t.Errorf("ticks counter = %d, want 150", got)
	}
	if got := m.CommutationSteps.Get(labels); got != 1 {
		t.Errorf("steps counter = %d, want 1", got)
	}
	if got := m.StallEvents.Get(labels); got != 0 {
		t.Errorf("stall counter = %d, want 0", got)
	}

	// A transition into error counts one stall.
	m.ObserveStatus(cur, controller.Status{Name: "m", State: "error", Tick: 300})
	if got := m.StallEvents.Get(labels); got != 1 {
		t.Errorf("stall counter = %d, want 1", got)
	}

	out := m.Registry().Gather()
	if !strings.Contains(out, "bldc_commutation_state") {
		t.Errorf("gather missing state gauge: %q", out)
	}
}
