package metrics

import "testing"

func TestNopReporterDoesNotPanic(t *testing.T) {
	c := NopReporter.NewCounter("x")
	c.Inc()
	c.Add(5)
	_ = c.Value()

	tm := NopReporter.NewTimer("y")
	tm.AddValue(1.0)

	g := NopReporter.NewGauge("z")
	g.Set(1)
	g.Add(1)
	g.Sub(1)
	g.Inc()
	g.Dec()
	_ = g.Value()
}
