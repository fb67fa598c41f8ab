// Package metrics adapts github.com/lyft/gostats' Scope into the
// narrow Counter/Timer/Gauge surface the sketch packages instrument
// themselves with. Kept from the teacher's src/metrics/reporter.go,
// extended with a Gauge (the teacher had no use for one; the LC+BP
// engine and QS sketch both need to publish a current estimate as a
// point-in-time value rather than a monotonic counter or a timing
// sample).
package metrics

import stats "github.com/lyft/gostats"

// MetricReporter is the construction-time dependency every
// instrumented sketch or driver takes. A Reporter that discards
// everything (NopReporter) is provided for tests and for callers who
// don't want metrics wired up.
type MetricReporter interface {
	NewCounter(name string) Counter
	NewTimer(name string) Timer
	NewGauge(name string) Gauge
}

// NewStatsMetricReporter wraps a gostats Scope as a MetricReporter.
func NewStatsMetricReporter(scope stats.Scope) *StatsMetricReporter {
	return &StatsMetricReporter{scope: scope}
}

type StatsMetricReporter struct {
	scope stats.Scope
}

func (s StatsMetricReporter) NewCounter(name string) Counter {
	return s.scope.NewCounter(name)
}

func (s StatsMetricReporter) NewTimer(name string) Timer {
	return s.scope.NewTimer(name)
}

func (s StatsMetricReporter) NewGauge(name string) Gauge {
	return s.scope.NewGauge(name)
}

// Counter is an always incrementing stat.
type Counter interface {
	// Add increments the Counter by the argument's value.
	Add(uint64)
	// Inc increments the Counter by 1.
	Inc()
	// Value returns the current value of the Counter as a uint64.
	Value() uint64
}

// Timer is used to flush timing statistics.
type Timer interface {
	// AddValue flushes the timer with the argument's value.
	AddValue(float64)
}

// Gauge holds a point-in-time value that can move up or down, used
// here for the "current cardinality estimate" of lcbp and qsketch.
type Gauge interface {
	Set(uint64)
	Add(uint64)
	Sub(uint64)
	Inc()
	Dec()
	Value() uint64
}

// nopCounter/nopTimer/nopGauge back NopReporter.
type nopCounter struct{}

func (nopCounter) Add(uint64)    {}
func (nopCounter) Inc()          {}
func (nopCounter) Value() uint64 { return 0 }

type nopTimer struct{}

func (nopTimer) AddValue(float64) {}

type nopGauge struct{}

func (nopGauge) Set(uint64)    {}
func (nopGauge) Add(uint64)    {}
func (nopGauge) Sub(uint64)    {}
func (nopGauge) Inc()          {}
func (nopGauge) Dec()          {}
func (nopGauge) Value() uint64 { return 0 }

type nopReporter struct{}

func (nopReporter) NewCounter(string) Counter { return nopCounter{} }
func (nopReporter) NewTimer(string) Timer     { return nopTimer{} }
func (nopReporter) NewGauge(string) Gauge     { return nopGauge{} }

// NopReporter is a MetricReporter that discards everything. Sketch
// constructors default to it when the caller passes a nil reporter.
var NopReporter MetricReporter = nopReporter{}
