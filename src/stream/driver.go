// Package stream implements the driver that feeds a key stream to one
// sketch and schedules emission, per spec.md §2's "Stream driver"
// component and §6's LCBP::observe contract. It owns none of the
// sketch algorithms; it only sequences calls into lcbp.Engine or
// qsketch.QS and reports what happened.
package stream

import (
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"

	"github.com/cardsketch/windowcard/src/lcbp"
	"github.com/cardsketch/windowcard/src/qsketch"
)

// Source is an external key supplier that may momentarily have
// nothing ready (e.g. a ring buffer being filled concurrently by
// another goroutine). Next returns ok=false, done=false to mean "poll
// again shortly"; done=true means the stream is over.
type Source interface {
	Next() (key []byte, ok bool, done bool)
}

// SliceSource adapts a pre-materialized slice of keys into a Source,
// for tests and simple batch runs.
type SliceSource struct {
	keys [][]byte
	pos  int
}

// NewSliceSource wraps keys as a Source that yields them in order and
// then reports done.
func NewSliceSource(keys [][]byte) *SliceSource {
	return &SliceSource{keys: keys}
}

func (s *SliceSource) Next() (key []byte, ok bool, done bool) {
	if s.pos >= len(s.keys) {
		return nil, false, true
	}
	key = s.keys[s.pos]
	s.pos++
	return key, true, false
}

// Driver sequences a Source into an lcbp.Engine, one element at a
// time, calling back on every emission boundary. Per spec.md §5, the
// core it drives is single-threaded and non-suspending; Driver itself
// adds no concurrency beyond the optional backoff sleep between empty
// polls of a Source that isn't ready yet.
type Driver struct {
	runID  uuid.UUID
	engine *lcbp.Engine
	logger *logrus.Entry
}

// NewDriver wraps engine with a fresh run ID, set on every Emission
// and on the driver's log entries, so repeated runs against the same
// log sink are distinguishable (SPEC_FULL "DOMAIN STACK", google/uuid).
func NewDriver(engine *lcbp.Engine) *Driver {
	runID := uuid.New()
	return &Driver{
		runID:  runID,
		engine: engine,
		logger: logrus.WithField("run_id", runID.String()),
	}
}

// RunID returns the driver's run identifier.
func (d *Driver) RunID() uuid.UUID {
	return d.runID
}

// Emission is what the driver hands to its caller on a scheduled
// emission point.
type Emission struct {
	RunID    uuid.UUID
	Snapshot lcbp.Snapshot
}

// RunSlice feeds every key in keys to the engine in order, returning
// every emitted Emission. It never blocks and never spawns a
// goroutine — the whole call is synchronous ingest, per spec.md §5.
func (d *Driver) RunSlice(keys [][]byte) []Emission {
	var emissions []Emission
	for _, key := range keys {
		if est, err := d.engine.Observe(key); err != nil {
			d.logger.WithError(err).Warn("stream: emission boundary estimate failed")
		} else if est != nil {
			emissions = append(emissions, Emission{RunID: d.runID, Snapshot: d.engine.Snapshot()})
		}
	}
	return emissions
}

// Drain polls src until it reports done, feeding every key it
// produces to the engine and invoking onEmission at every emission
// boundary. When src reports "not ready yet" (ok=false, done=false),
// Drain backs off between polls instead of busy-waiting, grounded on
// the teacher's use of jpillora/backoff for retry pacing.
func (d *Driver) Drain(src Source, onEmission func(Emission)) {
	b := &backoff.Backoff{
		Min:    100 * time.Microsecond,
		Max:    50 * time.Millisecond,
		Factor: 2,
		Jitter: true,
	}

	for {
		key, ok, done := src.Next()
		if done {
			return
		}
		if !ok {
			time.Sleep(b.Duration())
			continue
		}
		b.Reset()

		est, err := d.engine.Observe(key)
		if err != nil {
			d.logger.WithError(err).Warn("stream: emission boundary estimate failed")
			continue
		}
		if est != nil && onEmission != nil {
			onEmission(Emission{RunID: d.runID, Snapshot: d.engine.Snapshot()})
		}
	}
}

// WindowRunner feeds successive fixed-size windows to a QS sketch.
// Each call to RunWindow expects exactly the window size the sketch
// was constructed with (spec.md §9's "exactly W elements per update
// call" reading of the contract); batches are independent of one
// another and may be run across goroutines by an external caller
// (spec.md §5's batch-boundary parallelism), each owning its own QS
// instance.
type WindowRunner struct {
	runID  uuid.UUID
	qs     *qsketch.QS
	logger *logrus.Entry
}

// NewWindowRunner wraps qs with a fresh run ID.
func NewWindowRunner(qs *qsketch.QS) *WindowRunner {
	runID := uuid.New()
	return &WindowRunner{
		runID:  runID,
		qs:     qs,
		logger: logrus.WithField("run_id", runID.String()),
	}
}

// RunWindow updates qs with exactly one window of elements and
// returns its estimate.
func (w *WindowRunner) RunWindow(window [][]byte) (qsketch.Estimate, error) {
	if err := w.qs.Update(window); err != nil {
		w.logger.WithError(err).Warn("stream: QS window update failed")
		return qsketch.Estimate{}, err
	}
	est := w.qs.Estimate()
	if !est.Converged {
		w.logger.WithField("iterations", est.Iterations).Warn("stream: QS estimate flagged numeric instability")
	}
	return est, nil
}
