package stats

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/b2gm/lodmap/log"
)

// Skip reasons used as label values.
const (
	ReasonUnsupportedGeometry = "unsupported_geometry"
	ReasonDegenerate          = "degenerate"
	ReasonZeroHeight          = "zero_height"
	ReasonMissingAttribute    = "missing_attribute"
	ReasonInvalidAttribute    = "invalid_attribute"
	ReasonProjection          = "projection"
	ReasonOther               = "other"
)

// Statistics collects the counters of one run. All methods are safe to
// call on a nil *Statistics.
type Statistics struct {
	registry *prometheus.Registry

	features *prometheus.CounterVec
	solids   *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	batches  *prometheus.CounterVec
	duration *prometheus.HistogramVec

	processed *Counter
	written   *Counter
}

// New registers all run metrics on a fresh registry.
func New() *Statistics {
	s := &Statistics{
		registry: prometheus.NewRegistry(),
		features: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lodmap_features_read_total",
			Help: "Footprint features read from the batch source.",
		}, []string{"batch"}),
		solids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lodmap_solids_written_total",
			Help: "Extruded solids written as mesh files.",
		}, []string{"batch"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lodmap_features_skipped_total",
			Help: "Features dropped with a warning, labeled by reason.",
		}, []string{"batch", "reason"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lodmap_batches_total",
			Help: "Finished batches, labeled by status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lodmap_batch_duration_seconds",
			Help:    "Wall-clock duration of a batch.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, []string{"batch"}),
		processed: NewCounter(),
		written:   NewCounter(),
	}
	s.registry.MustRegister(s.features, s.solids, s.skipped, s.batches, s.duration)
	return s
}

func (s *Statistics) AddFeatures(batch string, n int) {
	if s == nil {
		return
	}
	s.features.WithLabelValues(batch).Add(float64(n))
}

// AddProcessed counts features that went through extrusion, whether
// they were kept or skipped.
func (s *Statistics) AddProcessed(n int) {
	if s == nil {
		return
	}
	s.processed.Add(n)
}

func (s *Statistics) AddSolids(batch string, n int) {
	if s == nil {
		return
	}
	s.solids.WithLabelValues(batch).Add(float64(n))
	s.written.Add(n)
}

func (s *Statistics) AddSkipped(batch, reason string) {
	if s == nil {
		return
	}
	s.skipped.WithLabelValues(batch, reason).Inc()
}

// BatchDone records the outcome and duration of a batch.
func (s *Statistics) BatchDone(batch string, d time.Duration, err error) {
	if s == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	s.batches.WithLabelValues(status).Inc()
	s.duration.WithLabelValues(batch).Observe(d.Seconds())
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector.
func (s *Statistics) WriteTextfile(path string) error {
	if s == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return errors.Wrapf(err, "writing metrics to %s", path)
	}
	return nil
}

// StartReporter logs the progress counters every interval until the
// returned function is called.
func (s *Statistics) StartReporter(l log.Logger, interval time.Duration) func() {
	if s == nil {
		return func() {}
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				s.print(l)
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func (s *Statistics) print(l log.Logger) {
	processed := s.processed.Tick()
	written := s.written.Tick()
	l.Printf("[progress] features: %8d (%6.0f/s) solids: %8d (%6.0f/s)",
		processed.Total, processed.Rate, written.Total, written.Rate)
}
