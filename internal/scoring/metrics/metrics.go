package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for scoring writes and reads.
type Metrics struct {
	FactorWrites      *prometheus.CounterVec
	Rejections        *prometheus.CounterVec
	WriteDuration     prometheus.Histogram
	EvaluationsRead   *prometheus.CounterVec
	EvaluationCreated prometheus.Counter
}

// New registers scoring metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FactorWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustscore_factor_writes_total",
			Help: "Committed factor writes by audit action",
		}, []string{"action"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustscore_factor_rejections_total",
			Help: "Factor writes refused, by error code",
		}, []string{"code"}),
		WriteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustscore_factor_write_duration_seconds",
			Help:    "Duration of the transactional factor write (mutation plus audit append)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		EvaluationsRead: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trustscore_evaluation_reads_total",
			Help: "Evaluation reads by source (cache or store)",
		}, []string{"source"}),
		EvaluationCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "trustscore_evaluations_created_total",
			Help: "Evaluations created by a first factor write",
		}),
	}
}

// IncFactorWrite records a committed write.
func (m *Metrics) IncFactorWrite(action string) {
	m.FactorWrites.WithLabelValues(action).Inc()
}

// IncRejection records a refused write.
func (m *Metrics) IncRejection(code string) {
	m.Rejections.WithLabelValues(code).Inc()
}

// ObserveWrite records the duration of a transactional write.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveWrite(start time.Time) {
	m.WriteDuration.Observe(time.Since(start).Seconds())
}

// IncRead records where an evaluation read was served from.
func (m *Metrics) IncRead(source string) {
	m.EvaluationsRead.WithLabelValues(source).Inc()
}
