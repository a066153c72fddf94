package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bot's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	IngestRuns     *prometheus.CounterVec
	IngestRows     *prometheus.CounterVec
	IngestDuration prometheus.Histogram

	NavCommands   *prometheus.CounterVec
	InvalidInput  *prometheus.CounterVec
	StaleResets   prometheus.Counter
	LoadFailures  prometheus.Counter
	AdminCommands *prometheus.CounterVec
}

// New registers collectors on reg. sessions, when non-nil, backs the
// active sessions gauge.
func New(reg prometheus.Registerer, sessions func() int) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		IngestRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "olympiadbot_ingest_runs_total",
			Help: "Ingestion runs by mode and result",
		}, []string{"mode", "result"}),

		IngestRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "olympiadbot_ingest_rows_total",
			Help: "Ingested spreadsheet rows by outcome",
		}, []string{"outcome"}), // inserted, skipped, missing_asset

		IngestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "olympiadbot_ingest_duration_seconds",
			Help:    "Wall time of ingestion runs",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),

		NavCommands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "olympiadbot_navigation_commands_total",
			Help: "Navigation commands handled by kind",
		}, []string{"kind"}),

		InvalidInput: f.NewCounterVec(prometheus.CounterOpts{
			Name: "olympiadbot_navigation_invalid_input_total",
			Help: "Inputs rejected with a re-prompt, by state",
		}, []string{"state"}),

		StaleResets: f.NewCounter(prometheus.CounterOpts{
			Name: "olympiadbot_navigation_stale_resets_total",
			Help: "Sessions reset because their task disappeared",
		}),

		LoadFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "olympiadbot_ingest_malformed_total",
			Help: "Bundles rejected before any row was processed",
		}),

		AdminCommands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "olympiadbot_admin_commands_total",
			Help: "Operator commands by name and outcome",
		}, []string{"command", "outcome"}),
	}
	if sessions != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "olympiadbot_sessions_active",
			Help: "Navigation sessions currently held in memory",
		}, func() float64 { return float64(sessions()) })
	}
	return m
}

func (m *Metrics) RecordIngest(mode, result string, seconds float64) {
	if m == nil {
		return
	}
	m.IngestRuns.WithLabelValues(mode, result).Inc()
	m.IngestDuration.Observe(seconds)
}

func (m *Metrics) RecordRows(inserted, skipped, missingAssets int) {
	if m == nil {
		return
	}
	m.IngestRows.WithLabelValues("inserted").Add(float64(inserted))
	m.IngestRows.WithLabelValues("skipped").Add(float64(skipped))
	m.IngestRows.WithLabelValues("missing_asset").Add(float64(missingAssets))
}

func (m *Metrics) RecordMalformed() {
	if m == nil {
		return
	}
	m.LoadFailures.Inc()
}

func (m *Metrics) RecordCommand(kind string) {
	if m == nil {
		return
	}
	m.NavCommands.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordInvalid(state string) {
	if m == nil {
		return
	}
	m.InvalidInput.WithLabelValues(state).Inc()
}

func (m *Metrics) RecordStaleReset() {
	if m == nil {
		return
	}
	m.StaleResets.Inc()
}

func (m *Metrics) RecordAdmin(command, outcome string) {
	if m == nil {
		return
	}
	m.AdminCommands.WithLabelValues(command, outcome).Inc()
}
