package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bot counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Conversation turns by the state they started in
	Turns *prometheus.CounterVec

	// Record writes by operation: created, updated, deleted
	Records *prometheus.CounterVec

	// Turn errors by taxonomy kind
	Errors *prometheus.CounterVec

	// Pending edits that expired
	EditTimeouts prometheus.Counter

	// Parsed messages by extraction path: template, free_text, intent
	Extractions *prometheus.CounterVec
}

// New registers the counters with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "participants_bot_turns_total",
			Help: "Conversation turns by starting state",
		}, []string{"state"}),

		Records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "participants_bot_records_total",
			Help: "Participant record writes by operation",
		}, []string{"op"}),

		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "participants_bot_errors_total",
			Help: "Turn errors by kind",
		}, []string{"kind"}),

		EditTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "participants_bot_edit_timeouts_total",
			Help: "Field edits abandoned after the edit timeout",
		}),

		Extractions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "participants_bot_extractions_total",
			Help: "Parsed messages by extraction path",
		}, []string{"source"}),
	}
}

func (m *Metrics) IncTurn(state string) {
	if m != nil {
		m.Turns.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) IncRecord(op string) {
	if m != nil {
		m.Records.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) IncError(kind string) {
	if m != nil {
		m.Errors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncEditTimeout() {
	if m != nil {
		m.EditTimeouts.Inc()
	}
}

func (m *Metrics) IncExtraction(source string) {
	if m != nil {
		m.Extractions.WithLabelValues(source).Inc()
	}
}
