package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncRecord("created")
	m.IncRecord("created")
	m.IncError("storage")
	m.IncEditTimeout()
	m.IncExtraction("template")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Records.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("storage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EditTimeouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Extractions.WithLabelValues("template")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncTurn("collecting")
		m.IncRecord("deleted")
		m.IncError("technical")
		m.IncEditTimeout()
		m.IncExtraction("free_text")
	})
}
