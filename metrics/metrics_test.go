package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.IncRun("ok")
	m.IncRun("ok")
	m.AddRecords("structural", 12)
	m.AddRecords("structural", 0)
	m.ObserveFetch("ok", 2*time.Second)
	m.IncSinkError("sheets")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("structural")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrors.WithLabelValues("sheets")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncRun("failed")
	m.AddRecords("container", 1)
	m.ObserveFetch("transport", time.Second)
	m.IncSinkError("files")
}
