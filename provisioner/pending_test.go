package provisioner

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPendingCounterReleaseIsIdempotent(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_pending"})
	c := PendingCounter{gauge: gauge}

	release := c.Acquire()
	other := c.Acquire()
	assert.Equal(t, 2, c.Value())
	assert.Equal(t, float64(2), testutil.ToFloat64(gauge))

	release()
	release()
	assert.Equal(t, 1, c.Value())

	other()
	assert.Equal(t, 0, c.Value())
	assert.Equal(t, float64(0), testutil.ToFloat64(gauge))
}
