package provisioner

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// PendingCounter counts the creations currently in flight.
type PendingCounter struct {
	value atomic.Int64
	gauge prometheus.Gauge
}

// Acquire registers a creation attempt. The returned func releases it; calling
// it more than once has no further effect.
func (c *PendingCounter) Acquire() (release func()) {
	c.value.Add(1)
	if c.gauge != nil {
		c.gauge.Inc()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.value.Add(-1)
			if c.gauge != nil {
				c.gauge.Dec()
			}
		})
	}
}

func (c *PendingCounter) Value() int {
	return int(c.value.Load())
}
