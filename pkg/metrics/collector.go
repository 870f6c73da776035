package metrics

import (
	"time"

	"github.com/mailvec/mailvec/pkg/queue"
)

// Collector periodically samples pipeline gauges
type Collector struct {
	queue  *queue.Queue
	stopCh chan struct{}
}

// NewCollector creates a collector sampling the given queue
func NewCollector(q *queue.Queue) *Collector {
	return &Collector{
		queue:  q,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	QueueDepth.Set(float64(c.queue.Len()))
}
