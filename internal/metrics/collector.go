package metrics

import (
	"time"

	"github.com/eshe-huli/keyring-store/internal/storage"
)

// Collector periodically samples storage population into the gauge
// metrics. The dispatcher updates request/changes counters inline; this
// loop exists only for values that are cheaper to poll than to track on
// every mutation.
type Collector struct {
	store  *storage.Store
	stopCh chan struct{}
}

// NewCollector creates a metrics collector over store.
func NewCollector(store *storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic collection in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
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

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	blobs, documents, err := c.store.Counts()
	if err != nil {
		return
	}
	BlobsTotal.Set(float64(blobs))
	DocumentsTotal.Set(float64(documents))
}
