package querycache

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// StartSweep runs the retention sweep until StopSweep is called.
func (c *Cache) StartSweep() {
	if c.opts.SweepInterval == 0 {
		return
	}
	go c.sweep(c.quit)
}

// StopSweep stops the retention sweep.
func (c *Cache) StopSweep() {
	c.once.Do(func() {
		close(c.quit)
	})
}

func (c *Cache) sweep(quit <-chan struct{}) {
	ticker := time.NewTicker(c.opts.SweepInterval)
	for {
		select {
		case <-ticker.C:
			c.removeRetired()
		case <-quit:
			ticker.Stop()
			return
		}
	}
}

func (c *Cache) removeRetired() {
	log.Debug("Started removing retired cache entries")
	now := time.Now()

	c.m.Lock()
	defer c.m.Unlock()
	for id, e := range c.entries {
		if e.status == StatusSuccess && e.retired(now) {
			log.Debugf("Entry %s passed its retention time", id)
			delete(c.entries, id)
		}
	}
	log.Debug("Finished removing retired cache entries")
}
