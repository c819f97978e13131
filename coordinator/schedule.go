package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/cadms/dashcache/querycache"
)

// InvalidationSchedule describes a one-shot or recurring invalidation
// of a query key.
type InvalidationSchedule struct {
	Key       querycache.Key
	Delay     time.Duration
	Recurring bool
}

// WarmingEntry describes a query kept warm by periodic prefetching.
// High-priority entries are warmed immediately at registration, others
// wait for their first tick.
type WarmingEntry struct {
	Key      querycache.Key
	Priority string
	Interval time.Duration
	Fetch    querycache.Fetcher
}

// PriorityHigh marks a warming entry for immediate first warming.
const PriorityHigh = "high"

type schedule struct {
	quit chan struct{}
}

// ScheduleInvalidation registers a timer that invalidates the given
// key when it fires and returns an opaque schedule identifier. Every
// live schedule is tracked and torn down by Close; callers can cancel
// one early via CancelInvalidation.
func (c *Coordinator) ScheduleInvalidation(s InvalidationSchedule) string {
	id := uuid.NewString()
	sched := &schedule{quit: make(chan struct{})}

	c.m.Lock()
	c.schedules[id] = sched
	c.m.Unlock()

	go func() {
		defer c.forget(id)
		if !s.Recurring {
			select {
			case <-time.After(s.Delay):
				c.cache.Invalidate(s.Key)
				log.Debugf("one-shot invalidation of %s fired", s.Key)
			case <-sched.quit:
			}
			return
		}

		ticker := time.NewTicker(s.Delay)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.cache.Invalidate(s.Key)
				log.Debugf("recurring invalidation of %s fired", s.Key)
			case <-sched.quit:
				return
			}
		}
	}()

	return id
}

// SetupWarming registers periodic prefetching for the given queries
// and returns the schedule identifiers. High-priority entries warm
// once immediately.
func (c *Coordinator) SetupWarming(entries []WarmingEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, c.warm(e))
	}
	return ids
}

func (c *Coordinator) warm(e WarmingEntry) string {
	id := uuid.NewString()
	sched := &schedule{quit: make(chan struct{})}

	c.m.Lock()
	c.schedules[id] = sched
	c.m.Unlock()

	log.Infof("warming %s every %s (priority %s)", e.Key, e.Interval, e.Priority)

	go func() {
		defer c.forget(id)
		if e.Priority == PriorityHigh {
			c.warmOnce(e)
		}

		ticker := time.NewTicker(e.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.warmOnce(e)
			case <-sched.quit:
				return
			}
		}
	}()

	return id
}

func (c *Coordinator) warmOnce(e WarmingEntry) {
	if _, err := c.cache.Refresh(context.Background(), e.Key, 0, e.Fetch); err != nil {
		log.Errorf("failed to warm %s: %s", e.Key, err)
	}
}

// ScheduleOptimize runs an Optimize pass with the given config on a
// fixed cadence. The returned identifier cancels it like any other
// schedule; Close tears it down too.
func (c *Coordinator) ScheduleOptimize(cfg OptimizeConfig, interval time.Duration) string {
	id := uuid.NewString()
	sched := &schedule{quit: make(chan struct{})}

	c.m.Lock()
	c.schedules[id] = sched
	c.m.Unlock()

	log.Infof("optimizing cache every %s (memory limit %d bytes)", interval, cfg.MemoryLimit)

	go func() {
		defer c.forget(id)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Optimize(cfg)
			case <-sched.quit:
				return
			}
		}
	}()

	return id
}

// CancelInvalidation cancels a schedule by identifier. Returns false
// when the identifier is unknown or already finished.
func (c *Coordinator) CancelInvalidation(id string) bool {
	c.m.Lock()
	sched, ok := c.schedules[id]
	if ok {
		delete(c.schedules, id)
	}
	c.m.Unlock()

	if !ok {
		return false
	}
	close(sched.quit)
	return true
}

// Close tears down every live schedule.
func (c *Coordinator) Close() {
	c.m.Lock()
	scheds := make([]*schedule, 0, len(c.schedules))
	for id, s := range c.schedules {
		scheds = append(scheds, s)
		delete(c.schedules, id)
	}
	c.m.Unlock()

	for _, s := range scheds {
		close(s.quit)
	}
}

// forget drops a finished schedule without closing its quit channel.
func (c *Coordinator) forget(id string) {
	c.m.Lock()
	delete(c.schedules, id)
	c.m.Unlock()
}
