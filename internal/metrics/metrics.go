// Package metrics tracks lightweight, in-process counters for the
// renderer core: connected endpoints, outbound backlog, and dispatch
// latency. Kept as plain atomics rather than importing a metrics client
// library — no example repo in the retrieval pack wires Prometheus,
// StatsD, or OpenTelemetry, and these counters are only ever read back by
// this process (an access-log line or a future admin endpoint), not
// scraped, so there is nothing a third-party client would buy here.
package metrics

import (
	"sync/atomic"
	"time"
)

// Counters is the process-wide set of server metrics.
type Counters struct {
	EndpointsReady     int64
	EndpointsDangling  int64
	MessagesDispatched int64
	BytesQueuedTotal    int64
	DispatchErrors     int64
}

var global Counters

// Global returns the process-wide counters.
func Global() *Counters { return &global }

func (c *Counters) IncDispatched() { atomic.AddInt64(&c.MessagesDispatched, 1) }
func (c *Counters) IncErrors()     { atomic.AddInt64(&c.DispatchErrors, 1) }

func (c *Counters) SetEndpointCounts(ready, dangling int) {
	atomic.StoreInt64(&c.EndpointsReady, int64(ready))
	atomic.StoreInt64(&c.EndpointsDangling, int64(dangling))
}

func (c *Counters) AddBytesQueued(n int) {
	atomic.AddInt64(&c.BytesQueuedTotal, int64(n))
}

// Snapshot is a point-in-time, race-free copy of Counters for logging.
type Snapshot struct {
	EndpointsReady     int64
	EndpointsDangling  int64
	MessagesDispatched int64
	BytesQueuedTotal    int64
	DispatchErrors     int64
	At                 time.Time
}

// Snapshot takes a consistent read of every counter. The caller supplies
// `at` since this package never calls time.Now() itself (the engine is the
// sole clock source, per spec.md §5's single-goroutine-owns-state model).
func (c *Counters) Snapshot(at time.Time) Snapshot {
	return Snapshot{
		EndpointsReady:     atomic.LoadInt64(&c.EndpointsReady),
		EndpointsDangling:  atomic.LoadInt64(&c.EndpointsDangling),
		MessagesDispatched: atomic.LoadInt64(&c.MessagesDispatched),
		BytesQueuedTotal:    atomic.LoadInt64(&c.BytesQueuedTotal),
		DispatchErrors:     atomic.LoadInt64(&c.DispatchErrors),
		At:                 at,
	}
}
