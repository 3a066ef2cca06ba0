// Package metrics keeps process-lifetime counters for the /metrics endpoint.
package metrics

import (
	"sync/atomic"
	"time"
)

// Collector counts published and dispatched messages since process start.
type Collector struct {
	started    time.Time
	published  atomic.Int64
	dispatched atomic.Int64
}

func New() *Collector {
	return &Collector{started: time.Now()}
}

// IncPublished records one message handed to the outbound transport.
func (c *Collector) IncPublished() {
	c.published.Add(1)
}

// IncDispatched records one inbound message fanned out to a room.
func (c *Collector) IncDispatched() {
	c.dispatched.Add(1)
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	UptimeSeconds      int64 `json:"uptime_seconds"`
	MessagesPublished  int64 `json:"messages_published"`
	MessagesDispatched int64 `json:"messages_dispatched"`
}

func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		UptimeSeconds:      int64(time.Since(c.started).Seconds()),
		MessagesPublished:  c.published.Load(),
		MessagesDispatched: c.dispatched.Load(),
	}
}
