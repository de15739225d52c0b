// Package sync holds small concurrency helpers.
package sync

import "sync/atomic"

// Counter is a monotonically increasing uint64. The zero value is ready to
// use; it must not be copied after first use.
type Counter struct {
	v atomic.Uint64
}

// Inc adds one and returns the new value.
func (c *Counter) Inc() uint64 { return c.v.Add(1) }

// Add adds n and returns the new value.
func (c *Counter) Add(n uint64) uint64 { return c.v.Add(n) }

// Load returns the current value.
func (c *Counter) Load() uint64 { return c.v.Load() }
