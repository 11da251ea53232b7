// Package clock lets services read the current time through an injected
// value instead of calling time.Now directly.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// Real reads the system clock in UTC.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// Mock is a Clock whose time only moves when told to.
type Mock struct {
	mu      sync.RWMutex
	current time.Time
}

func NewMock(t time.Time) *Mock {
	return &Mock{current: t.UTC()}
}

func (c *Mock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Mock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t.UTC()
}

// Add advances the mock clock by d.
func (c *Mock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}
