package core

import (
	"sync"
	"time"
)

// Clock gives the block time in unix seconds.
type Clock interface {
	Now() uint64
}

type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// ManualClock only moves when told to. Development nodes and tests use it to
// skip over a lottery interval.
type ManualClock struct {
	sync.Mutex
	now uint64
}

func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() uint64 {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *ManualClock) Advance(seconds uint64) {
	c.Lock()
	c.now += seconds
	c.Unlock()
}

func (c *ManualClock) Set(now uint64) {
	c.Lock()
	c.now = now
	c.Unlock()
}
