package movement

import (
	"sync/atomic"
	"time"
)

// Millisecond durations used for command and query timestamps.
const (
	Second int64 = 1000
	Minute       = Second * 60
	Hour         = Minute * 60
	Day          = Hour * 24
	Week         = Day * 7
)

// Clock is a monotonic source of UTC milliseconds since the Unix epoch.
type Clock interface {
	NowMillis() int64
}

type SystemClock struct{}

func (SystemClock) NowMillis() int64 { return Millis(time.Now()) }

// Millis converts t to milliseconds since the epoch.
func Millis(t time.Time) int64 { return t.UTC().UnixMilli() }

// Time converts milliseconds since the epoch back to a UTC time.
func Time(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// ManualClock only moves when told to. Safe for concurrent use.
type ManualClock struct {
	now atomic.Int64
}

func NewManualClock(start int64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

func (c *ManualClock) NowMillis() int64       { return c.now.Load() }
func (c *ManualClock) Set(ms int64)           { c.now.Store(ms) }
func (c *ManualClock) Advance(ms int64) int64 { return c.now.Add(ms) }
