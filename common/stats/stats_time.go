package stats

import (
	"sync/atomic"
	"time"
)

// StatsTicker is the part of time.Ticker the refresh, announce and fetch
// loops use. Whoever creates one stops it.
type StatsTicker interface {
	C() <-chan time.Time
	Stop()
}

type wallTicker struct {
	t *time.Ticker
}

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }

func NewStatsTicker(d time.Duration) StatsTicker {
	return wallTicker{time.NewTicker(d)}
}

// TestTicker fires whenever its owner sends on ch, and remembers being stopped.
type TestTicker struct {
	ch      <-chan time.Time
	stopped atomic.Bool
}

func NewTestTicker(ch <-chan time.Time) *TestTicker {
	return &TestTicker{ch: ch}
}

func (t *TestTicker) C() <-chan time.Time { return t.ch }
func (t *TestTicker) Stop()               { t.stopped.Store(true) }
func (t *TestTicker) Stopped() bool       { return t.stopped.Load() }

// StatsTime is the clock the stats and the periodic loops read.
type StatsTime interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	NewTicker(d time.Duration) StatsTicker
}

type wallTime struct{}

func (wallTime) Now() time.Time                        { return time.Now() }
func (wallTime) Since(t time.Time) time.Duration       { return time.Since(t) }
func (wallTime) NewTicker(d time.Duration) StatsTicker { return NewStatsTicker(d) }

func DefaultStatsTime() StatsTime { return wallTime{} }

type frozenTime struct {
	now   time.Time
	since time.Duration
	ch    <-chan time.Time
}

func (f frozenTime) Now() time.Time                      { return f.now }
func (f frozenTime) Since(time.Time) time.Duration       { return f.since }
func (f frozenTime) NewTicker(time.Duration) StatsTicker { return NewTestTicker(f.ch) }

// NewTestTime returns a clock frozen at now. Every ticker it makes is a
// TestTicker on ch.
func NewTestTime(now time.Time, since time.Duration, ch <-chan time.Time) StatsTime {
	return frozenTime{now, since, ch}
}
