package cluster

import (
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/dispatch/common/stats"
)

type fetchCron struct {
	tickCh <-chan time.Time
	doneCh <-chan struct{}
	f      Fetcher
	outCh  chan ClusterUpdate
	stat   stats.StatsReceiver
}

// Defines the way in which a full set of Nodes in a Cluster is retrieved
type Fetcher interface {
	Fetch() ([]Node, error)
}

// FetcherFunc adapts a function to a Fetcher.
type FetcherFunc func() ([]Node, error)

func (f FetcherFunc) Fetch() ([]Node, error) { return f() }

// Given a Fetcher implementation and a Ticker, returns a channel over which
// ClusterUpdates will be sent to periodically from a new Goroutine.
// A failed fetch is logged and counted, and the cluster keeps its last view.
// The channel is closed when tickCh or doneCh is; a nil doneCh never closes.
func MakeFetchCron(f Fetcher, tickCh <-chan time.Time, doneCh <-chan struct{}, stat stats.StatsReceiver) chan ClusterUpdate {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	outCh := make(chan ClusterUpdate)
	c := &fetchCron{
		tickCh: tickCh,
		doneCh: doneCh,
		f:      f,
		outCh:  outCh,
		stat:   stat.Scope("cluster"),
	}
	go c.loop()
	return outCh
}

func (c *fetchCron) loop() {
	defer close(c.outCh)
	for {
		// a tick racing with doneCh must not start another fetch
		select {
		case <-c.doneCh:
			return
		default:
		}
		select {
		case <-c.doneCh:
			return
		case _, ok := <-c.tickCh:
			if !ok {
				return
			}
		}
		nodes, err := c.f.Fetch()
		if err != nil {
			log.Errorf("Error fetching cluster nodes, keeping previous view: %v", err)
			c.stat.Counter(stats.ClusterFetchErrCounter).Inc(1)
			continue
		}
		select {
		case c.outCh <- nodes:
		case <-c.doneCh:
			return
		}
	}
}

// NewFetchedCluster fetches once to seed a Cluster, then keeps it current by
// fetching on every tick of ticker. The cluster owns ticker and closers:
// Close stops the fetching, stops ticker and closes each closer, as does a
// failed first fetch.
func NewFetchedCluster(f Fetcher, ticker stats.StatsTicker, stat stats.StatsReceiver, closers ...io.Closer) (*Cluster, error) {
	doneCh := make(chan struct{})
	release := func() error {
		close(doneCh)
		ticker.Stop()
		var firstErr error
		for _, c := range closers {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	nodes, err := f.Fetch()
	if err != nil {
		release()
		return nil, err
	}
	c := NewCluster(nodes, MakeFetchCron(f, ticker.C(), doneCh, stat), stat)
	c.release = release
	return c, nil
}
