// Package cluster keeps a cached view of the workers in a dispatch system:
// which worker groups each worker serves and the latest heartbeat it
// published. The view is fed by a Fetcher on a cron, or by explicit updates.
package cluster

import (
	"sort"
	"sync"

	"github.com/twitter/dispatch/common/stats"
)

// Cluster represents a group of Nodes and has mechanisms for receiving updates.
type Cluster struct {
	state    *state
	reqCh    chan interface{}
	updateCh chan ClusterUpdate
	closedCh chan struct{}
	close    sync.Once
	release  func() error
	stat     stats.StatsReceiver
}

// Clusters can be updated in two ways:
// *) a new state of the Cluster, which is a []Node
// *) updates to specific Nodes, which is a []NodeUpdate
type ClusterUpdate interface{}

type heartbeatReq struct {
	id   NodeId
	resp chan heartbeatResp
}

type heartbeatResp struct {
	status string
	ok     bool
}

// NewCluster starts a Cluster holding nodes. Its updateCh accepts []Node and
// []NodeUpdate, which are passed to its state to either setAndDiff or
// filterAndUpdate.
func NewCluster(nodes []Node, updateCh chan ClusterUpdate, stat stats.StatsReceiver) *Cluster {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	c := &Cluster{
		state:    makeState(nodes),
		reqCh:    make(chan interface{}),
		updateCh: updateCh,
		closedCh: make(chan struct{}),
		stat:     stat.Scope("cluster"),
	}
	c.stat.Gauge(stats.ClusterNodesGauge).Update(int64(len(c.state.nodes)))
	go c.loop()
	return c
}

// Members returns the current nodes sorted by id.
func (c *Cluster) Members() []Node {
	ch := make(chan []Node)
	if !c.send(ch) {
		return nil
	}
	return <-ch
}

// WorkerGroupMembers returns the addresses of the nodes serving each worker
// group, sorted.
func (c *Cluster) WorkerGroupMembers() (map[string][]string, error) {
	groups := map[string][]string{}
	for _, n := range c.Members() {
		for _, g := range n.Groups() {
			groups[g] = append(groups[g], string(n.Id()))
		}
	}
	return groups, nil
}

// LatestHeartbeat returns the last heartbeat seen for addr. The bool is false
// when addr is unknown or has not published one.
func (c *Cluster) LatestHeartbeat(addr string) (string, bool) {
	req := heartbeatReq{id: NodeId(addr), resp: make(chan heartbeatResp)}
	if !c.send(req) {
		return "", false
	}
	r := <-req.resp
	return r.status, r.ok
}

// Close stops answering queries; later queries return empty results.
// A cluster from NewFetchedCluster also stops fetching and releases its
// ticker and closers. Otherwise the update loop runs until the caller closes
// the update channel.
func (c *Cluster) Close() error {
	var err error
	c.close.Do(func() {
		close(c.closedCh)
		if c.release != nil {
			err = c.release()
		}
	})
	return err
}

func (c *Cluster) send(req interface{}) bool {
	select {
	case <-c.closedCh:
		return false
	default:
	}
	select {
	case c.reqCh <- req:
		return true
	case <-c.closedCh:
		return false
	}
}

func (c *Cluster) loop() {
	// Local copies are set to nil as their sources close; the fields stay
	// readable by callers.
	reqCh, updateCh, closedCh := c.reqCh, c.updateCh, c.closedCh
	for reqCh != nil || updateCh != nil {
		select {
		case nodesOrUpdates, ok := <-updateCh:
			if !ok {
				updateCh = nil
				continue
			}
			var outgoing []NodeUpdate
			if updates, ok := nodesOrUpdates.([]NodeUpdate); ok {
				outgoing = c.state.filterAndUpdate(updates)
			} else if nodes, ok := nodesOrUpdates.([]Node); ok {
				sort.Sort(NodeSorter(nodes))
				outgoing = c.state.setAndDiff(nodes)
			}
			c.record(outgoing)
		case req := <-reqCh:
			c.handleReq(req)
		case <-closedCh:
			reqCh = nil
			closedCh = nil
		}
	}
}

func (c *Cluster) handleReq(req interface{}) {
	switch req := req.(type) {
	case chan []Node:
		// Members()
		req <- c.current()
	case heartbeatReq:
		// LatestHeartbeat()
		n, ok := c.state.nodes[req.id]
		if !ok || n.Status() == "" {
			req.resp <- heartbeatResp{}
			return
		}
		req.resp <- heartbeatResp{status: n.Status(), ok: true}
	}
}

func (c *Cluster) record(outgoing []NodeUpdate) {
	for _, u := range outgoing {
		switch u.UpdateType {
		case NodeAdded:
			c.stat.Counter(stats.ClusterNodeAddedCounter).Inc(1)
		case NodeRemoved:
			c.stat.Counter(stats.ClusterNodeRemovedCounter).Inc(1)
		case NodeUpdated:
			c.stat.Counter(stats.ClusterNodeUpdatedCounter).Inc(1)
		}
	}
	c.stat.Gauge(stats.ClusterNodesGauge).Update(int64(len(c.state.nodes)))
}

func (c *Cluster) current() []Node {
	r := make([]Node, 0, len(c.state.nodes))
	for _, v := range c.state.nodes {
		r = append(r, v)
	}
	sort.Sort(NodeSorter(r))
	return r
}
