// Package memory provides a cluster Fetcher over a fixed set of in-process
// workers, for local runs and tests.
package memory

import (
	log "github.com/sirupsen/logrus"

	"github.com/twitter/dispatch/cloud/cluster"
)

// Worker is a statically configured worker.
type Worker struct {
	Addr   string   `json:"Addr"`
	Groups []string `json:"Groups"`
}

// ReportFunc returns the current heartbeat of the worker at addr.
type ReportFunc func(addr string) (string, error)

// MakeFetcher returns a Fetcher listing workers, each with the heartbeat
// report gives for it. A worker whose report fails is listed without a
// heartbeat. A nil report lists every worker without one.
func MakeFetcher(workers []Worker, report ReportFunc) cluster.Fetcher {
	w := make([]Worker, len(workers))
	copy(w, workers)
	return &fetcher{workers: w, report: report}
}

type fetcher struct {
	workers []Worker
	report  ReportFunc
}

func (f *fetcher) Fetch() ([]cluster.Node, error) {
	nodes := make([]cluster.Node, 0, len(f.workers))
	for _, w := range f.workers {
		hb := ""
		if f.report != nil {
			var err error
			if hb, err = f.report(w.Addr); err != nil {
				log.Warnf("memory: no heartbeat for %s: %v", w.Addr, err)
				hb = ""
			}
		}
		nodes = append(nodes, cluster.NewWorkerNode(w.Addr, w.Groups, hb))
	}
	return nodes, nil
}

// NewIdNodes returns nodes in the default worker group without heartbeats.
func NewIdNodes(ids ...string) []cluster.Node {
	n := make([]cluster.Node, len(ids))
	for i, id := range ids {
		n[i] = cluster.NewIdNode(id)
	}
	return n
}
